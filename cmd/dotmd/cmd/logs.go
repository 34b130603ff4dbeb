package cmd

import (
	"fmt"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/inventivepotter/dotmd/internal/logging"
)

type logsOptions struct {
	source  string
	file    string
	tail    int
	follow  bool
	level   string
	pattern string
	noColor bool
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View dotmd log files",
		Long: `View the CLI and index-run logs.

Sources:
  go     general CLI logs (default)
  index  'dotmd index' run logs
  all    merged timeline of both`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := logging.ParseLogSource(opts.source)
			paths, err := logging.FindLogFileBySource(source, opts.file)
			if err != nil {
				return err
			}

			var pattern *regexp.Regexp
			if opts.pattern != "" {
				pattern, err = regexp.Compile(opts.pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
			}

			noColor := opts.noColor || !isatty.IsTerminal(os.Stdout.Fd())
			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:      opts.level,
				Pattern:    pattern,
				NoColor:    noColor,
				ShowSource: source == logging.LogSourceAll,
			}, cmd.OutOrStdout())

			entries, err := viewer.TailMultiple(paths, opts.tail)
			if err != nil {
				return err
			}
			viewer.Print(entries)

			if !opts.follow {
				return nil
			}

			ch := make(chan logging.LogEntry, 64)
			go func() {
				for entry := range ch {
					fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
				}
			}()
			return viewer.FollowMultiple(cmd.Context(), paths, ch)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "go", "log source: go, index, all")
	cmd.Flags().StringVar(&opts.file, "file", "", "explicit log file path")
	cmd.Flags().IntVarP(&opts.tail, "tail", "n", 50, "number of trailing entries to show")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "keep watching for new entries")
	cmd.Flags().StringVar(&opts.level, "level", "", "minimum level to show: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.pattern, "grep", "", "only show lines matching this regexp")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}
