package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/pkg/service"
)

type searchOptions struct {
	dir    string
	topK   int
	mode   string
	rerank bool
	expand bool
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanupLog := setupLogging()
			defer cleanupLog()

			query := strings.Join(args, " ")

			svc, closeStores, err := newServiceForCmd(cmd.Context(), opts.dir, true)
			if err != nil {
				return err
			}
			defer closeStores()

			results, err := svc.Search(cmd.Context(), service.SearchOptions{
				Query:  query,
				TopK:   opts.topK,
				Mode:   service.Mode(opts.mode),
				Rerank: opts.rerank,
				Expand: opts.expand,
			})
			if err != nil {
				return err
			}

			if opts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return printSearchResults(cmd, results)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "project directory")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "number of results (0 = config default)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "search mode: semantic, bm25, graph, hybrid")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "rerank the fused results")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "expand the query with acronyms and heading structure")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")

	return cmd
}

// printSearchResults renders results as plain numbered entries, without
// color. On a terminal each entry is an aligned line listing the matched
// engines; otherwise it is a tab-separated line of rank, path and score.
func printSearchResults(cmd *cobra.Command, results []model.SearchResult) error {
	out := cmd.OutOrStdout()
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}

	for i, r := range results {
		if interactive {
			fmt.Fprintf(out, "%2d. %s  [%s]  score=%.4f\n", i+1, r.FilePath, strings.Join(r.MatchedEngines, "+"), r.FusedScore)
		} else {
			fmt.Fprintf(out, "%d\t%s\t%.4f\n", i+1, r.FilePath, r.FusedScore)
		}
		if r.HeadingPath != "" {
			fmt.Fprintf(out, "    %s\n", r.HeadingPath)
		}
		if r.Snippet != "" {
			fmt.Fprintf(out, "    %s\n", r.Snippet)
		}
	}
	return nil
}
