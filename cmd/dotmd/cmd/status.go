package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current index's stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanupLog := setupLogging()
			defer cleanupLog()

			svc, closeStores, err := newServiceForCmd(cmd.Context(), dir, true)
			if err != nil {
				return err
			}
			defer closeStores()

			stats, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			if stats == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no index found; run 'dotmd index' first")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "files=%d chunks=%d entities=%d edges=%d last_indexed=%s\n",
				stats.TotalFiles, stats.TotalChunks, stats.TotalEntities, stats.TotalEdges,
				stats.LastIndexed.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "project directory")
	return cmd
}
