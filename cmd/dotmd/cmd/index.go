package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inventivepotter/dotmd/internal/logging"
)

func newIndexCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build (or rebuild) the index for a directory of markdown files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanupLog := setupLoggingTo(logging.IndexLogPath())
			defer cleanupLog()

			svc, closeStores, err := newServiceForCmd(cmd.Context(), dir, false)
			if err != nil {
				return err
			}
			defer closeStores()

			stats, err := svc.Index(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files, %d chunks, %d entities, %d edges\n",
				stats.TotalFiles, stats.TotalChunks, stats.TotalEntities, stats.TotalEdges)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to index")
	return cmd
}
