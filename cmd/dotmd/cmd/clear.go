package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inventivepotter/dotmd/internal/config"
)

func newClearCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Wipe the index and acronym dictionary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanupLog := setupLogging()
			defer cleanupLog()

			svc, closeStores, err := newServiceForCmd(cmd.Context(), dir, false)
			if err != nil {
				return err
			}

			if err := svc.Clear(cmd.Context()); err != nil {
				closeStores()
				return err
			}
			closeStores()

			cfg, err := resolvedConfig(dir, false)
			if err != nil {
				return err
			}
			removePersistedStores(cfg)

			fmt.Fprintln(cmd.OutOrStdout(), "index cleared")
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "project directory")
	return cmd
}

// removePersistedStores deletes the on-disk vector/bm25/graph/metadata
// artifacts. Clear() on an open Service only resets in-memory/DB state; the
// stores are opened fresh on the next command, so the files themselves must
// go too.
func removePersistedStores(cfg *config.Config) {
	paths := pathsFor(cfg)
	for _, p := range []string{paths.vector, paths.vector + ".meta", paths.bm25, paths.graph, paths.metadata} {
		_ = os.RemoveAll(p)
	}
}
