package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inventivepotter/dotmd/internal/config"
)

// newConfigCmd exposes the user (global) config file's lifecycle: backing
// it up before risky edits, listing prior backups, and restoring one.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user configuration file",
	}

	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigListBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the current user config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no user config found; nothing to back up")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up to %s\n", path)
			return nil
		},
	}
}

func newConfigListBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List user config backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backups found")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored config from %s\n", args[0])
			return nil
		},
	}
}
