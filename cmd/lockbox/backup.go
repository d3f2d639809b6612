package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

// backupCmd writes a manual backup. Manual backups are never pruned by the
// automatic retention policy.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a manual vault backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		path, err := ctrl.BackupNow()
		if err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", path)
		return nil
	},
}

// restoreCmd replaces the vault file with a backup. The backup must decrypt
// with the given password before anything is overwritten, and the current
// vault is snapshotted first.
var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore the vault from a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ctrl.IsUnlocked() {
			return fmt.Errorf("lock the vault before restoring")
		}

		fmt.Print("Enter the backup's master password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		if err := ctrl.RestoreBackup(args[0], string(passwordBytes)); err != nil {
			return err
		}
		fmt.Printf("Vault restored from %s\n", args[0])
		return nil
	},
}
