package main

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/netguy001/lockbox/pkg/vault"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(masterCmd)
	masterCmd.AddCommand(masterChangeCmd)

	rootCmd.AddCommand(recoverCmd)
}

// masterCmd is the parent command for master password operations.
var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Master password operations",
}

var masterChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the master password",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		fmt.Print("Current master password: ")
		oldBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		newPassword, err := promptNewPassword("New master password: ")
		if err != nil {
			return err
		}

		newPhrase, err := ctrl.ChangeMasterPassword(string(oldBytes), newPassword)
		if err != nil {
			if errors.Is(err, vault.ErrInvalidPassword) {
				return fmt.Errorf("current password is incorrect")
			}
			return err
		}
		fmt.Println("Master password changed.")
		if newPhrase != "" {
			fmt.Println()
			fmt.Println("Your recovery phrase has been replaced. The old one no longer works.")
			fmt.Println("Write down the new phrase and store it offline:")
			fmt.Println()
			printPhrase(newPhrase)
		}
		return nil
	},
}

// recoverCmd opens the vault with the recovery phrase and sets a new
// master password, for when the old one is lost.
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Recover access with the 24-word recovery phrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Enter your 24-word recovery phrase: ")
		phrase, err := readLine()
		if err != nil {
			return err
		}

		if _, err := ctrl.UnlockWithRecovery(phrase); err != nil {
			switch {
			case errors.Is(err, vault.ErrInvalidPhrase):
				return fmt.Errorf("recovery phrase not accepted")
			case errors.Is(err, vault.ErrNoRecoveryRecord):
				return fmt.Errorf("no recovery record exists for this vault")
			}
			return err
		}
		defer ctrl.Lock()
		fmt.Println("Vault unlocked with recovery phrase.")

		newPassword, err := promptNewPassword("New master password: ")
		if err != nil {
			return err
		}
		newPhrase, err := ctrl.ResetMasterPassword(newPassword)
		if err != nil {
			return err
		}
		fmt.Println("Master password reset. Your recovery phrase still works.")
		if newPhrase != "" {
			fmt.Println()
			fmt.Println("Your recovery phrase has been replaced. The old one no longer works.")
			fmt.Println("Write down the new phrase and store it offline:")
			fmt.Println()
			printPhrase(newPhrase)
		}
		return nil
	},
}
