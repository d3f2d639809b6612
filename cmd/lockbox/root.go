package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/netguy001/lockbox/internal/config"
	"github.com/netguy001/lockbox/pkg/lockout"
	"github.com/netguy001/lockbox/pkg/recovery"
	"github.com/netguy001/lockbox/pkg/security"
	"github.com/netguy001/lockbox/pkg/vault"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	dataDir string
	ctrl    *vault.Controller
)

var rootCmd = &cobra.Command{
	Use:   "lockbox",
	Short: "lockbox is an encrypted password vault",
	Long:  `A local password vault encrypted with Argon2id and AES-256-GCM.`,
	// PersistentPreRunE runs before every subcommand and builds the
	// vault controller from the data directory and its config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".lockbox")
		}
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		cfg, err := config.Load(dataDir)
		if err != nil {
			return err
		}
		ctrl = vault.New(vault.Options{
			Dir:             dataDir,
			BackupDir:       cfg.BackupDir,
			BackupRetention: cfg.BackupRetention,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.lockbox)")
	rootCmd.AddCommand(initCmd)
}

// initCmd creates a new vault.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(ctrl.Path()); err == nil {
			return fmt.Errorf("vault already exists at %s", ctrl.Path())
		}

		fmt.Println("Initializing new vault...")
		password, err := promptNewPassword("Enter master password: ")
		if err != nil {
			return err
		}

		res, err := ctrl.Unlock(password)
		if err != nil {
			return fmt.Errorf("failed to create vault: %w", err)
		}
		defer ctrl.Lock()

		fmt.Printf("Vault created at %s\n", ctrl.Path())
		fmt.Println()
		fmt.Println("Your recovery phrase (write it down and store it offline):")
		fmt.Println()
		printPhrase(res.RecoveryPhrase)
		fmt.Println()
		fmt.Println("This phrase is shown once. Anyone who has it can open your vault.")

		// Spot-check one word against the user's written copy.
		pos := mathrand.Intn(recovery.PhraseWords)
		fmt.Printf("Verification: enter word %d of your phrase: ", pos+1)
		word, err := readLine()
		if err != nil {
			return err
		}
		if recovery.CheckWord(res.RecoveryPhrase, pos, word) {
			fmt.Println("Verified.")
		} else {
			fmt.Println("That does not match. Double-check your written copy:")
			printPhrase(res.RecoveryPhrase)
		}
		return nil
	},
}

// printPhrase prints a 24-word phrase as a numbered 4-column grid.
func printPhrase(phrase string) {
	words := strings.Fields(phrase)
	for i, w := range words {
		fmt.Printf("%2d. %-12s", i+1, w)
		if (i+1)%4 == 0 {
			fmt.Println()
		}
	}
	if len(words)%4 != 0 {
		fmt.Println()
	}
}

// ensureUnlocked prompts for the master password and unlocks the vault.
// No-op when already unlocked.
func ensureUnlocked() error {
	if ctrl.IsUnlocked() {
		return nil
	}
	if _, err := os.Stat(ctrl.Path()); err != nil {
		return fmt.Errorf("no vault found at %s (run 'lockbox init' first)", ctrl.Path())
	}

	fmt.Print("Enter master password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	res, err := ctrl.Unlock(string(passwordBytes))
	var lockedOut *lockout.LockedOutError
	var invalid *vault.InvalidCredentialsError
	switch {
	case errors.As(err, &lockedOut):
		return fmt.Errorf("too many failed attempts, try again in %d minutes", lockedOut.Minutes())
	case errors.As(err, &invalid):
		return fmt.Errorf("invalid password (%d attempts remaining)", invalid.AttemptsRemaining)
	case err != nil:
		return err
	}

	for _, f := range res.TamperedFiles {
		fmt.Fprintf(os.Stderr, "Warning: %s changed outside lockbox since the last session\n", f)
	}
	for _, w := range ctrl.Warnings() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return nil
}

// promptNewPassword reads and confirms a new master password, rejecting
// weak choices.
func promptNewPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password1, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm master password: ")
	password2, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	if string(password1) != string(password2) {
		return "", fmt.Errorf("passwords do not match")
	}

	rating := security.Check(string(password1))
	if rating.Level == security.LevelWeak {
		return "", fmt.Errorf("password too weak: %s", strings.Join(rating.Feedback, "; "))
	}
	fmt.Printf("Password strength: %s\n", rating.Level)
	for _, f := range rating.Feedback {
		fmt.Printf("Hint: %s\n", f)
	}
	return string(password1), nil
}

// readLine reads a single line from stdin, trimming the trailing newline.
func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// promptSecret reads a value without echo when stdin is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(secret), nil
	}
	return readLine()
}
