package main

import (
	"fmt"

	"github.com/netguy001/lockbox/pkg/crypto"
	"github.com/netguy001/lockbox/pkg/security"

	"github.com/spf13/cobra"
)

// Flags for generate.
var (
	genLength    int
	genNoUpper   bool
	genNoLower   bool
	genNoDigits  bool
	genNoSymbols bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&genLength, "length", "l", 16, "Password length")
	generateCmd.Flags().BoolVar(&genNoUpper, "no-upper", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&genNoLower, "no-lower", false, "Exclude lowercase letters")
	generateCmd.Flags().BoolVar(&genNoDigits, "no-digits", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&genNoSymbols, "no-symbols", false, "Exclude symbols")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password",
	Long: `Generate a random password. Works without unlocking the vault.

Examples:
  lockbox generate
  lockbox generate --length 24 --no-symbols`,
	RunE: executeGenerate,
}

func executeGenerate(cmd *cobra.Command, args []string) error {
	password, err := generateWithFlags()
	if err != nil {
		return err
	}
	rating := security.Check(password)
	fmt.Println(password)
	fmt.Fprintf(cmd.ErrOrStderr(), "Strength: %s (%d/100)\n", rating.Level, rating.Score)
	return nil
}

// generateWithFlags builds a password from the generate flag set. Shared
// with 'password add --generate'.
func generateWithFlags() (string, error) {
	opts := crypto.GenerateOptions{
		Length:  genLength,
		Upper:   !genNoUpper,
		Lower:   !genNoLower,
		Digits:  !genNoDigits,
		Symbols: !genNoSymbols,
	}
	return crypto.GeneratePassword(opts)
}
