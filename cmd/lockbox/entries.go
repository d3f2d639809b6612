package main

import (
	"fmt"
	"io"
	"os"

	"github.com/netguy001/lockbox/pkg/vault"

	"github.com/spf13/cobra"
)

// Flags for the lighter entry categories.
var (
	apikeyDescription string
	noteTags          string
	sshPrivateFile    string
	sshPublicFile     string
	totpIssuer        string
)

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyAddCmd)
	apikeyCmd.AddCommand(apikeyListCmd)
	apikeyCmd.AddCommand(apikeyDeleteCmd)
	apikeyAddCmd.Flags().StringVarP(&apikeyDescription, "description", "d", "", "Description")

	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteUpdateCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	noteAddCmd.Flags().StringVar(&noteTags, "tags", "", "Comma-separated tags")

	rootCmd.AddCommand(sshkeyCmd)
	sshkeyCmd.AddCommand(sshkeyAddCmd)
	sshkeyCmd.AddCommand(sshkeyListCmd)
	sshkeyCmd.AddCommand(sshkeyDeleteCmd)
	sshkeyAddCmd.Flags().StringVar(&sshPrivateFile, "private-key", "", "Path to the private key file (required)")
	sshkeyAddCmd.Flags().StringVar(&sshPublicFile, "public-key", "", "Path to the public key file")
	sshkeyAddCmd.MarkFlagRequired("private-key")

	rootCmd.AddCommand(totpCmd)
	totpCmd.AddCommand(totpAddCmd)
	totpCmd.AddCommand(totpListCmd)
	totpCmd.AddCommand(totpDeleteCmd)
	totpAddCmd.Flags().StringVar(&totpIssuer, "issuer", "", "Issuer name")
}

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "API key operations",
}

var apikeyAddCmd = &cobra.Command{
	Use:   "add <service>",
	Short: "Add an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		key, err := promptSecret("API key: ")
		if err != nil {
			return err
		}
		id, err := ctrl.AddAPIKey(vault.APIKeyEntry{
			Service:     args[0],
			Key:         key,
			Description: apikeyDescription,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added API key %s\n", id)
		return nil
	},
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListAPIKeys()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-24s %s\n", e.ID, e.Service, e.Description)
		}
		return nil
	},
}

var apikeyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeleteAPIKey(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted API key %s\n", args[0])
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Secure note operations",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a secure note (content read from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		fmt.Println("Enter note content, end with EOF (Ctrl-D):")
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read note content: %w", err)
		}
		id, err := ctrl.AddNote(vault.NoteEntry{
			Title:   args[0],
			Content: string(content),
			Tags:    splitTags(noteTags),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added note %s\n", id)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secure notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListNotes()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.ID, e.Title)
		}
		return nil
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListNotes()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.ID == args[0] {
				fmt.Println(e.Content)
				return nil
			}
		}
		return fmt.Errorf("note %s not found", args[0])
	},
}

var noteUpdateCmd = &cobra.Command{
	Use:   "update <id> <title>",
	Short: "Update a note (new content read from stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		fmt.Println("Enter new content, end with EOF (Ctrl-D):")
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read note content: %w", err)
		}
		if err := ctrl.UpdateNote(args[0], args[1], string(content)); err != nil {
			return err
		}
		fmt.Printf("Updated note %s\n", args[0])
		return nil
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a secure note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeleteNote(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted note %s\n", args[0])
		return nil
	},
}

var sshkeyCmd = &cobra.Command{
	Use:   "sshkey",
	Short: "SSH key operations",
}

var sshkeyAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an SSH key pair from files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		private, err := os.ReadFile(sshPrivateFile)
		if err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
		var public []byte
		if sshPublicFile != "" {
			public, err = os.ReadFile(sshPublicFile)
			if err != nil {
				return fmt.Errorf("failed to read public key: %w", err)
			}
		}
		passphrase, err := promptSecret("Key passphrase (empty if none): ")
		if err != nil {
			return err
		}

		id, err := ctrl.AddSSHKey(vault.SSHKeyEntry{
			Name:       args[0],
			PrivateKey: string(private),
			PublicKey:  string(public),
			Passphrase: passphrase,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added SSH key %s\n", id)
		return nil
	},
}

var sshkeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List SSH keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListSSHKeys()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.ID, e.Name)
		}
		return nil
	},
}

var sshkeyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an SSH key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeleteSSHKey(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted SSH key %s\n", args[0])
		return nil
	},
}

var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "TOTP secret operations",
}

var totpAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a TOTP secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		secret, err := promptSecret("TOTP secret (base32): ")
		if err != nil {
			return err
		}
		id, err := ctrl.AddTOTP(vault.TOTPEntry{
			Name:   args[0],
			Secret: secret,
			Issuer: totpIssuer,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added TOTP secret %s\n", id)
		return nil
	},
}

var totpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List TOTP secrets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListTOTP()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-24s %s\n", e.ID, e.Name, e.Issuer)
		}
		return nil
	},
}

var totpDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a TOTP secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeleteTOTP(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted TOTP secret %s\n", args[0])
		return nil
	},
}
