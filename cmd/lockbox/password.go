package main

import (
	"fmt"
	"strings"

	"github.com/netguy001/lockbox/pkg/vault"

	"github.com/spf13/cobra"
)

// Flags for password add/update.
var (
	pwUsername string
	pwURL      string
	pwNotes    string
	pwTags     string
	pwGenerate bool
	pwFavorite bool
)

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordAddCmd)
	passwordCmd.AddCommand(passwordListCmd)
	passwordCmd.AddCommand(passwordShowCmd)
	passwordCmd.AddCommand(passwordUpdateCmd)
	passwordCmd.AddCommand(passwordDeleteCmd)
	passwordCmd.AddCommand(passwordHistoryCmd)

	for _, c := range []*cobra.Command{passwordAddCmd, passwordUpdateCmd} {
		c.Flags().StringVarP(&pwUsername, "username", "u", "", "Username")
		c.Flags().StringVar(&pwURL, "url", "", "URL")
		c.Flags().StringVar(&pwNotes, "notes", "", "Notes")
		c.Flags().StringVar(&pwTags, "tags", "", "Comma-separated tags")
		c.Flags().BoolVar(&pwFavorite, "favorite", false, "Mark as favorite")
	}
	passwordAddCmd.Flags().BoolVarP(&pwGenerate, "generate", "g", false, "Generate the password instead of prompting")
}

// passwordCmd is the parent command for password entries.
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Password entry operations",
}

var passwordAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a password entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		var password string
		var err error
		if pwGenerate {
			password, err = generateWithFlags()
		} else {
			password, err = promptSecret("Password: ")
		}
		if err != nil {
			return err
		}

		id, err := ctrl.AddPassword(vault.PasswordEntry{
			Title:    args[0],
			Username: pwUsername,
			Password: password,
			URL:      pwURL,
			Notes:    pwNotes,
			Tags:     splitTags(pwTags),
			Favorite: pwFavorite,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added password entry %s\n", id)
		if pwGenerate {
			fmt.Printf("Generated password: %s\n", password)
		}
		return nil
	},
}

var passwordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List password entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListPasswords()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No password entries.")
			return nil
		}
		for _, e := range entries {
			marker := " "
			if e.Favorite {
				marker = "*"
			}
			fmt.Printf("%s %s  %-24s %s\n", marker, e.ID, e.Title, e.Username)
		}
		return nil
	},
}

var passwordShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a password entry including the secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		e, err := ctrl.GetPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Title:    %s\n", e.Title)
		fmt.Printf("Username: %s\n", e.Username)
		fmt.Printf("Password: %s\n", e.Password)
		if e.URL != "" {
			fmt.Printf("URL:      %s\n", e.URL)
		}
		if e.Notes != "" {
			fmt.Printf("Notes:    %s\n", e.Notes)
		}
		if len(e.Tags) > 0 {
			fmt.Printf("Tags:     %s\n", strings.Join(e.Tags, ", "))
		}
		fmt.Printf("Modified: %s\n", e.Modified)
		return nil
	},
}

var passwordUpdateCmd = &cobra.Command{
	Use:   "update <id> [title]",
	Short: "Update a password entry",
	Long: `Update a password entry. Prompts for a new password; leave it
empty to keep the current one. The previous password is kept in history.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		current, err := ctrl.GetPassword(args[0])
		if err != nil {
			return err
		}

		updated := *current
		if len(args) == 2 {
			updated.Title = args[1]
		}
		if cmd.Flags().Changed("username") {
			updated.Username = pwUsername
		}
		if cmd.Flags().Changed("url") {
			updated.URL = pwURL
		}
		if cmd.Flags().Changed("notes") {
			updated.Notes = pwNotes
		}
		if cmd.Flags().Changed("tags") {
			updated.Tags = splitTags(pwTags)
		}
		if cmd.Flags().Changed("favorite") {
			updated.Favorite = pwFavorite
		}

		password, err := promptSecret("New password (empty to keep current): ")
		if err != nil {
			return err
		}
		if password != "" {
			updated.Password = password
		}

		if err := ctrl.UpdatePassword(args[0], updated); err != nil {
			return err
		}
		fmt.Printf("Updated password entry %s\n", args[0])
		return nil
	},
}

var passwordDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a password entry and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeletePassword(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted password entry %s\n", args[0])
		return nil
	},
}

var passwordHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show previous passwords for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		history, err := ctrl.PasswordHistory(args[0])
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("No history for this entry.")
			return nil
		}
		for _, h := range history {
			fmt.Printf("%s  %s\n", h.ChangedAt, h.OldPassword)
		}
		return nil
	},
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
