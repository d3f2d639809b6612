package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCategory string

func init() {
	rootCmd.AddCommand(securityCmd)
	securityCmd.AddCommand(securityReportCmd)

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "Limit to one category (passwords, api_keys, ...)")

	rootCmd.AddCommand(statsCmd)
}

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Vault security checks",
}

// securityReportCmd flags weak, reused, and stale passwords.
var securityReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report weak, reused, and stale passwords",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		report, err := ctrl.SecurityReport()
		if err != nil {
			return err
		}
		fmt.Printf("Checked %d password entries\n", report.Total)
		if len(report.Weak)+len(report.Reused)+len(report.Stale) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		if len(report.Weak) > 0 {
			fmt.Printf("\nWeak passwords (%d):\n", len(report.Weak))
			for _, f := range report.Weak {
				fmt.Printf("  %s  %s\n", f.ID, f.Title)
			}
		}
		if len(report.Reused) > 0 {
			fmt.Printf("\nReused passwords (%d):\n", len(report.Reused))
			for _, f := range report.Reused {
				fmt.Printf("  %s  %s\n", f.ID, f.Title)
			}
		}
		if len(report.Stale) > 0 {
			fmt.Printf("\nPasswords older than a year (%d):\n", len(report.Stale))
			for _, f := range report.Stale {
				fmt.Printf("  %s  %s\n", f.ID, f.Title)
			}
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search entries across categories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		results, err := ctrl.Search(args[0], searchCategory)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%-12s %s  %s\n", r.Category, r.ID, r.Title)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		stats, err := ctrl.Stats()
		if err != nil {
			return err
		}
		for _, category := range []string{
			"passwords", "api_keys", "notes", "ssh_keys",
			"files", "encrypted_folders", "password_history", "totp_codes",
		} {
			fmt.Printf("%-18s %d\n", category, stats[category])
		}
		fmt.Printf("%-18s %d\n", "total", stats["total"])
		return nil
	},
}
