package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var auditLimit int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of events to show (0 for all)")
}

// auditCmd is the parent command for audit log operations.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		events, err := ctrl.AuditEvents(auditLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No audit events.")
			return nil
		}
		for _, e := range events {
			detail := e.Detail
			if detail != "" {
				detail = "  " + detail
			}
			fmt.Printf("%s  %-18s %-7s%s\n", e.Timestamp, e.Operation, e.Result, detail)
		}
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		result, err := ctrl.VerifyAuditChain()
		if err != nil {
			return err
		}
		if result.Valid {
			fmt.Printf("Audit chain OK (%d records)\n", result.Records)
			return nil
		}
		fmt.Printf("Audit chain INVALID (%d records)\n", result.Records)
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e)
		}
		return fmt.Errorf("audit log integrity check failed")
	},
}
