package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Flags for file/folder storage.
var (
	fileDescription   string
	fileTags          string
	fileOutput        string
	folderDescription string
)

func init() {
	rootCmd.AddCommand(fileCmd)
	fileCmd.AddCommand(fileAddCmd)
	fileCmd.AddCommand(fileListCmd)
	fileCmd.AddCommand(fileGetCmd)
	fileCmd.AddCommand(fileDeleteCmd)
	fileAddCmd.Flags().StringVarP(&fileDescription, "description", "d", "", "Description")
	fileAddCmd.Flags().StringVar(&fileTags, "tags", "", "Comma-separated tags")
	fileGetCmd.Flags().StringVarP(&fileOutput, "output", "o", "", "Output path (default: original filename)")

	rootCmd.AddCommand(folderCmd)
	folderCmd.AddCommand(folderAddCmd)
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderDeleteCmd)
	folderAddCmd.Flags().StringVarP(&folderDescription, "description", "d", "", "Description")
}

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Encrypted file storage",
}

var fileAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Store a file inside the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		id, err := ctrl.AddFile(filepath.Base(args[0]), data, fileDescription, splitTags(fileTags))
		if err != nil {
			return err
		}
		fmt.Printf("Stored %s (%d bytes) as %s\n", filepath.Base(args[0]), len(data), id)
		return nil
	},
}

var fileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListFiles()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-32s %8d  %s\n", e.ID, e.Filename, e.Size, e.Description)
		}
		return nil
	},
}

var fileGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Extract a stored file to disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListFiles()
		if err != nil {
			return err
		}
		name := ""
		for _, e := range entries {
			if e.ID == args[0] {
				name = e.Filename
				break
			}
		}
		if name == "" {
			return fmt.Errorf("file %s not found", args[0])
		}

		data, err := ctrl.GetFileData(args[0])
		if err != nil {
			return err
		}
		out := fileOutput
		if out == "" {
			out = name
		}
		if err := os.WriteFile(out, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeleteFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted file %s\n", args[0])
		return nil
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Encrypted folder tracking",
}

var folderAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Track a folder's contents in the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		id, err := ctrl.AddEncryptedFolder(args[0], folderDescription)
		if err != nil {
			return err
		}
		fmt.Printf("Tracking folder %s as %s\n", args[0], id)
		return nil
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		entries, err := ctrl.ListEncryptedFolders()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-24s %4d files  %8d bytes  %s\n",
				e.ID, e.FolderName, e.FileCount, e.Size, e.OriginalPath)
		}
		return nil
	},
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Stop tracking a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer ctrl.Lock()

		if err := ctrl.DeleteEncryptedFolder(args[0]); err != nil {
			return err
		}
		fmt.Printf("Stopped tracking folder %s\n", args[0])
		return nil
	},
}
