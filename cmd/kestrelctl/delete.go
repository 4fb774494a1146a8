package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/btree"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key from the current tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0])
		},
	}
}

func runDelete(cmd *cobra.Command, key string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tree, err := db.OpenTree(treeFlag, stringKeyType, stringValueType, 64)
	if err != nil {
		return fmt.Errorf("kestrelctl: open tree %q: %w", treeFlag, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	removed, err := tree.Remove(&btree.StringKey{Value: key})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{"key": key, "removed": removed})
	}
	if !removed {
		return fmt.Errorf("kestrelctl: key %q not found in tree %q", key, treeFlag)
	}
	printInfo("ok\n")
	return nil
}
