package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/btree"
)

func init() {
	rootCmd.AddCommand(newPutCmd())
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Insert or replace a key's value in the current tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, args[0], args[1])
		},
	}
}

func runPut(cmd *cobra.Command, key, value string) error {
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

	if err := tree.SetValue(&btree.StringKey{Value: key}, &btree.StringValue{Value: value}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{"key": key, "value": value})
	}
	printInfo("ok\n")
	return nil
}
