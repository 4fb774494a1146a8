package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/btree"
)

func init() {
	rootCmd.AddCommand(newGetCmd())
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Look up a key in the current tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0])
		},
	}
}

func runGet(cmd *cobra.Command, key string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, ok, err := db.Roots().GetValue(treeFlag); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("kestrelctl: tree %q does not exist", treeFlag)
	}
	tree, err := db.OpenTree(treeFlag, stringKeyType, stringValueType, 0)
	if err != nil {
		return fmt.Errorf("kestrelctl: open tree %q: %w", treeFlag, err)
	}

	v, ok, err := tree.Find(&btree.StringKey{Value: key})
	if err != nil {
		return err
	}
	if !ok {
		if jsonOut {
			return printJSON(map[string]interface{}{"key": key, "found": false})
		}
		return fmt.Errorf("kestrelctl: key %q not found in tree %q", key, treeFlag)
	}
	sv, ok := v.(*btree.StringValue)
	if !ok {
		return fmt.Errorf("kestrelctl: tree %q does not hold string values", treeFlag)
	}
	if jsonOut {
		return printJSON(map[string]interface{}{"key": key, "found": true, "value": sv.Value})
	}
	printInfo("%s\n", sv.Value)
	return nil
}
