package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/btree"
)

var lsPrefix string

func init() {
	cmd := newLsCmd()
	cmd.Flags().StringVar(&lsPrefix, "prefix", "", "only list keys with this prefix")
	rootCmd.AddCommand(cmd)
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List every key in the current tree, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(cmd)
		},
	}
}

func runLs(cmd *cobra.Command) error {
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

	var it *btree.Iterator
	if lsPrefix != "" {
		it, err = tree.FindFirst(&btree.StringKey{Value: lsPrefix})
	} else {
		it, err = tree.First()
	}
	if err != nil {
		return err
	}

	prefixKey := &btree.StringKey{Value: lsPrefix}

	var rows []map[string]interface{}
	for !it.IsFinished() {
		if lsPrefix != "" && !btree.HasPrefix(it.GetKey(), prefixKey) {
			break
		}
		k := it.GetKey().(*btree.StringKey)
		v, err := it.GetValue()
		if err != nil {
			return err
		}
		sv := v.(*btree.StringValue)
		if jsonOut {
			rows = append(rows, map[string]interface{}{"key": k.Value, "value": sv.Value})
		} else {
			printInfo("%s\t%s\n", k.Value, sv.Value)
		}
		if err := it.Next(); err != nil {
			return err
		}
	}
	if jsonOut {
		return printJSON(rows)
	}
	return nil
}
