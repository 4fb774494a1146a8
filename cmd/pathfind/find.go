package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ordered bool

func init() {
	cmd := newFindCmd()
	cmd.Flags().BoolVar(&ordered, "ordered", false, "require pattern components to match in order")
	rootCmd.AddCommand(cmd)
}

func newFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <pattern>",
		Short: "Search the index for paths matching a slash-separated component pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, args[0])
		},
	}
}

func runFind(cmd *cobra.Command, pattern string) error {
	db, ix, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	results, err := ix.Find(pattern, ignoreCase, ordered)
	if err != nil {
		return err
	}
	for _, path := range results {
		fmt.Println(path)
	}
	return nil
}
