package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newScanCmd())
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <root>...",
		Short: "Recursively index one or more directory trees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args)
		},
	}
}

func runScan(cmd *cobra.Command, roots []string) error {
	db, ix, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return ix.ScanRoots(roots, func(path string) {
		fmt.Println(path)
	})
}
