package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/logging"
	"github.com/kestrel-db/kestrel/pkg/config"
	"github.com/kestrel-db/kestrel/pkg/store"
)

var (
	dataDir     string
	verbose     bool
	ignoreCase  bool
	ignorePats  []string
	ignoreFile  string
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:   "pathfind",
	Short: "Index directory trees and search them by path component",
	Long: `pathfind recursively indexes one or more directory trees into a
kestrel store, then answers pattern searches against the component index.
The index itself is always case-folded; --ignore-case controls whether a
search also ignores case, replacing the original's separate caseless
sample binary.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the pathfind store (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ignoreCase, "ignore-case", false, "ignore case when matching search patterns")
	rootCmd.PersistentFlags().StringArrayVar(&ignorePats, "ignore", nil, "regexp of directory names to skip while scanning (repeatable)")
	rootCmd.PersistentFlags().StringVar(&ignoreFile, "ignore-file", "", "file of additional ignore regexps, one per line")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 8, "number of directories scanned in parallel")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadIgnorePatterns() ([]string, error) {
	pats := append([]string(nil), ignorePats...)
	if ignoreFile == "" {
		return pats, nil
	}
	f, err := os.Open(ignoreFile)
	if err != nil {
		return nil, fmt.Errorf("pathfind: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			pats = append(pats, line)
		}
	}
	return pats, scanner.Err()
}

func openIndex(cmd *cobra.Command) (*store.Database, *Index, error) {
	if dataDir == "" {
		return nil, nil, fmt.Errorf("pathfind: --data-dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("pathfind: %w", err)
	}

	cfg := config.Config{DataDir: dataDir, Verbose: verbose}
	log := logging.New(os.Stderr, verbose)

	db, err := store.Open(dataDir+"/store.kdb", cfg, log)
	if err != nil {
		return nil, nil, err
	}

	pats, err := loadIgnorePatterns()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	ix, err := OpenIndex(db, pats, concurrency)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, ix, nil
}
