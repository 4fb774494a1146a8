package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/logging"
	"github.com/kestrel-db/kestrel/pkg/config"
	"github.com/kestrel-db/kestrel/pkg/store"
)

const (
	defaultTreeName = "default"
	stringKeyType   = "kestrel.StringKey"
	stringValueType = "kestrel.StringValue"
)

var (
	dataDir    string
	configPath string
	verbose    bool
	jsonOut    bool
	treeFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "kestrelctl",
	Short: "Inspect and manipulate a kestrel store file",
	Long: `kestrelctl opens a kestrel store (a single-file transactional
block store with a generic B-tree index) and lets you read and write its
named trees from the command line, or interactively via the repl
subcommand.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding store.kdb (required)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file, overridden by other flags")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&treeFlag, "tree", defaultTreeName, "named tree to operate on")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB opens the store at dataDir/store.kdb, applying cmd/kestrelctl's
// config file (if --config was given) overridden by the --data-dir and
// --verbose flags.
func openDB(cmd *cobra.Command) (*store.Database, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("kestrelctl: --data-dir is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	cfg.Verbose = cfg.Verbose || verbose

	log := logging.New(os.Stderr, cfg.Verbose)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("kestrelctl: %w", err)
	}
	return store.Open(dataDir+"/store.kdb", cfg, log)
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
