package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines runtime configuration loaded from YAML and/or flags.
type Config struct {
	// DataDir holds the single store file, named store.kdb.
	DataDir string `yaml:"data_dir"`
	// BlockSize is the file allocator's minimum allocation unit. Ignored
	// when opening an existing store (the stored header's value wins).
	BlockSize uint32 `yaml:"block_size"`
	// EntriesPerNode is the branching factor for trees created by callers
	// through the store facade (the named registry itself uses
	// EntriesPerNodeRegistry).
	EntriesPerNode uint16 `yaml:"entries_per_node"`
	// EntriesPerNodeRegistry is the branching factor for the named
	// registry's own root tree.
	EntriesPerNodeRegistry uint16 `yaml:"entries_per_node_registry"`
	// Secure zeroes a block's payload before relinking it into the free
	// list, at the cost of extra writes on every delete.
	Secure bool `yaml:"secure"`
	// PageCachePages bounds the buffered file's LRU page cache.
	PageCachePages int `yaml:"page_cache_pages"`
	// OpenTimeout bounds how long Open waits to acquire the store's
	// exclusive file lock before giving up.
	OpenTimeout time.Duration `yaml:"open_timeout"`
	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`
}

// withDefaults fills in zero fields with the values Open should use when a
// caller leaves them unset.
func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = 4096
	}
	if c.EntriesPerNode == 0 {
		c.EntriesPerNode = 64
	}
	if c.EntriesPerNodeRegistry == 0 {
		c.EntriesPerNodeRegistry = 32
	}
	if c.PageCachePages == 0 {
		c.PageCachePages = 512
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 5 * time.Second
	}
	return c
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// kestrel's defaults.
func (c Config) WithDefaults() Config { return c.withDefaults() }

// Load reads a YAML config file from path. If path is empty or the file
// does not exist, returns an empty Config and nil error.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close config file %q: %v\n", path, closeErr)
		}
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
