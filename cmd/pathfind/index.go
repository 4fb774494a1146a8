package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/kestrel-db/kestrel/internal/btree"
	"github.com/kestrel-db/kestrel/internal/conc"
	"github.com/kestrel-db/kestrel/internal/kerr"
	"github.com/kestrel-db/kestrel/pkg/store"
)

const (
	pathsTreeName      = "pathfind.paths"
	componentsTreeName = "pathfind.components"
	treeEntriesPerNode = 64
)

// Index is the Go descendant of the original's Root/Roots pair: a path
// tree mapping a content-derived GUID to the full path it was computed
// from, and a component tree mapping each case-folded path segment to the
// GUIDs of every path containing it.
type Index struct {
	db         *store.Database
	paths      *btree.BTree
	components *btree.BTree

	ignoreList []*regexp.Regexp

	writeMu sync.Mutex      // serializes the single-writer transactions below
	sem     *conc.Semaphore // bounds concurrent directory reads
}

// OpenIndex opens (creating if necessary) the path and component trees in
// db, ready to Scan or Find against.
func OpenIndex(db *store.Database, ignorePatterns []string, concurrency int) (*Index, error) {
	paths, err := db.OpenTree(pathsTreeName, "kestrel.GuidKey", "kestrel.StringValue", treeEntriesPerNode)
	if err != nil {
		return nil, fmt.Errorf("pathfind: open path tree: %w", err)
	}
	components, err := db.OpenTree(componentsTreeName, "kestrel.StringKey", "kestrel.GUIDArrayValue", treeEntriesPerNode)
	if err != nil {
		return nil, fmt.Errorf("pathfind: open component tree: %w", err)
	}

	ix := &Index{
		db:         db,
		paths:      paths,
		components: components,
		sem:        conc.NewSemaphore(concurrency, concurrency),
	}
	for _, p := range ignorePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pathfind: bad ignore pattern %q: %w", p, err)
		}
		ix.ignoreList = append(ix.ignoreList, re)
	}
	return ix, nil
}

func (ix *Index) shouldIgnore(name string) bool {
	for _, re := range ix.ignoreList {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	var out []string
	for _, part := range strings.Split(clean, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ScanRoots indexes every directory reachable from each of roots,
// rendezvousing all root-scanning goroutines at a barrier before any of
// them starts walking, then recursing through subdirectories concurrently,
// bounded by ix.sem.
func (ix *Index) ScanRoots(roots []string, onPath func(string)) error {
	if len(roots) == 0 {
		return nil
	}
	barrier := conc.NewBarrier(len(roots))
	var wg sync.WaitGroup
	errs := make([]error, len(roots))
	for i, root := range roots {
		wg.Add(1)
		go func(i int, root string) {
			defer wg.Done()
			barrier.Wait()
			errs[i] = ix.scanDir(root, onPath)
		}(i, root)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// scanDir indexes path and recurses into its subdirectories. The semaphore
// token it holds bounds only this call's own indexPath+ReadDir work — it is
// released before any child goroutines are spawned, so a goroutine never
// holds a token while blocked in wg.Wait() on its children. Holding the
// token across that wait would exhaust the pool on any directory nesting
// deeper than the configured concurrency (each level's goroutine stuck
// waiting for a still-unacquired token one level down).
func (ix *Index) scanDir(path string, onPath func(string)) error {
	ix.sem.Acquire(0) // blocks until a scan slot frees up
	indexed, err := ix.indexPath(path)
	entries, direrr := os.ReadDir(path)
	ix.sem.Release(1)

	if err != nil {
		return err
	}
	if indexed && onPath != nil {
		onPath(path)
	}
	if direrr != nil {
		// Skip directories we can't read (permissions, races), matching
		// the original's catch-and-continue behavior.
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if ix.shouldIgnore(name) {
			continue
		}
		child := filepath.Join(path, name)

		wg.Add(1)
		go func(child string) {
			defer wg.Done()
			if err := ix.scanDir(child, onPath); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(child)
	}
	wg.Wait()
	return firstErr
}

// indexPath records path in the path tree and registers each of its
// components in the component tree. Returns false if path was already
// indexed (e.g. re-scanning the same root).
func (ix *Index) indexPath(path string) (bool, error) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	pathKey := &btree.GuidKey{ID: btree.GUIDFromContent([]byte(path))}

	tx, err := ix.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := ix.paths.Insert(pathKey, &btree.StringValue{Value: path}); err != nil {
		if errors.Is(err, kerr.AlreadyExists) {
			return false, nil
		}
		return false, err
	}

	for _, comp := range splitPath(path) {
		if err := ix.addComponent(comp, pathKey.ID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (ix *Index) addComponent(comp string, id btree.GUID) error {
	key := &btree.StringKey{Value: comp, IgnoreCase: true}
	v, ok, err := ix.components.Find(key)
	if err != nil {
		return err
	}
	if !ok {
		arr := btree.NewGUIDArrayValue()
		arr.Value = []btree.GUID{id}
		return ix.components.Insert(key, arr)
	}
	arr, ok := v.(*btree.ArrayValue[btree.GUID])
	if !ok {
		return fmt.Errorf("pathfind: component %q has wrong value type", comp)
	}
	for _, existing := range arr.Value {
		if existing == id {
			return nil
		}
	}
	arr.Value = append(arr.Value, id)
	return ix.components.SetValue(key, arr)
}
