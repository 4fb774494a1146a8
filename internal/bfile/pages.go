package bfile

import (
	"container/list"
	"fmt"
	"io"

	"github.com/kestrel-db/kestrel/internal/kerr"
)

// getPage returns the cached page for idx, loading or synthesizing it if
// necessary, and touches its LRU position.
func (f *File) getPage(idx uint64) (*page, error) {
	if el, ok := f.cache[idx]; ok {
		f.lru.MoveToFront(el)
		return el.Value.(*page), nil
	}

	pg := &page{idx: idx, data: make([]byte, f.pageSize)}
	offset := int64(idx) * int64(f.pageSize)
	if offset < f.physSize {
		n, err := f.f.ReadAt(pg.data, offset)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("bfile: read page %d: %w", idx, kerr.Io)
		}
		_ = n // short final page is zero-padded by the make() above
	}
	// else: offset >= physSize means this page lives entirely in the
	// grown-but-uncommitted region; it starts life as all zero.

	f.insertPage(pg)
	return pg, nil
}

func (f *File) insertPage(pg *page) {
	el := f.lru.PushFront(pg)
	f.cache[pg.idx] = el
	f.evictIfNeeded()
}

// evictIfNeeded drops clean pages from the back of the LRU list until the
// cache is back under capacity. Dirty pages are pinned and never evicted;
// if every cached page is dirty the cache may temporarily exceed maxPages.
func (f *File) evictIfNeeded() {
	for len(f.cache) > f.maxPages {
		victim := f.evictionCandidate()
		if victim == nil {
			return
		}
		f.lru.Remove(victim)
		delete(f.cache, victim.Value.(*page).idx)
	}
}

func (f *File) evictionCandidate() *list.Element {
	for el := f.lru.Back(); el != nil; el = el.Prev() {
		if !el.Value.(*page).dirty {
			return el
		}
	}
	return nil
}
