package main

import "testing"

func TestScanPatternOrdered(t *testing.T) {
	path := []string{"usr", "local", "python38", "bin"}

	if !scanPattern(path, []string{"python", "bin"}, false, true) {
		t.Fatal("expected ordered pattern to match")
	}
	if scanPattern(path, []string{"bin", "python"}, false, true) {
		t.Fatal("expected out-of-order pattern to fail when ordered")
	}
	if !scanPattern(path, []string{"bin", "python"}, false, false) {
		t.Fatal("expected out-of-order pattern to match when unordered")
	}
}

func TestScanPatternCase(t *testing.T) {
	path := []string{"Users", "Bob", "Projects"}

	if scanPattern(path, []string{"bob"}, false, false) {
		t.Fatal("expected exact-case match to fail on case mismatch")
	}
	if !scanPattern(path, []string{"bob"}, true, false) {
		t.Fatal("expected case-insensitive match to succeed")
	}
}

func TestSplitPath(t *testing.T) {
	got := splitPath("/usr/local//bin/")
	want := []string{"usr", "local", "bin"}
	if len(got) != len(want) {
		t.Fatalf("splitPath length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitPath[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
