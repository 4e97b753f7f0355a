package listing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListNumericSort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10", 3)
	writeFile(t, dir, "2", 3)
	writeFile(t, dir, "1", 3)
	writeFile(t, dir, "0", 3)

	entries, err := List(dir, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"0", "1", "2", "10"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestListSkipsEmptyAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0", 0)
	writeFile(t, dir, "abc", 3)
	writeFile(t, dir, "123", 3)
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := List(dir, 0, func(name string) bool {
		for _, r := range name {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "123" {
		t.Fatalf("got %+v", entries)
	}
	if entries[0].Padding != 0 {
		t.Fatalf("expected zero padding when align=0, got %d", entries[0].Padding)
	}
}

func TestListPadding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1", 5)
	entries, err := List(dir, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Padding != 11 {
		t.Fatalf("padding = %d, want 11", entries[0].Padding)
	}
}
