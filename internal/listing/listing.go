// Package listing enumerates a source directory's regular, non-empty
// files in the numeric-filename order the tex and pach container
// formats require for their directory tables.
package listing

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dfxyz/rrmod/internal/leio"
	"golang.org/x/xerrors"
)

// Entry describes one file to be packed.
type Entry struct {
	Path    string // absolute/relative path on disk
	Name    string // base filename
	Length  int64
	Padding int64 // zero-padding bytes needed to reach the next alignment boundary
}

// List enumerates dir's regular, non-empty files, keeping only those for
// which filter returns true (filter may be nil to accept everything),
// and returns them ordered by the numeric interpretation of their
// filename (non-numeric names sort as 0; ties keep directory read
// order, which os.ReadDir already returns sorted by name).
//
// align is the data-region alignment; pass 0 to disable padding
// computation (Entry.Padding will be 0 for every entry).
func List(dir string, align int64, filter func(name string) bool) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, xerrors.Errorf("listing %s: %w", dir, err)
	}

	var entries []Entry
	for _, de := range dirents {
		if de.IsDir() || !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		if filter != nil && !filter(name) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, xerrors.Errorf("stat %s: %w", name, err)
		}
		if info.Size() == 0 {
			continue
		}
		entries = append(entries, Entry{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Length:  info.Size(),
			Padding: leio.Align(info.Size(), align),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return numericKey(entries[i].Name) < numericKey(entries[j].Name)
	})

	return entries, nil
}

// numericKey interprets name as an unsigned 32-bit decimal integer,
// returning 0 for names that do not parse.
func numericKey(name string) uint32 {
	v, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}
