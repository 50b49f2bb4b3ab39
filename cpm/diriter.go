package cpm

import (
	"os"
	"sort"

	"github.com/tjfoster/gocpm/memory"
)

// DirIter holds a sorted snapshot of a directory listing for an
// in-progress SEARCH FIRST / SEARCH NEXT sequence, replaced atomically
// each time a new search begins.
type DirIter struct {
	entries []string
}

// NewDirIter returns an empty directory iterator.
func NewDirIter() *DirIter {
	return &DirIter{}
}

// SearchFirst snapshots every regular file in dir, case-sensitively
// sorted ascending, and replaces any in-progress search. Wildcards in
// the FCB pattern are intentionally ignored (spec open question): all
// regular files are returned regardless of the pattern requested.
func (it *DirIter) SearchFirst(dir string) error {
	ent, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(ent))
	for _, e := range ent {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	it.entries = names
	return nil
}

// Next pops the head entry and writes it into the DMA directory
// record, per §4.7: the first 32 bytes are zeroed, the remainder of
// the 128-byte record is filled with the 0xE5 "unused directory entry"
// sentinel, and the 11 name/type bytes at offset 1 are space-filled
// and then overwritten by the name (up to 8 bytes) and type (up to 3
// bytes at offset 9). Returns 0x00 on success, 0xFF when the iterator is
// exhausted (and leaves the DMA area untouched).
func (it *DirIter) Next(mem *memory.Memory, dma uint16) uint8 {
	if len(it.entries) == 0 {
		return 0xFF
	}

	name := it.entries[0]
	it.entries = it.entries[1:]

	mem.FillRange(dma, 32, 0x00)
	mem.FillRange(dma+32, 128-32, 0xE5)
	mem.FillRange(dma+1, 11, 0x20)

	base, ext := splitName(name)
	for i := 0; i < len(base) && i < 8; i++ {
		mem.Set(dma+1+uint16(i), base[i])
	}
	for i := 0; i < len(ext) && i < 3; i++ {
		mem.Set(dma+9+uint16(i), ext[i])
	}

	return 0x00
}

// splitName splits a host filename into its CP/M name/type components
// at the last dot (fcb.FCB.SetNameType splits at the first) and
// upper-cases both, the same upper-casing convention fcb.FCB uses.
func splitName(name string) (string, string) {
	base := name
	ext := ""
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			base = name[:i]
			ext = name[i+1:]
			break
		}
	}
	return upper(base), upper(ext)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
