package fat

import "testing"

func buildDirEntry(name, ext string, attrs FileAttributes, firstCluster ClusterID, size uint32) []byte {
	e := make([]byte, DirEntrySize)
	copy(e[direName:direName+8], []byte(fmtPadded(name, 8)))
	copy(e[direExtension:direExtension+3], []byte(fmtPadded(ext, 3)))
	e[direAttributes] = byte(attrs)
	e[direFirstClusterLow] = byte(firstCluster)
	e[direFirstClusterLow+1] = byte(firstCluster >> 8)
	e[direFirstClusterHigh] = byte(firstCluster >> 16)
	e[direFirstClusterHigh+1] = byte(firstCluster >> 24)
	e[direFileSize] = byte(size)
	e[direFileSize+1] = byte(size >> 8)
	e[direFileSize+2] = byte(size >> 16)
	e[direFileSize+3] = byte(size >> 24)
	return e
}

func fmtPadded(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	return s[:width]
}

func TestDirectoryIteratorSkipsFreeAndLFNEntries(t *testing.T) {
	buf := make([]byte, DirEntrySize*4)

	free := buildDirEntry("DELETED", "TXT", AttrArchive, 2, 1)
	free[direName] = entryFree
	copy(buf[0:], free)

	lfn := buildDirEntry("", "", AttrLFN, 0, 0)
	copy(buf[DirEntrySize:], lfn)

	copy(buf[DirEntrySize*2:], buildDirEntry("REAL", "TXT", AttrArchive, 5, 42))

	it := NewDirectoryIterator(buf)
	entry, ok := it.Next()
	if !ok {
		t.Fatal("expected to find the real entry")
	}
	if entry.FormatName() != "REAL.TXT" {
		t.Fatalf("expected REAL.TXT, got %q", entry.FormatName())
	}
	if entry.FirstCluster() != 5 || entry.FileSize() != 42 {
		t.Fatalf("unexpected entry fields: %+v", entry)
	}

	if _, ok := it.Next(); ok {
		t.Fatal("expected no more entries after hitting the end marker")
	}
}

func TestDirectoryIteratorFormatsNameWithoutExtension(t *testing.T) {
	buf := buildDirEntry("NOEXT", "", AttrArchive, 2, 0)
	var entry DirectoryEntry
	copy(entry.raw[:], buf)
	if got := entry.FormatName(); got != "NOEXT" {
		t.Fatalf("expected bare name NOEXT, got %q", got)
	}
}

func TestDirectoryEntryIsDirectory(t *testing.T) {
	buf := buildDirEntry("SUBDIR", "", AttrDirectory, 9, 0)
	var entry DirectoryEntry
	copy(entry.raw[:], buf)
	if !entry.Attributes().IsDirectory() {
		t.Fatal("expected directory attribute to be set")
	}
}
