package fat

import (
	"encoding/binary"
	"strings"
)

// DirEntrySize is the fixed size of one 8.3 directory entry.
const DirEntrySize = 32

const (
	entryFree = 0xE5
	entryEnd  = 0x00
)

// Directory entry field offsets.
const (
	direName             = 0
	direExtension        = 8
	direAttributes       = 11
	direFirstClusterHigh = 20
	direWriteTime        = 22
	direWriteDate        = 24
	direFirstClusterLow  = 26
	direFileSize         = 28
)

// DirectoryEntry is a raw 32-byte FAT directory entry.
type DirectoryEntry struct {
	raw [DirEntrySize]byte
}

func (e *DirectoryEntry) isFree() bool { return e.raw[direName] == entryFree }
func (e *DirectoryEntry) isEnd() bool  { return e.raw[direName] == entryEnd }

// IsValid reports whether e is a live, non-long-file-name entry.
func (e *DirectoryEntry) IsValid() bool {
	return !e.isFree() && !e.isEnd() && !e.Attributes().IsLFN()
}

// Attributes returns the entry's attribute byte.
func (e *DirectoryEntry) Attributes() FileAttributes {
	return FileAttributes(e.raw[direAttributes])
}

// FirstCluster returns the entry's starting cluster, assembled from its
// low and high halves (the high half is always zero outside FAT32).
func (e *DirectoryEntry) FirstCluster() ClusterID {
	high := uint32(binary.LittleEndian.Uint16(e.raw[direFirstClusterHigh:]))
	low := uint32(binary.LittleEndian.Uint16(e.raw[direFirstClusterLow:]))
	return ClusterID(high<<16 | low)
}

// FileSize returns the entry's size in bytes. It is always 0 for
// directories.
func (e *DirectoryEntry) FileSize() uint32 {
	return binary.LittleEndian.Uint32(e.raw[direFileSize:])
}

// ShortName returns the raw 8.3 name, padded with spaces, as two fields.
func (e *DirectoryEntry) ShortName() (name, ext [8]byte) {
	copy(name[:], e.raw[direName:direName+8])
	var extBuf [8]byte
	copy(extBuf[:3], e.raw[direExtension:direExtension+3])
	return name, extBuf
}

// FormatName renders the entry's name as "NAME.EXT" (or just "NAME" when
// the extension is empty), trimming the fixed-width padding spaces.
func (e *DirectoryEntry) FormatName() string {
	name := strings.TrimRight(string(e.raw[direName:direName+8]), " ")
	ext := strings.TrimRight(string(e.raw[direExtension:direExtension+3]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// DirectoryIterator walks the 32-byte entries of a directory sector or
// cluster buffer, skipping free slots and long-file-name continuation
// entries, and stopping at the end-of-directory marker.
type DirectoryIterator struct {
	buf    []byte
	offset int
}

// NewDirectoryIterator wraps buf, which must contain whole 32-byte
// entries (a sector or cluster's worth of directory data).
func NewDirectoryIterator(buf []byte) *DirectoryIterator {
	return &DirectoryIterator{buf: buf}
}

// Next returns the next valid entry, or ok=false once the directory ends
// or the buffer is exhausted.
func (it *DirectoryIterator) Next() (DirectoryEntry, bool) {
	for it.offset+DirEntrySize <= len(it.buf) {
		var entry DirectoryEntry
		copy(entry.raw[:], it.buf[it.offset:it.offset+DirEntrySize])
		it.offset += DirEntrySize

		if entry.isEnd() {
			return DirectoryEntry{}, false
		}
		if entry.isFree() || entry.Attributes().IsLFN() {
			continue
		}
		return entry, true
	}
	return DirectoryEntry{}, false
}
