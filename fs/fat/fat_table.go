package fat

import (
	"encoding/binary"

	"github.com/davidlandreman/corekernel/device/block"
	"github.com/davidlandreman/corekernel/kernel"
)

// FatTable reads cluster chain entries directly off the device, one
// sector at a time, rather than caching the whole FAT in memory.
type FatTable struct {
	device         block.Device
	fatType        FatType
	fatStartSector uint32
	bytesPerSector uint32
}

func (f *FatTable) readSector(sector uint32, buf []byte) *kernel.Error {
	return f.device.ReadBlocks(uint64(sector), 1, buf)
}

// ReadEntry returns the FAT entry for cluster: either the next cluster in
// its chain, or one of the reserved free/end-of-chain/bad sentinels.
func (f *FatTable) ReadEntry(cluster ClusterID) (ClusterID, *kernel.Error) {
	switch f.fatType {
	case Fat12:
		return f.readEntry12(cluster)
	case Fat16:
		return f.readEntry16(cluster)
	default:
		return f.readEntry32(cluster)
	}
}

func (f *FatTable) readEntry12(cluster ClusterID) (ClusterID, *kernel.Error) {
	fatOffset := uint32(cluster) + uint32(cluster)/2
	sector := f.fatStartSector + fatOffset/f.bytesPerSector
	entOffset := fatOffset % f.bytesPerSector

	buf := make([]byte, f.bytesPerSector)
	if err := f.readSector(sector, buf); err != nil {
		return 0, err
	}

	var raw uint16
	if entOffset == f.bytesPerSector-1 {
		// The 12-bit entry straddles this sector and the next one: the
		// low byte is the last byte here, the high byte is the first
		// byte of the following sector.
		next := make([]byte, f.bytesPerSector)
		if err := f.readSector(sector+1, next); err != nil {
			return 0, err
		}
		raw = uint16(buf[entOffset]) | uint16(next[0])<<8
	} else {
		raw = binary.LittleEndian.Uint16(buf[entOffset:])
	}

	if cluster%2 == 0 {
		raw &= 0x0FFF
	} else {
		raw >>= 4
	}
	return ClusterID(raw), nil
}

func (f *FatTable) readEntry16(cluster ClusterID) (ClusterID, *kernel.Error) {
	fatOffset := uint32(cluster) * 2
	sector := f.fatStartSector + fatOffset/f.bytesPerSector
	entOffset := fatOffset % f.bytesPerSector

	buf := make([]byte, f.bytesPerSector)
	if err := f.readSector(sector, buf); err != nil {
		return 0, err
	}
	return ClusterID(binary.LittleEndian.Uint16(buf[entOffset:])), nil
}

func (f *FatTable) readEntry32(cluster ClusterID) (ClusterID, *kernel.Error) {
	fatOffset := uint32(cluster) * 4
	sector := f.fatStartSector + fatOffset/f.bytesPerSector
	entOffset := fatOffset % f.bytesPerSector

	buf := make([]byte, f.bytesPerSector)
	if err := f.readSector(sector, buf); err != nil {
		return 0, err
	}
	raw := binary.LittleEndian.Uint32(buf[entOffset:]) & 0x0FFFFFFF
	return ClusterID(raw), nil
}

// FollowChain walks the cluster chain starting at start, invoking visit
// with each cluster in order. It stops at end-of-chain, returns
// ErrCorruptChain if the chain reaches the FAT's bad-cluster marker, and
// stops silently at any other cluster that is neither valid nor a
// recognized end-of-chain marker.
func (f *FatTable) FollowChain(start ClusterID, visit func(ClusterID) *kernel.Error) *kernel.Error {
	cluster := start
	for cluster.IsValid(f.fatType) {
		if err := visit(cluster); err != nil {
			return err
		}

		next, err := f.ReadEntry(cluster)
		if err != nil {
			return err
		}
		if next.IsEndOfChain(f.fatType) {
			return nil
		}
		cluster = next
	}
	if cluster.IsBad(f.fatType) {
		return ErrCorruptChain
	}
	return nil
}
