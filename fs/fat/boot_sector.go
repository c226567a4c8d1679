package fat

import (
	"encoding/binary"

	"github.com/davidlandreman/corekernel/kernel"
)

// bootSignature is the two-byte marker every valid boot sector ends with.
const bootSignature = 0xAA55

// BootSector is the first sector of a FAT volume: the BIOS parameter
// block common to all variants, followed by a FAT16 or FAT32 extended
// boot record occupying the same 54-byte region.
type BootSector struct {
	raw [512]byte
}

// ParseBootSector validates and wraps a 512-byte boot sector.
func ParseBootSector(sector []byte) (*BootSector, *kernel.Error) {
	if len(sector) != 512 {
		return nil, ErrInvalidGeometry
	}
	bs := &BootSector{}
	copy(bs.raw[:], sector)

	if binary.LittleEndian.Uint16(bs.raw[510:512]) != bootSignature {
		return nil, ErrBadSignature
	}
	return bs, nil
}

// BIOS parameter block field offsets, common to every FAT variant.
const (
	offBytesPerSector    = 11
	offSectorsPerCluster = 13
	offReservedSectors   = 14
	offNumFATs           = 16
	offRootEntries       = 17
	offTotalSectors16    = 19
	offSectorsPerFAT16   = 22
	offTotalSectors32    = 32
	offFatSpecific       = 36 // 54-byte FAT16/FAT32 extended boot record
)

// FAT32 extended boot record field offsets, relative to offFatSpecific.
const (
	offFat32SectorsPerFAT32 = 0
	offFat32RootCluster     = 8
)

// BytesPerSector is the logical sector size in bytes, almost always 512.
func (b *BootSector) BytesPerSector() uint16 {
	return binary.LittleEndian.Uint16(b.raw[offBytesPerSector:])
}

// SectorsPerCluster is the allocation unit size in sectors.
func (b *BootSector) SectorsPerCluster() uint8 {
	return b.raw[offSectorsPerCluster]
}

// ReservedSectors is the count of sectors before the first FAT,
// including the boot sector itself.
func (b *BootSector) ReservedSectors() uint16 {
	return binary.LittleEndian.Uint16(b.raw[offReservedSectors:])
}

// NumFATs is the number of FAT copies on the volume, normally 2.
func (b *BootSector) NumFATs() uint8 {
	return b.raw[offNumFATs]
}

// RootEntries is the number of fixed 32-byte slots in a FAT12/FAT16 root
// directory. It is always 0 on FAT32, whose root directory is a regular
// cluster chain instead.
func (b *BootSector) RootEntries() uint16 {
	return binary.LittleEndian.Uint16(b.raw[offRootEntries:])
}

func (b *BootSector) totalSectors16() uint16 {
	return binary.LittleEndian.Uint16(b.raw[offTotalSectors16:])
}

func (b *BootSector) totalSectors32() uint32 {
	return binary.LittleEndian.Uint32(b.raw[offTotalSectors32:])
}

// TotalSectors is the volume size in sectors, taken from whichever of the
// 16-bit or 32-bit total-sectors field is populated.
func (b *BootSector) TotalSectors() uint32 {
	if n := b.totalSectors16(); n != 0 {
		return uint32(n)
	}
	return b.totalSectors32()
}

func (b *BootSector) sectorsPerFAT16() uint16 {
	return binary.LittleEndian.Uint16(b.raw[offSectorsPerFAT16:])
}

func (b *BootSector) sectorsPerFAT32() uint32 {
	return binary.LittleEndian.Uint32(b.raw[offFatSpecific+offFat32SectorsPerFAT32:])
}

// SectorsPerFAT is the size of a single FAT copy in sectors, read from
// whichever extended boot record the volume uses.
func (b *BootSector) SectorsPerFAT() uint32 {
	if n := b.sectorsPerFAT16(); n != 0 {
		return uint32(n)
	}
	return b.sectorsPerFAT32()
}

// RootCluster is the FAT32 root directory's starting cluster. It is only
// meaningful when FatType() reports Fat32.
func (b *BootSector) RootCluster() ClusterID {
	return ClusterID(binary.LittleEndian.Uint32(b.raw[offFatSpecific+offFat32RootCluster:]))
}

// RootDirSectors is the number of sectors the fixed-size FAT12/FAT16 root
// directory occupies. It is 0 on FAT32.
func (b *BootSector) RootDirSectors() uint32 {
	bps := uint32(b.BytesPerSector())
	entries := uint32(b.RootEntries())
	return (entries*32 + bps - 1) / bps
}

// FirstDataSector is the sector number where cluster 2 begins: past the
// reserved region, every FAT copy, and (for FAT12/16) the root directory.
func (b *BootSector) FirstDataSector() uint32 {
	return uint32(b.ReservedSectors()) + uint32(b.NumFATs())*b.SectorsPerFAT() + b.RootDirSectors()
}

// ClusterToSector converts a data cluster number to its starting sector.
func (b *BootSector) ClusterToSector(cluster ClusterID) uint32 {
	return (uint32(cluster)-2)*uint32(b.SectorsPerCluster()) + b.FirstDataSector()
}

// FatType determines the volume's FAT variant from its cluster count, as
// mandated by the Microsoft FAT specification: the type is never taken
// from any label, only from how many clusters the data region holds.
func (b *BootSector) FatType() (FatType, *kernel.Error) {
	total := b.TotalSectors()
	overhead := b.FirstDataSector()
	if overhead >= total {
		return 0, ErrInvalidGeometry
	}
	spc := uint32(b.SectorsPerCluster())
	if spc == 0 {
		return 0, ErrInvalidGeometry
	}

	dataSectors := total - overhead
	countOfClusters := dataSectors / spc

	switch {
	case countOfClusters < 4085:
		return Fat12, nil
	case countOfClusters < 65525:
		return Fat16, nil
	default:
		return Fat32, nil
	}
}
