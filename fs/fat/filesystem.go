package fat

import (
	"strings"

	"github.com/davidlandreman/corekernel/device/block"
	"github.com/davidlandreman/corekernel/kernel"
)

// maxRootEntries bounds how many directory entries ListRoot and FindFile
// will scan, guarding against a corrupt or unterminated root directory.
const maxRootEntries = 256

// FileHandle identifies a file or directory found in the root directory:
// its formatted name, size, starting cluster and whether it is itself a
// directory.
type FileHandle struct {
	Name         string
	Size         uint32
	FirstCluster ClusterID
	IsDirectory  bool
}

// FatFilesystem provides read-only access to a FAT12/16/32 volume backed
// by a device/block.Device. The root directory is the only directory
// this driver lists or reads files from.
type FatFilesystem struct {
	device            block.Device
	fatType           FatType
	bytesPerSector    uint32
	sectorsPerCluster uint32
	firstDataSector   uint32
	fatStartSector    uint32
	rootDirStart      uint32
	rootDirSectors    uint32
	rootCluster       ClusterID
}

// New reads and validates dev's boot sector and determines its FAT
// variant.
func New(dev block.Device) (*FatFilesystem, *kernel.Error) {
	sector := make([]byte, 512)
	if err := dev.ReadBlocks(0, 1, sector); err != nil {
		return nil, err
	}

	bs, err := ParseBootSector(sector)
	if err != nil {
		return nil, err
	}

	fatType, err := bs.FatType()
	if err != nil {
		return nil, err
	}

	rootCluster := ClusterRootFAT16
	if fatType == Fat32 {
		rootCluster = bs.RootCluster()
	}

	return &FatFilesystem{
		device:            dev,
		fatType:           fatType,
		bytesPerSector:    uint32(bs.BytesPerSector()),
		sectorsPerCluster: uint32(bs.SectorsPerCluster()),
		firstDataSector:   bs.FirstDataSector(),
		fatStartSector:    uint32(bs.ReservedSectors()),
		rootDirStart:      uint32(bs.ReservedSectors()) + uint32(bs.NumFATs())*bs.SectorsPerFAT(),
		rootDirSectors:    bs.RootDirSectors(),
		rootCluster:       rootCluster,
	}, nil
}

// FatType reports the volume's detected FAT variant.
func (fs *FatFilesystem) FatType() FatType { return fs.fatType }

func (fs *FatFilesystem) clusterToSector(cluster ClusterID) uint32 {
	return (uint32(cluster)-2)*fs.sectorsPerCluster + fs.firstDataSector
}

func (fs *FatFilesystem) clusterSizeBytes() uint32 {
	return fs.sectorsPerCluster * fs.bytesPerSector
}

func (fs *FatFilesystem) readCluster(cluster ClusterID, buf []byte) *kernel.Error {
	sector := fs.clusterToSector(cluster)
	return fs.device.ReadBlocks(uint64(sector), fs.sectorsPerCluster, buf)
}

func (fs *FatFilesystem) fatTable() *FatTable {
	return &FatTable{
		device:         fs.device,
		fatType:        fs.fatType,
		fatStartSector: fs.fatStartSector,
		bytesPerSector: fs.bytesPerSector,
	}
}

// ListRoot returns up to maxRootEntries files and directories found in
// the volume's root directory.
func (fs *FatFilesystem) ListRoot() ([]FileHandle, *kernel.Error) {
	var entries []FileHandle

	collect := func(buf []byte) {
		it := NewDirectoryIterator(buf)
		for len(entries) < maxRootEntries {
			entry, ok := it.Next()
			if !ok {
				return
			}
			if entry.Attributes().IsVolumeID() {
				continue
			}
			entries = append(entries, FileHandle{
				Name:         entry.FormatName(),
				Size:         entry.FileSize(),
				FirstCluster: entry.FirstCluster(),
				IsDirectory:  entry.Attributes().IsDirectory(),
			})
		}
	}

	if fs.fatType == Fat32 {
		buf := make([]byte, fs.clusterSizeBytes())
		table := fs.fatTable()
		err := table.FollowChain(fs.rootCluster, func(cluster ClusterID) *kernel.Error {
			if len(entries) >= maxRootEntries {
				return nil
			}
			if err := fs.readCluster(cluster, buf); err != nil {
				return err
			}
			collect(buf)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	}

	buf := make([]byte, fs.rootDirSectors*fs.bytesPerSector)
	if err := fs.device.ReadBlocks(uint64(fs.rootDirStart), fs.rootDirSectors, buf); err != nil {
		return nil, err
	}
	collect(buf)
	return entries, nil
}

// FindFile locates a file by name in the root directory. Only bare
// filenames are supported; any path containing a '/' beyond a single
// leading one is rejected, since this driver has no subdirectory
// traversal.
func (fs *FatFilesystem) FindFile(path string) (FileHandle, *kernel.Error) {
	name := strings.TrimPrefix(path, "/")
	if name == "" || strings.Contains(name, "/") {
		return FileHandle{}, ErrUnsupportedPath
	}

	entries, err := fs.ListRoot()
	if err != nil {
		return FileHandle{}, err
	}

	for _, e := range entries {
		if strings.EqualFold(e.Name, name) {
			return e, nil
		}
	}
	return FileHandle{}, ErrNotFound
}

// ReadFile copies the full contents of handle into buffer, which must be
// at least handle.Size bytes.
func (fs *FatFilesystem) ReadFile(handle FileHandle, buffer []byte) *kernel.Error {
	if handle.IsDirectory {
		return ErrIsDirectory
	}
	if uint32(len(buffer)) < handle.Size {
		return ErrBufferTooSmall
	}
	if handle.Size == 0 {
		return nil
	}

	scratch := make([]byte, fs.clusterSizeBytes())
	table := fs.fatTable()

	var written uint32
	return table.FollowChain(handle.FirstCluster, func(cluster ClusterID) *kernel.Error {
		if err := fs.readCluster(cluster, scratch); err != nil {
			return err
		}

		remaining := handle.Size - written
		n := uint32(len(scratch))
		if remaining < n {
			n = remaining
		}
		copy(buffer[written:written+n], scratch[:n])
		written += n
		return nil
	})
}
