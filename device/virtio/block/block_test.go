package block

import (
	"encoding/binary"
	"testing"

	blockdev "github.com/davidlandreman/corekernel/device/block"
)

func TestBuildHeaderEncodesTypeAndSector(t *testing.T) {
	header := buildHeader(reqTypeOut, 1234)

	if got := binary.LittleEndian.Uint32(header[0:]); got != reqTypeOut {
		t.Fatalf("expected type %d, got %d", reqTypeOut, got)
	}
	if got := binary.LittleEndian.Uint32(header[4:]); got != 0 {
		t.Fatalf("expected reserved field to be zero, got %d", got)
	}
	if got := binary.LittleEndian.Uint64(header[8:]); got != 1234 {
		t.Fatalf("expected sector 1234, got %d", got)
	}
	if len(header) != headerSize {
		t.Fatalf("expected header length %d, got %d", headerSize, len(header))
	}
}

func TestDecodeStatusOKReturnsNilError(t *testing.T) {
	if err := decodeStatus(statusOK); err != nil {
		t.Fatalf("expected nil error for statusOK, got %v", err)
	}
}

func TestDecodeStatusErrorReturnsErrRequestFailed(t *testing.T) {
	if err := decodeStatus(statusIOErr); err != ErrRequestFailed {
		t.Fatalf("expected ErrRequestFailed for statusIOErr, got %v", err)
	}
	if err := decodeStatus(statusUnsupp); err != ErrRequestFailed {
		t.Fatalf("expected ErrRequestFailed for statusUnsupp, got %v", err)
	}
}

func TestReadBlocksRejectsUndersizedBufferBeforeTouchingDevice(t *testing.T) {
	d := &Device{}
	buf := make([]byte, sectorSize-1)
	if err := d.ReadBlocks(0, 1, buf); err == nil {
		t.Fatal("expected an error for an undersized buffer")
	}
}

func TestWriteBlocksRejectsWritesOnReadOnlyDeviceBeforeTouchingDevice(t *testing.T) {
	d := &Device{readOnly: true}
	buf := make([]byte, sectorSize)
	if err := d.WriteBlocks(0, 1, buf); err != blockdev.ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}
