// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package mfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	tinylfu "github.com/dgryski/go-tinylfu"

	"github.com/elliotnunn/mfs/internal/resourcefork"
)

// Flags selects optional behavior of Open.
type Flags uint32

const (
	// LoadFolders reads FOBJ resources from the Desktop file and builds
	// the folder tree. Without it, folder lookups return nil and the path
	// resolver sees a flat volume.
	LoadFolders Flags = 1 << iota
)

// A Volume is an open MFS volume. It owns the decoded volume header, the
// allocation-block map and the directory; Forks opened from it pin it
// until they are closed.
type Volume struct {
	r       io.ReaderAt
	closer  io.Closer
	offset  int64 // byte offset of block 0 within r
	alBkOff int64 // byte offset of allocation block 0, relative to block 0
	mdb     masterDirectoryBlock
	name    []byte // volume name, MacRoman
	vabm    []uint16
	dir     []*Record
	folders []*Folder
	fsys    *FS

	desktop   *resourcefork.File
	noDesktop bool // Desktop absent or unreadable; don't retry

	openForks int
	cache     *tinylfu.T[uint16, []byte]
}

// The fixed 64-byte record at logical block 2. Field names follow Inside
// Macintosh. All fields are big-endian on disk.
type masterDirectoryBlock struct {
	SigWord  uint16   // always 0xD2D7
	CrDate   uint32   // volume initialization date
	LsBkUp   uint32   // last backup date
	Atrb     uint16   // volume attributes
	NmFls    uint16   // number of files in the directory
	DirSt    uint16   // first logical block of the directory
	BlLen    uint16   // length of the directory in blocks
	NmAlBlks uint16   // allocation blocks on the volume
	AlBlkSiz uint32   // allocation block size, a multiple of 512
	ClpSiz   uint32   // clump size
	AlBlSt   uint16   // location of allocation block 2, in 512-byte units
	NxtFNum  uint32   // next unused file number
	FreeBks  uint16   // unused allocation blocks
	VN       [28]byte // volume name, Pascal string
}

const mdbSize = 64

// Open opens the file at name and reads the MFS volume found offset bytes
// into it. The offset exists to skip disk-image container headers; use
// OpenImage to have common containers detected instead.
func Open(name string, offset int64, flags Flags) (*Volume, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	v, err := New(f, offset, flags)
	if err != nil {
		f.Close()
		return nil, err
	}
	v.closer = f
	return v, nil
}

// New reads the MFS volume found offset bytes into r. Closing the
// returned Volume does not close r.
func New(r io.ReaderAt, offset int64, flags Flags) (*Volume, error) {
	v := &Volume{r: r, offset: offset}

	blk := make([]byte, logicalBlockSize)
	if err := v.blkread(blk, 1, 2); err != nil {
		return nil, fmt.Errorf("master directory block unreadable: %w", err)
	}
	if err := binary.Read(bytes.NewReader(blk), binary.BigEndian, &v.mdb); err != nil {
		return nil, err
	}
	if v.mdb.SigWord != signature {
		return nil, fmt.Errorf("%w: signature %#04x", ErrFormat, v.mdb.SigWord)
	}
	if v.mdb.AlBlkSiz == 0 || v.mdb.AlBlkSiz%logicalBlockSize != 0 {
		return nil, fmt.Errorf("%w: allocation block size %d", ErrFormat, v.mdb.AlBlkSiz)
	}

	n := int(v.mdb.VN[0])
	if n > len(v.mdb.VN)-1 {
		n = len(v.mdb.VN) - 1
	}
	v.name = append([]byte(nil), v.mdb.VN[1:1+n]...)

	// Allocation block numbering begins at 2
	v.alBkOff = int64(v.mdb.AlBlSt)*logicalBlockSize - 2*int64(v.mdb.AlBlkSiz)

	cacheSize := max(int(v.mdb.NmAlBlks), 16)
	v.cache = tinylfu.New[uint16, []byte](cacheSize, cacheSize*10, albkHash)

	if err := v.readVABM(); err != nil {
		return nil, err
	}
	if err := v.readDirectory(); err != nil {
		return nil, err
	}
	if flags&LoadFolders != 0 {
		v.loadFolders()
	}
	return v, nil
}

// Close releases the Volume. It fails with ErrBusy while any fork is
// still open.
func (v *Volume) Close() error {
	if v.openForks > 0 {
		return fmt.Errorf("%w (%d)", ErrBusy, v.openForks)
	}
	var err error
	if v.closer != nil {
		err = v.closer.Close()
		v.closer = nil
	}
	return err
}

// blkread reads count 512-byte logical blocks starting at block first.
func (v *Volume) blkread(buf []byte, count, first int64) error {
	want := count * logicalBlockSize
	n, err := v.r.ReadAt(buf[:want], v.offset+logicalBlockSize*first)
	if int64(n) != want {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// albkread returns the contents of one allocation block, through the
// block cache. Callers must not modify the returned slice.
func (v *Volume) albkread(bk uint16) ([]byte, error) {
	if blk, ok := v.cache.Get(bk); ok {
		return blk, nil
	}
	blk := make([]byte, v.mdb.AlBlkSiz)
	n, err := v.r.ReadAt(blk, v.offset+v.alBkOff+int64(v.mdb.AlBlkSiz)*int64(bk))
	if n != len(blk) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("allocation block %d: %w", bk, err)
	}
	v.cache.Add(bk, blk)
	return blk, nil
}

func albkHash(k uint16) uint64 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], k)
	return xxhash.Sum64(b[:])
}

// Name returns the volume name. MacRoman bytes pass through unconverted.
func (v *Volume) Name() string { return string(v.name) }

// Info is a cooked view of the volume header.
type Info struct {
	Name           string
	Created        time.Time
	Backup         time.Time
	Attributes     uint16
	Files          int
	DirStart       int // logical block
	DirLen         int // logical blocks
	AllocBlocks    int
	AllocBlockSize int
	ClumpSize      int
	FreeBlocks     int
	NextFileNum    uint32
}

func (v *Volume) Info() Info {
	return Info{
		Name:           v.Name(),
		Created:        MacTime(v.mdb.CrDate),
		Backup:         MacTime(v.mdb.LsBkUp),
		Attributes:     v.mdb.Atrb,
		Files:          int(v.mdb.NmFls),
		DirStart:       int(v.mdb.DirSt),
		DirLen:         int(v.mdb.BlLen),
		AllocBlocks:    int(v.mdb.NmAlBlks),
		AllocBlockSize: int(v.mdb.AlBlkSiz),
		ClumpSize:      int(v.mdb.ClpSiz),
		FreeBlocks:     int(v.mdb.FreeBks),
		NextFileNum:    v.mdb.NxtFNum,
	}
}
