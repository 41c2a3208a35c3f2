// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package mfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/elliotnunn/mfs/internal/appledouble"
)

// ForkMode selects which byte stream of a file a Fork reads.
type ForkMode int

const (
	// DataFork is the file's data fork. A file without one reads as empty.
	DataFork ForkMode = iota
	// ResourceFork is the file's resource fork. Opening fails when the
	// file has none.
	ResourceFork
	// AppleDoubleFork is the resource fork behind a synthesized
	// 0x300-byte AppleDouble header carrying the real name, dates,
	// Finder info and comment.
	AppleDoubleFork
)

func (m ForkMode) String() string {
	switch m {
	case DataFork:
		return "data"
	case ResourceFork:
		return "rsrc"
	case AppleDoubleFork:
		return "appledouble"
	}
	return fmt.Sprintf("ForkMode(%d)", int(m))
}

// Guards against stale handles; cleared by Close.
const forkSignature = 0x1337D00D

// A Fork is an open handle on one byte stream of a file (or on the
// synthesized AppleDouble header of a folder). It satisfies io.Reader,
// io.ReaderAt and io.Seeker, and pins its Volume until closed.
type Fork struct {
	sig    uint32
	vol    *Volume
	rec    *Record // nil for a folder header
	mode   ForkMode
	lgLen  uint32
	chain  []uint16 // allocation blocks, in file order
	header []byte   // AppleDouble prefix, owned by the fork
	pos    int64
}

var (
	errWhence = errors.New("seek: invalid whence")
	errOffset = errors.New("seek: invalid offset")
)

// OpenFork opens one fork of a directory record. Resource and
// AppleDouble modes read the resource fork; only Resource mode requires
// that one exists.
func (v *Volume) OpenFork(rec *Record, mode ForkMode) (*Fork, error) {
	if rec == nil {
		return nil, fs.ErrNotExist
	}
	if mode == ResourceFork && rec.Res.StBlk == 0 {
		return nil, fmt.Errorf("%s has no resource fork: %w", rec.Name(), fs.ErrNotExist)
	}

	info := rec.Data
	if mode != DataFork {
		info = rec.Res
	}

	fk := &Fork{vol: v, rec: rec, mode: mode, lgLen: info.LgLen}
	if err := fk.materialize(info); err != nil {
		return nil, err
	}
	if mode == AppleDoubleFork {
		fk.header = v.fileHeader(rec, fk.lgLen)
	}

	v.openForks++
	fk.sig = forkSignature
	return fk, nil
}

// OpenFolderHeader opens an AppleDouble header describing a folder. The
// resulting fork has no resource fork behind it, so its length is
// exactly the header's.
func (v *Volume) OpenFolderHeader(f *Folder) (*Fork, error) {
	if f == nil {
		return nil, fs.ErrNotExist
	}

	h := appledouble.NewHeader()
	h.RealName(f.name)
	h.FileInfo(f.CrDat, f.MdDat, 0)
	var fi [16]byte
	binary.BigEndian.PutUint16(fi[8:], f.Flags)
	binary.BigEndian.PutUint16(fi[10:], uint16(f.LocV))
	binary.BigEndian.PutUint16(fi[12:], uint16(f.LocH))
	h.FinderInfo(fi)
	if c := v.rawComment(f.name); len(c) > 0 {
		h.Comment(c)
	}

	fk := &Fork{vol: v, mode: AppleDoubleFork, header: h.Bytes()}
	v.openForks++
	fk.sig = forkSignature
	return fk, nil
}

// materialize follows the block map from the fork's first allocation
// block. The chain must reach the terminator in exactly PyLen/AlBlkSiz
// steps, or the map and the directory disagree.
func (fk *Fork) materialize(info ForkInfo) error {
	v := fk.vol
	nbk := int(info.PyLen / v.mdb.AlBlkSiz)
	if nbk == 0 {
		return nil
	}

	chain := make([]uint16, nbk)
	chain[0] = info.StBlk
	for i := 1; i < nbk; i++ {
		last := chain[i-1]
		if int(last) < 2 || int(last) >= len(v.vabm) {
			return fk.chainError(last)
		}
		chain[i] = v.vabm[last]
	}
	last := chain[nbk-1]
	if int(last) < 2 || int(last) >= len(v.vabm) || v.vabm[last] != alBkLast {
		return fk.chainError(last)
	}
	fk.chain = chain
	return nil
}

func (fk *Fork) chainError(at uint16) error {
	name := "?"
	if fk.rec != nil {
		name = fk.rec.Name()
	}
	slog.Warn("invalid allocation block map", "file", name, "block", at)
	return fmt.Errorf("%s: %w", name, ErrCorruptChain)
}

// fileHeader builds the AppleDouble header for a file's resource fork.
func (v *Volume) fileHeader(rec *Record, rsrcLen uint32) []byte {
	h := appledouble.NewHeader()
	if rsrcLen != 0 {
		h.ResourceFork(rsrcLen)
	}
	h.RealName(rec.name)
	h.FileInfo(rec.CrDat, rec.MdDat, uint32(rec.Flags&0x7F))
	h.FinderInfo(rec.FinderInfo)
	if c := v.rawComment(rec.name); len(c) > 0 {
		h.Comment(c)
	}
	return h.Bytes()
}

// Record returns the directory record the fork was opened from, or nil
// for a folder header.
func (fk *Fork) Record() *Record { return fk.rec }

func (fk *Fork) Mode() ForkMode { return fk.mode }

// Size returns the fork's virtual length: the logical EOF, plus the
// 0x300-byte header in AppleDouble mode.
func (fk *Fork) Size() int64 {
	if fk.mode == AppleDoubleFork {
		return appledouble.HeaderLength + int64(fk.lgLen)
	}
	return int64(fk.lgLen)
}

// ReadAt reads from the fork at a fixed offset, with io.ReaderAt
// semantics: a read clipped by EOF returns the short count and io.EOF.
func (fk *Fork) ReadAt(p []byte, off int64) (int, error) {
	if fk.sig != forkSignature {
		return 0, ErrClosedFork
	}
	if off < 0 {
		return 0, errOffset
	}
	if fk.mode == AppleDoubleFork {
		return fk.readAtSpliced(p, off)
	}
	return fk.readAtFork(p, off)
}

// readAtFork serves Data/Resource reads block by block from the chain.
func (fk *Fork) readAtFork(p []byte, off int64) (int, error) {
	lg := int64(fk.lgLen)
	if off >= lg {
		return 0, io.EOF
	}
	short := false
	if off+int64(len(p)) > lg {
		p = p[:lg-off]
		short = true
	}

	v := fk.vol
	bs := int64(v.mdb.AlBlkSiz)
	bkn := int(off / bs)
	bkoff := off % bs
	n := 0
	for n < len(p) {
		if bkn >= len(fk.chain) {
			return n, fk.chainError(uint16(bkn))
		}
		blk, err := v.albkread(fk.chain[bkn])
		if err != nil {
			return n, err
		}
		n += copy(p[n:], blk[bkoff:])
		bkoff = 0
		bkn++
	}
	if short {
		return n, io.EOF
	}
	return n, nil
}

// readAtSpliced serves AppleDouble reads: the header first, then the
// resource fork as one contiguous stream.
func (fk *Fork) readAtSpliced(p []byte, off int64) (int, error) {
	size := fk.Size()
	if off >= size {
		return 0, io.EOF
	}
	short := false
	if off+int64(len(p)) > size {
		p = p[:size-off]
		short = true
	}

	n := 0
	if off < appledouble.HeaderLength {
		n = copy(p, fk.header[off:])
	}
	if n < len(p) {
		m, err := fk.readAtFork(p[n:], off+int64(n)-appledouble.HeaderLength)
		n += m
		if err != nil && err != io.EOF {
			return n, err
		}
	}
	if short {
		return n, io.EOF
	}
	return n, nil
}

// Read reads at the fork's virtual cursor, advancing it. Together with
// Seek this lets a resource-file reader consume a fork as a plain byte
// stream.
func (fk *Fork) Read(p []byte) (int, error) {
	n, err := fk.ReadAt(p, fk.pos)
	fk.pos += int64(n)
	return n, err
}

// Seek repositions the virtual cursor. io.SeekEnd is relative to the
// virtual length, which includes the AppleDouble prefix in that mode.
func (fk *Fork) Seek(offset int64, whence int) (int64, error) {
	if fk.sig != forkSignature {
		return 0, ErrClosedFork
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += fk.pos
	case io.SeekEnd:
		offset += fk.Size()
	default:
		return 0, errWhence
	}
	if offset < 0 {
		return 0, errOffset
	}
	fk.pos = offset
	return offset, nil
}

// Tell returns the virtual cursor position.
func (fk *Fork) Tell() int64 { return fk.pos }

// Close releases the fork and unpins the Volume. Closing twice returns
// ErrClosedFork.
func (fk *Fork) Close() error {
	if fk.sig != forkSignature {
		return ErrClosedFork
	}
	fk.sig = 0
	fk.header = nil
	fk.chain = nil
	fk.vol.openForks--
	return nil
}
