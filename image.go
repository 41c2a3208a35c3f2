// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package mfs

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/st3fan/diskcopy"
	"github.com/therootcompany/xz"
)

// OpenImage opens a disk image file, seeing through the containers
// floppy images commonly travel in: gzip, bzip2, xz and DiskCopy 4.2.
// Compressed images are small enough to decompress into memory whole.
// Use Open when the image needs an explicit byte offset instead.
func OpenImage(name string, flags Flags) (*Volume, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	r, direct, err := unwrapImage(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !direct {
		f.Close()
		f = nil
	}

	v, err := New(r, 0, flags)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f != nil {
		v.closer = f
	}
	return v, nil
}

// unwrapImage sniffs the container format. direct means the returned
// reader is the file itself, which must outlive the volume.
func unwrapImage(f *os.File) (r io.ReaderAt, direct bool, err error) {
	var head [16]byte
	if n, _ := f.ReadAt(head[:], 0); n < len(head) {
		return f, true, nil // shorter than any container header
	}
	at := func(s string, o int) bool { return string(head[o:o+len(s)]) == s }

	switch {
	case at("\x1f\x8b", 0):
		slog.Debug("gzip container", "image", f.Name())
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, false, err
		}
		return slurp(zr)
	case at("BZh", 0):
		slog.Debug("bzip2 container", "image", f.Name())
		return slurp(bzip2.NewReader(f))
	case at("\xfd7zXZ\x00", 0):
		slog.Debug("xz container", "image", f.Name())
		zr, err := xz.NewReader(f, xz.DefaultDictMax)
		if err != nil {
			return nil, false, err
		}
		return slurp(zr)
	}

	// DiskCopy 4.2: version word 0x0100 at 0x52, sane Pascal name length
	var dc [0x54]byte
	if n, _ := f.ReadAt(dc[:], 0); n == len(dc) && dc[0] <= 63 && dc[0x52] == 0x01 && dc[0x53] == 0x00 {
		slog.Debug("DiskCopy 4.2 container", "image", f.Name())
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, false, err
		}
		img, err := diskcopy.NewImage(f)
		if err != nil {
			return nil, false, err
		}
		return slurp(img)
	}

	return f, true, nil
}

func slurp(r io.Reader) (io.ReaderAt, bool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return bytes.NewReader(data), false, nil
}
