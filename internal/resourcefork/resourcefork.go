// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package resourcefork reads the classic Mac resource-fork format. The
// MFS layer uses it to pull FCMT comments and FOBJ folder descriptions
// out of a volume's Desktop file, but it works on any resource fork,
// bare or wrapped in an AppleDouble header.
package resourcefork

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
)

var ErrFormat = errors.New("not a valid resource fork")

// Type is a four-character resource type code.
type Type [4]byte

func TypeOf(s string) Type {
	var t Type
	copy(t[:], s)
	return t
}

func (t Type) String() string { return string(t[:]) }

// Attr identifies one resource within a type.
type Attr struct {
	ID   int16
	Name []byte // MacRoman, nil if unnamed; borrowed from the map
}

// A File is an open resource fork with its map parsed. Resource bodies
// stay on the backing reader until Read.
type File struct {
	r        io.ReaderAt
	data     int64 // offset of the data section within r
	dataSize int64
	typeList []byte
	nameList []byte
}

// New parses the resource map of the fork at r.
func New(r io.ReaderAt) (*File, error) {
	base, err := forkOffset(r)
	if err != nil {
		return nil, err
	}

	var header [16]byte
	if n, err := r.ReadAt(header[:], base); n != len(header) {
		return nil, readErr(err)
	}
	if binary.BigEndian.Uint32(header[0:]) != 256 {
		return nil, ErrFormat
	}
	dataOffset := base + int64(binary.BigEndian.Uint32(header[0:]))
	mapOffset := base + int64(binary.BigEndian.Uint32(header[4:]))
	dataSize := int64(binary.BigEndian.Uint32(header[8:]))
	mapSize := int64(binary.BigEndian.Uint32(header[12:]))
	if mapSize < 30 {
		return nil, ErrFormat
	}

	rmap := make([]byte, mapSize)
	if n, err := r.ReadAt(rmap, mapOffset); n != len(rmap) {
		return nil, readErr(err)
	}
	tlo := int(binary.BigEndian.Uint16(rmap[24:]))
	nlo := int(binary.BigEndian.Uint16(rmap[26:]))
	if len(rmap) < tlo+2 || len(rmap) < nlo {
		return nil, ErrFormat
	}

	return &File{
		r:        r,
		data:     dataOffset,
		dataSize: dataSize,
		typeList: rmap[tlo:],
		nameList: rmap[nlo:],
	}, nil
}

// refList returns the 12-byte reference entries for one type, or nil.
func (f *File) refList(t Type) []byte {
	n := int(binary.BigEndian.Uint16(f.typeList[0:])) + 1
	if len(f.typeList) < 2+8*n {
		return nil
	}
	for i := 0; i < n; i++ {
		te := f.typeList[2+8*i:][:8]
		if *(*[4]byte)(te[:4]) != t {
			continue
		}
		cnt := int(binary.BigEndian.Uint16(te[4:])) + 1
		off := int(binary.BigEndian.Uint16(te[6:])) // from the start of the type list
		if off < 0 || len(f.typeList) < off+12*cnt {
			return nil
		}
		return f.typeList[off : off+12*cnt]
	}
	return nil
}

// List enumerates the resources of one type, in map order. It returns nil
// when the file holds no resource of that type.
func (f *File) List(t Type) []Attr {
	rl := f.refList(t)
	if len(rl) < 12 {
		return nil
	}
	ret := make([]Attr, 0, len(rl)/12)
	for ; len(rl) >= 12; rl = rl[12:] {
		a := Attr{ID: int16(binary.BigEndian.Uint16(rl[0:]))}
		if nameof := int(int16(binary.BigEndian.Uint16(rl[2:]))); nameof >= 0 && nameof < len(f.nameList) {
			ne := f.nameList[nameof:]
			if nlen := int(ne[0]); len(ne) >= 1+nlen {
				a.Name = ne[1 : 1+nlen]
			}
		}
		ret = append(ret, a)
	}
	return ret
}

// Read returns the full body of one resource, or fs.ErrNotExist.
func (f *File) Read(t Type, id int16) ([]byte, error) {
	for rl := f.refList(t); len(rl) >= 12; rl = rl[12:] {
		if int16(binary.BigEndian.Uint16(rl[0:])) != id {
			continue
		}
		dataof := f.data + int64(binary.BigEndian.Uint32(rl[4:])&0xffffff)
		if dataof+4 > f.data+f.dataSize {
			return nil, ErrFormat
		}
		var szb [4]byte
		if n, err := f.r.ReadAt(szb[:], dataof); n != len(szb) {
			return nil, readErr(err)
		}
		size := int64(binary.BigEndian.Uint32(szb[:]))
		if size > f.dataSize {
			return nil, ErrFormat
		}
		body := make([]byte, size)
		if n, err := f.r.ReadAt(body, dataof+4); int64(n) != size {
			return nil, readErr(err)
		}
		return body, nil
	}
	return nil, fs.ErrNotExist
}

// forkOffset sees through an AppleDouble wrapper to the resource fork
// proper, returning 0 for a bare fork.
func forkOffset(r io.ReaderAt) (int64, error) {
	var head [26]byte
	if n, err := r.ReadAt(head[:], 0); n != len(head) {
		return 0, readErr(err)
	}
	if string(head[:3]) != "\x00\x05\x16" {
		return 0, nil // bare fork
	}
	nrec := binary.BigEndian.Uint16(head[24:])
	recList := make([]byte, 12*int(nrec))
	if n, err := r.ReadAt(recList, 26); n != len(recList) {
		return 0, readErr(err)
	}
	for ; len(recList) > 0; recList = recList[12:] {
		if binary.BigEndian.Uint32(recList) == 2 {
			return int64(binary.BigEndian.Uint32(recList[4:])), nil
		}
	}
	return 0, ErrFormat // AppleDouble without a resource fork record
}

func readErr(err error) error {
	if err == nil || err == io.EOF {
		return ErrFormat
	}
	return err
}
