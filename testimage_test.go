// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// In-memory 400K volume and Desktop-file builders for the tests. The
// geometry matches a real MFS floppy: 1024-byte allocation blocks,
// block 2 at byte 0x2000.

package mfs

import (
	"bytes"
	"encoding/binary"
	"testing"
)

const (
	testAlBlkSiz = 1024
	testAlBlSt   = 16 // allocation block 2 at byte 16*512
	testDirSt    = 12
	testDirLen   = 4
	testNmAlBlks = 391
)

type testFork struct {
	stBlk uint16
	lgLen uint32
	pyLen uint32
}

type testFile struct {
	name    string
	typ     string
	creator string
	folder  int16
	num     uint32
	data    testFork
	rsrc    testFork
}

type testImage struct {
	volName string
	files   []testFile
	vabm    map[uint16]uint16
	blocks  map[uint16][]byte
}

// setFork lays data into consecutive allocation blocks from start and
// chains them in the block map.
func (t *testImage) setFork(start uint16, data []byte) testFork {
	if t.vabm == nil {
		t.vabm = map[uint16]uint16{}
	}
	if t.blocks == nil {
		t.blocks = map[uint16][]byte{}
	}
	n := (len(data) + testAlBlkSiz - 1) / testAlBlkSiz
	for i := 0; i < n; i++ {
		bk := start + uint16(i)
		end := min((i+1)*testAlBlkSiz, len(data))
		t.blocks[bk] = data[i*testAlBlkSiz : end]
		if i == n-1 {
			t.vabm[bk] = alBkLast
		} else {
			t.vabm[bk] = bk + 1
		}
	}
	return testFork{stBlk: start, lgLen: uint32(len(data)), pyLen: uint32(n * testAlBlkSiz)}
}

func (t *testImage) build() []byte {
	be := binary.BigEndian
	img := make([]byte, int(testAlBlSt)*logicalBlockSize+(testNmAlBlks+2)*testAlBlkSiz)

	mdb := img[2*logicalBlockSize:]
	be.PutUint16(mdb[0:], signature)
	be.PutUint32(mdb[2:], 0x98AC2B00) // creation date
	be.PutUint32(mdb[6:], 0)          // last backup
	be.PutUint16(mdb[10:], 0)         // attributes
	be.PutUint16(mdb[12:], uint16(len(t.files)))
	be.PutUint16(mdb[14:], testDirSt)
	be.PutUint16(mdb[16:], testDirLen)
	be.PutUint16(mdb[18:], testNmAlBlks)
	be.PutUint32(mdb[20:], testAlBlkSiz)
	be.PutUint32(mdb[24:], 8192) // clump size
	be.PutUint16(mdb[28:], testAlBlSt)
	be.PutUint32(mdb[30:], 100) // next file number
	be.PutUint16(mdb[34:], 0)   // free blocks
	mdb[36] = byte(len(t.volName))
	copy(mdb[37:], t.volName)

	// 12-bit packed map immediately after the MDB
	vb := mdb[mdbSize:]
	for n := uint16(2); n < testNmAlBlks+2; n++ {
		e := t.vabm[n]
		off := int(n-2) * 3 / 2
		if n%2 == 0 {
			vb[off] = byte(e >> 4)
			vb[off+1] |= byte(e&0xF) << 4
		} else {
			vb[off] |= byte(e >> 8 & 0xF)
			vb[off+1] = byte(e)
		}
	}

	// directory records, 16-bit aligned, never straddling a block
	off := testDirSt * logicalBlockSize
	blockEnd := off + logicalBlockSize
	for _, f := range t.files {
		rec := encodeTestRecord(f)
		if off+len(rec) > blockEnd {
			off = blockEnd
			blockEnd += logicalBlockSize
		}
		copy(img[off:], rec)
		off += len(rec) + len(rec)%2
	}

	albase := int(testAlBlSt)*logicalBlockSize - 2*testAlBlkSiz
	for bk, data := range t.blocks {
		copy(img[albase+int(bk)*testAlBlkSiz:], data)
	}
	return img
}

func encodeTestRecord(f testFile) []byte {
	be := binary.BigEndian
	b := make([]byte, recordFixedSize+len(f.name))
	b[0] = 0x80 // in use
	copy(b[2:6], f.typ)
	copy(b[6:10], f.creator)
	be.PutUint16(b[16:], uint16(f.folder))
	be.PutUint32(b[18:], f.num)
	be.PutUint16(b[22:], f.data.stBlk)
	be.PutUint32(b[24:], f.data.lgLen)
	be.PutUint32(b[28:], f.data.pyLen)
	be.PutUint16(b[32:], f.rsrc.stBlk)
	be.PutUint32(b[34:], f.rsrc.lgLen)
	be.PutUint32(b[38:], f.rsrc.pyLen)
	be.PutUint32(b[42:], 0x98AC2C00) // creation date
	be.PutUint32(b[46:], 0x98AC2D00) // modification date
	b[50] = byte(len(f.name))
	copy(b[51:], f.name)
	return b
}

type testResource struct {
	typ  string
	id   int16
	name string
	body []byte
}

// buildResourceFork assembles a minimal but correct resource fork:
// header, data section, then the map with type list, reference lists
// and name list.
func buildResourceFork(resources []testResource) []byte {
	be := binary.BigEndian

	var types []string
	byType := map[string][]testResource{}
	for _, r := range resources {
		if _, ok := byType[r.typ]; !ok {
			types = append(types, r.typ)
		}
		byType[r.typ] = append(byType[r.typ], r)
	}

	var data, names bytes.Buffer
	var typeEntries, refs []byte
	refBase := 2 + 8*len(types)
	cum := 0
	for _, tname := range types {
		rs := byType[tname]
		te := make([]byte, 8)
		copy(te[0:4], tname)
		be.PutUint16(te[4:], uint16(len(rs)-1))
		be.PutUint16(te[6:], uint16(refBase+12*cum))
		typeEntries = append(typeEntries, te...)
		for _, r := range rs {
			ref := make([]byte, 12)
			be.PutUint16(ref[0:], uint16(r.id))
			if r.name == "" {
				be.PutUint16(ref[2:], 0xFFFF)
			} else {
				be.PutUint16(ref[2:], uint16(names.Len()))
				names.WriteByte(byte(len(r.name)))
				names.WriteString(r.name)
			}
			be.PutUint32(ref[4:], uint32(data.Len()))
			refs = append(refs, ref...)

			var szb [4]byte
			be.PutUint32(szb[:], uint32(len(r.body)))
			data.Write(szb[:])
			data.Write(r.body)
			cum++
		}
	}

	typeListSize := 2 + len(typeEntries) + len(refs)
	var m bytes.Buffer
	mapHdr := make([]byte, 28)
	be.PutUint16(mapHdr[24:], 28)
	be.PutUint16(mapHdr[26:], uint16(28+typeListSize))
	m.Write(mapHdr)
	var cnt [2]byte
	be.PutUint16(cnt[:], uint16(len(types)-1))
	m.Write(cnt[:])
	m.Write(typeEntries)
	m.Write(refs)
	m.Write(names.Bytes())

	out := make([]byte, 256, 256+data.Len()+m.Len())
	be.PutUint32(out[0:], 256)
	be.PutUint32(out[4:], uint32(256+data.Len()))
	be.PutUint32(out[8:], uint32(data.Len()))
	be.PutUint32(out[12:], uint32(m.Len()))
	out = append(out, data.Bytes()...)
	out = append(out, m.Bytes()...)
	return out
}

func fobjBody(parent int16, crDat, mdDat uint32, flags uint16, locV, locH int16) []byte {
	be := binary.BigEndian
	b := make([]byte, 40)
	be.PutUint16(b[0:], 8) // fdType: folder
	be.PutUint16(b[2:], uint16(locV))
	be.PutUint16(b[4:], uint16(locH))
	be.PutUint16(b[12:], uint16(parent))
	be.PutUint32(b[26:], crDat)
	be.PutUint32(b[30:], mdDat)
	be.PutUint16(b[38:], flags)
	return b
}

// patternData returns n bytes of a recognizable per-fork pattern.
func patternData(seed byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// newTestImage builds the canonical fixture shared by most tests:
//
//	TestVol
//	├── TestFile        100-byte data fork
//	├── Both            1500-byte data fork, 50-byte resource fork
//	├── Desktop         resource fork holding FCMT and FOBJ resources
//	└── Apps (id 5)
//	    ├── Hello       10-byte data fork
//	    └── Games (id 6, empty)
func newTestImage() *testImage {
	img := &testImage{volName: "TestVol"}

	desktop := buildResourceFork([]testResource{
		{typ: "FCMT", id: CommentID([]byte("TestFile")), body: pascal("File comment")},
		{typ: "FCMT", id: CommentID([]byte("TestVol")), body: pascal("Disk comment")},
		{typ: "FOBJ", id: 0, name: "TestVol", body: fobjBody(FolderDesktop, 0x98AC2B00, 0x98AC2B00, 0, 0, 0)},
		{typ: "FOBJ", id: 5, name: "Apps", body: fobjBody(FolderRoot, 0x98AC2E00, 0x98AC2F00, 0x0100, 40, 60)},
		{typ: "FOBJ", id: 6, name: "Games", body: fobjBody(5, 0x98AC2E00, 0x98AC2F00, 0, 0, 0)},
	})

	img.files = []testFile{
		{
			name: "TestFile", typ: "TEXT", creator: "EDIT", folder: FolderRoot, num: 1,
			data: img.setFork(2, patternData(0x11, 100)),
		},
		{
			name: "Both", typ: "APPL", creator: "BOTH", folder: FolderRoot, num: 2,
			data: img.setFork(5, patternData(0x22, 1500)),
			rsrc: img.setFork(3, patternData(0x33, 50)),
		},
		{
			name: "Hello", typ: "TEXT", creator: "EDIT", folder: 5, num: 3,
			data: img.setFork(4, patternData(0x44, 10)),
		},
		{
			name: "Desktop", typ: "FNDR", creator: "ERIK", folder: FolderRoot, num: 4,
			rsrc: img.setFork(8, desktop),
		},
	}
	return img
}

func pascal(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func newTestVolume(t *testing.T, flags Flags) *Volume {
	t.Helper()
	v, err := New(bytes.NewReader(newTestImage().build()), 0, flags)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
