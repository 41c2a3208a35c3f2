// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// The Desktop file bridge: Finder comments (FCMT resources) and the
// synthesized folder tree (FOBJ resources). MFS has no directories on
// disk; the Finder kept the folder illusion in the Desktop resource
// file at the volume root, and this is where we reconstruct it.

package mfs

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"github.com/elliotnunn/mfs/internal/appledouble"
	"github.com/elliotnunn/mfs/internal/resourcefork"
)

var (
	fcmtType = resourcefork.TypeOf("FCMT")
	fobjType = resourcefork.TypeOf("FOBJ")
)

// Well-known folder ids.
const (
	FolderRoot     = 0  // the volume root
	FolderTemplate = -1 // "empty folder" template
	FolderDesktop  = -2 // pseudo-parent of the root; never a real folder
	FolderTrash    = -3
)

// A Folder is synthesized from one FOBJ resource in the Desktop file.
type Folder struct {
	ID      int16
	Parent  int16
	Subdirs int16 // child folders, tallied after loading
	CrDat   uint32
	MdDat   uint32
	Flags   uint16 // finder flags
	LocV    int16  // icon position
	LocH    int16
	name    []byte // MacRoman, from the resource name
}

const maxFolderName = 64

func (f *Folder) Name() string        { return string(f.name) }
func (f *Folder) NameBytes() []byte   { return f.name }
func (f *Folder) Created() time.Time  { return MacTime(f.CrDat) }
func (f *Folder) Modified() time.Time { return MacTime(f.MdDat) }

// CommentID hashes a MacRoman filename to the id of its FCMT resource.
// The Finder's hash is an xor-and-ROR.W loop with a sign flip that keeps
// every id at or below zero.
func CommentID(name []byte) int16 {
	var h uint16
	for _, b := range name {
		h ^= uint16(b)
		h = h>>1 | h<<15
		if int16(h) > 0 {
			h = uint16(-int16(h))
		}
	}
	return int16(h)
}

// Comment returns the Finder comment of a file, or of the volume itself
// when rec is nil. It returns nil when there is none (or no Desktop
// file at all).
func (v *Volume) Comment(rec *Record) []byte {
	name := v.name
	if rec != nil {
		name = rec.name
	}
	body := v.rawComment(name)
	if len(body) == 0 {
		return nil
	}
	n := int(body[0]) // Str255
	if n > len(body)-1 {
		n = len(body) - 1
	}
	return append([]byte(nil), body[1:1+n]...)
}

// rawComment returns the whole FCMT payload (length byte included),
// capped at the AppleDouble comment slot size.
func (v *Volume) rawComment(name []byte) []byte {
	d := v.desktopFile()
	if d == nil {
		return nil
	}
	body, err := d.Read(fcmtType, CommentID(name))
	if err != nil || len(body) == 0 {
		return nil
	}
	if len(body) > appledouble.CommentMax {
		body = body[:appledouble.CommentMax]
	}
	return body
}

// desktopFile opens the Desktop resource file on first use. The fork is
// read into memory so it does not pin the volume's open-fork count.
func (v *Volume) desktopFile() *resourcefork.File {
	if v.desktop == nil && !v.noDesktop {
		v.desktop = v.openDesktop()
		if v.desktop == nil {
			v.noDesktop = true
		}
	}
	return v.desktop
}

func (v *Volume) openDesktop() *resourcefork.File {
	rec := v.FindName("Desktop")
	if rec == nil || rec.Res.StBlk == 0 {
		return nil
	}
	fk, err := v.OpenFork(rec, ResourceFork)
	if err != nil {
		return nil
	}
	defer fk.Close()

	data := make([]byte, fk.Size())
	if _, err := fk.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil
	}
	d, err := resourcefork.New(bytes.NewReader(data))
	if err != nil {
		slog.Debug("unreadable Desktop file", "volume", v.Name(), "err", err)
		return nil
	}
	return d
}

// loadFolders builds the folder table from FOBJ resources: the resource
// id is the folder id, the resource name is the folder name, and the
// body carries parent, dates, flags and icon position.
func (v *Volume) loadFolders() {
	d := v.desktopFile()
	if d == nil {
		return
	}
	list := d.List(fobjType)
	if len(list) == 0 {
		return
	}

	folders := make([]*Folder, 0, len(list))
	for _, a := range list {
		f := &Folder{ID: a.ID}
		name := a.Name
		if len(name) > maxFolderName {
			name = name[:maxFolderName]
		}
		f.name = append([]byte(nil), name...)

		// fdType i16, icon v/h i16 at 2/4, parent i16 at 12,
		// crDat/mdDat u32 at 26/30, finder flags u16 at 38
		if body, err := d.Read(fobjType, a.ID); err == nil && len(body) >= 40 {
			f.LocV = int16(binary.BigEndian.Uint16(body[2:]))
			f.LocH = int16(binary.BigEndian.Uint16(body[4:]))
			f.Parent = int16(binary.BigEndian.Uint16(body[12:]))
			f.CrDat = binary.BigEndian.Uint32(body[26:])
			f.MdDat = binary.BigEndian.Uint32(body[30:])
			f.Flags = binary.BigEndian.Uint16(body[38:])
		}
		folders = append(folders, f)
	}
	v.folders = folders

	// Orphans (parent not a loaded folder) tally nowhere.
	for _, f := range folders {
		if parent := v.FolderByID(f.Parent); parent != nil {
			parent.Subdirs++
		}
	}
}

// Folders returns the folder table, in Desktop order, or nil when the
// folder layer is not loaded.
func (v *Volume) Folders() []*Folder { return v.folders }

// FolderByID returns the folder with the given id. Id -2 (the desktop
// pseudo-parent) is never a real folder and always returns nil.
func (v *Volume) FolderByID(id int16) *Folder {
	if id == FolderDesktop {
		return nil
	}
	for _, f := range v.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// FolderByName looks a folder up by MFS name equality.
func (v *Volume) FolderByName(name string) *Folder {
	b := []byte(name)
	for _, f := range v.folders {
		if foldEqual(f.name, b) {
			return f
		}
	}
	return nil
}
