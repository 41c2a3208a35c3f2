// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// An fs.FS view of a volume. The root holds one directory named after
// the volume; inside it, the Desktop-derived folder tree and the files.
// Every file and folder also appears as a "._Name" sidecar whose content
// is the AppleDouble fork, so copying the tree off preserves resource
// forks and Finder metadata.

package mfs

import (
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/elliotnunn/mfs/internal/appledouble"
)

// FS implements fs.FS over a Volume. Opening a file pins the Volume
// (an open fork) until the file is closed.
type FS struct {
	root *entry
}

type entry struct {
	name       string
	vol        *Volume
	rec        *Record // file, nil for folders and the roots
	folder     *Folder // nil for files and when folders aren't loaded
	isdir      bool
	childSlice []*entry
	childMap   map[string]*entry
	list       []fs.DirEntry
}

// FS returns the filesystem view, building it on first use.
func (v *Volume) FS() fs.FS {
	if v.fsys == nil {
		v.fsys = buildFS(v)
	}
	return v.fsys
}

func buildFS(v *Volume) *FS {
	volRoot := &entry{name: fsName(v.name), vol: v, isdir: true, folder: v.FolderByID(FolderRoot)}
	byID := map[int16]*entry{FolderRoot: volRoot}
	var folderEnts []*entry
	for _, f := range v.folders {
		if f.ID == FolderRoot || f.ID == FolderDesktop {
			continue
		}
		e := &entry{name: fsName(f.name), vol: v, folder: f, isdir: true}
		byID[f.ID] = e
		folderEnts = append(folderEnts, e)
	}

	// A corrupt Desktop can contain parent cycles; anything that cannot
	// walk up to the root gets attached there instead.
	reachesRoot := func(e *entry) bool {
		for steps := 0; e != volRoot; steps++ {
			if e.folder == nil || steps > len(v.folders) {
				return false
			}
			e = byID[e.folder.Parent]
			if e == nil {
				return false
			}
		}
		return true
	}

	for _, e := range folderEnts {
		parent := byID[e.folder.Parent]
		if parent == nil || !reachesRoot(parent) {
			parent = volRoot
		}
		parent.childSlice = append(parent.childSlice, e)
	}
	for _, r := range v.dir {
		e := &entry{name: fsName(r.name), vol: v, rec: r}
		parent := byID[r.FolderID()]
		if parent == nil || !reachesRoot(parent) {
			parent = volRoot
		}
		parent.childSlice = append(parent.childSlice, e)
	}

	for _, e := range append(folderEnts, volRoot) {
		e.finish()
	}
	root := &entry{name: ".", isdir: true, childSlice: []*entry{volRoot}}
	root.finish()
	return &FS{root: root}
}

// finish builds the name map, dropping duplicate names (MFS cannot have
// two files with the same name, but a folder can shadow a file).
func (e *entry) finish() {
	e.childMap = make(map[string]*entry, len(e.childSlice))
	kept := e.childSlice[:0]
	for _, c := range e.childSlice {
		if _, dup := e.childMap[c.name]; dup {
			continue
		}
		e.childMap[c.name] = c
		kept = append(kept, c)
	}
	e.childSlice = kept
}

// fsName makes a MacRoman name usable as an fs.FS path element. "/" is
// legal in Mac names and becomes ":", the Mac separator, which is not.
func fsName(b []byte) string {
	s := strings.ReplaceAll(string(b), "/", ":")
	if s == "" || s == "." || s == ".." {
		s = "untitled"
	}
	return s
}

func (fsys *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	components := strings.Split(name, "/")
	if name == "." {
		components = nil
	}
	sidecar := false
	if len(components) > 0 {
		components[len(components)-1], sidecar = strings.CutPrefix(components[len(components)-1], "._")
	}

	e := fsys.root
	for _, c := range components {
		child, ok := e.childMap[c]
		if !ok {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		e = child
	}
	return e.open(sidecar, name)
}

func (e *entry) open(sidecar bool, path string) (fs.File, error) {
	f := &openfile{e: e, sidecar: sidecar}
	var err error
	switch {
	case sidecar && e.rec != nil:
		f.fork, err = e.vol.OpenFork(e.rec, AppleDoubleFork)
	case sidecar && e.folder != nil:
		f.fork, err = e.vol.OpenFolderHeader(e.folder)
	case sidecar:
		err = fs.ErrNotExist
	case e.rec != nil:
		f.fork, err = e.vol.OpenFork(e.rec, DataFork)
	}
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

func (e *entry) stat(sidecar bool) *statInfo {
	s := &statInfo{name: e.name}
	if sidecar {
		s.name = "._" + e.name
	}
	switch {
	case sidecar && e.rec != nil:
		s.size = appledouble.HeaderLength + int64(e.rec.Res.LgLen)
	case sidecar:
		s.size = appledouble.HeaderLength
	case e.rec != nil:
		s.size = int64(e.rec.Data.LgLen)
	default:
		s.mode = fs.ModeDir
	}
	switch {
	case e.rec != nil:
		s.modtime = e.rec.Modified()
		s.sys = e.rec
	case e.folder != nil:
		s.modtime = e.folder.Modified()
		s.sys = e.folder
	case e.vol != nil:
		s.modtime = MacTime(e.vol.mdb.CrDate)
	}
	return s
}

// listing interleaves each child with its sidecar, when it has one.
func (e *entry) listing() []fs.DirEntry {
	if e.list == nil {
		e.list = make([]fs.DirEntry, 0, 2*len(e.childSlice))
		for _, c := range e.childSlice {
			e.list = append(e.list, dirent{c, false})
			if c.rec != nil || c.folder != nil {
				e.list = append(e.list, dirent{c, true})
			}
		}
	}
	return e.list
}

type dirent struct {
	e       *entry
	sidecar bool
}

func (d dirent) Name() string {
	if d.sidecar {
		return "._" + d.e.name
	}
	return d.e.name
}

func (d dirent) IsDir() bool { return d.e.isdir && !d.sidecar }

func (d dirent) Type() fs.FileMode {
	if d.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (d dirent) Info() (fs.FileInfo, error) { return d.e.stat(d.sidecar), nil }

type statInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modtime time.Time
	sys     any
}

func (s *statInfo) Name() string       { return s.name }
func (s *statInfo) Size() int64        { return s.size }
func (s *statInfo) Mode() fs.FileMode  { return s.mode }
func (s *statInfo) ModTime() time.Time { return s.modtime }
func (s *statInfo) IsDir() bool        { return s.mode&fs.ModeDir != 0 }
func (s *statInfo) Sys() any           { return s.sys }

type openfile struct {
	e          *entry
	sidecar    bool
	fork       *Fork // nil for directories
	listOffset int
}

func (f *openfile) Stat() (fs.FileInfo, error) { return f.e.stat(f.sidecar), nil }

func (f *openfile) Read(p []byte) (int, error) {
	if f.fork == nil {
		return 0, &fs.PathError{Op: "read", Path: f.e.name, Err: fs.ErrInvalid}
	}
	return f.fork.Read(p)
}

func (f *openfile) ReadAt(p []byte, off int64) (int, error) {
	if f.fork == nil {
		return 0, &fs.PathError{Op: "read", Path: f.e.name, Err: fs.ErrInvalid}
	}
	return f.fork.ReadAt(p, off)
}

func (f *openfile) Seek(offset int64, whence int) (int64, error) {
	if f.fork == nil {
		return 0, &fs.PathError{Op: "seek", Path: f.e.name, Err: fs.ErrInvalid}
	}
	return f.fork.Seek(offset, whence)
}

func (f *openfile) Close() error {
	if f.fork != nil {
		fk := f.fork
		f.fork = nil
		return fk.Close()
	}
	return nil
}

// ReadDir has the usual partial-listing semantics of fs.ReadDirFile.
func (f *openfile) ReadDir(count int) ([]fs.DirEntry, error) {
	if f.sidecar || !f.e.isdir {
		return nil, &fs.PathError{Op: "readdir", Path: f.e.name, Err: fs.ErrInvalid}
	}
	l := f.e.listing()
	n := len(l) - f.listOffset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	copy(list, l[f.listOffset:f.listOffset+n])
	f.listOffset += n
	return list, nil
}
