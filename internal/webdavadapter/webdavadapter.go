// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package webdavadapter presents a read-only fs.FS as a
// webdav.FileSystem. Mutating calls fail with fs.ErrPermission.
package webdavadapter

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/webdav"
)

type FileSystem struct {
	Inner fs.FS
}

func (*FileSystem) Mkdir(_ context.Context, name string, perm os.FileMode) error {
	return fs.ErrPermission
}

func (*FileSystem) RemoveAll(_ context.Context, name string) error {
	return fs.ErrPermission
}

func (*FileSystem) Rename(_ context.Context, oldName, newName string) error {
	return fs.ErrPermission
}

func (fsys *FileSystem) OpenFile(_ context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	slog.Debug("webdav open", "name", name, "flag", flag)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, fs.ErrPermission
	}
	f, err := fsys.Inner.Open(pathCvt(name))
	if errors.Is(err, fs.ErrInvalid) {
		return nil, fs.ErrNotExist
	} else if err != nil {
		return nil, err
	}
	return &File{Inner: f}, nil
}

func (fsys *FileSystem) Stat(_ context.Context, name string) (os.FileInfo, error) {
	s, err := fs.Stat(fsys.Inner, pathCvt(name))
	if errors.Is(err, fs.ErrInvalid) {
		err = fs.ErrNotExist
	}
	return s, err
}

// [FileSystem.OpenFile] is guaranteed to return [*File]
type File struct {
	Inner fs.File
}

func (f *File) Close() error { return f.Inner.Close() }

func (f *File) Read(p []byte) (n int, err error) { return f.Inner.Read(p) }

func (f *File) Write(p []byte) (n int, err error) { return 0, fs.ErrPermission }

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if s, ok := f.Inner.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, fs.ErrInvalid
}

func (f *File) Readdir(count int) ([]fs.FileInfo, error) {
	rdf, ok := f.Inner.(fs.ReadDirFile)
	if !ok {
		return nil, io.EOF
	}
	dirEntrySlice, err := rdf.ReadDir(count)
	fileInfoSlice := make([]fs.FileInfo, 0, len(dirEntrySlice))
	for _, de := range dirEntrySlice {
		fileInfoSlice = append(fileInfoSlice, &FileInfo{Inner: de})
	}
	return fileInfoSlice, err
}

func (f *File) Stat() (fs.FileInfo, error) { return f.Inner.Stat() }

type FileInfo struct {
	Inner  fs.DirEntry
	once   sync.Once
	inner2 fs.FileInfo
}

func (i *FileInfo) expensive() {
	i.once.Do(func() {
		i.inner2, _ = i.Inner.Info()
	})
}

func (i *FileInfo) Name() string { return i.Inner.Name() }

func (i *FileInfo) Size() int64 {
	i.expensive()
	if i.inner2 == nil {
		return 0
	}
	return i.inner2.Size()
}

func (i *FileInfo) Mode() fs.FileMode {
	if i.Inner.Type() == fs.ModeDir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (i *FileInfo) ModTime() time.Time {
	i.expensive()
	if i.inner2 == nil {
		return time.Unix(0, 0)
	}
	return i.inner2.ModTime()
}

func (i *FileInfo) IsDir() bool { return i.Inner.IsDir() }

func (i *FileInfo) Sys() any { return nil }

func pathCvt(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return p
}
