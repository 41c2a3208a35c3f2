// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package mfs

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathKind classifies the result of PathInfo.
type PathKind int

const (
	PathError PathKind = iota
	PathFile
	PathFolder
)

func (k PathKind) String() string {
	switch k {
	case PathFile:
		return "file"
	case PathFolder:
		return "folder"
	}
	return "error"
}

// PathInfo resolves a colon-separated Mac path against the flat
// directory and the synthesized folder tree. A leading colon is
// stripped; the empty path is the volume root. Without the folder layer
// only the last component matters: any name in the directory is a file.
// With folders loaded, every intermediate component must be a folder
// inside its predecessor, and the final component must actually live in
// the folder the path names.
func (v *Volume) PathInfo(path string) PathKind {
	path = strings.TrimPrefix(path, ":")
	if path == "" {
		return PathFolder
	}
	items := strings.Split(path, ":")
	last := items[len(items)-1]

	rec := v.FindName(last)
	if v.folders == nil {
		if rec != nil {
			return PathFile
		}
		return PathError
	}
	folder := v.FolderByName(last)
	if rec == nil && folder == nil {
		return PathError
	}

	parent := v.FolderByID(FolderRoot)
	for _, item := range items[:len(items)-1] {
		f := v.FolderByName(item)
		if f == nil || parent == nil || f.Parent != parent.ID {
			return PathError
		}
		parent = f
	}
	if parent == nil {
		return PathError
	}

	if rec != nil {
		if rec.FolderID() != parent.ID {
			return PathError
		}
		return PathFile
	}
	if folder.Parent != parent.ID {
		return PathError
	}
	return PathFolder
}

// Glob matches a doublestar pattern ("**/*.rsrc" and the like) against
// the volume's fs view, AppleDouble sidecars included.
func (v *Volume) Glob(pattern string) ([]string, error) {
	return doublestar.Glob(v.FS(), pattern)
}
