// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package mfs reads the Macintosh File System, the flat filesystem on
// 400 KB floppies from the original 1984 Macintosh.
//
// A Volume gives access to the volume header, the flat directory of files
// (each with a data fork and a resource fork), a folder hierarchy
// synthesized from the Desktop file, and byte-level reads of any fork.
// A fork can also be opened in AppleDouble mode, which splices a
// synthesized header (resource fork + Finder metadata + comment + real
// name) in front of the resource fork so that filesystems without forks
// can round-trip the file.
//
// The package never writes to the image. A Volume and its Forks are not
// safe for concurrent use; callers must serialize access.
package mfs

import (
	"errors"
	"time"
)

const (
	logicalBlockSize = 512
	signature        = 0xD2D7 // drSigWord of every MFS volume
)

// Seconds between the Mac epoch (1904-01-01) and the Unix epoch.
const macTimeDelta = 2082844800

var (
	// ErrFormat means the image is not an MFS volume, or a structure
	// within it is malformed.
	ErrFormat = errors.New("not an MFS volume")

	// ErrBusy is returned by Volume.Close while forks are still open.
	ErrBusy = errors.New("volume has open forks")

	// ErrCorruptChain means an allocation-block chain disagrees with the
	// physical fork length recorded in the directory.
	ErrCorruptChain = errors.New("allocation chain inconsistent with physical length")

	// ErrClosedFork is returned by operations on a closed Fork.
	ErrClosedFork = errors.New("fork is closed")
)

// MacTime converts an MFS timestamp (seconds since 1904, nominally local
// time with the zone discarded) to a time.Time. Zero maps to 1904, not to
// the zero time: MFS has no "unset" convention beyond that.
func MacTime(stamp uint32) time.Time {
	return time.Unix(int64(stamp)-macTimeDelta, 0).UTC()
}
