// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command mfs reads Macintosh MFS floppy images: list the directory,
// extract forks, show Finder comments, or serve the whole volume
// (AppleDouble sidecars included) over WebDAV.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/elliotnunn/mfs"
)

const tfmt = "2006-01-02T15:04:05"

var (
	flagOffset  int64
	flagFolders bool
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:          "mfs",
		Short:        "Read Macintosh MFS (400K floppy) disk images",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().Int64Var(&flagOffset, "offset", -1, "byte offset of the volume in the image; default is to detect container formats")
	root.PersistentFlags().BoolVar(&flagFolders, "folders", true, "load the Desktop folder tree")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.AddCommand(lsCmd(), catCmd(), commentCmd(), globCmd(), serveCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openVolume(path string) (*mfs.Volume, error) {
	flags := mfs.Flags(0)
	if flagFolders {
		flags |= mfs.LoadFolders
	}
	if flagOffset >= 0 {
		return mfs.Open(path, flagOffset, flags)
	}
	return mfs.OpenImage(path, flags)
}
