// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elliotnunn/mfs"
)

func catCmd() *cobra.Command {
	var forkName string
	cmd := &cobra.Command{
		Use:   "cat IMAGE PATH",
		Short: "Write one fork of a file to stdout",
		Long: `Write one fork of a file to stdout.

PATH is a Mac colon path (":Folder:File" or just "File"). With
--fork=appledouble the output is the synthesized AppleDouble stream:
a 0x300-byte header followed by the resource fork.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode mfs.ForkMode
			switch forkName {
			case "data":
				mode = mfs.DataFork
			case "rsrc", "resource":
				mode = mfs.ResourceFork
			case "appledouble":
				mode = mfs.AppleDoubleFork
			default:
				return fmt.Errorf("unknown fork %q", forkName)
			}

			v, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer v.Close()

			path := args[1]
			name := path
			if i := strings.LastIndexByte(path, ':'); i >= 0 {
				name = path[i+1:]
			}

			var fk *mfs.Fork
			switch v.PathInfo(path) {
			case mfs.PathFile:
				fk, err = v.OpenFork(v.FindName(name), mode)
			case mfs.PathFolder:
				if mode != mfs.AppleDoubleFork {
					return fmt.Errorf("%s is a folder; only --fork=appledouble applies", path)
				}
				fk, err = v.OpenFolderHeader(v.FolderByName(name))
			default:
				return fmt.Errorf("no such file or folder: %s", path)
			}
			if err != nil {
				return err
			}
			defer fk.Close()

			_, err = io.Copy(os.Stdout, fk)
			return err
		},
	}
	cmd.Flags().StringVar(&forkName, "fork", "data", "data, rsrc or appledouble")
	return cmd
}
