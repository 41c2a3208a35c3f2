// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elliotnunn/mfs"
)

func commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment IMAGE [NAME]",
		Short: "Show the Finder comment of a file, or of the volume",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer v.Close()

			var rec *mfs.Record
			if len(args) == 2 {
				if rec = v.FindName(args[1]); rec == nil {
					return fmt.Errorf("no such file: %s", args[1])
				}
			}
			c := v.Comment(rec)
			if c == nil {
				return fmt.Errorf("no comment")
			}
			os.Stdout.Write(append(c, '\n'))
			return nil
		},
	}
}
