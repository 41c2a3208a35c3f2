// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func globCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "glob IMAGE PATTERN",
		Short: "Match a doublestar pattern against the volume's file tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer v.Close()

			matches, err := v.Glob(args[1])
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Println(m)
			}
			return nil
		},
	}
}
