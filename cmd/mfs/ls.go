// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls IMAGE",
		Short: "List the volume directory and folder tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer v.Close()

			info := v.Info()
			fmt.Printf("%s  created %s  %d files  %d×%d-byte blocks (%d free)\n",
				info.Name, info.Created.Format(tfmt), info.Files,
				info.AllocBlocks, info.AllocBlockSize, info.FreeBlocks)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tDATA\tRSRC\tMODIFIED")
			for _, r := range v.Directory() {
				fmt.Fprintf(w, "%s\t%s/%s\t%d\t%d\t%s\n",
					r.Name(), r.Type(), r.Creator(),
					r.Data.LgLen, r.Res.LgLen, r.Modified().Format(tfmt))
			}
			w.Flush()

			if folders := v.Folders(); len(folders) > 0 {
				fmt.Println("\nID\tPARENT\tSUB\tNAME")
				for _, f := range folders {
					fmt.Printf("%d\t%d\t%d\t%s\n", f.ID, f.Parent, f.Subdirs, f.Name())
				}
			}
			return nil
		},
	}
}
