// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/net/webdav"

	"github.com/elliotnunn/mfs/internal/webdavadapter"
)

func serveCmd() *cobra.Command {
	var addr, prefix string
	cmd := &cobra.Command{
		Use:   "serve IMAGE",
		Short: "Serve the volume read-only over WebDAV",
		Long: `Serve the volume read-only over WebDAV.

Every file appears twice: once as its data fork and once as a "._Name"
AppleDouble sidecar carrying the resource fork and Finder metadata, so
a host that mounts the share round-trips the whole file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0])
			if err != nil {
				return err
			}

			handler := &webdav.Handler{
				Prefix:     prefix,
				FileSystem: &webdavadapter.FileSystem{Inner: v.FS()},
				LockSystem: webdav.NewMemLS(),
				Logger: func(r *http.Request, err error) {
					if err != nil {
						slog.Warn("webdav", "method", r.Method, "path", r.URL.Path, "err", err)
					} else {
						slog.Debug("webdav", "method", r.Method, "path", r.URL.Path)
					}
				},
			}
			slog.Info("serving volume", "name", v.Name(), "addr", "http://"+addr+prefix)
			return http.ListenAndServe(addr, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8777", "HTTP address to listen on")
	cmd.Flags().StringVar(&prefix, "prefix", "", "URL path prefix")
	return cmd
}
