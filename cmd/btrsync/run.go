/*
   Copyright 2024 btrsync authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/btrsync"
	"github.com/andreittr/btrsync/pkg/cowtree"
)

// runBtrsync resolves every source and the destination, then for each
// source in turn previews (unless -y was given), optionally confirms,
// and finally syncs it — stopping the whole run as soon as a source
// errors or the operator declines to continue.
func runBtrsync(ctx context.Context, cmd *cobra.Command, srcs []string, dst string, flags *rawFlags) error {
	cfg, err := buildOptions(flags)
	if err != nil {
		return err
	}

	srcRootOpts := rootBuildOptions{scope: cfg.Scope, sudo: cfg.SudoSource}
	dstRootOpts := rootBuildOptions{scope: cfg.Scope, sudo: cfg.SudoDest}

	g, gctx := errgroup.WithContext(ctx)

	var dstRoot btrfsroot.Root
	var recvPath string
	g.Go(func() error {
		r, p, err := resolveDestRoot(gctx, dst, dstRootOpts)
		if err != nil {
			return err
		}
		dstRoot, recvPath = r, p
		return nil
	})

	srcRoots := make([]btrfsroot.Root, len(srcs))
	srcMatches := make([]srcMatch, len(srcs))
	for i, s := range srcs {
		i, s := i, s
		g.Go(func() error {
			r, m, err := resolveSrcRoot(gctx, s, srcRootOpts)
			if err != nil {
				return err
			}
			srcRoots[i], srcMatches[i] = r, m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.CreateDestPath {
		if lr, ok := dstRoot.(*btrfsroot.LocalRoot); ok {
			if err := lr.EnsurePath(ctx, recvPath); err != nil {
				return err
			}
		}
	}

	mode := resolveAutoMode(flags)
	out := cmd.OutOrStdout()
	reporter := buildReporter(out, flags, cfg, recvPath)
	realDriver := btrsync.NewDriver(btrsync.DriverOptions{
		RecvBase:       recvPath,
		ReplicateDirs:  cfg.ReplicateDirs,
		Reporter:       reporter,
		ProgressPeriod: cfg.ProgressPeriod,
	})
	driver := realDriver
	if lr, ok := dstRoot.(*btrfsroot.LocalRoot); ok && cfg.ReplicateDirs {
		driver = func(ctx context.Context, vols []*cowtree.Node, par *cowtree.Node, src, dst btrfsroot.Root) error {
			_, _, dest, err := btrsync.TransferPaths(vols, par, recvPath, true)
			if err != nil {
				return err
			}
			if err := lr.EnsurePath(ctx, dest); err != nil {
				return err
			}
			return realDriver(ctx, vols, par, src, dst)
		}
	}
	prompt := newConfirmPrompt(cmd.InOrStdin(), out)

	var check btrsync.CheckFunc
	if cfg.IncrementalOnly {
		check = func(vol, parent *cowtree.Node) bool { return parent != nil }
	}

	for i, s := range srcs {
		m := srcMatches[i]
		m.setFilters(flags.include, flags.exclude)
		planner := btrsync.New(srcRoots[i], dstRoot)

		opts := btrsync.Options{
			Batch:            cfg.Batch,
			Parallel:         cfg.Parallel,
			TransferExisting: cfg.TransferExisting,
			Check:            check,
			Target: func(vol *cowtree.Node) bool {
				return m.Match(vol.Subvolume.Path)
			},
			Stop: func(vols []*cowtree.Node) bool {
				paths := make([]string, len(vols))
				for j, v := range vols {
					paths[j] = v.Subvolume.Path
				}
				return m.Stop(paths)
			},
		}

		if mode == nil || !*mode {
			if flags.quiet == 0 {
				cmd.Println("At source", s)
			}
			previewDrv, preview := previewDriver(recvPath, cfg.ReplicateDirs, flags.verbose)
			if _, err := planner.Sync(ctx, previewDrv, opts); err != nil {
				return err
			}
			if flags.quiet == 0 {
				if len(*preview) == 0 {
					cmd.Println("Nothing to do")
				} else {
					cmd.Println("About to sync the following subvolumes:")
					for _, p := range *preview {
						cmd.Println(p)
					}
				}
			}
			if mode != nil {
				// auto == false: dry run, move on without transferring.
				continue
			}
			switch prompt.ask(*preview) {
			case "S":
				continue
			case "Y":
				// fall through to the real sync below
			default:
				return nil
			}
		}

		if _, err := planner.Sync(ctx, driver, opts); err != nil {
			return err
		}
	}
	return nil
}
