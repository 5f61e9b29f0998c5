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
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

const copyrightNotice = `Copyright btrsync authors.
This is free software; see the source for copying conditions.
There is NO warranty; not even for MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.`

// rawFlags holds every flag value exactly as pflag populates it, before
// resolution into a btrsyncconfig.Options and the sync-time callbacks
// derived from it.
type rawFlags struct {
	exclude []string
	include []string

	existing        bool
	incrementalOnly bool

	noConfirm   bool
	dryRun      bool
	interactive bool

	verbose bool
	quiet   int

	progress       bool
	progressPeriod float64

	batch    bool
	parallel bool

	createDestPath bool
	replicateDirs  bool

	sudo     bool
	sudoSrc  bool
	sudoDest bool
	scope    string

	showVersion   bool
	showCopyright bool
}

func newRootCommand() (*cobra.Command, *rawFlags) {
	flags := &rawFlags{}
	cmd := &cobra.Command{
		Use:   "btrsync SOURCE... DESTINATION",
		Short: "Sync btrfs subvolumes",
		Long:  "Sync btrfs subvolumes from one or more source locations to a destination, sending only what the destination is missing.",
		Args: func(cmd *cobra.Command, args []string) error {
			if flags.showVersion || flags.showCopyright {
				return nil
			}
			return cobra.MinimumNArgs(2)(cmd, args)
		},
		RunE: adaptCmd(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if flags.showVersion {
				cmd.Println("btrsync", version)
				return nil
			}
			if flags.showCopyright {
				cmd.Println(copyrightNotice)
				return nil
			}
			if flags.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			srcs, dst := args[:len(args)-1], args[len(args)-1]
			return runBtrsync(ctx, cmd, srcs, dst, flags)
		}),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fl := cmd.Flags()
	fl.StringArrayVarP(&flags.exclude, "exclude", "x", nil, "exclude subvolumes matching GLOB")
	fl.StringArrayVarP(&flags.include, "include", "i", nil, "include only subvolumes matching GLOB, overriding the default of including everything under SOURCE")

	fl.BoolVarP(&flags.existing, "existing", "f", false, "transfer subvolumes even if they already exist at the destination")
	fl.BoolVarP(&flags.incrementalOnly, "incremental-only", "I", false, "only perform incremental transfers, skip the rest")

	fl.BoolVarP(&flags.noConfirm, "no-confirm", "y", false, "do not ask for confirmation, perform transfers immediately")
	fl.BoolVarP(&flags.dryRun, "dry-run", "n", false, "do not perform transfers, print what would have been done")
	fl.BoolVar(&flags.interactive, "interactive", false, "(default) ask for confirmation before performing transfers")
	cmd.MarkFlagsMutuallyExclusive("no-confirm", "dry-run", "interactive")

	fl.BoolVarP(&flags.verbose, "verbose", "v", false, "print more details")
	fl.CountVarP(&flags.quiet, "quiet", "q", "suppress printing to only errors; specify twice to suppress all output except confirmation prompts")

	fl.BoolVarP(&flags.progress, "progress", "p", false, "print progress during transfer")
	fl.Float64VarP(&flags.progressPeriod, "progress-period", "t", 1.0, "(requires --progress) print progress every SEC seconds")

	fl.BoolVarP(&flags.batch, "batch", "B", false, "batch multiple subvolumes into a single transfer, as possible")
	fl.BoolVarP(&flags.parallel, "parallel", "P", false, "run independent transfers in parallel")

	fl.BoolVarP(&flags.createDestPath, "create-destpath", "c", false, "create the path specified in DESTINATION if it does not exist")
	fl.BoolVarP(&flags.replicateDirs, "replicate-dirs", "r", false, "(implies -c) replicate the directory structure containing subvolumes in SOURCEs over to DESTINATION")

	fl.BoolVarP(&flags.sudo, "sudo", "s", false, "use sudo for commands, in both source and destination")
	fl.BoolVar(&flags.sudoSrc, "sudo-src", false, "use sudo for commands executed against the source")
	fl.BoolVar(&flags.sudoDest, "sudo-dest", false, "use sudo for commands executed against the destination")
	fl.StringVar(&flags.scope, "scope", "", "scope for subvolume discovery: all, strict, or isolated (default: all)")

	fl.BoolVarP(&flags.showVersion, "version", "V", false, "print version")
	fl.BoolVar(&flags.showCopyright, "copyright", false, "print copyright information")

	return cmd, flags
}

// cobraRunE is a RunE func taking the signal-aware context adaptCmd
// derives, the shape every btrsync command body is written against.
type cobraRunE func(ctx context.Context, cmd *cobra.Command, args []string) error

// adaptCmd wraps fn so its context is canceled on SIGINT/SIGTERM,
// letting an in-flight transfer wave unwind instead of leaving a
// half-written receive behind.
func adaptCmd(fn cobraRunE) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-sig:
				cancel()
			case <-done:
			}
			signal.Stop(sig)
		}()

		return fn(ctx, cmd, args)
	}
}
