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

// Command btrsync syncs btrfs subvolumes from one or more source
// locations to a destination, sending only what the destination is
// missing against the closest available incremental parent.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd, flags := newRootCommand()
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if flags.quiet < 2 {
		cmd.PrintErrln("Error:", err)
	}
	if flags.quiet == 0 {
		cmd.PrintErrln("Aborted")
	}
	return 1
}
