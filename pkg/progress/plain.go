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

package progress

import (
	"fmt"
	"io"
)

// plainWriter writes one line per Event, the rendering NewWriter
// returns whenever quiet is not set, terminal or not.
type plainWriter struct {
	out io.Writer
}

func (p *plainWriter) Event(e Event) {
	prefix := statusPrefix(e.Status)
	_, _ = fmt.Fprintln(p.out, prefix, e.ID, e.StatusText)
}

func (p *plainWriter) TailMsgf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.out, msg+"\n", args...)
}

func statusPrefix(s EventStatus) string {
	switch s {
	case Done:
		return "[done]   "
	case Error:
		return "[error]  "
	case Skipped:
		return "[skip]   "
	default:
		return "[working]"
	}
}
