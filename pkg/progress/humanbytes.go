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
	"math"
)

const humanThresh = 1024

var humanUnits = [...]string{"  B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// HumanBytes renders n bytes in IEC units (KiB, MiB, ...), picking the
// largest unit for which the scaled value stays under 1024, and
// falling back to the largest unit otherwise.
func HumanBytes(n float64) string {
	scale := 1.0
	for _, unit := range humanUnits[:len(humanUnits)-1] {
		q := n / scale
		if math.Abs(q) < humanThresh {
			return fmt.Sprintf("%6.1f %s", q, unit)
		}
		scale *= 1024
	}
	last := humanUnits[len(humanUnits)-1]
	return fmt.Sprintf("%6.1f %s", n/scale, last)
}
