// Copyright © 2018-2021 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package taxoniq

// Version is the library's release version, reported by `taxoniq
// --version` alongside the taxonomy and BLAST database timestamps.
const Version = "0.1.0"

// blastDBTimestamp is the dataset snapshot timestamp path segment the AWS
// Open Data NCBI BLAST database mirror publishes under. It is a build-time
// constant in the reference implementation; taxoniq treats it the same
// way, fixing it at the version this module was built against.
const blastDBTimestamp = "2021-12-17T06:00"

// BLASTDBTimestamp returns the dataset snapshot timestamp the configured
// BLAST database mirror path is pinned to, for `taxoniq --version`.
func BLASTDBTimestamp() string { return blastDBTimestamp }

// BLASTDatabase is a closed enumeration of the named BLAST databases
// taxoniq indexes accessions against. Each has a stable small integer id
// that is packed into the high byte of an AccessionRecord's db_info field.
type BLASTDatabase uint8

const (
	RefViruses BLASTDatabase = iota
	RefProk
	RefEuk
	Betacoronavirus
	NT
)

var blastDBNames = [...]string{
	"ref_viruses_rep_genomes",
	"ref_prok_rep_genomes",
	"ref_euk_rep_genomes",
	"Betacoronavirus",
	"nt",
}

func (d BLASTDatabase) String() string {
	if int(d) < 0 || int(d) >= len(blastDBNames) {
		return "unknown"
	}
	return blastDBNames[d]
}

// ParseBLASTDatabase maps a database name (as it appears in the BLASTDB
// directory and in mirror URLs) to its BLASTDatabase id.
func ParseBLASTDatabase(name string) (BLASTDatabase, bool) {
	for i, n := range blastDBNames {
		if n == name {
			return BLASTDatabase(i), true
		}
	}
	return 0, false
}

// volumeSuffixDigits is the number of digits the mirror URL path pads the
// volume ordinal to, keyed by database. Per the resolved Open Question in
// SPEC_FULL.md §4.7/§9, ref_viruses_rep_genomes, a single-volume
// database, omits the ".NNN" suffix entirely (digits == 0).
var volumeSuffixDigits = map[BLASTDatabase]int{
	RefViruses:      0,
	RefProk:         2,
	RefEuk:          3,
	Betacoronavirus: 2,
	NT:              3,
}

// VolumeSuffixDigits reports how many digits the mirror path pads this
// database's volume ordinal to. A return of 0 means the path carries no
// ".NNN" suffix at all (single-volume database).
func (d BLASTDatabase) VolumeSuffixDigits() int {
	if n, ok := volumeSuffixDigits[d]; ok {
		return n
	}
	return 3
}
