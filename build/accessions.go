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

package build

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/taxoniq/taxoniq-go/blastvol"
)

// AccessionRecord is one row taxoniq's accession tries are built from: a
// single sequence record inside one volume of one BLAST database.
type AccessionRecord struct {
	AccessionID string
	OrdinalID   uint32
	Length      uint32
	TaxID       uint32
	VolumeID    int
	Offset      uint32
}

// volumesForDB lists the .nin volume files under blastDBDir belonging to
// dbName: either "<dbName>.nin" (single volume) or "<dbName>.NN.nin".
func volumesForDB(blastDBDir, dbName string) ([]string, error) {
	entries, err := os.ReadDir(blastDBDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", blastDBDir)
	}
	var vols []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".nin") {
			continue
		}
		base := strings.TrimSuffix(name, ".nin")
		if base == dbName || strings.HasPrefix(base, dbName+".") {
			vols = append(vols, filepath.Join(blastDBDir, base))
		}
	}
	return vols, nil
}

// volumeOrdinal extracts the trailing ".NN" volume ordinal from a
// "<dbName>[.NN]" path base, defaulting to 0 for a single-volume database.
func volumeOrdinal(base string) int {
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// runBlastdbcmd invokes "blastdbcmd -db <base> -entry all -outfmt '%a %o %l %T'"
// against one volume and parses its stdout, matching
// load_accession_info_from_blast_db's per-line split in the original build
// script.
func runBlastdbcmd(ctx context.Context, volumeBase string) (map[string]AccessionRecord, error) {
	cmd := exec.CommandContext(ctx, "blastdbcmd",
		"-db", filepath.Base(volumeBase), "-entry", "all", "-outfmt", "%a %o %l %T")
	cmd.Dir = filepath.Dir(volumeBase)
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "blastdbcmd -db %s", volumeBase)
	}

	byAccession := make(map[string]AccessionRecord)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, errors.Errorf("blastdbcmd output %q: expected 4 fields", line)
		}
		ordinal, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "blastdbcmd ordinal_id %q", fields[1])
		}
		length, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "blastdbcmd length %q", fields[2])
		}
		taxID, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "blastdbcmd tax_id %q", fields[3])
		}
		byAccession[fields[0]] = AccessionRecord{
			AccessionID: fields[0],
			OrdinalID:   uint32(ordinal),
			Length:      uint32(length),
			TaxID:       uint32(taxID),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return byAccession, nil
}

// LoadAccessions enumerates every volume of dbName under blastDBDir, calls
// blastdbcmd for its sequence listing, and resolves each ordinal id to an
// absolute byte offset via the volume's own .nin header (C5). It mirrors
// load_accession_info_from_blast_db's volume loop.
func LoadAccessions(ctx context.Context, blastDBDir, dbName string) ([]AccessionRecord, error) {
	volumes, err := volumesForDB(blastDBDir, dbName)
	if err != nil {
		return nil, err
	}

	var out []AccessionRecord
	for _, vol := range volumes {
		ninPath := vol + ".nin"
		f, err := os.Open(ninPath)
		if err != nil {
			continue
		}
		header, err := blastvol.ReadVolumeHeader(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", ninPath)
		}

		perVolume, err := runBlastdbcmd(ctx, vol)
		if err != nil {
			return nil, err
		}

		volumeID := volumeOrdinal(filepath.Base(vol))
		for accessionID, rec := range perVolume {
			offset, err := header.OffsetOf(rec.OrdinalID)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: accession %s", ninPath, accessionID)
			}
			rec.VolumeID = volumeID
			rec.Offset = offset
			out = append(out, rec)
		}
	}
	return out, nil
}
