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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
)

// NCBI taxdump ".dmp" files delimit fields with "\t|\t" and terminate the
// last field of each row with a trailing "\t|". Neither nodes.dmp nor
// names.dmp nor host.dmp use a plain tab.
const dumpFieldSep = "\t|\t"

func splitDumpLine(line string) []string {
	fields := strings.Split(line, dumpFieldSep)
	last := len(fields) - 1
	fields[last] = strings.TrimRight(fields[last], "\t|")
	return fields
}

// NodeRecord is one row of nodes.dmp: the fields the on-disk taxa trie
// needs (tax_id, parent, rank, division_id, specified_species). The
// remaining ~13 columns (genetic codes, GenBank_hidden, comments, ...)
// carry no taxoniq query surface and are dropped at parse time.
type NodeRecord struct {
	TaxID            uint32
	Parent           uint32
	Rank             string
	DivisionID       uint8
	SpecifiedSpecies bool
}

// ReadNodes parses nodes.dmp at path using a buffered, parallel
// line-oriented reader (the pattern taxonomy parsing has always used here),
// split on NCBI's "\t|\t" dump format rather than a plain tab.
func ReadNodes(path string) ([]NodeRecord, error) {
	reader, err := breader.NewBufferedReader(path, 8, 100, func(line string) (interface{}, bool, error) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return nil, false, nil
		}
		f := splitDumpLine(line)
		if len(f) < 16 {
			return nil, false, errors.Errorf("nodes.dmp: expected >=16 fields, got %d", len(f))
		}
		taxID, err := strconv.ParseUint(strings.TrimSpace(f[0]), 10, 32)
		if err != nil {
			return nil, false, errors.Wrap(err, "nodes.dmp: tax_id")
		}
		parent, err := strconv.ParseUint(strings.TrimSpace(f[1]), 10, 32)
		if err != nil {
			return nil, false, errors.Wrap(err, "nodes.dmp: parent")
		}
		divID, err := strconv.ParseUint(strings.TrimSpace(f[4]), 10, 8)
		if err != nil {
			return nil, false, errors.Wrap(err, "nodes.dmp: division_id")
		}
		specSp, err := strconv.ParseUint(strings.TrimSpace(f[15]), 10, 8)
		if err != nil {
			return nil, false, errors.Wrap(err, "nodes.dmp: specified_species")
		}
		return NodeRecord{
			TaxID:            uint32(taxID),
			Parent:           uint32(parent),
			Rank:             strings.TrimSpace(f[2]),
			DivisionID:       uint8(divID),
			SpecifiedSpecies: specSp != 0,
		}, true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ReadNodes")
	}

	var out []NodeRecord
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "ReadNodes")
		}
		for _, v := range chunk.Data {
			out = append(out, v.(NodeRecord))
		}
	}
	return out, nil
}

// NameRecord is one row of names.dmp.
type NameRecord struct {
	TaxID     uint32
	Name      string
	NameClass string
}

// ReadNames parses names.dmp at path.
func ReadNames(path string) ([]NameRecord, error) {
	reader, err := breader.NewBufferedReader(path, 8, 100, func(line string) (interface{}, bool, error) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return nil, false, nil
		}
		f := splitDumpLine(line)
		if len(f) < 4 {
			return nil, false, errors.Errorf("names.dmp: expected >=4 fields, got %d", len(f))
		}
		taxID, err := strconv.ParseUint(strings.TrimSpace(f[0]), 10, 32)
		if err != nil {
			return nil, false, errors.Wrap(err, "names.dmp: tax_id")
		}
		return NameRecord{
			TaxID:     uint32(taxID),
			Name:      f[1],
			NameClass: f[3],
		}, true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ReadNames")
	}

	var out []NameRecord
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "ReadNames")
		}
		for _, v := range chunk.Data {
			out = append(out, v.(NameRecord))
		}
	}
	return out, nil
}

// HostRecord is one row of host.dmp: a tax_id and its comma-separated
// potential host descriptors.
type HostRecord struct {
	TaxID          uint32
	PotentialHosts string
}

// ReadHost parses host.dmp at path.
func ReadHost(path string) ([]HostRecord, error) {
	reader, err := breader.NewBufferedReader(path, 8, 100, func(line string) (interface{}, bool, error) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return nil, false, nil
		}
		f := splitDumpLine(line)
		if len(f) < 2 {
			return nil, false, errors.Errorf("host.dmp: expected >=2 fields, got %d", len(f))
		}
		taxID, err := strconv.ParseUint(strings.TrimSpace(f[0]), 10, 32)
		if err != nil {
			return nil, false, errors.Wrap(err, "host.dmp: tax_id")
		}
		return HostRecord{TaxID: uint32(taxID), PotentialHosts: f[1]}, true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ReadHost")
	}

	var out []HostRecord
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "ReadHost")
		}
		for _, v := range chunk.Data {
			out = append(out, v.(HostRecord))
		}
	}
	return out, nil
}
