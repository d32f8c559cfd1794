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

package blastvol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// NinFormatVersion is the only BLAST volume header format this parser
// understands.
const NinFormatVersion uint32 = 5

// SequenceType distinguishes a .nin volume's residue alphabet.
type SequenceType uint32

const (
	Nucleotide SequenceType = 0
	Protein    SequenceType = 1
)

// VolumeHeader is the subset of a BLAST .nin volume header (format version
// 5) taxoniq's build pipeline needs: enough to map an ordinal id to its
// byte offset in the paired .nsq file.
//
// Every multi-byte integer is big-endian except VolumeLength, which NCBI
// writes little-endian; see the field-by-field reads below.
type VolumeHeader struct {
	FormatVersion uint32
	SeqType       SequenceType
	Volume        uint32
	Title         string
	LMDB          []byte
	Date          string
	NumOIDs       uint32
	VolumeLength  int64
	MaxSeqLength  uint32
	HeaderArray   []uint32
	SequenceArray []uint32
}

var be = binary.BigEndian

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, be, &v)
	return v, err
}

func readLenPrefixedBytes(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadVolumeHeader parses a .nin volume header from r, bit-exactly
// following the BLAST format-version-5 layout: format_version,
// sequence_type and volume as big-endian u32, three length-prefixed byte
// strings (title, lmdb path, date), num_oids, a little-endian i64 volume
// length, max_seq_length, then the header_array and sequence_array of
// num_oids+1 big-endian u32 offsets each.
func ReadVolumeHeader(r io.Reader) (*VolumeHeader, error) {
	h := &VolumeHeader{}

	var err error
	if h.FormatVersion, err = readU32(r); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin format_version: %w", err)
	}
	if h.FormatVersion != NinFormatVersion {
		return nil, fmt.Errorf("taxoniq: unsupported .nin format_version %d (want %d)", h.FormatVersion, NinFormatVersion)
	}

	var seqType uint32
	if seqType, err = readU32(r); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin sequence_type: %w", err)
	}
	h.SeqType = SequenceType(seqType)

	if h.Volume, err = readU32(r); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin volume: %w", err)
	}

	title, err := readLenPrefixedBytes(r)
	if err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin title: %w", err)
	}
	h.Title = string(title)

	if h.LMDB, err = readLenPrefixedBytes(r); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin lmdb path: %w", err)
	}

	date, err := readLenPrefixedBytes(r)
	if err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin date: %w", err)
	}
	h.Date = string(date)

	if h.NumOIDs, err = readU32(r); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin num_oids: %w", err)
	}

	if err := binary.Read(r, binary.LittleEndian, &h.VolumeLength); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin volume_length: %w", err)
	}

	if h.MaxSeqLength, err = readU32(r); err != nil {
		return nil, fmt.Errorf("taxoniq: reading .nin max_seq_length: %w", err)
	}

	n := int(h.NumOIDs) + 1
	h.HeaderArray = make([]uint32, n)
	for i := range h.HeaderArray {
		if h.HeaderArray[i], err = readU32(r); err != nil {
			return nil, fmt.Errorf("taxoniq: reading .nin header_array[%d]: %w", i, err)
		}
	}
	h.SequenceArray = make([]uint32, n)
	for i := range h.SequenceArray {
		if h.SequenceArray[i], err = readU32(r); err != nil {
			return nil, fmt.Errorf("taxoniq: reading .nin sequence_array[%d]: %w", i, err)
		}
	}

	return h, nil
}

// OffsetOf returns the byte offset of sequence ordinalID within the
// volume's .nsq payload, as recorded in SequenceArray.
func (h *VolumeHeader) OffsetOf(ordinalID uint32) (uint32, error) {
	if ordinalID >= uint32(len(h.SequenceArray)) {
		return 0, fmt.Errorf("taxoniq: ordinal id %d out of range (num_oids=%d)", ordinalID, h.NumOIDs)
	}
	return h.SequenceArray[ordinalID], nil
}
