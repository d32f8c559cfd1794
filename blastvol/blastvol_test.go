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
	"bytes"
	"encoding/binary"
	"testing"
)

// writeTestNin builds a minimal well-formed .nin blob with numOIDs
// sequences, offsets spaced 1000 bytes apart.
func writeTestNin(t *testing.T, numOIDs int) []byte {
	t.Helper()
	var buf bytes.Buffer
	be := binary.BigEndian

	write32 := func(v uint32) { binary.Write(&buf, be, v) }
	writeStr := func(s string) {
		write32(uint32(len(s)))
		buf.WriteString(s)
	}

	write32(NinFormatVersion)
	write32(uint32(Nucleotide))
	write32(3) // volume ordinal
	writeStr("Test Volume")
	writeStr("") // lmdb
	writeStr("2021-12-17")
	write32(uint32(numOIDs))
	binary.Write(&buf, binary.LittleEndian, int64(123456)) // volume_length
	write32(5000)                                           // max_seq_length

	for i := 0; i <= numOIDs; i++ {
		write32(uint32(i * 7)) // header_array, arbitrary
	}
	for i := 0; i <= numOIDs; i++ {
		write32(uint32(i * 1000)) // sequence_array
	}
	return buf.Bytes()
}

func TestReadVolumeHeader(t *testing.T) {
	data := writeTestNin(t, 3)
	h, err := ReadVolumeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadVolumeHeader: %v", err)
	}
	if h.FormatVersion != 5 {
		t.Fatalf("FormatVersion = %d, want 5", h.FormatVersion)
	}
	if h.SeqType != Nucleotide {
		t.Fatalf("SeqType = %v, want Nucleotide", h.SeqType)
	}
	if h.Volume != 3 {
		t.Fatalf("Volume = %d, want 3", h.Volume)
	}
	if h.Title != "Test Volume" {
		t.Fatalf("Title = %q, want %q", h.Title, "Test Volume")
	}
	if h.Date != "2021-12-17" {
		t.Fatalf("Date = %q, want %q", h.Date, "2021-12-17")
	}
	if h.VolumeLength != 123456 {
		t.Fatalf("VolumeLength = %d, want 123456", h.VolumeLength)
	}
	if h.MaxSeqLength != 5000 {
		t.Fatalf("MaxSeqLength = %d, want 5000", h.MaxSeqLength)
	}
	if len(h.SequenceArray) != 4 {
		t.Fatalf("len(SequenceArray) = %d, want 4", len(h.SequenceArray))
	}

	off, err := h.OffsetOf(2)
	if err != nil || off != 2000 {
		t.Fatalf("OffsetOf(2) = %d, %v, want 2000, nil", off, err)
	}
}

func TestReadVolumeHeaderBadVersion(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(4))
	if _, err := ReadVolumeHeader(&buf); err == nil {
		t.Fatalf("ReadVolumeHeader with bad version = nil error, want error")
	}
}

func TestReadVolumeHeaderTruncated(t *testing.T) {
	data := writeTestNin(t, 3)
	truncated := data[:len(data)-10]
	if _, err := ReadVolumeHeader(bytes.NewReader(truncated)); err == nil {
		t.Fatalf("ReadVolumeHeader on truncated data = nil error, want error")
	}
}

func TestOffsetOfOutOfRange(t *testing.T) {
	data := writeTestNin(t, 3)
	h, err := ReadVolumeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadVolumeHeader: %v", err)
	}
	if _, err := h.OffsetOf(99); err == nil {
		t.Fatalf("OffsetOf(99) = nil error, want out-of-range error")
	}
}
