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

// ncbiNA2LUT maps each possible input byte to its four decoded ASCII
// bases, most-significant 2-bit pair first. Built once at init instead of
// per-decoder, since it depends on nothing but the fixed 2-bit encoding.
var ncbiNA2LUT [256][4]byte

func init() {
	const bases = "ACGT"
	for x := 0; x < 256; x++ {
		ncbiNA2LUT[x] = [4]byte{
			bases[(x>>6)&0x3],
			bases[(x>>4)&0x3],
			bases[(x>>2)&0x3],
			bases[x&0x3],
		}
	}
}

// NcbiNa2Decoder unpacks a BLAST .nsq 2-bit-per-base nucleotide stream into
// ASCII, truncating at a declared total length so the trailing
// remainder/terminator byte never leaks into the decoded sequence. It is
// not safe for concurrent use by multiple goroutines.
type NcbiNa2Decoder struct {
	length    uint64
	basesSeen uint64
}

// NewNcbiNa2Decoder constructs a decoder that will emit at most length
// bases in total across all Decompress calls.
func NewNcbiNa2Decoder(length uint64) *NcbiNa2Decoder {
	return &NcbiNa2Decoder{length: length}
}

// Decompress decodes one chunk of packed input, returning the ASCII bases
// it contains. The returned slice is truncated so that the running total
// of bases produced never exceeds the decoder's declared length; once that
// length is reached, further calls return nil.
func (d *NcbiNa2Decoder) Decompress(chunk []byte) []byte {
	if d.basesSeen >= d.length {
		return nil
	}
	out := make([]byte, 0, len(chunk)*4)
	for _, b := range chunk {
		quad := ncbiNA2LUT[b]
		out = append(out, quad[:]...)
	}
	if remaining := d.length - d.basesSeen; uint64(len(out)) > remaining {
		out = out[:remaining]
	}
	d.basesSeen += uint64(len(out))
	return out
}

// Flush always returns nil: NcbiNa2 carries no decoder-internal state that
// needs draining once input ends.
func (d *NcbiNa2Decoder) Flush() []byte { return nil }

// BasesSeen reports how many bases have been emitted so far.
func (d *NcbiNa2Decoder) BasesSeen() uint64 { return d.basesSeen }
