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

import "testing"

func TestNcbiNa2DecodeOneByte(t *testing.T) {
	// 0b00_01_10_11 = A C G T
	d := NewNcbiNa2Decoder(4)
	got := d.Decompress([]byte{0b00011011})
	if string(got) != "ACGT" {
		t.Fatalf("Decompress(0b00011011) = %q, want ACGT", got)
	}
	if f := d.Flush(); f != nil {
		t.Fatalf("Flush() = %v, want nil", f)
	}
}

func TestNcbiNa2TruncatesAtDeclaredLength(t *testing.T) {
	// declared length 5 bases; two input bytes would naively decode to 8.
	d := NewNcbiNa2Decoder(5)
	got := d.Decompress([]byte{0b00011011, 0b11100100})
	if len(got) != 5 {
		t.Fatalf("Decompress() returned %d bases, want 5 (truncated)", len(got))
	}
	if string(got) != "ACGTT" {
		t.Fatalf("Decompress() = %q, want ACGTT", got)
	}
	if more := d.Decompress([]byte{0b00000000}); len(more) != 0 {
		t.Fatalf("Decompress() after length reached = %q, want empty", more)
	}
}

func TestNcbiNa2IncrementalChunks(t *testing.T) {
	d := NewNcbiNa2Decoder(8)
	var out []byte
	out = append(out, d.Decompress([]byte{0b00011011})...)
	out = append(out, d.Decompress([]byte{0b11100100})...)
	if string(out) != "ACGTTGCA" {
		t.Fatalf("incremental Decompress() = %q, want ACGTTGCA", out)
	}
	if d.BasesSeen() != 8 {
		t.Fatalf("BasesSeen() = %d, want 8", d.BasesSeen())
	}
}
