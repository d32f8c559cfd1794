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

import (
	"os"
	"path/filepath"
	"testing"
)

func buildTestBlob(t *testing.T, payloads []string) (*stringBlob, []uint32) {
	t.Helper()
	b := newStringBlobBuilder()
	offsets := make([]uint32, len(payloads))
	for i, p := range payloads {
		offsets[i] = b.put(p)
	}

	path := filepath.Join(t.TempDir(), "blob.zstd")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.writeTo(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	blob, err := openStringBlob(path)
	if err != nil {
		t.Fatal(err)
	}
	return blob, offsets
}

func TestStringBlobRoundTrip(t *testing.T) {
	payloads := []string{"Escherichia coli", "Pirellula", "Mumps orthorubulavirus"}
	blob, offsets := buildTestBlob(t, payloads)

	for i, want := range payloads {
		got, err := blob.get(offsets[i])
		if err != nil {
			t.Fatalf("get(%d): %v", offsets[i], err)
		}
		if got != want {
			t.Errorf("get(%d) = %q, want %q", offsets[i], got, want)
		}
	}
}

func TestStringBlobDedup(t *testing.T) {
	blob, offsets := buildTestBlob(t, []string{"bacteria", "vertebrates", "bacteria"})
	if offsets[0] != offsets[2] {
		t.Errorf("expected identical payloads to share an offset, got %d and %d", offsets[0], offsets[2])
	}
	got, err := blob.get(offsets[2])
	if err != nil {
		t.Fatal(err)
	}
	if got != "bacteria" {
		t.Errorf("get(%d) = %q, want %q", offsets[2], got, "bacteria")
	}
}

func TestStringBlobSanitizesNewlines(t *testing.T) {
	blob, offsets := buildTestBlob(t, []string{"line one\nline two"})
	got, err := blob.get(offsets[0])
	if err != nil {
		t.Fatal(err)
	}
	want := "line one line two"
	if got != want {
		t.Errorf("get(0) = %q, want %q", got, want)
	}
}

func TestStringBlobOffsetOutOfRange(t *testing.T) {
	blob, _ := buildTestBlob(t, []string{"a"})
	if _, err := blob.get(1 << 20); err == nil {
		t.Error("expected CorruptIndex error for out-of-range offset")
	} else if _, ok := err.(*CorruptIndexError); !ok {
		t.Errorf("expected *CorruptIndexError, got %T", err)
	}
}
