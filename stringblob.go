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
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	farm "github.com/dgryski/go-farm"
)

// stringBlob is a deduplicated, newline-delimited string store: C2 of the
// design. Persisted zstd-compressed; decompressed once into an owned
// buffer on first Open and held for the caller's lifetime.
type stringBlob struct {
	path string
	data []byte
}

// openStringBlob reads and fully zstd-decompresses path into memory.
func openStringBlob(path string) (*stringBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "taxoniq: open string blob %s", path)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "taxoniq: init zstd reader for %s", path)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Wrapf(err, "taxoniq: decompress string blob %s", path)
	}
	return &stringBlob{path: path, data: data}, nil
}

// get returns the UTF-8 string starting at byte offset off, up to (but not
// including) the next '\n'. CorruptIndex if off is out of range or the
// slice is not valid UTF-8.
func (b *stringBlob) get(off uint32) (string, error) {
	if int64(off) > int64(len(b.data)) {
		return "", &CorruptIndexError{Path: b.path, Reason: "string blob offset out of range"}
	}
	rest := b.data[off:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return "", &CorruptIndexError{Path: b.path, Reason: "string blob entry has no terminating newline"}
	}
	s := rest[:nl]
	if !utf8.Valid(s) {
		return "", &CorruptIndexError{Path: b.path, Reason: "string blob entry is not valid UTF-8"}
	}
	return string(s), nil
}

// stringBlobBuilder accumulates payloads for a single string blob, content
// addressing identical payloads (after newline sanitization) to the same
// offset. Payload digests are computed with the Google FarmHash family
// (github.com/dgryski/go-farm), matching the hashing library grailbio/bio
// exercises for its own content-addressed records.
type stringBlobBuilder struct {
	buf    bytes.Buffer
	offset map[uint64]uint32 // farm.Hash64(payload) -> offset, for the common case of no collisions
}

func newStringBlobBuilder() *stringBlobBuilder {
	return &stringBlobBuilder{offset: make(map[uint64]uint32, 1024)}
}

// put sanitizes payload (replacing interior newlines with spaces), writes
// it (plus a terminating '\n') unless an identical payload was already
// written, and returns its offset.
func (sb *stringBlobBuilder) put(payload string) uint32 {
	clean := strings.ReplaceAll(payload, "\n", " ")
	digest := farm.Hash64([]byte(clean))
	if off, ok := sb.offset[digest]; ok {
		// Verify to guard against a hash collision; fall through to a
		// fresh write on mismatch rather than silently aliasing strings.
		if stored, err := (&stringBlob{data: sb.buf.Bytes()}).get(off); err == nil && stored == clean {
			return off
		}
	}
	off := uint32(sb.buf.Len())
	sb.buf.WriteString(clean)
	sb.buf.WriteByte('\n')
	sb.offset[digest] = off
	return off
}

// writeTo zstd-compresses the accumulated buffer to w.
func (sb *stringBlobBuilder) writeTo(w io.Writer) (int64, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, err
	}
	n, err := enc.Write(sb.buf.Bytes())
	if err != nil {
		enc.Close()
		return int64(n), err
	}
	if err := enc.Close(); err != nil {
		return int64(n), err
	}
	return int64(n), nil
}
