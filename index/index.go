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

// Package index implements taxoniq's key -> fixed-record lookup structure
// (component C1 of the design). It trades the reference implementation's
// MARISA labeled trie for the "simpler acceptable alternative" the design
// explicitly allows: a sorted flat file of (key, record) entries, read-only
// memory mapped, with a footer of entry offsets enabling O(log n) binary
// search. Byte-for-byte compatibility with MARISA is not a goal; the
// contract operations (Open, Lookup, Contains) are.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// Magic identifies an index file produced by this package.
var Magic = [8]byte{'t', 'x', 'q', 'i', 'd', 'x', '1', '\n'}

// Version is the on-disk format version.
const Version uint8 = 1

// ErrInvalidFormat means the magic number or version did not match.
var ErrInvalidFormat = fmt.Errorf("index: invalid or incompatible index file")

// ErrTruncated means the file is shorter than its header claims.
var ErrTruncated = fmt.Errorf("index: truncated index file")

// ErrSchemaMismatch is returned by Lookup when a key's stored payload
// length is not an exact multiple of the schema's record size.
var ErrSchemaMismatch = fmt.Errorf("index: record payload size is not a multiple of the schema's record size")

// fieldSize maps a schema letter to its encoded width in bytes.
func fieldSize(c byte) (int, error) {
	switch c {
	case 'I':
		return 4, nil
	case 'H':
		return 2, nil
	case 'B':
		return 1, nil
	default:
		return 0, fmt.Errorf("index: unknown schema field %q (want one of I, H, B)", c)
	}
}

// Schema describes the fixed fields of one record, as a sequence of
// unsigned-integer widths: 'I' = uint32, 'H' = uint16, 'B' = uint8.
type Schema string

// Size returns the byte width of one record under this schema.
func (s Schema) Size() (int, error) {
	total := 0
	for i := 0; i < len(s); i++ {
		n, err := fieldSize(s[i])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Record is a single fixed-width record view over mapped bytes, decoded
// per a Schema.
type Record struct {
	schema Schema
	data   []byte
}

// Uint32 returns the value of the i-th schema field, which must be 'I'.
func (r Record) Uint32(i int) uint32 {
	off := r.fieldOffset(i)
	return binary.BigEndian.Uint32(r.data[off : off+4])
}

// Uint16 returns the value of the i-th schema field, which must be 'H'.
func (r Record) Uint16(i int) uint16 {
	off := r.fieldOffset(i)
	return binary.BigEndian.Uint16(r.data[off : off+2])
}

// Uint8 returns the value of the i-th schema field, which must be 'B'.
func (r Record) Uint8(i int) uint8 {
	off := r.fieldOffset(i)
	return r.data[off]
}

func (r Record) fieldOffset(i int) int {
	off := 0
	for j := 0; j < i; j++ {
		n, _ := fieldSize(r.schema[j])
		off += n
	}
	return off
}

// Records is the ordered list of records a key mapped to. Taxoniq never
// writes more than one record per key; callers read the first.
type Records struct {
	schema     Schema
	recordSize int
	data       []byte
}

// Len returns the number of records.
func (r Records) Len() int {
	if r.recordSize == 0 {
		return 0
	}
	return len(r.data) / r.recordSize
}

// At returns the i-th record.
func (r Records) At(i int) Record {
	off := i * r.recordSize
	return Record{schema: r.schema, data: r.data[off : off+r.recordSize]}
}

// First returns the first record. It panics if Len() == 0; callers that
// have already checked a Lookup's ok result are safe.
func (r Records) First() Record { return r.At(0) }

// Index is a read-only, memory-mapped key -> records lookup structure.
type Index struct {
	path   string
	schema Schema
	recSz  int

	f   *os.File
	m   mmap.MMap
	cnt uint64

	entriesStart uint64
	footerStart  uint64
}

const headerSize = 8 + 1 + 8 // magic + version + count

// Open memory-maps the index file at path and prepares it for lookups
// under the given schema. Opening does not validate every stored record;
// each Lookup validates the one key it touches.
func Open(path string, schema Schema) (*Index, error) {
	recSz, err := schema.Size()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "index: open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < headerSize+8 {
		f.Close()
		return nil, ErrTruncated
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "index: mmap %s", path)
	}

	if !bytes.Equal(m[:8], Magic[:]) {
		m.Unmap()
		f.Close()
		return nil, ErrInvalidFormat
	}
	if m[8] != Version {
		m.Unmap()
		f.Close()
		return nil, ErrInvalidFormat
	}
	count := binary.BigEndian.Uint64(m[9:17])

	footerStart := binary.BigEndian.Uint64(m[len(m)-8:])
	if footerStart+count*8+8 != uint64(len(m)) {
		m.Unmap()
		f.Close()
		return nil, ErrTruncated
	}

	return &Index{
		path:         path,
		schema:       schema,
		recSz:        recSz,
		f:            f,
		m:            m,
		cnt:          count,
		entriesStart: headerSize,
		footerStart:  footerStart,
	}, nil
}

// Close unmaps the file and releases its descriptor.
func (idx *Index) Close() error {
	if err := idx.m.Unmap(); err != nil {
		return err
	}
	return idx.f.Close()
}

// Len returns the number of distinct keys in the index.
func (idx *Index) Len() int { return int(idx.cnt) }

func (idx *Index) entryOffset(i uint64) uint64 {
	off := idx.footerStart + i*8
	return binary.BigEndian.Uint64(idx.m[off : off+8])
}

// readKeyAt decodes the key stored at the given absolute entry offset and
// returns it along with the offset of its payload length varint.
func (idx *Index) readKeyAt(off uint64) (key []byte, payloadLenOff uint64) {
	klen, n := binary.Uvarint(idx.m[off:])
	keyStart := off + uint64(n)
	key = idx.m[keyStart : keyStart+klen]
	return key, keyStart + klen
}

// Lookup returns the records stored for key, or ok=false if absent. It
// returns a non-nil error only when the stored payload is structurally
// invalid for the schema this Index was opened with (CorruptIndex, per the
// design's schema-validation contract).
func (idx *Index) Lookup(key string) (recs Records, ok bool, err error) {
	kb := []byte(key)
	lo, hi := 0, int(idx.cnt)
	for lo < hi {
		mid := (lo + hi) / 2
		off := idx.entryOffset(uint64(mid))
		mkey, _ := idx.readKeyAt(off)
		cmp := bytes.Compare(mkey, kb)
		if cmp == 0 {
			return idx.decodeAt(off)
		} else if cmp < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return Records{}, false, nil
}

func (idx *Index) decodeAt(off uint64) (Records, bool, error) {
	_, payloadOff := idx.readKeyAt(off)
	plen, n := binary.Uvarint(idx.m[payloadOff:])
	dataStart := payloadOff + uint64(n)
	data := idx.m[dataStart : dataStart+plen]
	if idx.recSz == 0 || int(plen)%idx.recSz != 0 {
		return Records{}, false, ErrSchemaMismatch
	}
	return Records{schema: idx.schema, recordSize: idx.recSz, data: data}, true, nil
}

// Contains reports whether key is present, without decoding its records.
func (idx *Index) Contains(key string) bool {
	_, ok, _ := idx.Lookup(key)
	return ok
}

// entry is one (key, fields...) pair staged by a Builder before it is
// sorted and written out.
type entry struct {
	key    []byte
	fields []uint64
}

// Builder constructs an Index file from an unsorted stream of (key,
// record-fields) pairs, writing the final file atomically on Close.
type Builder struct {
	path    string
	schema  Schema
	recSz   int
	entries []entry
}

// NewBuilder prepares a Builder that will write its output to path (via a
// temporary file renamed into place on Close).
func NewBuilder(path string, schema Schema) (*Builder, error) {
	recSz, err := schema.Size()
	if err != nil {
		return nil, err
	}
	return &Builder{path: path, schema: schema, recSz: recSz}, nil
}

// Add stages one key -> record mapping. fields must have one value per
// schema field, encoded as a uint64 regardless of field width. Keys may be
// added in any order; Builder sorts them before writing.
func (b *Builder) Add(key string, fields ...uint64) error {
	if len(fields) != len(b.schema) {
		return fmt.Errorf("index: Add(%q): got %d fields, schema %q wants %d", key, len(fields), b.schema, len(b.schema))
	}
	b.entries = append(b.entries, entry{key: []byte(key), fields: append([]uint64(nil), fields...)})
	return nil
}

// Len returns the number of staged entries.
func (b *Builder) Len() int { return len(b.entries) }

// Close sorts the staged entries by key, writes them to a temporary file
// alongside the destination path, and renames it into place.
func (b *Builder) Close() error {
	sort.Slice(b.entries, func(i, j int) bool { return bytes.Compare(b.entries[i].key, b.entries[j].key) < 0 })

	tmp := b.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "index: create %s", tmp)
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(Version)
	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], uint64(len(b.entries)))
	buf.Write(countBuf[:])

	offsets := make([]uint64, len(b.entries))
	varintBuf := make([]byte, binary.MaxVarintLen64)
	payload := make([]byte, b.recSz)
	for i, e := range b.entries {
		offsets[i] = uint64(buf.Len())

		n := binary.PutUvarint(varintBuf, uint64(len(e.key)))
		buf.Write(varintBuf[:n])
		buf.Write(e.key)

		n = binary.PutUvarint(varintBuf, uint64(b.recSz))
		buf.Write(varintBuf[:n])

		encodeRecord(payload, b.schema, e.fields)
		buf.Write(payload)
	}

	footerStart := uint64(buf.Len())
	var off8 [8]byte
	for _, off := range offsets {
		binary.BigEndian.PutUint64(off8[:], off)
		buf.Write(off8[:])
	}
	binary.BigEndian.PutUint64(off8[:], footerStart)
	buf.Write(off8[:])

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "index: write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, b.path)
}

func encodeRecord(dst []byte, schema Schema, fields []uint64) {
	off := 0
	for i := 0; i < len(schema); i++ {
		switch schema[i] {
		case 'I':
			binary.BigEndian.PutUint32(dst[off:], uint32(fields[i]))
			off += 4
		case 'H':
			binary.BigEndian.PutUint16(dst[off:], uint16(fields[i]))
			off += 2
		case 'B':
			dst[off] = byte(fields[i])
			off++
		}
	}
}
