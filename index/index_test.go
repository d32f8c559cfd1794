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

package index

import (
	"path/filepath"
	"testing"
)

func buildTestIndex(t *testing.T, schema Schema, rows map[string][]uint64) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.idx")
	b, err := NewBuilder(path, schema)
	if err != nil {
		t.Fatal(err)
	}
	for k, fields := range rows {
		if err := b.Add(k, fields...); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	idx, err := Open(path, schema)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestLookupRoundTrip(t *testing.T) {
	rows := map[string][]uint64{
		"1":       {1, uint64(RankNoRankForTest()), 0, 1},
		"2":       {1, 22, 0, 0},
		"511145":  {562, 26, 0, 0},
		"zzzzzzz": {9, 9, 9, 9},
	}
	idx := buildTestIndex(t, Schema("IBBB"), rows)

	if idx.Len() != len(rows) {
		t.Fatalf("Len() = %d, want %d", idx.Len(), len(rows))
	}

	for k, want := range rows {
		recs, ok, err := idx.Lookup(k)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", k, err)
		}
		if !ok {
			t.Fatalf("Lookup(%q): not found", k)
		}
		if recs.Len() != 1 {
			t.Fatalf("Lookup(%q): got %d records, want 1", k, recs.Len())
		}
		r := recs.First()
		got := []uint64{uint64(r.Uint32(0)), uint64(r.Uint8(1)), uint64(r.Uint8(2)), uint64(r.Uint8(3))}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Lookup(%q)[%d] = %d, want %d", k, i, got[i], want[i])
			}
		}
	}

	if !idx.Contains("2") {
		t.Error("Contains(2) = false, want true")
	}
	if idx.Contains("no-such-key") {
		t.Error("Contains(no-such-key) = true, want false")
	}
	if _, ok, _ := idx.Lookup("no-such-key"); ok {
		t.Error("Lookup(no-such-key) ok = true, want false")
	}
}

// RankNoRankForTest avoids importing the root package (which would create
// an import cycle with index's own tests); it just returns a plausible
// rank id for a TaxonRecord fixture.
func RankNoRankForTest() uint8 { return 44 }

func TestSchemaSize(t *testing.T) {
	cases := []struct {
		schema Schema
		want   int
	}{
		{"I", 4},
		{"IH", 6},
		{"IBBB", 7},
		{"H", 2},
		{"", 0},
	}
	for _, c := range cases {
		got, err := c.schema.Size()
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("Schema(%q).Size() = %d, want %d", c.schema, got, c.want)
		}
	}
}

func TestSchemaRejectsUnknownField(t *testing.T) {
	if _, err := Schema("X").Size(); err == nil {
		t.Error("expected error for unknown schema field")
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := buildTestIndex(t, Schema("I"), map[string][]uint64{})
	if idx.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", idx.Len())
	}
	if idx.Contains("anything") {
		t.Error("Contains on empty index returned true")
	}
}
