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

	"github.com/taxoniq/taxoniq-go/index"
)

func mkdirForIndex(t *testing.T, dir, indexName string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, indexName)), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
}

func TestPackAccession(t *testing.T) {
	cases := []struct{ in, want string }{
		{"NC_000913.3", "NC000913.3"},
		{"NC_000913.1", "NC000913"},
		{"NC_000913", "NC000913"},
		{"NC0009133", "NC0009133"},
		{"AB_123.1", "AB123"},
	}
	for _, c := range cases {
		if got := packAccession(c.in); got != c.want {
			t.Errorf("packAccession(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func buildTestAccessionDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()

	mkdirForIndex(t, dir, accessionsIndexName)
	accB, err := index.NewBuilder(dir+"/"+accessionsIndexName, accessionsSchema())
	if err != nil {
		t.Fatalf("NewBuilder(accessions): %v", err)
	}
	dbInfo := (uint64(RefProk) << 8) | 7
	if err := accB.Add(packAccession("NC_000913.3"), 511145, dbInfo); err != nil {
		t.Fatalf("accessions.Add: %v", err)
	}
	if err := accB.Close(); err != nil {
		t.Fatalf("accessions.Close: %v", err)
	}

	mkdirForIndex(t, dir, accessionOffsetsIndexName)
	offB, err := index.NewBuilder(dir+"/"+accessionOffsetsIndexName, index.Schema("I"))
	if err != nil {
		t.Fatalf("NewBuilder(offsets): %v", err)
	}
	if err := offB.Add(packAccession("NC_000913.3"), 1024); err != nil {
		t.Fatalf("offsets.Add: %v", err)
	}
	if err := offB.Close(); err != nil {
		t.Fatalf("offsets.Close: %v", err)
	}

	mkdirForIndex(t, dir, accessionLengthsIndexName)
	lenB, err := index.NewBuilder(dir+"/"+accessionLengthsIndexName, index.Schema("I"))
	if err != nil {
		t.Fatalf("NewBuilder(lengths): %v", err)
	}
	if err := lenB.Add(packAccession("NC_000913.3"), 4641652); err != nil {
		t.Fatalf("lengths.Add: %v", err)
	}
	if err := lenB.Close(); err != nil {
		t.Fatalf("lengths.Close: %v", err)
	}

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestAccessionLazyGetters(t *testing.T) {
	db := buildTestAccessionDB(t)
	acc := db.NewAccession("NC_000913.3")

	taxID, err := acc.TaxID()
	if err != nil || taxID != 511145 {
		t.Fatalf("TaxID() = %d, %v, want 511145, nil", taxID, err)
	}
	length, err := acc.Length()
	if err != nil || length != 4641652 {
		t.Fatalf("Length() = %d, %v, want 4641652, nil", length, err)
	}
	bdb, err := acc.BlastDB()
	if err != nil || bdb != RefProk {
		t.Fatalf("BlastDB() = %v, %v, want RefProk", bdb, err)
	}
	vol, err := acc.BlastDBVolume()
	if err != nil || vol != 7 {
		t.Fatalf("BlastDBVolume() = %d, %v, want 7", vol, err)
	}
	off, err := acc.DBOffset()
	if err != nil || off != 1024 {
		t.Fatalf("DBOffset() = %d, %v, want 1024", off, err)
	}
}

func TestAccessionNotFound(t *testing.T) {
	db := buildTestAccessionDB(t)
	acc := db.NewAccession("NC_999999.1")
	if _, err := acc.TaxID(); err == nil {
		t.Fatalf("TaxID() on unknown accession = nil error, want ErrNotFound")
	}
}

func TestDBAccessionAndTaxonByAccession(t *testing.T) {
	dir := t.TempDir()
	// taxa side
	taxaB, err := index.NewBuilder(dir+"/"+taxaIndexName, taxaSchema())
	if err != nil {
		t.Fatalf("NewBuilder(taxa): %v", err)
	}
	if err := taxaB.Add("511145", 562, uint64(RankNoRank), 0, 0); err != nil {
		t.Fatalf("taxa.Add: %v", err)
	}
	if err := taxaB.Close(); err != nil {
		t.Fatalf("taxa.Close: %v", err)
	}
	// accession side
	mkdirForIndex(t, dir, accessionsIndexName)
	accB, err := index.NewBuilder(dir+"/"+accessionsIndexName, accessionsSchema())
	if err != nil {
		t.Fatalf("NewBuilder(accessions): %v", err)
	}
	if err := accB.Add(packAccession("NC_000913.3"), 511145, uint64(RefProk)<<8); err != nil {
		t.Fatalf("accessions.Add: %v", err)
	}
	if err := accB.Close(); err != nil {
		t.Fatalf("accessions.Close: %v", err)
	}

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tx, err := db.TaxonByAccession("NC_000913.3")
	if err != nil {
		t.Fatalf("TaxonByAccession: %v", err)
	}
	if tx.TaxID() != 511145 {
		t.Fatalf("TaxonByAccession().TaxID() = %d, want 511145", tx.TaxID())
	}
}
