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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taxoniq/taxoniq-go/build"
)

func writeDmpFile(t *testing.T, dir, name string, rows []string) {
	t.Helper()
	var content string
	for _, r := range rows {
		content += r + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
}

func TestRunBuildsTaxaAndAttrIndices(t *testing.T) {
	taxdumpDir := t.TempDir()
	outDir := t.TempDir()

	writeDmpFile(t, taxdumpDir, "nodes.dmp", []string{
		"1\t|\t1\t|\tno rank\t|\t\t|\t8\t|\t0\t|\t1\t|\t0\t|\t0\t|\t0\t|\t0\t|\t0\t|\t\t|\t0\t|\t0\t|\t0\t|\t0\t|\t0\t|",
		"562\t|\t1\t|\tspecies\t|\t\t|\t0\t|\t0\t|\t1\t|\t0\t|\t0\t|\t0\t|\t0\t|\t0\t|\t\t|\t0\t|\t0\t|\t1\t|\t0\t|\t0\t|",
	})
	writeDmpFile(t, taxdumpDir, "names.dmp", []string{
		"1\t|\troot\t|\t\t|\tscientific name\t|",
		"562\t|\tEscherichia coli\t|\t\t|\tscientific name\t|",
		"562\t|\tE. coli\t|\t\t|\tgenbank common name\t|",
	})
	writeDmpFile(t, taxdumpDir, "host.dmp", []string{
		"562\t|\tbacteria,vertebrates\t|",
	})

	if err := Run(context.TODO(), BuildConfig{TaxdumpDir: taxdumpDir, OutDir: outDir}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	db, err := Open(outDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tx, err := db.TaxonByID(562)
	if err != nil {
		t.Fatalf("TaxonByID(562): %v", err)
	}
	if sn, err := tx.ScientificName(); err != nil || sn != "Escherichia coli" {
		t.Fatalf("ScientificName() = %q, %v, want Escherichia coli", sn, err)
	}
	if cn, err := tx.CommonName(); err != nil || cn != "E. coli" {
		t.Fatalf("CommonName() = %q, %v, want E. coli", cn, err)
	}
	host, err := tx.Host()
	if err != nil || len(host) != 2 || host[0] != "bacteria" {
		t.Fatalf("Host() = %v, %v, want [bacteria vertebrates]", host, err)
	}

	root, err := db.TaxonByID(1)
	if err != nil {
		t.Fatalf("TaxonByID(1): %v", err)
	}
	children, err := root.ChildNodes()
	if err != nil {
		t.Fatalf("ChildNodes(): %v", err)
	}
	if len(children) != 1 || children[0].TaxID() != 562 {
		t.Fatalf("ChildNodes() = %v, want [562]", taxIDs(children))
	}

	byName, err := db.TaxonByScientificName("Escherichia coli")
	if err != nil || byName.TaxID() != 562 {
		t.Fatalf("TaxonByScientificName = %v, %v, want 562", byName, err)
	}
}

func TestWriteChildNodesAttrSkipsRootSelfLoop(t *testing.T) {
	outDir := t.TempDir()
	nodes := []build.NodeRecord{
		{TaxID: 1, Parent: 1},
		{TaxID: 2, Parent: 1},
		{TaxID: 3, Parent: 1},
	}
	if err := writeChildNodesAttr(outDir, nodes); err != nil {
		t.Fatalf("writeChildNodesAttr: %v", err)
	}
	db, err := Open(outDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx, err := db.reg.index(outDir, attrPosIndexName(childNodesAttr), singleU32Schema())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.Contains("2") || idx.Contains("3") {
		t.Fatalf("child tax_ids should not themselves have a child_nodes entry")
	}
	if !idx.Contains("1") {
		t.Fatalf("root should have a child_nodes entry")
	}
	recs, _, err := idx.Lookup("1")
	if err != nil {
		t.Fatalf("Lookup(1): %v", err)
	}
	blob, err := db.reg.blob(outDir, attrBlobName(childNodesAttr))
	if err != nil {
		t.Fatalf("blob: %v", err)
	}
	if kids, err := blob.get(recs.First().Uint32(0)); err != nil || kids != "2,3" {
		t.Fatalf("root child_nodes = %q, %v, want \"2,3\" (no self-loop)", kids, err)
	}
}
