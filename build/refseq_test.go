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

package build

import (
	"strings"
	"testing"
)

func TestParseAssemblySummary(t *testing.T) {
	data := strings.Join([]string{
		"# comment line, skipped",
		strings.Join([]string{
			"GCF_000005845.2", "", "", "", "reference genome", "511145", "", "", "", "", "",
			"Complete Genome", "Major", "Full", "2013/09/26", "Escherichia coli str. K-12 substr. MG1655",
			"", "", "", "ftp://example/path",
		}, "\t"),
	}, "\n")
	rows, err := parseAssemblySummary(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parseAssemblySummary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].TaxID != 511145 {
		t.Fatalf("TaxID = %d, want 511145", rows[0].TaxID)
	}
	if rows[0].RefseqCategory != "reference genome" {
		t.Fatalf("RefseqCategory = %q, want %q", rows[0].RefseqCategory, "reference genome")
	}
}

func TestSelectBestAssembliesPrefersRepresentative(t *testing.T) {
	rows := []AssemblySummaryRow{
		{AssemblyAccession: "A", TaxID: 1, RefseqCategory: "na", AssemblyLevel: "Complete Genome", GenomeRep: "Full", SeqRelDate: "2020/01/01"},
		{AssemblyAccession: "B", TaxID: 1, RefseqCategory: "representative genome", AssemblyLevel: "Scaffold", GenomeRep: "Full", SeqRelDate: "2015/01/01"},
	}
	best := SelectBestAssemblies(rows)
	if best[1].AssemblyAccession != "B" {
		t.Fatalf("best assembly = %q, want B (representative beats complete-but-non-representative)", best[1].AssemblyAccession)
	}
}

func TestSelectBestAssembliesBreaksTiesByDate(t *testing.T) {
	rows := []AssemblySummaryRow{
		{AssemblyAccession: "OLD", TaxID: 2, RefseqCategory: "na", AssemblyLevel: "Complete Genome", GenomeRep: "Full", SeqRelDate: "2010/01/01"},
		{AssemblyAccession: "NEW", TaxID: 2, RefseqCategory: "na", AssemblyLevel: "Complete Genome", GenomeRep: "Full", SeqRelDate: "2020/01/01"},
	}
	best := SelectBestAssemblies(rows)
	if best[2].AssemblyAccession != "NEW" {
		t.Fatalf("best assembly = %q, want NEW (most recent tie-break)", best[2].AssemblyAccession)
	}
}

func TestParseAssemblyReport(t *testing.T) {
	data := strings.Join([]string{
		"# Sequence-Name\tSequence-Role\tAssigned-Molecule",
		strings.Join([]string{"1", "assembled-molecule", "1", "Chromosome", "CP003", "=", "NC_003", "Primary Assembly", "100", "chr1"}, "\t"),
		strings.Join([]string{"unplaced", "unplaced-scaffold", "na", "na", "CP999", "=", "NC_999", "Primary Assembly", "10", "na"}, "\t"),
	}, "\n")
	molecules, err := parseAssemblyReport(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parseAssemblyReport: %v", err)
	}
	if len(molecules) != 1 {
		t.Fatalf("len(molecules) = %d, want 1 (unplaced-scaffold row filtered out)", len(molecules))
	}
	if molecules[0].GenbankAccn != "CP003" {
		t.Fatalf("GenbankAccn = %q, want CP003", molecules[0].GenbankAccn)
	}
}

func TestGenbankAccessions(t *testing.T) {
	got := GenbankAccessions([]string{"CP003", "CP001", "CP002"})
	if got != "CP001,CP002,CP003" {
		t.Fatalf("GenbankAccessions() = %q, want sorted comma-joined", got)
	}
}
