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
	"bufio"
	"context"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const refseqAssemblySummaryURL = "https://ftp.ncbi.nlm.nih.gov/genomes/refseq/assembly_summary_refseq.txt"

// AssemblySummaryRow is one non-comment row of assembly_summary_refseq.txt,
// restricted to the columns the selection rule in spec.md §4.8 reads.
// Rows whose release_type isn't "Major" are dropped at parse time, matching
// build.py's download_refseq_accessions.
type AssemblySummaryRow struct {
	AssemblyAccession string
	TaxID             uint32
	RefseqCategory    string
	AssemblyLevel     string
	ReleaseType       string
	GenomeRep         string
	SeqRelDate        string
	FtpPath           string
}

// FetchAssemblySummary downloads and parses assembly_summary_refseq.txt.
func FetchAssemblySummary(ctx context.Context, client *http.Client) ([]AssemblySummaryRow, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, refseqAssemblySummaryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching assembly_summary_refseq.txt")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("assembly_summary_refseq.txt: status %d", resp.StatusCode)
	}
	return parseAssemblySummary(resp.Body)
}

func parseAssemblySummary(r io.Reader) ([]AssemblySummaryRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var rows []AssemblySummaryRow
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 16 {
			continue
		}
		row := AssemblySummaryRow{
			AssemblyAccession: f[0],
			TaxID:             parseTaxIDField(f[5]),
			RefseqCategory:    f[4],
			AssemblyLevel:     f[11],
			ReleaseType:       f[12],
			GenomeRep:         f[13],
			SeqRelDate:        f[14],
		}
		if len(f) > 19 {
			row.FtpPath = f[19]
		}
		if row.ReleaseType != "Major" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func parseTaxIDField(s string) uint32 {
	var v uint32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint32(c-'0')
	}
	return v
}

// assemblySortKey implements the selection rule from spec.md §4.8: prefer
// refseq_category in {representative, reference}, then assembly_level in
// {Contig, Scaffold, Chromosome, Complete Genome} (ascending completeness),
// then genome_rep in {Partial, Full}. Lower key sorts first (best). The
// fourth slot is always 0; seq_rel_date ties are broken by
// SelectBestAssemblies, not by this key.
func assemblySortKey(row AssemblySummaryRow) [4]int {
	category := 1
	switch row.RefseqCategory {
	case "representative genome", "reference genome":
		category = 0
	}
	level := map[string]int{"Contig": 3, "Scaffold": 2, "Chromosome": 1, "Complete Genome": 0}[row.AssemblyLevel]
	rep := map[string]int{"Full": 0, "Partial": 1}[row.GenomeRep]
	return [4]int{category, level, rep, 0}
}

// SelectBestAssemblies picks, for each tax_id, the single best assembly
// among rows (parseAssemblySummary has already dropped rows whose
// release_type is not "Major"), by the sort key above, breaking ties by
// the most recent seq_rel_date.
func SelectBestAssemblies(rows []AssemblySummaryRow) map[uint32]AssemblySummaryRow {
	best := make(map[uint32]AssemblySummaryRow)
	for _, row := range rows {
		cur, ok := best[row.TaxID]
		if !ok {
			best[row.TaxID] = row
			continue
		}
		ka, kb := assemblySortKey(row), assemblySortKey(cur)
		switch {
		case ka != kb:
			if less4(ka, kb) {
				best[row.TaxID] = row
			}
		case row.SeqRelDate > cur.SeqRelDate:
			best[row.TaxID] = row
		}
	}
	return best
}

func less4(a, b [4]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// GenbankAccessions sorts and comma-joins the genbank_accn list an
// _assembly_report.txt exposes for one assembly (restricted to
// sequence_role == "assembled-molecule" rows by the caller).
func GenbankAccessions(accns []string) string {
	sorted := append([]string(nil), accns...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// AssemblyReportMolecule is one "assembled-molecule" row of an
// <assembly>_assembly_report.txt, restricted to the genbank_accn column
// the taxid2refseq selection rule needs.
type AssemblyReportMolecule struct {
	GenbankAccn string
}

// assemblyReportURL derives the https _assembly_report.txt URL for an
// assembly from its assembly_summary_refseq.txt ftp_path column, the way
// build.py's process_assembly_report does: swap the ftp:// scheme for
// https:// and append "/<basename(ftp_path)>_assembly_report.txt".
func assemblyReportURL(ftpPath string) string {
	https := strings.Replace(ftpPath, "ftp", "https", 1)
	return https + "/" + path.Base(ftpPath) + "_assembly_report.txt"
}

// FetchAssemblyReport downloads and parses the _assembly_report.txt for
// the assembly at ftpPath (an AssemblySummaryRow.FtpPath), returning only
// its "assembled-molecule" rows.
func FetchAssemblyReport(ctx context.Context, client *http.Client, ftpPath string) ([]AssemblyReportMolecule, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := assemblyReportURL(ftpPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return parseAssemblyReport(resp.Body)
}

// assembly_report.txt's column order, per build.py's assembly_report_fields.
const (
	assemblyReportSequenceRole = 1
	assemblyReportGenbankAccn  = 4
)

func parseAssemblyReport(r io.Reader) ([]AssemblyReportMolecule, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var out []AssemblyReportMolecule
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) <= assemblyReportGenbankAccn {
			continue
		}
		if f[assemblyReportSequenceRole] != "assembled-molecule" {
			continue
		}
		out = append(out, AssemblyReportMolecule{GenbankAccn: f[assemblyReportGenbankAccn]})
	}
	return out, scanner.Err()
}
