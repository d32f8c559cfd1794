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
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts/sortutil"

	"github.com/taxoniq/taxoniq-go/build"
	"github.com/taxoniq/taxoniq-go/index"
)

// BuildConfig centralizes the build pipeline's environment, the way the
// teacher's cmd.Options / getOptions(cmd) centralizes CLI flags: read
// once, passed down explicitly, never a package-global.
type BuildConfig struct {
	// TaxdumpDir holds nodes.dmp, names.dmp and host.dmp.
	TaxdumpDir string
	// BlastDBDir holds the .nin/.nsq volumes for Databases.
	BlastDBDir string
	// Databases are the BLAST database names (as BLASTDatabase.String())
	// to enumerate accessions for.
	Databases []string
	// OutDir is the destination directory for the emitted index/blob
	// artifacts.
	OutDir string
}

// Run executes the full build pipeline: parses the NCBI taxdump into the
// taxa trie and its string-attribute side channels, enumerates accessions
// across cfg.Databases, and writes the C1 tries atomically via
// index.Builder and the C2 blobs in place via stringBlobBuilder. It does
// not fetch RefSeq assembly
// reports or Wikidata -- those are optional, separately driven stages
// (see BuildRefseqIndex, BuildWikidataIndex) because they require network
// access the core taxdump+accessions build does not.
func Run(ctx context.Context, cfg BuildConfig) error {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return &BuildError{Stage: "mkdir", Err: err}
	}

	nodes, err := build.ReadNodes(filepath.Join(cfg.TaxdumpDir, "nodes.dmp"))
	if err != nil {
		return &BuildError{Stage: "nodes.dmp", Err: err}
	}
	names, err := build.ReadNames(filepath.Join(cfg.TaxdumpDir, "names.dmp"))
	if err != nil {
		return &BuildError{Stage: "names.dmp", Err: err}
	}
	hosts, err := build.ReadHost(filepath.Join(cfg.TaxdumpDir, "host.dmp"))
	if err != nil {
		return &BuildError{Stage: "host.dmp", Err: err}
	}

	if err := writeTaxaIndex(cfg.OutDir, nodes); err != nil {
		return err
	}
	if err := writeChildNodesAttr(cfg.OutDir, nodes); err != nil {
		return err
	}
	if err := writeNamesAttrs(cfg.OutDir, names); err != nil {
		return err
	}
	if err := writeHostAttr(cfg.OutDir, hosts); err != nil {
		return err
	}

	taxid2refrep := map[uint32][]string{}
	if err := writeAccessions(ctx, cfg, taxid2refrep); err != nil {
		return err
	}
	if err := writeTaxid2RefrepAttr(cfg.OutDir, taxid2refrep); err != nil {
		return err
	}
	return nil
}

func writeTaxaIndex(outDir string, nodes []build.NodeRecord) error {
	b, err := index.NewBuilder(filepath.Join(outDir, taxaIndexName), taxaSchema())
	if err != nil {
		return &BuildError{Stage: "taxa.marisa", Err: err}
	}
	for _, n := range nodes {
		rank, _ := ParseRank(n.Rank)
		specSp := uint64(0)
		if n.SpecifiedSpecies {
			specSp = 1
		}
		key := strconv.FormatUint(uint64(n.TaxID), 10)
		if err := b.Add(key, uint64(n.Parent), uint64(rank), uint64(n.DivisionID), specSp); err != nil {
			return &BuildError{Stage: "taxa.marisa", Err: err}
		}
	}
	if err := b.Close(); err != nil {
		return &BuildError{Stage: "taxa.marisa", Err: err}
	}
	return nil
}

// writeChildNodesAttr derives child_nodes by inverting parent: the value
// for each tax_id is the comma-joined, ascending-sorted list of tax_ids
// whose parent equals it.
func writeChildNodesAttr(outDir string, nodes []build.NodeRecord) error {
	children := map[uint32][]uint32{}
	for _, n := range nodes {
		if n.TaxID == n.Parent {
			continue // the root's self-loop is not its own child
		}
		children[n.Parent] = append(children[n.Parent], n.TaxID)
	}
	mapping := make(map[string]string, len(children))
	for parent, kids := range children {
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
		parts := make([]string, len(kids))
		for i, k := range kids {
			parts[i] = strconv.FormatUint(uint64(k), 10)
		}
		mapping[strconv.FormatUint(uint64(parent), 10)] = strings.Join(parts, ",")
	}
	return writeStringAttr(outDir, childNodesAttr, mapping)
}

func writeHostAttr(outDir string, hosts []build.HostRecord) error {
	mapping := make(map[string]string, len(hosts))
	for _, h := range hosts {
		mapping[strconv.FormatUint(uint64(h.TaxID), 10)] = h.PotentialHosts
	}
	return writeStringAttr(outDir, hostAttr, mapping)
}

// writeNamesAttrs builds the scientific_name and common_name attributes
// and sn2taxid.marisa from names.dmp, applying the selection rule in spec.md
// §4.8: per tax_id, the first name_class encountered among {scientific
// name, common name, genbank common name, blast name} wins that class;
// CommonName prefers blast name, then genbank common name, then common
// name.
func writeNamesAttrs(outDir string, names []build.NameRecord) error {
	type classSet map[string]string
	byTaxon := map[uint32]classSet{}
	for _, n := range names {
		switch n.NameClass {
		case "scientific name", "common name", "genbank common name", "blast name":
		default:
			continue
		}
		set, ok := byTaxon[n.TaxID]
		if !ok {
			set = classSet{}
			byTaxon[n.TaxID] = set
		}
		if _, already := set[n.NameClass]; already {
			continue
		}
		set[n.NameClass] = n.Name
	}

	sciNames := make(map[string]string, len(byTaxon))
	sn2taxid := make(map[string]string, len(byTaxon))
	commonNames := make(map[string]string, len(byTaxon))
	for taxID, set := range byTaxon {
		key := strconv.FormatUint(uint64(taxID), 10)
		if sn, ok := set["scientific name"]; ok {
			sciNames[key] = sn
			sn2taxid[sn] = key
		}
		switch {
		case set["blast name"] != "":
			commonNames[key] = set["blast name"]
		case set["genbank common name"] != "":
			commonNames[key] = set["genbank common name"]
		case set["common name"] != "":
			commonNames[key] = set["common name"]
		}
	}

	if err := writeStringAttr(outDir, scientificNameAttr, sciNames); err != nil {
		return err
	}
	if err := writeStringAttr(outDir, commonNameAttr, commonNames); err != nil {
		return err
	}

	b, err := index.NewBuilder(filepath.Join(outDir, sn2taxidIndexName), singleU32Schema())
	if err != nil {
		return &BuildError{Stage: "sn2taxid.marisa", Err: err}
	}
	for name, taxIDStr := range sn2taxid {
		taxID, err := strconv.ParseUint(taxIDStr, 10, 32)
		if err != nil {
			return &BuildError{Stage: "sn2taxid.marisa", Err: err}
		}
		if err := b.Add(name, taxID); err != nil {
			return &BuildError{Stage: "sn2taxid.marisa", Err: err}
		}
	}
	if err := b.Close(); err != nil {
		return &BuildError{Stage: "sn2taxid.marisa", Err: err}
	}
	return nil
}

// writeStringAttr writes both halves of a string attribute (the
// tax_id->offset trie and the zstd-compressed blob) from an in-memory
// tax_id(string)->value map.
func writeStringAttr(outDir, attr string, mapping map[string]string) error {
	blob := newStringBlobBuilder()
	posB, err := index.NewBuilder(filepath.Join(outDir, attrPosIndexName(attr)), singleU32Schema())
	if err != nil {
		return &BuildError{Stage: attr, Err: err}
	}
	// Sorted iteration keeps the trie's leaf order (and thus the blob
	// layout) a deterministic function of the input, not map order.
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	// Parallel sort (sortutil.Strings), matching the teacher's own use of
	// twotwotwo/sorts ahead of a bulk trie build: these key lists scale
	// with the full taxon/accession count.
	sortutil.Strings(keys)
	for _, key := range keys {
		off := blob.put(mapping[key])
		if err := posB.Add(key, uint64(off)); err != nil {
			return &BuildError{Stage: attr, Err: err}
		}
	}
	if err := posB.Close(); err != nil {
		return &BuildError{Stage: attr, Err: err}
	}
	f, err := os.Create(filepath.Join(outDir, attrBlobName(attr)))
	if err != nil {
		return &BuildError{Stage: attr, Err: err}
	}
	defer f.Close()
	if _, err := blob.writeTo(f); err != nil {
		return &BuildError{Stage: attr, Err: err}
	}
	return nil
}

// writeAccessions enumerates every configured BLAST database, resolving
// ordinal ids to byte offsets via the .nin header, and writes the three
// accession tries (db_info, offsets, lengths). On a duplicate packed_id
// the first occurrence wins, matching the build script. While processing
// any "ref_*_rep_genomes" database it also populates taxid2refrep (spec.md
// §4.8: "while processing any ref_*_rep_genomes db, collect per-taxon the
// accession list").
func writeAccessions(ctx context.Context, cfg BuildConfig, taxid2refrep map[uint32][]string) error {
	mkdirFor := func(indexName string) error {
		return os.MkdirAll(filepath.Dir(filepath.Join(cfg.OutDir, indexName)), 0o755)
	}
	if err := mkdirFor(accessionsIndexName); err != nil {
		return &BuildError{Stage: "accessions", Err: err}
	}
	if err := mkdirFor(accessionOffsetsIndexName); err != nil {
		return &BuildError{Stage: "accession_offsets", Err: err}
	}
	if err := mkdirFor(accessionLengthsIndexName); err != nil {
		return &BuildError{Stage: "accession_lengths", Err: err}
	}

	accB, err := index.NewBuilder(filepath.Join(cfg.OutDir, accessionsIndexName), accessionsSchema())
	if err != nil {
		return &BuildError{Stage: "accessions", Err: err}
	}
	offB, err := index.NewBuilder(filepath.Join(cfg.OutDir, accessionOffsetsIndexName), index.Schema("I"))
	if err != nil {
		return &BuildError{Stage: "accession_offsets", Err: err}
	}
	lenB, err := index.NewBuilder(filepath.Join(cfg.OutDir, accessionLengthsIndexName), index.Schema("I"))
	if err != nil {
		return &BuildError{Stage: "accession_lengths", Err: err}
	}

	seen := map[string]bool{}
	for _, dbName := range cfg.Databases {
		dbID, ok := ParseBLASTDatabase(dbName)
		if !ok {
			return &BuildError{Stage: "accessions", Err: errors.Errorf("unknown BLAST database %q", dbName)}
		}
		recs, err := build.LoadAccessions(ctx, cfg.BlastDBDir, dbName)
		if err != nil {
			return &BuildError{Stage: "accessions: " + dbName, Err: err}
		}
		for _, rec := range recs {
			packed := packAccession(rec.AccessionID)
			if seen[packed] {
				continue
			}
			seen[packed] = true

			dbInfo := (uint64(dbID) << 8) | uint64(rec.VolumeID)
			if err := accB.Add(packed, uint64(rec.TaxID), dbInfo); err != nil {
				return &BuildError{Stage: "accessions", Err: err}
			}
			if err := offB.Add(packed, uint64(rec.Offset)); err != nil {
				return &BuildError{Stage: "accession_offsets", Err: err}
			}
			if err := lenB.Add(packed, uint64(rec.Length)); err != nil {
				return &BuildError{Stage: "accession_lengths", Err: err}
			}
			if strings.HasPrefix(dbName, "ref_") {
				taxid2refrep[rec.TaxID] = append(taxid2refrep[rec.TaxID], rec.AccessionID)
			}
		}
	}

	if err := accB.Close(); err != nil {
		return &BuildError{Stage: "accessions", Err: err}
	}
	if err := offB.Close(); err != nil {
		return &BuildError{Stage: "accession_offsets", Err: err}
	}
	if err := lenB.Close(); err != nil {
		return &BuildError{Stage: "accession_lengths", Err: err}
	}
	return nil
}

func writeTaxid2RefrepAttr(outDir string, taxid2refrep map[uint32][]string) error {
	mapping := make(map[string]string, len(taxid2refrep))
	for taxID, accessions := range taxid2refrep {
		sort.Strings(accessions)
		mapping[strconv.FormatUint(uint64(taxID), 10)] = strings.Join(accessions, ",")
	}
	return writeStringAttr(outDir, taxid2refrepAttr, mapping)
}

// refseqReportWorkers bounds the concurrent _assembly_report.txt fetches
// BuildRefseqIndex issues, the same bounded-token-channel pattern
// cmd/taxoniq/fetch.go uses for concurrent sequence fetches.
const refseqReportWorkers = 8

// BuildRefseqIndex fetches assembly_summary_refseq.txt, selects each
// tax_id's single best assembly, preferring representative/reference ones
// (see build.SelectBestAssemblies), then fetches that assembly's
// _assembly_report.txt and writes the taxid2refseq attribute as the
// sorted comma-joined genbank_accn list of its assembled-molecule rows
// (spec.md §4.8). It is a separate, optional stage from Run because it
// requires network access.
func BuildRefseqIndex(ctx context.Context, client *http.Client, outDir string) error {
	rows, err := build.FetchAssemblySummary(ctx, client)
	if err != nil {
		return &BuildError{Stage: "assembly_summary_refseq", Err: err}
	}
	best := build.SelectBestAssemblies(rows)

	type reportResult struct {
		taxID uint32
		accns string
		err   error
	}
	results := make(chan reportResult, len(best))
	tokens := make(chan struct{}, refseqReportWorkers)
	var wg sync.WaitGroup
	for taxID, row := range best {
		taxID, row := taxID, row
		wg.Add(1)
		tokens <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-tokens }()
			molecules, err := build.FetchAssemblyReport(ctx, client, row.FtpPath)
			if err != nil {
				results <- reportResult{taxID: taxID, err: err}
				return
			}
			accns := make([]string, 0, len(molecules))
			for _, m := range molecules {
				accns = append(accns, m.GenbankAccn)
			}
			results <- reportResult{taxID: taxID, accns: build.GenbankAccessions(accns)}
		}()
	}
	wg.Wait()
	close(results)

	mapping := make(map[string]string, len(best))
	for r := range results {
		if r.err != nil {
			return &BuildError{Stage: "assembly_report", Err: r.err}
		}
		if r.accns == "" {
			continue
		}
		mapping[strconv.FormatUint(uint64(r.taxID), 10)] = r.accns
	}
	if err := writeStringAttr(outDir, taxid2refseqAttr, mapping); err != nil {
		return &BuildError{Stage: "taxid2refseq", Err: err}
	}
	return nil
}

// BuildWikidataIndex discovers every Wikidata item asserting
// instance-of=taxon, resolves each to its NCBI tax_id and English
// Wikipedia intro extract via f.Fetch, and writes the wikidata id-lookup
// trie plus the description/en_wiki_title string attributes. Like
// BuildRefseqIndex, this is a separate, optional, network-bound stage.
func BuildWikidataIndex(ctx context.Context, f *build.WikidataFetcher, outDir string, maxPages int) error {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	pageQIDs, err := build.DiscoverTaxonPages(ctx, client, maxPages)
	if err != nil {
		return &BuildError{Stage: "wikidata_discover", Err: err}
	}

	records, err := f.Fetch(ctx, pageQIDs, build.FetchWikidataPages, build.FetchWikipediaExtracts)
	if err != nil {
		return &BuildError{Stage: "wikidata_fetch", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(filepath.Join(outDir, wikidataIndexName)), 0o755); err != nil {
		return &BuildError{Stage: "wikidata", Err: err}
	}
	idxB, err := index.NewBuilder(filepath.Join(outDir, wikidataIndexName), singleU32Schema())
	if err != nil {
		return &BuildError{Stage: "wikidata", Err: err}
	}

	descriptions := make(map[string]string, len(records))
	titles := make(map[string]string, len(records))
	for _, rec := range records {
		key := strconv.FormatUint(uint64(rec.TaxID), 10)
		if err := idxB.Add(key, rec.WikidataID); err != nil {
			return &BuildError{Stage: "wikidata", Err: err}
		}
		if rec.Extract != "" {
			descriptions[key] = rec.Extract
		}
		if rec.EnWikiTitle != "" {
			titles[key] = rec.EnWikiTitle
		}
	}
	if err := idxB.Close(); err != nil {
		return &BuildError{Stage: "wikidata", Err: err}
	}
	if err := writeStringAttr(outDir, descriptionAttr, descriptions); err != nil {
		return &BuildError{Stage: "description", Err: err}
	}
	if err := writeStringAttr(outDir, enWikiTitleAttr, titles); err != nil {
		return &BuildError{Stage: "en_wiki_title", Err: err}
	}
	return nil
}
