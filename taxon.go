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
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/taxoniq/taxoniq-go/index"
)

// maxLineageSteps bounds the parent walk so malformed (cyclic) data fails
// CorruptIndex instead of looping forever. NCBI's tree is, in practice,
// well under 50 levels deep.
const maxLineageSteps = 128

const (
	taxaIndexName       = "taxa.marisa"
	sn2taxidIndexName   = "sn2taxid.marisa"
	wikidataIndexName   = "wikidata.marisa"
	scientificNameAttr  = "scientific_name"
	commonNameAttr      = "common_name"
	descriptionAttr     = "description"
	enWikiTitleAttr     = "en_wiki_title"
	childNodesAttr      = "child_nodes"
	hostAttr            = "host"
	taxid2refrepAttr    = "taxid2refrep"
	taxid2refseqAttr    = "taxid2refseq"
)

func taxaSchema() index.Schema     { return index.Schema("IBBB") }
func singleU32Schema() index.Schema { return index.Schema("I") }

func attrPosIndexName(attr string) string { return attr + ".marisa" }
func attrBlobName(attr string) string     { return attr + ".zstd" }

// Taxon is one NCBI Taxonomy node: its rank, lineage pointers, and
// optional descriptive string attributes. Construct one with
// (*DB).TaxonByID, (*DB).TaxonByAccession, (*DB).TaxonByScientificName, or
// the package-level ByID/ByAccession/ByScientificName helpers that use the
// process-wide default DB.
type Taxon struct {
	db     *DB
	taxID  uint32
	parent uint32
	rank   Rank
	divID  uint8
	specSp uint8

	mu       sync.Mutex
	strCache map[string]string
}

// TaxID returns the taxon's numeric NCBI Taxonomy id.
func (t *Taxon) TaxID() uint32 { return t.taxID }

// Equal reports whether two taxa refer to the same tax_id.
func (t *Taxon) Equal(o *Taxon) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.taxID == o.taxID
}

func (t *Taxon) String() string { return fmt.Sprintf("taxoniq.Taxon(%d)", t.taxID) }

// ByID looks up a taxon by tax_id in the process-wide default DB.
func ByID(taxID uint32) (*Taxon, error) {
	db, err := Default()
	if err != nil {
		return nil, err
	}
	return db.TaxonByID(taxID)
}

// ByAccession looks up a taxon by sequence accession in the process-wide
// default DB.
func ByAccession(accessionID string) (*Taxon, error) {
	db, err := Default()
	if err != nil {
		return nil, err
	}
	return db.TaxonByAccession(accessionID)
}

// ByScientificName looks up a taxon by its unique scientific name in the
// process-wide default DB.
func ByScientificName(name string) (*Taxon, error) {
	db, err := Default()
	if err != nil {
		return nil, err
	}
	return db.TaxonByScientificName(name)
}

// TaxonByID looks up a taxon by tax_id.
func (db *DB) TaxonByID(taxID uint32) (*Taxon, error) {
	idx, err := db.reg.index(db.dir, taxaIndexName, taxaSchema())
	if err != nil {
		return nil, err
	}
	recs, ok, err := idx.Lookup(strconv.FormatUint(uint64(taxID), 10))
	if err != nil {
		return nil, &CorruptIndexError{Path: taxaIndexName, Reason: err.Error()}
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "tax_id %d", taxID)
	}
	r := recs.First()
	return &Taxon{
		db:     db,
		taxID:  taxID,
		parent: r.Uint32(0),
		rank:   Rank(r.Uint8(1)),
		divID:  r.Uint8(2),
		specSp: r.Uint8(3),
	}, nil
}

// TaxonByAccession resolves accessionID to a tax_id via the accession
// index, then looks up that taxon.
func (db *DB) TaxonByAccession(accessionID string) (*Taxon, error) {
	acc, err := db.Accession(accessionID)
	if err != nil {
		return nil, err
	}
	taxID, err := acc.TaxID()
	if err != nil {
		return nil, err
	}
	return db.TaxonByID(taxID)
}

// TaxonByScientificName resolves name to a tax_id via the sn2taxid index,
// then looks up that taxon.
func (db *DB) TaxonByScientificName(name string) (*Taxon, error) {
	idx, err := db.reg.index(db.dir, sn2taxidIndexName, singleU32Schema())
	if err != nil {
		return nil, err
	}
	recs, ok, err := idx.Lookup(name)
	if err != nil {
		return nil, &CorruptIndexError{Path: sn2taxidIndexName, Reason: err.Error()}
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "scientific name %q", name)
	}
	return db.TaxonByID(recs.First().Uint32(0))
}

// Rank returns the taxon's NCBI rank.
func (t *Taxon) Rank() Rank { return t.rank }

// DivisionID returns the NCBI division id of the taxon.
func (t *Taxon) DivisionID() uint8 { return t.divID }

// SpecifiedSpecies reports whether a species in this node's lineage has a
// formal name.
func (t *Taxon) SpecifiedSpecies() bool { return t.specSp != 0 }

// Parent returns the taxon's parent, or nil if this is the root (tax_id
// 1, whose parent points to itself).
func (t *Taxon) Parent() (*Taxon, error) {
	if t.taxID == 1 {
		return nil, nil
	}
	return t.db.TaxonByID(t.parent)
}

func (t *Taxon) getStrAttr(attr string) (string, error) {
	t.mu.Lock()
	if v, ok := t.strCache[attr]; ok {
		t.mu.Unlock()
		return v, nil
	}
	t.mu.Unlock()

	posIdx, err := t.db.reg.index(t.db.dir, attrPosIndexName(attr), singleU32Schema())
	if err != nil {
		return "", err
	}
	recs, ok, err := posIdx.Lookup(strconv.FormatUint(uint64(t.taxID), 10))
	if err != nil {
		return "", &CorruptIndexError{Path: attrPosIndexName(attr), Reason: err.Error()}
	}
	if !ok {
		return "", errors.Wrapf(ErrNoValue, "tax_id %d has no %s", t.taxID, attr)
	}
	blob, err := t.db.reg.blob(t.db.dir, attrBlobName(attr))
	if err != nil {
		return "", err
	}
	s, err := blob.get(recs.First().Uint32(0))
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	if t.strCache == nil {
		t.strCache = make(map[string]string, 4)
	}
	t.strCache[attr] = s
	t.mu.Unlock()
	return s, nil
}

// ScientificName returns the taxon's unique scientific name.
func (t *Taxon) ScientificName() (string, error) { return t.getStrAttr(scientificNameAttr) }

// CommonName returns the taxon's common name: the NCBI BLAST name if
// present, else the GenBank common name, else the first listed common
// name (selection already applied at build time). ErrNoValue if none.
func (t *Taxon) CommonName() (string, error) { return t.getStrAttr(commonNameAttr) }

// Description returns the taxon's English Wikipedia introductory prose,
// or "" if none is indexed.
func (t *Taxon) Description() string {
	s, err := t.getStrAttr(descriptionAttr)
	if err != nil {
		return ""
	}
	return s
}

// BestAvailableDescription walks from this taxon toward the root,
// returning the first non-empty Description() encountered.
func (t *Taxon) BestAvailableDescription() (string, error) {
	cur := t
	for i := 0; i < maxLineageSteps; i++ {
		if d := cur.Description(); d != "" {
			return d, nil
		}
		if cur.taxID == 1 {
			return "", nil
		}
		next, err := cur.Parent()
		if err != nil {
			return "", err
		}
		cur = next
	}
	return "", &CorruptIndexError{Reason: "lineage walk did not terminate within step bound"}
}

// EnWikiTitle returns the taxon's English Wikipedia article title, if
// indexed.
func (t *Taxon) EnWikiTitle() (string, error) { return t.getStrAttr(enWikiTitleAttr) }

// WikidataID returns the taxon's Wikidata item id, formatted "Q<digits>".
func (t *Taxon) WikidataID() (string, error) {
	idx, err := t.db.reg.index(t.db.dir, wikidataIndexName, singleU32Schema())
	if err != nil {
		return "", err
	}
	recs, ok, err := idx.Lookup(strconv.FormatUint(uint64(t.taxID), 10))
	if err != nil {
		return "", &CorruptIndexError{Path: wikidataIndexName, Reason: err.Error()}
	}
	if !ok {
		return "", errors.Wrapf(ErrNoValue, "tax_id %d has no wikidata id", t.taxID)
	}
	return fmt.Sprintf("Q%d", recs.First().Uint32(0)), nil
}

// URL returns the NCBI Taxonomy Browser URL for this taxon.
func (t *Taxon) URL() string {
	return fmt.Sprintf("https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?mode=Info&id=%d", t.taxID)
}

// WikidataURL returns the Wikidata item URL for this taxon, if it has one.
func (t *Taxon) WikidataURL() (string, error) {
	id, err := t.WikidataID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://www.wikidata.org/wiki/%s", id), nil
}

// Lineage returns the taxon's ancestor chain, ordered from itself to the
// root (tax_id 1) inclusive. CorruptIndex if the parent walk does not
// terminate within maxLineageSteps.
func (t *Taxon) Lineage() ([]*Taxon, error) {
	lineage := []*Taxon{t}
	cur := t
	for cur.taxID != 1 {
		if len(lineage) >= maxLineageSteps {
			return nil, &CorruptIndexError{Reason: "lineage walk did not terminate within step bound"}
		}
		next, err := t.db.TaxonByID(cur.parent)
		if err != nil {
			return nil, err
		}
		lineage = append(lineage, next)
		cur = next
	}
	return lineage, nil
}

// RankedLineage returns the subset of Lineage() whose rank is one of the
// eight major ranks (species, genus, family, order, class, phylum,
// kingdom, superkingdom).
func (t *Taxon) RankedLineage() ([]*Taxon, error) {
	full, err := t.Lineage()
	if err != nil {
		return nil, err
	}
	out := make([]*Taxon, 0, len(full))
	for _, tx := range full {
		if rankedLineageRanks[tx.rank] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (t *Taxon) parseIDList(attr string) ([]uint32, error) {
	s, err := t.getStrAttr(attr)
	if err != nil {
		if errors.Is(err, ErrNoValue) {
			return nil, nil
		}
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint32, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, &CorruptIndexError{Reason: fmt.Sprintf("%s: invalid tax_id %q", attr, p)}
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

// ChildNodes returns the taxon's direct children.
func (t *Taxon) ChildNodes() ([]*Taxon, error) {
	ids, err := t.parseIDList(childNodesAttr)
	if err != nil {
		return nil, err
	}
	out := make([]*Taxon, 0, len(ids))
	for _, id := range ids {
		child, err := t.db.TaxonByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// RankedChildNodes returns the subset of ChildNodes() whose rank is one of
// the eight major ranks.
func (t *Taxon) RankedChildNodes() ([]*Taxon, error) {
	children, err := t.ChildNodes()
	if err != nil {
		return nil, err
	}
	out := make([]*Taxon, 0, len(children))
	for _, c := range children {
		if rankedLineageRanks[c.rank] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Host returns the taxon's potential host descriptors, or nil if none are
// indexed.
func (t *Taxon) Host() ([]string, error) {
	s, err := t.getStrAttr(hostAttr)
	if err != nil {
		if errors.Is(err, ErrNoValue) {
			return nil, nil
		}
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, ","), nil
}

func (t *Taxon) accessionList(attr string) ([]*Accession, error) {
	s, err := t.getStrAttr(attr)
	if err != nil {
		if errors.Is(err, ErrNoValue) {
			return nil, nil
		}
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]*Accession, 0, len(parts))
	for _, p := range parts {
		out = append(out, t.db.NewAccession(strings.TrimSpace(p)))
	}
	return out, nil
}

// RefseqRepresentativeGenomeAccessions returns this taxon's RefSeq
// representative/reference genome assembly accessions.
func (t *Taxon) RefseqRepresentativeGenomeAccessions() ([]*Accession, error) {
	return t.accessionList(taxid2refrepAttr)
}

// RefseqGenomeAccessions returns this taxon's RefSeq genome assembly
// accessions.
func (t *Taxon) RefseqGenomeAccessions() ([]*Accession, error) {
	return t.accessionList(taxid2refseqAttr)
}
