package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	taxoniq "github.com/taxoniq/taxoniq-go"
)

// taxonOps are the kebab-cased, public Taxon accessors spec.md §6 names as
// valid <operation> values. Every entry returns a JSON-marshalable value
// (or an error, propagated unchanged per §7).
var taxonOps = map[string]func(tx *taxoniq.Taxon) (interface{}, error){
	"tax-id":            func(tx *taxoniq.Taxon) (interface{}, error) { return tx.TaxID(), nil },
	"rank":               func(tx *taxoniq.Taxon) (interface{}, error) { return tx.Rank().String(), nil },
	"division-id":        func(tx *taxoniq.Taxon) (interface{}, error) { return tx.DivisionID(), nil },
	"specified-species":  func(tx *taxoniq.Taxon) (interface{}, error) { return tx.SpecifiedSpecies(), nil },
	"scientific-name":    func(tx *taxoniq.Taxon) (interface{}, error) { return tx.ScientificName() },
	"common-name":        func(tx *taxoniq.Taxon) (interface{}, error) { return tx.CommonName() },
	"description":        func(tx *taxoniq.Taxon) (interface{}, error) { return tx.Description(), nil },
	"best-available-description": func(tx *taxoniq.Taxon) (interface{}, error) { return tx.BestAvailableDescription() },
	"en-wiki-title":      func(tx *taxoniq.Taxon) (interface{}, error) { return tx.EnWikiTitle() },
	"wikidata-id":        func(tx *taxoniq.Taxon) (interface{}, error) { return tx.WikidataID() },
	"wikidata-url":       func(tx *taxoniq.Taxon) (interface{}, error) { return tx.WikidataURL() },
	"url":                func(tx *taxoniq.Taxon) (interface{}, error) { return tx.URL(), nil },
	"host":               func(tx *taxoniq.Taxon) (interface{}, error) { return tx.Host() },
	"parent": func(tx *taxoniq.Taxon) (interface{}, error) {
		p, err := tx.Parent()
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, nil
		}
		return p.TaxID(), nil
	},
	"lineage":            func(tx *taxoniq.Taxon) (interface{}, error) { return taxIDList(tx.Lineage()) },
	"ranked-lineage":      func(tx *taxoniq.Taxon) (interface{}, error) { return taxIDList(tx.RankedLineage()) },
	"child-nodes":         func(tx *taxoniq.Taxon) (interface{}, error) { return taxIDList(tx.ChildNodes()) },
	"ranked-child-nodes":  func(tx *taxoniq.Taxon) (interface{}, error) { return taxIDList(tx.RankedChildNodes()) },
	"refseq-representative-genome-accessions": func(tx *taxoniq.Taxon) (interface{}, error) {
		return accessionIDList(tx.RefseqRepresentativeGenomeAccessions())
	},
	"refseq-genome-accessions": func(tx *taxoniq.Taxon) (interface{}, error) {
		return accessionIDList(tx.RefseqGenomeAccessions())
	},
}

// accessionOps are the Accession-only operations. They run directly
// against the Accession resolved from --accession-id instead of the
// Taxon it belongs to; taxonOps entries with the same name (e.g.
// "tax-id") still apply when --taxon-id or --scientific-name is given.
var accessionOps = map[string]func(a *taxoniq.Accession) (interface{}, error){
	"accession-id": func(a *taxoniq.Accession) (interface{}, error) { return a.AccessionID(), nil },
	"tax-id":       func(a *taxoniq.Accession) (interface{}, error) { return a.TaxID() },
	"blast-db": func(a *taxoniq.Accession) (interface{}, error) {
		db, err := a.BlastDB()
		if err != nil {
			return nil, err
		}
		return db.String(), nil
	},
	"blast-db-volume": func(a *taxoniq.Accession) (interface{}, error) { return a.BlastDBVolume() },
	"length":          func(a *taxoniq.Accession) (interface{}, error) { return a.Length() },
	"db-offset":       func(a *taxoniq.Accession) (interface{}, error) { return a.DBOffset() },
}

func taxIDList(taxa []*taxoniq.Taxon, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, len(taxa))
	for i, tx := range taxa {
		ids[i] = tx.TaxID()
	}
	return ids, nil
}

func accessionIDList(accs []*taxoniq.Accession, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(accs))
	for i, a := range accs {
		ids[i] = a.AccessionID()
	}
	return ids, nil
}

// identifierFlags reads the three mutually-exclusive identifier flags and
// validates spec.md §6's "exactly one must be present" rule.
type identifierFlags struct {
	taxonID       int64
	hasTaxonID    bool
	accessionID   string
	hasAccession  bool
	scientificName string
	hasSciName    bool
}

func readIdentifierFlags(cmd *cobra.Command) (identifierFlags, error) {
	var f identifierFlags
	f.taxonID, _ = cmd.Flags().GetInt64("taxon-id")
	f.hasTaxonID = cmd.Flags().Changed("taxon-id")
	f.accessionID, _ = cmd.Flags().GetString("accession-id")
	f.hasAccession = cmd.Flags().Changed("accession-id")
	f.scientificName, _ = cmd.Flags().GetString("scientific-name")
	f.hasSciName = cmd.Flags().Changed("scientific-name")

	n := 0
	for _, set := range []bool{f.hasTaxonID, f.hasAccession, f.hasSciName} {
		if set {
			n++
		}
	}
	if n != 1 {
		return f, errors.New("exactly one of --taxon-id, --accession-id, --scientific-name is required")
	}
	return f, nil
}

// runOperation dispatches <operation> against the identifier flags per
// spec.md §6: get-from-s3/get-from-gs stream FASTA; every other operation
// name is looked up in accessionOps (when --accession-id names an
// Accession-level accessor) or taxonOps, and the result is printed as
// --output-format.
func runOperation(cmd *cobra.Command, op string) error {
	flags, err := readIdentifierFlags(cmd)
	if err != nil {
		return err
	}

	if op == "get-from-s3" || op == "get-from-gs" {
		if !flags.hasAccession {
			return errors.Errorf("%s requires --accession-id", op)
		}
		return runFetch(cmd, op, flags.accessionID)
	}

	db := openDB(cmd)
	outputFormat, _ := cmd.Flags().GetString("output-format")

	if fn, ok := accessionOps[op]; ok && flags.hasAccession {
		a, err := db.Accession(flags.accessionID)
		if err != nil {
			return err
		}
		v, err := fn(a)
		if err != nil {
			return err
		}
		return printResult(outputFormat, v)
	}

	fn, ok := taxonOps[op]
	if !ok {
		return errors.Errorf("unknown operation %q", op)
	}

	var tx *taxoniq.Taxon
	switch {
	case flags.hasTaxonID:
		tx, err = db.TaxonByID(uint32(flags.taxonID))
	case flags.hasAccession:
		tx, err = db.TaxonByAccession(flags.accessionID)
	case flags.hasSciName:
		tx, err = db.TaxonByScientificName(flags.scientificName)
	}
	if err != nil {
		return err
	}
	v, err := fn(tx)
	if err != nil {
		return err
	}
	return printResult(outputFormat, v)
}

// printResult writes v to stdout as JSON (the default, matching spec.md
// §6's Concrete Scenario 6 example) or, with --output-format text, as a
// single plain-text line.
func printResult(format string, v interface{}) error {
	if format == "text" {
		fmt.Println(v)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}
