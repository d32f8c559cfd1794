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
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	wikidataPageBatch    = 50
	wikidataExtractBatch = 20
	wikidataTaxonQID     = "Q16521"  // "taxon"
	wikidataNCBITaxIDPID = "P685"
)

// WikidataFetcher walks Wikidata pages linking to Q16521 ("taxon") and
// fetches their English Wikipedia intro extracts, matching the
// original build script's thread-pool-over-id-batches shape (here, the
// teacher's own bounded token-channel worker pool -- see split.go).
type WikidataFetcher struct {
	Client  *http.Client
	Threads int
}

// WikidataRecord is one retained (taxid, wikidata_qid, en_wiki_title,
// extract) tuple.
type WikidataRecord struct {
	TaxID      uint32
	WikidataID uint64 // numeric part of the Qnnn id
	EnWikiTitle string
	Extract     string
}

var introTrailingComment = regexp.MustCompile(`(?s)<!--.*$`)
var emptyParagraph = regexp.MustCompile(`(?s)<p class="mw-empty-elt">.*?</p>`)

// cleanExtract strips the markup patterns spec.md §4.8 calls out and caps
// the result at 9000 runes.
func cleanExtract(s string) string {
	s = emptyParagraph.ReplaceAllString(s, "")
	s = introTrailingComment.ReplaceAllString(s, "")
	r := []rune(s)
	if len(r) > 9000 {
		r = r[:9000]
	}
	return string(r)
}

// wikidataPage is the subset of a Wikidata query-API page result this
// fetcher needs: its numeric id, P31 (instance-of) first value, P685 (NCBI
// taxonomy id) claim, and its English Wikipedia sitelink title.
type wikidataPage struct {
	QID         uint64
	P31         string
	NCBITax     string
	EnWikiTitle string
}

// Fetch walks pageQIDs in batches of wikidataPageBatch, retaining only
// pages whose P31 first value is Q16521 and which expose a non-novalue
// P685, then fetches their English Wikipedia extracts in batches of
// wikidataExtractBatch using f.Threads concurrent workers.
//
// fetchPages and fetchExtracts are injected so tests can fake the two
// Wikidata/Wikipedia `action=query` round trips without a network call;
// production callers pass the real API-backed implementations.
func (f *WikidataFetcher) Fetch(
	ctx context.Context,
	pageQIDs []uint64,
	fetchPages func(ctx context.Context, client *http.Client, batch []uint64) ([]wikidataPage, error),
	fetchExtracts func(ctx context.Context, client *http.Client, titles []string) (map[string]string, error),
) ([]WikidataRecord, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	threads := f.Threads
	if threads < 1 {
		threads = 1
	}

	var (
		mu      sync.Mutex
		pages   []wikidataPage
		wg      sync.WaitGroup
		tokens  = make(chan struct{}, threads)
		firstErr error
	)
	for i := 0; i < len(pageQIDs); i += wikidataPageBatch {
		end := i + wikidataPageBatch
		if end > len(pageQIDs) {
			end = len(pageQIDs)
		}
		batch := pageQIDs[i:end]

		wg.Add(1)
		tokens <- struct{}{}
		go func(batch []uint64) {
			defer wg.Done()
			defer func() { <-tokens }()
			got, err := fetchPages(ctx, client, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for _, p := range got {
				if p.P31 == wikidataTaxonQID && p.NCBITax != "" && p.NCBITax != "novalue" {
					pages = append(pages, p)
				}
			}
		}(batch)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, errors.Wrap(firstErr, "fetching wikidata pages")
	}

	titles := make([]string, 0, len(pages))
	titleToPage := make(map[string]wikidataPage, len(pages))
	for _, p := range pages {
		if p.EnWikiTitle == "" {
			continue
		}
		titleToPage[p.EnWikiTitle] = p
		titles = append(titles, p.EnWikiTitle)
	}

	var records []WikidataRecord
	recMu := sync.Mutex{}
	wg = sync.WaitGroup{}
	tokens = make(chan struct{}, threads)
	firstErr = nil
	for i := 0; i < len(titles); i += wikidataExtractBatch {
		end := i + wikidataExtractBatch
		if end > len(titles) {
			end = len(titles)
		}
		batch := titles[i:end]

		wg.Add(1)
		tokens <- struct{}{}
		go func(batch []string) {
			defer wg.Done()
			defer func() { <-tokens }()
			extracts, err := fetchExtracts(ctx, client, batch)
			recMu.Lock()
			defer recMu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for title, extract := range extracts {
				p, ok := titleToPage[title]
				if !ok {
					continue
				}
				taxID, err := strconv.ParseUint(p.NCBITax, 10, 32)
				if err != nil {
					continue
				}
				records = append(records, WikidataRecord{
					TaxID:       uint32(taxID),
					WikidataID:  p.QID,
					EnWikiTitle: strings.TrimSpace(title),
					Extract:     cleanExtract(extract),
				})
			}
		}(batch)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, errors.Wrap(firstErr, "fetching wikipedia extracts")
	}

	return records, nil
}
