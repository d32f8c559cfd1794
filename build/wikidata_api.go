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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	wikidataAPIURL  = "https://www.wikidata.org/w/api.php"
	wikipediaAPIURL = "https://en.wikipedia.org/w/api.php"
)

type wikidataEntitiesResponse struct {
	Entities map[string]struct {
		Claims map[string][]struct {
			Mainsnak struct {
				Snaktype  string `json:"snaktype"`
				Datavalue struct {
					Value json.RawMessage `json:"value"`
				} `json:"datavalue"`
			} `json:"mainsnak"`
		} `json:"claims"`
		Sitelinks map[string]struct {
			Title string `json:"title"`
		} `json:"sitelinks"`
	} `json:"entities"`
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatQIDs(qids []uint64) string {
	ids := make([]string, len(qids))
	for i, q := range qids {
		ids[i] = fmt.Sprintf("Q%d", q)
	}
	return strings.Join(ids, "|")
}

// FetchWikidataPages implements a WikidataFetcher's fetchPages callback
// against the real Wikidata wbgetentities API: it resolves each QID's P31
// (instance of) first value, its P685 (NCBI taxonomy id) claim and its
// English Wikipedia sitelink title.
func FetchWikidataPages(ctx context.Context, client *http.Client, batch []uint64) ([]wikidataPage, error) {
	url := fmt.Sprintf("%s?action=wbgetentities&ids=%s&props=claims%%7Csitelinks&sitefilter=enwiki&format=json",
		wikidataAPIURL, formatQIDs(batch))

	var resp wikidataEntitiesResponse
	if err := getJSON(ctx, client, url, &resp); err != nil {
		return nil, err
	}

	pages := make([]wikidataPage, 0, len(batch))
	for id, entity := range resp.Entities {
		qid, err := strconv.ParseUint(strings.TrimPrefix(id, "Q"), 10, 64)
		if err != nil {
			continue
		}
		p := wikidataPage{QID: qid}

		if claims, ok := entity.Claims["P31"]; ok && len(claims) > 0 {
			var v struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(claims[0].Mainsnak.Datavalue.Value, &v) == nil {
				p.P31 = v.ID
			}
		}
		if claims, ok := entity.Claims["P685"]; ok && len(claims) > 0 {
			snak := claims[0].Mainsnak
			if snak.Snaktype != "value" {
				p.NCBITax = "novalue"
			} else {
				var v string
				if json.Unmarshal(snak.Datavalue.Value, &v) == nil {
					p.NCBITax = v
				}
			}
		}
		if site, ok := entity.Sitelinks["enwiki"]; ok {
			p.EnWikiTitle = site.Title
		}
		pages = append(pages, p)
	}
	return pages, nil
}

type wikidataSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
	Continue struct {
		SrOffset int `json:"sroffset"`
	} `json:"continue"`
}

// DiscoverTaxonPages walks CirrusSearch's haswbstatement index for every
// Wikidata item asserting P31=Q16521 ("instance of taxon"), paging
// sroffset until the search API stops returning a continuation, and
// returns their numeric QIDs. maxPages bounds the walk (0 means
// unbounded).
func DiscoverTaxonPages(ctx context.Context, client *http.Client, maxPages int) ([]uint64, error) {
	var qids []uint64
	offset := 0
	for {
		url := fmt.Sprintf("%s?action=query&list=search&srsearch=haswbstatement:P31=%s&srlimit=50&sroffset=%d&format=json",
			wikidataAPIURL, wikidataTaxonQID, offset)
		var resp wikidataSearchResponse
		if err := getJSON(ctx, client, url, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Query.Search {
			qid, err := strconv.ParseUint(strings.TrimPrefix(r.Title, "Q"), 10, 64)
			if err != nil {
				continue
			}
			qids = append(qids, qid)
		}
		if resp.Continue.SrOffset == 0 || len(resp.Query.Search) == 0 {
			return qids, nil
		}
		if maxPages > 0 && len(qids) >= maxPages {
			return qids[:maxPages], nil
		}
		offset = resp.Continue.SrOffset
	}
}

type wikipediaQueryResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// FetchWikipediaExtracts implements a WikidataFetcher's fetchExtracts
// callback against the real English Wikipedia query API, fetching each
// title's plain-text intro extract.
func FetchWikipediaExtracts(ctx context.Context, client *http.Client, titles []string) (map[string]string, error) {
	url := fmt.Sprintf("%s?action=query&prop=extracts&exintro=1&explaintext=1&redirects=1&titles=%s&format=json",
		wikipediaAPIURL, strings.Join(titles, "|"))

	var resp wikipediaQueryResponse
	if err := getJSON(ctx, client, url, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		if page.Title == "" {
			continue
		}
		out[page.Title] = page.Extract
	}
	return out, nil
}
