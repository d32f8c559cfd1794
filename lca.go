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

import "fmt"

// LCA returns the lowest common ancestor of two or more taxa. Phylogenetic
// computation beyond lineage/LCA traversal is out of scope; this is the
// one exception the design explicitly carves back in.
//
// The two-node case walks each taxon's ancestor chain the way
// Taxonomy.LCA in the teacher repo does: collect one taxon's ancestors
// into a set, then walk the other's ancestors until one is found in that
// set. N-node LCA reduces pairwise, left to right.
func LCA(taxa ...*Taxon) (*Taxon, error) {
	if len(taxa) == 0 {
		return nil, fmt.Errorf("taxoniq: LCA requires at least one taxon")
	}
	acc := taxa[0]
	for _, t := range taxa[1:] {
		next, err := lca2(acc, t)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func lca2(a, b *Taxon) (*Taxon, error) {
	if a.taxID == b.taxID {
		return a, nil
	}

	ancestorsOfA := map[uint32]bool{a.taxID: true}
	cur := a
	for cur.taxID != 1 {
		if len(ancestorsOfA) >= maxLineageSteps {
			return nil, &CorruptIndexError{Reason: "LCA: lineage walk did not terminate within step bound"}
		}
		parent, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		ancestorsOfA[parent.taxID] = true
		if parent.taxID == b.taxID {
			return parent, nil
		}
		cur = parent
	}

	cur = b
	for i := 0; ; i++ {
		if i >= maxLineageSteps {
			return nil, &CorruptIndexError{Reason: "LCA: lineage walk did not terminate within step bound"}
		}
		if ancestorsOfA[cur.taxID] {
			return cur, nil
		}
		if cur.taxID == 1 {
			return cur, nil
		}
		parent, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		cur = parent
	}
}
