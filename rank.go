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

// Rank is a closed enumeration of taxonomic ranks, stored as a small
// integer in on-disk TaxonRecords. The zero value is RankBiotype -- nodes
// with no assigned rank use RankNoRank, not the zero value of the type.
type Rank uint8

// The NCBI Taxonomy rank set, in the same order the build pipeline assigns
// stable ids (index into rankNames == on-disk id).
const (
	RankBiotype Rank = iota
	RankClade
	RankClass
	RankCohort
	RankFamily
	RankForma
	RankFormaSpecialis
	RankGenotype
	RankGenus
	RankInfraclass
	RankInfraorder
	RankIsolate
	RankKingdom
	RankMorph
	RankOrder
	RankParvorder
	RankPathogroup
	RankPhylum
	RankSection
	RankSeries
	RankSerogroup
	RankSerotype
	RankSpecies
	RankSpeciesGroup
	RankSpeciesSubgroup
	RankStrain
	RankSubclass
	RankSubcohort
	RankSubfamily
	RankSubgenus
	RankSubkingdom
	RankSuborder
	RankSubphylum
	RankSubsection
	RankSubspecies
	RankSubtribe
	RankSubvariety
	RankSuperclass
	RankSuperfamily
	RankSuperkingdom
	RankSuperorder
	RankSuperphylum
	RankTribe
	RankVarietas
	RankNoRank
)

var rankNames = [...]string{
	"biotype", "clade", "class", "cohort", "family", "forma", "forma_specialis",
	"genotype", "genus", "infraclass", "infraorder", "isolate", "kingdom", "morph",
	"order", "parvorder", "pathogroup", "phylum", "section", "series", "serogroup",
	"serotype", "species", "species_group", "species_subgroup", "strain", "subclass",
	"subcohort", "subfamily", "subgenus", "subkingdom", "suborder", "subphylum",
	"subsection", "subspecies", "subtribe", "subvariety", "superclass", "superfamily",
	"superkingdom", "superorder", "superphylum", "tribe", "varietas", "no_rank",
}

func (r Rank) String() string {
	if int(r) < 0 || int(r) >= len(rankNames) {
		return "no_rank"
	}
	return rankNames[r]
}

// ParseRank parses an NCBI nodes.dmp rank field (spaces, not underscores)
// into a Rank. It returns false for names outside the known set.
func ParseRank(name string) (Rank, bool) {
	name = underscoreSpaces(name)
	for i, n := range rankNames {
		if n == name {
			return Rank(i), true
		}
	}
	return RankNoRank, false
}

func underscoreSpaces(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == ' ' {
			b[i] = '_'
		}
	}
	return string(b)
}

// rankedLineageRanks are the eight major ranks RankedLineage() filters to.
var rankedLineageRanks = map[Rank]bool{
	RankSpecies:      true,
	RankGenus:        true,
	RankFamily:       true,
	RankOrder:        true,
	RankClass:        true,
	RankPhylum:       true,
	RankKingdom:      true,
	RankSuperkingdom: true,
}
