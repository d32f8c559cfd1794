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

// Command taxoniq-build assembles a taxoniq database directory from an NCBI
// taxdump, a local BLAST database mirror, and (optionally) the RefSeq
// assembly summary and Wikidata/Wikipedia metadata.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	colorable "github.com/mattn/go-colorable"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"

	taxoniq "github.com/taxoniq/taxoniq-go"
	"github.com/taxoniq/taxoniq-go/build"
)

var log = logging.MustGetLogger("taxoniq-build")

var logFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{color}[%{level:.4s}]%{color:reset} %{message}`,
)

func init() {
	var stderr io.Writer = os.Stderr
	if runtime.GOOS == "windows" {
		stderr = colorable.NewColorableStderr()
	}
	backend := logging.NewLogBackend(stderr, "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, logFormat)
	logging.SetBackend(backendFormatter)
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, taxoniq.ErrNotFound) {
			os.Exit(4)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taxoniq-build",
	Short: "Build a taxoniq database directory",
}

var taxaCmd = &cobra.Command{
	Use:   "taxa",
	Short: "Parse an NCBI taxdump and a BLAST database mirror into the core taxoniq indices",
	Run: func(cmd *cobra.Command, args []string) {
		taxdumpDir, err := cmd.Flags().GetString("taxdump-dir")
		checkError(err)
		taxdumpDir, err = homedir.Expand(taxdumpDir)
		checkError(err)
		blastDBDir, err := cmd.Flags().GetString("blastdb-dir")
		checkError(err)
		blastDBDir, err = homedir.Expand(blastDBDir)
		checkError(err)
		dbs, err := cmd.Flags().GetStringSlice("database")
		checkError(err)
		outDir, err := cmd.Flags().GetString("out-dir")
		checkError(err)
		outDir, err = homedir.Expand(outDir)
		checkError(err)

		log.Infof("building taxa and accession indices in %s", outDir)
		err = taxoniq.Run(context.Background(), taxoniq.BuildConfig{
			TaxdumpDir: taxdumpDir,
			BlastDBDir: blastDBDir,
			Databases:  dbs,
			OutDir:     outDir,
		})
		checkError(err)
		log.Infof("done")
	},
}

var refseqCmd = &cobra.Command{
	Use:   "refseq",
	Short: "Fetch assembly_summary_refseq.txt and write each tax_id's representative genome accession",
	Run: func(cmd *cobra.Command, args []string) {
		outDir, err := cmd.Flags().GetString("out-dir")
		checkError(err)
		outDir, err = homedir.Expand(outDir)
		checkError(err)
		timeout, err := cmd.Flags().GetDuration("timeout")
		checkError(err)

		client := &http.Client{Timeout: timeout}
		log.Infof("fetching RefSeq assembly summary")
		checkError(taxoniq.BuildRefseqIndex(context.Background(), client, outDir))
		log.Infof("done")
	},
}

var wikidataCmd = &cobra.Command{
	Use:   "wikidata",
	Short: "Discover Wikidata taxon pages and write their descriptions and Wikipedia titles",
	Run: func(cmd *cobra.Command, args []string) {
		outDir, err := cmd.Flags().GetString("out-dir")
		checkError(err)
		outDir, err = homedir.Expand(outDir)
		checkError(err)
		threads, err := cmd.Flags().GetInt("threads")
		checkError(err)
		maxPages, err := cmd.Flags().GetInt("max-pages")
		checkError(err)
		timeout, err := cmd.Flags().GetDuration("timeout")
		checkError(err)

		client := &http.Client{Timeout: timeout}
		fetcher := &build.WikidataFetcher{Client: client, Threads: threads}
		log.Infof("discovering wikidata taxon pages")
		checkError(taxoniq.BuildWikidataIndex(context.Background(), fetcher, outDir, maxPages))
		log.Infof("done")
	},
}

func defaultThreads() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

func init() {
	taxaCmd.Flags().String("taxdump-dir", "", "directory containing nodes.dmp, names.dmp, host.dmp")
	taxaCmd.Flags().String("blastdb-dir", "", "directory containing BLAST .nin/.nsq volumes")
	taxaCmd.Flags().StringSlice("database", nil, fmt.Sprintf("BLAST database names to index, comma-separated (known: %s)", knownDatabases()))
	taxaCmd.Flags().String("out-dir", "", "destination database directory")
	checkError(taxaCmd.MarkFlagRequired("taxdump-dir"))
	checkError(taxaCmd.MarkFlagRequired("out-dir"))

	refseqCmd.Flags().String("out-dir", "", "destination database directory")
	refseqCmd.Flags().Duration("timeout", 5*time.Minute, "HTTP client timeout")
	checkError(refseqCmd.MarkFlagRequired("out-dir"))

	wikidataCmd.Flags().String("out-dir", "", "destination database directory")
	wikidataCmd.Flags().Int("threads", defaultThreads(), "concurrent Wikidata/Wikipedia API workers")
	wikidataCmd.Flags().Int("max-pages", 0, "stop discovery after this many taxon pages (0 means unbounded)")
	wikidataCmd.Flags().Duration("timeout", 5*time.Minute, "HTTP client timeout")
	checkError(wikidataCmd.MarkFlagRequired("out-dir"))

	rootCmd.AddCommand(taxaCmd, refseqCmd, wikidataCmd)
}

func knownDatabases() string {
	names := []string{
		taxoniq.RefViruses.String(),
		taxoniq.RefProk.String(),
		taxoniq.RefEuk.String(),
		taxoniq.Betacoronavirus.String(),
		taxoniq.NT.String(),
	}
	return strings.Join(names, ", ")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
