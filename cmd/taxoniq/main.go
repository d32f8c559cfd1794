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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	colorable "github.com/mattn/go-colorable"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"

	taxoniq "github.com/taxoniq/taxoniq-go"
)

var log = logging.MustGetLogger("taxoniq")

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

// rootCmd is taxoniq's single entry point: `taxoniq <operation>
// [--taxon-id N | --accession-id A | --scientific-name S]
// [--output-format FMT]`, per spec.md §6. There are no per-lookup-kind
// subcommands -- <operation> selects the Taxon/Accession accessor (or
// get-from-s3/get-from-gs) and the identifier flags select what it runs
// against.
var rootCmd = &cobra.Command{
	Use:   "taxoniq <operation>",
	Short: "Offline NCBI Taxonomy and BLAST accession lookups",
	Long: `taxoniq - offline NCBI Taxonomy and BLAST accession lookup tool

Resolves tax_ids, scientific names and sequence accessions against a
local taxoniq database (a directory of tries and string blobs built by
taxoniq-build), and can stream sequence data for an accession straight
from the NCBI BLAST database mirror.

Usage:
  taxoniq <operation> [--taxon-id N | --accession-id A | --scientific-name S]
  taxoniq --version
`,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersion(cmd)
			return nil
		}
		if len(args) != 1 {
			return errors.New("exactly one <operation> is required (or --version)")
		}
		return runOperation(cmd, args[0])
	},
}

func init() {
	rootCmd.Flags().StringP("db-dir", "d", "", "taxoniq database directory (default: $TAXONIQ_DB_DIR or the executable's directory)")
	rootCmd.Flags().IntP("threads", "j", defaultThreads(), "number of concurrent workers for --accession-id - batch fetches")
	rootCmd.Flags().BoolP("verbose", "v", false, "print verbose information")
	rootCmd.Flags().Bool("version", false, "print library version, taxonomy-db timestamp, BLAST-db timestamp")

	rootCmd.Flags().Int64("taxon-id", 0, "look up by NCBI tax_id")
	rootCmd.Flags().String("accession-id", "", "look up by sequence accession (\"-\" reads newline-separated accessions from stdin for get-from-s3/get-from-gs)")
	rootCmd.Flags().String("scientific-name", "", "look up by unique scientific name")
	rootCmd.Flags().String("output-format", "json", "result format: json or text")
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

func checkError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, taxoniq.ErrNotFound) {
			os.Exit(4)
		}
		os.Exit(1)
	}
}

// openDB opens the database directory named by --db-dir, falling back to
// the process-wide default (env var or executable directory) when unset.
func openDB(cmd *cobra.Command) *taxoniq.DB {
	dir, err := cmd.Flags().GetString("db-dir")
	checkError(err)
	if dir == "" {
		db, err := taxoniq.Default()
		checkError(err)
		return db
	}
	dir, err = homedir.Expand(dir)
	checkError(err)
	db, err := taxoniq.Open(dir)
	checkError(err)
	return db
}

func printVersion(cmd *cobra.Command) {
	out := map[string]string{
		"version":            taxoniq.Version,
		"blast_db_timestamp": taxoniq.BLASTDBTimestamp(),
	}
	if db := tryOpenDB(cmd); db != nil {
		if ts, err := db.TaxonomyTimestamp(); err == nil {
			out["taxonomy_db_timestamp"] = ts.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

// tryOpenDB is openDB without checkError: --version should still report
// the library/mirror timestamps even when no database directory is
// configured or reachable.
func tryOpenDB(cmd *cobra.Command) *taxoniq.DB {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil
	}
	if dir == "" {
		db, err := taxoniq.Default()
		if err != nil {
			return nil
		}
		return db
	}
	dir, err = homedir.Expand(dir)
	if err != nil {
		return nil
	}
	db, err := taxoniq.Open(dir)
	if err != nil {
		return nil
	}
	return db
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		checkError(err)
	}
}
