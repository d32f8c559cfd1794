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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/taxoniq/taxoniq-go/index"
)

// registry is a process-wide cache of opened on-disk databases, keyed by
// file name within a DB's directory. Every entry is published exactly
// once (single-init semantics): concurrent first-touches on the same name
// block on one real open and then share the result, matching the "lazy
// init cache of opened databases" called out in the design's concurrency
// model (§5) and Design Notes (§9) as the one piece of mutable shared
// state the library needs.
type registry struct {
	mu      sync.Mutex
	once    map[string]*sync.Once
	indices map[string]*index.Index
	blobs   map[string]*stringBlob
	errs    map[string]error
}

func newRegistry() *registry {
	return &registry{
		once:    make(map[string]*sync.Once),
		indices: make(map[string]*index.Index),
		blobs:   make(map[string]*stringBlob),
		errs:    make(map[string]error),
	}
}

func (r *registry) onceFor(name string) *sync.Once {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.once[name]
	if !ok {
		o = &sync.Once{}
		r.once[name] = o
	}
	return o
}

// index returns the opened index named name (file name without directory),
// opening it under schema on first access.
func (r *registry) index(dir, name string, schema index.Schema) (*index.Index, error) {
	r.onceFor(name).Do(func() {
		idx, err := index.Open(filepath.Join(dir, name), schema)
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.errs[name] = err
			return
		}
		r.indices[name] = idx
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[name]; ok {
		return nil, err
	}
	return r.indices[name], nil
}

// blob returns the decompressed string blob named name, decompressing it
// on first access.
func (r *registry) blob(dir, name string) (*stringBlob, error) {
	r.onceFor(name).Do(func() {
		b, err := openStringBlob(filepath.Join(dir, name))
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.errs[name] = err
			return
		}
		r.blobs[name] = b
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[name]; ok {
		return nil, err
	}
	return r.blobs[name], nil
}

// DB is one opened taxoniq database directory: the taxa/accession tries
// and string blobs produced by the build pipeline (C8) for a single
// dataset snapshot. The zero value is not usable; construct with Open.
type DB struct {
	dir string
	reg *registry
}

// TaxonomyTimestamp reports when this DB's taxa index was written, as a
// best-effort proxy for "the taxdump snapshot this database was built
// from" (the build pipeline does not currently record the snapshot date
// itself anywhere in the on-disk layout).
func (db *DB) TaxonomyTimestamp() (time.Time, error) {
	fi, err := os.Stat(filepath.Join(db.dir, taxaIndexName))
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Open prepares a DB rooted at dir without eagerly reading anything; every
// artifact is opened lazily on first use and cached for DB's lifetime.
// Each DB has its own registry, so tests that need isolation from the
// process-wide default DB should call Open directly instead of using the
// package-level By* functions.
func Open(dir string) (*DB, error) {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		if err == nil {
			err = os.ErrInvalid
		}
		return nil, err
	}
	return &DB{dir: dir, reg: newRegistry()}, nil
}

var (
	defaultDBOnce sync.Once
	defaultDB     *DB
	defaultDBErr  error
)

// defaultDBDir is overridable in tests; in production it defaults to the
// directory holding the running executable, matching the reference
// implementation's packaging of index files alongside the library.
var defaultDBDir = func() string {
	if d := os.Getenv("TAXONIQ_DB_DIR"); d != "" {
		return d
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// Default returns the process-wide default DB, opened once from
// defaultDBDir().
func Default() (*DB, error) {
	defaultDBOnce.Do(func() {
		defaultDB, defaultDBErr = Open(defaultDBDir())
	})
	return defaultDB, defaultDBErr
}
