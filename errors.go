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

// ErrNotFound is returned when a requested tax_id, accession or scientific
// name is absent from its primary index.
var ErrNotFound = fmt.Errorf("taxoniq: not found")

// ErrNoValue is returned when a taxon exists but has no indexed value for
// the requested attribute.
var ErrNoValue = fmt.Errorf("taxoniq: no value")

// ErrAmbiguousInput is returned when a constructor is given more than one,
// or none, of {tax_id, accession_id, scientific_name}.
var ErrAmbiguousInput = fmt.Errorf("taxoniq: expected exactly one of tax_id, accession_id or scientific_name")

// CorruptIndexError reports a structural violation of an on-disk index or
// string blob: a record payload that is not a multiple of the schema size,
// a non-UTF-8 string blob entry, a bad .nin magic/format_version, or a
// lineage walk that failed to terminate within the step bound.
type CorruptIndexError struct {
	Path   string
	Reason string
}

func (e *CorruptIndexError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("taxoniq: corrupt index: %s", e.Reason)
	}
	return fmt.Sprintf("taxoniq: corrupt index %s: %s", e.Path, e.Reason)
}

// NetworkError reports a non-2xx response or transport failure from the
// remote-range fetcher (C7).
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("taxoniq: network error fetching %s: %s", e.URL, e.Err)
	}
	return fmt.Sprintf("taxoniq: network error fetching %s: status %d", e.URL, e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BuildError reports a build-time I/O or parse failure, tagged with the
// pipeline stage that produced it.
type BuildError struct {
	Stage string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("taxoniq: build error in %s: %s", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
