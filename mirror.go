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
	"context"
	"fmt"
	"io"
	"net/http"
)

// defaultS3Host mirrors the AWS Open Data NCBI BLAST database bucket the
// reference implementation streams sequences from.
const defaultS3Host = "ncbi-blast-databases.s3.amazonaws.com"

// Mirror names an HTTP host serving versioned, timestamped BLAST database
// volumes, plus the client used to reach it.
type Mirror struct {
	Host      string
	Timestamp string
	Client    *http.Client

	// Scheme overrides the URL scheme, defaulting to "https". Tests
	// pointing Mirror at an httptest server set this to "http".
	Scheme string
}

var defaultMirror = &Mirror{Host: defaultS3Host, Timestamp: blastDBTimestamp, Client: http.DefaultClient}

// DefaultMirror returns the AWS Open Data S3 mirror, matching
// Accession.GetFromS3 in the reference implementation.
func DefaultMirror() *Mirror { return defaultMirror }

// volumePath renders "<db>.<vol>.nsq" (or "<db>.nsq" when db has no
// volume-suffix digits, i.e. a single-volume database).
func volumePath(db BLASTDatabase, volume int) string {
	digits := db.VolumeSuffixDigits()
	if digits == 0 {
		return fmt.Sprintf("%s.nsq", db.String())
	}
	return fmt.Sprintf("%s.%0*d.nsq", db.String(), digits, volume)
}

// FetchSequence streams the decoded nucleotide sequence for one accession
// from m: it issues a Range GET against
// https://{host}/{timestamp}/{db}.{vol}.nsq covering bytes
// offset..offset+ceil(length/4) (inclusive), and pipes
// the response body through an NcbiNa2Decoder. The caller must Close the
// returned reader to release the underlying HTTP response body.
func (m *Mirror) FetchSequence(ctx context.Context, db BLASTDatabase, volume int, offset, length uint32) (io.ReadCloser, error) {
	scheme := m.Scheme
	if scheme == "" {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, m.Host, m.Timestamp, volumePath(db, volume))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	hi := offset + ceilDiv4(length)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, hi))

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	return &decodingReadCloser{
		body:    resp.Body,
		decoder: NewNcbiNa2Decoder(uint64(length)),
	}, nil
}

// ceilDiv4 returns ceil(n/4), the packed byte count a declared base count
// occupies at 4 bases per byte. FetchSequence uses it as the inclusive end
// of the range GET, so the request also takes in the byte after the packed
// bases (see the resolved Open Question in SPEC_FULL.md §4.7/§9).
func ceilDiv4(n uint32) uint32 {
	return (n + 3) / 4
}

// decodingReadCloser adapts an NcbiNa2Decoder into an io.ReadCloser over
// chunks pulled from a packed 2-bit response body, buffering only what the
// caller hasn't yet consumed.
type decodingReadCloser struct {
	body    io.ReadCloser
	decoder *NcbiNa2Decoder
	pending []byte
	chunk   [32 * 1024]byte
}

func (d *decodingReadCloser) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		n, err := d.body.Read(d.chunk[:])
		if n > 0 {
			d.pending = d.decoder.Decompress(d.chunk[:n])
		}
		if err != nil {
			if len(d.pending) > 0 {
				break
			}
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, err
		}
		if n == 0 && len(d.pending) == 0 {
			return 0, io.EOF
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *decodingReadCloser) Close() error { return d.body.Close() }
