/*
Copyright 2023 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in
compliance with the License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is
distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing permissions and limitations under the
License.
*/

package internal

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression identifies the algorithm used to compress an archive or an initrd image.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionXZ   Compression = "xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// decompress inspects the first bytes of the reader to find the compression algorithm and
// returns a reader for the decompressed data.
func decompress(reader io.Reader) (result io.ReadCloser, compression Compression, err error) {
	buffered := bufio.NewReader(reader)
	header, err := buffered.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return
	}
	err = nil
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		compression = CompressionGzip
		var gzipReader *gzip.Reader
		gzipReader, err = gzip.NewReader(buffered)
		if err != nil {
			err = fmt.Errorf("failed to create gzip reader: %w", err)
			return
		}
		result = gzipReader
	case bytes.HasPrefix(header, xzMagic):
		compression = CompressionXZ
		var xzReader *xz.Reader
		xzReader, err = xz.NewReader(buffered)
		if err != nil {
			err = fmt.Errorf("failed to create xz reader: %w", err)
			return
		}
		result = io.NopCloser(xzReader)
	default:
		compression = CompressionNone
		result = io.NopCloser(buffered)
	}
	return
}

// compress returns a writer that compresses the data with the given algorithm and writes it to
// the given writer. The returned writer must be closed to flush the compressed data.
func compress(writer io.Writer, compression Compression) (result io.WriteCloser, err error) {
	switch compression {
	case CompressionGzip:
		result, err = gzip.NewWriterLevel(writer, gzip.BestCompression)
	case CompressionXZ:
		// The kernel only supports the CRC32 check for xz compressed initrd images.
		result, err = xz.WriterConfig{
			CheckSum: xz.CRC32,
		}.NewWriter(writer)
	case CompressionNone:
		result = nopWriteCloser{writer}
	default:
		err = fmt.Errorf("unsupported compression '%s'", compression)
	}
	return
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
