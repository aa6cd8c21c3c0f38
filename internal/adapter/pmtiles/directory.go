package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gopmtiles "github.com/protomaps/go-pmtiles/pmtiles"
)

// ZxyToID converts tile coordinates to a PMTiles tile id.
func ZxyToID(z uint8, x, y uint32) uint64 {
	return gopmtiles.ZxyToID(z, x, y)
}

// decodeDirectory parses an uncompressed directory. The entry count is
// checked first so a corrupt count cannot size a huge allocation.
func decodeDirectory(raw []byte) ([]Entry, error) {
	n, k := binary.Uvarint(raw)
	if k <= 0 {
		return nil, errors.New("directory: unreadable entry count")
	}
	// Every entry takes at least four varint bytes.
	if n > uint64(len(raw)-k)/4 {
		return nil, fmt.Errorf("directory claims %d entries in %d bytes", n, len(raw))
	}
	return gopmtiles.DeserializeEntries(bytes.NewBuffer(raw), gopmtiles.NoCompression), nil
}

func encodeDirectory(entries []Entry, c Compression) ([]byte, error) {
	if c != CompressionNone && c != CompressionGzip {
		return nil, fmt.Errorf("%w: directory compression %d", ErrUnsupported, c)
	}
	return gopmtiles.SerializeEntries(entries, c), nil
}

func decompress(b []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone, CompressionUnknown:
		return b, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, c)
	}
}

func compress(b []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return b, nil
	case CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(b); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, c)
	}
}
