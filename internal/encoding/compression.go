package encoding

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

var ErrCompressionTypeUnsupported = errors.New("unsupported compression type")

// CompressionType describes the compression applied to an entry payload.
type CompressionType int

const (
	CompressionTypeNone CompressionType = iota
	CompressionTypeZlib
)

// String returns a string representation of the compression type.
func (c CompressionType) String() string {
	switch c {
	case CompressionTypeNone:
		return "none"
	case CompressionTypeZlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// CompressionTypes provides a list of supported compression types. Helpful for writing tests and benchmarks which
// iterate over all possibilities.
var CompressionTypes = []CompressionType{
	CompressionTypeNone,
	CompressionTypeZlib,
}

// DefaultCompressionType is the compression type which should work fine for most use cases.
const DefaultCompressionType = CompressionTypeNone

// CompressPayload wraps the given record bytes into an entry payload. The first byte of the payload marks the
// compression applied to the remaining bytes, which allows readers to decompress entries independently of the
// writer configuration at the time.
func CompressPayload(data []byte, compression CompressionType) ([]byte, error) {
	switch compression {
	case CompressionTypeNone:
		result := make([]byte, 0, len(data)+1)
		result = append(result, byte(CompressionTypeNone))
		return append(result, data...), nil
	case CompressionTypeZlib:
		var buffer bytes.Buffer
		buffer.WriteByte(byte(CompressionTypeZlib))
		zlibWriter := zlib.NewWriter(&buffer)
		if _, err := zlibWriter.Write(data); err != nil {
			return nil, fmt.Errorf("compressing entry payload: %w", err)
		}
		if err := zlibWriter.Close(); err != nil {
			return nil, fmt.Errorf("compressing entry payload: %w", err)
		}
		return buffer.Bytes(), nil
	default:
		return nil, ErrCompressionTypeUnsupported
	}
}

// DecompressPayload unwraps an entry payload into the raw record bytes. It inspects the leading compression marker
// byte, so payloads written with any supported compression type can be read back.
func DecompressPayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.Join(ErrRecordCorrupt, errors.New("empty entry payload"))
	}
	switch CompressionType(payload[0]) {
	case CompressionTypeNone:
		return payload[1:], nil
	case CompressionTypeZlib:
		zlibReader, err := zlib.NewReader(bytes.NewReader(payload[1:]))
		if err != nil {
			return nil, errors.Join(ErrRecordCorrupt, fmt.Errorf("decompressing entry payload: %w", err))
		}
		defer zlibReader.Close() //nolint:errcheck // The close error of a reader carries no information.
		result, err := io.ReadAll(zlibReader)
		if err != nil {
			return nil, errors.Join(ErrRecordCorrupt, fmt.Errorf("decompressing entry payload: %w", err))
		}
		return result, nil
	default:
		return nil, errors.Join(ErrRecordCorrupt, ErrCompressionTypeUnsupported)
	}
}
