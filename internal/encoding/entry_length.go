package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/durakv/durakv/internal/utils"
)

var (
	ErrEntryLengthEncodingUnsupported = errors.New("unsupported entry length encoding")
	ErrEntryLengthOverflow            = errors.New("entry length overflow")
)

// MaxLengthBufferLen is the size of the buffer which is big enough for all supported length encodings.
const MaxLengthBufferLen = binary.MaxVarintLen64

// EntryLengthEncoding describes the way the length of an entry is encoded.
type EntryLengthEncoding int

const (
	EntryLengthEncodingUint32 EntryLengthEncoding = iota + 1 // We do not start at 0 to detect missing values.
	EntryLengthEncodingUvarint
)

// String returns a string representation of the entry length encoding.
func (e EntryLengthEncoding) String() string {
	switch e {
	case EntryLengthEncodingUint32:
		return "uint32"
	case EntryLengthEncodingUvarint:
		return "uvarint"
	default:
		return "unknown"
	}
}

// EntryLengthEncodings provides a list of supported length encodings. Helpful for writing tests and benchmarks which
// iterate over all possibilities.
var EntryLengthEncodings = []EntryLengthEncoding{
	EntryLengthEncodingUint32,
	EntryLengthEncodingUvarint,
}

// DefaultEntryLengthEncoding is the length encoding which should work fine for most use cases.
const DefaultEntryLengthEncoding = EntryLengthEncodingUint32

// EntryLengthWriter is the function signature which all entry length writer functions need to implement.
// The buffer is a temporary scratch space for converting integers to slices of bytes without allocating memory.
type EntryLengthWriter func(writer io.Writer, buffer []byte, length uint64) error

// GetEntryLengthWriter returns the entry length writer function matching the entry length encoding.
func GetEntryLengthWriter(entryLengthEncoding EntryLengthEncoding) (EntryLengthWriter, error) {
	switch entryLengthEncoding {
	case EntryLengthEncodingUint32:
		return WriteEntryLengthUint32, nil
	case EntryLengthEncodingUvarint:
		return WriteEntryLengthUvarint, nil
	default:
		return nil, ErrEntryLengthEncodingUnsupported
	}
}

// EntryLengthReader is the function signature which all entry length reader functions need to implement.
// The buffer is a temporary scratch space which will contain the raw length bytes after the call. The return values
// are the decoded length, the number of bytes read and any error which occurred during reading.
type EntryLengthReader func(reader io.Reader, buffer []byte) (uint64, int, error)

// GetEntryLengthReader returns the entry length reader function matching the entry length encoding.
func GetEntryLengthReader(entryLengthEncoding EntryLengthEncoding) (EntryLengthReader, error) {
	switch entryLengthEncoding {
	case EntryLengthEncodingUint32:
		return ReadEntryLengthUint32, nil
	case EntryLengthEncodingUvarint:
		return ReadEntryLengthUvarint, nil
	default:
		return nil, ErrEntryLengthEncodingUnsupported
	}
}

// WriteEntryLengthUint32 writes the length to the writer encoded as uint32.
// An error is returned when the given length exceeds the maximum possible length.
func WriteEntryLengthUint32(writer io.Writer, buffer []byte, length uint64) error {
	if math.MaxUint32 < length {
		return ErrEntryLengthOverflow
	}

	Endian.PutUint32(buffer[:4], uint32(length))
	if _, err := writer.Write(buffer[:4]); err != nil {
		return fmt.Errorf("writing entry length: %w", err)
	}
	return nil
}

// ReadEntryLengthUint32 reads the length from the reader encoded as uint32.
func ReadEntryLengthUint32(reader io.Reader, buffer []byte) (uint64, int, error) {
	if _, err := io.ReadFull(reader, buffer[:4]); err != nil {
		return 0, 0, fmt.Errorf("reading entry length: %w", err)
	}
	return uint64(Endian.Uint32(buffer[:4])), 4, nil
}

// WriteEntryLengthUvarint writes the length to the writer encoded as uvarint.
func WriteEntryLengthUvarint(writer io.Writer, buffer []byte, length uint64) error {
	n := binary.PutUvarint(buffer[:binary.MaxVarintLen64], length)
	if _, err := writer.Write(buffer[:n]); err != nil {
		return fmt.Errorf("writing entry length: %w", err)
	}
	return nil
}

// ReadEntryLengthUvarint reads the length from the reader encoded as uvarint. The raw bytes of the encoded length
// end up in the buffer, which allows callers to include them in checksum calculations.
func ReadEntryLengthUvarint(reader io.Reader, buffer []byte) (uint64, int, error) {
	byteReader := utils.NewByteReader(reader, buffer)
	length, err := binary.ReadUvarint(&byteReader)
	if err != nil {
		return 0, byteReader.BytesRead(), fmt.Errorf("reading entry length: %w", err)
	}
	return length, byteReader.BytesRead(), nil
}
