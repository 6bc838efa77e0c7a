package encoding

import (
	"errors"
	"fmt"
	"io"
	"slices"
)

var (
	ErrHeaderInvalidMagicBytes  = errors.New("invalid segment header magic bytes")
	ErrHeaderUnsupportedVersion = errors.New("unsupported segment header version")
)

// Header describes the segment file header which is located at the start of every segment file.
type Header struct {
	// These are the magic bytes to identify a segment file. This must always be "DKV" followed by a zero value byte.
	// Encoded as four bytes.
	Magic [4]byte

	// The version of the segment file format. This allows us to evolve the file format over time if necessary.
	// Encoded as two bytes.
	Version uint16

	// Describes the way the entry length is encoded in the segment file. Encoded as a single byte.
	EntryLengthEncoding EntryLengthEncoding

	// Describes the way the entry checksum is encoded in the segment file. Encoded as a single byte.
	EntryChecksumType EntryChecksumType

	// Describes the compression applied to entry payloads written to this segment. Individual entries carry their
	// own compression marker as well, this value only documents the writer configuration. Encoded as a single byte.
	Compression CompressionType

	// The sequence number of the first entry in the segment file. The file name and this header value should always
	// match, which makes accidental file renames detectable.
	// Encoded as eight bytes.
	FirstSequenceNumber uint64
}

// HeaderSize provides the size in bytes of the encoded header.
const HeaderSize = 4 + 2 + 1 + 1 + 1 + 8

// Magic holds the magic bytes expected at the start of every segment file.
var Magic = [4]byte{'D', 'K', 'V', 0}

// HeaderVersion provides the currently supported header version.
const HeaderVersion = 1

// DefaultHeader provides a header configuration which is a sane default in most situations.
var DefaultHeader = Header{
	Magic:               Magic,
	Version:             HeaderVersion,
	EntryLengthEncoding: DefaultEntryLengthEncoding,
	EntryChecksumType:   DefaultEntryChecksumType,
	Compression:         DefaultCompressionType,
	FirstSequenceNumber: 0,
}

// WriteHeader writes the segment header to the writer.
// The buffer is required to avoid allocations and must be able to hold the full encoded header.
func WriteHeader(writer io.Writer, buffer []byte, header Header) error {
	copy(buffer[:4], header.Magic[:])
	Endian.PutUint16(buffer[4:6], header.Version)
	buffer[6] = byte(header.EntryLengthEncoding)
	buffer[7] = byte(header.EntryChecksumType)
	buffer[8] = byte(header.Compression)
	Endian.PutUint64(buffer[9:HeaderSize], header.FirstSequenceNumber)
	if _, err := writer.Write(buffer[:HeaderSize]); err != nil {
		return fmt.Errorf("writing segment header: %w", err)
	}
	return nil
}

// ReadHeader reads the segment header from the reader and validates it.
// The buffer is required to avoid allocations and must be able to hold the full encoded header.
func ReadHeader(reader io.Reader, buffer []byte) (Header, error) {
	var result Header
	if _, err := io.ReadFull(reader, buffer[:HeaderSize]); err != nil {
		return Header{}, fmt.Errorf("reading segment header: %w", err)
	}

	copy(result.Magic[:], buffer[:4])
	result.Version = Endian.Uint16(buffer[4:6])
	result.EntryLengthEncoding = EntryLengthEncoding(buffer[6])
	result.EntryChecksumType = EntryChecksumType(buffer[7])
	result.Compression = CompressionType(buffer[8])
	result.FirstSequenceNumber = Endian.Uint64(buffer[9:HeaderSize])

	if result.Magic != Magic {
		return Header{}, ErrHeaderInvalidMagicBytes
	}
	if result.Version != HeaderVersion {
		return Header{}, ErrHeaderUnsupportedVersion
	}
	if !slices.Contains(EntryLengthEncodings, result.EntryLengthEncoding) {
		return Header{}, ErrEntryLengthEncodingUnsupported
	}
	if !slices.Contains(EntryChecksumTypes, result.EntryChecksumType) {
		return Header{}, ErrEntryChecksumTypeUnsupported
	}
	if !slices.Contains(CompressionTypes, result.Compression) {
		return Header{}, ErrCompressionTypeUnsupported
	}
	return result, nil
}
