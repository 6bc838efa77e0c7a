package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrRecordCorrupt = errors.New("corrupt log record")

// Op describes the operation a log record represents.
type Op byte

const (
	OpPut Op = iota + 1 // We do not start at 0 to detect missing values.
	OpDelete
	OpCheckpoint
)

// String returns a string representation of the operation.
func (o Op) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpDelete:
		return "DELETE"
	case OpCheckpoint:
		return "CHECKPOINT"
	default:
		return "unknown"
	}
}

// Ops provides a list of supported operations. Helpful for writing tests which iterate over all possibilities.
var Ops = []Op{
	OpPut,
	OpDelete,
	OpCheckpoint,
}

// Record is a single operation of the key-value store as it is persisted in the write-ahead log. Records are never
// mutated after creation.
type Record struct {
	// The sequence number of the record. Sequence numbers are monotonically increasing over the lifetime of a
	// write-ahead log, across segment rotation and process restarts.
	Sequence uint64

	// The operation the record represents.
	Op Op

	// The key the operation applies to. Empty for OpCheckpoint.
	Key []byte

	// The value of the operation. Only set for OpPut.
	Value []byte

	// The wall-clock time the record was created, in nanoseconds since the Unix epoch. This is advisory only and
	// never used for ordering.
	Timestamp int64
}

// Encode serializes the record into a self-delimiting byte slice. Decode is its exact inverse.
func (r Record) Encode() []byte {
	result := make([]byte, 0, 1+3*binary.MaxVarintLen64+len(r.Key)+len(r.Value))
	result = append(result, byte(r.Op))
	result = binary.AppendUvarint(result, r.Sequence)
	result = binary.AppendVarint(result, r.Timestamp)
	result = binary.AppendUvarint(result, uint64(len(r.Key)))
	result = append(result, r.Key...)
	result = binary.AppendUvarint(result, uint64(len(r.Value)))
	result = append(result, r.Value...)
	return result
}

// DecodeRecord deserializes a record from the given byte slice. A truncated or otherwise malformed input fails with
// ErrRecordCorrupt instead of returning wrong data.
func DecodeRecord(data []byte) (Record, error) {
	record, err := decodeRecord(data)
	if err != nil {
		return Record{}, errors.Join(ErrRecordCorrupt, err)
	}
	return record, nil
}

func decodeRecord(data []byte) (Record, error) {
	var result Record
	if len(data) == 0 {
		return Record{}, errors.New("missing operation")
	}
	result.Op = Op(data[0])
	if result.Op != OpPut && result.Op != OpDelete && result.Op != OpCheckpoint {
		return Record{}, fmt.Errorf("unknown operation %d", data[0])
	}
	data = data[1:]

	var n int
	if result.Sequence, n = binary.Uvarint(data); n <= 0 {
		return Record{}, errors.New("malformed sequence number")
	}
	data = data[n:]

	if result.Timestamp, n = binary.Varint(data); n <= 0 {
		return Record{}, errors.New("malformed timestamp")
	}
	data = data[n:]

	var err error
	if result.Key, data, err = decodeByteString(data); err != nil {
		return Record{}, fmt.Errorf("malformed key: %w", err)
	}
	if result.Value, data, err = decodeByteString(data); err != nil {
		return Record{}, fmt.Errorf("malformed value: %w", err)
	}
	if len(data) != 0 {
		return Record{}, fmt.Errorf("%d trailing bytes after record", len(data))
	}
	return result, nil
}

// decodeByteString reads a uvarint length followed by that many bytes. It returns the bytes read and the remaining
// input. A zero length results in a nil slice so that decoding is the exact inverse of encoding a record with nil
// key or value.
func decodeByteString(data []byte) ([]byte, []byte, error) {
	length, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, errors.New("malformed length")
	}
	data = data[n:]
	if uint64(len(data)) < length {
		return nil, nil, fmt.Errorf("need %d bytes but only %d available", length, len(data))
	}
	if length == 0 {
		return nil, data, nil
	}
	return bytes.Clone(data[:length]), data[length:], nil
}
