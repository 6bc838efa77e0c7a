package segment

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/utils"
)

// ErrNoEntry is reported by Reader.Err when no further entry could be read. The wrapped cause tells apart a clean
// end of the segment (io.EOF) from a truncated or corrupt entry.
var ErrNoEntry = errors.New("no log entry")

// ReaderFile is the interface which needs to be implemented by the file to read from.
type ReaderFile interface {
	io.ReadCloser
	io.Seeker
	Name() string
}

// Reader provides functionality for reading entries from a single segment file.
//
// Instances of Reader are NOT safe to use concurrently. You need to provide external synchronization.
type Reader struct {
	noCopy utils.NoCopy

	// The segment file to read from.
	file ReaderFile

	// The header of the segment file.
	header encoding.Header

	// The current offset from the start of the file in bytes. This is used together with fileSize to calculate the
	// available data until the end of the file, and to reset to a former offset after a failed read of an entry.
	offset int64

	// The sequence number the next entry will receive.
	nextSequenceNumber uint64

	// The reader to decode the length of an entry.
	entryLengthReader encoding.EntryLengthReader

	// The reader to calculate and validate the checksum.
	entryChecksumReader encoding.EntryChecksumReader

	// The buffer holding the entry data. It doubles as scratch space for length and checksum decoding.
	data []byte

	// The total size of the file in bytes. This is used together with offset to calculate the available data until
	// the end of file. This helps with avoiding large memory allocations with malformed files.
	fileSize int64

	// The value the reader returns. Only contains useful data if err is nil.
	value ReaderValue

	// The error for the last operation. If this is nil, the content of value can be used.
	err error
}

// ReaderValue is the value returned by the Reader.
type ReaderValue struct {
	// The sequence number of the entry.
	SequenceNumber uint64

	// The framed payload of the entry. The slice is only valid until the next call to Next.
	Payload []byte
}

// Open creates a new segment reader for the segment in the given directory whose first entry has the given sequence
// number.
//
// To avoid leaking resources, the returned Reader needs to be closed. Returns an error if the file cannot be opened,
// read from or the header is malformed.
func Open(directory string, firstSequenceNumber uint64) (*Reader, error) {
	segmentFilePath := SegmentFilePath(directory, firstSequenceNumber)
	segmentReader, err := openSegment(segmentFilePath, firstSequenceNumber)
	if err != nil {
		return nil, fmt.Errorf("the segment file %q: %w", segmentFilePath, err)
	}
	return segmentReader, nil
}

func openSegment(segmentFilePath string, firstSequenceNumber uint64) (*Reader, error) {
	// The file is opened read-write so the reader can be turned into a writer once all entries have been read.
	file, err := os.OpenFile(segmentFilePath, os.O_RDWR, 0) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	var buffer [encoding.HeaderSize]byte
	header, err := encoding.ReadHeader(file, buffer[:])
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if header.FirstSequenceNumber != firstSequenceNumber {
		_ = file.Close()
		return nil, fmt.Errorf("expected first sequence number to be %d but got %d", firstSequenceNumber, header.FirstSequenceNumber)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("reading file size: %w", err)
	}

	segmentReader, err := NewReader(file, NewReaderConfig{
		Header:             header,
		Offset:             encoding.HeaderSize,
		NextSequenceNumber: firstSequenceNumber,
		FileSize:           fileInfo.Size(),
	})
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return segmentReader, nil
}

// NewReaderConfig is the configuration required for a call to NewReader.
type NewReaderConfig struct {
	// Header is the segment file header.
	Header encoding.Header

	// Offset is the current position in bytes from the start of the file.
	Offset int64

	// NextSequenceNumber is the sequence number the next entry will receive.
	NextSequenceNumber uint64

	// FileSize is the total size in bytes of the segment file.
	FileSize int64
}

// NewReader creates a Reader from a file which is already open and positioned at the given offset.
func NewReader(file ReaderFile, config NewReaderConfig) (*Reader, error) {
	entryLengthReader, err := encoding.GetEntryLengthReader(config.Header.EntryLengthEncoding)
	if err != nil {
		return nil, err
	}

	entryChecksumReader, err := encoding.GetEntryChecksumReader(config.Header.EntryChecksumType)
	if err != nil {
		return nil, err
	}

	return &Reader{
		file:                file,
		header:              config.Header,
		offset:              config.Offset,
		nextSequenceNumber:  config.NextSequenceNumber,
		entryLengthReader:   entryLengthReader,
		entryChecksumReader: entryChecksumReader,
		data:                make([]byte, 4*1024), // Pre-allocate the data slice to reduce the number of allocations.
		fileSize:            config.FileSize,
	}, nil
}

// FilePath returns the file path of the file this reader is reading from.
func (r *Reader) FilePath() string {
	return r.file.Name()
}

// Header returns the segment file header.
func (r *Reader) Header() encoding.Header {
	return r.header
}

// Offset returns the offset in bytes from the start of the file.
func (r *Reader) Offset() int64 {
	return r.offset
}

// NextSequenceNumber returns the sequence number the next entry will receive.
func (r *Reader) NextSequenceNumber() uint64 {
	return r.nextSequenceNumber
}

// Next reports if an entry has been successfully read. When it returns true, Err() returns nil and Value() contains
// valid data. When it returns false, Err() contains the error and Value() contains invalid data.
func (r *Reader) Next() bool {
	if r.err = r.next(); r.err != nil {
		r.err = errors.Join(ErrNoEntry, r.err)

		// In case of an error when reading the next entry, we move the file position back to where we were before.
		// Otherwise, we could not reliably continue writing to this segment file after the last valid entry.
		if _, err := r.file.Seek(r.offset, io.SeekStart); err != nil {
			r.err = errors.Join(r.err, err)
		}
		return false
	}

	ReadEntryTotal.Inc()
	ReadEntryBytes.Add(float64(len(r.value.Payload)))
	return true
}

func (r *Reader) next() error {
	// Read the length of the entry first. We use the data slice as scratch space for the raw length bytes. We assume
	// that the data slice can always hold at least the maximum length encoding, which is true for the pre-allocated
	// data slice.
	length, lengthBytes, err := r.entryLengthReader(r.file, r.data[:encoding.MaxLengthBufferLen])
	if err != nil {
		return err
	}

	remainingBytes := r.fileSize - r.offset
	if remainingBytes < int64(length) { //nolint:gosec // chances are low that length will overflow
		return errors.New("the entry length exceeds the remaining file size")
	}

	// Read the payload of the entry. As we are using the data slice as scratch space for the length and the checksum
	// as well, we need to make sure that it can hold all three parts.
	requiredDataSize := uint64(encoding.MaxLengthBufferLen) + length + encoding.MaxChecksumBufferLen
	if uint64(len(r.data)) < requiredDataSize {
		// Grow by a factor of 1.5 to amortise allocations over multiple calls, rounded up to the next multiple of
		// 4096 to keep buffer sizes aligned with OS page sizes.
		requiredDataSize += requiredDataSize >> 1
		requiredDataSize = (requiredDataSize + 4095) &^ 4095

		newData := make([]byte, requiredDataSize)
		copy(newData, r.data[:lengthBytes])
		r.data = newData
	}
	if _, err := io.ReadFull(r.file, r.data[lengthBytes:uint64(lengthBytes)+length]); err != nil { //nolint:gosec // lengthBytes cannot be negative
		return fmt.Errorf("reading entry payload: %w", err)
	}

	// Read the checksum and validate it against the length and payload bytes we read so far.
	checksumBytes, err := r.entryChecksumReader(r.file, r.data[uint64(lengthBytes)+length:], r.data[:uint64(lengthBytes)+length]) //nolint:gosec // lengthBytes cannot be negative
	if err != nil {
		return err
	}
	r.value.Payload = r.data[lengthBytes : uint64(lengthBytes)+length] //nolint:gosec // lengthBytes cannot be negative
	r.value.SequenceNumber = r.nextSequenceNumber

	r.offset += int64(lengthBytes) + int64(length) + int64(checksumBytes) //nolint:gosec // chances are low that length will overflow
	r.nextSequenceNumber++
	return nil
}

// Value returns the last entry read from the segment file. The value is only valid after a call to Next() which
// returned true.
func (r *Reader) Value() ReaderValue {
	return r.value
}

// Err returns the error for the last call to Next().
// Returns ErrNoEntry wrapping io.EOF when the clean end of the segment file was reached. Any other wrapped cause
// indicates a truncated or corrupt entry at the current offset.
func (r *Reader) Err() error {
	return r.err
}

// ToWriter returns a Writer appending to the open segment file. You must have read all entries of the segment before
// calling this method. Trailing bytes after the last valid entry are cut off, which implements the tail truncation
// rule for entries which were only partially written before a crash. After a call to ToWriter the Reader cannot be
// used anymore.
func (r *Reader) ToWriter() (*Writer, error) {
	if !errors.Is(r.err, ErrNoEntry) {
		return nil, errors.New("the segment needs to be read until the last entry before writing to it")
	}

	writerFile, ok := r.file.(WriterFile)
	if !ok {
		return nil, errors.New("the segment file does not implement the interface for writing to it")
	}

	if r.fileSize > r.offset {
		truncator, ok := r.file.(interface{ Truncate(int64) error })
		if !ok {
			return nil, errors.New("the segment file has trailing garbage but cannot be truncated")
		}
		if err := truncator.Truncate(r.offset); err != nil {
			return nil, fmt.Errorf("truncating the segment file to %d bytes: %w", r.offset, err)
		}
	}

	segmentWriter, err := NewWriter(r.file.Name(), writerFile, NewWriterConfig{
		Header:             r.header,
		Offset:             r.offset,
		NextSequenceNumber: r.nextSequenceNumber,
	})
	if err != nil {
		return nil, err
	}

	// Make sure this reader is not used for anything else afterward.
	*r = Reader{}
	return segmentWriter, nil
}

// Close closes the file the Reader is reading from.
func (r *Reader) Close() error {
	return r.file.Close()
}
