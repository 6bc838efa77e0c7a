package segment

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/utils"
)

// WriterFile is the interface which needs to be implemented by the file to write to.
type WriterFile interface {
	io.WriteCloser
	Sync() error
}

// Writer provides functionality for writing entries to a single segment file.
//
// Instances of Writer are NOT safe to use concurrently. You need to provide external synchronization.
type Writer struct {
	noCopy utils.NoCopy

	// The path to the file the writer is writing to.
	filePath string

	// The file the writer is writing data to.
	file WriterFile

	// The header of the segment file.
	header encoding.Header

	// This buffer is used to combine the individual parts of an entry into a single file write.
	writeBuffer *bytes.Buffer

	// The sequence number the next entry will receive.
	nextSequenceNumber uint64

	// The current offset in bytes from the start of the file.
	offset int64

	// The writer to encode the length of an entry.
	entryLengthWriter encoding.EntryLengthWriter

	// The writer to calculate and write the checksum.
	entryChecksumWriter encoding.EntryChecksumWriter

	// This is a temporary buffer for converting integers into slices of bytes. This helps us with reducing the
	// amount of memory allocations.
	scratchBuffer [max(encoding.MaxLengthBufferLen, encoding.MaxChecksumBufferLen)]byte
}

// CreateConfig is the configuration required for a call to Create.
type CreateConfig struct {
	EntryLengthEncoding encoding.EntryLengthEncoding
	EntryChecksumType   encoding.EntryChecksumType
	Compression         encoding.CompressionType
}

// Create creates a new segment file in the given directory. It will create the new file with the file extension
// ".new" appended to the file name and rename it after the header has been written and flushed. This ensures that a
// new segment file is only visible in the directory when its header reached stable storage.
func Create(directory string, firstSequenceNumber uint64, config CreateConfig) (*Writer, error) {
	// Remove any temporary segment file which might be there from an earlier failure.
	newSegmentFilePath := SegmentFilePath(directory, firstSequenceNumber) + ".new"
	if err := os.Remove(newSegmentFilePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing the segment file %q: %w", newSegmentFilePath, err)
	}

	segmentFile, err := os.OpenFile(newSegmentFilePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o664) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("creating the segment file %q: %w", newSegmentFilePath, err)
	}

	segmentHeader := encoding.Header{
		Magic:               encoding.Magic,
		Version:             encoding.HeaderVersion,
		EntryLengthEncoding: config.EntryLengthEncoding,
		EntryChecksumType:   config.EntryChecksumType,
		Compression:         config.Compression,
		FirstSequenceNumber: firstSequenceNumber,
	}
	var headerBuffer [encoding.HeaderSize]byte
	if err := encoding.WriteHeader(segmentFile, headerBuffer[:], segmentHeader); err != nil {
		return nil, fmt.Errorf("writing header to segment file %q: %w", newSegmentFilePath, err)
	}
	if err := segmentFile.Sync(); err != nil {
		return nil, fmt.Errorf("flushing the segment file %q: %w", newSegmentFilePath, err)
	}

	// Rename the temporary segment file to the final one.
	segmentFilePath := SegmentFilePath(directory, firstSequenceNumber)
	if err := os.Rename(newSegmentFilePath, segmentFilePath); err != nil {
		return nil, fmt.Errorf("renaming the segment file from %q to %q: %w", newSegmentFilePath, segmentFilePath, err)
	}
	if err := syncDirectory(path.Dir(segmentFilePath)); err != nil {
		return nil, err
	}

	return NewWriter(segmentFilePath, segmentFile, NewWriterConfig{
		Header:             segmentHeader,
		Offset:             encoding.HeaderSize,
		NextSequenceNumber: firstSequenceNumber,
	})
}

// NewWriterConfig is the configuration required for a call to NewWriter.
type NewWriterConfig struct {
	// Header is the segment file header.
	Header encoding.Header

	// Offset is the current position in bytes from the start of the file.
	Offset int64

	// NextSequenceNumber is the sequence number the next entry will receive.
	NextSequenceNumber uint64
}

// NewWriter creates a Writer from a file which is already open and positioned at the given offset.
func NewWriter(filePath string, file WriterFile, config NewWriterConfig) (*Writer, error) {
	entryLengthWriter, err := encoding.GetEntryLengthWriter(config.Header.EntryLengthEncoding)
	if err != nil {
		return nil, err
	}

	entryChecksumWriter, err := encoding.GetEntryChecksumWriter(config.Header.EntryChecksumType)
	if err != nil {
		return nil, err
	}

	return &Writer{
		filePath:            filePath,
		file:                file,
		header:              config.Header,
		writeBuffer:         bytes.NewBuffer(make([]byte, 0, 4*1024)),
		nextSequenceNumber:  config.NextSequenceNumber,
		offset:              config.Offset,
		entryLengthWriter:   entryLengthWriter,
		entryChecksumWriter: entryChecksumWriter,
	}, nil
}

// FilePath returns the file path of the file this writer is writing to.
func (w *Writer) FilePath() string {
	return w.filePath
}

// Header returns the segment file header.
func (w *Writer) Header() encoding.Header {
	return w.header
}

// NextSequenceNumber returns the sequence number the next entry will receive.
func (w *Writer) NextSequenceNumber() uint64 {
	return w.nextSequenceNumber
}

// Offset returns the offset in bytes from the start of the file.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Append adds the given payload as a new entry to the segment and returns the sequence number the entry was
// assigned. The entry is written with a single file write, so an entry is never split across segment files. Append
// does not flush, that is the responsibility of the sync policy driving this writer.
func (w *Writer) Append(payload []byte) (uint64, error) {
	w.writeBuffer.Reset()
	if err := w.entryLengthWriter(w.writeBuffer, w.scratchBuffer[:], uint64(len(payload))); err != nil {
		return 0, err
	}
	if len(payload) > 0 {
		w.writeBuffer.Write(payload)
	}
	// The checksum covers the encoded length and the payload, so a damaged length prefix is detectable as well.
	if err := w.entryChecksumWriter(w.writeBuffer, w.scratchBuffer[:], w.writeBuffer.Bytes()); err != nil {
		return 0, err
	}

	if _, err := w.file.Write(w.writeBuffer.Bytes()); err != nil {
		return 0, fmt.Errorf("writing entry to segment file: %w", err)
	}
	sequenceNumber := w.nextSequenceNumber
	w.nextSequenceNumber++
	w.offset += int64(w.writeBuffer.Len())

	AppendEntryTotal.Inc()
	AppendEntryBytes.Add(float64(w.writeBuffer.Len()))
	return sequenceNumber, nil
}

// Sync flushes all written entries to stable storage.
func (w *Writer) Sync() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("flushing the segment file: %w", err)
	}
	return nil
}

// Close flushes all pending changes to disk and closes the file.
func (w *Writer) Close() error {
	if err := w.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// syncDirectory flushes the directory metadata so a freshly renamed segment file survives a crash.
func syncDirectory(directory string) error {
	dir, err := os.Open(directory) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return fmt.Errorf("opening directory %q: %w", directory, err)
	}
	syncErr := dir.Sync()
	closeErr := dir.Close()
	if syncErr != nil {
		return fmt.Errorf("flushing directory %q: %w", directory, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing directory %q: %w", directory, closeErr)
	}
	return nil
}
