package utils

import (
	"io"
)

// ByteReader adapts an io.Reader to an io.ByteReader while recording every byte read into the given buffer. This
// allows callers to know how many bytes a varint decode consumed and to include the raw bytes in checksum
// calculations.
type ByteReader struct {
	reader  io.Reader
	buffer  []byte
	counter int
}

func NewByteReader(reader io.Reader, buffer []byte) ByteReader {
	return ByteReader{
		reader: reader,
		buffer: buffer,
	}
}

func (b *ByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.reader, b.buffer[b.counter:b.counter+1]); err != nil {
		return 0, err
	}
	result := b.buffer[b.counter]
	b.counter++
	return result, nil
}

// BytesRead returns the number of bytes read so far.
func (b *ByteReader) BytesRead() int {
	return b.counter
}
