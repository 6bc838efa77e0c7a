package utils

import (
	"bytes"
)

// DiscardFile provides a stub for a segment file which discards all data. It allows running large scale benchmarks
// without filling up the disk or memory.
type DiscardFile struct{}

func (d *DiscardFile) Write(p []byte) (int, error) {
	return len(p), nil
}

func (d *DiscardFile) Close() error {
	return nil
}

func (d *DiscardFile) Sync() error {
	return nil
}

func (d *DiscardFile) Name() string {
	return "in-memory-discard"
}

// RecorderFile provides a stub for a segment file which records what is written to it in memory. It allows preparing
// a buffer with a segment writer which can then serve read requests through LoopFile or a bytes.Reader.
type RecorderFile struct {
	bytes.Buffer
}

func (r *RecorderFile) Close() error {
	return nil
}

func (r *RecorderFile) Sync() error {
	return nil
}

func (r *RecorderFile) Name() string {
	return "in-memory-recorder"
}

// LoopFile provides a stub for a segment file which returns the same data over and over again in an endless loop.
// It allows running large scale read benchmarks without providing an actual big file on disk or in memory.
type LoopFile struct {
	Data   []byte
	Offset int
}

func (l *LoopFile) Read(p []byte) (int, error) {
	copyBytes := min(len(p), len(l.Data)-l.Offset)
	copy(p, l.Data[l.Offset:l.Offset+copyBytes])
	l.Offset += copyBytes
	if l.Offset >= len(l.Data) {
		l.Offset = 0
	}
	return copyBytes, nil
}

func (l *LoopFile) Close() error {
	return nil
}

func (l *LoopFile) Seek(offset int64, whence int) (int64, error) {
	return offset, nil
}

func (l *LoopFile) Name() string {
	return "in-memory-loop"
}
