package segment_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/segment"
	"github.com/durakv/durakv/internal/utils"
)

var _ = Describe("Reader", func() {
	for _, entryLengthEncoding := range encoding.EntryLengthEncodings {
		for _, entryChecksumType := range encoding.EntryChecksumTypes {
			Context(fmt.Sprintf("With length encoding %s and entry checksum %s", entryLengthEncoding, entryChecksumType), func() {
				var dir string

				BeforeEach(func() {
					var err error
					dir, err = os.MkdirTemp("", "test-segment-*")
					Expect(err).ToNot(HaveOccurred())
				})

				AfterEach(func() {
					Expect(os.RemoveAll(dir)).To(Succeed())
				})

				writeEntries := func(entries [][]byte) {
					GinkgoHelper()
					writer, err := segment.Create(dir, 1, segment.CreateConfig{
						EntryLengthEncoding: entryLengthEncoding,
						EntryChecksumType:   entryChecksumType,
						Compression:         encoding.DefaultCompressionType,
					})
					Expect(err).ToNot(HaveOccurred())
					for _, entry := range entries {
						Expect(writer.Append(entry)).Error().ToNot(HaveOccurred())
					}
					Expect(writer.Close()).To(Succeed())
				}

				It("should read back the written entries", func() {
					entries := [][]byte{
						[]byte("foo"),
						[]byte("bar"),
						[]byte("baz"),
					}
					writeEntries(entries)

					reader, err := segment.Open(dir, 1)
					Expect(err).ToNot(HaveOccurred())
					Expect(reader.Header().EntryLengthEncoding).To(Equal(entryLengthEncoding))
					Expect(reader.Header().EntryChecksumType).To(Equal(entryChecksumType))

					for i, entry := range entries {
						Expect(reader.Next()).To(BeTrue())
						Expect(reader.Value().Payload).To(Equal(entry))
						Expect(reader.Value().SequenceNumber).To(Equal(uint64(i + 1)))
					}
					Expect(reader.Next()).To(BeFalse())
					Expect(reader.Err()).To(MatchError(segment.ErrNoEntry))
					Expect(reader.Err()).To(MatchError(io.EOF))
					Expect(reader.Close()).To(Succeed())
				})

				It("should stop in front of a truncated entry at the tail", func() {
					writeEntries([][]byte{[]byte("foo")})

					// Simulate a crash in the middle of an append by adding half an entry at the end.
					file, err := os.OpenFile(segment.SegmentFilePath(dir, 1), os.O_WRONLY|os.O_APPEND, 0)
					Expect(err).ToNot(HaveOccurred())
					_, err = file.Write([]byte{0x01})
					Expect(err).ToNot(HaveOccurred())
					Expect(file.Close()).To(Succeed())

					reader, err := segment.Open(dir, 1)
					Expect(err).ToNot(HaveOccurred())
					Expect(reader.Next()).To(BeTrue())
					Expect(reader.Next()).To(BeFalse())
					Expect(reader.Err()).To(MatchError(segment.ErrNoEntry))
					Expect(reader.Close()).To(Succeed())
				})

				It("should detect a damaged entry", func() {
					writeEntries([][]byte{[]byte("foo")})

					// Flip a payload byte. The checksum validation has to catch this.
					file, err := os.OpenFile(segment.SegmentFilePath(dir, 1), os.O_WRONLY, 0)
					Expect(err).ToNot(HaveOccurred())
					_, err = file.WriteAt([]byte{'X'}, encoding.HeaderSize+5)
					Expect(err).ToNot(HaveOccurred())
					Expect(file.Close()).To(Succeed())

					reader, err := segment.Open(dir, 1)
					Expect(err).ToNot(HaveOccurred())
					Expect(reader.Next()).To(BeFalse())
					Expect(reader.Err()).To(MatchError(segment.ErrNoEntry))
					Expect(errors.Is(reader.Err(), io.EOF)).To(BeFalse())
					Expect(reader.Close()).To(Succeed())
				})

				It("should turn into a writer which cuts off trailing garbage", func() {
					writeEntries([][]byte{[]byte("foo")})

					file, err := os.OpenFile(segment.SegmentFilePath(dir, 1), os.O_WRONLY|os.O_APPEND, 0)
					Expect(err).ToNot(HaveOccurred())
					_, err = file.Write([]byte{0x01, 0x02, 0x03})
					Expect(err).ToNot(HaveOccurred())
					Expect(file.Close()).To(Succeed())

					reader, err := segment.Open(dir, 1)
					Expect(err).ToNot(HaveOccurred())
					for reader.Next() {
						// Skip all entries to reach the end of the segment.
					}
					validOffset := reader.Offset()

					writer, err := reader.ToWriter()
					Expect(err).ToNot(HaveOccurred())
					Expect(writer.NextSequenceNumber()).To(Equal(uint64(2)))
					Expect(writer.Append([]byte("bar"))).To(Equal(uint64(2)))
					Expect(writer.Close()).To(Succeed())

					fileInfo, err := os.Stat(segment.SegmentFilePath(dir, 1))
					Expect(err).ToNot(HaveOccurred())
					Expect(fileInfo.Size()).To(BeNumerically(">", validOffset))

					reader, err = segment.Open(dir, 1)
					Expect(err).ToNot(HaveOccurred())
					Expect(reader.Next()).To(BeTrue())
					Expect(reader.Value().Payload).To(Equal([]byte("foo")))
					Expect(reader.Next()).To(BeTrue())
					Expect(reader.Value().Payload).To(Equal([]byte("bar")))
					Expect(reader.Next()).To(BeFalse())
					Expect(reader.Err()).To(MatchError(io.EOF))
					Expect(reader.Close()).To(Succeed())
				})

				It("should refuse turning into a writer before the end was reached", func() {
					writeEntries([][]byte{[]byte("foo")})

					reader, err := segment.Open(dir, 1)
					Expect(err).ToNot(HaveOccurred())
					Expect(reader.ToWriter()).Error().To(HaveOccurred())
					Expect(reader.Close()).To(Succeed())
				})
			})
		}
	}

	It("should fail opening a segment whose header does not match the file name", func() {
		dir, err := os.MkdirTemp("", "test-segment-*")
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			Expect(os.RemoveAll(dir)).To(Succeed())
		}()

		writer, err := segment.Create(dir, 1, segment.CreateConfig{
			EntryLengthEncoding: encoding.DefaultEntryLengthEncoding,
			EntryChecksumType:   encoding.DefaultEntryChecksumType,
			Compression:         encoding.DefaultCompressionType,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		// An accidental rename of the segment file has to be detected.
		Expect(os.Rename(segment.SegmentFilePath(dir, 1), segment.SegmentFilePath(dir, 2))).To(Succeed())
		Expect(segment.Open(dir, 2)).Error().To(HaveOccurred())
	})
})

func BenchmarkReaderNext(b *testing.B) {
	recorder := utils.RecorderFile{}
	writer, err := segment.NewWriter("in-memory-recorder", &recorder, segment.NewWriterConfig{
		Header:             encoding.DefaultHeader,
		Offset:             encoding.HeaderSize,
		NextSequenceNumber: 1,
	})
	if err != nil {
		b.Fatal(err)
	}
	if _, err := writer.Append([]byte("some payload of a realistic size for a key-value operation")); err != nil {
		b.Fatal(err)
	}

	reader, err := segment.NewReader(&utils.LoopFile{Data: recorder.Bytes()}, segment.NewReaderConfig{
		Header:             encoding.DefaultHeader,
		Offset:             encoding.HeaderSize,
		NextSequenceNumber: 1,
		FileSize:           1 << 62,
	})
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if !reader.Next() {
			b.Fatal(reader.Err())
		}
	}
}
