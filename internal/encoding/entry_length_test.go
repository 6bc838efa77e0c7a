package encoding_test

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/durakv/durakv/internal/encoding"
)

var _ = Describe("EntryLength", func() {
	for _, entryLengthEncoding := range encoding.EntryLengthEncodings {
		Context(fmt.Sprintf("With length encoding %s", entryLengthEncoding), func() {
			It("should write and read back lengths", func() {
				writeEntryLength, err := encoding.GetEntryLengthWriter(entryLengthEncoding)
				Expect(err).ToNot(HaveOccurred())
				readEntryLength, err := encoding.GetEntryLengthReader(entryLengthEncoding)
				Expect(err).ToNot(HaveOccurred())

				for _, length := range []uint64{0, 1, 127, 128, 255, 4096, 1 << 20, math.MaxUint32} {
					var output bytes.Buffer
					var buffer [encoding.MaxLengthBufferLen]byte
					Expect(writeEntryLength(&output, buffer[:], length)).To(Succeed())

					gotLength, bytesRead, err := readEntryLength(&output, buffer[:])
					Expect(err).ToNot(HaveOccurred())
					Expect(gotLength).To(Equal(length))
					Expect(bytesRead).To(BeNumerically(">", 0))
				}
			})

			It("should fail reading a length from an empty buffer", func() {
				readEntryLength, err := encoding.GetEntryLengthReader(entryLengthEncoding)
				Expect(err).ToNot(HaveOccurred())

				var input bytes.Buffer
				var buffer [encoding.MaxLengthBufferLen]byte
				Expect(readEntryLength(&input, buffer[:])).Error().To(MatchError(io.EOF))
			})
		})
	}

	It("should fail writing a length which overflows uint32", func() {
		var output bytes.Buffer
		var buffer [encoding.MaxLengthBufferLen]byte
		Expect(encoding.WriteEntryLengthUint32(&output, buffer[:], math.MaxUint32+1)).To(MatchError(encoding.ErrEntryLengthOverflow))
	})

	It("should fail getting a writer for an unsupported encoding", func() {
		Expect(encoding.GetEntryLengthWriter(0)).Error().To(MatchError(encoding.ErrEntryLengthEncodingUnsupported))
	})

	It("should fail getting a reader for an unsupported encoding", func() {
		Expect(encoding.GetEntryLengthReader(0)).Error().To(MatchError(encoding.ErrEntryLengthEncodingUnsupported))
	})
})

func BenchmarkWriteEntryLengthUint32(b *testing.B) {
	var buffer [encoding.MaxLengthBufferLen]byte
	for b.Loop() {
		if err := encoding.WriteEntryLengthUint32(io.Discard, buffer[:], 4096); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWriteEntryLengthUvarint(b *testing.B) {
	var buffer [encoding.MaxLengthBufferLen]byte
	for b.Loop() {
		if err := encoding.WriteEntryLengthUvarint(io.Discard, buffer[:], 4096); err != nil {
			b.Fatal(err)
		}
	}
}
