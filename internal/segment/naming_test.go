package segment_test

import (
	"os"
	"path"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/durakv/durakv/internal/segment"
)

var _ = Describe("Naming", func() {
	It("should pad the segment file name with leading zeros", func() {
		Expect(segment.SegmentFileName(0)).To(Equal("00000000000000000000.wal"))
		Expect(segment.SegmentFileName(1)).To(Equal("00000000000000000001.wal"))
		Expect(segment.SegmentFileName(12345)).To(Equal("00000000000000012345.wal"))
	})

	Context("With a directory of segment files", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "test-segment-*")
			Expect(err).ToNot(HaveOccurred())

			for _, fileName := range []string{
				segment.SegmentFileName(1),
				segment.SegmentFileName(17),
				segment.SegmentFileName(5),
				segment.SegmentFileName(99) + ".new",
				"unrelated.txt",
			} {
				Expect(os.WriteFile(path.Join(dir, fileName), nil, 0o664)).To(Succeed())
			}
			Expect(os.Mkdir(path.Join(dir, segment.SegmentFileName(7)), 0o775)).To(Succeed())
		})

		AfterEach(func() {
			Expect(os.RemoveAll(dir)).To(Succeed())
		})

		It("should list the segments sorted and skip everything else", func() {
			Expect(segment.GetSegments(dir)).To(Equal([]uint64{1, 5, 17}))
		})

		It("should find the segment containing a sequence number", func() {
			Expect(segment.SegmentFromSequenceNumber(dir, 1)).To(Equal(uint64(1)))
			Expect(segment.SegmentFromSequenceNumber(dir, 4)).To(Equal(uint64(1)))
			Expect(segment.SegmentFromSequenceNumber(dir, 5)).To(Equal(uint64(5)))
			Expect(segment.SegmentFromSequenceNumber(dir, 16)).To(Equal(uint64(5)))
			Expect(segment.SegmentFromSequenceNumber(dir, 1000)).To(Equal(uint64(17)))
		})

		It("should fail for a sequence number before the first segment", func() {
			Expect(segment.SegmentFromSequenceNumber(dir, 0)).Error().To(HaveOccurred())
		})
	})

	It("should fail listing segments of a missing directory", func() {
		Expect(segment.GetSegments("/does/not/exist")).Error().To(HaveOccurred())
	})
})
