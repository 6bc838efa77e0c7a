package wal_test

import (
	"fmt"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/segment"
	"github.com/durakv/durakv/internal/wal"
)

var _ = Describe("WAL", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-wal-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should initialize a new write-ahead log", func() {
		Expect(wal.IsInitialized(dir)).To(BeFalse())
		Expect(wal.Init(dir)).To(Succeed())
		Expect(wal.IsInitialized(dir)).To(BeTrue())
		Expect(segment.GetSegments(dir)).To(Equal([]uint64{wal.FirstSequenceNumber}))
	})

	It("should report an uninitialized log for a missing directory", func() {
		Expect(wal.IsInitialized(dir + "/does-not-exist")).To(BeFalse())
	})

	It("should append entries and read them back", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())

		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("1"))).To(Equal(uint64(1)))
		Expect(log.Append(encoding.OpDelete, []byte("a"), nil)).To(Equal(uint64(2)))
		Expect(log.Append(encoding.OpCheckpoint, nil, nil)).To(Equal(uint64(3)))
		Expect(log.Close()).To(Succeed())

		records, err := wal.ReadAll(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(3))

		Expect(records[0].Sequence).To(Equal(uint64(1)))
		Expect(records[0].Op).To(Equal(encoding.OpPut))
		Expect(records[0].Key).To(Equal([]byte("a")))
		Expect(records[0].Value).To(Equal([]byte("1")))
		Expect(records[0].Timestamp).ToNot(BeZero())

		Expect(records[1].Sequence).To(Equal(uint64(2)))
		Expect(records[1].Op).To(Equal(encoding.OpDelete))
		Expect(records[1].Key).To(Equal([]byte("a")))
		Expect(records[1].Value).To(BeNil())

		Expect(records[2].Sequence).To(Equal(uint64(3)))
		Expect(records[2].Op).To(Equal(encoding.OpCheckpoint))
		Expect(records[2].Key).To(BeNil())
	})

	It("should continue the sequence numbers after reopening", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("1"))).To(Equal(uint64(1)))
		Expect(log.Close()).To(Succeed())

		log, err = wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(log.NextSequenceNumber()).To(Equal(uint64(2)))
		Expect(log.Append(encoding.OpPut, []byte("b"), []byte("2"))).To(Equal(uint64(2)))
		Expect(log.Close()).To(Succeed())

		records, err := wal.ReadAll(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("should rotate into new segments when the maximum segment size is reached", func() {
		log, err := wal.Open(dir, wal.WithMaxSegmentSize(encoding.HeaderSize+1))
		Expect(err).ToNot(HaveOccurred())

		entryCount := 10
		for i := range entryCount {
			key := fmt.Sprintf("key-%d", i)
			Expect(log.Append(encoding.OpPut, []byte(key), []byte("value"))).To(Equal(uint64(i + 1)))
		}
		Expect(log.Close()).To(Succeed())

		segments, err := segment.GetSegments(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(segments)).To(BeNumerically(">", 1))

		records, err := wal.ReadAll(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(entryCount))
		for i, record := range records {
			Expect(record.Sequence).To(Equal(uint64(i + 1)))
		}
	})

	It("should not rotate an empty segment", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())

		Expect(log.Rotate()).To(Succeed())
		Expect(log.Rotate()).To(Succeed())
		Expect(log.Close()).To(Succeed())

		Expect(segment.GetSegments(dir)).To(Equal([]uint64{wal.FirstSequenceNumber}))
	})

	It("should trigger the rotation callback", func() {
		var rotations [][2]uint64
		log, err := wal.Open(dir, wal.WithRotationCallback(func(previousSegment uint64, nextSegment uint64) {
			rotations = append(rotations, [2]uint64{previousSegment, nextSegment})
		}))
		Expect(err).ToNot(HaveOccurred())

		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("1"))).To(Equal(uint64(1)))
		Expect(log.Rotate()).To(Succeed())
		Expect(log.Append(encoding.OpPut, []byte("b"), []byte("2"))).To(Equal(uint64(2)))
		Expect(log.Close()).To(Succeed())

		Expect(rotations).To(Equal([][2]uint64{{1, 2}}))
	})

	It("should replay only from the requested sequence number", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		for i := range 5 {
			key := fmt.Sprintf("key-%d", i)
			Expect(log.Append(encoding.OpPut, []byte(key), []byte("value"))).Error().ToNot(HaveOccurred())
			if i == 2 {
				Expect(log.Rotate()).To(Succeed())
			}
		}
		Expect(log.Close()).To(Succeed())

		reader, err := wal.NewReaderFrom(dir, 4)
		Expect(err).ToNot(HaveOccurred())
		defer reader.Close() //nolint:errcheck // The segment file is only open for reading.

		var sequenceNumbers []uint64
		for reader.Next() {
			sequenceNumbers = append(sequenceNumbers, reader.Value().Sequence)
		}
		Expect(reader.Err()).ToNot(HaveOccurred())
		Expect(sequenceNumbers).To(Equal([]uint64{4, 5}))
	})

	It("should remove segments which are fully below a sequence number", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		for i := range 6 {
			key := fmt.Sprintf("key-%d", i)
			Expect(log.Append(encoding.OpPut, []byte(key), []byte("value"))).Error().ToNot(HaveOccurred())
			if i%2 == 1 {
				Expect(log.Rotate()).To(Succeed())
			}
		}
		// Segments now start at 1, 3, 5 and 7, with two entries in each of the first three.
		Expect(segment.GetSegments(dir)).To(Equal([]uint64{1, 3, 5, 7}))

		// Entry 3 is still needed, so only the first segment can go.
		Expect(log.RemoveSegmentsBelow(3)).To(Succeed())
		Expect(segment.GetSegments(dir)).To(Equal([]uint64{3, 5, 7}))

		Expect(log.RemoveSegmentsBelow(4)).To(Succeed())
		Expect(segment.GetSegments(dir)).To(Equal([]uint64{5, 7}))
		Expect(log.Close()).To(Succeed())

		reader, err := wal.NewReaderFrom(dir, 5)
		Expect(err).ToNot(HaveOccurred())
		defer reader.Close() //nolint:errcheck // The segment file is only open for reading.
		Expect(reader.Next()).To(BeTrue())
		Expect(reader.Value().Sequence).To(Equal(uint64(5)))
	})

	It("should never remove the segment which is open for appending", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("1"))).Error().ToNot(HaveOccurred())

		Expect(log.RemoveSegmentsBelow(100)).To(Succeed())
		Expect(segment.GetSegments(dir)).To(Equal([]uint64{1}))
		Expect(log.Close()).To(Succeed())
	})

	It("should tolerate a partially written entry at the tail", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("1"))).Error().ToNot(HaveOccurred())
		Expect(log.Close()).To(Succeed())

		// Simulate a crash in the middle of an append by adding half an entry at the end.
		file, err := os.OpenFile(segment.SegmentFilePath(dir, 1), os.O_WRONLY|os.O_APPEND, 0)
		Expect(err).ToNot(HaveOccurred())
		_, err = file.Write([]byte{0x01, 0x02, 0x03})
		Expect(err).ToNot(HaveOccurred())
		Expect(file.Close()).To(Succeed())

		reader, err := wal.NewReader(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(reader.Next()).To(BeTrue())
		Expect(reader.Next()).To(BeFalse())
		Expect(reader.Err()).ToNot(HaveOccurred())
		Expect(reader.TailTruncated()).To(BeTrue())
		Expect(reader.Close()).To(Succeed())

		// Reopening cuts the partial entry off and appending continues where the valid entries ended.
		log, err = wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(log.Append(encoding.OpPut, []byte("b"), []byte("2"))).To(Equal(uint64(2)))
		Expect(log.Close()).To(Succeed())

		records, err := wal.ReadAll(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("should fail replay when the log is damaged before the final segment", func() {
		log, err := wal.Open(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("1"))).Error().ToNot(HaveOccurred())
		Expect(log.Rotate()).To(Succeed())
		Expect(log.Append(encoding.OpPut, []byte("b"), []byte("2"))).Error().ToNot(HaveOccurred())
		Expect(log.Close()).To(Succeed())

		// Flip a payload byte in the first segment. The checksum validation has to catch this.
		file, err := os.OpenFile(segment.SegmentFilePath(dir, 1), os.O_WRONLY, 0)
		Expect(err).ToNot(HaveOccurred())
		_, err = file.WriteAt([]byte{'X'}, encoding.HeaderSize+5)
		Expect(err).ToNot(HaveOccurred())
		Expect(file.Close()).To(Succeed())

		Expect(wal.ReadAll(dir)).Error().To(HaveOccurred())
	})

	It("should compress entry payloads when configured", func() {
		log, err := wal.Open(dir, wal.WithCompression(encoding.CompressionTypeZlib))
		Expect(err).ToNot(HaveOccurred())
		Expect(log.Append(encoding.OpPut, []byte("a"), []byte("some value"))).Error().ToNot(HaveOccurred())
		Expect(log.Close()).To(Succeed())

		records, err := wal.ReadAll(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Value).To(Equal([]byte("some value")))
	})

	for syncPolicyName, syncPolicyOption := range map[string]wal.Option{
		"none":      wal.WithSyncPolicyNone(),
		"immediate": wal.WithSyncPolicyImmediate(),
		"grouped":   wal.WithSyncPolicyGrouped(time.Millisecond),
	} {
		Context(fmt.Sprintf("With sync policy %s", syncPolicyName), func() {
			It("should append entries from multiple goroutines", func() {
				log, err := wal.Open(dir, syncPolicyOption)
				Expect(err).ToNot(HaveOccurred())

				goroutineCount := 4
				entriesPerGoroutine := 25
				var wg sync.WaitGroup
				for g := range goroutineCount {
					wg.Add(1)
					go func() {
						defer wg.Done()
						defer GinkgoRecover()
						for i := range entriesPerGoroutine {
							key := fmt.Sprintf("key-%d-%d", g, i)
							Expect(log.Append(encoding.OpPut, []byte(key), []byte("value"))).Error().ToNot(HaveOccurred())
						}
					}()
				}
				wg.Wait()
				Expect(log.Close()).To(Succeed())

				records, err := wal.ReadAll(dir)
				Expect(err).ToNot(HaveOccurred())
				Expect(records).To(HaveLen(goroutineCount * entriesPerGoroutine))
				for i, record := range records {
					Expect(record.Sequence).To(Equal(uint64(i + 1)))
				}
			})
		})
	}
})
