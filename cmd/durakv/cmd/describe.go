package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/durakv/durakv/internal/segment"
)

// describeCmd represents the describe command.
var describeCmd = &cobra.Command{
	Use:          "describe",
	Short:        "Provides detailed information about the write-ahead log of the store.",
	Long:         `Provides detailed information about the write-ahead log of the store.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		walDir := filepath.Join(dataDir, "wal")

		segments, err := segment.GetSegments(walDir)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			return fmt.Errorf("no segment found in %q", walDir)
		}

		for _, firstSequenceNumber := range segments {
			if err := describeSegment(walDir, firstSequenceNumber); err != nil {
				return err
			}
		}
		return nil
	},
}

func describeSegment(walDir string, firstSequenceNumber uint64) error {
	reader, err := segment.Open(walDir, firstSequenceNumber)
	if err != nil {
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			fmt.Println(err)
		}
	}()

	entryCount := 0
	for reader.Next() {
		entryCount++
	}

	fmt.Printf("Segment:               %s\n", reader.FilePath())
	header := reader.Header()
	fmt.Printf("Magic:                 %s\n", header.Magic[:])
	fmt.Printf("Version:               %d\n", reader.Header().Version)
	fmt.Printf("Entry Length Encoding: %s\n", reader.Header().EntryLengthEncoding)
	fmt.Printf("Entry Checksum Type:   %s\n", reader.Header().EntryChecksumType)
	fmt.Printf("Compression:           %s\n", reader.Header().Compression)
	fmt.Printf("First Sequence Number: %d\n", reader.Header().FirstSequenceNumber)
	fmt.Printf("Entry Count:           %d\n", entryCount)
	if err := reader.Err(); !errors.Is(err, io.EOF) {
		fmt.Printf("Tail:                  partially written entry at offset %d\n", reader.Offset())
	}
	fmt.Println()
	return nil
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
