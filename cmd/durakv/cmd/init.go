package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/wal"
)

var (
	initEntryLengthEncoding string
	initEntryChecksumType   string
	initCompression         string
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Initializes a new write-ahead log for the store.",
	Long:         `Initializes a new write-ahead log for the store.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		walDir := filepath.Join(dataDir, "wal")

		initialized, err := wal.IsInitialized(walDir)
		if err != nil {
			return err
		}
		if initialized {
			return fmt.Errorf("write-ahead log already initialized at %q", walDir)
		}

		var withEntryLengthEncoding wal.Option
		switch initEntryLengthEncoding {
		case "uint32":
			withEntryLengthEncoding = wal.WithEntryLengthEncoding(encoding.EntryLengthEncodingUint32)
		case "uvarint":
			withEntryLengthEncoding = wal.WithEntryLengthEncoding(encoding.EntryLengthEncodingUvarint)
		default:
			return fmt.Errorf("unsupported entry length encoding %q", initEntryLengthEncoding)
		}

		var withEntryChecksumType wal.Option
		switch initEntryChecksumType {
		case "crc32":
			withEntryChecksumType = wal.WithEntryChecksumType(encoding.EntryChecksumTypeCrc32)
		case "crc64":
			withEntryChecksumType = wal.WithEntryChecksumType(encoding.EntryChecksumTypeCrc64)
		default:
			return fmt.Errorf("unsupported entry checksum type %q", initEntryChecksumType)
		}

		var withCompression wal.Option
		switch initCompression {
		case "none":
			withCompression = wal.WithCompression(encoding.CompressionTypeNone)
		case "zlib":
			withCompression = wal.WithCompression(encoding.CompressionTypeZlib)
		default:
			return fmt.Errorf("unsupported compression %q", initCompression)
		}

		if err := wal.Init(walDir, withEntryLengthEncoding, withEntryChecksumType, withCompression); err != nil {
			return err
		}
		fmt.Printf("Write-ahead log initialized at %q.\n", walDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(
		&initEntryLengthEncoding,
		"entry-length-encoding",
		"l",
		"uint32",
		"The entry length encoding to use. Valid values are uint32, uvarint.",
	)

	initCmd.Flags().StringVarP(
		&initEntryChecksumType,
		"entry-checksum-type",
		"c",
		"crc32",
		"The entry checksum type to use. Valid values are crc32, crc64.",
	)

	initCmd.Flags().StringVarP(
		&initCompression,
		"compression",
		"z",
		"none",
		"The compression applied to entry payloads. Valid values are none, zlib.",
	)
}
