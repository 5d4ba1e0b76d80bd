package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/willibrandon/revdb/pkg/store"
)

const wordsPerLine = 4

func newDumpCmd() *cobra.Command {
	var (
		offset int64
		count  int
		width  int
	)

	cmd := &cobra.Command{
		Use:   "dump LOG",
		Short: "Print the value stream of a log as words",
		Long:  `Print the logical (uncompressed) body of a log as words of 1, 2, 4 or 8 bytes, decoded in the byte order of this host.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch width {
			case 1, 2, 4, 8:
			default:
				return fmt.Errorf("invalid word width %d: want 1, 2, 4 or 8", width)
			}

			src, err := store.OpenFile(args[0])
			if err != nil {
				return fmt.Errorf("opening log: %w", err)
			}
			defer src.Close()

			if err := src.Seek(offset); err != nil {
				return fmt.Errorf("seeking to %d: %w", offset, err)
			}
			return dumpWords(cmd.OutOrStdout(), src, offset, width, count)
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "logical offset to start at")
	cmd.Flags().IntVar(&count, "count", 0, "number of words to print, 0 for all")
	cmd.Flags().IntVar(&width, "width", 8, "word width in bytes")
	return cmd
}

// dumpWords prints words read from r, wordsPerLine to a line, each line
// starting with the offset of its first word. A trailing partial word is
// printed as raw bytes.
func dumpWords(w io.Writer, r io.Reader, offset int64, width, count int) error {
	word := make([]byte, width)
	for n := 0; count == 0 || n < count; n++ {
		got, err := io.ReadFull(r, word)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			fmt.Fprintf(w, "\n%08x  partial % x", offset, word[:got])
			break
		}
		if err != nil {
			return err
		}

		if n%wordsPerLine == 0 {
			if n > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%08x ", offset)
		}
		fmt.Fprintf(w, " %0*x", width*2, decodeWord(word))
		offset += int64(width)
	}
	fmt.Fprintln(w)
	return nil
}

func decodeWord(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.NativeEndian.Uint16(b))
	case 4:
		return uint64(binary.NativeEndian.Uint32(b))
	default:
		return binary.NativeEndian.Uint64(b)
	}
}
