package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/store"
	"gopkg.in/yaml.v3"
)

// logReport is what inspect prints about a log and its index.
type logReport struct {
	Path        string             `yaml:"path"`
	Version     uint32             `yaml:"version"`
	Compression string             `yaml:"compression"`
	ByteOrder   string             `yaml:"byte_order"`
	WordSize    uint8              `yaml:"word_size"`
	Session     string             `yaml:"session"`
	Created     time.Time          `yaml:"created"`
	BodySize    int64              `yaml:"body_size"`
	Frames      int                `yaml:"frames"`
	Truncated   bool               `yaml:"truncated"`
	TotalSteps  uint64             `yaml:"total_steps"`
	Checkpoints []checkpointReport `yaml:"checkpoints"`
}

type checkpointReport struct {
	Step     uint64 `yaml:"step"`
	Offset   int64  `yaml:"offset"`
	UniqueID uint64 `yaml:"uid"`
	State    int    `yaml:"state_bytes,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "inspect LOG",
		Short: "Show the header, frames and checkpoints of a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspectLog(args[0])
			if err != nil {
				return err
			}
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encoding report: %w", err)
				}
				return enc.Close()
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the report as YAML")
	return cmd
}

func inspectLog(path string) (*logReport, error) {
	src, err := store.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	defer src.Close()

	h := src.Header()
	ix, err := recorder.LoadIndexFor(path, h.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	byteOrder := "little endian"
	if h.ByteOrder == store.BigEndian {
		byteOrder = "big endian"
	}
	report := &logReport{
		Path:        path,
		Version:     h.Version,
		Compression: h.Compression.String(),
		ByteOrder:   byteOrder,
		WordSize:    h.WordSize,
		Session:     h.SessionID.String(),
		Created:     h.Created,
		BodySize:    src.Size(),
		Frames:      src.Frames(),
		Truncated:   src.Truncated(),
		TotalSteps:  ix.TotalSteps,
	}
	for _, c := range ix.Checkpoints() {
		report.Checkpoints = append(report.Checkpoints, checkpointReport{
			Step:     c.Step,
			Offset:   c.Offset,
			UniqueID: c.UniqueID,
			State:    len(c.State),
		})
	}
	return report, nil
}

func printReport(w io.Writer, r *logReport) {
	heading(w, r.Path)
	fmt.Fprintf(w, "  session      %s\n", r.Session)
	fmt.Fprintf(w, "  created      %s\n", r.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "  format       v%d, %s, %d-byte words\n", r.Version, r.ByteOrder, r.WordSize)
	fmt.Fprintf(w, "  compression  %s", r.Compression)
	if r.Frames > 0 {
		fmt.Fprintf(w, " (%d frames)", r.Frames)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  body         %d bytes\n", r.BodySize)
	if r.Truncated {
		fmt.Fprintln(w, "  warning      last frame is truncated")
	}

	fmt.Fprintln(w)
	heading(w, fmt.Sprintf("Checkpoints (%d steps recorded):", r.TotalSteps))
	for _, c := range r.Checkpoints {
		fmt.Fprintf(w, "  step %-8d offset %-10d uid %-6d state %d bytes\n", c.Step, c.Offset, c.UniqueID, c.State)
	}
}
