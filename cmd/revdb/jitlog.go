package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/willibrandon/revdb/pkg/jitlog"
)

func newJitlogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jitlog",
		Short: "Work with JITLOG event logs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "decode FILE",
		Short: "Print the counter records of an event log",
		Args:  cobra.ExactArgs(1),
		RunE:  runJitlogDecode,
	})
	return cmd
}

func runJitlogDecode(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	records, err := jitlog.ReadCounterRecords(f)

	out := cmd.OutOrStdout()
	heading(out, fmt.Sprintf("%d counter records", len(records)))
	for _, r := range records {
		fmt.Fprintf(out, "  %-12s %8d  %d\n", counterKind(r.Kind), r.Number, r.Count)
	}

	if errors.Is(err, jitlog.ErrUnknownRecord) {
		fmt.Fprintf(out, "stopped: %v\n", err)
		return nil
	}
	return err
}

func counterKind(kind byte) string {
	switch kind {
	case jitlog.CounterBridge:
		return "bridge"
	case jitlog.CounterLabel:
		return "label"
	case jitlog.CounterEntryPoint:
		return "entry point"
	default:
		return fmt.Sprintf("kind 0x%02x", kind)
	}
}
