package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zsiec/reframer/internal/sink"
)

func newInspectCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect <file.obj>",
		Short: "List the objects stored in an object file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out, err := inspectObjects(bufio.NewReader(f), limit)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many objects (0 shows all)")
	return cmd
}

func inspectObjects(r *bufio.Reader, limit int) (string, error) {
	hdr, err := sink.ReadHeader(r)
	if err != nil {
		return "", err
	}
	var rows [][]string
	var total, payload int
	for {
		o, err := sink.ReadObject(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		total++
		payload += len(o.Payload)
		if limit > 0 && len(rows) >= limit {
			continue
		}
		key := ""
		if o.Keyframe {
			key = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatUint(o.ID, 10),
			formatMicros(o.CaptureUS),
			formatMicros(o.DecodeUS),
			key,
			humanize.IBytes(uint64(len(o.Payload))),
			o.Suffix,
		})
	}
	headers := []string{"Object", "Capture", "Decode", "Key", "Size", "Suffix"}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight}
	summary := fmt.Sprintf("track %d, group %d: %d objects, %s payload",
		hdr.TrackAlias, hdr.Group, total, humanize.IBytes(uint64(payload)))
	return summary + "\n" + renderTable(headers, rows, aligns), nil
}
