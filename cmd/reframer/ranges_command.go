package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zsiec/reframer/internal/boundary"
)

func newRangesCommand() *cobra.Command {
	var starts, ends []string
	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Show how range expressions are interpreted",
		Example: `  reframer ranges --xs T00:01:00,F1500 --xe T00:01:30
  reframer ranges --xs S200MB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := describeRanges(starts, ends)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&starts, "xs", nil, "Range start expressions")
	cmd.Flags().StringSliceVar(&ends, "xe", nil, "Range end expressions")
	return cmd
}

func describeRanges(starts, ends []string) (string, error) {
	if len(starts) == 0 {
		return "", fmt.Errorf("at least one --xs expression is required")
	}
	rows := make([][]string, 0, len(starts))
	for i, expr := range starts {
		b, err := boundary.Parse(expr)
		if err != nil {
			return "", err
		}
		end := "-"
		if i < len(ends) {
			e, err := boundary.Parse(ends[i])
			if err != nil {
				return "", err
			}
			end = describeBoundary(e)
		} else if b.Mode == boundary.ModeRange && i+1 < len(starts) {
			end = "next start"
		} else if b.Mode == boundary.ModeRange {
			end = "end of stream"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), b.Mode.String(), describeBoundary(b), end})
	}
	headers := []string{"#", "Mode", "Start", "End"}
	return renderTable(headers, rows, []columnAlignment{alignRight}), nil
}

func describeBoundary(b boundary.Boundary) string {
	switch {
	case b.Mode == boundary.ModeSize:
		return humanize.IBytes(b.Size) + " chunks"
	case b.Mode == boundary.ModeSAP:
		return "every access point"
	case b.Mode == boundary.ModeDuration:
		return fmt.Sprintf("%gs chunks", b.Time.Seconds())
	case b.IsFrame():
		return fmt.Sprintf("frame %d", b.Frame-1)
	}
	return fmt.Sprintf("%gs", b.Time.Seconds())
}
