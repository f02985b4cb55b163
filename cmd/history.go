package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/ozark-survey/cavedb/internal/model"
)

var historyOut string

var historyCmd = &cobra.Command{
	Use:   "history <cave-id>",
	Short: "Export a cave's audit trail to XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		caveID, err := uuid.Parse(args[0])
		if err != nil {
			return eris.Wrapf(err, "parse cave id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.CaveHistory(ctx, caveID)
		if err != nil {
			return err
		}

		out := historyOut
		if out == "" {
			out = fmt.Sprintf("cave-%s-history.xlsx", caveID)
		}
		if err := writeHistoryXLSX(out, records); err != nil {
			return err
		}

		zap.L().Info("history exported",
			zap.String("cave_id", caveID.String()),
			zap.Int("records", len(records)),
			zap.String("file", out),
		)
		return nil
	},
}

func writeHistoryXLSX(path string, records []model.ChangeRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("History")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Date", "Request", "Entity", "Property", "Change", "Value", "Previous"} {
		header.AddCell().Value = h
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().Value = r.CreatedAt.UTC().Format(time.RFC3339)
		row.AddCell().Value = r.ChangeRequestID.String()
		if r.EntranceID != nil {
			row.AddCell().Value = "entrance " + r.EntranceID.String()
		} else {
			row.AddCell().Value = "cave"
		}
		row.AddCell().Value = r.Property
		row.AddCell().Value = string(r.ChangeType)
		value, previous := formatChangeValue(r.Value)
		row.AddCell().Value = value
		row.AddCell().Value = previous
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

// formatChangeValue renders a change value and its previous value as cell
// text. Unset previous values render empty.
func formatChangeValue(v model.ChangeValue) (value, previous string) {
	switch cv := v.(type) {
	case model.StringValue:
		value = cv.Value
		if cv.Previous != nil {
			previous = *cv.Previous
		}
	case model.IntValue:
		value = strconv.Itoa(cv.Value)
		if cv.Previous != nil {
			previous = strconv.Itoa(*cv.Previous)
		}
	case model.DoubleValue:
		value = strconv.FormatFloat(cv.Value, 'f', -1, 64)
		if cv.Previous != nil {
			previous = strconv.FormatFloat(*cv.Previous, 'f', -1, 64)
		}
	case model.BoolValue:
		value = strconv.FormatBool(cv.Value)
		if cv.Previous != nil {
			previous = strconv.FormatBool(*cv.Previous)
		}
	case model.DateTimeValue:
		value = cv.Value.UTC().Format(time.RFC3339)
		if cv.Previous != nil {
			previous = cv.Previous.UTC().Format(time.RFC3339)
		}
	case model.CaveValue:
		value = cv.ID.String()
	case model.EntranceValue:
		value = cv.ID.String()
	}
	return value, previous
}

func init() {
	historyCmd.Flags().StringVar(&historyOut, "out", "", "output file path (default cave-<id>-history.xlsx)")
	rootCmd.AddCommand(historyCmd)
}
