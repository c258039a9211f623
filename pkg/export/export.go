package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/savelife/rescue/core/dispatch/logging"
)

// WriteJSON writes the dispatch records to w in JSON format.
func WriteJSON(w io.Writer, records []logging.Record) error {
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes one row per selected recipient with the delivery and commit
// outcome, suitable for spreadsheet review of an incident.
func WriteCSV(w io.Writer, records []logging.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "kind", "originator", "recipient", "delivered", "committed"}); err != nil {
		return err
	}
	for _, r := range records {
		rows := r.Selected
		if len(rows) == 0 {
			// Resets and upsert-only events have no recipients.
			rows = []string{""}
		}
		for _, tok := range rows {
			rec := []string{
				r.Timestamp.Format(time.RFC3339),
				r.Kind,
				r.Originator,
				tok,
				strconv.FormatBool(r.Delivered[tok]),
				strconv.FormatBool(r.Committed[tok]),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
