package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

// parseLedgerRows converts a values matrix (as returned by Sheets API) into
// postings. Header rows and rows without a parseable date or amount are
// skipped; the ledger is best-effort readable after manual edits.
func parseLedgerRows(values [][]interface{}) []core.Posting {
	var out []core.Posting
	for _, row := range values {
		cols := toStrings(row)
		date, err := core.ParseDate(safeGet(cols, 0))
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(safeGet(cols, 2), ",", "."))
		if err != nil {
			continue
		}
		p := core.Posting{
			Date:         date,
			Description:  safeGet(cols, 1),
			SignedAmount: amount,
			Kind:         core.Kind(safeGet(cols, 3)),
			Category:     safeGet(cols, 4),
			AccountID:    safeGet(cols, 5),
			RuleID:       safeGet(cols, 6),
		}
		if scheduled, err := core.ParseDate(safeGet(cols, 7)); err == nil {
			p.ScheduledDate = scheduled
		} else {
			p.ScheduledDate = date
		}
		out = append(out, p)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
