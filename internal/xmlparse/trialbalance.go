package xmlparse

import (
	"strconv"
	"time"

	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// ParseTrialBalance parses the trial balance response: for each LEDGER
// under the response, extract opening/closing and compute
// net = closing - opening.
func ParseTrialBalance(root *Node, companyName string, startDate, endDate time.Time) []model.TrialBalanceRow {
	var out []model.TrialBalanceRow
	for _, n := range root.FindAll("LEDGER") {
		opening := ToDecimal(n.Text("OPENINGBALANCE"))
		closing := ToDecimal(n.Text("CLOSINGBALANCE"))

		row := model.TrialBalanceRow{
			CompanyName: companyName,
			LedgerName:  CleanText(n.Text("NAME")),
			StartDate:   startDate,
			EndDate:     endDate,
			Opening:     opening,
			Closing:     closing,
			Net:         closing.Sub(opening),
		}
		if alterID := n.Text("ALTERID"); alterID != "" {
			if v, err := strconv.ParseInt(alterID, 10, 64); err == nil {
				row.AlterID = v
			}
		}
		out = append(out, row)
	}
	return out
}
