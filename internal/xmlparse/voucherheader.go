package xmlparse

import (
	"strconv"
	"strings"
	"time"

	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// voucherHeader holds the fields every row emitted for one voucher must
// share: guid, alter_id, voucher_number, date, and change_status.
type voucherHeader struct {
	GUID          string
	AlterID       int64
	MasterID      int64
	Date          *time.Time
	VoucherNumber string
	ChangeStatus  model.ChangeStatus
	IsDeleted     bool
	PartyName     string
	PartyGSTIN    string
	Narration     string
}

func parseVoucherHeader(v *Node) voucherHeader {
	h := voucherHeader{
		GUID:          v.Text("GUID"),
		Date:          ParseBusinessDate(v.Text("DATE")),
		VoucherNumber: CleanText(v.Text("VOUCHERNUMBER")),
		PartyName:     CleanText(v.Text("PARTYLEDGERNAME")),
		PartyGSTIN:    CleanText(v.Text("PARTYGSTIN")),
		Narration:     CleanText(v.Text("NARRATION")),
	}
	if alterID := v.Text("ALTERID"); alterID != "" {
		if n, err := strconv.ParseInt(alterID, 10, 64); err == nil {
			h.AlterID = n
		}
	}
	if masterID := v.Text("MASTERID"); masterID != "" {
		if n, err := strconv.ParseInt(masterID, 10, 64); err == nil {
			h.MasterID = n
		}
	}

	status := strings.ToLower(v.Text("CHANGESTATUS"))
	switch {
	case strings.Contains(status, "delete"):
		h.ChangeStatus = model.ChangeStatusDeleted
		h.IsDeleted = true
	case strings.Contains(status, "modif"):
		h.ChangeStatus = model.ChangeStatusModified
	default:
		h.ChangeStatus = model.ChangeStatusNew
	}
	if strings.EqualFold(v.Text("ISDELETED"), "Yes") || strings.EqualFold(v.Attr("ISDELETED"), "Yes") {
		h.IsDeleted = true
		h.ChangeStatus = model.ChangeStatusDeleted
	}

	return h
}
