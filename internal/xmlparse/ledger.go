package xmlparse

import (
	"strconv"
	"strings"

	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// ParseLedgers parses the ledger master list: for each LEDGER element,
// extract the Ledger attributes. Aliases are collected from both a
// direct ALIAS element and nested LANGUAGENAME.LIST / NAME.LIST / NAME
// tuples, de-duplicated against the principal name and capped at three.
// Address lines are flattened in document order, capped at three.
func ParseLedgers(root *Node, companyName string) []model.Ledger {
	var out []model.Ledger
	for _, node := range root.FindAll("LEDGER") {
		out = append(out, parseLedger(&node, companyName))
	}
	return out
}

func parseLedger(n *Node, companyName string) model.Ledger {
	name := n.Text("NAME")
	if name == "" {
		name = n.Attr("NAME")
	}

	l := model.Ledger{
		CompanyName: companyName,
		Name:        CleanText(name),
		ParentGroup: CleanText(n.Text("PARENT")),
		GSTIN:       CleanText(n.Text("PARTYGSTIN")),
		PAN:         CleanText(n.Text("INCOMETAXNUMBER")),
		Email:       CleanText(n.Text("EMAIL")),
		Phone:       CleanText(n.Text("LEDGERPHONE")),
		BankAccount: CleanText(n.Text("BANKACCOUNTHOLDERNAME")),
		BankIFSC:    CleanText(n.Text("IFSCODE")),
		OpeningBal:  ToDecimal(n.Text("OPENINGBALANCE")),
	}

	l.Aliases = dedupAliases(name, collectAliases(n))
	l.AddressLine = collectAddressLines(n)

	l.GUID = n.Text("GUID")
	if alterID := n.Text("ALTERID"); alterID != "" {
		if v, err := strconv.ParseInt(alterID, 10, 64); err == nil {
			l.AlterID = v
		}
	}
	if masterID := n.Text("MASTERID"); masterID != "" {
		if v, err := strconv.ParseInt(masterID, 10, 64); err == nil {
			l.MasterID = v
		}
	}
	l.IsDeleted = strings.EqualFold(n.Attr("ISDELETED"), "Yes") ||
		strings.EqualFold(n.Text("ISDELETED"), "Yes")
	if d := ParseBusinessDate(n.Text("LASTVOUCHERDATE")); d != nil {
		l.LastModified = *d
	}

	return l
}

func collectAliases(n *Node) []string {
	var aliases []string
	if a := CleanText(n.Text("ALIAS")); a != "" {
		aliases = append(aliases, a)
	}
	for _, langNode := range n.Children("LANGUAGENAME.LIST") {
		for _, nameListNode := range langNode.Children("NAME.LIST") {
			for _, nameNode := range nameListNode.Children("NAME") {
				if v := CleanText(nameNode.Content); v != "" {
					aliases = append(aliases, v)
				}
			}
		}
	}
	return aliases
}

// dedupAliases removes the principal name and duplicate entries,
// preserving first-seen order, and keeps at most three aliases.
func dedupAliases(principal string, aliases []string) []string {
	seen := map[string]bool{strings.ToLower(CleanText(principal)): true}
	var out []string
	for _, a := range aliases {
		if len(out) == 3 {
			break
		}
		key := strings.ToLower(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// collectAddressLines flattens ADDRESS.LIST entries in document order,
// capped at three.
func collectAddressLines(n *Node) []string {
	var lines []string
	for _, addrList := range n.Children("ADDRESS.LIST") {
		for _, addrNode := range addrList.Children("ADDRESS") {
			if v := CleanText(addrNode.Content); v != "" {
				lines = append(lines, v)
			}
			if len(lines) == 3 {
				return lines
			}
		}
	}
	if len(lines) > 3 {
		lines = lines[:3]
	}
	return lines
}
