package xmlparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const salesVoucherXML = `<ENVELOPE><VOUCHER>
  <GUID>V1</GUID>
  <ALTERID>10</ALTERID>
  <DATE>20240415</DATE>
  <VOUCHERNUMBER>INV-001</VOUCHERNUMBER>
  <PARTYLEDGERNAME>Acme Buyer</PARTYLEDGERNAME>
  <ALLLEDGERENTRIES.LIST>
    <LEDGERNAME>Acme Buyer</LEDGERNAME>
    <AMOUNT>-944.00</AMOUNT>
  </ALLLEDGERENTRIES.LIST>
  <ALLLEDGERENTRIES.LIST>
    <LEDGERNAME>CGST Output @ 9%</LEDGERNAME>
    <AMOUNT>-72.00</AMOUNT>
  </ALLLEDGERENTRIES.LIST>
  <ALLLEDGERENTRIES.LIST>
    <LEDGERNAME>SGST Output @ 9%</LEDGERNAME>
    <AMOUNT>-72.00</AMOUNT>
  </ALLLEDGERENTRIES.LIST>
  <ALLINVENTORYENTRIES.LIST>
    <STOCKITEMNAME>Widget A</STOCKITEMNAME>
    <RATE>100/Nos</RATE>
    <ACTUALQTY>5 Nos</ACTUALQTY>
    <BILLEDQTY>5 Nos</BILLEDQTY>
    <AMOUNT>500.00</AMOUNT>
  </ALLINVENTORYENTRIES.LIST>
  <ALLINVENTORYENTRIES.LIST>
    <STOCKITEMNAME>Widget B</STOCKITEMNAME>
    <RATE>100/Nos</RATE>
    <ACTUALQTY>3 Nos</ACTUALQTY>
    <BILLEDQTY>3 Nos</BILLEDQTY>
    <AMOUNT>300.00</AMOUNT>
  </ALLINVENTORYENTRIES.LIST>
</VOUCHER></ENVELOPE>`

func TestParseInventoryVouchers_ApportionsTaxByLineWeight(t *testing.T) {
	root, err := ParseDocument(salesVoucherXML)
	require.NoError(t, err)

	rows := ParseInventoryVouchers(root, "Acme Co", "sales", ParseInventoryVoucherOptions{})
	require.Len(t, rows, 2)

	total := rows[0].CGST.Add(rows[1].CGST)
	require.True(t, total.Equal(ToDecimal("72.00")), "apportioned CGST should sum to the bucket total, got %s", total)

	require.True(t, rows[0].Amount.Equal(ToDecimal("500.00")))
	require.True(t, rows[1].Amount.Equal(ToDecimal("300.00")))
	require.Equal(t, rows[0].Total.String(), rows[1].Total.String(), "grand total is repeated on every line")
}

const deletedVoucherXML = `<ENVELOPE><VOUCHER>
  <GUID>V2</GUID>
  <ALTERID>20</ALTERID>
  <ISDELETED>Yes</ISDELETED>
</VOUCHER></ENVELOPE>`

func TestParseInventoryVouchers_StubRowOnDeleted(t *testing.T) {
	root, err := ParseDocument(deletedVoucherXML)
	require.NoError(t, err)

	rows := ParseInventoryVouchers(root, "Acme Co", "sales", ParseInventoryVoucherOptions{})
	require.Len(t, rows, 1)
	require.True(t, rows[0].IsDeleted)
	require.Equal(t, "V2", rows[0].GUID)
}

func TestParseLedgers_DeduplicatesAliases(t *testing.T) {
	xmlDoc := `<ENVELOPE><LEDGER>
	  <NAME>Acme Buyer</NAME>
	  <ALIAS>Acme Buyer</ALIAS>
	  <PARENT>Sundry Debtors</PARENT>
	  <LANGUAGENAME.LIST>
	    <NAME.LIST>
	      <NAME>Acme Buyers Pvt Ltd</NAME>
	    </NAME.LIST>
	  </LANGUAGENAME.LIST>
	  <ADDRESS.LIST><ADDRESS>Line 1</ADDRESS></ADDRESS.LIST>
	  <ADDRESS.LIST><ADDRESS>Line 2</ADDRESS></ADDRESS.LIST>
	</LEDGER></ENVELOPE>`
	root, err := ParseDocument(xmlDoc)
	require.NoError(t, err)

	ledgers := ParseLedgers(root, "Acme Co")
	require.Len(t, ledgers, 1)
	require.Equal(t, "Acme Buyer", ledgers[0].Name)
	require.Equal(t, []string{"Acme Buyers Pvt Ltd"}, ledgers[0].Aliases)
	require.Equal(t, []string{"Line 1", "Line 2"}, ledgers[0].AddressLine)
}
