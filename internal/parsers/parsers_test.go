package parsers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/extract"
	"github.com/jumuia/creditlens/internal/logger"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testExtractor() *extract.Extractor {
	return extract.New(logger.NewWithWriter(os.Stderr))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"45,000.00", "45000", false},
		{"-1,000", "-1000", false},
		{"(1,200.50)", "-1200.5", false},
		{"KSh 1,000", "1000", false},
		{"KES 250.75", "250.75", false},
		{"9,000", "9000", false},
		{"", "", true},
		{"N/A", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) = %s, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseStatementDate_DayFirst(t *testing.T) {
	// Kenyan statements are day-first: 05/01/2023 is the 5th of January.
	d, err := ParseStatementDate("05/01/2023")
	if err != nil {
		t.Fatalf("ParseStatementDate() error: %v", err)
	}
	if d.Format("2006-01-02") != "2023-01-05" {
		t.Errorf("got %s, want 2023-01-05", d.Format("2006-01-02"))
	}

	if _, err := ParseStatementDate("2023-01-05"); err != nil {
		t.Errorf("ISO date should parse: %v", err)
	}
	if _, err := ParseStatementDate("15 Jan 2024"); err != nil {
		t.Errorf("named month date should parse: %v", err)
	}
	if _, err := ParseStatementDate("not a date"); err == nil {
		t.Error("garbage should not parse")
	}
}

const bankStatementFixture = `EQUITY BANK KENYA
Account Number: 0123456789
Account Name: JOHN KAMAU
Statement Period: 01/01/2023 to 31/01/2023
Opening Balance: KSh 50,000.00
Closing Balance: KSh 94,000.00

05/01/2023 SALARY PAYMENT 45,000.00 95,000.00
10/01/2023 ATM WITHDRAWAL AGENT -1,000.00 94,000.00
`

func TestBankParser_Parse(t *testing.T) {
	path := writeTempFile(t, "bank.txt", bankStatementFixture)
	p := NewBankParser(testExtractor(), logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if !result.Success {
		t.Fatalf("Parse() failed: %v", result.Err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(result.Transactions))
	}

	salary := result.Transactions[0]
	if salary.Date.Format("2006-01-02") != "2023-01-05" {
		t.Errorf("date = %s, want 2023-01-05", salary.Date.Format("2006-01-02"))
	}
	if salary.Description != "SALARY PAYMENT" {
		t.Errorf("description = %q", salary.Description)
	}
	if salary.Amount.String() != "45000" {
		t.Errorf("amount = %s, want 45000 (commas stripped)", salary.Amount)
	}
	if salary.BalanceAfter == nil || salary.BalanceAfter.String() != "95000" {
		t.Errorf("balance_after = %v, want 95000", salary.BalanceAfter)
	}
	if salary.Type != domain.TxnIncome {
		t.Errorf("type = %s, want INCOME", salary.Type)
	}

	meta := result.Metadata
	if meta.Provider != "EQUITY BANK" {
		t.Errorf("provider = %q", meta.Provider)
	}
	if meta.AccountNumber != "0123456789" {
		t.Errorf("account number = %q", meta.AccountNumber)
	}
	if meta.OpeningBalance == nil || meta.OpeningBalance.String() != "50000" {
		t.Errorf("opening balance = %v", meta.OpeningBalance)
	}
	if meta.PeriodStart.After(meta.PeriodEnd) {
		t.Error("period start must not exceed period end")
	}
	if meta.Confidence <= 0 || meta.Confidence > 1 {
		t.Errorf("confidence = %v, want (0,1]", meta.Confidence)
	}
	if meta.TotalCredits.String() != "45000" || meta.TotalDebits.String() != "1000" {
		t.Errorf("totals = %s credit / %s debit", meta.TotalCredits, meta.TotalDebits)
	}
}

func TestBankParser_NoTransactions(t *testing.T) {
	path := writeTempFile(t, "empty.txt", "just some text\nwith no statement lines\n")
	p := NewBankParser(testExtractor(), logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if result.Success {
		t.Fatal("Parse() should fail when no transaction lines match")
	}
	if result.Err == nil {
		t.Fatal("failed result must carry a structured error")
	}
}

const mpesaStatementFixture = `M-PESA STATEMENT
Customer Name: JOHN KAMAU
Mobile Number: 0712345678
Period: 01/01/2023 to 31/01/2023

QGH7X8K2LM 10/01/2023 Send Money to +254723456789 JANE DOE -1,000 9,000
QGH7X8K2LN 12/01/2023 Pay Bill KPLC PREPAID -2,500 6,500
QGH7X8K2LP 15/01/2023 Funds received from 0722000111 PETER N 5,000 11,500
`

func TestMobileMoneyParser_Parse(t *testing.T) {
	path := writeTempFile(t, "mpesa.txt", mpesaStatementFixture)
	p := NewMobileMoneyParser(testExtractor(), logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if !result.Success {
		t.Fatalf("Parse() failed: %v", result.Err)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(result.Transactions))
	}

	send := result.Transactions[0]
	if send.Amount.String() != "-1000" {
		t.Errorf("amount = %s, want -1000", send.Amount)
	}
	if send.Type != domain.TxnTransfer {
		t.Errorf("type = %s, want TRANSFER", send.Type)
	}
	if send.Extra["mpesa_category"] != "send" {
		t.Errorf("mpesa_category = %v, want send", send.Extra["mpesa_category"])
	}
	if send.Extra["counterpart_phone"] != "+254723456789" {
		t.Errorf("counterpart_phone = %v, want +254723456789", send.Extra["counterpart_phone"])
	}
	if send.Extra["counterpart_name"] != "JANE DOE" {
		t.Errorf("counterpart_name = %v, want JANE DOE", send.Extra["counterpart_name"])
	}
	if send.Reference != "QGH7X8K2LM" {
		t.Errorf("reference = %q, want receipt code", send.Reference)
	}

	if result.Transactions[1].Type != domain.TxnPayment {
		t.Errorf("bill pay type = %s, want PAYMENT", result.Transactions[1].Type)
	}
	if result.Transactions[2].Type != domain.TxnIncome {
		t.Errorf("receive type = %s, want INCOME", result.Transactions[2].Type)
	}

	if result.Metadata.AccountNumber != "+254712345678" {
		t.Errorf("owner phone = %q, want normalized +254712345678", result.Metadata.AccountNumber)
	}
}

const saccoStatementFixture = `UNAITAS SACCO
Member Number: MBR-4471
Member Name: MARY WANJIKU
Join Date: 15/03/2019
Status: ACTIVE
Branch: Nakuru
Share Balance: KSh 120,000.00
Monthly Contribution: KSh 3,000.00
Period: 01/01/2023 to 31/01/2023

LOAN DETAILS
Loan Number: LN-2022-031
Loan Type: Development
Principal: KSh 200,000.00
Interest Rate: 12.5%
Term: 36 months
Outstanding Balance: KSh 140,000.00
Loan Status: ACTIVE

05/01/2023 MONTHLY CONTRIBUTION 3,000.00 123,000.00
20/01/2023 LOAN REPAYMENT -6,500.00 116,500.00
31/01/2023 INTEREST ON SHARES 850.00 117,350.00
`

func TestSaccoParser_Parse(t *testing.T) {
	path := writeTempFile(t, "sacco.txt", saccoStatementFixture)
	p := NewSaccoParser(testExtractor(), logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if !result.Success {
		t.Fatalf("Parse() failed: %v", result.Err)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(result.Transactions))
	}

	membership, ok := result.Metadata.Extra["membership"].(Membership)
	if !ok {
		t.Fatal("metadata should carry the membership block")
	}
	if membership.MemberNumber != "MBR-4471" {
		t.Errorf("member number = %q", membership.MemberNumber)
	}
	if membership.ShareBalance == nil || membership.ShareBalance.String() != "120000" {
		t.Errorf("share balance = %v", membership.ShareBalance)
	}
	if membership.MonthlyContribution == nil || membership.MonthlyContribution.String() != "3000" {
		t.Errorf("monthly contribution = %v", membership.MonthlyContribution)
	}

	loans, ok := result.Metadata.Extra["loans"].([]LoanDetail)
	if !ok || len(loans) != 1 {
		t.Fatalf("loans = %v, want one loan sub-record", result.Metadata.Extra["loans"])
	}
	loan := loans[0]
	if loan.LoanNumber != "LN-2022-031" || loan.TermMonths != 36 {
		t.Errorf("loan = %+v", loan)
	}
	if loan.OutstandingBalance == nil || loan.OutstandingBalance.String() != "140000" {
		t.Errorf("outstanding = %v", loan.OutstandingBalance)
	}

	interest := result.Transactions[2]
	if interest.Extra["interest"] != true || interest.Extra["shares"] != true {
		t.Errorf("interest-on-shares extras = %v", interest.Extra)
	}
	if result.Transactions[1].Type != domain.TxnPayment {
		t.Errorf("loan repayment type = %s, want PAYMENT", result.Transactions[1].Type)
	}
}

const equityCSVFixture = `Transaction Date,Narrative,Money Out,Money In,Running Balance,Reference No
05/01/2023,SALARY PAYMENT,,45000.00,95000.00,REF001
10/01/2023,POWER TOKEN,2500.00,,92500.00,REF002
,MISSING DATE ROW,100.00,,,REF003
15/01/2023,RENT PAYMENT,15000.00,,77500.00,REF004
`

func TestTabularParser_Parse(t *testing.T) {
	path := writeTempFile(t, "export.csv", equityCSVFixture)
	p := NewTabularParser(logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if !result.Success {
		t.Fatalf("Parse() failed: %v", result.Err)
	}
	// The dateless row is dropped silently.
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(result.Transactions))
	}
	if result.Metadata.Provider != "EQUITY BANK" {
		t.Errorf("institution = %q, want EQUITY BANK", result.Metadata.Provider)
	}

	if result.Transactions[0].Amount.String() != "45000" {
		t.Errorf("credit amount = %s, want 45000", result.Transactions[0].Amount)
	}
	if result.Transactions[1].Amount.String() != "-2500" {
		t.Errorf("debit amount = %s, want -2500 (signed)", result.Transactions[1].Amount)
	}
	if result.Transactions[0].Reference != "REF001" {
		t.Errorf("reference = %q", result.Transactions[0].Reference)
	}
	if result.Metadata.Source != "tabular" {
		t.Errorf("source = %q, want tabular", result.Metadata.Source)
	}
}

func TestTabularParser_AccountColumn(t *testing.T) {
	const fixture = `Account Number,Transaction Date,Narrative,Money Out,Money In,Running Balance
0123456789,05/01/2023,SALARY PAYMENT,,45000.00,95000.00
0123456789,10/01/2023,POWER TOKEN,2500.00,,92500.00
`
	path := writeTempFile(t, "with-account.csv", fixture)
	p := NewTabularParser(logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if !result.Success {
		t.Fatalf("Parse() failed: %v", result.Err)
	}
	if result.Metadata.AccountNumber != "0123456789" {
		t.Errorf("account number = %q, want 0123456789", result.Metadata.AccountNumber)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(result.Transactions))
	}
}

func TestTabularParser_UnknownLayout(t *testing.T) {
	path := writeTempFile(t, "other.csv", "foo,bar,baz\n1,2,3\n")
	p := NewTabularParser(logger.NewWithWriter(os.Stderr))

	result := p.Parse(context.Background(), path, Options{})
	if result.Success {
		t.Fatal("Parse() should fail for an unknown header layout")
	}
}

func TestRegistry_ForDocument(t *testing.T) {
	log := logger.NewWithWriter(os.Stderr)
	ex := testExtractor()
	reg := NewRegistry(
		NewTabularParser(log),
		NewMobileMoneyParser(ex, log),
		NewSaccoParser(ex, log),
		NewBankParser(ex, log),
	)

	tests := []struct {
		path    string
		docType domain.DocumentType
		want    string
	}{
		{"export.csv", domain.DocTypeBankStatement, "tabular"},
		{"statement.pdf", domain.DocTypeBankStatement, "bank"},
		{"statement.pdf", domain.DocTypeMpesaStatement, "mobile_money"},
		{"statement.txt", domain.DocTypeSaccoStatement, "sacco"},
	}
	for _, tt := range tests {
		p, ok := reg.ForDocument(tt.path, tt.docType)
		if !ok {
			t.Errorf("ForDocument(%s, %s) found no parser", tt.path, tt.docType)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("ForDocument(%s, %s) = %s, want %s", tt.path, tt.docType, p.Name(), tt.want)
		}
	}

	if _, ok := reg.ForDocument("statement.docx", domain.DocTypeBankStatement); ok {
		t.Error("unsupported extension should find no parser")
	}
}
