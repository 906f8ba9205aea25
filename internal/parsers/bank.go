package parsers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/extract"
)

// knownBanks recognizes the provider from the statement header.
var knownBanks = []string{
	"EQUITY BANK", "KCB", "CO-OPERATIVE BANK", "ABSA", "NCBA", "STANBIC",
	"DIAMOND TRUST BANK", "FAMILY BANK", "STANDARD CHARTERED", "I&M BANK",
	"NATIONAL BANK", "SIDIAN BANK", "GULF AFRICAN BANK",
}

var (
	bankAccountNumberPattern = regexp.MustCompile(`(?im)^\s*Account\s*(?:Number|No\.?)\s*[:：]\s*([\d-]{6,20})\s*$`)
	bankAccountNamePattern   = regexp.MustCompile(`(?im)^\s*Account\s*(?:Name|Holder)\s*[:：]\s*(.+?)\s*$`)
	bankPeriodPattern        = regexp.MustCompile(`(?im)^\s*(?:Statement\s*)?Period\s*[:：]\s*(\S+)\s+(?:to|-|through)\s+(\S+)\s*$`)
	bankOpeningPattern       = regexp.MustCompile(`(?i)Opening\s*Balance\s*[:：]?\s*(?:KES|KSh\.?)?\s*(\(?-?[\d,]+(?:\.\d{1,2})?\)?)`)
	bankClosingPattern       = regexp.MustCompile(`(?i)Closing\s*Balance\s*[:：]?\s*(?:KES|KSh\.?)?\s*(\(?-?[\d,]+(?:\.\d{1,2})?\)?)`)

	// One transaction per line: date, description, amount, optional balance.
	bankTxnLinePattern = regexp.MustCompile(
		`^(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}\s+[A-Za-z]{3,9}\s+\d{2,4})\s+` +
			`(.+?)\s+` +
			`(\(?-?[\d,]+(?:\.\d{1,2})?\)?)` +
			`(?:\s+(\(?-?[\d,]+(?:\.\d{1,2})?\)?))?\s*$`)
)

// BankParser handles conventional bank statements in text, PDF or image form.
type BankParser struct {
	extractor *extract.Extractor
	log       zerolog.Logger
}

func NewBankParser(extractor *extract.Extractor, log zerolog.Logger) *BankParser {
	return &BankParser{
		extractor: extractor,
		log:       log.With().Str("component", "bank_parser").Logger(),
	}
}

func (p *BankParser) Name() string { return "bank" }

func (p *BankParser) CanHandle(ext string, docType domain.DocumentType) bool {
	if docType != domain.DocTypeBankStatement {
		return false
	}
	switch ext {
	case "pdf", "txt", "text", "png", "jpg", "jpeg", "tif", "tiff", "bmp":
		return true
	}
	return false
}

func (p *BankParser) Parse(ctx context.Context, path string, opts Options) domain.ParseResult {
	start := time.Now()

	text, extractConfidence, err := sourceText(ctx, p.extractor, path, domain.DocTypeBankStatement, opts)
	if err != nil {
		return failResult(apperrors.Wrap(err, apperrors.CodePDFParseError, "extract bank statement text"))
	}

	meta := p.parseHeader(text)
	txns := p.parseTransactions(text)
	if len(txns) == 0 {
		return failResult(apperrors.New(apperrors.CodePDFParseError,
			"no transaction lines recognized in bank statement"))
	}

	totalTxnsWithBalance := 0
	for i := range txns {
		if txns[i].BalanceAfter != nil {
			totalTxnsWithBalance++
		}
		if txns[i].Amount.IsNegative() {
			meta.TotalDebits = meta.TotalDebits.Add(txns[i].Amount.Abs())
		} else {
			meta.TotalCredits = meta.TotalCredits.Add(txns[i].Amount)
		}
	}

	meta.DocumentType = domain.DocTypeBankStatement
	meta.Source = p.Name()
	meta.Currency = "KES"
	meta.Confidence = completeness([]completenessCheck{
		{name: "account_number", weight: 1, ok: meta.AccountNumber != ""},
		{name: "account_name", weight: 1, ok: meta.AccountName != ""},
		{name: "provider", weight: 1, ok: meta.Provider != ""},
		{name: "period", weight: 1, ok: !meta.PeriodStart.IsZero() && !meta.PeriodEnd.IsZero()},
		{name: "opening_balance", weight: 1, ok: meta.OpeningBalance != nil},
		{name: "closing_balance", weight: 1, ok: meta.ClosingBalance != nil},
		{name: "transactions_with_balance", weight: 2,
			ok: totalTxnsWithBalance == len(txns)},
	}) * extractConfidence
	meta.ProcessingTime = time.Since(start)

	p.log.Info().
		Int("transactions", len(txns)).
		Float64("confidence", meta.Confidence).
		Str("provider", meta.Provider).
		Msg("bank statement parsed")

	return domain.ParseResult{Success: true, Transactions: txns, Metadata: meta}
}

func (p *BankParser) ValidateDocument(ctx context.Context, path string) bool {
	text, _, err := sourceText(ctx, p.extractor, path, domain.DocTypeBankStatement, Options{})
	if err != nil {
		return false
	}
	return len(p.parseTransactions(text)) > 0 || p.parseHeader(text).AccountNumber != ""
}

func (p *BankParser) ExtractMetadata(ctx context.Context, path string) (map[string]any, error) {
	text, _, err := sourceText(ctx, p.extractor, path, domain.DocTypeBankStatement, Options{})
	if err != nil {
		return nil, err
	}
	meta := p.parseHeader(text)
	return metadataMap(meta), nil
}

func (p *BankParser) parseHeader(text string) domain.StatementMetadata {
	var meta domain.StatementMetadata

	if m := bankAccountNumberPattern.FindStringSubmatch(text); m != nil {
		meta.AccountNumber = m[1]
	}
	if m := bankAccountNamePattern.FindStringSubmatch(text); m != nil {
		meta.AccountName = strings.TrimSpace(m[1])
	}

	upper := strings.ToUpper(text)
	for _, bank := range knownBanks {
		if strings.Contains(upper, bank) {
			meta.Provider = bank
			break
		}
	}

	if m := bankPeriodPattern.FindStringSubmatch(text); m != nil {
		if start, err := ParseStatementDate(m[1]); err == nil {
			meta.PeriodStart = start
		}
		if end, err := ParseStatementDate(m[2]); err == nil {
			meta.PeriodEnd = end
		}
		// Invariant: start never exceeds end.
		if !meta.PeriodStart.IsZero() && !meta.PeriodEnd.IsZero() && meta.PeriodStart.After(meta.PeriodEnd) {
			meta.PeriodStart, meta.PeriodEnd = time.Time{}, time.Time{}
		}
	}

	if m := bankOpeningPattern.FindStringSubmatch(text); m != nil {
		if d, err := ParseAmount(m[1]); err == nil {
			meta.OpeningBalance = &d
		}
	}
	if m := bankClosingPattern.FindStringSubmatch(text); m != nil {
		if d, err := ParseAmount(m[1]); err == nil {
			meta.ClosingBalance = &d
		}
	}
	return meta
}

func (p *BankParser) parseTransactions(text string) []domain.NormalizedTransaction {
	var txns []domain.NormalizedTransaction

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := bankTxnLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := ParseStatementDate(m[1])
		if err != nil {
			continue
		}
		amount, err := ParseAmount(m[3])
		if err != nil {
			continue
		}

		txn := domain.NormalizedTransaction{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			Amount:      amount,
			Type:        inferBankType(amount),
		}
		if m[4] != "" {
			if balance, err := ParseAmount(m[4]); err == nil {
				txn.BalanceAfter = &balance
			}
		}
		txns = append(txns, txn)
	}
	return txns
}

func inferBankType(amount decimal.Decimal) domain.TransactionType {
	if amount.IsNegative() {
		return domain.TxnExpense
	}
	return domain.TxnIncome
}
