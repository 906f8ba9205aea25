package parsers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/extract"
)

// mpesaBucket is one fixed transaction-type keyword bucket. Buckets are
// checked in declaration order; the first keyword hit wins.
type mpesaBucket struct {
	name     string
	txnType  domain.TransactionType
	keywords []string
}

var mpesaBuckets = []mpesaBucket{
	{"send", domain.TxnTransfer, []string{"send money", "sent to", "customer transfer"}},
	{"receive", domain.TxnIncome, []string{"receive money", "received from", "funds received"}},
	{"bill_pay", domain.TxnPayment, []string{"pay bill", "paybill", "bill payment"}},
	{"merchant_pay", domain.TxnPayment, []string{"merchant payment", "buy goods", "till"}},
	{"withdraw", domain.TxnWithdrawal, []string{"withdraw", "agent withdrawal"}},
	{"deposit", domain.TxnDeposit, []string{"deposit", "cash in"}},
	{"airtime", domain.TxnExpense, []string{"airtime", "bundles", "safaricom data"}},
	{"loan", domain.TxnPayment, []string{"m-shwari", "fuliza", "kcb m-pesa", "loan repayment", "loan disbursement"}},
}

var (
	// Receipt (10 alphanumeric), optional timestamped date, description,
	// amount, optional running balance. Mobile money amounts often lack
	// decimals.
	mpesaTxnLinePattern = regexp.MustCompile(
		`^(?:([A-Z0-9]{10})\s+)?` +
			`(?:(\d{1,2}/\d{1,2}/\d{2,4})(?:\s+\d{1,2}:\d{2}(?::\d{2})?)?\s+)?` +
			`(.+?)\s+` +
			`(-?[\d,]+(?:\.\d{1,2})?)` +
			`(?:\s+(-?[\d,]+(?:\.\d{1,2})?))?\s*$`)

	mpesaPhonePartyPattern = regexp.MustCompile(`(\+?254\s?7\d{8}|07\d{8})(?:\s+([A-Z][A-Z'. ]+))?`)

	mpesaOwnerPhonePattern = regexp.MustCompile(`(?im)^\s*(?:Mobile|Phone)\s*(?:Number|No\.?)\s*[:：]\s*(\+?\d{10,13})\s*$`)
	mpesaOwnerNamePattern  = regexp.MustCompile(`(?im)^\s*Customer\s*Name\s*[:：]\s*(.+?)\s*$`)
)

// MobileMoneyParser handles M-PESA style mobile money statements.
type MobileMoneyParser struct {
	extractor *extract.Extractor
	log       zerolog.Logger
}

func NewMobileMoneyParser(extractor *extract.Extractor, log zerolog.Logger) *MobileMoneyParser {
	return &MobileMoneyParser{
		extractor: extractor,
		log:       log.With().Str("component", "mpesa_parser").Logger(),
	}
}

func (p *MobileMoneyParser) Name() string { return "mobile_money" }

func (p *MobileMoneyParser) CanHandle(ext string, docType domain.DocumentType) bool {
	if docType != domain.DocTypeMpesaStatement {
		return false
	}
	switch ext {
	case "pdf", "txt", "text", "png", "jpg", "jpeg":
		return true
	}
	return false
}

func (p *MobileMoneyParser) Parse(ctx context.Context, path string, opts Options) domain.ParseResult {
	start := time.Now()

	text, extractConfidence, err := sourceText(ctx, p.extractor, path, domain.DocTypeMpesaStatement, opts)
	if err != nil {
		return failResult(apperrors.Wrap(err, apperrors.CodeMpesaParseError, "extract mobile money statement text"))
	}

	meta := p.parseHeader(text)
	txns := p.parseTransactions(text)
	if len(txns) == 0 {
		return failResult(apperrors.New(apperrors.CodeMpesaParseError,
			"no transaction lines recognized in mobile money statement"))
	}

	withReceipt, withBalance := 0, 0
	for i := range txns {
		if _, ok := txns[i].Extra["receipt"]; ok {
			withReceipt++
		}
		if txns[i].BalanceAfter != nil {
			withBalance++
		}
		if txns[i].Amount.IsNegative() {
			meta.TotalDebits = meta.TotalDebits.Add(txns[i].Amount.Abs())
		} else {
			meta.TotalCredits = meta.TotalCredits.Add(txns[i].Amount)
		}
	}

	meta.DocumentType = domain.DocTypeMpesaStatement
	meta.Source = p.Name()
	meta.Provider = "M-PESA"
	meta.Currency = "KES"
	meta.Confidence = completeness([]completenessCheck{
		{name: "owner_phone", weight: 1, ok: meta.AccountNumber != ""},
		{name: "owner_name", weight: 1, ok: meta.AccountName != ""},
		{name: "period", weight: 1, ok: !meta.PeriodStart.IsZero() && !meta.PeriodEnd.IsZero()},
		{name: "receipts", weight: 1, ok: withReceipt == len(txns)},
		{name: "balances", weight: 2, ok: withBalance == len(txns)},
	}) * extractConfidence
	meta.ProcessingTime = time.Since(start)

	p.log.Info().
		Int("transactions", len(txns)).
		Float64("confidence", meta.Confidence).
		Msg("mobile money statement parsed")

	return domain.ParseResult{Success: true, Transactions: txns, Metadata: meta}
}

func (p *MobileMoneyParser) ValidateDocument(ctx context.Context, path string) bool {
	text, _, err := sourceText(ctx, p.extractor, path, domain.DocTypeMpesaStatement, Options{})
	if err != nil {
		return false
	}
	return len(p.parseTransactions(text)) > 0
}

func (p *MobileMoneyParser) ExtractMetadata(ctx context.Context, path string) (map[string]any, error) {
	text, _, err := sourceText(ctx, p.extractor, path, domain.DocTypeMpesaStatement, Options{})
	if err != nil {
		return nil, err
	}
	return metadataMap(p.parseHeader(text)), nil
}

func (p *MobileMoneyParser) parseHeader(text string) domain.StatementMetadata {
	var meta domain.StatementMetadata
	if m := mpesaOwnerPhonePattern.FindStringSubmatch(text); m != nil {
		meta.AccountNumber = normalizePhone(m[1])
	}
	if m := mpesaOwnerNamePattern.FindStringSubmatch(text); m != nil {
		meta.AccountName = strings.TrimSpace(m[1])
	}
	if m := bankPeriodPattern.FindStringSubmatch(text); m != nil {
		if start, err := ParseStatementDate(m[1]); err == nil {
			meta.PeriodStart = start
		}
		if end, err := ParseStatementDate(m[2]); err == nil {
			meta.PeriodEnd = end
		}
	}
	return meta
}

func (p *MobileMoneyParser) parseTransactions(text string) []domain.NormalizedTransaction {
	var txns []domain.NormalizedTransaction
	lastDate := time.Time{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := mpesaTxnLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		receipt, dateStr, desc, amountStr, balanceStr := m[1], m[2], strings.TrimSpace(m[3]), m[4], m[5]

		bucket, ok := classifyMpesaLine(desc)
		if !ok {
			// Header lines and totals also fit the shape; the keyword
			// buckets are what make a line a transaction.
			continue
		}

		amount, err := ParseAmount(amountStr)
		if err != nil {
			continue
		}

		date := lastDate
		if dateStr != "" {
			if d, err := ParseStatementDate(dateStr); err == nil {
				date = d
				lastDate = d
			}
		}
		if date.IsZero() {
			continue
		}

		txn := domain.NormalizedTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Type:        bucket.txnType,
		}
		if balanceStr != "" {
			if balance, err := ParseAmount(balanceStr); err == nil {
				txn.BalanceAfter = &balance
			}
		}
		if receipt != "" {
			txn.Reference = receipt
			txn.SetExtra("receipt", receipt)
		}
		txn.SetExtra("mpesa_category", bucket.name)

		if pm := mpesaPhonePartyPattern.FindStringSubmatch(desc); pm != nil {
			txn.SetExtra("counterpart_phone", normalizePhone(pm[1]))
			if party := strings.TrimSpace(pm[2]); party != "" {
				txn.SetExtra("counterpart_name", party)
			}
		}

		txns = append(txns, txn)
	}
	return txns
}

// classifyMpesaLine finds the first keyword bucket the description belongs to.
func classifyMpesaLine(desc string) (mpesaBucket, bool) {
	lower := strings.ToLower(desc)
	for _, bucket := range mpesaBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket, true
			}
		}
	}
	return mpesaBucket{}, false
}

// normalizePhone rewrites Kenyan mobile numbers to +254 international form.
func normalizePhone(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "254"):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return "+254" + phone[1:]
	}
	return phone
}
