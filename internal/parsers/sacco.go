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

// LoanDetail is one loan sub-record from a SACCO statement's loan section.
type LoanDetail struct {
	LoanNumber         string           `json:"loan_number"`
	LoanType           string           `json:"loan_type,omitempty"`
	Principal          *decimal.Decimal `json:"principal,omitempty"`
	DisbursementDate   *time.Time       `json:"disbursement_date,omitempty"`
	InterestRate       float64          `json:"interest_rate,omitempty"`
	TermMonths         int              `json:"term_months,omitempty"`
	OutstandingBalance *decimal.Decimal `json:"outstanding_balance,omitempty"`
	Status             string           `json:"status,omitempty"`
}

// Membership is the member metadata block of a SACCO statement.
type Membership struct {
	MemberNumber        string           `json:"member_number"`
	MemberName          string           `json:"member_name,omitempty"`
	JoinDate            *time.Time       `json:"join_date,omitempty"`
	Status              string           `json:"status,omitempty"`
	Branch              string           `json:"branch,omitempty"`
	ShareBalance        *decimal.Decimal `json:"share_balance,omitempty"`
	MonthlyContribution *decimal.Decimal `json:"monthly_contribution,omitempty"`
}

var (
	saccoMemberNumberPattern = regexp.MustCompile(`(?im)^\s*Member\s*(?:Number|No\.?)\s*[:：]\s*(\S+)\s*$`)
	saccoMemberNamePattern   = regexp.MustCompile(`(?im)^\s*Member\s*Name\s*[:：]\s*(.+?)\s*$`)
	saccoJoinDatePattern     = regexp.MustCompile(`(?im)^\s*(?:Join|Membership)\s*Date\s*[:：]\s*(\S+)\s*$`)
	saccoStatusPattern       = regexp.MustCompile(`(?im)^\s*(?:Member\s*)?Status\s*[:：]\s*(\w+)\s*$`)
	saccoBranchPattern       = regexp.MustCompile(`(?im)^\s*Branch\s*[:：]\s*(.+?)\s*$`)
	saccoSharesPattern       = regexp.MustCompile(`(?im)^\s*Share\s*(?:Balance|Capital)\s*[:：]\s*(?:KES|KSh\.?)?\s*([\d,]+(?:\.\d{1,2})?)\s*$`)
	saccoContributionPattern = regexp.MustCompile(`(?im)^\s*Monthly\s*Contribution\s*[:：]\s*(?:KES|KSh\.?)?\s*([\d,]+(?:\.\d{1,2})?)\s*$`)

	saccoLoanNumberPattern   = regexp.MustCompile(`(?im)^\s*Loan\s*(?:Number|No\.?)\s*[:：]\s*(\S+)\s*$`)
	saccoLoanTypePattern     = regexp.MustCompile(`(?im)^\s*Loan\s*Type\s*[:：]\s*(.+?)\s*$`)
	saccoPrincipalPattern    = regexp.MustCompile(`(?im)^\s*Principal\s*(?:Amount)?\s*[:：]\s*(?:KES|KSh\.?)?\s*([\d,]+(?:\.\d{1,2})?)\s*$`)
	saccoDisbursedPattern    = regexp.MustCompile(`(?im)^\s*Disburse(?:ment|d)\s*Date\s*[:：]\s*(\S+)\s*$`)
	saccoRatePattern         = regexp.MustCompile(`(?im)^\s*Interest\s*Rate\s*[:：]\s*([\d.]+)\s*%?\s*$`)
	saccoTermPattern         = regexp.MustCompile(`(?im)^\s*(?:Loan\s*)?Term\s*[:：]\s*(\d+)\s*(?:months?)?\s*$`)
	saccoOutstandingPattern  = regexp.MustCompile(`(?im)^\s*Outstanding\s*(?:Balance)?\s*[:：]\s*(?:KES|KSh\.?)?\s*([\d,]+(?:\.\d{1,2})?)\s*$`)
	saccoLoanStatusPattern   = regexp.MustCompile(`(?im)^\s*Loan\s*Status\s*[:：]\s*(\w+)\s*$`)
	saccoLoanSectionPattern  = regexp.MustCompile(`(?im)^\s*LOAN\s*(?:DETAILS|ACCOUNTS?)\s*$`)
)

// SaccoParser handles cooperative savings society statements.
type SaccoParser struct {
	extractor *extract.Extractor
	log       zerolog.Logger
}

func NewSaccoParser(extractor *extract.Extractor, log zerolog.Logger) *SaccoParser {
	return &SaccoParser{
		extractor: extractor,
		log:       log.With().Str("component", "sacco_parser").Logger(),
	}
}

func (p *SaccoParser) Name() string { return "sacco" }

func (p *SaccoParser) CanHandle(ext string, docType domain.DocumentType) bool {
	if docType != domain.DocTypeSaccoStatement {
		return false
	}
	switch ext {
	case "pdf", "txt", "text", "png", "jpg", "jpeg":
		return true
	}
	return false
}

func (p *SaccoParser) Parse(ctx context.Context, path string, opts Options) domain.ParseResult {
	start := time.Now()

	text, extractConfidence, err := sourceText(ctx, p.extractor, path, domain.DocTypeSaccoStatement, opts)
	if err != nil {
		return failResult(apperrors.Wrap(err, apperrors.CodeSaccoParseError, "extract sacco statement text"))
	}

	membership := p.parseMembership(text)
	loans := p.parseLoans(text)
	txns := p.parseTransactions(text)
	if len(txns) == 0 && membership.MemberNumber == "" {
		return failResult(apperrors.New(apperrors.CodeSaccoParseError,
			"neither transactions nor membership section recognized"))
	}

	var meta domain.StatementMetadata
	meta.DocumentType = domain.DocTypeSaccoStatement
	meta.Source = p.Name()
	meta.AccountNumber = membership.MemberNumber
	meta.AccountName = membership.MemberName
	meta.Currency = "KES"
	meta.Extra = map[string]any{"membership": membership}
	if len(loans) > 0 {
		meta.Extra["loans"] = loans
	}
	if m := bankPeriodPattern.FindStringSubmatch(text); m != nil {
		if startDate, err := ParseStatementDate(m[1]); err == nil {
			meta.PeriodStart = startDate
		}
		if endDate, err := ParseStatementDate(m[2]); err == nil {
			meta.PeriodEnd = endDate
		}
	}

	for i := range txns {
		if txns[i].Amount.IsNegative() {
			meta.TotalDebits = meta.TotalDebits.Add(txns[i].Amount.Abs())
		} else {
			meta.TotalCredits = meta.TotalCredits.Add(txns[i].Amount)
		}
	}

	meta.Confidence = completeness([]completenessCheck{
		{name: "member_number", weight: 1, ok: membership.MemberNumber != ""},
		{name: "member_name", weight: 1, ok: membership.MemberName != ""},
		{name: "join_date", weight: 1, ok: membership.JoinDate != nil},
		{name: "share_balance", weight: 1, ok: membership.ShareBalance != nil},
		{name: "monthly_contribution", weight: 1, ok: membership.MonthlyContribution != nil},
		{name: "transactions", weight: 2, ok: len(txns) > 0},
	}) * extractConfidence
	meta.ProcessingTime = time.Since(start)

	p.log.Info().
		Int("transactions", len(txns)).
		Int("loans", len(loans)).
		Float64("confidence", meta.Confidence).
		Msg("sacco statement parsed")

	return domain.ParseResult{Success: true, Transactions: txns, Metadata: meta}
}

func (p *SaccoParser) ValidateDocument(ctx context.Context, path string) bool {
	text, _, err := sourceText(ctx, p.extractor, path, domain.DocTypeSaccoStatement, Options{})
	if err != nil {
		return false
	}
	return saccoMemberNumberPattern.MatchString(text) || len(p.parseTransactions(text)) > 0
}

func (p *SaccoParser) ExtractMetadata(ctx context.Context, path string) (map[string]any, error) {
	text, _, err := sourceText(ctx, p.extractor, path, domain.DocTypeSaccoStatement, Options{})
	if err != nil {
		return nil, err
	}
	membership := p.parseMembership(text)
	m := map[string]any{"membership": membership}
	if loans := p.parseLoans(text); len(loans) > 0 {
		m["loans"] = loans
	}
	return m, nil
}

func (p *SaccoParser) parseMembership(text string) Membership {
	var mem Membership
	if m := saccoMemberNumberPattern.FindStringSubmatch(text); m != nil {
		mem.MemberNumber = m[1]
	}
	if m := saccoMemberNamePattern.FindStringSubmatch(text); m != nil {
		mem.MemberName = strings.TrimSpace(m[1])
	}
	if m := saccoJoinDatePattern.FindStringSubmatch(text); m != nil {
		if d, err := ParseStatementDate(m[1]); err == nil {
			mem.JoinDate = &d
		}
	}
	if m := saccoStatusPattern.FindStringSubmatch(text); m != nil {
		mem.Status = strings.ToUpper(m[1])
	}
	if m := saccoBranchPattern.FindStringSubmatch(text); m != nil {
		mem.Branch = strings.TrimSpace(m[1])
	}
	if m := saccoSharesPattern.FindStringSubmatch(text); m != nil {
		if d, err := ParseAmount(m[1]); err == nil {
			mem.ShareBalance = &d
		}
	}
	if m := saccoContributionPattern.FindStringSubmatch(text); m != nil {
		if d, err := ParseAmount(m[1]); err == nil {
			mem.MonthlyContribution = &d
		}
	}
	return mem
}

// parseLoans splits the loan section on "Loan Number:" labels; each label
// starts a new sub-record and the following labeled lines fill it until the
// next loan begins.
func (p *SaccoParser) parseLoans(text string) []LoanDetail {
	section := text
	if loc := saccoLoanSectionPattern.FindStringIndex(text); loc != nil {
		section = text[loc[1]:]
	} else if !saccoLoanNumberPattern.MatchString(text) {
		return nil
	}

	var loans []LoanDetail
	var current *LoanDetail

	for _, line := range strings.Split(section, "\n") {
		if m := saccoLoanNumberPattern.FindStringSubmatch(line); m != nil {
			loans = append(loans, LoanDetail{LoanNumber: m[1]})
			current = &loans[len(loans)-1]
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case saccoLoanTypePattern.MatchString(line):
			current.LoanType = strings.TrimSpace(saccoLoanTypePattern.FindStringSubmatch(line)[1])
		case saccoPrincipalPattern.MatchString(line):
			if d, err := ParseAmount(saccoPrincipalPattern.FindStringSubmatch(line)[1]); err == nil {
				current.Principal = &d
			}
		case saccoDisbursedPattern.MatchString(line):
			if d, err := ParseStatementDate(saccoDisbursedPattern.FindStringSubmatch(line)[1]); err == nil {
				current.DisbursementDate = &d
			}
		case saccoRatePattern.MatchString(line):
			if f, err := decimal.NewFromString(saccoRatePattern.FindStringSubmatch(line)[1]); err == nil {
				current.InterestRate, _ = f.Float64()
			}
		case saccoTermPattern.MatchString(line):
			if d, err := decimal.NewFromString(saccoTermPattern.FindStringSubmatch(line)[1]); err == nil {
				current.TermMonths = int(d.IntPart())
			}
		case saccoOutstandingPattern.MatchString(line):
			if d, err := ParseAmount(saccoOutstandingPattern.FindStringSubmatch(line)[1]); err == nil {
				current.OutstandingBalance = &d
			}
		case saccoLoanStatusPattern.MatchString(line):
			current.Status = strings.ToUpper(saccoLoanStatusPattern.FindStringSubmatch(line)[1])
		}
	}
	return loans
}

// parseTransactions reuses the bank line shape and adds share and interest
// sub-fields when the description carries them.
func (p *SaccoParser) parseTransactions(text string) []domain.NormalizedTransaction {
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
			Type:        inferSaccoType(m[2], amount),
		}
		if m[4] != "" {
			if balance, err := ParseAmount(m[4]); err == nil {
				txn.BalanceAfter = &balance
			}
		}

		upper := strings.ToUpper(txn.Description)
		if strings.Contains(upper, "SHARE") {
			txn.SetExtra("shares", true)
		}
		if strings.Contains(upper, "INTEREST") || strings.Contains(upper, "DIVIDEND") {
			txn.SetExtra("interest", true)
		}

		txns = append(txns, txn)
	}
	return txns
}

func inferSaccoType(desc string, amount decimal.Decimal) domain.TransactionType {
	upper := strings.ToUpper(desc)
	switch {
	case strings.Contains(upper, "CONTRIBUTION"), strings.Contains(upper, "DEPOSIT"):
		return domain.TxnDeposit
	case strings.Contains(upper, "LOAN REPAYMENT"):
		return domain.TxnPayment
	case strings.Contains(upper, "WITHDRAW"):
		return domain.TxnWithdrawal
	case strings.Contains(upper, "DIVIDEND"), strings.Contains(upper, "INTEREST"):
		return domain.TxnIncome
	}
	if amount.IsNegative() {
		return domain.TxnExpense
	}
	return domain.TxnIncome
}
