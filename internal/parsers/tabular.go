package parsers

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
)

// csvLayout maps one institution's export columns onto the canonical fields.
// Aliases are compared lowercase with surrounding whitespace trimmed.
type csvLayout struct {
	Institution string
	Aliases     map[string][]string // canonical field -> header synonyms
}

// Canonical fields a layout can bind. A usable layout needs date,
// description, and either amount or the debit/credit pair.
const (
	colDate        = "date"
	colDescription = "description"
	colAmount      = "amount"
	colDebit       = "debit"
	colCredit      = "credit"
	colBalance     = "balance"
	colReference   = "reference"
	colAccount     = "account"
)

var csvLayouts = []csvLayout{
	{
		Institution: "EQUITY BANK",
		Aliases: map[string][]string{
			colDate:        {"transaction date", "txn date"},
			colDescription: {"narrative", "transaction details"},
			colDebit:       {"debit", "money out"},
			colCredit:      {"credit", "money in"},
			colBalance:     {"running balance"},
			colReference:   {"reference no", "ref no"},
			colAccount:     {"account number", "account no"},
		},
	},
	{
		Institution: "KCB",
		Aliases: map[string][]string{
			colDate:        {"value date", "date"},
			colDescription: {"particulars", "details"},
			colDebit:       {"withdrawal", "debit amount"},
			colCredit:      {"deposit", "credit amount"},
			colBalance:     {"balance", "available balance"},
			colReference:   {"transaction id"},
			colAccount:     {"account number", "account"},
		},
	},
	{
		Institution: "M-PESA",
		Aliases: map[string][]string{
			colDate:        {"completion time", "date"},
			colDescription: {"details", "description"},
			colAmount:      {"amount", "transaction amount"},
			colBalance:     {"balance"},
			colReference:   {"receipt no", "receipt no."},
			colAccount:     {"mobile number", "msisdn", "phone number"},
		},
	},
	{
		Institution: "GENERIC",
		Aliases: map[string][]string{
			colDate:        {"date", "transaction date"},
			colDescription: {"description", "details", "narrative"},
			colAmount:      {"amount"},
			colDebit:       {"debit"},
			colCredit:      {"credit"},
			colBalance:     {"balance"},
			colReference:   {"reference"},
			colAccount:     {"account number", "account", "mobile number"},
		},
	},
}

// TabularParser handles CSV exports from banks and mobile money portals.
type TabularParser struct {
	log zerolog.Logger
}

func NewTabularParser(log zerolog.Logger) *TabularParser {
	return &TabularParser{log: log.With().Str("component", "tabular_parser").Logger()}
}

func (p *TabularParser) Name() string { return "tabular" }

func (p *TabularParser) CanHandle(ext string, docType domain.DocumentType) bool {
	return ext == "csv" && domain.ValidDocumentType(docType)
}

func (p *TabularParser) Parse(ctx context.Context, path string, opts Options) domain.ParseResult {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return failResult(apperrors.Classify(err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // real exports pad unevenly

	header, err := reader.Read()
	if err != nil {
		return failResult(apperrors.Wrap(err, apperrors.CodeCSVParseError, "read header row"))
	}

	layout, columns, ok := detectLayout(header)
	if !ok {
		return failResult(apperrors.New(apperrors.CodeCSVParseError,
			"header row matches no known institution layout"))
	}

	var txns []domain.NormalizedTransaction
	dropped := 0
	account := ""
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}
		// Account identity repeats per row when the export carries it at all.
		if account == "" {
			if idx, ok := columns[colAccount]; ok && idx < len(row) {
				account = strings.TrimSpace(row[idx])
			}
		}
		txn, ok := mapRow(row, columns)
		if !ok {
			// Rows missing date, description or amount are dropped silently.
			dropped++
			continue
		}
		txns = append(txns, txn)
	}

	if len(txns) == 0 {
		return failResult(apperrors.New(apperrors.CodeCSVParseError,
			"no parseable rows (%d dropped)", dropped))
	}

	var meta domain.StatementMetadata
	meta.Source = p.Name()
	meta.Provider = layout.Institution
	meta.AccountNumber = account
	meta.Currency = "KES"
	meta.ProcessingTime = time.Since(start)
	for i := range txns {
		if txns[i].Amount.IsNegative() {
			meta.TotalDebits = meta.TotalDebits.Add(txns[i].Amount.Abs())
		} else {
			meta.TotalCredits = meta.TotalCredits.Add(txns[i].Amount)
		}
	}
	total := len(txns) + dropped
	meta.Confidence = completeness([]completenessCheck{
		{name: "institution", weight: 1, ok: layout.Institution != "GENERIC"},
		{name: "account_column", weight: 1, ok: account != ""},
		{name: "balance_column", weight: 1, ok: hasColumn(columns, colBalance)},
		{name: "reference_column", weight: 1, ok: hasColumn(columns, colReference)},
		{name: "row_yield", weight: 2, ok: dropped*10 <= total}, // >= 90% of rows usable
	})

	p.log.Info().
		Str("institution", layout.Institution).
		Int("transactions", len(txns)).
		Int("dropped", dropped).
		Msg("tabular statement parsed")

	return domain.ParseResult{Success: true, Transactions: txns, Metadata: meta}
}

func (p *TabularParser) ValidateDocument(ctx context.Context, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err != nil {
		return false
	}
	_, _, ok := detectLayout(header)
	return ok
}

func (p *TabularParser) ExtractMetadata(ctx context.Context, path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCSVParseError, "read header row")
	}
	layout, columns, ok := detectLayout(header)
	if !ok {
		return nil, apperrors.New(apperrors.CodeCSVParseError, "unknown column layout")
	}
	return map[string]any{
		"institution": layout.Institution,
		"columns":     len(columns),
	}, nil
}

// detectLayout scores every known layout against the header row and picks the
// one binding the most canonical columns. The winner must at least bind date,
// description and an amount source.
func detectLayout(header []string) (csvLayout, map[string]int, bool) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	bestScore := 0
	var bestLayout csvLayout
	var bestColumns map[string]int

	for _, layout := range csvLayouts {
		columns := make(map[string]int)
		for canonical, aliases := range layout.Aliases {
			for idx, h := range normalized {
				if matchesAlias(h, aliases) {
					columns[canonical] = idx
					break
				}
			}
		}
		if !usableLayout(columns) {
			continue
		}
		if len(columns) > bestScore {
			bestScore = len(columns)
			bestLayout = layout
			bestColumns = columns
		}
	}
	return bestLayout, bestColumns, bestScore > 0
}

func matchesAlias(header string, aliases []string) bool {
	for _, a := range aliases {
		if header == a {
			return true
		}
	}
	return false
}

func usableLayout(columns map[string]int) bool {
	if !hasColumn(columns, colDate) || !hasColumn(columns, colDescription) {
		return false
	}
	return hasColumn(columns, colAmount) ||
		(hasColumn(columns, colDebit) && hasColumn(columns, colCredit))
}

func hasColumn(columns map[string]int, name string) bool {
	_, ok := columns[name]
	return ok
}

// mapRow converts one CSV row through the chosen layout. Returns false when
// the row is missing a required field or a value fails to parse.
func mapRow(row []string, columns map[string]int) (domain.NormalizedTransaction, bool) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	dateStr, desc := cell(colDate), cell(colDescription)
	if dateStr == "" || desc == "" {
		return domain.NormalizedTransaction{}, false
	}
	date, err := ParseStatementDate(dateStr)
	if err != nil {
		return domain.NormalizedTransaction{}, false
	}

	txn := domain.NormalizedTransaction{Date: date, Description: desc}

	if amountStr := cell(colAmount); amountStr != "" {
		amount, err := ParseAmount(amountStr)
		if err != nil {
			return domain.NormalizedTransaction{}, false
		}
		txn.Amount = amount
	} else {
		debitStr, creditStr := cell(colDebit), cell(colCredit)
		switch {
		case creditStr != "" && creditStr != "0":
			credit, err := ParseAmount(creditStr)
			if err != nil {
				return domain.NormalizedTransaction{}, false
			}
			txn.Amount = credit
		case debitStr != "" && debitStr != "0":
			debit, err := ParseAmount(debitStr)
			if err != nil {
				return domain.NormalizedTransaction{}, false
			}
			txn.Amount = debit.Abs().Neg()
		default:
			return domain.NormalizedTransaction{}, false
		}
	}

	txn.Type = inferBankType(txn.Amount)
	if balanceStr := cell(colBalance); balanceStr != "" {
		if balance, err := ParseAmount(balanceStr); err == nil {
			txn.BalanceAfter = &balance
		}
	}
	if ref := cell(colReference); ref != "" {
		txn.Reference = ref
	}
	return txn, true
}
