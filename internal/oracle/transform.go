package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
)

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first opening bracket to its matching closer if
	// junk remains around the payload.
	if start := strings.IndexAny(s, "[{"); start != -1 {
		closer := "]"
		if s[start] == '{' {
			closer = "}"
		}
		if end := strings.LastIndex(s, closer); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// parseModelReply decodes the cleaned reply. The prompt asks for an object
// holding metadata and transactions; a bare transaction array is accepted too
// since models occasionally ignore the envelope.
func parseModelReply(clean string) ([]domain.NormalizedTransaction, map[string]any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(clean), &decoded); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeOracleMalformed, "model reply is not JSON")
	}

	var items []any
	var metaObj map[string]any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		txAny, ok := v["transactions"].([]any)
		if !ok {
			return nil, nil, apperrors.New(apperrors.CodeOracleMalformed,
				"model object has no %q array", "transactions")
		}
		items = txAny
		metaObj, _ = v["metadata"].(map[string]any)
	default:
		return nil, nil, apperrors.New(apperrors.CodeOracleMalformed,
			"model reply is %T, want object or array", decoded)
	}

	txns, err := transformTransactions(items)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeOracleMalformed, "malformed transaction object")
	}
	return txns, transformMetadata(metaObj), nil
}

// statement-level fields accepted from the model's metadata object.
var metadataKeys = []string{
	"account_number", "account_name", "provider", "currency",
	"period_start", "period_end",
}

// transformMetadata keeps the recognized statement-level string fields,
// dropping nulls and empties. Returns nil when nothing usable remains.
func transformMetadata(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any)
	for _, key := range metadataKeys {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			out[key] = strings.TrimSpace(v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// transformTransactions converts the decoded JSON array into normalized
// transactions. Any malformed element fails the whole chunk; partial chunks
// would silently distort the downstream scoring.
func transformTransactions(items []any) ([]domain.NormalizedTransaction, error) {
	result := make([]domain.NormalizedTransaction, 0, len(items))

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want object", i, item)
		}

		dateStr, err := getStringField(obj, "date", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: invalid date %q: %w", i, dateStr, err)
		}

		desc, err := getStringField(obj, "description", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		amount, err := getFloat64Field(obj, "amount", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		balanceAfter, err := getOptionalFloat64Field(obj, "balance_after")
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		txn := domain.NormalizedTransaction{
			Date:        date,
			Description: desc,
			Amount:      decimal.NewFromFloat(amount),
		}
		if balanceAfter != nil {
			b := decimal.NewFromFloat(*balanceAfter)
			txn.BalanceAfter = &b
		}
		if typStr, err := getStringField(obj, "type", false); err == nil && typStr != "" {
			txn.Type = domain.TransactionType(strings.ToUpper(typStr))
		}
		if ref, err := getOptionalStringField(obj, "reference"); err == nil && ref != nil {
			txn.Reference = *ref
		}

		result = append(result, txn)
	}
	return result, nil
}

func getStringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		if !required && v == nil {
			return "", nil
		}
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getFloat64Field(m map[string]any, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalFloat64Field(m map[string]any, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

// classifyModelError tags transport failures; rate limits get their own code
// so the retry layer can back off harder.
func classifyModelError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota") {
		return apperrors.Wrap(err, apperrors.CodeOracleRateLimited, "model rate limited")
	}
	return apperrors.Wrap(err, apperrors.CodeProcessingError, "generate content")
}
