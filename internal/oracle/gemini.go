package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
)

// DefaultModelName is the model used when config does not override it.
const DefaultModelName = "gemini-2.5-flash"

// GeminiClient extracts transactions from statement text via the GenAI API.
type GeminiClient struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGeminiClient creates the client. Credentials come from the environment,
// same as the rest of the Google Cloud stack.
func NewGeminiClient(ctx context.Context, model string, log zerolog.Logger) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  model,
		log:    log.With().Str("component", "oracle").Str("model", model).Logger(),
	}, nil
}

// Submit sends one chunk of statement text and parses the strict-JSON reply.
func (g *GeminiClient) Submit(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(req)},
				{Text: req.Text},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, classifyModelError(err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, apperrors.New(apperrors.CodeOracleMalformed, "empty response from model")
	}

	txns, meta, err := parseModelReply(cleanModelJSON(rawText))
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			appErr.WithContext("raw_prefix", prefix(rawText, 200))
		}
		return nil, err
	}

	elapsed := time.Since(start)
	g.log.Debug().
		Str("document_id", req.DocumentID).
		Int("chunk", req.ChunkIndex).
		Int("transactions", len(txns)).
		Dur("elapsed", elapsed).
		Msg("oracle chunk extracted")

	return &Result{
		Transactions: txns,
		Metadata:     meta,
		ModelName:    g.model,
		Elapsed:      elapsed,
	}, nil
}

func buildPrompt(req Request) string {
	p := "You are a financial statement parser for Kenyan " + docTypeLabel(req.DocumentType) + " statements.\n\n" +
		"Task:\n" +
		"- Parse ALL transactions in the statement text that follows.\n" +
		"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
		"- Output a single JSON object: {\"metadata\": {...}, \"transactions\": [...]}\n\n" +
		"\"metadata\" fields (null when the statement does not show the value):\n" +
		"- \"account_number\": account, member or phone number the statement belongs to\n" +
		"- \"account_name\": holder name\n" +
		"- \"provider\": bank, SACCO or mobile money operator name\n" +
		"- \"currency\": ISO currency code, usually \"KES\"\n" +
		"- \"period_start\", \"period_end\": statement period, \"YYYY-MM-DD\" or null\n\n" +
		"Each element of \"transactions\" must have these fields:\n" +
		"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
		"- \"description\": string\n" +
		"- \"amount\": number (positive for money IN, negative for money OUT)\n" +
		"- \"balance_after\": number or null\n" +
		"- \"type\": one of \"INCOME\", \"EXPENSE\", \"TRANSFER\", \"PAYMENT\", \"WITHDRAWAL\", \"DEPOSIT\"\n" +
		"- \"reference\": string or null (receipt or reference code)\n\n" +
		"Rules:\n" +
		"- If the statement has separate debit / credit columns, convert to a single signed \"amount\".\n" +
		"- If the running balance is missing, set \"balance_after\" to null.\n" +
		"- Amounts are Kenyan Shillings unless the text says otherwise.\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n"
	if req.TotalChunks > 1 {
		p += fmt.Sprintf("\nThis is part %d of %d of a larger statement; parse only the lines you see.\n",
			req.ChunkIndex+1, req.TotalChunks)
	}
	return p
}

func docTypeLabel(t domain.DocumentType) string {
	switch t {
	case domain.DocTypeMpesaStatement:
		return "M-PESA mobile money"
	case domain.DocTypeSaccoStatement:
		return "SACCO cooperative"
	default:
		return "bank"
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
