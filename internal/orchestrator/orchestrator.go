// Package orchestrator drives documents through the full processing
// pipeline: claim, fetch, validate, parse, categorize, verify and persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jumuia/creditlens/internal/blobstore"
	"github.com/jumuia/creditlens/internal/chunker"
	"github.com/jumuia/creditlens/internal/config"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/extract"
	"github.com/jumuia/creditlens/internal/oracle"
	"github.com/jumuia/creditlens/internal/parsers"
	"github.com/jumuia/creditlens/internal/queue"
	"github.com/jumuia/creditlens/internal/repository"
	"github.com/jumuia/creditlens/internal/rules"
	"github.com/jumuia/creditlens/internal/validation"
)

// ErrNoParser is returned when neither a format parser nor the oracle can
// take a document.
var ErrNoParser = errors.New("no parser available for document")

// Orchestrator owns the document processing pipeline. All collaborators are
// injected so tests can swap the oracle and storage.
type Orchestrator struct {
	cfg       config.QueueConfig
	store     *repository.Store
	blobs     *blobstore.Store
	queue     *queue.Service
	extractor *extract.Extractor
	parsers   *parsers.Registry
	chunks    *chunker.Processor
	oracle    oracle.Client // may be nil in oracle-less deployments
	rules     rules.Registry
	validator *validation.Service
	log       zerolog.Logger
}

func New(
	cfg config.QueueConfig,
	store *repository.Store,
	blobs *blobstore.Store,
	q *queue.Service,
	extractor *extract.Extractor,
	registry *parsers.Registry,
	chunks *chunker.Processor,
	oracleClient oracle.Client,
	ruleEngine rules.Registry,
	validator *validation.Service,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		blobs:     blobs,
		queue:     q,
		extractor: extractor,
		parsers:   registry,
		chunks:    chunks,
		oracle:    oracleClient,
		rules:     ruleEngine,
		validator: validator,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// ProcessNext claims the next queue item and runs it through the pipeline.
// It returns repository.ErrQueueEmpty when nothing is claimable. A pipeline
// failure is recorded on the item and the document; it is not returned as an
// error so callers can keep draining.
func (o *Orchestrator) ProcessNext(ctx context.Context) (*domain.QueueItem, error) {
	item, err := o.queue.Claim(ctx)
	if err != nil {
		return nil, err
	}

	if err := o.processClaimed(ctx, item); err != nil {
		o.recordFailure(ctx, item, err)
		return item, nil
	}

	if err := o.queue.Complete(ctx, item); err != nil {
		return item, fmt.Errorf("complete queue item %s: %w", item.ID, err)
	}
	if err := o.store.Documents.UpdateStatus(ctx, item.DocumentID, domain.DocStatusCompleted, ""); err != nil {
		return item, fmt.Errorf("mark document %s completed: %w", item.DocumentID, err)
	}

	o.log.Info().
		Str("queue_item_id", item.ID).
		Str("document_id", item.DocumentID).
		Int("attempts", item.Attempts).
		Msg("document processed")
	return item, nil
}

// DrainQueue runs ProcessNext up to the drain batch size and reports how many
// items succeeded and failed this pass.
func (o *Orchestrator) DrainQueue(ctx context.Context) (succeeded, failed int, err error) {
	for i := 0; i < o.cfg.DrainBatchSize; i++ {
		item, err := o.ProcessNext(ctx)
		if errors.Is(err, repository.ErrQueueEmpty) {
			break
		}
		if err != nil {
			return succeeded, failed, err
		}
		if item.Status == domain.QueueStatusCompleted {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed, nil
}

// BatchResult is the outcome for one document in a direct batch run.
type BatchResult struct {
	DocumentID string
	Err        error
}

// ProcessBatchDocuments runs specific documents through the pipeline without
// going through the queue, in groups of the configured document batch size
// with a pacing delay between groups. Documents within a group run
// concurrently; one document's failure never aborts the others.
func (o *Orchestrator) ProcessBatchDocuments(ctx context.Context, documentIDs []string) []BatchResult {
	results := make([]BatchResult, len(documentIDs))

	groupSize := o.cfg.DocumentBatch
	if groupSize < 1 {
		groupSize = 1
	}

	for start := 0; start < len(documentIDs); start += groupSize {
		if start > 0 && o.cfg.BatchPacingDelay > 0 {
			select {
			case <-time.After(o.cfg.BatchPacingDelay):
			case <-ctx.Done():
				for i := start; i < len(documentIDs); i++ {
					results[i] = BatchResult{DocumentID: documentIDs[i], Err: ctx.Err()}
				}
				return results
			}
		}

		end := start + groupSize
		if end > len(documentIDs) {
			end = len(documentIDs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				err := o.ProcessDocument(gctx, documentIDs[i])
				results[i] = BatchResult{DocumentID: documentIDs[i], Err: err}
				return nil // failures are per-document, never group-fatal
			})
		}
		_ = g.Wait()
	}
	return results
}

// ProcessDocument runs one document through the pipeline directly, updating
// its status as it goes.
func (o *Orchestrator) ProcessDocument(ctx context.Context, documentID string) error {
	doc, err := o.store.Documents.FindByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if err := o.store.Documents.UpdateStatus(ctx, doc.ID, domain.DocStatusProcessing, ""); err != nil {
		return fmt.Errorf("mark document %s processing: %w", doc.ID, err)
	}

	if err := o.runPipeline(ctx, doc); err != nil {
		appErr := o.validator.HandleProcessingError(err, "pipeline", doc.ID)
		_ = o.store.Documents.UpdateStatus(ctx, doc.ID, domain.DocStatusFailed, appErr.Message)
		return appErr
	}
	return o.store.Documents.UpdateStatus(ctx, doc.ID, domain.DocStatusCompleted, "")
}

// processClaimed handles one claimed queue item end to end, leaving status
// bookkeeping for the item itself to the caller.
func (o *Orchestrator) processClaimed(ctx context.Context, item *domain.QueueItem) error {
	doc, err := o.store.Documents.FindByID(ctx, item.DocumentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", item.DocumentID, err)
	}
	if err := o.store.Documents.UpdateStatus(ctx, doc.ID, domain.DocStatusProcessing, ""); err != nil {
		return fmt.Errorf("mark document %s processing: %w", doc.ID, err)
	}
	return o.runPipeline(ctx, doc)
}

// recordFailure classifies the error, logs it into the ring, fails the queue
// item and moves the document to its corresponding state: FAILED once the
// item is terminally failed, back to PENDING while retries remain.
func (o *Orchestrator) recordFailure(ctx context.Context, item *domain.QueueItem, cause error) {
	appErr := o.validator.HandleProcessingError(cause, "pipeline", item.DocumentID)

	if err := o.queue.Fail(ctx, item, appErr); err != nil {
		o.log.Error().Err(err).Str("queue_item_id", item.ID).Msg("failed to record queue failure")
	}

	docStatus := domain.DocStatusPending
	errMsg := ""
	if item.Status == domain.QueueStatusFailed {
		docStatus = domain.DocStatusFailed
		errMsg = appErr.Message
	}
	if err := o.store.Documents.UpdateStatus(ctx, item.DocumentID, docStatus, errMsg); err != nil {
		o.log.Error().Err(err).Str("document_id", item.DocumentID).Msg("failed to update document status")
	}
}

// runPipeline is the shared fetch-validate-parse-categorize-verify-persist
// sequence.
func (o *Orchestrator) runPipeline(ctx context.Context, doc *domain.Document) error {
	localPath, cleanup, err := o.blobs.Fetch(ctx, doc.URI)
	if err != nil {
		return fmt.Errorf("fetch document %s: %w", doc.ID, err)
	}
	defer cleanup()

	if res := o.validator.ValidateDocument(localPath, doc.Type); !res.Valid() {
		return res.Errors[0]
	}

	parsed, err := o.parse(ctx, doc, localPath)
	if err != nil {
		return err
	}

	parsed.Transactions = o.rules.CategorizeBatch(parsed.Transactions)

	if res := o.validator.ValidateExtractedData(parsed, doc.Type); !res.Valid() {
		return fmt.Errorf("extracted data invalid: %w", res.Errors[0])
	}

	if err := o.store.Transactions.SaveBatch(ctx, doc.CustomerID, doc.ID, parsed.Transactions); err != nil {
		return fmt.Errorf("persist transactions for document %s: %w", doc.ID, err)
	}

	o.log.Info().
		Str("document_id", doc.ID).
		Str("customer_id", doc.CustomerID).
		Int("transactions", len(parsed.Transactions)).
		Float64("confidence", parsed.Metadata.Confidence).
		Msg("pipeline finished")
	return nil
}

// parse selects the recognition path: a registered format parser when one
// handles the file, otherwise the chunked oracle over extracted text.
func (o *Orchestrator) parse(ctx context.Context, doc *domain.Document, localPath string) (*domain.ParseResult, error) {
	if parser, ok := o.parsers.ForDocument(localPath, doc.Type); ok {
		result := parser.Parse(ctx, localPath, parsers.Options{})
		if result.Success {
			o.log.Debug().
				Str("document_id", doc.ID).
				Str("parser", parser.Name()).
				Int("transactions", len(result.Transactions)).
				Msg("format parser handled document")
			return &result, nil
		}
		o.log.Warn().
			Str("document_id", doc.ID).
			Str("parser", parser.Name()).
			Err(result.Err).
			Msg("format parser failed, falling back to oracle")
	}

	if o.oracle == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoParser, blobstore.Filename(doc.URI))
	}
	return o.parseViaOracle(ctx, doc, localPath)
}

// parseViaOracle extracts raw text and sends it through the chunker to the
// oracle, synthesizing statement metadata from the extraction's structured
// key-value pairs and the returned transactions.
func (o *Orchestrator) parseViaOracle(ctx context.Context, doc *domain.Document, localPath string) (*domain.ParseResult, error) {
	start := time.Now()

	opts := extract.Options{}
	switch parsers.NormalizeExt(localPath) {
	case "txt", "text", "csv":
		opts.Method = extract.MethodText
	}

	data, err := o.extractor.Extract(ctx, localPath, doc.Type, opts)
	if err != nil {
		return nil, fmt.Errorf("extract text from %s: %w", doc.ID, err)
	}
	if strings.TrimSpace(data.Text) == "" {
		return nil, fmt.Errorf("document %s produced no text", doc.ID)
	}

	submit := func(ctx context.Context, chunk string, index, total int) (*chunker.ChunkResult, error) {
		res, err := o.oracle.Submit(ctx, oracle.Request{
			Text:         chunk,
			DocumentType: doc.Type,
			CustomerID:   doc.CustomerID,
			DocumentID:   doc.ID,
			ChunkIndex:   index,
			TotalChunks:  total,
		})
		if err != nil {
			return nil, err
		}
		return &chunker.ChunkResult{Transactions: res.Transactions, Metadata: res.Metadata}, nil
	}

	merged, err := o.chunks.Process(ctx, data.Text, submit)
	if err != nil {
		return nil, err
	}

	meta := synthesizeMetadata(doc.Type, data, merged)
	meta.ProcessingTime = time.Since(start)

	return &domain.ParseResult{
		Success:      true,
		Transactions: merged.Transactions,
		Metadata:     meta,
	}, nil
}

// structured key-value labels accepted as the account identifier, checked in
// order.
var accountNumberKeys = []string{
	"account_number", "account_no", "member_number", "member_no",
	"mobile_number", "phone_number", "customer_number",
}

var accountNameKeys = []string{"account_name", "customer_name", "member_name", "name"}

// synthesizeMetadata builds statement metadata for the oracle path from the
// extraction's key-value pairs, any oracle chunk metadata, and the merged
// transactions.
func synthesizeMetadata(docType domain.DocumentType, data *extract.ExtractedData, merged *chunker.ChunkResult) domain.StatementMetadata {
	meta := domain.StatementMetadata{
		DocumentType: docType,
		Source:       "oracle",
		Currency:     "KES",
		Confidence:   data.Metadata.Confidence,
	}

	meta.AccountNumber = firstStructured(data.StructuredData, accountNumberKeys)
	meta.AccountName = firstStructured(data.StructuredData, accountNameKeys)
	meta.Provider = firstStructured(data.StructuredData, []string{"bank", "provider", "sacco"})

	// Oracle chunk metadata, when present, overrides the heuristics.
	for key, dst := range map[string]*string{
		"account_number": &meta.AccountNumber,
		"account_name":   &meta.AccountName,
		"provider":       &meta.Provider,
		"currency":       &meta.Currency,
	} {
		if v, ok := merged.Metadata[key].(string); ok && v != "" {
			*dst = v
		}
	}

	credits, debits := decimal.Zero, decimal.Zero
	for i := range merged.Transactions {
		amount := merged.Transactions[i].Amount
		if amount.IsPositive() {
			credits = credits.Add(amount)
		} else {
			debits = debits.Add(amount.Abs())
		}
	}
	meta.TotalCredits = credits
	meta.TotalDebits = debits

	if start, end := transactionPeriod(merged.Transactions); !start.IsZero() {
		meta.PeriodStart, meta.PeriodEnd = start, end
	}
	if d, ok := metadataDate(merged.Metadata, "period_start"); ok {
		meta.PeriodStart = d
	}
	if d, ok := metadataDate(merged.Metadata, "period_end"); ok {
		meta.PeriodEnd = d
	}
	return meta
}

func metadataDate(meta map[string]any, key string) (time.Time, bool) {
	v, ok := meta[key].(string)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func firstStructured(kv map[string]string, keys []string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(kv[key]); v != "" {
			return v
		}
	}
	return ""
}

func transactionPeriod(txns []domain.NormalizedTransaction) (start, end time.Time) {
	for i := range txns {
		d := txns[i].Date
		if d.IsZero() {
			continue
		}
		if start.IsZero() || d.Before(start) {
			start = d
		}
		if end.IsZero() || d.After(end) {
			end = d
		}
	}
	return start, end
}
