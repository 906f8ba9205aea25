package cmd

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jumuia/creditlens/internal/domain"
)

var (
	parseDocType  string
	parseCustomer string
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a single statement file and print its transactions",
	Long: `Parse runs the full pipeline (validate, parse, categorize, store) against
one local file and prints the stored transactions as JSON. Intended for
inspecting parser output without going through the API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType := domain.DocumentType(parseDocType)
		if !domain.ValidDocumentType(docType) {
			return fmt.Errorf("unknown document type %q", parseDocType)
		}

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := buildApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		doc := &domain.Document{
			ID:         uuid.NewString(),
			CustomerID: parseCustomer,
			Type:       docType,
			URI:        path,
			Filename:   filepath.Base(path),
			MimeType:   mime.TypeByExtension(filepath.Ext(path)),
			SizeBytes:  info.Size(),
			Status:     domain.DocStatusPending,
			UploadedAt: time.Now().UTC(),
		}
		if err := a.store.Documents.Save(ctx, doc); err != nil {
			return err
		}

		if err := a.orch.ProcessDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("processing %s: %w", doc.Filename, err)
		}

		txns, err := a.store.Transactions.FindByDocument(ctx, doc.ID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"document_id":  doc.ID,
			"transactions": txns,
		})
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseDocType, "type", string(domain.DocTypeBankStatement), "document type (BANK_STATEMENT, MPESA_STATEMENT, SACCO_STATEMENT)")
	parseCmd.Flags().StringVar(&parseCustomer, "customer", "", "customer the statement belongs to")
	_ = parseCmd.MarkFlagRequired("customer")
	rootCmd.AddCommand(parseCmd)
}
