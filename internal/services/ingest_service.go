package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"finpulse/internal/core"
	"finpulse/internal/ingest"
)

// IngestService parses raw uploads and persists the accepted rows.
type IngestService struct {
	transactions TransactionStore
}

func NewIngestService(transactions TransactionStore) *IngestService {
	return &IngestService{transactions: transactions}
}

// UploadResult reports a partial-success upload: accepted rows are stored,
// rejected rows are itemized, and both can be non-empty at once.
type UploadResult struct {
	Accepted  int
	RowErrors []ingest.RowError
}

// Upload parses raw delimited text for one organization and stores every
// valid row. File-level failures (missing headers, empty file, no valid
// rows) are returned as errors; row-level failures only populate RowErrors.
func (s *IngestService) Upload(ctx context.Context, orgID, raw, hint string) (UploadResult, error) {
	if strings.TrimSpace(orgID) == "" {
		return UploadResult{}, core.ErrEmptyOrg
	}

	txs, rowErrs, err := ingest.Parse(raw, hint)
	if err != nil {
		return UploadResult{RowErrors: rowErrs}, fmt.Errorf("parse upload: %w", err)
	}

	for i := range txs {
		txs[i].ID = uuid.NewString()
		txs[i].OrgID = orgID
	}

	if err := s.transactions.InsertTransactions(ctx, txs); err != nil {
		return UploadResult{RowErrors: rowErrs}, fmt.Errorf("store transactions: %w", err)
	}

	slog.InfoContext(ctx, "Upload ingested",
		"org_id", orgID,
		"accepted", len(txs),
		"row_errors", len(rowErrs),
		"hint", hint)

	return UploadResult{Accepted: len(txs), RowErrors: rowErrs}, nil
}
