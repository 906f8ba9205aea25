// Package bigquery implements the repository interfaces on top of BigQuery
// for multi-node deployments. The processing queue is deliberately not
// implemented here: BigQuery has no atomic claim primitive, so the queue
// stays on the node-local store.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/repository"
)

const (
	documentsTable     = "documents"
	transactionsTable  = "transactions"
	factorsTable       = "credit_factors"
	assessmentsTable   = "credit_assessments"
	supplementaryTable = "supplementary_data"
)

// Store holds one shared client for every repository implementation.
type Store struct {
	client    *bigquery.Client
	projectID string
	dataset   string
	log       zerolog.Logger
}

// New connects to BigQuery. Credentials come from the environment, same as
// the rest of the Google Cloud stack.
func New(ctx context.Context, projectID, dataset string, log zerolog.Logger) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{
		client:    client,
		projectID: projectID,
		dataset:   dataset,
		log:       log.With().Str("component", "bigquery").Logger(),
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Repositories bundles the BigQuery-backed repositories with the supplied
// queue implementation.
func (s *Store) Repositories(queue repository.QueueRepository) *repository.Store {
	return &repository.Store{
		Documents:     &documentsRepo{s},
		Transactions:  &transactionsRepo{s},
		Factors:       &factorsRepo{s},
		Assessments:   &assessmentsRepo{s},
		Supplementary: &supplementaryRepo{s},
		Queue:         queue,
	}
}

// table returns the fully qualified `project.dataset.table` reference for
// query text.
func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.dataset, name)
}

func (s *Store) inserter(table string) *bigquery.Inserter {
	return s.client.Dataset(s.dataset).Table(table).Inserter()
}
