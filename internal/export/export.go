// Package export publishes recipient aggregates to the public BigQuery
// dataset.
package export

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/recipients"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

const recipientsTable = "recipients"

// RecipientRow is one exported recipient aggregate.
type RecipientRow struct {
	RecipientID        string             `bigquery:"recipient_id"`
	Type               string             `bigquery:"type"`
	Name               string             `bigquery:"name"`
	Party              string             `bigquery:"party"`
	State              string             `bigquery:"state"`
	Total              float64            `bigquery:"total"`
	ContributionsCount int                `bigquery:"contributions_count"`
	Rank               int                `bigquery:"rank"`
	RunID              string             `bigquery:"run_id"`
	ExportedAt         civil.DateTime     `bigquery:"exported_at"`
}

type Client struct {
	bq      *bigquery.Client
	dataset string
}

func New(ctx context.Context, projectID, dataset string) (*Client, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("export.New: %w", err)
	}
	return &Client{bq: client, dataset: dataset}, nil
}

func (c *Client) Close() error {
	return c.bq.Close()
}

// ExportRecipients reads the summarized recipients in stored order and
// inserts one row per recipient tagged with the run ID.
func (c *Client) ExportRecipients(ctx context.Context, st store.Store, runID string) error {
	log := logger.FromContext(ctx)

	var order recipients.Order
	ok, err := st.Collection(recipients.SummaryCollection).Get(ctx, recipients.OrderDocID, &order)
	if err != nil {
		return fmt.Errorf("ExportRecipients: loading order: %w", err)
	}
	if !ok || len(order.Order) == 0 {
		log.Warn().Msg("No summarized recipients to export")
		return nil
	}

	coll := st.Collection(recipients.RecipientsCollection)
	now := civil.DateTimeOf(time.Now().UTC())
	rows := make([]*RecipientRow, 0, len(order.Order))
	for rank, id := range order.Order {
		var r recipients.Recipient
		ok, err := coll.Get(ctx, id, &r)
		if err != nil {
			return fmt.Errorf("ExportRecipients: loading %s: %w", id, err)
		}
		if !ok {
			log.Warn().Str("recipient_id", id).Msg("Ordered recipient has no document")
			continue
		}
		rows = append(rows, &RecipientRow{
			RecipientID:        r.ID,
			Type:               r.Type,
			Name:               r.Name,
			Party:              r.Party,
			State:              r.State,
			Total:              r.Total,
			ContributionsCount: len(r.Contributions),
			Rank:               rank + 1,
			RunID:              runID,
			ExportedAt:         now,
		})
	}

	inserter := c.bq.Dataset(c.dataset).Table(recipientsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("ExportRecipients: inserting rows: %w", err)
	}
	log.Info().Int("count", len(rows)).Str("dataset", c.dataset).Msg("Exported recipient rows")
	return nil
}
