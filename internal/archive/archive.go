// Package archive snapshots the raw contribution documents to GCS so a
// processing regression can be replayed against the exact inputs.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/molly/follow-the-crypto-backend/internal/logger"
	st "github.com/molly/follow-the-crypto-backend/internal/store"
)

type Client struct {
	gcs    *storage.Client
	bucket string
}

func New(ctx context.Context, bucket string) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive.New: %w", err)
	}
	return &Client{gcs: client, bucket: bucket}, nil
}

func (c *Client) Close() error {
	return c.gcs.Close()
}

// ArchiveCollection uploads every document of a raw collection as JSON
// under raw/<runID>/<collection>/<docID>.json.
func (c *Client) ArchiveCollection(ctx context.Context, store st.Store, collection, runID string) error {
	log := logger.FromContext(ctx)
	bucket := c.gcs.Bucket(c.bucket)

	count := 0
	err := store.Collection(collection).Stream(ctx, func(doc st.Document) error {
		var payload map[string]any
		if err := doc.DataTo(&payload); err != nil {
			return fmt.Errorf("decoding %s/%s: %w", collection, doc.ID(), err)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s/%s: %w", collection, doc.ID(), err)
		}

		object := fmt.Sprintf("raw/%s/%s/%s.json", runID, collection, doc.ID())
		w := bucket.Object(object).NewWriter(ctx)
		w.ContentType = "application/json"
		if _, err := w.Write(data); err != nil {
			w.Close()
			return fmt.Errorf("writing %s: %w", object, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", object, err)
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("ArchiveCollection: %w", err)
	}
	log.Info().Str("collection", collection).Int("count", count).Msg("Archived raw snapshots")
	return nil
}
