package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore backs the Store interface with Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestore connects to Firestore in the given project using Application
// Default Credentials.
func NewFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("connecting to Firestore: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Collection(name string) Collection {
	return &firestoreCollection{ref: s.client.Collection(name)}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreCollection struct {
	ref *firestore.CollectionRef
}

func (c *firestoreCollection) Get(ctx context.Context, id string, v any) (bool, error) {
	snap, err := c.ref.Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %s/%s: %w", c.ref.ID, id, err)
	}
	if err := snap.DataTo(v); err != nil {
		return true, fmt.Errorf("decoding %s/%s: %w", c.ref.ID, id, err)
	}
	return true, nil
}

func (c *firestoreCollection) Set(ctx context.Context, id string, v any) error {
	if _, err := c.ref.Doc(id).Set(ctx, v); err != nil {
		return fmt.Errorf("setting %s/%s: %w", c.ref.ID, id, err)
	}
	return nil
}

func (c *firestoreCollection) Merge(ctx context.Context, id string, v any) error {
	if _, err := c.ref.Doc(id).Set(ctx, v, firestore.MergeAll); err != nil {
		return fmt.Errorf("merging %s/%s: %w", c.ref.ID, id, err)
	}
	return nil
}

func (c *firestoreCollection) Stream(ctx context.Context, fn func(doc Document) error) error {
	iter := c.ref.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("streaming %s: %w", c.ref.ID, err)
		}
		if err := fn(&firestoreDocument{snap: snap}); err != nil {
			return err
		}
	}
}

type firestoreDocument struct {
	snap *firestore.DocumentSnapshot
}

func (d *firestoreDocument) ID() string {
	return d.snap.Ref.ID
}

func (d *firestoreDocument) DataTo(v any) error {
	return d.snap.DataTo(v)
}
