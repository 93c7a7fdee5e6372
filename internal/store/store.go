package store

import "context"

// Store is a generic key-document store. The reconciliation core is written
// against this interface so processing runs can be tested without Firestore.
type Store interface {
	Collection(name string) Collection
	Close() error
}

// Collection is a named set of documents keyed by ID.
type Collection interface {
	// Get decodes the document with the given ID into v. The boolean reports
	// whether the document exists; a missing document is not an error.
	Get(ctx context.Context, id string, v any) (bool, error)

	// Set overwrites the document with the given ID.
	Set(ctx context.Context, id string, v any) error

	// Merge performs a shallow field-level upsert: top-level fields of v are
	// written, other fields of an existing document are left alone.
	Merge(ctx context.Context, id string, v any) error

	// Stream calls fn for every document in the collection, in ID order for
	// deterministic runs. Returning an error from fn stops the stream.
	Stream(ctx context.Context, fn func(doc Document) error) error
}

// Document is one streamed document.
type Document interface {
	ID() string
	DataTo(v any) error
}
