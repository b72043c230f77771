package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("not found")

type (
	// Document is one JSON record of a resource collection (users, trucks, pickups, ...).
	Document struct {
		ID         string          `json:"id"`
		Collection string          `json:"-"`
		Data       json.RawMessage `json:"data"`
		CreatedBy  string          `json:"createdBy,omitempty"`
		CreatedAt  time.Time       `json:"createdAt"`
		UpdatedAt  time.Time       `json:"updatedAt"`
	}

	// DocumentStore is the persistence layer behind the resource routers.
	// Every operation is scoped to a single collection.
	DocumentStore interface {
		// List returns every document of a collection, oldest first.
		List(ctx context.Context, collection string) ([]*Document, error)

		// Get returns one document or an error wrapping ErrNotFound.
		Get(ctx context.Context, collection, id string) (*Document, error)

		// Create assigns a new ID and timestamps and stores the document.
		Create(ctx context.Context, doc *Document) (string, error)

		// Update replaces the data of an existing document.
		Update(ctx context.Context, doc *Document) error

		// Delete removes a document; deleting a missing one wraps ErrNotFound.
		Delete(ctx context.Context, collection, id string) error

		// Count returns the number of documents in a collection.
		Count(ctx context.Context, collection string) (int, error)

		// Close releases the underlying connection.
		Close(ctx context.Context) error
	}
)
