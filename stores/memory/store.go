package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dispatch-gateway/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps documents per collection in process memory.
type memStore struct {
	mu sync.RWMutex
	// collections maps a collection name to its documents keyed by id.
	collections map[string]map[string]*core.Document
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{collections: make(map[string]map[string]*core.Document)}
}

func (s *memStore) List(ctx context.Context, collection string) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*core.Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, copyDocument(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	logrus.WithField("collection", collection).Debugf("Listed %d documents", len(docs))
	return docs, nil
}

func (s *memStore) Get(ctx context.Context, collection, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		logrus.WithFields(logrus.Fields{"collection": collection, "document_id": id}).Warn("Document not found")
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}
	return copyDocument(doc), nil
}

func (s *memStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	if doc.Collection == "" {
		return "", fmt.Errorf("collection cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[doc.Collection]
	if !ok {
		docs = make(map[string]*core.Document)
		s.collections[doc.Collection] = docs
	}

	now := time.Now().UTC()
	doc.ID = ulid.Make().String()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	docs[doc.ID] = copyDocument(doc)

	logrus.WithFields(logrus.Fields{
		"collection":  doc.Collection,
		"document_id": doc.ID,
		"data_length": len(doc.Data),
	}).Info("Document created successfully")
	return doc.ID, nil
}

func (s *memStore) Update(ctx context.Context, doc *core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[doc.Collection][doc.ID]
	if !ok {
		return fmt.Errorf("document %s/%s: %w", doc.Collection, doc.ID, core.ErrNotFound)
	}

	doc.CreatedAt = existing.CreatedAt
	doc.CreatedBy = existing.CreatedBy
	doc.UpdatedAt = time.Now().UTC()
	s.collections[doc.Collection][doc.ID] = copyDocument(doc)

	logrus.WithFields(logrus.Fields{"collection": doc.Collection, "document_id": doc.ID}).Info("Document updated successfully")
	return nil
}

func (s *memStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}
	delete(s.collections[collection], id)

	logrus.WithFields(logrus.Fields{"collection": collection, "document_id": id}).Info("Document deleted successfully")
	return nil
}

func (s *memStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]), nil
}

func (s *memStore) Close(ctx context.Context) error {
	return nil
}

func copyDocument(doc *core.Document) *core.Document {
	c := *doc
	c.Data = append([]byte(nil), doc.Data...)
	return &c
}
