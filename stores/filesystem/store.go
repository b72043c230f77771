package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dispatch-gateway/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps one JSON file per document under basePath/<collection>/<id>.json.
type fsStore struct {
	basePath string
	mu       sync.Mutex
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// documentPath resolves the file of a document and refuses anything that
// would escape the base directory.
func (s *fsStore) documentPath(collection, id string) (string, error) {
	for _, part := range []string{collection, id} {
		if part == "" || part == "." || part == ".." || filepath.Base(part) != part || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid path segment %q", part)
		}
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(s.basePath, collection, id+".json"))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFile, nil
}

func (s *fsStore) List(ctx context.Context, collection string) ([]*core.Document, error) {
	dir := filepath.Join(s.basePath, collection)
	log := logrus.WithFields(logrus.Fields{"collection": collection, "path": dir})

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Document{}, nil
		}
		log.WithError(err).Error("Failed to read collection directory")
		return nil, err
	}

	docs := make([]*core.Document, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		doc, err := s.read(filepath.Join(dir, file.Name()), collection)
		if err != nil {
			log.WithError(err).Warnf("Failed to read document file %s, skipping", file.Name())
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	log.Debugf("Listed %d documents", len(docs))
	return docs, nil
}

func (s *fsStore) Get(ctx context.Context, collection, id string) (*core.Document, error) {
	filePath, err := s.documentPath(collection, id)
	if err != nil {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}

	doc, err := s.read(filePath, collection)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{"collection": collection, "document_id": id}).Warn("Document file not found")
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
		}
		return nil, err
	}
	return doc, nil
}

func (s *fsStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	id := ulid.Make().String()
	filePath, err := s.documentPath(doc.Collection, id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	doc.ID, doc.CreatedAt, doc.UpdatedAt = id, now, now
	if err := s.write(filePath, doc); err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"collection":  doc.Collection,
		"document_id": id,
		"file_path":   filePath,
	}).Info("Document created successfully")
	return id, nil
}

func (s *fsStore) Update(ctx context.Context, doc *core.Document) error {
	filePath, err := s.documentPath(doc.Collection, doc.ID)
	if err != nil {
		return fmt.Errorf("document %s/%s: %w", doc.Collection, doc.ID, core.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(filePath, doc.Collection)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("document %s/%s: %w", doc.Collection, doc.ID, core.ErrNotFound)
		}
		return err
	}

	doc.CreatedAt = existing.CreatedAt
	doc.CreatedBy = existing.CreatedBy
	doc.UpdatedAt = time.Now().UTC()
	return s.write(filePath, doc)
}

func (s *fsStore) Delete(ctx context.Context, collection, id string) error {
	filePath, err := s.documentPath(collection, id)
	if err != nil {
		return fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
		}
		logrus.WithError(err).WithField("file_path", filePath).Error("Failed to delete document file")
		return err
	}
	return nil
}

func (s *fsStore) Count(ctx context.Context, collection string) (int, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *fsStore) Close(ctx context.Context) error {
	return nil
}

func (s *fsStore) read(filePath, collection string) (*core.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	doc.Collection = collection
	return &doc, nil
}

func (s *fsStore) write(filePath string, doc *core.Document) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return os.WriteFile(filePath, data, 0644)
}
