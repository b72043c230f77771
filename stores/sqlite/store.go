package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dispatch-gateway/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (and if needed initialises) a SQLite-backed store.
func NewStore(ctx context.Context, dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	documentTableStmt := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data BLOB,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (collection, id)
	);`
	if _, err = db.ExecContext(ctx, documentTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) List(ctx context.Context, collection string) ([]*core.Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data, created_by, created_at, updated_at FROM documents WHERE collection = ? ORDER BY id", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*core.Document{}
	for rows.Next() {
		doc := core.Document{Collection: collection}
		var createdBy sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Data, &createdBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.CreatedBy = createdBy.String
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, collection, id string) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"collection": collection, "document_id": id})

	doc := core.Document{ID: id, Collection: collection}
	var createdBy sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT data, created_by, created_at, updated_at FROM documents WHERE collection = ? AND id = ?", collection, id).
		Scan(&doc.Data, &createdBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Document not found")
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	doc.CreatedBy = createdBy.String
	return &doc, nil
}

func (s *sqliteStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	if doc.Collection == "" {
		return "", fmt.Errorf("collection cannot be empty")
	}

	now := time.Now().UTC()
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		doc.Collection, id, []byte(doc.Data), doc.CreatedBy, now, now)
	if err != nil {
		logrus.WithError(err).WithField("collection", doc.Collection).Error("Failed to create document")
		return "", err
	}

	doc.ID, doc.CreatedAt, doc.UpdatedAt = id, now, now
	logrus.WithFields(logrus.Fields{
		"collection":  doc.Collection,
		"document_id": id,
		"data_length": len(doc.Data),
	}).Info("Document created successfully")
	return id, nil
}

func (s *sqliteStore) Update(ctx context.Context, doc *core.Document) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?",
		[]byte(doc.Data), now, doc.Collection, doc.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("document %s/%s: %w", doc.Collection, doc.ID, core.ErrNotFound)
	}
	doc.UpdatedAt = now
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", collection).Scan(&n)
	return n, err
}

func (s *sqliteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
