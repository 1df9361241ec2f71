package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Collection names
const (
	CollectionPlayers      = "players"
	CollectionLinkRequests = "link_requests"
	CollectionDiscordLinks = "discord_links"
	CollectionApplications = "applications"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the document exists.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a raw stored document
type Document struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Decode unmarshals the document body into dst
func (d Document) Decode(dst any) error {
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// DocumentStore is a collection/id keyed JSON document store.
// Writes to different documents are independent; there is no cross-document atomicity.
type DocumentStore interface {
	// Load decodes the document into dst, or returns ErrNotFound.
	Load(ctx context.Context, collection, id string, dst any) error
	// Create stores a new document, or returns ErrAlreadyExists.
	Create(ctx context.Context, collection, id string, doc any) error
	// Overwrite stores the document, replacing any existing one.
	Overwrite(ctx context.Context, collection, id string, doc any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// All returns every document of a collection ordered by id.
	All(ctx context.Context, collection string) ([]Document, error)
}

var _ DocumentStore = (*DB)(nil)

// Load retrieves a document by collection and id
func (db *DB) Load(ctx context.Context, collection, id string, dst any) error {
	query := `
		SELECT data
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	var data []byte
	err := db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}

	return nil
}

// Create inserts a document if it does not exist yet
func (db *DB) Create(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO NOTHING
	`

	result, err := db.ExecContext(ctx, query, collection, id, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyExists
	}

	return nil
}

// Overwrite inserts or replaces a document
func (db *DB) Overwrite(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	if _, err := db.ExecContext(ctx, query, collection, id, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to overwrite %s/%s: %w", collection, id, err)
	}

	return nil
}

// Delete removes a document
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	if _, err := db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return nil
}

// All lists every document in a collection
func (db *DB) All(ctx context.Context, collection string) ([]Document, error) {
	query := `
		SELECT id, data, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var (
			id        string
			data      []byte
			updatedAt int64
		)
		if err := rows.Scan(&id, &data, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		docs = append(docs, Document{
			ID:        id,
			Data:      json.RawMessage(data),
			UpdatedAt: time.UnixMilli(updatedAt),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s documents: %w", collection, err)
	}

	return docs, nil
}
