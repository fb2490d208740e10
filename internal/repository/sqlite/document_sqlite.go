package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"taxdocs/internal/model"
	"taxdocs/internal/repository"
)

// DocumentSQLite is a SQLite implementation of repository.DocumentRepository
// for single-node deployments.
type DocumentSQLite struct {
	db *sql.DB
}

// NewDocumentSQLite creates a new DocumentSQLite repository.
func NewDocumentSQLite(db *sql.DB) *DocumentSQLite {
	return &DocumentSQLite{db: db}
}

var _ repository.DocumentRepository = (*DocumentSQLite)(nil)

func (r *DocumentSQLite) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	q := `
		INSERT INTO documents (` + repository.DocumentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + repository.DocumentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.StoredName,
		doc.OriginalName,
		doc.DocumentType,
		doc.Description,
		doc.Size,
		doc.ContentType,
		doc.CreatedAt.UTC(),
	)
	out, err := repository.ScanDocument(row)
	if err != nil {
		if isConstraintError(err) {
			return nil, fmt.Errorf("%w: %s", repository.ErrAlreadyExists, doc.Path())
		}
		return nil, err
	}
	return &out, nil
}

func (r *DocumentSQLite) FindByPath(ctx context.Context, ownerID, storedName string) (*model.Document, error) {
	q := `SELECT ` + repository.DocumentColumns + ` FROM documents WHERE owner_id = ? AND stored_name = ?`
	d, err := repository.ScanDocument(r.db.QueryRowContext(ctx, q, ownerID, storedName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DocumentSQLite) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + repository.DocumentColumns + ` FROM documents
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := repository.ScanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// Delete removes a document record; a missing row is not an error.
func (r *DocumentSQLite) Delete(ctx context.Context, ownerID, storedName string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE owner_id = ? AND stored_name = ?`, ownerID, storedName)
	return err
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
