package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"taxdocs/internal/model"
	"taxdocs/internal/repository"
)

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const uniqueViolation = "23505"

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	q := `
		INSERT INTO documents (` + repository.DocumentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
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
		doc.CreatedAt,
	)
	out, err := repository.ScanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", repository.ErrAlreadyExists, doc.Path())
		}
		return nil, err
	}
	return &out, nil
}

// FindByPath fetches a single document by owner and stored name.
func (r *DocumentPostgres) FindByPath(ctx context.Context, ownerID, storedName string) (*model.Document, error) {
	q := `
		SELECT ` + repository.DocumentColumns + `
		FROM documents
		WHERE owner_id = $1 AND stored_name = $2
	`
	d, err := repository.ScanDocument(r.db.QueryRowContext(ctx, q, ownerID, storedName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListByOwner returns one owner's documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	qList := `
		SELECT ` + repository.DocumentColumns + `
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
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

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document record. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, ownerID, storedName string) error {
	const q = `DELETE FROM documents WHERE owner_id = $1 AND stored_name = $2`
	_, err := r.db.ExecContext(ctx, q, ownerID, storedName)
	return err
}
