package repository

import (
	"context"

	"taxdocs/internal/model"
)

// DocumentRepository defines data access for document metadata using SQL queries only.
// No business logic here; strictly persistence operations.
// Records are addressed by (owner_id, stored_name), the same pair that locates
// the object in storage.
type DocumentRepository interface {
	// Create inserts a new document record.
	// The caller provides ID and CreatedAt. Returns the stored document.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByPath returns the record of (ownerID, storedName), or ErrNotFound.
	FindByPath(ctx context.Context, ownerID, storedName string) (*model.Document, error)

	// ListByOwner returns one owner's documents, newest first, and the owner's total count.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes the record of (ownerID, storedName). It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, ownerID, storedName string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// DocumentColumns is the column list every document query selects, in ScanDocument order.
const DocumentColumns = "id, owner_id, stored_name, original_name, document_type, description, size, content_type, created_at"

// ScanDocument reads one row selected with DocumentColumns.
func ScanDocument(row RowScanner) (model.Document, error) {
	var d model.Document
	err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.StoredName,
		&d.OriginalName,
		&d.DocumentType,
		&d.Description,
		&d.Size,
		&d.ContentType,
		&d.CreatedAt,
	)
	return d, err
}
