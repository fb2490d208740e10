package model

import "time"

// DefaultDocumentType is used when the client does not classify an upload.
const DefaultDocumentType = "other"

// Document is the metadata record of one stored object.
// The bytes themselves are owned by the storage layer; this record is what the
// relational record store persists for listing and search.
type Document struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	StoredName   string    `json:"stored_name"`
	OriginalName string    `json:"original_name"`
	DocumentType string    `json:"document_type"`
	Description  string    `json:"description,omitempty"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Path is the client-facing locator of the object: "{owner_id}/{stored_name}".
func (d Document) Path() string {
	return ObjectPath(d.OwnerID, d.StoredName)
}

// ObjectPath joins an owner and stored name into the client-facing locator.
func ObjectPath(ownerID, storedName string) string {
	return ownerID + "/" + storedName
}
