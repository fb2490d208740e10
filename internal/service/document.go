package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"taxdocs/internal/access"
	"taxdocs/internal/filename"
	"taxdocs/internal/logger"
	"taxdocs/internal/model"
	"taxdocs/internal/repository"
	"taxdocs/internal/storage"
)

var (
	ErrEmptyUpload = errors.New("file is required")
	ErrNotFound    = errors.New("document not found")
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100

	// sniffLen is how much of an upload is buffered for content type detection.
	sniffLen = 3072
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// UploadInput carries one uploaded file and its client supplied form fields.
type UploadInput struct {
	Reader       io.Reader
	Filename     string
	Size         int64
	DocumentType string
	Description  string
}

// Object is an open stored document. The caller must Close it.
// Name is the client's original filename, sanitized for use in headers.
type Object struct {
	io.ReadCloser
	Name        string
	ContentType string
	Size        int64
}

// DocumentService defines the use cases for handling documents.
// Every operation takes the caller's identity and applies the access rules itself.
type DocumentService interface {
	// Upload sanitizes the name, stores the content in the caller's partition
	// and records its metadata, removing the stored object again if the record fails.
	Upload(ctx context.Context, id model.Identity, in UploadInput) (*model.Document, error)

	// Download opens (owner, storedName) for reading. An empty owner means the caller.
	// Objects without a metadata record are reported as not found.
	Download(ctx context.Context, id model.Identity, owner, storedName string) (*Object, error)

	// Delete removes (owner, storedName) from storage, then its record.
	Delete(ctx context.Context, id model.Identity, owner, storedName string) error

	// List returns one owner's documents using limit/offset and a total count.
	List(ctx context.Context, id model.Identity, owner string, limit, offset int) (*DocumentListResult, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store storage.Storage
	repo  repository.DocumentRepository
	log   *slog.Logger
	now   func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository) DocumentService {
	return &documentService{
		store: store,
		repo:  repo,
		log:   logger.Log,
		now:   time.Now,
	}
}

func (s *documentService) Upload(ctx context.Context, id model.Identity, in UploadInput) (*model.Document, error) {
	if in.Reader == nil || in.Size == 0 {
		return nil, ErrEmptyUpload
	}
	if err := access.Authorize(id, id.ID, access.ActionWrite); err != nil {
		return nil, err
	}
	safe, err := filename.Sanitize(in.Filename)
	if err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyUpload
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()
	body := io.MultiReader(bytes.NewReader(head), in.Reader)

	now := s.now().UTC()
	stored := filename.StoredName(now, safe)

	objInfo, err := s.store.Put(ctx, id.ID, stored, body, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": string(safe),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	docType := in.DocumentType
	if docType == "" {
		docType = model.DefaultDocumentType
	}
	doc := &model.Document{
		ID:           uuid.New().String(),
		OwnerID:      id.ID,
		StoredName:   stored,
		OriginalName: in.Filename,
		DocumentType: docType,
		Description:  in.Description,
		Size:         objInfo.Size,
		ContentType:  contentType,
		CreatedAt:    now,
	}
	saved, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: the object must not outlive a failed record.
		if delErr := s.store.Delete(ctx, id.ID, stored); delErr != nil {
			s.log.ErrorContext(ctx, "orphaned object after failed metadata save",
				slog.String("owner_id", id.ID),
				slog.String("stored_name", stored),
				slog.Any("save_error", err),
				slog.Any("rollback_error", delErr),
			)
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %w", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return saved, nil
}

func (s *documentService) Download(ctx context.Context, id model.Identity, owner, storedName string) (*Object, error) {
	if owner == "" {
		owner = id.ID
	}
	if err := access.Authorize(id, owner, access.ActionRead); err != nil {
		return nil, err
	}

	// Only recorded uploads are served; the record carries the display name
	// and the type detected at upload.
	doc, err := s.repo.FindByPath(ctx, owner, storedName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document record: %w", err)
	}

	rc, info, err := s.store.Get(ctx, owner, storedName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open from storage: %w", err)
	}

	obj := &Object{
		ReadCloser:  rc,
		Name:        doc.StoredName,
		ContentType: doc.ContentType,
		Size:        info.Size,
	}
	if safe, err := filename.Sanitize(doc.OriginalName); err == nil {
		obj.Name = string(safe)
	}
	if obj.ContentType == "" {
		obj.ContentType = info.ContentType
	}
	return obj, nil
}

func (s *documentService) Delete(ctx context.Context, id model.Identity, owner, storedName string) error {
	if owner == "" {
		owner = id.ID
	}
	if err := access.Authorize(id, owner, access.ActionDelete); err != nil {
		return err
	}

	err := s.store.Delete(ctx, owner, storedName)
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		return ErrNotFound
	case errors.Is(err, storage.ErrNotFound):
		// The bytes are gone; drop any record still pointing at them.
		s.deleteRecord(ctx, owner, storedName)
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("delete storage: %w", err)
	}

	s.deleteRecord(ctx, owner, storedName)
	return nil
}

// deleteRecord removes metadata after its object is gone. A failure leaves a
// stale record behind but does not undo the delete.
func (s *documentService) deleteRecord(ctx context.Context, owner, storedName string) {
	if err := s.repo.Delete(ctx, owner, storedName); err != nil {
		s.log.WarnContext(ctx, "stale document record after delete",
			slog.String("owner_id", owner),
			slog.String("stored_name", storedName),
			slog.Any("error", err),
		)
	}
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, id model.Identity, owner string, limit, offset int) (*DocumentListResult, error) {
	if owner == "" {
		owner = id.ID
	}
	if err := access.Authorize(id, owner, access.ActionList); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListByOwner(ctx, owner, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}
