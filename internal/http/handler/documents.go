package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"taxdocs/internal/access"
	"taxdocs/internal/http/middleware"
	"taxdocs/internal/model"
	"taxdocs/internal/service"
)

// uploadResponse is returned by a successful upload.
type uploadResponse struct {
	Message  string          `json:"message"`
	FilePath string          `json:"filePath"`
	Document *model.Document `json:"document"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ListDocuments godoc
// @Summary List documents
// @Description Lists one owner's documents, newest first. Owner defaults to the caller; only admins may list another owner.
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param owner query string false "owner id"
// @Param limit query int false "page size (default 10, max 100)"
// @Param offset query int false "rows to skip"
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := middleware.IdentityFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(service.DefaultListLimit)))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := docSvc.List(c.UserContext(), id, c.Query("owner"), limit, offset)
		if err != nil {
			if errors.Is(err, access.ErrForbidden) {
				return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "not allowed to list these documents")
			}
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument godoc
// @Summary Upload a document
// @Description Stores a file in the caller's partition. Allowed types: pdf, png, jpg, jpeg, doc, docx.
// @Tags documents
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "document"
// @Param type formData string false "document type, e.g. W2 or 1099 (default other)"
// @Param description formData string false "free text description"
// @Success 201 {object} uploadResponse
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/documents/upload [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := middleware.IdentityFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		fh, err := c.FormFile("file")
		if err != nil || fh.Filename == "" {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), id, service.UploadInput{
			Reader:       f,
			Filename:     fh.Filename,
			Size:         fh.Size,
			DocumentType: c.FormValue("type"),
			Description:  c.FormValue("description"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{
			Message:  "File uploaded successfully",
			FilePath: doc.Path(),
			Document: doc,
		})
	}
}

// DownloadDocument godoc
// @Summary Download a document
// @Description Streams a stored file. A path without an owner segment refers to the caller's partition. Missing and inaccessible documents both return 404.
// @Tags documents
// @Produce octet-stream
// @Security BearerAuth
// @Param owner path string true "owner id"
// @Param name path string true "stored name"
// @Success 200 {file} file
// @Failure 401 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/documents/{owner}/{name} [get]
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := middleware.IdentityFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		obj, err := docSvc.Download(c.UserContext(), id, c.Params("owner"), c.Params("name"))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Attachment(obj.Name)
		if obj.ContentType != "" {
			c.Set(fiber.HeaderContentType, obj.ContentType)
		}
		size := int(obj.Size)
		if size <= 0 {
			size = -1
		}
		// fasthttp closes the stream once the body is written.
		return c.SendStream(obj, size)
	}
}

// DeleteDocument godoc
// @Summary Delete a document
// @Description Permanently removes a stored file and its record. Missing and inaccessible documents both return 404.
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param owner path string true "owner id"
// @Param name path string true "stored name"
// @Success 200 {object} messageResponse
// @Failure 401 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/documents/{owner}/{name} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := middleware.IdentityFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		if err := docSvc.Delete(c.UserContext(), id, c.Params("owner"), c.Params("name")); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(messageResponse{Message: "File deleted successfully"})
	}
}
