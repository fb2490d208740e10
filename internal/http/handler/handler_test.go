package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taxdocs/internal/access"
	"taxdocs/internal/auth"
	authMocks "taxdocs/internal/auth/mocks"
	"taxdocs/internal/filename"
	"taxdocs/internal/http/middleware"
	"taxdocs/internal/model"
	"taxdocs/internal/service"
	serviceMocks "taxdocs/internal/service/mocks"
	"taxdocs/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	client = model.Identity{ID: "42", Role: model.RoleClient}
	admin  = model.Identity{ID: "1", Role: model.RoleAdmin}
)

// newTestApp returns an app whose requests are already authenticated as id.
func newTestApp(id model.Identity) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.IdentityLocalKey, id)
		return c.Next()
	})
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func multipartBody(t *testing.T, name string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if name != "" {
		part, err := writer.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "uploads_seen_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler(reg))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "uploads_seen_total 1")
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newTestApp(client)
	app.Get("/documents", ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.DocumentListResult{
			Items: []model.Document{{ID: uuid.New().String(), OwnerID: "42", StoredName: "20240101_120000_w2.pdf"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, client, "", 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Contains(t, result, "data")
		assert.JSONEq(t, "1", string(result["total"]))
		mockSvc.AssertExpectations(t)
	})

	t.Run("defaults and owner", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, client, "99", service.DefaultListLimit, 0).
			Return(&service.DocumentListResult{Items: []model.Document{}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?owner=99", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents?offset=-x", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, client, "99", 10, 0).Return(nil, access.ErrForbidden).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?owner=99", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "FORBIDDEN", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, client, "", 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newTestApp(client)
	app.Post("/documents/upload", UploadDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "W2 2023.pdf", []byte("%PDF-1.4 hello"), map[string]string{
			"type":        "W2",
			"description": "employer copy",
		})

		expectedDoc := &model.Document{
			ID:           uuid.New().String(),
			OwnerID:      "42",
			StoredName:   "20240102_030405_W2_2023.pdf",
			OriginalName: "W2 2023.pdf",
			DocumentType: "W2",
		}
		mockSvc.On("Upload", mock.Anything, client, mock.MatchedBy(func(in service.UploadInput) bool {
			return in.Filename == "W2 2023.pdf" && in.Size == 14 &&
				in.DocumentType == "W2" && in.Description == "employer copy"
		})).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result uploadResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "File uploaded successfully", result.Message)
		assert.Equal(t, "42/20240102_030405_W2_2023.pdf", result.FilePath)
		require.NotNil(t, result.Document)
		assert.Equal(t, expectedDoc.ID, result.Document.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("form without file part", func(t *testing.T) {
		body, ct := multipartBody(t, "", nil, map[string]string{"type": "W2"})

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	errCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty file", service.ErrEmptyUpload, http.StatusBadRequest, "FILE_REQUIRED"},
		{"disallowed type", filename.ErrDisallowedType, http.StatusBadRequest, "FILE_TYPE_NOT_ALLOWED"},
		{"bad filename", filename.ErrBadFilename, http.StatusBadRequest, "INVALID_FILENAME"},
		{"collision", storage.ErrAlreadyExists, http.StatusConflict, "CONFLICT"},
		{"service error", errors.New("upload failed"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, "test.exe", []byte("MZ"), nil)
			mockSvc.On("Upload", mock.Anything, client, mock.Anything).Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
			req.Header.Set("Content-Type", ct)
			resp, _ := app.Test(req)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp).Error.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestDownloadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newTestApp(admin)
	app.Get("/documents/:owner/:name", DownloadDocument(mockSvc))
	app.Get("/documents/:name", DownloadDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		obj := &service.Object{
			ReadCloser:  io.NopCloser(strings.NewReader("%PDF-1.4 body")),
			Name:        "W2_copy.pdf",
			ContentType: "application/pdf",
			Size:        13,
		}
		mockSvc.On("Download", mock.Anything, admin, "42", "20240101_120000_w2.pdf").Return(obj, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/42/20240101_120000_w2.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="W2_copy.pdf"`)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "%PDF-1.4 body", string(body))
		mockSvc.AssertExpectations(t)
	})

	t.Run("own partition shorthand", func(t *testing.T) {
		obj := &service.Object{ReadCloser: io.NopCloser(strings.NewReader("x")), Name: "a.png", Size: 1}
		mockSvc.On("Download", mock.Anything, admin, "", "a.png").Return(obj, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/a.png", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found and forbidden look alike", func(t *testing.T) {
		for _, err := range []error{service.ErrNotFound, access.ErrForbidden} {
			mockSvc.On("Download", mock.Anything, admin, "99", "x.pdf").Return(nil, err).Once()

			req := httptest.NewRequest(http.MethodGet, "/documents/99/x.pdf", nil)
			resp, _ := app.Test(req)

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			res := decodeError(t, resp)
			assert.Equal(t, "NOT_FOUND", res.Error.Code)
			assert.Equal(t, "document not found", res.Error.Message)
		}
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, admin, "42", "x.pdf").Return(nil, errors.New("disk gone")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/42/x.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newTestApp(client)
	app.Delete("/documents/:owner/:name", DeleteDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, client, "42", "a.pdf").Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/42/a.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res messageResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "File deleted successfully", res.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, client, "42", "a.pdf").Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/42/a.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, client, "42", "a.pdf").Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/42/a.pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestHandlers_MissingIdentity(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/documents", ListDocuments(mockSvc))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	mockSvc.AssertNotCalled(t, "List")
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockDocumentService)
	verifier := new(authMocks.MockVerifier)
	RegisterRoutes(app, nil, mockSvc, verifier)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("documents require a credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("rejected credential", func(t *testing.T) {
		verifier.On("Verify", mock.Anything, "bad").Return(model.Identity{}, auth.ErrInvalidToken).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/documents/42/a.pdf", nil)
		req.Header.Set("Authorization", "Bearer bad")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		mockSvc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("authenticated download", func(t *testing.T) {
		verifier.On("Verify", mock.Anything, "good").Return(client, nil).Once()
		obj := &service.Object{ReadCloser: io.NopCloser(strings.NewReader("x")), Name: "a.pdf", Size: 1}
		mockSvc.On("Download", mock.Anything, client, "42", "a.pdf").Return(obj, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/42/a.pdf", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
		verifier.AssertExpectations(t)
	})
}
