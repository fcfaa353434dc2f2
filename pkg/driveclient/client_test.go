package driveclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newUploadEndpoint(t *testing.T, status int, body string, capture *uploadRequestBody) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/upload" {
			t.Errorf("unexpected path %q", request.URL.Path)
		}
		if request.Method != http.MethodPost {
			t.Errorf("unexpected method %q", request.Method)
		}
		if capture != nil {
			if decodeErr := json.NewDecoder(request.Body).Decode(capture); decodeErr != nil {
				t.Errorf("decode request body: %v", decodeErr)
			}
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(status)
		_, _ = writer.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, newErr := New(Config{}); !errors.Is(newErr, ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", newErr)
	}
}

func TestUploadFileSuccess(t *testing.T) {
	t.Parallel()

	var captured uploadRequestBody
	server := newUploadEndpoint(t, http.StatusOK,
		`{"success":true,"fileId":"FILE123","publicUrl":"https://lh3.googleusercontent.com/d/FILE123"}`, &captured)

	client, newErr := New(Config{BaseURL: server.URL + "/"})
	if newErr != nil {
		t.Fatalf("construct client: %v", newErr)
	}

	upload, uploadErr := client.UploadFile(context.Background(), []byte("0123456789"), "test.png", "image/png")
	if uploadErr != nil {
		t.Fatalf("upload: %v", uploadErr)
	}
	if upload.FileID != "FILE123" {
		t.Fatalf("unexpected file id %q", upload.FileID)
	}
	if upload.PublicURL != "https://lh3.googleusercontent.com/d/FILE123" {
		t.Fatalf("unexpected public url %q", upload.PublicURL)
	}

	if captured.FileName != "test.png" || captured.MimeType != "image/png" {
		t.Fatalf("unexpected request metadata %+v", captured)
	}
	decodedContent, decodeErr := base64.StdEncoding.DecodeString(captured.File)
	if decodeErr != nil || string(decodedContent) != "0123456789" {
		t.Fatalf("file content not base64 encoded as expected: %v %q", decodeErr, decodedContent)
	}
}

func TestUploadFileValidatesInput(t *testing.T) {
	t.Parallel()

	client, newErr := New(Config{BaseURL: "https://uploads.internal"})
	if newErr != nil {
		t.Fatalf("construct client: %v", newErr)
	}
	ctx := context.Background()

	if _, uploadErr := client.UploadFile(ctx, nil, "test.png", "image/png"); !errors.Is(uploadErr, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", uploadErr)
	}
	if _, uploadErr := client.UploadFile(ctx, []byte("x"), " ", "image/png"); !errors.Is(uploadErr, ErrEmptyFileName) {
		t.Fatalf("expected ErrEmptyFileName, got %v", uploadErr)
	}
	if _, uploadErr := client.UploadFile(ctx, []byte("x"), "test.png", ""); !errors.Is(uploadErr, ErrEmptyMimeType) {
		t.Fatalf("expected ErrEmptyMimeType, got %v", uploadErr)
	}
}

func TestUploadFileUnauthenticated(t *testing.T) {
	t.Parallel()

	server := newUploadEndpoint(t, http.StatusUnauthorized,
		`{"success":false,"error":"drive.not_authenticated"}`, nil)
	client, _ := New(Config{BaseURL: server.URL})

	_, uploadErr := client.UploadFile(context.Background(), []byte("x"), "test.png", "image/png")
	if !errors.Is(uploadErr, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", uploadErr)
	}
}

func TestUploadFileNotPublicKeepsFileID(t *testing.T) {
	t.Parallel()

	server := newUploadEndpoint(t, http.StatusConflict,
		`{"success":false,"fileId":"FILE123","error":"uploaded but not public: cannot share"}`, nil)
	client, _ := New(Config{BaseURL: server.URL})

	upload, uploadErr := client.UploadFile(context.Background(), []byte("x"), "test.png", "image/png")
	if !errors.Is(uploadErr, ErrNotPublic) {
		t.Fatalf("expected ErrNotPublic, got %v", uploadErr)
	}
	if upload.FileID != "FILE123" {
		t.Fatalf("expected the file id to survive the partial failure, got %q", upload.FileID)
	}
}

func TestUploadFileProviderRejection(t *testing.T) {
	t.Parallel()

	server := newUploadEndpoint(t, http.StatusBadGateway,
		`{"success":false,"error":"upload rejected"}`, nil)
	client, _ := New(Config{BaseURL: server.URL})

	_, uploadErr := client.UploadFile(context.Background(), []byte("x"), "test.png", "image/png")
	if !errors.Is(uploadErr, ErrUploadRejected) {
		t.Fatalf("expected ErrUploadRejected, got %v", uploadErr)
	}
}
