package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pizzart/driveup/internal/drivekit"
	"go.uber.org/zap/zaptest"
)

type staticTokenSource struct {
	token string
	err   error
}

func (stub staticTokenSource) Token(ctx context.Context) (string, error) {
	if stub.err != nil {
		return "", stub.err
	}
	return stub.token, nil
}

type driveStub struct {
	uploadStatus     int
	permissionStatus int
}

func newDriveStubServer(t *testing.T, stub *driveStub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/drive/v3/files", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(stub.uploadStatus)
		if stub.uploadStatus == http.StatusOK {
			_, _ = writer.Write([]byte(`{"id":"FILE123"}`))
			return
		}
		_, _ = writer.Write([]byte(`{"error":{"message":"upload rejected"}}`))
	})
	mux.HandleFunc("/drive/v3/files/", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(stub.permissionStatus)
		if stub.permissionStatus != http.StatusOK {
			_, _ = writer.Write([]byte(`{"error":{"message":"cannot share"}}`))
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newUploadRouter(t *testing.T, tokens drivekit.TokenSource, stub *driveStub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server := newDriveStubServer(t, stub)
	uploader, uploaderErr := drivekit.NewUploader(tokens, "folder-abc", nil, nil, nil)
	if uploaderErr != nil {
		t.Fatalf("construct uploader: %v", uploaderErr)
	}
	uploader.OverrideEndpoints(drivekit.Endpoints{
		UploadURL: server.URL + "/upload/drive/v3/files?uploadType=multipart",
		FilesURL:  server.URL + "/drive/v3/files",
	})

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.POST("/api/upload", HandleDriveUpload(zaptest.NewLogger(t), uploader))
	return router
}

func performUpload(router *gin.Engine, body []byte) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)
	return recorder
}

func uploadBody(t *testing.T, content []byte, fileName string, mimeType string) []byte {
	t.Helper()
	payload, marshalErr := json.Marshal(UploadRequest{
		File:     base64.StdEncoding.EncodeToString(content),
		FileName: fileName,
		MimeType: mimeType,
	})
	if marshalErr != nil {
		t.Fatalf("marshal body: %v", marshalErr)
	}
	return payload
}

func TestHandleDriveUploadSuccess(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{token: "AT1"}, &driveStub{uploadStatus: http.StatusOK, permissionStatus: http.StatusOK})

	recorder := performUpload(router, uploadBody(t, []byte("0123456789"), "test.png", "image/png"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Success   bool   `json:"success"`
		FileID    string `json:"fileId"`
		PublicURL string `json:"publicUrl"`
	}
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &response); decodeErr != nil {
		t.Fatalf("decode response: %v", decodeErr)
	}
	if !response.Success || response.FileID != "FILE123" {
		t.Fatalf("unexpected response %+v", response)
	}
	if response.PublicURL != "https://lh3.googleusercontent.com/d/FILE123" {
		t.Fatalf("unexpected public url %q", response.PublicURL)
	}
}

func TestHandleDriveUploadRejectsMissingFields(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{token: "AT1"}, &driveStub{uploadStatus: http.StatusOK, permissionStatus: http.StatusOK})

	payload, _ := json.Marshal(UploadRequest{FileName: "test.png", MimeType: "image/png"})
	recorder := performUpload(router, payload)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleDriveUploadRejectsInvalidBase64(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{token: "AT1"}, &driveStub{uploadStatus: http.StatusOK, permissionStatus: http.StatusOK})

	payload, _ := json.Marshal(UploadRequest{File: "not-base64!!!", FileName: "test.png", MimeType: "image/png"})
	recorder := performUpload(router, payload)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleDriveUploadMethodNotAllowed(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{token: "AT1"}, &driveStub{uploadStatus: http.StatusOK, permissionStatus: http.StatusOK})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestHandleDriveUploadUnauthenticated(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{err: drivekit.ErrNotAuthenticated}, &driveStub{uploadStatus: http.StatusOK, permissionStatus: http.StatusOK})

	recorder := performUpload(router, uploadBody(t, []byte("x"), "test.png", "image/png"))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestHandleDriveUploadPermissionFailureKeepsFileID(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{token: "AT1"}, &driveStub{uploadStatus: http.StatusOK, permissionStatus: http.StatusForbidden})

	recorder := performUpload(router, uploadBody(t, []byte("x"), "test.png", "image/png"))
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		Success bool   `json:"success"`
		FileID  string `json:"fileId"`
	}
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &response); decodeErr != nil {
		t.Fatalf("decode response: %v", decodeErr)
	}
	if response.Success || response.FileID != "FILE123" {
		t.Fatalf("expected partial failure carrying the file id, got %+v", response)
	}
}

func TestHandleDriveUploadProviderRejection(t *testing.T) {
	router := newUploadRouter(t, staticTokenSource{token: "AT1"}, &driveStub{uploadStatus: http.StatusForbidden, permissionStatus: http.StatusOK})

	recorder := performUpload(router, uploadBody(t, []byte("x"), "test.png", "image/png"))
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", recorder.Code)
	}
	var response struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &response); decodeErr != nil {
		t.Fatalf("decode response: %v", decodeErr)
	}
	if response.Success || response.Error == "" {
		t.Fatalf("expected failure payload with provider message, got %+v", response)
	}
}
