// Package driveclient is a small client for the driveup upload endpoint,
// usable by other backend services that need to publish images without
// holding Drive credentials themselves.
package driveclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors exposed by the client.
var (
	ErrMissingBaseURL  = errors.New("driveclient.missing_base_url")
	ErrEmptyFile       = errors.New("driveclient.empty_file")
	ErrEmptyFileName   = errors.New("driveclient.empty_file_name")
	ErrEmptyMimeType   = errors.New("driveclient.empty_mime_type")
	ErrUploadRejected  = errors.New("driveclient.upload_rejected")
	ErrNotPublic       = errors.New("driveclient.uploaded_not_public")
	ErrUnauthenticated = errors.New("driveclient.unauthenticated")
)

// Config configures the Client.
type Config struct {
	// BaseURL is the root of the driveup service, e.g. "https://uploads.internal".
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client calls the upload endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New validates the configuration and constructs a Client.
func New(configuration Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// Upload is the decoded response of a successful upload.
type Upload struct {
	FileID    string
	PublicURL string
}

type uploadRequestBody struct {
	File     string `json:"file"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

type uploadResponseBody struct {
	Success   bool   `json:"success"`
	FileID    string `json:"fileId"`
	PublicURL string `json:"publicUrl"`
	Error     string `json:"error"`
}

// UploadFile sends the file bytes to the service and returns the created
// object's id and public URL. A 409 means the file exists but is not public
// yet; the returned Upload still carries the file id in that case, alongside
// ErrNotPublic.
func (client *Client) UploadFile(ctx context.Context, content []byte, fileName string, mimeType string) (Upload, error) {
	if len(content) == 0 {
		return Upload{}, ErrEmptyFile
	}
	if strings.TrimSpace(fileName) == "" {
		return Upload{}, ErrEmptyFileName
	}
	if strings.TrimSpace(mimeType) == "" {
		return Upload{}, ErrEmptyMimeType
	}

	payload, encodeErr := json.Marshal(uploadRequestBody{
		File:     base64.StdEncoding.EncodeToString(content),
		FileName: fileName,
		MimeType: mimeType,
	})
	if encodeErr != nil {
		return Upload{}, fmt.Errorf("driveclient.encode: %w", encodeErr)
	}

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/api/upload", bytes.NewReader(payload))
	if requestErr != nil {
		return Upload{}, fmt.Errorf("driveclient.request: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return Upload{}, fmt.Errorf("driveclient.transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if readErr != nil {
		return Upload{}, fmt.Errorf("driveclient.read: %w", readErr)
	}

	var decoded uploadResponseBody
	if unmarshalErr := json.Unmarshal(body, &decoded); unmarshalErr != nil {
		return Upload{}, fmt.Errorf("driveclient.decode: status %d: %w", response.StatusCode, unmarshalErr)
	}

	switch {
	case response.StatusCode == http.StatusOK && decoded.Success:
		return Upload{FileID: decoded.FileID, PublicURL: decoded.PublicURL}, nil
	case response.StatusCode == http.StatusUnauthorized:
		return Upload{}, fmt.Errorf("%w: %s", ErrUnauthenticated, decoded.Error)
	case response.StatusCode == http.StatusConflict:
		return Upload{FileID: decoded.FileID}, fmt.Errorf("%w: %s", ErrNotPublic, decoded.Error)
	default:
		return Upload{}, fmt.Errorf("%w: status %d: %s", ErrUploadRejected, response.StatusCode, decoded.Error)
	}
}
