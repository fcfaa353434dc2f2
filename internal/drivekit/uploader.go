package drivekit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// UploadResult is the outcome of one upload attempt. Expected provider
// rejections are reported here rather than as errors so callers can render a
// message without unwrapping anything.
type UploadResult struct {
	Success   bool   `json:"success"`
	FileID    string `json:"fileId,omitempty"`
	PublicURL string `json:"publicUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PublicFileURL derives the stable direct-content URL for an uploaded object.
// The lh3 pattern is undocumented but matches every URL already persisted by
// the application, so it must not change shape.
func PublicFileURL(fileID string) string {
	return "https://lh3.googleusercontent.com/d/" + fileID
}

// Uploader performs authenticated multipart uploads and makes the results
// publicly readable. FolderID, when set, targets a shared folder; when empty
// the file lands in the credential owner's Drive root.
type Uploader struct {
	tokens     TokenSource
	httpClient *http.Client
	clock      Clock
	metrics    MetricsRecorder
	uploadURL  string
	filesURL   string
	folderID   string
}

// NewUploader constructs an uploader bound to one token source.
func NewUploader(tokens TokenSource, folderID string, httpClient *http.Client, clock Clock, metrics MetricsRecorder) (*Uploader, error) {
	if tokens == nil {
		return nil, fmt.Errorf("%w: token source must be provided", ErrNotConfigured)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Uploader{
		tokens:     tokens,
		httpClient: httpClient,
		clock:      clock,
		metrics:    metrics,
		uploadURL:  GoogleUploadURL,
		filesURL:   GoogleFilesURL,
		folderID:   folderID,
	}, nil
}

type uploadMetadata struct {
	Name     string   `json:"name"`
	Parents  []string `json:"parents,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}

type driveErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type driveFileBody struct {
	ID string `json:"id"`
}

// Upload sends the file bytes, grants public-read on the created object, and
// derives its public URL. Credential and authentication problems are returned
// as errors; provider rejections come back inside the result. A failed
// permission grant after a successful upload returns both a result carrying
// the file id and a *PermissionSetError.
func (uploader *Uploader) Upload(ctx context.Context, content []byte, fileName string, mimeType string) (UploadResult, error) {
	accessToken, tokenErr := uploader.tokens.Token(ctx)
	if tokenErr != nil {
		return UploadResult{}, tokenErr
	}

	uniqueName := fmt.Sprintf("pizzart_%d_%s", uploader.clock.Now().UnixMilli(), fileName)
	body, contentType, buildErr := buildMultipartBody(uploadMetadata{
		Name:     uniqueName,
		Parents:  uploader.parents(),
		MimeType: mimeType,
	}, content, mimeType)
	if buildErr != nil {
		return UploadResult{}, buildErr
	}

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, uploader.uploadURL, bytes.NewReader(body))
	if requestErr != nil {
		return UploadResult{}, fmt.Errorf("drive.upload.request: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)
	request.Header.Set("Content-Type", contentType)

	response, doErr := uploader.httpClient.Do(request)
	if doErr != nil {
		return UploadResult{}, fmt.Errorf("drive.upload.transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if readErr != nil {
		return UploadResult{}, fmt.Errorf("drive.upload.read: %w", readErr)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		uploader.metrics.Increment(MetricUploadRejected)
		return UploadResult{Success: false, Error: providerMessage(responseBody, response.StatusCode)}, nil
	}

	var created driveFileBody
	if decodeErr := json.Unmarshal(responseBody, &created); decodeErr != nil || created.ID == "" {
		return UploadResult{}, fmt.Errorf("drive.upload.decode: missing file id in provider response")
	}

	if permissionErr := uploader.setPublicPermission(ctx, created.ID, accessToken); permissionErr != nil {
		uploader.metrics.Increment(MetricPermissionFailed)
		var typed *PermissionSetError
		if errors.As(permissionErr, &typed) {
			return UploadResult{Success: false, FileID: created.ID, Error: typed.Message}, permissionErr
		}
		return UploadResult{Success: false, FileID: created.ID, Error: permissionErr.Error()}, permissionErr
	}

	uploader.metrics.Increment(MetricUploadSuccess)
	return UploadResult{
		Success:   true,
		FileID:    created.ID,
		PublicURL: PublicFileURL(created.ID),
	}, nil
}

// Delete removes an uploaded object, used to clean up after a failed
// permission grant. A 404 from the provider is treated as already deleted.
func (uploader *Uploader) Delete(ctx context.Context, fileID string) error {
	accessToken, tokenErr := uploader.tokens.Token(ctx)
	if tokenErr != nil {
		return tokenErr
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodDelete, uploader.filesURL+"/"+fileID, nil)
	if requestErr != nil {
		return fmt.Errorf("drive.delete.request: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, doErr := uploader.httpClient.Do(request)
	if doErr != nil {
		return fmt.Errorf("drive.delete.transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode == http.StatusNotFound {
		return nil
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		return fmt.Errorf("drive.delete: %s", providerMessage(body, response.StatusCode))
	}
	return nil
}

func (uploader *Uploader) parents() []string {
	if uploader.folderID == "" {
		return nil
	}
	return []string{uploader.folderID}
}

func (uploader *Uploader) setPublicPermission(ctx context.Context, fileID string, accessToken string) error {
	permission, encodeErr := json.Marshal(map[string]string{
		"role": "reader",
		"type": "anyone",
	})
	if encodeErr != nil {
		return fmt.Errorf("drive.permission_set.encode: %w", encodeErr)
	}

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, uploader.filesURL+"/"+fileID+"/permissions", bytes.NewReader(permission))
	if requestErr != nil {
		return fmt.Errorf("drive.permission_set.request: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)
	request.Header.Set("Content-Type", "application/json")

	response, doErr := uploader.httpClient.Do(request)
	if doErr != nil {
		return fmt.Errorf("drive.permission_set.transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		return &PermissionSetError{
			FileID:     fileID,
			StatusCode: response.StatusCode,
			Message:    providerMessage(body, response.StatusCode),
		}
	}
	return nil
}

func buildMultipartBody(metadata uploadMetadata, content []byte, mimeType string) ([]byte, string, error) {
	encodedMetadata, encodeErr := json.Marshal(metadata)
	if encodeErr != nil {
		return nil, "", fmt.Errorf("drive.upload.metadata: %w", encodeErr)
	}

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)

	metadataHeader := textproto.MIMEHeader{}
	metadataHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metadataPart, metadataErr := writer.CreatePart(metadataHeader)
	if metadataErr != nil {
		return nil, "", fmt.Errorf("drive.upload.body: %w", metadataErr)
	}
	if _, writeErr := metadataPart.Write(encodedMetadata); writeErr != nil {
		return nil, "", fmt.Errorf("drive.upload.body: %w", writeErr)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", mimeType)
	filePart, fileErr := writer.CreatePart(fileHeader)
	if fileErr != nil {
		return nil, "", fmt.Errorf("drive.upload.body: %w", fileErr)
	}
	if _, writeErr := filePart.Write(content); writeErr != nil {
		return nil, "", fmt.Errorf("drive.upload.body: %w", writeErr)
	}

	if closeErr := writer.Close(); closeErr != nil {
		return nil, "", fmt.Errorf("drive.upload.body: %w", closeErr)
	}
	contentType := "multipart/related; boundary=" + writer.Boundary()
	return buffer.Bytes(), contentType, nil
}

func providerMessage(body []byte, statusCode int) string {
	var parsed driveErrorBody
	if unmarshalErr := json.Unmarshal(body, &parsed); unmarshalErr == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("provider returned status %d", statusCode)
}
