package drivekit

import (
	"fmt"
	"strings"
)

// Google OAuth and Drive endpoints used by both credential flows.
const (
	GoogleTokenURL         = "https://oauth2.googleapis.com/token"
	GoogleAuthorizationURL = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleUploadURL        = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart&fields=id,webViewLink,webContentLink"
	GoogleFilesURL         = "https://www.googleapis.com/drive/v3/files"

	// ScopeDrive grants full Drive access; the service account writes into a
	// shared folder it does not own, which file-level scope cannot reach.
	ScopeDrive = "https://www.googleapis.com/auth/drive"
	// ScopeDriveFile grants access only to files the app itself creates.
	ScopeDriveFile = "https://www.googleapis.com/auth/drive.file"
)

// ServiceAccountConfig holds the server-side credential for the JWT-bearer flow.
type ServiceAccountConfig struct {
	Email         string
	PrivateKeyPEM string
	ProjectID     string
	FolderID      string
}

// Validate reports the first missing required field.
func (configuration ServiceAccountConfig) Validate() error {
	if strings.TrimSpace(configuration.Email) == "" {
		return fmt.Errorf("%w: service account email must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(configuration.PrivateKeyPEM) == "" {
		return fmt.Errorf("%w: service account private key must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(configuration.ProjectID) == "" {
		return fmt.Errorf("%w: project id must be provided", ErrNotConfigured)
	}
	return nil
}

// OAuthClientConfig holds the client credential for the user-delegated flow.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Validate reports the first missing required field.
func (configuration OAuthClientConfig) Validate() error {
	if strings.TrimSpace(configuration.ClientID) == "" {
		return fmt.Errorf("%w: oauth client id must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(configuration.ClientSecret) == "" {
		return fmt.Errorf("%w: oauth client secret must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(configuration.RedirectURI) == "" {
		return fmt.Errorf("%w: oauth redirect uri must be provided", ErrNotConfigured)
	}
	return nil
}

// CredentialDocument is the administrator-managed Drive credential record kept in
// the config store. Field names match the records the web frontend already stores.
type CredentialDocument struct {
	FolderID            string   `json:"folderId"`
	ServiceAccountEmail string   `json:"serviceAccountEmail"`
	PrivateKey          string   `json:"privateKey"`
	ClientID            string   `json:"clientId"`
	ClientSecret        string   `json:"clientSecret,omitempty"`
	ProjectID           string   `json:"projectId"`
	RedirectURIs        []string `json:"redirectUris,omitempty"`
	UpdatedAt           string   `json:"updatedAt"`
}

// Validate checks the fields every deployment needs regardless of flow.
func (document CredentialDocument) Validate() error {
	if strings.TrimSpace(document.FolderID) == "" {
		return fmt.Errorf("%w: folder id must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(document.ServiceAccountEmail) == "" {
		return fmt.Errorf("%w: service account email must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(document.PrivateKey) == "" {
		return fmt.Errorf("%w: private key must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(document.ClientID) == "" {
		return fmt.Errorf("%w: client id must be provided", ErrNotConfigured)
	}
	if strings.TrimSpace(document.ProjectID) == "" {
		return fmt.Errorf("%w: project id must be provided", ErrNotConfigured)
	}
	return nil
}

const redactedPlaceholder = "[redacted]"

// Redacted returns a copy safe to return to API callers.
func (document CredentialDocument) Redacted() CredentialDocument {
	clone := document
	if clone.PrivateKey != "" {
		clone.PrivateKey = redactedPlaceholder
	}
	if clone.ClientSecret != "" {
		clone.ClientSecret = redactedPlaceholder
	}
	return clone
}
