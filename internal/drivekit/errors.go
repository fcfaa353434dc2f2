package drivekit

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates a credential configuration is missing or incomplete.
	ErrNotConfigured = errors.New("drive.not_configured")
	// ErrNotAuthenticated indicates the user-delegated flow has no refresh token yet.
	ErrNotAuthenticated = errors.New("drive.not_authenticated")
	// ErrReauthenticationRequired indicates the stored refresh token was rejected and
	// the authorization flow must restart from the consent screen.
	ErrReauthenticationRequired = errors.New("drive.reauthentication_required")
	// ErrKeyImport indicates the service-account private key PEM could not be parsed.
	ErrKeyImport = errors.New("drive.key_import")
	// ErrSigning indicates the RS256 sign operation itself failed.
	ErrSigning = errors.New("drive.signing")
)

// TokenExchangeError carries the provider's rejection of a grant at the token endpoint.
type TokenExchangeError struct {
	Grant         string
	StatusCode    int
	ProviderError string
	Description   string
}

func (exchangeErr *TokenExchangeError) Error() string {
	if exchangeErr.ProviderError == "" {
		return fmt.Sprintf("drive.token_exchange.%s: status %d", exchangeErr.Grant, exchangeErr.StatusCode)
	}
	return fmt.Sprintf("drive.token_exchange.%s: status %d: %s: %s", exchangeErr.Grant, exchangeErr.StatusCode, exchangeErr.ProviderError, exchangeErr.Description)
}

// PermissionSetError reports a file that uploaded successfully but could not be made public.
// The object exists under FileID; only the permission grant needs to be retried.
type PermissionSetError struct {
	FileID     string
	StatusCode int
	Message    string
}

func (permissionErr *PermissionSetError) Error() string {
	return fmt.Sprintf("drive.permission_set: file %s: status %d: %s", permissionErr.FileID, permissionErr.StatusCode, permissionErr.Message)
}
