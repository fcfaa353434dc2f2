package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pizzart/driveup/internal/configstore"
	"github.com/pizzart/driveup/internal/drivekit"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

// IDTokenValidator validates a Google ID token against an expected audience.
type IDTokenValidator interface {
	Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error)
}

type googleIDTokenValidator struct {
	validator *idtoken.Validator
}

// NewGoogleIDTokenValidator constructs a validator backed by Google's public keys.
func NewGoogleIDTokenValidator(ctx context.Context) (IDTokenValidator, error) {
	validator, validatorErr := idtoken.NewValidator(ctx)
	if validatorErr != nil {
		return nil, validatorErr
	}
	return &googleIDTokenValidator{validator: validator}, nil
}

func (wrapper *googleIDTokenValidator) Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error) {
	return wrapper.validator.Validate(ctx, token, audience)
}

// AdminConfig configures admin authentication for the credential endpoints.
type AdminConfig struct {
	GoogleClientID string
	AllowedEmails  []string
}

// RequireGoogleAdmin validates the Authorization bearer ID token and checks the
// signer's email against the allow list.
func RequireGoogleAdmin(logger *zap.Logger, validator IDTokenValidator, configuration AdminConfig) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(configuration.AllowedEmails))
	for _, email := range configuration.AllowedEmails {
		allowed[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	return func(contextGin *gin.Context) {
		authorization := contextGin.GetHeader("Authorization")
		if !strings.HasPrefix(authorization, "Bearer ") {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
		if token == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		payload, validateErr := validator.Validate(contextGin, token, configuration.GoogleClientID)
		if validateErr != nil {
			logger.Warn("admin id token rejected",
				zap.String("code", "admin.invalid_token"),
				zap.Error(validateErr))
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_google_token"})
			return
		}
		issuerValue, okIssuer := payload.Claims["iss"].(string)
		if !okIssuer || (issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com") {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_issuer"})
			return
		}
		adminEmail, _ := payload.Claims["email"].(string)
		emailVerified, _ := payload.Claims["email_verified"].(bool)
		if adminEmail == "" || !emailVerified {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unverified_identity"})
			return
		}
		if _, ok := allowed[strings.ToLower(adminEmail)]; !ok {
			logger.Warn("non-admin identity on admin endpoint",
				zap.String("code", "admin.forbidden"),
				zap.String("email", adminEmail))
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not_an_admin"})
			return
		}

		contextGin.Set("admin_email", adminEmail)
		contextGin.Next()
	}
}

// HandleGetDriveConfig returns the stored credential document with secrets redacted.
func HandleGetDriveConfig(logger *zap.Logger, store configstore.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		raw, present, getErr := store.Get(contextGin, configstore.KeyDriveCredentials)
		if getErr != nil {
			logger.Error("config load failed",
				zap.String("code", "admin.config_load_failed"),
				zap.Error(getErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !present {
			contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "drive config not set"})
			return
		}
		var document drivekit.CredentialDocument
		if decodeErr := json.Unmarshal([]byte(raw), &document); decodeErr != nil {
			logger.Error("stored config is not valid json",
				zap.String("code", "admin.config_corrupt"),
				zap.Error(decodeErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, document.Redacted())
	}
}

// HandleSaveDriveConfig validates and persists the credential document.
func HandleSaveDriveConfig(logger *zap.Logger, store configstore.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		var document drivekit.CredentialDocument
		if bindErr := contextGin.BindJSON(&document); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if validateErr := document.Validate(); validateErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validateErr.Error()})
			return
		}
		document.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

		encoded, encodeErr := json.Marshal(document)
		if encodeErr != nil {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if setErr := store.Set(contextGin, configstore.KeyDriveCredentials, string(encoded)); setErr != nil {
			logger.Error("config save failed",
				zap.String("code", "admin.config_save_failed"),
				zap.Error(setErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		adminEmail := contextGin.GetString("admin_email")
		logger.Info("drive config updated",
			zap.String("code", "admin.config_saved"),
			zap.String("admin", adminEmail))
		contextGin.JSON(http.StatusOK, gin.H{"success": true})
	}
}
