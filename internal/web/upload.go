package web

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pizzart/driveup/internal/drivekit"
	"go.uber.org/zap"
)

// UploadRequest is the JSON body accepted by the upload endpoint. Field names
// match the payload the web frontend already sends to the edge function.
type UploadRequest struct {
	File     string `json:"file"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

// HandleDriveUpload accepts a base64-encoded file and uploads it through the
// given uploader. Authentication problems map to 401, a provider rejection to
// 502, and a failed permission grant to 409 with the file id preserved so the
// caller can retry only the grant.
func HandleDriveUpload(logger *zap.Logger, uploader *drivekit.Uploader) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if uploader == nil {
		panic("uploader is required")
	}

	return func(contextGin *gin.Context) {
		var inbound UploadRequest
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_json"})
			return
		}
		if strings.TrimSpace(inbound.File) == "" || strings.TrimSpace(inbound.FileName) == "" || strings.TrimSpace(inbound.MimeType) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing required fields: file, fileName, mimeType"})
			return
		}

		content, decodeErr := base64.StdEncoding.DecodeString(inbound.File)
		if decodeErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "file must be base64-encoded"})
			return
		}

		result, uploadErr := uploader.Upload(contextGin, content, inbound.FileName, inbound.MimeType)
		if uploadErr != nil {
			var permissionErr *drivekit.PermissionSetError
			switch {
			case errors.Is(uploadErr, drivekit.ErrNotAuthenticated), errors.Is(uploadErr, drivekit.ErrReauthenticationRequired):
				logger.Warn("upload rejected without valid credential",
					zap.String("code", "upload.unauthenticated"),
					zap.Error(uploadErr))
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": uploadErr.Error()})
			case errors.As(uploadErr, &permissionErr):
				logger.Error("uploaded file could not be made public",
					zap.String("code", "upload.permission_failed"),
					zap.String("file_id", permissionErr.FileID),
					zap.Int("provider_status", permissionErr.StatusCode))
				contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"success": false,
					"fileId":  permissionErr.FileID,
					"error":   "uploaded but not public: " + permissionErr.Message,
				})
			default:
				logger.Error("upload failed",
					zap.String("code", "upload.error"),
					zap.Error(uploadErr))
				contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": uploadErr.Error()})
			}
			return
		}

		if !result.Success {
			logger.Warn("provider rejected upload",
				zap.String("code", "upload.rejected"),
				zap.String("file_name", inbound.FileName),
				zap.String("provider_error", result.Error))
			contextGin.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"success": false, "error": result.Error})
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"success":   true,
			"fileId":    result.FileID,
			"publicUrl": result.PublicURL,
		})
	}
}
