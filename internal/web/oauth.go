package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pizzart/driveup/internal/drivekit"
	"go.uber.org/zap"
)

// MountOAuthRoutes registers the user-delegated authorization endpoints:
// /oauth/start, /oauth/callback, /oauth/status, and /oauth/logout.
func MountOAuthRoutes(router gin.IRouter, logger *zap.Logger, manager *drivekit.UserTokenManager) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if manager == nil {
		panic("user token manager is required")
	}

	router.GET("/oauth/start", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"authUrl": manager.AuthorizationURL()})
	})

	router.GET("/oauth/callback", func(contextGin *gin.Context) {
		if providerError := contextGin.Query("error"); providerError != "" {
			logger.Warn("consent denied or failed",
				zap.String("code", "oauth.consent_error"),
				zap.String("provider_error", providerError))
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": providerError})
			return
		}
		code := contextGin.Query("code")
		if strings.TrimSpace(code) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing authorization code"})
			return
		}

		if exchangeErr := manager.ExchangeCode(contextGin, code); exchangeErr != nil {
			var tokenErr *drivekit.TokenExchangeError
			if errors.As(exchangeErr, &tokenErr) {
				logger.Warn("authorization code rejected",
					zap.String("code", "oauth.exchange_rejected"),
					zap.Int("provider_status", tokenErr.StatusCode),
					zap.String("provider_error", tokenErr.ProviderError))
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": tokenErr.Error()})
				return
			}
			logger.Error("authorization code exchange failed",
				zap.String("code", "oauth.exchange_failed"),
				zap.Error(exchangeErr))
			contextGin.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"success": false, "error": exchangeErr.Error()})
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{"success": true})
	})

	router.GET("/oauth/status", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"authenticated": manager.IsAuthenticated()})
	})

	router.POST("/oauth/logout", func(contextGin *gin.Context) {
		if logoutErr := manager.Logout(contextGin); logoutErr != nil {
			logger.Error("logout failed",
				zap.String("code", "oauth.logout_failed"),
				zap.Error(logoutErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.Status(http.StatusNoContent)
	})
}
