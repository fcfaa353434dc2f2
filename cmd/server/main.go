package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pizzart/driveup/internal/configstore"
	"github.com/pizzart/driveup/internal/dbconn"
	"github.com/pizzart/driveup/internal/drivekit"
	"github.com/pizzart/driveup/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildIDTokenValidator = func(ctx context.Context) (web.IDTokenValidator, error) {
	return web.NewGoogleIDTokenValidator(ctx)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "driveupd",
		Short:   "Drive upload service with service-account and user-delegated OAuth credential flows",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("database_url", "", "Database URL for token state and config (postgres:// or sqlite://; leave empty for in-memory stores)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for browser clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")
	rootCmd.Flags().String("service_account_email", "", "Google service account email for the server-side upload flow")
	rootCmd.Flags().String("service_account_key", "", "PEM-encoded PKCS8 RSA private key for the service account")
	rootCmd.Flags().String("project_id", "", "Google Cloud project id of the service account")
	rootCmd.Flags().String("drive_folder_id", "", "Shared Drive folder receiving service-account uploads")
	rootCmd.Flags().String("oauth_client_id", "", "OAuth client id for the user-delegated flow")
	rootCmd.Flags().String("oauth_client_secret", "", "OAuth client secret for the user-delegated flow")
	rootCmd.Flags().String("oauth_redirect_uri", "", "Redirect URI registered for the OAuth client")
	rootCmd.Flags().String("admin_client_id", "", "Google Web OAuth Client ID accepted on admin endpoints")
	rootCmd.Flags().StringSlice("admin_emails", []string{}, "Google account emails allowed to manage the Drive credential config")

	for _, flagName := range []string{
		"listen_addr", "database_url", "enable_cors", "cors_allowed_origins",
		"service_account_email", "service_account_key", "project_id", "drive_folder_id",
		"oauth_client_id", "oauth_client_secret", "oauth_redirect_uri",
		"admin_client_id", "admin_emails",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeNoCredentialFlow    = "config.no_credential_flow"
	configCodeIncompleteSA        = "config.incomplete_service_account"
	configCodeIncompleteOAuth     = "config.incomplete_oauth_client"
	configCodeIncompleteAdmin     = "config.incomplete_admin"
	configCodeUninitializedServer = "config.uninitialized_server_config"
	configCodeValidatorInit       = "config.id_token_validator_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

// ServerSettings is the validated process configuration.
type ServerSettings struct {
	ListenAddr         string
	DatabaseURL        string
	EnableCORS         bool
	CORSAllowedOrigins []string
	ServiceAccount     drivekit.ServiceAccountConfig
	OAuthClient        drivekit.OAuthClientConfig
	Admin              web.AdminConfig
}

// ServiceAccountConfigured reports whether the server-side flow has all its fields.
func (settings ServerSettings) ServiceAccountConfigured() bool {
	return settings.ServiceAccount.Validate() == nil
}

// OAuthClientConfigured reports whether the user-delegated flow has all its fields.
func (settings ServerSettings) OAuthClientConfigured() bool {
	return settings.OAuthClient.Validate() == nil
}

// AdminConfigured reports whether the admin endpoints can be mounted.
func (settings ServerSettings) AdminConfigured() bool {
	return settings.Admin.GoogleClientID != "" && len(settings.Admin.AllowedEmails) > 0
}

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	settings, loadErr := LoadServerSettings()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, settings))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerSettings reads and validates flags and environment. Partial
// credential sets are configuration errors; a fully absent flow is allowed as
// long as the other flow, or a database-stored credential document, exists.
func LoadServerSettings() (ServerSettings, error) {
	settings := ServerSettings{
		ListenAddr:         viper.GetString("listen_addr"),
		DatabaseURL:        viper.GetString("database_url"),
		EnableCORS:         viper.GetBool("enable_cors"),
		CORSAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
		ServiceAccount: drivekit.ServiceAccountConfig{
			Email:         viper.GetString("service_account_email"),
			PrivateKeyPEM: viper.GetString("service_account_key"),
			ProjectID:     viper.GetString("project_id"),
			FolderID:      viper.GetString("drive_folder_id"),
		},
		OAuthClient: drivekit.OAuthClientConfig{
			ClientID:     viper.GetString("oauth_client_id"),
			ClientSecret: viper.GetString("oauth_client_secret"),
			RedirectURI:  viper.GetString("oauth_redirect_uri"),
		},
		Admin: web.AdminConfig{
			GoogleClientID: viper.GetString("admin_client_id"),
			AllowedEmails:  viper.GetStringSlice("admin_emails"),
		},
	}

	saFields := []string{settings.ServiceAccount.Email, settings.ServiceAccount.PrivateKeyPEM, settings.ServiceAccount.ProjectID}
	if anyPresent(saFields) && !allPresent(saFields) {
		return ServerSettings{}, configError(configCodeIncompleteSA, "service_account_email, service_account_key, and project_id must all be provided together")
	}
	oauthFields := []string{settings.OAuthClient.ClientID, settings.OAuthClient.ClientSecret, settings.OAuthClient.RedirectURI}
	if anyPresent(oauthFields) && !allPresent(oauthFields) {
		return ServerSettings{}, configError(configCodeIncompleteOAuth, "oauth_client_id, oauth_client_secret, and oauth_redirect_uri must all be provided together")
	}
	if settings.Admin.GoogleClientID != "" && len(settings.Admin.AllowedEmails) == 0 {
		return ServerSettings{}, configError(configCodeIncompleteAdmin, "admin_emails must be provided when admin_client_id is set")
	}
	if !settings.ServiceAccountConfigured() && !settings.OAuthClientConfigured() && settings.DatabaseURL == "" {
		return ServerSettings{}, configError(configCodeNoCredentialFlow, "configure a service account, an oauth client, or a database holding the credential document")
	}

	return settings, nil
}

func anyPresent(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

func allPresent(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			return false
		}
	}
	return true
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	settings, ok := contextValue.(ServerSettings)
	if !ok {
		return configError(configCodeUninitializedServer, "server configuration not prepared; PreRunE must execute before RunE")
	}

	startupCtx := context.Background()

	var configStore configstore.Store
	var tokenStore drivekit.TokenStateStore
	if settings.DatabaseURL != "" {
		gormDB, driverLabel, openErr := dbconn.Open(settings.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		databaseConfigStore, storeErr := configstore.NewDatabaseStore(startupCtx, gormDB)
		if storeErr != nil {
			return storeErr
		}
		configStore = databaseConfigStore
		logger.Info("using persistent stores", zap.String("driver", driverLabel))

		if settings.OAuthClientConfigured() {
			databaseTokenStore, tokenStoreErr := drivekit.NewDatabaseTokenStateStore(startupCtx, gormDB, settings.OAuthClient.ClientID, nil)
			if tokenStoreErr != nil {
				return tokenStoreErr
			}
			tokenStore = databaseTokenStore
		}
	} else {
		configStore = configstore.NewMemoryStore()
		tokenStore = drivekit.NewMemoryTokenStateStore()
		logger.Info("using in-memory stores")
	}

	if !settings.ServiceAccountConfigured() {
		if loaded, found := loadStoredServiceAccount(startupCtx, logger, configStore); found {
			settings.ServiceAccount = loaded
		}
	}

	clock := drivekit.NewSystemClock()
	metrics := drivekit.NewCounterMetrics()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if settings.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, settings.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if settings.ServiceAccountConfigured() {
		tokenSource, sourceErr := drivekit.NewServiceAccountTokenSource(settings.ServiceAccount, nil, clock, metrics)
		if sourceErr != nil {
			return sourceErr
		}
		uploader, uploaderErr := drivekit.NewUploader(tokenSource, settings.ServiceAccount.FolderID, nil, clock, metrics)
		if uploaderErr != nil {
			return uploaderErr
		}
		api.POST("/upload", web.HandleDriveUpload(logger, uploader))
		logger.Info("service-account upload flow enabled",
			zap.String("service_account", settings.ServiceAccount.Email),
			zap.String("folder_id", settings.ServiceAccount.FolderID))
	}

	if settings.OAuthClientConfigured() {
		manager, managerErr := drivekit.NewUserTokenManager(startupCtx, settings.OAuthClient, tokenStore, nil, clock, metrics)
		if managerErr != nil {
			return managerErr
		}
		web.MountOAuthRoutes(api, logger, manager)

		userUploader, uploaderErr := drivekit.NewUploader(manager, "", nil, clock, metrics)
		if uploaderErr != nil {
			return uploaderErr
		}
		api.POST("/my-drive/upload", web.HandleDriveUpload(logger, userUploader))
		logger.Info("user-delegated flow enabled", zap.String("client_id", settings.OAuthClient.ClientID))
	}

	if settings.AdminConfigured() {
		validator, validatorErr := buildIDTokenValidator(command.Context())
		if validatorErr != nil {
			return fmt.Errorf("%s: %w", configCodeValidatorInit, validatorErr)
		}
		admin := api.Group("/admin")
		admin.Use(web.RequireGoogleAdmin(logger, validator, settings.Admin))
		admin.GET("/drive-config", web.HandleGetDriveConfig(logger, configStore))
		admin.PUT("/drive-config", web.HandleSaveDriveConfig(logger, configStore))
		logger.Info("admin config endpoints enabled", zap.Int("admin_count", len(settings.Admin.AllowedEmails)))
	}

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", settings.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// loadStoredServiceAccount falls back to the administrator-managed credential
// document when the process environment carries no service-account flags.
func loadStoredServiceAccount(ctx context.Context, logger *zap.Logger, store configstore.Store) (drivekit.ServiceAccountConfig, bool) {
	raw, present, getErr := store.Get(ctx, configstore.KeyDriveCredentials)
	if getErr != nil || !present {
		return drivekit.ServiceAccountConfig{}, false
	}
	var document drivekit.CredentialDocument
	if decodeErr := json.Unmarshal([]byte(raw), &document); decodeErr != nil {
		logger.Warn("stored drive credential document is not valid json",
			zap.String("code", "config.stored_document_corrupt"),
			zap.Error(decodeErr))
		return drivekit.ServiceAccountConfig{}, false
	}
	loaded := drivekit.ServiceAccountConfig{
		Email:         document.ServiceAccountEmail,
		PrivateKeyPEM: document.PrivateKey,
		ProjectID:     document.ProjectID,
		FolderID:      document.FolderID,
	}
	if loaded.Validate() != nil {
		return drivekit.ServiceAccountConfig{}, false
	}
	logger.Info("service-account credential loaded from config store")
	return loaded, true
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
