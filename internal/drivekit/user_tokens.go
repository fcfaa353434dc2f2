package drivekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// UserTokenManager drives the authorization-code flow for one OAuth client:
// consent URL construction, code exchange, transparent refresh, and logout.
// The refresh token is persisted through the injected TokenStateStore so the
// user is never re-prompted while consent stands.
type UserTokenManager struct {
	configuration OAuthClientConfig
	store         TokenStateStore
	httpClient    *http.Client
	clock         Clock
	metrics       MetricsRecorder

	authorizationURL string
	tokenURL         string
	scope            string

	mutex sync.Mutex
	state TokenState
}

// NewUserTokenManager validates the client credential and loads any persisted
// token state from the store.
func NewUserTokenManager(ctx context.Context, configuration OAuthClientConfig, store TokenStateStore, httpClient *http.Client, clock Clock, metrics MetricsRecorder) (*UserTokenManager, error) {
	if validateErr := configuration.Validate(); validateErr != nil {
		return nil, validateErr
	}
	if store == nil {
		store = NewMemoryTokenStateStore()
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

	manager := &UserTokenManager{
		configuration:    configuration,
		store:            store,
		httpClient:       httpClient,
		clock:            clock,
		metrics:          metrics,
		authorizationURL: GoogleAuthorizationURL,
		tokenURL:         GoogleTokenURL,
		scope:            ScopeDriveFile,
	}

	persisted, present, loadErr := store.Load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}
	if present {
		manager.state = persisted
	}
	return manager, nil
}

// AuthorizationURL builds the consent-screen URL. access_type=offline and
// prompt=consent are required so the provider issues a refresh token even when
// the user authorized before. No network call is made.
func (manager *UserTokenManager) AuthorizationURL() string {
	query := url.Values{}
	query.Set("client_id", manager.configuration.ClientID)
	query.Set("redirect_uri", manager.configuration.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", manager.scope)
	query.Set("access_type", "offline")
	query.Set("prompt", "consent")
	return manager.authorizationURL + "?" + query.Encode()
}

// ExchangeCode trades the authorization code delivered on the redirect callback
// for an access/refresh token pair and persists the resulting state. Codes are
// single-use: a replayed code surfaces the provider's *TokenExchangeError.
func (manager *UserTokenManager) ExchangeCode(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("drive.token_exchange.%s: authorization code must be non-empty", grantAuthorizationCode)
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	exchanged, exchangeErr := exchangeAuthorizationCode(ctx, manager.httpClient, manager.tokenURL, manager.configuration, code)
	if exchangeErr != nil {
		return exchangeErr
	}
	manager.metrics.Increment(MetricCodeExchange)

	manager.state = TokenState{
		AccessToken:         exchanged.AccessToken,
		RefreshToken:        exchanged.RefreshToken,
		ExpiresAtUnixMillis: manager.clock.Now().UnixMilli() + exchanged.ExpiresIn*1000,
	}
	return manager.store.Save(ctx, manager.state)
}

// IsAuthenticated reports whether a refresh token is available.
func (manager *UserTokenManager) IsAuthenticated() bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.state.RefreshToken != ""
}

// Token returns a currently valid access token, refreshing transparently when
// stale. A provider rejection of the refresh token clears the stored state and
// returns ErrReauthenticationRequired: the only recovery is a fresh consent.
func (manager *UserTokenManager) Token(ctx context.Context) (string, error) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.state.RefreshToken == "" {
		return "", ErrNotAuthenticated
	}

	now := manager.clock.Now()
	if manager.state.Fresh(now) {
		manager.metrics.Increment(MetricTokenCacheHit)
		return manager.state.AccessToken, nil
	}

	refreshed, refreshErr := exchangeRefreshToken(ctx, manager.httpClient, manager.tokenURL, manager.configuration, manager.state.RefreshToken)
	if refreshErr != nil {
		var exchangeErr *TokenExchangeError
		if errors.As(refreshErr, &exchangeErr) && exchangeErr.StatusCode >= 400 && exchangeErr.StatusCode < 500 {
			manager.metrics.Increment(MetricReauthRequired)
			manager.state = TokenState{}
			if clearErr := manager.store.Clear(ctx); clearErr != nil {
				return "", fmt.Errorf("%w: %v", ErrReauthenticationRequired, clearErr)
			}
			return "", fmt.Errorf("%w: %v", ErrReauthenticationRequired, exchangeErr)
		}
		return "", refreshErr
	}
	manager.metrics.Increment(MetricTokenRefresh)

	manager.state.AccessToken = refreshed.AccessToken
	manager.state.ExpiresAtUnixMillis = now.UnixMilli() + refreshed.ExpiresIn*1000
	if refreshed.RefreshToken != "" {
		// Some providers rotate the refresh token on use.
		manager.state.RefreshToken = refreshed.RefreshToken
	}
	if saveErr := manager.store.Save(ctx, manager.state); saveErr != nil {
		return "", saveErr
	}
	return manager.state.AccessToken, nil
}

// Logout clears the in-memory and persisted token state.
func (manager *UserTokenManager) Logout(ctx context.Context) error {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	manager.state = TokenState{}
	return manager.store.Clear(ctx)
}
