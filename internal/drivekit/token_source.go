package drivekit

import (
	"context"
	"net/http"
	"sync"
)

// TokenSource returns a currently valid bearer token, renewing it when stale.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ServiceAccountTokenSource mints short-lived access tokens by signing a fresh
// JWT-bearer assertion whenever the cached token goes stale. There is no
// refresh token in this flow. Renewal is serialized so one credential set never
// issues overlapping exchanges.
type ServiceAccountTokenSource struct {
	configuration ServiceAccountConfig
	httpClient    *http.Client
	clock         Clock
	metrics       MetricsRecorder
	tokenURL      string
	scope         string

	mutex sync.Mutex
	state TokenState
}

// NewServiceAccountTokenSource validates the credential and constructs a source.
func NewServiceAccountTokenSource(configuration ServiceAccountConfig, httpClient *http.Client, clock Clock, metrics MetricsRecorder) (*ServiceAccountTokenSource, error) {
	if validateErr := configuration.Validate(); validateErr != nil {
		return nil, validateErr
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
	return &ServiceAccountTokenSource{
		configuration: configuration,
		httpClient:    httpClient,
		clock:         clock,
		metrics:       metrics,
		tokenURL:      GoogleTokenURL,
		scope:         ScopeDrive,
	}, nil
}

// Token returns the cached access token while fresh, otherwise signs and
// exchanges a new assertion. The assertion is built before any network call, so
// a malformed key fails without touching the provider.
func (source *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	source.mutex.Lock()
	defer source.mutex.Unlock()

	now := source.clock.Now()
	if source.state.Fresh(now) {
		source.metrics.Increment(MetricTokenCacheHit)
		return source.state.AccessToken, nil
	}

	assertion, assertionErr := BuildAssertion(source.configuration.Email, source.configuration.PrivateKeyPEM, source.tokenURL, source.scope, now)
	if assertionErr != nil {
		return "", assertionErr
	}

	exchanged, exchangeErr := exchangeJWTBearer(ctx, source.httpClient, source.tokenURL, assertion)
	if exchangeErr != nil {
		return "", exchangeErr
	}
	source.metrics.Increment(MetricAssertionExchange)

	source.state = TokenState{
		AccessToken:         exchanged.AccessToken,
		ExpiresAtUnixMillis: now.UnixMilli() + exchanged.ExpiresIn*1000,
	}
	return source.state.AccessToken, nil
}
