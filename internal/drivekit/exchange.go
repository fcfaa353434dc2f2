package drivekit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	grantJWTBearer         = "jwt-bearer"
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type tokenEndpointErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postTokenForm sends one form-encoded grant to the token endpoint. A non-2xx
// status becomes a *TokenExchangeError; nothing here retries.
func postTokenForm(ctx context.Context, httpClient *http.Client, tokenURL string, grantLabel string, form url.Values) (tokenEndpointResponse, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if requestErr != nil {
		return tokenEndpointResponse{}, fmt.Errorf("drive.token_exchange.%s.request: %w", grantLabel, requestErr)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, doErr := httpClient.Do(request)
	if doErr != nil {
		return tokenEndpointResponse{}, fmt.Errorf("drive.token_exchange.%s.transport: %w", grantLabel, doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if readErr != nil {
		return tokenEndpointResponse{}, fmt.Errorf("drive.token_exchange.%s.read: %w", grantLabel, readErr)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		var providerError tokenEndpointErrorBody
		_ = json.Unmarshal(body, &providerError)
		return tokenEndpointResponse{}, &TokenExchangeError{
			Grant:         grantLabel,
			StatusCode:    response.StatusCode,
			ProviderError: providerError.Error,
			Description:   providerError.ErrorDescription,
		}
	}

	var parsed tokenEndpointResponse
	if decodeErr := json.Unmarshal(body, &parsed); decodeErr != nil {
		return tokenEndpointResponse{}, fmt.Errorf("drive.token_exchange.%s.decode: %w", grantLabel, decodeErr)
	}
	if parsed.AccessToken == "" {
		return tokenEndpointResponse{}, fmt.Errorf("drive.token_exchange.%s.decode: empty access token", grantLabel)
	}
	return parsed, nil
}

func exchangeJWTBearer(ctx context.Context, httpClient *http.Client, tokenURL string, assertion string) (tokenEndpointResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)
	return postTokenForm(ctx, httpClient, tokenURL, grantJWTBearer, form)
}

func exchangeAuthorizationCode(ctx context.Context, httpClient *http.Client, tokenURL string, configuration OAuthClientConfig, code string) (tokenEndpointResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", configuration.ClientID)
	form.Set("client_secret", configuration.ClientSecret)
	form.Set("redirect_uri", configuration.RedirectURI)
	return postTokenForm(ctx, httpClient, tokenURL, grantAuthorizationCode, form)
}

func exchangeRefreshToken(ctx context.Context, httpClient *http.Client, tokenURL string, configuration OAuthClientConfig, refreshToken string) (tokenEndpointResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", configuration.ClientID)
	form.Set("client_secret", configuration.ClientSecret)
	return postTokenForm(ctx, httpClient, tokenURL, grantRefreshToken, form)
}
