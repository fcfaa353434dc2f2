package drivekit

import "time"

// TokenState is the mutable record owned by exactly one token manager instance.
// RefreshToken is empty for the service-account flow, which signs a fresh
// assertion on every expiry instead of refreshing.
type TokenState struct {
	AccessToken         string `json:"accessToken"`
	RefreshToken        string `json:"refreshToken,omitempty"`
	ExpiresAtUnixMillis int64  `json:"expiresAt"`
}

// StalenessBuffer is the safety margin subtracted from token expiry so a token
// checked as valid cannot expire between the check and its use.
const StalenessBuffer = 5 * time.Minute

// Fresh reports whether the access token is still usable at the given instant.
func (state TokenState) Fresh(now time.Time) bool {
	if state.AccessToken == "" {
		return false
	}
	return now.UnixMilli() < state.ExpiresAtUnixMillis-StalenessBuffer.Milliseconds()
}
