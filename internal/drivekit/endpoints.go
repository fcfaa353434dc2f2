package drivekit

// Endpoints overrides the provider URLs on a constructed component. Empty
// fields keep the Google defaults. The provider's URL layout is observed, not
// contracted, so deployments behind an API proxy can swap every URL here.
type Endpoints struct {
	TokenURL         string
	AuthorizationURL string
	UploadURL        string
	FilesURL         string
}

// OverrideEndpoints replaces the token endpoint used for assertion exchanges.
func (source *ServiceAccountTokenSource) OverrideEndpoints(endpoints Endpoints) {
	if endpoints.TokenURL != "" {
		source.tokenURL = endpoints.TokenURL
	}
}

// OverrideEndpoints replaces the authorization and token endpoints.
func (manager *UserTokenManager) OverrideEndpoints(endpoints Endpoints) {
	if endpoints.TokenURL != "" {
		manager.tokenURL = endpoints.TokenURL
	}
	if endpoints.AuthorizationURL != "" {
		manager.authorizationURL = endpoints.AuthorizationURL
	}
}

// OverrideEndpoints replaces the upload and file endpoints.
func (uploader *Uploader) OverrideEndpoints(endpoints Endpoints) {
	if endpoints.UploadURL != "" {
		uploader.uploadURL = endpoints.UploadURL
	}
	if endpoints.FilesURL != "" {
		uploader.filesURL = endpoints.FilesURL
	}
}
