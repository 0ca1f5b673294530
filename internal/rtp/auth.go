package rtp

import (
	"net/http"
	"time"
)

// AuthPolicy applies credentials to an outbound request. Implementations
// mirror the variant set of a remote provider's auth configuration: none,
// bearer token, API key, or an arbitrary set of custom headers.
type AuthPolicy interface {
	// Apply sets whatever headers the policy requires on req.
	Apply(req *http.Request)
	// IsValid reports whether the held credential is still usable.
	IsValid() bool
	// Refresh rotates the credential if the policy supports it, returning
	// true if a rotation occurred.
	Refresh() (bool, error)
	// Type returns the policy name for logging/diagnostics.
	Type() string
}

// NoAuth attaches nothing. It is the default policy for providers with no
// auth configuration.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request)     {}
func (NoAuth) IsValid() bool           { return true }
func (NoAuth) Refresh() (bool, error)  { return false, nil }
func (NoAuth) Type() string            { return "None" }

// BearerAuth attaches an "Authorization: Bearer <token>" header. A bearer
// token with an ExpiresAt in the past is invalid and cannot self-refresh;
// the caller must replace it with a fresh token out of band.
type BearerAuth struct {
	Token     string
	ExpiresAt *time.Time
}

func (a *BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

func (a *BearerAuth) IsValid() bool {
	return !a.isExpired()
}

func (a *BearerAuth) isExpired() bool {
	if a.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(*a.ExpiresAt)
}

func (a *BearerAuth) Refresh() (bool, error) {
	if a.isExpired() {
		return false, ErrTokenExpired
	}
	return false, nil
}

func (a *BearerAuth) Type() string { return "Bearer" }

// ApiKeyAuth attaches an API key under an arbitrary header name, with an
// optional value prefix (e.g. header "Authorization", prefix "ApiKey ").
type ApiKeyAuth struct {
	HeaderName string
	APIKey     string
	Prefix     string
}

func (a *ApiKeyAuth) Apply(req *http.Request) {
	req.Header.Set(a.HeaderName, a.Prefix+a.APIKey)
}

func (a *ApiKeyAuth) IsValid() bool          { return true }
func (a *ApiKeyAuth) Refresh() (bool, error) { return false, nil }
func (a *ApiKeyAuth) Type() string           { return "ApiKey" }

// CustomHeadersAuth attaches an arbitrary fixed set of headers, for
// providers whose gateway expects a header shape none of the other
// policies cover.
type CustomHeadersAuth struct {
	Headers map[string]string
}

func (a *CustomHeadersAuth) Apply(req *http.Request) {
	for name, value := range a.Headers {
		req.Header.Set(name, value)
	}
}

func (a *CustomHeadersAuth) IsValid() bool          { return true }
func (a *CustomHeadersAuth) Refresh() (bool, error) { return false, nil }
func (a *CustomHeadersAuth) Type() string           { return "CustomHeaders" }

// AuthConfig is the persisted, serializable shape of a provider's auth
// policy; NewAuthPolicy turns one into a live AuthPolicy.
type AuthConfig struct {
	Kind       string            `json:"kind" yaml:"kind"` // "none" | "bearer" | "apiKey" | "customHeaders"
	Token      string            `json:"token,omitempty" yaml:"token,omitempty"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	HeaderName string            `json:"headerName,omitempty" yaml:"headerName,omitempty"`
	APIKey     string            `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Prefix     string            `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// NewAuthPolicy constructs the AuthPolicy variant named by cfg.Kind.
func NewAuthPolicy(cfg AuthConfig) AuthPolicy {
	switch cfg.Kind {
	case "bearer":
		return &BearerAuth{Token: cfg.Token, ExpiresAt: cfg.ExpiresAt}
	case "apiKey":
		headerName := cfg.HeaderName
		if headerName == "" {
			headerName = "X-API-Key"
		}
		return &ApiKeyAuth{HeaderName: headerName, APIKey: cfg.APIKey, Prefix: cfg.Prefix}
	case "customHeaders":
		return &CustomHeadersAuth{Headers: cfg.Headers}
	default:
		return NoAuth{}
	}
}
