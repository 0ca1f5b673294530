package rtp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v2"

	"github.com/HyphaGroup/oubliette/internal/logger"
)

// ConnectionStatus mirrors the provider-level connection lifecycle state,
// distinct from the finer-grained HealthStatus tracked by the monitor.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusError        ConnectionStatus = "error"
	StatusUnknown      ConnectionStatus = "unknown"
)

// HealthCheckConfig controls a provider's periodic probe.
type HealthCheckConfig struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	Interval int  `json:"interval" yaml:"interval"` // seconds
	Timeout  int  `json:"timeout" yaml:"timeout"`   // seconds
}

func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{Enabled: true, Interval: 60, Timeout: 10}
}

// RemoteProvider is the persisted, registered record of a remote tool
// provider endpoint.
type RemoteProvider struct {
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	Endpoint        string            `json:"endpoint" yaml:"endpoint"`
	Auth            AuthConfig        `json:"auth" yaml:"auth"`
	HealthCheck     HealthCheckConfig `json:"healthCheck" yaml:"healthCheck"`
	Status          ConnectionStatus  `json:"status" yaml:"status"`
	LastHealthCheck *time.Time        `json:"lastHealthCheck,omitempty" yaml:"lastHealthCheck,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// Redacted returns a copy of p with auth secret material blanked out, safe
// to serialize back across the host-command boundary.
func (p RemoteProvider) Redacted() RemoteProvider {
	cp := p
	cp.Auth = AuthConfig{Kind: p.Auth.Kind}
	switch p.Auth.Kind {
	case "bearer":
		cp.Auth.Token = "***"
	case "apiKey":
		cp.Auth.HeaderName = p.Auth.HeaderName
		cp.Auth.APIKey = "***"
	case "customHeaders":
		cp.Auth.Headers = make(map[string]string, len(p.Auth.Headers))
		for k := range p.Auth.Headers {
			cp.Auth.Headers[k] = "***"
		}
	}
	return cp
}

// ProviderRegistry is the CRUD store of registered RemoteProviders,
// persisted as a YAML document and indexed in memory. It is safe for
// concurrent use.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*RemoteProvider
	path      string
}

// NewProviderRegistry returns an empty registry backed by path (created on
// first Save if it doesn't yet exist).
func NewProviderRegistry(path string) *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]*RemoteProvider), path: path}
}

type providerFile struct {
	Providers []*RemoteProvider `yaml:"providers"`
}

// Load reads the registry's persisted document from disk, replacing the
// in-memory index. A missing file is not an error — the registry starts
// empty.
func (r *ProviderRegistry) Load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var doc providerFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[string]*RemoteProvider, len(doc.Providers))
	for _, p := range doc.Providers {
		r.providers[p.ID] = p
	}
	return nil
}

// Save persists the current in-memory index to disk.
func (r *ProviderRegistry) Save() error {
	r.mu.RLock()
	doc := providerFile{Providers: make([]*RemoteProvider, 0, len(r.providers))}
	for _, p := range r.providers {
		doc.Providers = append(doc.Providers, p)
	}
	r.mu.RUnlock()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Register adds a new provider, generating its ID, and persists the
// registry. name must be non-empty and endpoint must not already be
// registered under a different provider.
func (r *ProviderRegistry) Register(ctx context.Context, name, description, endpoint string, auth AuthConfig, health HealthCheckConfig) (*RemoteProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}

	now := time.Now()
	p := &RemoteProvider{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Endpoint:    endpoint,
		Auth:        auth,
		HealthCheck: health,
		Status:      StatusUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	for _, existing := range r.providers {
		if existing.Endpoint == endpoint {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: endpoint %s is already registered", ErrInvalidConfig, endpoint)
		}
	}
	r.providers[p.ID] = p
	r.mu.Unlock()

	if err := r.Save(); err != nil {
		return nil, err
	}
	logger.Info("registered rtp provider %s (%s) at %s", p.Name, p.ID, p.Endpoint)
	return p, nil
}

// Get returns a provider by id.
func (r *ProviderRegistry) Get(id string) (*RemoteProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// List returns every registered provider.
func (r *ProviderRegistry) List() []*RemoteProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RemoteProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// Update applies mutate to the provider under id and persists the result.
func (r *ProviderRegistry) Update(id string, mutate func(*RemoteProvider)) (*RemoteProvider, error) {
	r.mu.Lock()
	p, ok := r.providers[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrServerNotFound
	}
	mutate(p)
	p.UpdatedAt = time.Now()
	r.mu.Unlock()

	if err := r.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetStatus updates a provider's connection status and persists it.
func (r *ProviderRegistry) SetStatus(id string, status ConnectionStatus) error {
	_, err := r.Update(id, func(p *RemoteProvider) { p.Status = status })
	return err
}

// Unregister removes a provider from the registry and persists the result.
func (r *ProviderRegistry) Unregister(id string) error {
	r.mu.Lock()
	if _, ok := r.providers[id]; !ok {
		r.mu.Unlock()
		return ErrServerNotFound
	}
	delete(r.providers, id)
	r.mu.Unlock()

	return r.Save()
}

// MarshalRedacted renders the full provider list with secrets blanked,
// ready to cross the host-command boundary.
func (r *ProviderRegistry) MarshalRedacted() ([]byte, error) {
	list := r.List()
	redacted := make([]RemoteProvider, 0, len(list))
	for _, p := range list {
		redacted = append(redacted, p.Redacted())
	}
	return json.MarshalIndent(redacted, "", "  ")
}
