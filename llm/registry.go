package llm

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Provider kinds.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// Endpoint describes one named provider endpoint. Several endpoints may share
// a kind: Hack Club AI and DeepSeek are both OpenAI-compatible.
type Endpoint struct {
	Kind         string
	APIKey       string
	APIKeyEnv    string // Environment variable consulted when APIKey is empty
	BaseURL      string // OpenAI-compatible base URL
	Organization string
	Host         string // Ollama host
	Model        string // Default model
	// Anonymous endpoints need no API key.
	Anonymous bool
}

// LLMPreference is one entry of a use's ordered provider list.
type LLMPreference struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int64
	Timeout     time.Duration
}

// ClientKey uniquely identifies a resolved client configuration.
type ClientKey struct {
	Name         string
	Kind         string
	Model        string
	APIKey       string
	Host         string
	BaseURL      string
	Organization string
}

// Resolved is a preference whose endpoint is enabled and configured.
type Resolved struct {
	Key         ClientKey
	Temperature *float64
	MaxTokens   int64
	Timeout     time.Duration
}

// ProviderRegistry decides which configured endpoints can serve a
// preference list. Client construction is left to the caller.
type ProviderRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	enabled   map[string]bool
	getenv    func(string) string
}

// NewProviderRegistry creates a registry. An empty enabled list enables
// every endpoint.
func NewProviderRegistry(endpoints map[string]Endpoint, enabled []string) *ProviderRegistry {
	r := &ProviderRegistry{
		endpoints: make(map[string]Endpoint, len(endpoints)),
		enabled:   make(map[string]bool),
		getenv:    os.Getenv,
	}
	for name, ep := range endpoints {
		r.endpoints[name] = ep
	}
	for _, name := range enabled {
		r.enabled[name] = true
	}
	return r
}

// IsProviderEnabled checks if an endpoint is enabled.
func (r *ProviderRegistry) IsProviderEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isEnabledUnlocked(name)
}

func (r *ProviderRegistry) isEnabledUnlocked(name string) bool {
	if _, ok := r.endpoints[name]; !ok {
		return false
	}
	return len(r.enabled) == 0 || r.enabled[name]
}

// IsProviderConfigured checks if an endpoint has what it needs to be called.
func (r *ProviderRegistry) IsProviderConfigured(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.resolveUnlocked(name, "")
	return err == nil
}

// Resolve returns the usable providers of prefs, in order. Unknown, disabled
// or unconfigured entries are skipped. It fails only when nothing remains.
func (r *ProviderRegistry) Resolve(use string, prefs []LLMPreference) ([]Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Resolved
	var skipped []string
	for _, pref := range prefs {
		if !r.isEnabledUnlocked(pref.Provider) {
			skipped = append(skipped, pref.Provider)
			continue
		}
		key, err := r.resolveUnlocked(pref.Provider, pref.Model)
		if err != nil {
			skipped = append(skipped, pref.Provider)
			continue
		}
		out = append(out, Resolved{
			Key:         *key,
			Temperature: pref.Temperature,
			MaxTokens:   pref.MaxTokens,
			Timeout:     pref.Timeout,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no available provider from preferences %v (enabled: %v)", use, skipped, r.enabledList())
	}
	return out, nil
}

func (r *ProviderRegistry) resolveUnlocked(name, modelOverride string) (*ClientKey, error) {
	ep, ok := r.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	key := &ClientKey{Name: name, Kind: ep.Kind, Model: modelOverride}
	if key.Model == "" {
		key.Model = ep.Model
	}

	apiKey := ep.APIKey
	if apiKey == "" && ep.APIKeyEnv != "" {
		apiKey = r.getenv(ep.APIKeyEnv)
	}

	switch ep.Kind {
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%s: anthropic API key not configured", name)
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = "claude-haiku-4-5"
		}

	case ProviderOllama:
		host := ep.Host
		if host == "" {
			host = r.getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		key.Host = host
		if key.Model == "" {
			key.Model = r.getenv("OLLAMA_MODEL")
		}
		if key.Model == "" {
			return nil, fmt.Errorf("%s: ollama model not specified and no default configured", name)
		}

	case ProviderOpenAI:
		if apiKey == "" && !ep.Anonymous {
			return nil, fmt.Errorf("%s: API key not configured", name)
		}
		key.APIKey = apiKey
		key.BaseURL = ep.BaseURL
		key.Organization = ep.Organization

	default:
		return nil, fmt.Errorf("%s: unknown provider kind %q", name, ep.Kind)
	}

	return key, nil
}

func (r *ProviderRegistry) enabledList() []string {
	var names []string
	for name := range r.endpoints {
		if r.isEnabledUnlocked(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
