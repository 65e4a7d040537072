package llm

import (
	"testing"
	"time"
)

func testEndpoints() map[string]Endpoint {
	return map[string]Endpoint{
		"hackclub": {Kind: ProviderOpenAI, BaseURL: "https://ai.hackclub.com", Anonymous: true},
		"deepseek": {Kind: ProviderOpenAI, BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat", APIKeyEnv: "DEEPSEEK_API_KEY"},
		"claude":   {Kind: ProviderAnthropic},
		"local":    {Kind: ProviderOllama, Model: "llama3.2"},
	}
}

func newTestRegistry(enabled []string, env map[string]string) *ProviderRegistry {
	r := NewProviderRegistry(testEndpoints(), enabled)
	r.getenv = func(k string) string { return env[k] }
	return r
}

func TestProviderRegistry_IsProviderEnabled(t *testing.T) {
	registry := newTestRegistry([]string{"hackclub", "local"}, nil)

	if !registry.IsProviderEnabled("hackclub") {
		t.Error("hackclub should be enabled")
	}
	if registry.IsProviderEnabled("deepseek") {
		t.Error("deepseek should not be enabled")
	}
	if registry.IsProviderEnabled("missing") {
		t.Error("unknown endpoints are never enabled")
	}

	all := newTestRegistry(nil, nil)
	if !all.IsProviderEnabled("deepseek") {
		t.Error("empty enabled list should enable every endpoint")
	}
}

func TestProviderRegistry_IsProviderConfigured(t *testing.T) {
	registry := newTestRegistry(nil, nil)
	if !registry.IsProviderConfigured("hackclub") {
		t.Error("anonymous endpoint needs no key")
	}
	if registry.IsProviderConfigured("deepseek") {
		t.Error("deepseek should not be configured without a key")
	}
	if registry.IsProviderConfigured("claude") {
		t.Error("anthropic should not be configured without a key")
	}
	if !registry.IsProviderConfigured("local") {
		t.Error("ollama with a model should be configured")
	}

	withKey := newTestRegistry(nil, map[string]string{"DEEPSEEK_API_KEY": "sk-test"})
	if !withKey.IsProviderConfigured("deepseek") {
		t.Error("deepseek should pick up its key from the environment")
	}
}

func TestProviderRegistry_Resolve(t *testing.T) {
	registry := newTestRegistry(nil, map[string]string{"DEEPSEEK_API_KEY": "sk-test"})

	got, err := registry.Resolve("chat", []LLMPreference{
		{Provider: "hackclub", Timeout: 10 * time.Second},
		{Provider: "claude"},
		{Provider: "deepseek", Temperature: Float(0.7), MaxTokens: 150, Timeout: 20 * time.Second},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("resolved %d providers, want 2 (claude has no key)", len(got))
	}
	if got[0].Key.Name != "hackclub" || got[0].Key.BaseURL != "https://ai.hackclub.com" || got[0].Timeout != 10*time.Second {
		t.Errorf("first = %+v", got[0])
	}
	ds := got[1]
	if ds.Key.Model != "deepseek-chat" || ds.Key.APIKey != "sk-test" || ds.MaxTokens != 150 || *ds.Temperature != 0.7 {
		t.Errorf("deepseek = %+v", ds)
	}
}

func TestProviderRegistry_ResolveModelOverride(t *testing.T) {
	registry := newTestRegistry(nil, map[string]string{"DEEPSEEK_API_KEY": "sk"})
	got, err := registry.Resolve("commit", []LLMPreference{{Provider: "deepseek", Model: "deepseek-reasoner"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got[0].Key.Model != "deepseek-reasoner" {
		t.Errorf("model = %q", got[0].Key.Model)
	}
}

func TestProviderRegistry_ResolveNoAvailableProvider(t *testing.T) {
	registry := newTestRegistry([]string{"claude"}, nil)
	if _, err := registry.Resolve("chat", []LLMPreference{{Provider: "claude"}, {Provider: "hackclub"}}); err == nil {
		t.Error("expected error when nothing is usable")
	}
}
