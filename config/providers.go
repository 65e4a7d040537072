package config

import (
	"fmt"

	"github.com/aschepis/backscratcher/debot/llm"
	llmanthropic "github.com/aschepis/backscratcher/debot/llm/anthropic"
	llmollama "github.com/aschepis/backscratcher/debot/llm/ollama"
	llmopenai "github.com/aschepis/backscratcher/debot/llm/openai"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Uses of the model, each with its own provider list.
const (
	UseChat   = "chat"
	UseCommit = "commit"
	UseErrors = "errors"
)

// Registry builds the provider registry from the configured endpoints.
func (c *Config) Registry() *llm.ProviderRegistry {
	endpoints := make(map[string]llm.Endpoint, len(c.Providers))
	for name, p := range c.Providers {
		if p == nil {
			continue
		}
		endpoints[name] = llm.Endpoint{
			Kind:         p.Kind,
			APIKey:       p.APIKey,
			APIKeyEnv:    p.APIKeyEnv,
			BaseURL:      p.BaseURL,
			Organization: p.Organization,
			Host:         p.Host,
			Model:        p.Model,
			Anonymous:    p.Anonymous,
		}
	}
	return llm.NewProviderRegistry(endpoints, c.LLMProviders)
}

// Preferences returns the provider list for use.
func (c *Config) Preferences(use string) ([]llm.LLMPreference, error) {
	var prefs []LLMPreference
	switch use {
	case UseChat:
		prefs = c.Generation.Chat
	case UseCommit:
		prefs = c.Generation.Commit
	case UseErrors:
		prefs = c.Generation.Errors
	default:
		return nil, fmt.Errorf("unknown generation use %q", use)
	}
	return lo.Map(prefs, func(p LLMPreference, _ int) llm.LLMPreference {
		return llm.LLMPreference{
			Provider:    p.Provider,
			Model:       p.Model,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Timeout:     p.Timeout,
		}
	}), nil
}

// ChainBuilder turns provider lists into llm chains, sharing one client per
// distinct endpoint configuration.
type ChainBuilder struct {
	cfg      *Config
	registry *llm.ProviderRegistry
	clients  map[llm.ClientKey]llm.Client
	logger   zerolog.Logger
}

// NewChainBuilder creates a ChainBuilder for cfg.
func NewChainBuilder(cfg *Config, logger zerolog.Logger) *ChainBuilder {
	return &ChainBuilder{
		cfg:      cfg,
		registry: cfg.Registry(),
		clients:  make(map[llm.ClientKey]llm.Client),
		logger:   logger,
	}
}

// Chain builds the chain serving use. It fails when none of the configured
// providers for use is available.
func (b *ChainBuilder) Chain(use string) (*llm.Chain, error) {
	prefs, err := b.cfg.Preferences(use)
	if err != nil {
		return nil, err
	}
	resolved, err := b.registry.Resolve(use, prefs)
	if err != nil {
		return nil, err
	}

	providers := make([]llm.Provider, 0, len(resolved))
	for _, r := range resolved {
		client, err := b.client(r.Key)
		if err != nil {
			b.logger.Warn().Err(err).Str("provider", r.Key.Name).Str("use", use).Msg("skipping provider")
			continue
		}
		providers = append(providers, llm.Provider{
			Name:        r.Key.Name,
			Client:      client,
			Model:       r.Key.Model,
			Timeout:     r.Timeout,
			Temperature: r.Temperature,
			MaxTokens:   r.MaxTokens,
		})
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("%s: no provider client could be created", use)
	}

	b.logger.Info().Str("use", use).Strs("providers", lo.Map(providers, func(p llm.Provider, _ int) string {
		return p.Name
	})).Msg("generation chain ready")
	return llm.NewChain(b.logger, providers...), nil
}

func (b *ChainBuilder) client(key llm.ClientKey) (llm.Client, error) {
	if client, ok := b.clients[key]; ok {
		return client, nil
	}

	var (
		client llm.Client
		err    error
	)
	switch key.Kind {
	case llm.ProviderOpenAI:
		client = llmopenai.NewOpenAIClient(key.Name, key.APIKey, key.BaseURL, key.Model, key.Organization)
	case llm.ProviderAnthropic:
		client, err = llmanthropic.NewAnthropicClient(key.APIKey, key.Model, b.logger)
	case llm.ProviderOllama:
		client, err = llmollama.NewOllamaClient(key.Host, key.Model)
	default:
		err = fmt.Errorf("unknown provider kind %q", key.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", key.Name, err)
	}

	client = llm.WrapWithMiddleware(client, llm.NewLoggingMiddleware(b.logger, key.Name))
	b.clients[key] = client
	return client, nil
}
