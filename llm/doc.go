// Package llm is DeBot's provider-neutral text generation layer.
//
// # Core Concepts
//
//  1. Messages: a Request carries a system prompt plus a short list of
//     role-tagged text messages. DeBot never streams and never calls tools,
//     so a Response is plain text.
//
//  2. Client: one provider endpoint (an OpenAI-compatible API such as
//     Hack Club AI or DeepSeek, Anthropic, or a local Ollama server).
//
//  3. Chain: an ordered list of providers, each with its own timeout, model
//     and sampling settings. The first provider that returns non-empty text
//     wins; when all fail the chain returns ErrExhausted and the caller
//     falls back to canned text.
//
//  4. Registry: resolves a preference list from configuration into the
//     providers that are actually enabled and configured.
//
//  5. Errors: provider failures are translated to *Error with an ErrorType
//     so callers can tell timeouts from bad statuses and malformed replies.
//
// Usage Example
//
//	chain := llm.NewChain(logger,
//	    llm.Provider{Name: "hackclub", Client: hackclub, Timeout: 10 * time.Second},
//	    llm.Provider{Name: "deepseek", Client: deepseek, Model: "deepseek-chat", Timeout: 20 * time.Second},
//	)
//
//	res, err := chain.Generate(ctx, &llm.Request{
//	    System:   prompt,
//	    Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello!")},
//	})
//
// # Extension Points
//
// To add a provider, implement Client, translate its errors to *Error, and
// teach the config package's provider factory to build it.
package llm
