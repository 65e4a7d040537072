// Package content fetches the canned material DeBot sprinkles into
// conversations: GIFs, jokes and insults. Every lookup is best effort and
// reports failure through its return value instead of an error.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInsult is returned when no insult could be fetched.
const DefaultInsult = "I'm too sassy to even bother roasting you right now."

// Options configures the upstream APIs.
type Options struct {
	GiphyAPIKey string        `yaml:"giphy_api_key,omitempty"`
	GiphyURL    string        `yaml:"giphy_url,omitempty"`
	DadJokeURL  string        `yaml:"dad_joke_url,omitempty"`
	JokeAPIURL  string        `yaml:"joke_api_url,omitempty"`
	InsultURL   string        `yaml:"insult_url,omitempty"`
	UserAgent   string        `yaml:"user_agent,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// DefaultOptions returns the public endpoints. JokeAPIURL is the fallback
// joke source; clear it to disable the fallback.
func DefaultOptions() Options {
	return Options{
		GiphyURL:   "https://api.giphy.com/v1/gifs/search",
		DadJokeURL: "https://icanhazdadjoke.com/",
		JokeAPIURL: "https://v2.jokeapi.dev/joke/Programming,Miscellaneous,Pun?safe-mode",
		InsultURL:  "https://evilinsult.com/generate_insult.php?lang=en&type=json",
		UserAgent:  "DeBot (https://github.com/aschepis/backscratcher)",
		Timeout:    10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GiphyURL == "" {
		o.GiphyURL = d.GiphyURL
	}
	if o.DadJokeURL == "" {
		o.DadJokeURL = d.DadJokeURL
	}
	if o.InsultURL == "" {
		o.InsultURL = d.InsultURL
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithPicker sets the random index source used to choose among search results.
func WithPicker(pick func(n int) int) FetcherOption {
	return func(f *Fetcher) { f.pick = pick }
}

// Fetcher talks to the content APIs.
type Fetcher struct {
	client *http.Client
	opts   Options
	pick   func(n int) int
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher. Zero option fields take their defaults,
// except JokeAPIURL which stays empty when unset.
func NewFetcher(logger zerolog.Logger, opts Options, fopts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		opts:   opts.withDefaults(),
		pick:   rand.IntN,
		logger: logger.With().Str("component", "content").Logger(),
	}
	for _, opt := range fopts {
		opt(f)
	}
	return f
}

type giphyResponse struct {
	Data []struct {
		Images struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

// SearchImage returns a random GIF among the first ten results for query.
func (f *Fetcher) SearchImage(ctx context.Context, query string) (string, bool) {
	return f.searchGiphy(ctx, query, 10)
}

// TopImage returns the best GIF match for query.
func (f *Fetcher) TopImage(ctx context.Context, query string) (string, bool) {
	return f.searchGiphy(ctx, query, 1)
}

func (f *Fetcher) searchGiphy(ctx context.Context, query string, limit int) (string, bool) {
	if f.opts.GiphyAPIKey == "" {
		f.logger.Debug().Msg("giphy api key not configured")
		return "", false
	}

	params := url.Values{}
	params.Set("api_key", f.opts.GiphyAPIKey)
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("rating", "pg")

	var resp giphyResponse
	if err := f.getJSON(ctx, withQuery(f.opts.GiphyURL, params), &resp); err != nil {
		f.logger.Warn().Err(err).Str("query", query).Msg("gif search failed")
		return "", false
	}

	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Images.Original.URL != "" {
			urls = append(urls, d.Images.Original.URL)
		}
	}
	if len(urls) == 0 {
		return "", false
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}
	return urls[f.pick(len(urls))], true
}

// FetchJoke returns a dad joke, falling back to JokeAPI when configured.
func (f *Fetcher) FetchJoke(ctx context.Context) (string, bool) {
	var dad struct {
		Joke string `json:"joke"`
	}
	err := f.getJSON(ctx, f.opts.DadJokeURL, &dad)
	if err == nil && strings.TrimSpace(dad.Joke) != "" {
		return dad.Joke, true
	}
	if err != nil {
		f.logger.Warn().Err(err).Msg("dad joke fetch failed")
	}

	if f.opts.JokeAPIURL == "" {
		return "", false
	}

	var alt struct {
		Type     string `json:"type"`
		Joke     string `json:"joke"`
		Setup    string `json:"setup"`
		Delivery string `json:"delivery"`
	}
	if err := f.getJSON(ctx, f.opts.JokeAPIURL, &alt); err != nil {
		f.logger.Warn().Err(err).Msg("fallback joke fetch failed")
		return "", false
	}
	if alt.Type == "single" {
		return alt.Joke, alt.Joke != ""
	}
	if alt.Setup == "" {
		return "", false
	}
	return alt.Setup + "\n" + alt.Delivery, true
}

// FetchInsult returns a random insult or DefaultInsult.
func (f *Fetcher) FetchInsult(ctx context.Context) string {
	var resp struct {
		Insult string `json:"insult"`
	}
	if err := f.getJSON(ctx, f.opts.InsultURL, &resp); err != nil || strings.TrimSpace(resp.Insult) == "" {
		if err != nil {
			f.logger.Warn().Err(err).Msg("insult fetch failed")
		}
		return DefaultInsult
	}
	return resp.Insult
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("request %s: unexpected status %d", req.URL.Host, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Host, err)
	}
	return nil
}

func withQuery(base string, params url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}
