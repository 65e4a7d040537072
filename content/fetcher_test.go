package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc, mutate func(*Options)) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts := Options{
		GiphyAPIKey: "test-key",
		GiphyURL:    srv.URL + "/gifs/search",
		DadJokeURL:  srv.URL + "/dad",
		JokeAPIURL:  srv.URL + "/jokeapi?safe-mode",
		InsultURL:   srv.URL + "/insult",
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewFetcher(zerolog.Nop(), opts, WithPicker(func(n int) int { return n - 1 }))
}

func TestSearchImage(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "test-key" || q.Get("q") != "cats" || q.Get("limit") != "10" || q.Get("rating") != "pg" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"data":[{"images":{"original":{"url":"https://g/1.gif"}}},{"images":{"original":{"url":"https://g/2.gif"}}}]}`))
	}, nil)

	got, ok := f.SearchImage(context.Background(), "cats")
	if !ok || got != "https://g/2.gif" {
		t.Fatalf("SearchImage = %q, %v", got, ok)
	}
}

func TestTopImage(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %s", r.URL.Query().Get("limit"))
		}
		_, _ = w.Write([]byte(`{"data":[{"images":{"original":{"url":"https://g/top.gif"}}}]}`))
	}, nil)

	got, ok := f.TopImage(context.Background(), "warning sass attitude")
	if !ok || got != "https://g/top.gif" {
		t.Fatalf("TopImage = %q, %v", got, ok)
	}
}

func TestSearchImage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		mutate  func(*Options)
	}{
		{
			name:    "no results",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"data":[]}`)) },
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		},
		{
			name:    "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`not json`)) },
		},
		{
			name: "no api key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("request made without api key")
			},
			mutate: func(o *Options) { o.GiphyAPIKey = "" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(t, tt.handler, tt.mutate)
			if got, ok := f.SearchImage(context.Background(), "x"); ok {
				t.Errorf("SearchImage = %q, want failure", got)
			}
		})
	}
}

func TestFetchJoke(t *testing.T) {
	tests := []struct {
		name   string
		dad    string
		dadOK  bool
		alt    string
		mutate func(*Options)
		want   string
		wantOK bool
	}{
		{
			name: "dad joke", dad: `{"joke":"I'm reading a book about anti-gravity."}`, dadOK: true,
			want: "I'm reading a book about anti-gravity.", wantOK: true,
		},
		{
			name: "single fallback", alt: `{"type":"single","joke":"Debugging is like being a detective."}`,
			want: "Debugging is like being a detective.", wantOK: true,
		},
		{
			name: "two part fallback", alt: `{"type":"twopart","setup":"Why?","delivery":"Because."}`,
			want: "Why?\nBecause.", wantOK: true,
		},
		{
			name:   "fallback disabled",
			mutate: func(o *Options) { o.JokeAPIURL = "" },
		},
		{
			name: "both fail",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/dad":
					if r.Header.Get("Accept") != "application/json" || r.Header.Get("User-Agent") == "" {
						t.Errorf("headers = %v", r.Header)
					}
					if !tt.dadOK {
						w.WriteHeader(http.StatusServiceUnavailable)
						return
					}
					_, _ = w.Write([]byte(tt.dad))
				case "/jokeapi":
					if tt.alt == "" {
						w.WriteHeader(http.StatusServiceUnavailable)
						return
					}
					_, _ = w.Write([]byte(tt.alt))
				}
			}, tt.mutate)

			got, ok := f.FetchJoke(context.Background())
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FetchJoke = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFetchInsult(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"insult":"You are a walking syntax error."}`))
	}, nil)
	if got := f.FetchInsult(context.Background()); got != "You are a walking syntax error." {
		t.Errorf("FetchInsult = %q", got)
	}

	broken := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)
	if got := broken.FetchInsult(context.Background()); got != DefaultInsult {
		t.Errorf("FetchInsult = %q, want default", got)
	}
}

func TestWithQuery(t *testing.T) {
	if got := withQuery("https://x/search", map[string][]string{"q": {"a b"}}); got != "https://x/search?q=a+b" {
		t.Errorf("withQuery = %q", got)
	}
	if got := withQuery("https://x/j?safe-mode", map[string][]string{"q": {"1"}}); got != "https://x/j?safe-mode&q=1" {
		t.Errorf("withQuery = %q", got)
	}
}
