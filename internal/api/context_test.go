package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWithCaller_CallerFromContext_RoundTrip(t *testing.T) {
	ctx := WithCaller(context.Background(), "alice-phone")

	if got := CallerFromContext(ctx); got != "alice-phone" {
		t.Errorf("CallerFromContext() = %q, want %q", got, "alice-phone")
	}
}

func TestCallerFromContext_Default(t *testing.T) {
	if got := CallerFromContext(context.Background()); got != "anonymous" {
		t.Errorf("CallerFromContext() = %q, want %q", got, "anonymous")
	}
}

func TestWithCaller_EmptyString(t *testing.T) {
	ctx := WithCaller(context.Background(), "")

	if got := CallerFromContext(ctx); got != "anonymous" {
		t.Errorf("CallerFromContext() with empty caller = %q, want %q", got, "anonymous")
	}
}

func TestSourceID(t *testing.T) {
	tests := []struct {
		name     string
		caller   string
		clientID string
		want     string
	}{
		{"caller only", "api-key", "", "api-key"},
		{"caller and client", "alice", "01HXK5", "alice/01HXK5"},
		{"client whitespace trimmed", "alice", "  01HXK5 ", "alice/01HXK5"},
		{"anonymous caller", "", "c1", "anonymous/c1"},
		{"long client truncated", "alice", strings.Repeat("x", 80), "alice/" + strings.Repeat("x", 64)},
		{"multibyte rune at the limit dropped whole", "alice", strings.Repeat("x", 63) + "ü", "alice/" + strings.Repeat("x", 63)},
		{"multibyte runes kept when they fit", "alice", "küche-tablet", "alice/küche-tablet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
			if tt.clientID != "" {
				r.Header.Set(ClientIDHeader, tt.clientID)
			}
			r = r.WithContext(WithCaller(r.Context(), tt.caller))

			got := sourceID(r)
			if got != tt.want {
				t.Errorf("sourceID() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("sourceID() = %q is not valid UTF-8", got)
			}
		})
	}
}
