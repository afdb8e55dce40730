package api

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ClientIDHeader names the per-install identifier sent by clients.
const ClientIDHeader = "X-Client-ID"

// callerContextKey is the context key for the authenticated caller.
type callerContextKey struct{}

// WithCaller returns a new context with the authenticated caller attached.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from the context.
// Returns "anonymous" if not present or empty.
func CallerFromContext(ctx context.Context) string {
	caller, ok := ctx.Value(callerContextKey{}).(string)
	if !ok || caller == "" {
		return "anonymous"
	}
	return caller
}

// sourceID identifies where a batch of mutations came from in the change
// log: the caller, plus the client install when the client names one.
func sourceID(r *http.Request) string {
	caller := CallerFromContext(r.Context())
	clientID := strings.TrimSpace(r.Header.Get(ClientIDHeader))
	if clientID == "" {
		return caller
	}
	return caller + "/" + truncateRunes(clientID, maxClientIDBytes)
}

// maxClientIDBytes bounds the client id stored in change_log.source_id.
const maxClientIDBytes = 64

// truncateRunes cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
