// Package meta_test contains tests for the meta package.
package meta_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rise-and-shine/durablequeue/meta"
)

// testMeta creates a metadata map for testing purposes.
// It handles the exhaustive linter directive in a single place.
func testMeta(pairs ...metaPair) map[meta.ContextKey]string {
	result := make(map[meta.ContextKey]string)
	for _, pair := range pairs {
		result[pair.key] = pair.value
	}
	return result
}

// metaPair represents a key-value pair for testing metadata.
type metaPair struct {
	key   meta.ContextKey
	value string
}

// mp is a convenience function to create a metaPair.
func mp(key meta.ContextKey, value string) metaPair {
	return metaPair{key: key, value: value}
}

func TestInjectMetaToContext(t *testing.T) {
	tests := []struct {
		name        string
		initialCtx  context.Context
		metaData    map[meta.ContextKey]string
		keyToVerify meta.ContextKey
		valueExpect string
		nilValue    bool
	}{
		{
			name:       "inject single value",
			initialCtx: t.Context(),
			metaData: testMeta(
				mp(meta.TraceID, "abc-123"),
			),
			keyToVerify: meta.TraceID,
			valueExpect: "abc-123",
		},
		{
			name:       "inject multiple values",
			initialCtx: t.Context(),
			metaData: testMeta(
				mp(meta.TraceID, "trace-123"),
				mp(meta.RequestUserID, "user-456"),
				mp(meta.RequestUserType, "customer"),
				mp(meta.ServiceName, "auth-service"),
				mp(meta.ServiceVersion, "v1.0.0"),
			),
			keyToVerify: meta.RequestUserID,
			valueExpect: "user-456",
		},
		{
			name:       "skip empty values",
			initialCtx: t.Context(),
			metaData: testMeta(
				mp(meta.TraceID, "trace-123"),
				mp(meta.RequestUserID, ""),
				mp(meta.ServiceName, "auth-service"),
			),
			keyToVerify: meta.RequestUserID,
			nilValue:    true,
		},
		{
			name:       "overwrite existing value",
			initialCtx: context.WithValue(t.Context(), meta.TraceID, "old-trace-id"),
			metaData: testMeta(
				mp(meta.TraceID, "new-trace-id"),
			),
			keyToVerify: meta.TraceID,
			valueExpect: "new-trace-id",
		},
		{
			name:        "empty map",
			initialCtx:  t.Context(),
			metaData:    testMeta(),
			keyToVerify: meta.TraceID,
			nilValue:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resultCtx := meta.InjectMetaToContext(tc.initialCtx, tc.metaData)

			if tc.nilValue {
				assert.Nil(t, resultCtx.Value(tc.keyToVerify))
			} else {
				assert.Equal(t, tc.valueExpect, resultCtx.Value(tc.keyToVerify))
			}
		})
	}
}

func TestExtractMetaFromContext(t *testing.T) {
	tests := []struct {
		name     string
		ctxSetup func() context.Context
		expected map[meta.ContextKey]string
	}{
		{
			name: "extract single value",
			ctxSetup: func() context.Context {
				ctx := t.Context()
				return context.WithValue(ctx, meta.TraceID, "abc-123")
			},
			expected: testMeta(
				mp(meta.TraceID, "abc-123"),
			),
		},
		{
			name: "extract multiple values",
			ctxSetup: func() context.Context {
				ctx := t.Context()
				ctx = context.WithValue(ctx, meta.TraceID, "trace-123")
				ctx = context.WithValue(ctx, meta.RequestUserID, "user-456")
				ctx = context.WithValue(ctx, meta.RequestUserType, "customer")
				ctx = context.WithValue(ctx, meta.ServiceName, "auth-service")
				return ctx
			},
			expected: testMeta(
				mp(meta.TraceID, "trace-123"),
				mp(meta.RequestUserID, "user-456"),
				mp(meta.RequestUserType, "customer"),
				mp(meta.ServiceName, "auth-service"),
			),
		},
		{
			name: "ignore non-string values",
			ctxSetup: func() context.Context {
				ctx := t.Context()
				ctx = context.WithValue(ctx, meta.TraceID, 12345) // Not a string
				ctx = context.WithValue(ctx, meta.ServiceName, "auth-service")
				return ctx
			},
			expected: testMeta(
				mp(meta.ServiceName, "auth-service"),
			),
		},
		{
			name: "ignore empty string values",
			ctxSetup: func() context.Context {
				ctx := t.Context()
				ctx = context.WithValue(ctx, meta.TraceID, "trace-123")
				ctx = context.WithValue(ctx, meta.RequestUserID, "") // Empty string
				return ctx
			},
			expected: testMeta(
				mp(meta.TraceID, "trace-123"),
			),
		},
		{
			name:     "empty context",
			ctxSetup: t.Context,
			expected: testMeta(),
		},
		{
			name: "with custom context key not in predefined list",
			ctxSetup: func() context.Context {
				ctx := t.Context()
				customKey := meta.ContextKey("custom_key")
				ctx = context.WithValue(ctx, customKey, "custom_value")
				ctx = context.WithValue(ctx, meta.TraceID, "trace-123")
				return ctx
			},
			expected: testMeta(
				mp(meta.TraceID, "trace-123"),
				// custom_key should not be extracted as it's not in the predefined list
			),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := tc.ctxSetup()

			result := meta.ExtractMetaFromContext(ctx)

			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	originalCtx := t.Context()
	metadata := testMeta(
		mp(meta.TraceID, "trace-123"),
		mp(meta.RequestUserType, "user"),
		mp(meta.RequestUserID, "actor-123"),
		mp(meta.ServiceName, "auth-service"),
		mp(meta.ServiceVersion, "v1.0.0"),
	)

	ctxWithMeta := meta.InjectMetaToContext(originalCtx, metadata)

	extractedMeta := meta.ExtractMetaFromContext(ctxWithMeta)

	assert.Equal(t, metadata, extractedMeta)
}

func TestAllContextKeys(t *testing.T) {
	// This test ensures every predefined context key can be injected and extracted.
	allKeys := testMeta(
		mp(meta.TraceID, "trace-xyz"),
		mp(meta.RequestUserType, "customer"),
		mp(meta.RequestUserID, "user-123"),
		mp(meta.RequestUserRole, "admin"),
		mp(meta.IPAddress, "127.0.0.1"),
		mp(meta.UserAgent, "curl/8.0"),
		mp(meta.RemoteAddr, "127.0.0.1:443"),
		mp(meta.Referer, "https://example.com"),
		mp(meta.ServiceName, "api-gateway"),
		mp(meta.ServiceVersion, "v2.3.4"),
		mp(meta.AcceptLanguage, "en-US"),
		mp(meta.XClientAppName, "mobile"),
		mp(meta.XClientAppOS, "ios"),
		mp(meta.XClientAppVersion, "1.2.3"),
		mp(meta.XTzOffset, "+03:00"),
	)

	ctx := meta.InjectMetaToContext(t.Context(), allKeys)
	extracted := meta.ExtractMetaFromContext(ctx)

	assert.Len(t, extracted, len(allKeys))
	for k, v := range allKeys {
		extractedVal, ok := extracted[k]
		assert.True(t, ok, "Key %s not found in extracted metadata", k)
		assert.Equal(t, v, extractedVal, "Value mismatch for key %s", k)
	}
}
