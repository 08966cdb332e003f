package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestExtractorParsesWrappedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found"}`))
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"Aquí están los datos:\n{\"expediente\":\"976076\",\"vehiculo\":\"JEEP PATRIOT 2012 Negro\",\"placas\":\"ABC1234\",\"usuario\":\"Juan Pérez\",\"cuenta\":null,\"entreCalles\":null,\"referencia\":null}"}}]
		}`))
	}))
	defer server.Close()

	extractor := NewExtractor(ExtractorConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	})

	extracted, err := extractor.Extract(context.Background(), "texto del servicio con GRUAS 976076")
	if err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if extracted.Expediente != "976076" {
		t.Fatalf("expected expediente 976076, got %q", extracted.Expediente)
	}
	if extracted.Vehiculo != "JEEP PATRIOT 2012 Negro" {
		t.Fatalf("unexpected vehiculo: %q", extracted.Vehiculo)
	}
	if extracted.Cliente != "Juan Pérez" {
		t.Fatalf("expected usuario mapped to cliente, got %q", extracted.Cliente)
	}
	if extracted.Cuenta != "CHUBB" {
		t.Fatalf("expediente starting with 9 must force CHUBB, got %q", extracted.Cuenta)
	}
}

func TestExtractorRetriesOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		current := atomic.AddInt32(&calls, 1)
		if current == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"{\"expediente\":\"912345\"}"}}]
		}`))
	}))
	defer server.Close()

	extractor := NewExtractor(ExtractorConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	})

	extracted, err := extractor.Extract(context.Background(), "texto")
	if err != nil {
		t.Fatalf("expected success after retry, got err=%v", err)
	}
	if extracted.Expediente != "912345" {
		t.Fatalf("unexpected expediente: %q", extracted.Expediente)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected at least 2 calls, got %d", calls)
	}
}

func TestExtractorDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad_request"}`))
	}))
	defer server.Close()

	extractor := NewExtractor(ExtractorConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	})

	if _, err := extractor.Extract(context.Background(), "texto"); err == nil {
		t.Fatalf("expected error on 400")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single call for a 400, got %d", got)
	}
}

func TestExtractorUnavailableWithoutKey(t *testing.T) {
	extractor := NewExtractor(ExtractorConfig{})
	if extractor.Available() {
		t.Fatalf("expected unavailable without key")
	}
	_, err := extractor.Extract(context.Background(), "texto")
	if !errors.Is(err, ErrExtractorUnavailable) {
		t.Fatalf("expected ErrExtractorUnavailable, got %v", err)
	}
}

func TestParseModelOutputRejectsGarbage(t *testing.T) {
	if _, err := parseModelOutput("no hay json aquí"); err == nil {
		t.Fatalf("expected parse error without a JSON object")
	}
}
