package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

var compressibleBody = strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

func compressHandler() http.Handler {
	return Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(compressibleBody))
	}))
}

func TestCompress_Brotli(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Accept-Encoding", "br, gzip")
	rr := httptest.NewRecorder()
	compressHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Expected brotli encoding, got %q", got)
	}

	decoded, err := io.ReadAll(brotli.NewReader(rr.Body))
	if err != nil {
		t.Fatalf("Failed to decode brotli body: %v", err)
	}
	if string(decoded) != compressibleBody {
		t.Error("Decoded body does not match original")
	}
}

func TestCompress_GzipFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	compressHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Expected gzip encoding, got %q", got)
	}

	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("Failed to open gzip reader: %v", err)
	}
	decoded, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to decode gzip body: %v", err)
	}
	if string(decoded) != compressibleBody {
		t.Error("Decoded body does not match original")
	}
}

func TestCompress_Identity(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	compressHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Expected no encoding, got %q", got)
	}
	if rr.Body.String() != compressibleBody {
		t.Error("Expected uncompressed passthrough body")
	}
}
