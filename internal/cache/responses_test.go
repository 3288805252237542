package cache

import (
	"testing"
	"time"
)

func TestResponseCache_SetAndGet(t *testing.T) {
	rc, err := NewResponseCache(8, 1000, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer rc.Close()

	rc.Set("resp-key", []byte(`{"ok":true}`), 0)

	got, found := rc.Get("resp-key")
	if !found {
		t.Fatal("Expected to find cached response")
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("Unexpected value: %s", got)
	}
}

func TestResponseCache_GetNonExistent(t *testing.T) {
	rc, err := NewResponseCache(8, 1000, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer rc.Close()

	if _, found := rc.Get("nonexistent"); found {
		t.Error("Expected not to find nonexistent key")
	}
}

func TestResponseCache_Expiration(t *testing.T) {
	rc, err := NewResponseCache(8, 1000, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer rc.Close()

	rc.Set("expiring", []byte("soon gone"), 80*time.Millisecond)

	if _, found := rc.Get("expiring"); !found {
		t.Error("Expected to find value immediately after set")
	}

	time.Sleep(120 * time.Millisecond)

	if _, found := rc.Get("expiring"); found {
		t.Error("Expected value to be expired")
	}
}

func TestResponseCache_Delete(t *testing.T) {
	rc, err := NewResponseCache(8, 1000, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer rc.Close()

	rc.Set("delete-me", []byte("v"), 0)
	rc.Delete("delete-me")

	if _, found := rc.Get("delete-me"); found {
		t.Error("Expected value to be deleted")
	}
}

func TestResponseCache_Clear(t *testing.T) {
	rc, err := NewResponseCache(8, 1000, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer rc.Close()

	rc.Set("a", []byte("1"), 0)
	rc.Set("b", []byte("2"), 0)
	rc.Clear()

	if _, found := rc.Get("a"); found {
		t.Error("Expected a to be cleared")
	}
	if _, found := rc.Get("b"); found {
		t.Error("Expected b to be cleared")
	}
}
