package memory

import (
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "wp-1/page.html", "text/html", payload)
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://wp-1/page.html" {
		t.Fatalf("unexpected uri %s", uri)
	}

	payload[0] = 'C'
	stored, ok := store.Object("wp-1/page.html")
	if !ok {
		t.Fatal("expected object to be stored")
	}
	if string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one object, got %d", store.Len())
	}
}

func TestBlobStoreObjectMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, ok := store.Object("absent"); ok {
		t.Fatal("expected missing object")
	}
}
