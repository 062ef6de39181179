package codearchive

import (
	"context"
	"testing"

	"github.com/oriys/barq/internal/config"
)

func TestNew_DisabledWithoutBucket(t *testing.T) {
	a, err := New(context.Background(), config.S3Config{})
	if err != nil {
		t.Fatalf("New returned error for disabled config: %v", err)
	}
	if a != nil {
		t.Fatal("expected nil Archiver when bucket is empty")
	}
}

func TestNilArchiver_IsNoop(t *testing.T) {
	var a *Archiver
	if err := a.Archive(context.Background(), "fn-1", "code"); err != nil {
		t.Fatalf("nil Archiver.Archive should no-op: %v", err)
	}
	a.ArchiveAsync("fn-1", "code") // must not panic
}

func TestArchiver_Key(t *testing.T) {
	withPrefix := &Archiver{bucket: "b", prefix: "functions"}
	if got := withPrefix.key("fn-1"); got != "functions/fn-1" {
		t.Fatalf("key() = %q, want %q", got, "functions/fn-1")
	}

	noPrefix := &Archiver{bucket: "b"}
	if got := noPrefix.key("fn-1"); got != "fn-1" {
		t.Fatalf("key() = %q, want %q", got, "fn-1")
	}
}
