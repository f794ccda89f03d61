package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreReadMissingFile(t *testing.T) {
	f := NewFileStore(filepath.Join(t.TempDir(), "nope", "backend-state.json"))
	s, err := f.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 0 {
		t.Errorf("got %d records, want empty state", len(s))
	}
}

func TestFileStoreReadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend-state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path).Read(context.Background())
	if err != nil {
		t.Fatalf("corruption must not fail the read: %v", err)
	}
	if len(s) != 0 {
		t.Errorf("got %d records, want empty state", len(s))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backend-state.json")
	f := NewFileStore(path)
	ctx := context.Background()

	unblock := time.Date(2024, 3, 14, 16, 0, 0, 0, time.UTC)
	in := State{
		"openrouter:gpt-4o": {UsedTokens: 1200, UnblockAt: &unblock},
		"groq:llama3":       {UsedTokens: 7},
	}
	if err := f.Write(ctx, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	rec := out["openrouter:gpt-4o"]
	if rec.UsedTokens != 1200 {
		t.Errorf("got usedTokens %d, want 1200", rec.UsedTokens)
	}
	if rec.UnblockAt == nil || !rec.UnblockAt.Equal(unblock) {
		t.Errorf("got unblockAt %v, want %v", rec.UnblockAt, unblock)
	}
	if out["groq:llama3"].UnblockAt != nil {
		t.Error("unexpected unblockAt on uncapped record")
	}
}

func TestFileStoreWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFileStore(filepath.Join(dir, "backend-state.json"))
	if err := f.Write(context.Background(), State{"a:m": {UsedTokens: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "backend-state.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestRecordBlocked(t *testing.T) {
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if (Record{}).Blocked(now) {
		t.Error("empty record must not be blocked")
	}
	if !(Record{UnblockAt: &future}).Blocked(now) {
		t.Error("future unblockAt must block")
	}
	if (Record{UnblockAt: &past}).Blocked(now) {
		t.Error("elapsed unblockAt must not block")
	}
}
