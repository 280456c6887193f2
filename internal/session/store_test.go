package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/duetvoice/duet/internal/schema"
)

func TestSnapshotStore_CreatesDirectoryAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "History")
	store := NewSnapshotStore(dir)

	tr := schema.NewTranscript(schema.NewSystemMessage("P"), schema.NewUserMessage("<hi> & 你好"))
	if err := store.Save(schema.NewChatSnapshot("Elysia", "", tr)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ChatHistory.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"characterName": "Elysia"`) {
		t.Errorf("missing character name in %s", s)
	}
	if !strings.Contains(s, `<hi> & 你好`) {
		t.Errorf("content was escaped: %s", s)
	}
	if !strings.Contains(s, `"role": "user"`) {
		t.Errorf("role not serialised by name: %s", s)
	}
}

func TestSnapshotStore_OverwritesWholeFile(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())

	long := schema.NewTranscript(schema.NewUserMessage(strings.Repeat("x", 500)))
	if err := store.Save(schema.NewChatSnapshot("A", "", long)); err != nil {
		t.Fatalf("Save long: %v", err)
	}
	short := schema.NewTranscript(schema.NewUserMessage("y"))
	if err := store.Save(schema.NewChatSnapshot("B", "", short)); err != nil {
		t.Fatalf("Save short: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CharacterName != "B" || len(got.Messages) != 1 || got.Messages[0].Content != "y" {
		t.Errorf("got %+v", got)
	}
	if _, err := os.Stat(store.Path() + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestSnapshotStore_EmptyTranscriptWritesEmptyArray(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	if err := store.Save(schema.ChatSnapshot{CharacterName: "A"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(store.Path())
	if !strings.Contains(string(data), `"messages": []`) {
		t.Errorf("got %s", data)
	}
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	if _, err := store.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestSnapshotStore_SaveFailsWhenDirIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "History")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewSnapshotStore(blocker)
	if err := store.Save(schema.ChatSnapshot{}); err == nil {
		t.Error("expected error when history dir is a regular file")
	}
}

// ─── Archive ──────────────────────────────────────────────────────────────────

func TestArchive_RecentNewestFirst(t *testing.T) {
	a, err := OpenArchive(filepath.Join(t.TempDir(), "turns.bolt"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer a.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, text := range []string{"one", "two", "three"} {
		rec := TurnRecord{ID: text, User: text, Assistant: "re " + text, At: base.Add(time.Duration(i) * time.Second)}
		if err := a.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := a.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].User != "three" || got[1].User != "two" {
		t.Errorf("got %+v", got)
	}

	all, _ := a.Recent(0)
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestArchive_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "turns.bolt")
	a, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	_ = a.Record(TurnRecord{ID: "x", User: "hi", At: time.Now()})
	_ = a.Close()

	b, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	got, _ := b.Recent(10)
	if len(got) != 1 || got[0].User != "hi" {
		t.Errorf("got %+v", got)
	}
}
