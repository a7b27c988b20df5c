package tts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/voxdesk/voxdesk/internal/logger"
)

func testLogger() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func TestCacheMemoryRoundTrip(t *testing.T) {
	c := NewAudioCache("jenny", "", false, testLogger())

	if _, ok := c.Get("hello"); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Put("hello", []byte{1, 2, 3})

	data, ok := c.Get("hello")
	if !ok || len(data) != 3 {
		t.Fatalf("get = %v, %v", data, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestCacheVoiceIsolation(t *testing.T) {
	jenny := NewAudioCache("jenny", "", false, testLogger())
	guy := NewAudioCache("guy", "", false, testLogger())

	jenny.Put("hello", []byte{1})
	if jenny.hashKey("hello") == guy.hashKey("hello") {
		t.Fatal("different voices produced the same key")
	}
}

func TestCacheDiskPersistence(t *testing.T) {
	dir := t.TempDir()

	c := NewAudioCache("jenny", dir, true, testLogger())
	c.Put("hello", []byte("audio"))

	files, err := os.ReadDir(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("dir = %v files, err %v", len(files), err)
	}
	if filepath.Ext(files[0].Name()) != ".wav" {
		t.Fatalf("file = %s", files[0].Name())
	}

	// A fresh cache over the same directory warm-starts from disk.
	fresh := NewAudioCache("jenny", dir, true, testLogger())
	data, ok := fresh.Get("hello")
	if !ok || string(data) != "audio" {
		t.Fatalf("disk get = %q, %v", data, ok)
	}
	if fresh.Len() != 1 {
		t.Fatal("disk hit was not promoted to memory")
	}
}

func TestCacheDiskReadOnly(t *testing.T) {
	dir := t.TempDir()

	writer := NewAudioCache("jenny", dir, true, testLogger())
	writer.Put("warm", []byte("old"))

	ro := NewAudioCache("jenny", dir, false, testLogger())
	if _, ok := ro.Get("warm"); !ok {
		t.Fatal("read-only cache should still read existing disk entries")
	}

	ro.Put("new", []byte("fresh"))
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatalf("read-only cache wrote to disk, %d files", len(files))
	}
	if _, ok := ro.Get("new"); !ok {
		t.Fatal("read-only cache should still serve the entry from memory")
	}
}
