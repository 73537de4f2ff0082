package models

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"facecam/internal/config"
	"facecam/internal/logger"
)

func checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestDownloadModel_FallsBackToMirror(t *testing.T) {
	payload := []byte("cascade bytes")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/broken" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, logger.Discard())
	m := Model{Key: "test", Filename: "model.bin", URLs: []string{srv.URL + "/broken", srv.URL + "/ok"}, MD5: checksum(payload)}

	if err := d.DownloadModel(context.Background(), m); err != nil {
		t.Fatalf("DownloadModel failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "model.bin"))
	if err != nil || string(data) != string(payload) {
		t.Errorf("Expected downloaded payload, got %q, %v", data, err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", hits.Load())
	}

	// A valid file is not fetched again
	if err := d.DownloadModel(context.Background(), m); err != nil {
		t.Fatalf("Second DownloadModel failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected no new requests, got %d", hits.Load())
	}
}

func TestDownloadModel_ChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, logger.Discard())
	m := Model{Key: "test", Filename: "model.bin", URLs: []string{srv.URL}, MD5: checksum([]byte("original"))}

	if err := d.DownloadModel(context.Background(), m); err == nil {
		t.Fatal("Expected a checksum error")
	}
	if _, err := os.Stat(filepath.Join(dir, "model.bin")); !os.IsNotExist(err) {
		t.Error("A file failing verification must not be left in place")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no leftover temporary files, got %d", len(entries))
	}
}

func TestDownload_UnknownKey(t *testing.T) {
	d := NewDownloader(t.TempDir(), logger.Discard())
	if err := d.Download(context.Background(), "nope"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}

func TestHTTPClient_Proxy(t *testing.T) {
	tests := []struct {
		proxy   string
		wantErr bool
	}{
		{"", false},
		{"socks5://127.0.0.1:1080", false},
		{"http://127.0.0.1:3128", false},
		{"ftp://127.0.0.1:21", true},
	}

	for _, tt := range tests {
		d := NewDownloader(t.TempDir(), logger.Discard())
		d.ProxyURL = tt.proxy
		_, err := d.httpClient()
		if (err != nil) != tt.wantErr {
			t.Errorf("httpClient(%q) error = %v, wantErr %v", tt.proxy, err, tt.wantErr)
		}
	}
}

func TestRequiredAndMissing(t *testing.T) {
	dir := t.TempDir()
	required := Required(config.EngineDlib, true)
	if len(required) != 3 {
		t.Fatalf("Expected 3 dlib models with CNN, got %v", required)
	}

	os.WriteFile(filepath.Join(dir, Available["dlib-shape"].Filename), []byte("x"), 0644)
	missing := Missing(dir, required)
	if len(missing) != 2 || missing[0] != "dlib-resnet" {
		t.Errorf("Unexpected missing list %v", missing)
	}

	if got := Required(config.EngineOpenFace, false); len(got) != 2 {
		t.Errorf("Expected 2 openface models, got %v", got)
	}
}

func TestKeys_Sorted(t *testing.T) {
	keys := Keys()
	if len(keys) != len(Available) {
		t.Fatalf("Expected %d keys, got %d", len(Available), len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("Keys not sorted: %v", keys)
		}
	}
}
