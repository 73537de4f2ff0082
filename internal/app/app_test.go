package app

import (
	"os"
	"path/filepath"
	"testing"

	"facecam/internal/config"
	"facecam/internal/logger"
	"facecam/internal/repository/sqlite"
	"facecam/internal/services/recognition"

	"gocv.io/x/gocv"
)

type stubEngine struct{}

func (stubEngine) Name() string                                    { return "stub" }
func (stubEngine) DefaultTolerance() float32                       { return 0.6 }
func (stubEngine) Detect(img gocv.Mat) ([]recognition.Face, error) { return nil, nil }
func (stubEngine) Close() error                                    { return nil }

func TestNewGallery_LabelsFile(t *testing.T) {
	labelsFile := filepath.Join(t.TempDir(), "labels.yaml")
	os.WriteFile(labelsFile, []byte("labels:\n  1.jpg: Obama\n"), 0644)

	cfg := &config.Config{
		ReferenceDirectory: t.TempDir(),
		LabelsFile:         labelsFile,
		Matcher:            config.MatcherLinear,
	}

	g, err := NewGallery(cfg, stubEngine{}, nil, logger.Discard())
	if err != nil {
		t.Fatalf("NewGallery failed: %v", err)
	}
	if g.Directory() != cfg.ReferenceDirectory || g.Len() != 0 {
		t.Errorf("Expected an empty gallery over %s", cfg.ReferenceDirectory)
	}
}

func TestNewGallery_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"missing labels file", &config.Config{LabelsFile: filepath.Join(t.TempDir(), "nope.yaml"), Matcher: config.MatcherLinear}},
		{"unknown matcher", &config.Config{Matcher: "annoy"}},
	}

	for _, tt := range tests {
		if _, err := NewGallery(tt.cfg, stubEngine{}, nil, logger.Discard()); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestNewGallery_WithDatabase(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{ReferenceDirectory: t.TempDir(), Matcher: config.MatcherHNSW}
	if _, err := NewGallery(cfg, stubEngine{}, db, logger.Discard()); err != nil {
		t.Fatalf("NewGallery failed: %v", err)
	}
}

func TestNewApp_UnknownEngine(t *testing.T) {
	cfg := &config.Config{
		Engine:       "nope",
		DatabasePath: filepath.Join(t.TempDir(), "data", "facecam.db"),
	}
	if _, err := NewApp(cfg, logger.Discard()); err == nil {
		t.Fatal("Expected an error for an unknown engine")
	}
}
