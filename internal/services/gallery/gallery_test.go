package gallery

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"facecam/internal/config"
	"facecam/internal/logger"
	"facecam/internal/repository/sqlite"
	"facecam/internal/services/recognition"

	"gocv.io/x/gocv"
)

// scriptedEngine returns one scripted result per Detect call, in order.
type scriptedEngine struct {
	results [][]recognition.Face
	calls   int
}

func (s *scriptedEngine) Name() string              { return "scripted" }
func (s *scriptedEngine) DefaultTolerance() float32 { return 0.6 }
func (s *scriptedEngine) Close() error              { return nil }

func (s *scriptedEngine) Detect(img gocv.Mat) ([]recognition.Face, error) {
	if s.calls >= len(s.results) {
		return nil, errors.New("unexpected Detect call")
	}
	faces := s.results[s.calls]
	s.calls++
	return faces, nil
}

func face(values ...float32) []recognition.Face {
	return []recognition.Face{{Box: image.Rect(0, 0, 10, 10), Encoding: values}}
}

func writeImages(t *testing.T, dir string, names ...string) {
	t.Helper()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(120, 120, 120, 0), 32, 32, gocv.MatTypeCV8UC3)
	defer mat.Close()

	for _, name := range names {
		if ok := gocv.IMWrite(filepath.Join(dir, name), mat); !ok {
			t.Fatalf("Failed to write %s", name)
		}
	}
}

func newTestGallery(t *testing.T, engine recognition.Engine, opts Options) *Gallery {
	t.Helper()

	g, err := New(engine, opts, logger.Discard())
	if err != nil {
		t.Fatalf("Failed to create gallery: %v", err)
	}
	return g
}

func TestLabelFromFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Obama.jpg", "Obama"},
		{"Joe Biden.png", "Joe Biden"},
		{"pic/archive.v2.jpeg", "archive.v2"},
		{"Jiří.jpg", "Jiří"},
	}

	for _, tt := range tests {
		if got := LabelFromFilename(tt.input); got != tt.expected {
			t.Errorf("LabelFromFilename(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.PNG", "notes.txt", "c.webp"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}
	os.Mkdir(filepath.Join(dir, "nested.jpg"), 0755)

	files, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}

	expected := []string{"a.PNG", "b.jpg", "c.webp"}
	if len(files) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, files)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, files)
		}
	}
}

func TestLoad_OnePairPerImage(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "Biden.jpg", "Obama.jpg", "Trump.png")

	engine := &scriptedEngine{results: [][]recognition.Face{face(1, 0), face(0, 1), face(5, 5)}}
	g := newTestGallery(t, engine, Options{Directory: dir, Tolerance: 0.6})

	report, err := g.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report.Loaded != 3 || report.Skipped != 0 {
		t.Errorf("Unexpected report %+v", report)
	}

	refs := g.References()
	if len(refs) != 3 {
		t.Fatalf("Expected 3 references, got %d", len(refs))
	}
	if refs[0].Label != "Biden" || refs[1].Label != "Obama" || refs[2].Label != "Trump" {
		t.Errorf("Unexpected labels %v %v %v", refs[0].Label, refs[1].Label, refs[2].Label)
	}

	m := g.Identify(recognition.Encoding{0, 1.1})
	if m.Label != "Obama" || !m.Known {
		t.Errorf("Expected Obama, got %+v", m)
	}
}

func TestLoad_SkipsImagesWithoutFaces(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg", "empty.jpg", "group.jpg")

	group := append(face(3, 3), face(9, 9)...)
	engine := &scriptedEngine{results: [][]recognition.Face{face(1, 1), nil, group}}
	g := newTestGallery(t, engine, Options{Directory: dir, Tolerance: 0.6})

	var calls []string
	report, err := g.Load(context.Background(), func(done, total int, file string) {
		calls = append(calls, file)
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if report.Loaded != 2 || report.Skipped != 1 {
		t.Errorf("Unexpected report %+v", report)
	}
	if len(report.Skips) != 1 || report.Skips[0].File != "empty.jpg" {
		t.Errorf("Expected empty.jpg to be skipped, got %+v", report.Skips)
	}
	if len(calls) != 3 {
		t.Errorf("Expected progress for every file, got %v", calls)
	}

	refs := g.References()
	if refs[1].Label != "group" || refs[1].Encoding[0] != 3 {
		t.Errorf("Expected the first face of a group photo, got %+v", refs[1])
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	g := newTestGallery(t, &scriptedEngine{}, Options{Directory: filepath.Join(t.TempDir(), "missing"), Tolerance: 0.6})

	report, err := g.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report.Loaded != 0 || g.Len() != 0 {
		t.Errorf("Expected an empty set, got %+v", report)
	}

	if m := g.Identify(recognition.Encoding{1, 2}); m.Label != recognition.UnknownLabel {
		t.Errorf("Expected Unknown with no references, got %+v", m)
	}
}

func TestLoad_LabelAliases(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "img001.jpg", "img002.jpg")

	labels := &config.Labels{Names: map[string]string{"img001.jpg": "Barack Obama", "img002": "Joe Biden"}}
	engine := &scriptedEngine{results: [][]recognition.Face{face(1), face(2)}}
	g := newTestGallery(t, engine, Options{Directory: dir, Tolerance: 0.6, Labels: labels})

	if _, err := g.Load(context.Background(), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	refs := g.References()
	if refs[0].Label != "Barack Obama" || refs[1].Label != "Joe Biden" {
		t.Errorf("Expected aliased labels, got %q and %q", refs[0].Label, refs[1].Label)
	}
}

func TestLoad_UsesEncodingCache(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg", "b.jpg")

	db, err := sqlite.New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	engine := &scriptedEngine{results: [][]recognition.Face{face(1), face(2)}}
	g := newTestGallery(t, engine, Options{Directory: dir, Tolerance: 0.6, Cache: sqlite.NewEncodingRepository(db)})

	if _, err := g.Load(context.Background(), nil); err != nil {
		t.Fatalf("First load failed: %v", err)
	}

	report, err := g.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if report.Cached != 2 || report.Loaded != 2 {
		t.Errorf("Expected both references from the cache, got %+v", report)
	}
	if engine.calls != 2 {
		t.Errorf("Expected no engine calls on reload, got %d total", engine.calls)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg")

	g := newTestGallery(t, &scriptedEngine{results: [][]recognition.Face{face(1)}}, Options{Directory: dir, Tolerance: 0.6})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Load(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNew_InvalidMatcher(t *testing.T) {
	if _, err := New(&scriptedEngine{}, Options{MatcherKind: "kdtree"}, logger.Discard()); err == nil {
		t.Error("Expected an error for an unknown matcher")
	}
}
