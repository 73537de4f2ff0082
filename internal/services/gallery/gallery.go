// Package gallery loads the labelled reference faces and matches live
// encodings against them.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"facecam/internal/config"
	"facecam/internal/logger"
	"facecam/internal/models"
	"facecam/internal/repository"
	"facecam/internal/services/recognition"

	"gocv.io/x/gocv"
	"golang.org/x/text/unicode/norm"
)

// SupportedImageFormats lists the reference image extensions OpenCV can read.
var SupportedImageFormats = []string{
	".jpg", ".jpeg",
	".png",
	".bmp",
	".tif", ".tiff",
	".webp",
}

// IsSupportedImageFormat checks the file extension, ignoring case.
func IsSupportedImageFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range SupportedImageFormats {
		if ext == supported {
			return true
		}
	}
	return false
}

// LabelFromFilename strips the extension and NFC-normalises the rest, so
// names typed on different systems compare equal.
func LabelFromFilename(filename string) string {
	base := filepath.Base(filename)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ListImages returns the supported images in dir sorted by filename.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSupportedImageFormat(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Skip records a reference image that produced no reference.
type Skip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Report summarises one Load.
type Report struct {
	Loaded  int    `json:"loaded"`
	Cached  int    `json:"cached"`
	Skipped int    `json:"skipped"`
	Skips   []Skip `json:"skips,omitempty"`
}

// Progress is called after each reference image is handled.
type Progress func(done, total int, file string)

type Options struct {
	Directory   string
	MatcherKind string
	Tolerance   float32
	Labels      *config.Labels
	// Cache is optional; nil disables encoding reuse across runs.
	Cache repository.EncodingCache
}

// Gallery holds the current reference set. Readers always see a complete
// set: Load builds the replacement aside and swaps it in under the lock.
type Gallery struct {
	engine recognition.Engine
	opts   Options
	logger *logger.Logger

	mu      sync.RWMutex
	refs    []recognition.Reference
	matcher recognition.Matcher
}

func New(engine recognition.Engine, opts Options, logger *logger.Logger) (*Gallery, error) {
	matcher, err := recognition.NewMatcher(opts.MatcherKind, nil, opts.Tolerance)
	if err != nil {
		return nil, err
	}

	return &Gallery{
		engine:  engine,
		opts:    opts,
		logger:  logger,
		matcher: matcher,
	}, nil
}

// Load scans the reference directory and replaces the reference set. A
// missing directory yields an empty set, so every face is Unknown.
func (g *Gallery) Load(ctx context.Context, progress Progress) (Report, error) {
	var report Report

	files, err := ListImages(g.opts.Directory)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return report, fmt.Errorf("failed to read reference directory: %w", err)
		}
		g.logger.Warning("Reference directory %s does not exist - every face will be %s", g.opts.Directory, recognition.UnknownLabel)
	}

	refs := make([]recognition.Reference, 0, len(files))
	paths := make([]string, 0, len(files))

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		path := filepath.Join(g.opts.Directory, name)
		paths = append(paths, path)

		ref, cached, err := g.loadReference(path, name)
		if err != nil {
			g.logger.Warning("Skipping reference %s: %v", name, err)
			report.Skipped++
			report.Skips = append(report.Skips, Skip{File: name, Reason: err.Error()})
		} else {
			refs = append(refs, ref)
			report.Loaded++
			if cached {
				report.Cached++
			}
		}

		if progress != nil {
			progress(i+1, len(files), name)
		}
	}

	matcher, err := recognition.NewMatcher(g.opts.MatcherKind, refs, g.opts.Tolerance)
	if err != nil {
		return report, err
	}

	g.mu.Lock()
	g.refs = refs
	g.matcher = matcher
	g.mu.Unlock()

	if g.opts.Cache != nil {
		if n, err := g.opts.Cache.Prune(g.engine.Name(), paths); err != nil {
			g.logger.Warning("Failed to prune encoding cache: %v", err)
		} else if n > 0 {
			g.logger.Debug("Pruned %d stale cached encoding(s)", n)
		}
	}

	g.logger.Info("👤 Loaded %d reference face(s) from %s (%d cached, %d skipped)", report.Loaded, g.opts.Directory, report.Cached, report.Skipped)
	return report, nil
}

// Reload is Load without progress reporting.
func (g *Gallery) Reload(ctx context.Context) (Report, error) {
	return g.Load(ctx, nil)
}

func (g *Gallery) label(name string) string {
	stem := LabelFromFilename(name)
	if alias, ok := g.opts.Labels.Lookup(name, stem); ok {
		return alias
	}
	return stem
}

// loadReference returns the reference for one image, from the cache when the
// file is unchanged since it was last encoded.
func (g *Gallery) loadReference(path, name string) (recognition.Reference, bool, error) {
	label := g.label(name)

	info, err := os.Stat(path)
	if err != nil {
		return recognition.Reference{}, false, err
	}

	if g.opts.Cache != nil {
		hit, err := g.opts.Cache.Get(path, g.engine.Name())
		if err != nil {
			g.logger.Warning("Encoding cache lookup failed for %s: %v", name, err)
		} else if hit != nil && hit.Size == info.Size() && hit.ModTime.Equal(info.ModTime()) {
			return recognition.Reference{Label: label, Source: name, Encoding: hit.Encoding}, true, nil
		}
	}

	enc, err := g.encodeFile(path, name)
	if err != nil {
		return recognition.Reference{}, false, err
	}

	if g.opts.Cache != nil {
		err := g.opts.Cache.Put(&models.CachedEncoding{
			Path:     path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Engine:   g.engine.Name(),
			Label:    label,
			Encoding: enc,
		})
		if err != nil {
			g.logger.Warning("Failed to cache encoding for %s: %v", name, err)
		}
	}

	return recognition.Reference{Label: label, Source: name, Encoding: enc}, false, nil
}

func (g *Gallery) encodeFile(path, name string) (recognition.Encoding, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("failed to load image")
	}

	faces, err := g.engine.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode face: %w", err)
	}
	if len(faces) == 0 {
		return nil, recognition.ErrNoFace
	}
	if len(faces) > 1 {
		g.logger.Warning("Reference %s contains %d faces - using the first", name, len(faces))
	}

	enc := make(recognition.Encoding, len(faces[0].Encoding))
	copy(enc, faces[0].Encoding)
	return enc, nil
}

// Identify matches enc against the current reference set.
func (g *Gallery) Identify(enc recognition.Encoding) recognition.Match {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.matcher.Match(enc)
}

// References returns a copy of the current reference set.
func (g *Gallery) References() []recognition.Reference {
	g.mu.RLock()
	defer g.mu.RUnlock()

	refs := make([]recognition.Reference, len(g.refs))
	copy(refs, g.refs)
	return refs
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refs)
}

func (g *Gallery) Directory() string {
	return g.opts.Directory
}
