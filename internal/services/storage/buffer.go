package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"facecam/internal/dto"
	"facecam/internal/logger"
	"facecam/internal/models"
	"facecam/internal/repository"
	"facecam/internal/services/pipeline"
)

// TimestampLayout prefixes every snapshot filename.
const TimestampLayout = "2006-01-02_15-04-05.000"

// BufferService buffers annotated frames with known faces in memory and
// periodically flushes them to disk and the database.
type BufferService struct {
	snapshotDir  string
	labelLimit   int
	snapshots    []dto.BufferedSnapshot
	bufferCount  map[string]int
	mu           sync.Mutex
	logger       *logger.Logger
	sightingRepo repository.SightingRepository
	faceRepo     repository.FaceRepository
	now          func() time.Time
}

// NewBufferService creates a BufferService. Either repository may be nil,
// in which case snapshots are only written to disk.
func NewBufferService(snapshotDir string, labelLimit int, logger *logger.Logger, sightingRepo repository.SightingRepository, faceRepo repository.FaceRepository) *BufferService {
	return &BufferService{
		snapshotDir:  snapshotDir,
		labelLimit:   labelLimit,
		snapshots:    make([]dto.BufferedSnapshot, 0),
		bufferCount:  make(map[string]int),
		logger:       logger,
		sightingRepo: sightingRepo,
		faceRepo:     faceRepo,
		now:          time.Now,
	}
}

// Run flushes every interval until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// Publish buffers frames that contain at least one known face.
func (s *BufferService) Publish(frame pipeline.Frame) {
	labels := frame.KnownLabels()
	if len(labels) == 0 || len(frame.JPEG) == 0 {
		return
	}
	s.AddSnapshot(frame.JPEG, labels, frame.FaceBoxes(), frame.Captured)
}

// AddSnapshot appends a snapshot when at least one of its labels is still
// under the per-label limit for this flush window. Only those labels are
// named and counted, so no label exceeds the limit; known faces of labels
// at the limit are left out of the stored faces.
func (s *BufferService) AddSnapshot(data []byte, labels []string, faces []dto.FaceBox, captured time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := make([]string, 0, len(labels))
	open := make(map[string]bool, len(labels))
	for _, label := range labels {
		if !open[label] && s.bufferCount[label] < s.labelLimit {
			open[label] = true
			room = append(room, label)
		}
	}
	if len(room) == 0 {
		return false
	}

	kept := make([]dto.FaceBox, 0, len(faces))
	for _, f := range faces {
		if !f.Known || open[f.Label] {
			kept = append(kept, f)
		}
	}

	if captured.IsZero() {
		captured = s.now()
	}

	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		Timestamp: captured,
		Labels:    room,
		Faces:     kept,
		Data:      data,
	})
	for _, label := range room {
		s.bufferCount[label]++
	}
	s.logger.Debug("Snapshot buffered for %s (%d pending)", strings.Join(room, ", "), len(s.snapshots))
	return true
}

// Pending returns the number of buffered snapshots.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// FlushSnapshots writes buffered snapshots to disk and resets the buffer and per-label counters.
func (s *BufferService) FlushSnapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.snapshotDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, snap := range s.snapshots {
		filename := SnapshotFilename(snap.Timestamp, snap.Labels)
		fullpath := filepath.Join(s.snapshotDir, filename)

		if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if s.sightingRepo != nil {
			sightingID, err := s.sightingRepo.Insert(&models.Sighting{
				Filename:  filename,
				Timestamp: snap.Timestamp,
				FilePath:  fullpath,
				FileSize:  int64(len(snap.Data)),
			})
			if err != nil {
				s.logger.Error("Error saving sighting to database %s: %v", filename, err)
				continue
			}

			if s.faceRepo != nil && len(snap.Faces) > 0 {
				faces := make([]models.Face, 0, len(snap.Faces))
				for _, f := range snap.Faces {
					faces = append(faces, models.Face{
						SightingID: sightingID,
						Label:      f.Label,
						X:          f.X,
						Y:          f.Y,
						Width:      f.Width,
						Height:     f.Height,
						Distance:   f.Distance,
						Known:      f.Known,
					})
				}
				if err := s.faceRepo.InsertBatch(faces); err != nil {
					s.logger.Error("Error saving faces to database: %v", err)
				}
			}
		}

		savedCount++
	}

	s.logger.Info("📸 Flushed %d snapshot(s) to %s", savedCount, s.snapshotDir)
	s.snapshots = s.snapshots[:0]
	s.bufferCount = make(map[string]int)
	return savedCount
}

// SnapshotFilename builds "<timestamp>_<label>_<label>.jpg". Underscores and
// path separators inside labels become dashes so ParseFilename can split them.
func SnapshotFilename(ts time.Time, labels []string) string {
	parts := []string{ts.Format(TimestampLayout)}
	for _, label := range labels {
		parts = append(parts, sanitizeLabel(label))
	}
	return strings.Join(parts, "_") + ".jpg"
}

func sanitizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '/', '\\', os.PathSeparator:
			return '-'
		}
		return r
	}, label)
}

// ParseFilename extracts the timestamp and labels from a snapshot filename.
func ParseFilename(filename string) (time.Time, []string, error) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return time.Time{}, nil, fmt.Errorf("invalid snapshot filename: %s", filename)
	}

	ts, err := time.ParseInLocation(TimestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid snapshot timestamp in %s: %w", filename, err)
	}

	var labels []string
	for _, p := range parts[2:] {
		if p != "" {
			labels = append(labels, p)
		}
	}
	return ts, labels, nil
}
