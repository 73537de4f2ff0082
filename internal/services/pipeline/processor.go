// Package pipeline runs the capture -> detect -> match -> draw -> publish loop.
package pipeline

import (
	"context"
	"image"
	"time"

	"facecam/internal/dto"
	"facecam/internal/logger"
	"facecam/internal/services/camera"
	"facecam/internal/services/recognition"

	"gocv.io/x/gocv"
)

// Detection is a labelled face box.
type Detection struct {
	Label    string          `json:"label"`
	Box      image.Rectangle `json:"-"`
	Distance float32         `json:"distance"`
	Known    bool            `json:"known"`
}

// Frame is an annotated, JPEG-encoded frame handed to sinks. Detection boxes
// are in full-resolution coordinates.
type Frame struct {
	Seq        uint64
	Captured   time.Time
	Width      int
	Height     int
	JPEG       []byte
	Detections []Detection
}

// KnownLabels returns the distinct labels of recognised faces in order of appearance.
func (f Frame) KnownLabels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, d := range f.Detections {
		if d.Known && !seen[d.Label] {
			seen[d.Label] = true
			labels = append(labels, d.Label)
		}
	}
	return labels
}

// FaceBoxes converts the detections to their wire form. Never nil.
func (f Frame) FaceBoxes() []dto.FaceBox {
	boxes := make([]dto.FaceBox, 0, len(f.Detections))
	for _, d := range f.Detections {
		boxes = append(boxes, dto.FaceBox{
			Label:    d.Label,
			X:        d.Box.Min.X,
			Y:        d.Box.Min.Y,
			Width:    d.Box.Dx(),
			Height:   d.Box.Dy(),
			Distance: d.Distance,
			Known:    d.Known,
		})
	}
	return boxes
}

// Sink receives every published frame.
type Sink interface {
	Publish(frame Frame)
}

// Identifier matches an encoding against the current references.
type Identifier interface {
	Identify(enc recognition.Encoding) recognition.Match
}

// FrameSource is the camera as seen by the loop.
type FrameSource interface {
	IsCapturing() bool
	Read(dst *gocv.Mat) error
}

type Options struct {
	Downscale       int
	ProcessEveryNth int
	TickInterval    time.Duration
	JPEGQuality     int
}

func (o Options) withDefaults() Options {
	if o.Downscale < 1 {
		o.Downscale = 1
	}
	if o.ProcessEveryNth < 1 {
		o.ProcessEveryNth = 1
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 100 * time.Millisecond
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = 80
	}
	return o
}

// Processor owns the frame buffers and the detections carried between ticks.
// Tick must only be called from one goroutine.
type Processor struct {
	source     FrameSource
	engine     recognition.Engine
	identifier Identifier
	sink       Sink
	logger     *logger.Logger
	opts       Options

	frame gocv.Mat
	small gocv.Mat

	// detections from the last processed tick, in downsampled coordinates
	detections []Detection
	counter    int
	seq        uint64
}

func NewProcessor(source FrameSource, engine recognition.Engine, identifier Identifier, sink Sink, opts Options, logger *logger.Logger) *Processor {
	return &Processor{
		source:     source,
		engine:     engine,
		identifier: identifier,
		sink:       sink,
		logger:     logger,
		opts:       opts.withDefaults(),
		frame:      gocv.NewMat(),
		small:      gocv.NewMat(),
	}
}

// Run ticks until ctx is cancelled, pausing TickInterval between ticks so
// the UI side stays responsive.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()

	p.logger.Info("🎬 Frame loop started - detecting every %d frame(s) at 1/%d scale", p.opts.ProcessEveryNth, p.opts.Downscale)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("🛑 Frame loop stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick runs one iteration and reports whether a frame was published.
func (p *Processor) Tick() bool {
	if !p.source.IsCapturing() {
		return false
	}

	if err := p.source.Read(&p.frame); err != nil {
		p.logger.Warning("Frame capture failed: %v", err)
		return false
	}

	if p.counter%p.opts.ProcessEveryNth == 0 {
		p.detect()
	}
	p.counter++

	full := make([]Detection, len(p.detections))
	for i, d := range p.detections {
		d.Box = ScaleBox(d.Box, p.opts.Downscale).Intersect(image.Rect(0, 0, p.frame.Cols(), p.frame.Rows()))
		full[i] = d
	}

	if err := DrawDetections(&p.frame, full); err != nil {
		p.logger.Error("Failed to draw detections: %v", err)
	}

	data, err := camera.EncodeJPEG(p.frame, p.opts.JPEGQuality)
	if err != nil {
		p.logger.Error("Failed to encode frame: %v", err)
		return false
	}

	p.seq++
	p.sink.Publish(Frame{
		Seq:        p.seq,
		Captured:   time.Now(),
		Width:      p.frame.Cols(),
		Height:     p.frame.Rows(),
		JPEG:       data,
		Detections: full,
	})
	return true
}

// detect refreshes p.detections from the current frame. On failure the
// previous detections are kept.
func (p *Processor) detect() {
	input := p.frame
	if p.opts.Downscale > 1 {
		fx := 1.0 / float64(p.opts.Downscale)
		if err := gocv.Resize(p.frame, &p.small, image.Point{}, fx, fx, gocv.InterpolationLinear); err != nil {
			p.logger.Error("Failed to downsample frame: %v", err)
			return
		}
		input = p.small
	}

	faces, err := p.engine.Detect(input)
	if err != nil {
		p.logger.Error("Face detection failed: %v", err)
		return
	}

	detections := make([]Detection, 0, len(faces))
	for _, f := range faces {
		m := p.identifier.Identify(f.Encoding)
		detections = append(detections, Detection{
			Label:    m.Label,
			Box:      f.Box,
			Distance: m.Distance,
			Known:    m.Known,
		})
	}
	if len(detections) > 0 {
		p.logger.Debug("Detected %d face(s)", len(detections))
	}
	p.detections = detections
}

// Close releases the frame buffers.
func (p *Processor) Close() error {
	if err := p.small.Close(); err != nil {
		return err
	}
	return p.frame.Close()
}
