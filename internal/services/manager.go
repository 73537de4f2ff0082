package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"facecam/internal/config"
	"facecam/internal/dto"
	"facecam/internal/logger"
	"facecam/internal/services/camera"
	"facecam/internal/services/gallery"
	"facecam/internal/services/pipeline"
	"facecam/internal/services/recognition"
	"facecam/internal/services/storage"
	"facecam/internal/services/websocket"
)

// Manager owns the camera, the reference gallery and the frame loop, and
// fans every annotated frame out to viewers, the snapshot buffer and any
// in-process sinks.
type Manager struct {
	camera           *camera.Camera
	gallery          *gallery.Gallery
	engine           recognition.Engine
	processor        *pipeline.Processor
	websocketService *websocket.HubService
	bufferService    *storage.BufferService
	logger           *logger.Logger

	sinksMu   sync.RWMutex
	sinks     []pipeline.Sink
	listeners []StatusListener

	latestMu sync.RWMutex
	latest   *pipeline.Frame
}

// StatusListener is told about every capture toggle, whichever surface
// caused it.
type StatusListener interface {
	CaptureChanged(capturing bool)
}

// NewManager wires the frame loop. bufferService may be nil when snapshots are disabled.
func NewManager(cam *camera.Camera, gal *gallery.Gallery, engine recognition.Engine, websocketService *websocket.HubService, bufferService *storage.BufferService, cfg *config.Config, logger *logger.Logger) *Manager {
	m := &Manager{
		camera:           cam,
		gallery:          gal,
		engine:           engine,
		websocketService: websocketService,
		bufferService:    bufferService,
		logger:           logger,
	}

	m.processor = pipeline.NewProcessor(cam, engine, gal, m, pipeline.Options{
		Downscale:       cfg.Downscale,
		ProcessEveryNth: cfg.ProcessEveryNth,
		TickInterval:    cfg.TickInterval,
		JPEGQuality:     cfg.JPEGQuality,
	}, logger)

	return m
}

// Run drives the frame loop until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	return m.processor.Run(ctx)
}

// Publish implements pipeline.Sink.
func (m *Manager) Publish(frame pipeline.Frame) {
	m.latestMu.Lock()
	m.latest = &frame
	m.latestMu.Unlock()

	m.SendToViewers(frame)

	if m.bufferService != nil {
		m.bufferService.Publish(frame)
	}

	m.sinksMu.RLock()
	defer m.sinksMu.RUnlock()
	for _, sink := range m.sinks {
		sink.Publish(frame)
	}
}

// SendToViewers skips encoding while nobody is watching and clears the
// hub's greeting frame instead; the next tick greets a new viewer.
func (m *Manager) SendToViewers(frame pipeline.Frame) {
	if m.websocketService == nil {
		return
	}
	if m.websocketService.GetClientCount() == 0 {
		m.websocketService.ForgetLastFrame()
		return
	}

	msg, err := json.Marshal(dto.FrameMessage{
		Type:      dto.MessageTypeFrame,
		Seq:       frame.Seq,
		Image:     base64.StdEncoding.EncodeToString(frame.JPEG),
		Width:     frame.Width,
		Height:    frame.Height,
		Faces:     frame.FaceBoxes(),
		Capturing: m.camera.IsCapturing(),
	})
	if err != nil {
		m.logger.Error("Failed to encode frame message: %v", err)
		return
	}
	m.websocketService.BroadcastFrame(msg)
}

// AddSink registers an extra frame consumer such as the desktop window.
func (m *Manager) AddSink(sink pipeline.Sink) {
	m.sinksMu.Lock()
	defer m.sinksMu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// AddStatusListener registers l for capture toggles.
func (m *Manager) AddStatusListener(l StatusListener) {
	m.sinksMu.Lock()
	defer m.sinksMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) StartCapture(ctx context.Context) {
	m.camera.Start()
	m.logger.Info("▶️  Capture started on device %s", m.camera.Device())
	m.broadcastStatus(ctx)
}

func (m *Manager) StopCapture(ctx context.Context) {
	m.camera.Stop()
	m.logger.Info("⏸️  Capture stopped on device %s", m.camera.Device())
	m.broadcastStatus(ctx)
}

func (m *Manager) IsCapturing() bool {
	return m.camera.IsCapturing()
}

func (m *Manager) StatusMessage() dto.StatusMessage {
	msg := dto.StatusMessage{
		Type:      dto.MessageTypeStatus,
		Capturing: m.camera.IsCapturing(),
		Device:    m.camera.Device(),
	}
	if err := m.camera.Err(); err != nil {
		msg.Error = err.Error()
	}
	return msg
}

func (m *Manager) broadcastStatus(ctx context.Context) {
	capturing := m.camera.IsCapturing()
	m.sinksMu.RLock()
	for _, l := range m.listeners {
		l.CaptureChanged(capturing)
	}
	m.sinksMu.RUnlock()

	if m.websocketService == nil {
		return
	}
	msg, err := json.Marshal(m.StatusMessage())
	if err != nil {
		m.logger.Error("Failed to encode status message: %v", err)
		return
	}
	m.websocketService.BroadcastStatus(ctx, msg)
}

// Status summarises the capture state for the API.
func (m *Manager) Status() dto.CaptureStatus {
	status := dto.CaptureStatus{
		Capturing:  m.camera.IsCapturing(),
		Device:     m.camera.Device(),
		Available:  m.camera.Available(),
		Engine:     m.engine.Name(),
		References: m.gallery.Len(),
	}
	if err := m.camera.Err(); err != nil {
		status.Error = err.Error()
	}
	if m.websocketService != nil {
		status.Viewers = m.websocketService.GetClientCount()
	}
	return status
}

// Latest returns the last published frame.
func (m *Manager) Latest() (pipeline.Frame, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	if m.latest == nil {
		return pipeline.Frame{}, false
	}
	return *m.latest, true
}

func (m *Manager) ReloadGallery(ctx context.Context) (gallery.Report, error) {
	return m.gallery.Reload(ctx)
}

func (m *Manager) References() []recognition.Reference {
	return m.gallery.References()
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

// Stop releases the frame loop's buffers. Call after Run has returned.
func (m *Manager) Stop() {
	if err := m.processor.Close(); err != nil {
		m.logger.Error("Failed to release frame buffers: %v", err)
	}
	m.logger.Info("🛑 Frame loop resources released")
}
