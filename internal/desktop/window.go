// Package desktop shows the annotated camera view in a native window.
package desktop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync/atomic"

	"facecam/internal/logger"
	"facecam/internal/services/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const Title = "Camera App"

// Controller toggles capture from the window buttons.
type Controller interface {
	StartCapture(ctx context.Context)
	StopCapture(ctx context.Context)
	IsCapturing() bool
}

// Window is a pipeline.Sink that renders frames into a fyne window.
type Window struct {
	ctrl   Controller
	logger *logger.Logger

	win      fyne.Window
	view     *canvas.Image
	status   binding.String
	faces    binding.String
	startBtn *widget.Button
	stopBtn  *widget.Button

	// set while a frame is queued for the UI thread; newer frames are dropped
	pending atomic.Bool
}

// NewWindow builds the 480x320 view with Start and Stop buttons.
func NewWindow(a fyne.App, ctrl Controller, logger *logger.Logger) *Window {
	w := &Window{
		ctrl:   ctrl,
		logger: logger,
		win:    a.NewWindow(Title),
		status: binding.NewString(),
		faces:  binding.NewString(),
	}

	w.view = canvas.NewImageFromImage(nil)
	w.view.FillMode = canvas.ImageFillContain
	w.view.SetMinSize(fyne.NewSize(480, 320))

	w.startBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), func() {
		w.ctrl.StartCapture(context.Background())
		w.refreshControls()
	})
	w.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		w.ctrl.StopCapture(context.Background())
		w.refreshControls()
	})

	controls := container.NewGridWithColumns(2, w.startBtn, w.stopBtn)
	footer := container.NewVBox(
		controls,
		widget.NewLabelWithData(w.status),
		widget.NewLabelWithData(w.faces),
	)
	w.win.SetContent(container.NewBorder(nil, footer, nil, nil, w.view))
	w.win.Resize(fyne.NewSize(480, 420))
	w.refreshControls()

	return w
}

// Window exposes the underlying fyne window.
func (w *Window) Window() fyne.Window {
	return w.win
}

// Publish implements pipeline.Sink. Safe to call from the frame loop.
func (w *Window) Publish(frame pipeline.Frame) {
	if !w.pending.CompareAndSwap(false, true) {
		return
	}

	img, err := DecodeFrame(frame)
	if err != nil {
		w.pending.Store(false)
		w.logger.Warning("Desktop view dropped frame %d: %v", frame.Seq, err)
		return
	}
	summary := FaceSummary(frame)

	fyne.Do(func() {
		defer w.pending.Store(false)
		w.view.Image = img
		w.view.Refresh()
		_ = w.faces.Set(summary)
	})
}

// CaptureChanged follows capture toggles made from other surfaces (web
// page, HTTP API). Safe to call from any goroutine.
func (w *Window) CaptureChanged(capturing bool) {
	fyne.Do(w.refreshControls)
}

func (w *Window) refreshControls() {
	capturing := w.ctrl.IsCapturing()
	if capturing {
		w.startBtn.Disable()
		w.stopBtn.Enable()
		_ = w.status.Set("Capturing")
	} else {
		w.startBtn.Enable()
		w.stopBtn.Disable()
		_ = w.status.Set("Stopped")
	}
}

// ShowAndRun blocks until the window is closed.
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}

// DecodeFrame turns the published JPEG back into an image for the canvas.
func DecodeFrame(frame pipeline.Frame) (image.Image, error) {
	if len(frame.JPEG) == 0 {
		return nil, fmt.Errorf("frame %d has no image data", frame.Seq)
	}
	img, err := jpeg.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", frame.Seq, err)
	}
	return img, nil
}

// FaceSummary lists the labels on screen, e.g. "Faces: Obama (0.31), Unknown".
func FaceSummary(frame pipeline.Frame) string {
	if len(frame.Detections) == 0 {
		return "Faces: none"
	}
	parts := make([]string, 0, len(frame.Detections))
	for _, d := range frame.Detections {
		if d.Known {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", d.Label, d.Distance))
		} else {
			parts = append(parts, d.Label)
		}
	}
	return "Faces: " + strings.Join(parts, ", ")
}
