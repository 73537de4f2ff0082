package desktop

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"facecam/internal/logger"
	"facecam/internal/services/pipeline"
	"facecam/internal/services/recognition"

	"fyne.io/fyne/v2/test"
)

type fakeController struct {
	mu        sync.Mutex
	capturing bool
}

func (f *fakeController) StartCapture(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = true
}

func (f *fakeController) StopCapture(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = false
}

func (f *fakeController) IsCapturing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capturing
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestNewWindow_ButtonsToggleCapture(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	ctrl := &fakeController{}
	w := NewWindow(a, ctrl, logger.Discard())

	if w.Window().Title() != Title {
		t.Errorf("Expected title %q, got %q", Title, w.Window().Title())
	}
	if !w.stopBtn.Disabled() || w.startBtn.Disabled() {
		t.Error("Only Start should be enabled while stopped")
	}

	test.Tap(w.startBtn)
	if !ctrl.IsCapturing() {
		t.Error("Start should enable capture")
	}
	if status, _ := w.status.Get(); status != "Capturing" {
		t.Errorf("Expected status Capturing, got %q", status)
	}

	test.Tap(w.stopBtn)
	if ctrl.IsCapturing() {
		t.Error("Stop should disable capture")
	}
	if status, _ := w.status.Get(); status != "Stopped" {
		t.Errorf("Expected status Stopped, got %q", status)
	}
}

func TestCaptureChanged_FollowsExternalToggle(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	ctrl := &fakeController{}
	w := NewWindow(a, ctrl, logger.Discard())

	// toggled from the web page, not from the window
	ctrl.StartCapture(context.Background())
	w.CaptureChanged(true)
	waitForStatus(t, w, "Capturing")
	if !w.startBtn.Disabled() || w.stopBtn.Disabled() {
		t.Error("Only Stop should be enabled while capturing")
	}

	ctrl.StopCapture(context.Background())
	w.CaptureChanged(false)
	waitForStatus(t, w, "Stopped")
	if w.startBtn.Disabled() || !w.stopBtn.Disabled() {
		t.Error("Only Start should be enabled while stopped")
	}
}

func waitForStatus(t *testing.T, w *Window, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if status, _ := w.status.Get(); status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Status never became %q", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDecodeFrame(t *testing.T) {
	img, err := DecodeFrame(pipeline.Frame{Seq: 1, JPEG: testJPEG(t, 48, 32)})
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if img.Bounds().Dx() != 48 || img.Bounds().Dy() != 32 {
		t.Errorf("Expected 48x32, got %v", img.Bounds())
	}

	if _, err := DecodeFrame(pipeline.Frame{Seq: 2}); err == nil {
		t.Error("Expected an error for an empty frame")
	}
	if _, err := DecodeFrame(pipeline.Frame{Seq: 3, JPEG: []byte("nope")}); err == nil {
		t.Error("Expected an error for corrupt data")
	}
}

func TestFaceSummary(t *testing.T) {
	tests := []struct {
		detections []pipeline.Detection
		expected   string
	}{
		{nil, "Faces: none"},
		{[]pipeline.Detection{{Label: "Obama", Distance: 0.31, Known: true}}, "Faces: Obama (0.31)"},
		{[]pipeline.Detection{
			{Label: "Biden", Distance: 0.4, Known: true},
			{Label: recognition.UnknownLabel, Distance: 0.8},
		}, "Faces: Biden (0.40), Unknown"},
	}

	for _, tt := range tests {
		if got := FaceSummary(pipeline.Frame{Detections: tt.detections}); got != tt.expected {
			t.Errorf("FaceSummary() = %q, expected %q", got, tt.expected)
		}
	}
}

func TestPublish_DropsUndecodableFrames(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	w := NewWindow(a, &fakeController{}, logger.Discard())
	w.Publish(pipeline.Frame{Seq: 7, JPEG: []byte("garbage")})

	if w.pending.Load() {
		t.Error("A dropped frame must not leave the window blocked")
	}
}
