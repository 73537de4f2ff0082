package camera

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

var (
	ErrReadFailed        = errors.New("frame capture failed")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// Source is the part of gocv.VideoCapture the camera relies on.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Camera wraps a capture source with an enabled/disabled capture state.
type Camera struct {
	source    Source
	device    string
	openErr   error
	capturing atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens device (a numeric id, a file path or a stream URL). A device
// that fails to open still yields a Camera: capture starts disabled, every
// read fails, and Err reports why.
func Open(device string, width, height int) *Camera {
	var target interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		target = id
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return &Camera{device: device, openErr: fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, device, err)}
	}
	if !vc.IsOpened() {
		vc.Close()
		return &Camera{device: device, openErr: fmt.Errorf("%w: %s", ErrDeviceUnavailable, device)}
	}

	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	c := New(vc, device)
	c.capturing.Store(true)
	return c
}

// New wraps an already opened source. Capture starts disabled.
func New(source Source, device string) *Camera {
	return &Camera{source: source, device: device}
}

func (c *Camera) Device() string {
	return c.device
}

// Err returns the error that prevented the device from opening.
func (c *Camera) Err() error {
	return c.openErr
}

func (c *Camera) Available() bool {
	return c.source != nil
}

// Read grabs the next frame into dst.
func (c *Camera) Read(dst *gocv.Mat) error {
	if c.source == nil {
		return ErrDeviceUnavailable
	}
	if ok := c.source.Read(dst); !ok || dst.Empty() {
		return ErrReadFailed
	}
	return nil
}

func (c *Camera) Start() {
	c.capturing.Store(true)
}

func (c *Camera) Stop() {
	c.capturing.Store(false)
}

func (c *Camera) IsCapturing() bool {
	return c.capturing.Load()
}

// Close releases the device. Safe to call more than once.
func (c *Camera) Close() error {
	c.closeOnce.Do(func() {
		c.capturing.Store(false)
		if c.source != nil {
			c.closeErr = c.source.Close()
		}
	})
	return c.closeErr
}

// EncodeJPEG encodes mat as JPEG. An empty Mat encodes to nil.
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// EncodeBase64 is EncodeJPEG followed by standard base64. Empty Mats give "".
func EncodeBase64(mat gocv.Mat, quality int) (string, error) {
	data, err := EncodeJPEG(mat, quality)
	if err != nil || len(data) == 0 {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
