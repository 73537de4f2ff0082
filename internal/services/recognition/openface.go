package recognition

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// OpenFaceTolerance suits L2-normalised nn4.small2 features.
const OpenFaceTolerance = 0.99

// PigoParams holds pigo cascade parameters.
type PigoParams struct {
	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	QualityThreshold float32
	IoUThreshold     float64
}

// DefaultPigoParams are tuned for quarter-scale webcam frames.
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:          20,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		QualityThreshold: 5.0,
		IoUThreshold:     0.2,
	}
}

// OpenFaceEngine finds faces with a pigo cascade and encodes each face region
// with an OpenCV DNN model (OpenFace nn4.small2 by default: 96x96 in, 128-d out).
type OpenFaceEngine struct {
	classifier *pigo.Pigo
	encoder    gocv.Net
	params     PigoParams
	inputSize  image.Point
	closed     bool
	mu         sync.Mutex
}

func NewOpenFaceEngine(cascadePath, modelPath, configPath string, params PigoParams) (*OpenFaceEngine, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pigo cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pigo cascade: %w", err)
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("encoder model not found: %w", err)
	}
	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, errors.New("failed to load face encoder model")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set encoder backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set encoder target: %w", err)
	}

	return &OpenFaceEngine{
		classifier: classifier,
		encoder:    net,
		params:     params,
		inputSize:  image.Pt(96, 96),
	}, nil
}

func (e *OpenFaceEngine) Name() string {
	return "openface"
}

func (e *OpenFaceEngine) DefaultTolerance() float32 {
	return OpenFaceTolerance
}

func (e *OpenFaceEngine) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}

	boxes, err := e.detectBoxes(img)
	if err != nil {
		return nil, err
	}

	faces := make([]Face, 0, len(boxes))
	for _, box := range boxes {
		region := img.Region(box)
		enc, err := e.encode(region)
		region.Close()
		if err != nil {
			return nil, err
		}
		faces = append(faces, Face{Box: box, Encoding: enc})
	}
	return faces, nil
}

func (e *OpenFaceEngine) detectBoxes(img gocv.Mat) ([]image.Rectangle, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(img, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}

	cols, rows := gray.Cols(), gray.Rows()
	params := pigo.CascadeParams{
		MinSize:     e.params.MinSize,
		MaxSize:     e.params.MaxSize,
		ShiftFactor: e.params.ShiftFactor,
		ScaleFactor: e.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := e.classifier.RunCascade(params, 0.0)
	dets = e.classifier.ClusterDetections(dets, e.params.IoUThreshold)

	bounds := image.Rect(0, 0, cols, rows)
	boxes := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q <= e.params.QualityThreshold {
			continue
		}
		x := det.Col - det.Scale/2
		y := det.Row - det.Scale/2
		box := image.Rect(x, y, x+det.Scale, y+det.Scale).Intersect(bounds)
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

func (e *OpenFaceEngine) encode(faceImg gocv.Mat) (Encoding, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(faceImg, &resized, e.inputSize, 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("failed to resize face: %w", err)
	}

	blob := gocv.BlobFromImage(resized, 1.0/255.0, e.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.encoder.SetInput(blob, "")
	output := e.encoder.Forward("")
	defer output.Close()

	enc := make(Encoding, output.Total())
	for i := range enc {
		enc[i] = output.GetFloatAt(0, i)
	}
	return Normalize(enc), nil
}

func (e *OpenFaceEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.encoder.Close()
}
