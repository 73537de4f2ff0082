package recognition

import (
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
	"gocv.io/x/gocv"
)

// DlibTolerance is the distance dlib's ResNet model is tuned for.
const DlibTolerance = 0.6

// DlibEngine delegates detection and 128-d encodings to dlib through go-face.
// The model directory must contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for CNN detection,
// mmod_human_face_detector.dat.
type DlibEngine struct {
	rec *face.Recognizer
	cnn bool
	mu  sync.Mutex
}

func NewDlibEngine(modelDir string, cnn bool) (*DlibEngine, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelDir, err)
	}
	return &DlibEngine{rec: rec, cnn: cnn}, nil
}

func (e *DlibEngine) Name() string {
	if e.cnn {
		return "dlib-cnn"
	}
	return "dlib"
}

func (e *DlibEngine) DefaultTolerance() float32 {
	return DlibTolerance
}

// Detect hands dlib a JPEG of img; go-face decodes it as RGB itself, so no
// BGR->RGB conversion is needed on our side.
func (e *DlibEngine) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame for dlib: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		return nil, ErrEngineClosed
	}

	var faces []face.Face
	if e.cnn {
		faces, err = e.rec.RecognizeCNN(buf.GetBytes())
	} else {
		faces, err = e.rec.Recognize(buf.GetBytes())
	}
	if err != nil {
		return nil, fmt.Errorf("dlib recognition failed: %w", err)
	}

	results := make([]Face, 0, len(faces))
	for _, f := range faces {
		enc := make(Encoding, len(f.Descriptor))
		copy(enc, f.Descriptor[:])
		results = append(results, Face{Box: f.Rectangle, Encoding: enc})
	}
	return results, nil
}

func (e *DlibEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}
