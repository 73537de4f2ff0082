// Package recognition wraps the external face detection / encoding libraries
// and matches encodings against a set of labelled references.
package recognition

import (
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// UnknownLabel is shown for faces that match no reference.
const UnknownLabel = "Unknown"

var (
	ErrNoFace       = errors.New("no face detected")
	ErrEngineClosed = errors.New("recognition engine closed")
)

// Encoding is a face descriptor produced by an Engine.
type Encoding []float32

// Face is one detection in the coordinates of the image passed to Detect.
type Face struct {
	Box      image.Rectangle
	Encoding Encoding
}

// Engine detects faces and computes one encoding per face.
type Engine interface {
	Name() string
	Detect(img gocv.Mat) ([]Face, error)
	// DefaultTolerance is the largest distance still considered the same person.
	DefaultTolerance() float32
	Close() error
}

// Reference is a labelled encoding loaded from the reference directory.
type Reference struct {
	Label    string   `json:"label"`
	Source   string   `json:"source"`
	Encoding Encoding `json:"-"`
}

// Match is the outcome of comparing one encoding against the references.
type Match struct {
	Label    string
	Distance float32
	Known    bool
	Index    int // index into the reference slice, -1 when unknown
}

func unknownMatch(distance float32) Match {
	return Match{Label: UnknownLabel, Distance: distance, Index: -1}
}

// Distance is the Euclidean distance between two encodings. Encodings of
// different length never match.
func Distance(a, b Encoding) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return float32(math.MaxFloat32)
	}

	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// Normalize returns an L2-normalised copy of e.
func Normalize(e Encoding) Encoding {
	var norm float64
	for _, v := range e {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return e
	}
	norm = math.Sqrt(norm)

	out := make(Encoding, len(e))
	for i, v := range e {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
