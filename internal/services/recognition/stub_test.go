package recognition

import "gocv.io/x/gocv"

type stubEngine struct {
	tolerance float32
	faces     []Face
}

func (s *stubEngine) Name() string                        { return "stub" }
func (s *stubEngine) DefaultTolerance() float32           { return s.tolerance }
func (s *stubEngine) Detect(img gocv.Mat) ([]Face, error) { return s.faces, nil }
func (s *stubEngine) Close() error                        { return nil }
