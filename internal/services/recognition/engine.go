package recognition

import (
	"fmt"
	"sync"

	"facecam/internal/config"

	"gocv.io/x/gocv"
)

// NewEngine loads the engine selected by cfg.Engine. The result is
// serialized: the frame loop and gallery reloads may share it.
func NewEngine(cfg *config.Config) (Engine, error) {
	var (
		engine Engine
		err    error
	)
	switch cfg.Engine {
	case config.EngineDlib:
		engine, err = NewDlibEngine(cfg.ModelDirectory, cfg.DlibCNN)
	case config.EngineOpenFace:
		params := DefaultPigoParams()
		params.MinSize = cfg.PigoMinSize
		engine, err = NewOpenFaceEngine(cfg.PigoCascade, cfg.EncoderModel, cfg.EncoderConfig, params)
	default:
		return nil, fmt.Errorf("unknown engine %q (expected %s or %s)", cfg.Engine, config.EngineDlib, config.EngineOpenFace)
	}
	if err != nil {
		return nil, err
	}
	return Serialize(engine), nil
}

// Serialize wraps engine so that at most one Detect or Close runs at a time.
func Serialize(engine Engine) Engine {
	if s, ok := engine.(*serialEngine); ok {
		return s
	}
	return &serialEngine{inner: engine}
}

type serialEngine struct {
	mu    sync.Mutex
	inner Engine
}

func (s *serialEngine) Name() string              { return s.inner.Name() }
func (s *serialEngine) DefaultTolerance() float32 { return s.inner.DefaultTolerance() }

func (s *serialEngine) Detect(img gocv.Mat) ([]Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Detect(img)
}

func (s *serialEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

// Tolerance resolves the configured tolerance, falling back to the engine's.
func Tolerance(cfg *config.Config, engine Engine) float32 {
	if cfg.MatchTolerance > 0 {
		return float32(cfg.MatchTolerance)
	}
	return engine.DefaultTolerance()
}
