// Package models fetches the detector and encoder files the engines load.
package models

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"facecam/internal/config"
	"facecam/internal/logger"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/net/proxy"
)

var ErrUnknownModel = errors.New("unknown model")

// Model is one downloadable file. URLs are tried in order.
type Model struct {
	Key         string
	Name        string
	Filename    string
	URLs        []string
	MD5         string // optional
	Engine      string
	Description string
}

const dlibBase = "https://github.com/Kagami/go-face-testdata/raw/master/models/"

// Available lists every model the engines can use.
var Available = map[string]Model{
	"dlib-shape": {
		Key:         "dlib-shape",
		Name:        "dlib 5-point shape predictor",
		Filename:    "shape_predictor_5_face_landmarks.dat",
		URLs:        []string{dlibBase + "shape_predictor_5_face_landmarks.dat"},
		Engine:      config.EngineDlib,
		Description: "Face landmarks used to align faces before encoding",
	},
	"dlib-resnet": {
		Key:         "dlib-resnet",
		Name:        "dlib ResNet face encoder",
		Filename:    "dlib_face_recognition_resnet_model_v1.dat",
		URLs:        []string{dlibBase + "dlib_face_recognition_resnet_model_v1.dat"},
		Engine:      config.EngineDlib,
		Description: "128-d face encodings",
	},
	"dlib-cnn": {
		Key:         "dlib-cnn",
		Name:        "dlib MMOD CNN face detector",
		Filename:    "mmod_human_face_detector.dat",
		URLs:        []string{dlibBase + "mmod_human_face_detector.dat"},
		Engine:      config.EngineDlib,
		Description: "Optional CNN detector (DLIB_CNN=true)",
	},
	"pigo-facefinder": {
		Key:         "pigo-facefinder",
		Name:        "Pigo face finder cascade",
		Filename:    "facefinder",
		URLs:        []string{"https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"},
		Engine:      config.EngineOpenFace,
		Description: "Pixel intensity comparison face detector",
	},
	"openface": {
		Key:      "openface",
		Name:     "OpenFace nn4.small2.v1",
		Filename: "nn4.small2.v1.t7",
		URLs: []string{
			"https://storage.cmusatyalab.org/openface-models/nn4.small2.v1.t7",
			"https://raw.githubusercontent.com/pyannote/pyannote-data/master/openface.nn4.small2.v1.t7",
			"https://files.kde.org/digikam/facesengine/dnnface/openface_nn4.small2.v1.t7",
		},
		MD5:         "c95bfd8cc1adf05210e979ff623013b6",
		Engine:      config.EngineOpenFace,
		Description: "96x96 input, 128-d encodings",
	},
}

// Keys returns the model keys in a stable order.
func Keys() []string {
	keys := make([]string, 0, len(Available))
	for k := range Available {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Required returns the keys an engine needs to start.
func Required(engine string, cnn bool) []string {
	switch engine {
	case config.EngineOpenFace:
		return []string{"pigo-facefinder", "openface"}
	default:
		keys := []string{"dlib-shape", "dlib-resnet"}
		if cnn {
			keys = append(keys, "dlib-cnn")
		}
		return keys
	}
}

// Downloader writes models into Dir. Progress bars go to Output when set.
type Downloader struct {
	Dir              string
	ProxyURL         string // socks5://host:port or http(s)://host:port
	Timeout          time.Duration
	SkipVerification bool
	Output           io.Writer

	logger *logger.Logger
	client *http.Client
}

func NewDownloader(dir string, logger *logger.Logger) *Downloader {
	return &Downloader{
		Dir:     dir,
		Timeout: 10 * time.Minute,
		logger:  logger,
	}
}

// Path returns where the model with key is stored.
func (d *Downloader) Path(key string) (string, error) {
	m, ok := Available[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, key)
	}
	return filepath.Join(d.Dir, m.Filename), nil
}

// Download fetches the given keys, skipping files that are already present
// and valid. It stops at the first model no mirror could provide.
func (d *Downloader) Download(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m, ok := Available[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownModel, key)
		}
		if err := d.DownloadModel(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// DownloadModel fetches m, falling back through its mirrors.
func (d *Downloader) DownloadModel(ctx context.Context, m Model) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	path := filepath.Join(d.Dir, m.Filename)
	if _, err := os.Stat(path); err == nil {
		if d.SkipVerification || m.MD5 == "" || verifyMD5(path, m.MD5) {
			d.logger.Info("Model %s already present at %s", m.Key, path)
			return nil
		}
		d.logger.Warning("Model %s failed verification, downloading again", m.Key)
		os.Remove(path)
	}

	client, err := d.httpClient()
	if err != nil {
		return err
	}

	var lastErr error
	for _, u := range m.URLs {
		if err := d.fetch(ctx, client, m, u, path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warning("Download of %s from %s failed: %v", m.Key, u, err)
			lastErr = err
			continue
		}
		d.logger.Info("✅ Downloaded %s to %s", m.Key, path)
		return nil
	}
	return fmt.Errorf("all mirrors failed for %s: %w", m.Key, lastErr)
}

// fetch downloads into a temporary file and renames it into place once the
// checksum matches.
func (d *Downloader) fetch(ctx context.Context, client *http.Client, m Model, rawURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(d.Dir, m.Filename+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	out := d.Output
	if out == nil {
		out = io.Discard
	}
	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(m.Key),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)

	if _, err := io.Copy(io.MultiWriter(tmp, bar), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", m.Filename, err)
	}
	bar.Finish()
	if err := tmp.Close(); err != nil {
		return err
	}

	if !d.SkipVerification && m.MD5 != "" && !verifyMD5(tmp.Name(), m.MD5) {
		return fmt.Errorf("checksum mismatch for %s", m.Filename)
	}
	return os.Rename(tmp.Name(), path)
}

func (d *Downloader) httpClient() (*http.Client, error) {
	if d.client != nil {
		return d.client, nil
	}

	client := &http.Client{Timeout: d.Timeout}
	if d.ProxyURL == "" {
		return client, nil
	}

	proxyURL, err := url.Parse(d.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch proxyURL.Scheme {
	case "socks5":
		dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		client.Transport = &http.Transport{DialContext: ctxDialer.DialContext}
		d.logger.Info("Using SOCKS5 proxy %s", proxyURL.Host)
	case "http", "https":
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		d.logger.Info("Using HTTP proxy %s", proxyURL.Host)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (supported: socks5, http, https)", proxyURL.Scheme)
	}
	return client, nil
}

// Missing returns the keys whose files are not in dir.
func Missing(dir string, keys []string) []string {
	var missing []string
	for _, key := range keys {
		m, ok := Available[key]
		if !ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, m.Filename)); err != nil {
			missing = append(missing, key)
		}
	}
	return missing
}

func verifyMD5(path, expected string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return hex.EncodeToString(h.Sum(nil)) == expected
}
