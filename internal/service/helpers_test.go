package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"detectionsite/internal/config"
	"detectionsite/internal/dto"
	"detectionsite/internal/logger"
	"detectionsite/internal/repository/sqlite"
	"detectionsite/internal/service/ai"
	"detectionsite/internal/service/storage"
)

// ========================================
// Test Setup Helpers
// ========================================

type testEnv struct {
	cfg        *config.Config
	db         *sqlite.DB
	feeds      *FeedService
	detections *sqlite.DetectionRepository
	registry   *ai.Registry
	events     *recordingNotifier
	pipeline   *Pipeline
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DatabasePath:   filepath.Join(dir, "test.db"),
		MediaDirectory: filepath.Join(dir, "media"),
		LogDirectory:   filepath.Join(dir, "logs"),
	}

	log := logger.NewLogger(cfg)
	t.Cleanup(log.Close)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	detections := sqlite.NewDetectionRepository(db)
	feeds := NewFeedService(sqlite.NewUserRepository(db), sqlite.NewFeedRepository(db),
		detections, storage.NewFileStore(cfg, log), log)

	registry := ai.NewRegistry(true, log)
	t.Cleanup(registry.Close)

	events := &recordingNotifier{}

	return &testEnv{
		cfg:        cfg,
		db:         db,
		feeds:      feeds,
		detections: detections,
		registry:   registry,
		events:     events,
		pipeline:   NewPipeline(feeds, detections, registry, events, log),
	}
}

// register adds a variant backed by a fake detector returning dets.
func (e *testEnv) register(name string, threshold float64, style ai.Style, dets ...ai.Detection) *fakeDetector {
	det := &fakeDetector{detections: dets}
	e.registry.Register(ai.Variant{
		Name:      name,
		Threshold: threshold,
		Style:     style,
		Load:      func() (ai.Detector, error) { return det, nil },
	})
	return det
}

// mediaFiles lists every file stored under the media root.
func (e *testEnv) mediaFiles(t *testing.T) []string {
	t.Helper()

	var files []string
	err := filepath.Walk(e.cfg.MediaDirectory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk media dir: %v", err)
	}
	return files
}

type fakeDetector struct {
	mu         sync.Mutex
	detections []ai.Detection
	err        error
	calls      int
}

func (f *fakeDetector) Detect(img image.Image) ([]ai.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.detections, f.err
}

func (f *fakeDetector) Close() error { return nil }

type recordingNotifier struct {
	mu     sync.Mutex
	events []dto.ProcessedEvent
}

func (n *recordingNotifier) BroadcastEvent(event dto.ProcessedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

var errBoom = errors.New("boom")
