package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Local writes assets and entries to a directory instead of a site.
// It backs dry runs and the plan command.
type Local struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
}

func NewLocal(dir string, logger *zap.Logger) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local sink requires an output dir")
	}
	if err := os.MkdirAll(filepath.Join(dir, "media"), 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{dir: dir, logger: logger}, nil
}

func (l *Local) id() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	return l.nextID
}

func (l *Local) UploadAsset(ctx context.Context, data []byte, filename string) (Asset, error) {
	path := filepath.Join(l.dir, "media", filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Asset{}, fmt.Errorf("write asset %s: %w", filename, err)
	}
	l.logger.Debug("asset written", zap.String("path", path))
	return Asset{ID: l.id(), URL: "media/" + filepath.Base(filename)}, nil
}

func (l *Local) CreateEntry(ctx context.Context, e Entry) (Result, error) {
	id := l.id()
	base := fmt.Sprintf("post-%d", id)
	htmlPath := filepath.Join(l.dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(e.HTML), 0o644); err != nil {
		return Result{}, fmt.Errorf("write entry: %w", err)
	}
	meta, err := json.MarshalIndent(map[string]any{
		"title":            e.Title,
		"status":           e.Status,
		"featured_media":   e.CoverID,
		"focus_keyword":    e.FocusKeyword,
		"meta_description": e.MetaDescription,
	}, "", "  ")
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(filepath.Join(l.dir, base+".json"), meta, 0o644); err != nil {
		return Result{}, fmt.Errorf("write entry metadata: %w", err)
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		abs = htmlPath
	}
	l.logger.Info("entry written", zap.String("path", abs))
	return Result{ID: id, URL: "file://" + abs}, nil
}
