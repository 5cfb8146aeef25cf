package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StockSense/internal/domain/models"
	applogger "StockSense/pkg/logger"
)

// FileModelStore keeps artifacts as JSON files:
//
//	{dir}/{key}.model.json     network snapshot
//	{dir}/scalers/{key}.json   feature and target scaler state
//	{dir}/metadata/{key}.json  metadata, written last
//
// Each file is replaced atomically. The metadata file acts as the commit record, so a crash
// between writes leaves either the previous artifact or a bundle id mismatch that Load reports
// as corrupt.
type FileModelStore struct {
	dir string
	l   *applogger.Logger
}

// modelFile wraps the network snapshot with the bundle it belongs to.
type modelFile struct {
	BundleID string          `json:"bundle_id"`
	Network  json.RawMessage `json:"network"`
}

func NewFileModelStore(dir string, l *applogger.Logger) (*FileModelStore, error) {
	for _, d := range []string{dir, filepath.Join(dir, "scalers"), filepath.Join(dir, "metadata")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("model store: create %s: %w", d, err)
		}
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &FileModelStore{dir: dir, l: l}, nil
}

func (s *FileModelStore) modelPath(key string) string  { return filepath.Join(s.dir, key+".model.json") }
func (s *FileModelStore) scalerPath(key string) string { return filepath.Join(s.dir, "scalers", key+".json") }
func (s *FileModelStore) metaPath(key string) string   { return filepath.Join(s.dir, "metadata", key+".json") }

func (s *FileModelStore) Save(_ context.Context, a *models.Artifact) error {
	key := models.ArtifactKey(a.Metadata.Symbol)
	if key == "" {
		return fmt.Errorf("%w: save artifact: empty symbol", models.ErrStorage)
	}
	if !json.Valid(a.Weights) {
		return fmt.Errorf("%w: save %s: network snapshot is not json", models.ErrStorage, key)
	}
	if err := writeJSONAtomic(s.modelPath(key), modelFile{BundleID: a.Metadata.BundleID, Network: a.Weights}); err != nil {
		return fmt.Errorf("%w: save %s model: %w", models.ErrStorage, key, err)
	}
	if err := writeJSONAtomic(s.scalerPath(key), a.Scalers); err != nil {
		return fmt.Errorf("%w: save %s scalers: %w", models.ErrStorage, key, err)
	}
	if err := writeJSONAtomic(s.metaPath(key), a.Metadata); err != nil {
		return fmt.Errorf("%w: save %s metadata: %w", models.ErrStorage, key, err)
	}
	s.l.Debug("model saved", applogger.String("key", key), applogger.String("bundle_id", a.Metadata.BundleID))
	return nil
}

func (s *FileModelStore) Load(_ context.Context, symbol string) (*models.Artifact, bool, error) {
	key := models.ArtifactKey(symbol)
	if key == "" {
		return nil, false, nil
	}

	var (
		a  models.Artifact
		mf modelFile
	)
	parts := []struct {
		path string
		dst  any
	}{
		{s.metaPath(key), &a.Metadata},
		{s.scalerPath(key), &a.Scalers},
		{s.modelPath(key), &mf},
	}
	for _, p := range parts {
		data, ok, err := readFile(p.path)
		if err != nil {
			return nil, false, fmt.Errorf("%w: load %s: %w", models.ErrStorage, key, err)
		}
		if !ok {
			return nil, false, nil
		}
		if err := json.Unmarshal(data, p.dst); err != nil {
			return nil, false, fmt.Errorf("%w: %s: %w", models.ErrArtifactCorrupt, filepath.Base(p.path), err)
		}
	}

	if a.Scalers.BundleID != a.Metadata.BundleID || mf.BundleID != a.Metadata.BundleID {
		return nil, false, fmt.Errorf("%w: %s bundle ids differ (metadata %q, scalers %q, model %q)",
			models.ErrArtifactCorrupt, key, a.Metadata.BundleID, a.Scalers.BundleID, mf.BundleID)
	}
	a.Weights = []byte(mf.Network)
	return &a, true, nil
}

// Count returns the number of committed artifacts.
func (s *FileModelStore) Count(context.Context) (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "metadata"))
	if err != nil {
		return 0, fmt.Errorf("%w: count models: %w", models.ErrStorage, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n, nil
}

// FileSummaryStore writes one training_summary_{market}.json per market.
type FileSummaryStore struct {
	dir string
}

func NewFileSummaryStore(dir string) (*FileSummaryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("summary store: create %s: %w", dir, err)
	}
	return &FileSummaryStore{dir: dir}, nil
}

func (s *FileSummaryStore) path(market string) string {
	return filepath.Join(s.dir, "training_summary_"+models.ArtifactKey(market)+".json")
}

func (s *FileSummaryStore) SaveSummary(_ context.Context, sum *models.Summary) error {
	if err := writeJSONAtomic(s.path(sum.Market), sum); err != nil {
		return fmt.Errorf("%w: save summary %s: %w", models.ErrStorage, sum.Market, err)
	}
	return nil
}

func (s *FileSummaryStore) LoadSummary(_ context.Context, market string) (*models.Summary, bool, error) {
	data, ok, err := readFile(s.path(market))
	if err != nil {
		return nil, false, fmt.Errorf("%w: load summary %s: %w", models.ErrStorage, market, err)
	}
	if !ok {
		return nil, false, nil
	}
	var sum models.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, false, fmt.Errorf("%w: summary %s: %w", models.ErrArtifactCorrupt, market, err)
	}
	return &sum, true, nil
}
