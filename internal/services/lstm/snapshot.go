package lstm

import (
	"encoding/json"
	"fmt"

	"StockSense/internal/domain/models"
)

const snapshotFormat = "stocksense.lstm.v1"

type snapshot struct {
	Format string               `json:"format"`
	Config Config               `json:"config"`
	Params map[string][]float64 `json:"params"`
}

// Encode serializes the configuration and weights as JSON. Optimizer state is not kept.
func (m *Model) Encode() ([]byte, error) {
	s := snapshot{Format: snapshotFormat, Config: m.cfg, Params: make(map[string][]float64, len(m.params))}
	for _, p := range m.params {
		s.Params[p.name] = p.w
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode lstm snapshot: %w", err)
	}
	return data, nil
}

// Decode rebuilds a model from Encode output. Any shape mismatch is ErrArtifactCorrupt.
func Decode(data []byte) (*Model, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode lstm snapshot: %w: %v", models.ErrArtifactCorrupt, err)
	}
	if s.Format != snapshotFormat {
		return nil, fmt.Errorf("decode lstm snapshot: %w: format %q", models.ErrArtifactCorrupt, s.Format)
	}
	m, err := build(s.Config)
	if err != nil {
		return nil, fmt.Errorf("decode lstm snapshot: %w: %v", models.ErrArtifactCorrupt, err)
	}
	for _, p := range m.params {
		w, ok := s.Params[p.name]
		if !ok {
			return nil, fmt.Errorf("decode lstm snapshot: %w: missing %s", models.ErrArtifactCorrupt, p.name)
		}
		if len(w) != len(p.w) {
			return nil, fmt.Errorf("decode lstm snapshot: %w: %s has %d values, want %d", models.ErrArtifactCorrupt, p.name, len(w), len(p.w))
		}
		copy(p.w, w)
	}
	return m, nil
}
