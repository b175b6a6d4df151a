package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/teamcutter/apkx/internal/domain"
)

// ManifestState keeps the unpack history in a single JSON file.
type ManifestState struct {
	mu       sync.RWMutex
	path     string
	manifest *domain.Manifest
}

func New(path string) *ManifestState {
	return &ManifestState{
		path: path,
	}
}

func (m *ManifestState) init() error {
	if m.manifest != nil {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.manifest = domain.NewManifest()
		return nil
	}
	if err != nil {
		return err
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return err
	}
	if manifest.Records == nil {
		manifest.Records = make(map[string]*domain.UnpackRecord)
	}
	m.manifest = &manifest
	return nil
}

func (m *ManifestState) Begin(rec *domain.UnpackRecord) error {
	rec.Status = domain.StatusPending
	return m.put(rec)
}

func (m *ManifestState) Complete(rec *domain.UnpackRecord) error {
	rec.Status = domain.StatusDone
	return m.put(rec)
}

func (m *ManifestState) Fail(rec *domain.UnpackRecord) error {
	rec.Status = domain.StatusFailed
	return m.put(rec)
}

func (m *ManifestState) put(rec *domain.UnpackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.init(); err != nil {
		return err
	}
	stored := *rec
	m.manifest.Records[rec.Archive] = &stored
	return writeManifest(m.path, m.manifest)
}

func (m *ManifestState) Get(archive string) (*domain.UnpackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.init(); err != nil {
		return nil, err
	}
	rec, ok := m.manifest.Records[archive]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, archive)
	}
	out := *rec
	return &out, nil
}

func (m *ManifestState) List() ([]*domain.UnpackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.init(); err != nil {
		return nil, err
	}

	records := make([]*domain.UnpackRecord, 0, len(m.manifest.Records))
	for _, rec := range m.manifest.Records {
		out := *rec
		records = append(records, &out)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UnpackedAt.Equal(records[j].UnpackedAt) {
			return records[i].UnpackedAt.After(records[j].UnpackedAt)
		}
		return records[i].Archive < records[j].Archive
	})
	return records, nil
}

func (m *ManifestState) Remove(archive string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.init(); err != nil {
		return err
	}
	if _, ok := m.manifest.Records[archive]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, archive)
	}
	delete(m.manifest.Records, archive)
	return writeManifest(m.path, m.manifest)
}

func (m *ManifestState) Close() error {
	return nil
}

func writeManifest(path string, manifest *domain.Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
