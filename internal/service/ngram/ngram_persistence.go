package ngram

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const snapshotVersion = "1.0"

// SerializableNGramModel is the on-disk form of a model
type SerializableNGramModel struct {
	Version      string
	Name         string
	CreatedAt    time.Time
	Params       Params
	SmootherName string
	TotalTokens  int64
	TextCount    int64
	IDToToken    []string // index is the token id; id 0 is the boundary marker
	Entries      []SerializableEntry
}

// SerializableEntry is one (context, token) count
type SerializableEntry struct {
	Context []uint32
	Token   uint32
	Count   int64
}

// NGramPersistence handles saving and loading n-gram models
type NGramPersistence struct {
	outputDir string
	logger    *zap.Logger
}

// NewNGramPersistence creates a new persistence manager
func NewNGramPersistence(outputDir string, logger *zap.Logger) (*NGramPersistence, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &NGramPersistence{
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// GetModelPath returns the file path for a named snapshot
func (p *NGramPersistence) GetModelPath(name string) string {
	return filepath.Join(p.outputDir, fmt.Sprintf("%s_ngram.gob", name))
}

func validSnapshotName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid model name %q", ErrInvalidParameter, name)
	}
	return nil
}

// SaveModel writes a snapshot of model under name
func (p *NGramPersistence) SaveModel(model *NgramModel, name string) error {
	if err := validSnapshotName(name); err != nil {
		return err
	}

	snapshot := serializeModel(model)
	snapshot.Name = name

	modelPath := p.GetModelPath(name)
	if err := p.saveToFile(snapshot, modelPath); err != nil {
		return fmt.Errorf("failed to save to file: %w", err)
	}

	p.logger.Info("Saved n-gram model",
		zap.String("name", name),
		zap.String("path", modelPath),
		zap.Int("n", snapshot.Params.N),
		zap.Int("entries", len(snapshot.Entries)),
		zap.Int64("tokens", snapshot.TotalTokens))

	return nil
}

// LoadModel restores the snapshot saved under name
func (p *NGramPersistence) LoadModel(name string) (*NgramModel, error) {
	snapshot, err := p.LoadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return p.Restore(snapshot)
}

// LoadSnapshot reads the snapshot saved under name without building a model
func (p *NGramPersistence) LoadSnapshot(name string) (*SerializableNGramModel, error) {
	if err := validSnapshotName(name); err != nil {
		return nil, err
	}

	modelPath := p.GetModelPath(name)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no saved model named %s", ErrModelNotFound, name)
	}

	snapshot, err := p.loadFromFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load from file: %w", err)
	}
	return snapshot, nil
}

// Restore rebuilds a model from a snapshot
func (p *NGramPersistence) Restore(snapshot *SerializableNGramModel) (*NgramModel, error) {
	model, err := deserializeModel(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to restore model: %w", err)
	}

	p.logger.Info("Loaded n-gram model",
		zap.String("name", snapshot.Name),
		zap.Int("n", snapshot.Params.N),
		zap.Int("entries", len(snapshot.Entries)),
		zap.Int64("tokens", snapshot.TotalTokens))

	return model, nil
}

// ModelExists checks if a snapshot exists for name
func (p *NGramPersistence) ModelExists(name string) bool {
	if validSnapshotName(name) != nil {
		return false
	}
	_, err := os.Stat(p.GetModelPath(name))
	return err == nil
}

// DeleteModel deletes a saved snapshot
func (p *NGramPersistence) DeleteModel(name string) error {
	if err := validSnapshotName(name); err != nil {
		return err
	}
	if err := os.Remove(p.GetModelPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	p.logger.Info("Deleted n-gram model", zap.String("name", name))
	return nil
}

// serializeModel copies the model state under the read lock
func serializeModel(m *NgramModel) *SerializableNGramModel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &SerializableNGramModel{
		Version:      snapshotVersion,
		CreatedAt:    time.Now(),
		Params:       m.params,
		SmootherName: m.smoother.Name(),
		TotalTokens:  m.totalTokens,
		TextCount:    m.textCount,
		IDToToken:    append([]string(nil), m.vocabulary.idToToken...),
		Entries:      make([]SerializableEntry, 0, m.contexts.NGramTypes()),
	}

	m.contexts.Walk(func(context []uint32, token uint32, count int64) {
		snapshot.Entries = append(snapshot.Entries, SerializableEntry{
			Context: append([]uint32(nil), context...),
			Token:   token,
			Count:   count,
		})
	})

	return snapshot
}

// deserializeModel rebuilds a model with the same token ids and counts
func deserializeModel(snapshot *SerializableNGramModel) (*NgramModel, error) {
	if snapshot.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", snapshot.Version)
	}
	if len(snapshot.IDToToken) == 0 || snapshot.IDToToken[0] != BoundaryToken {
		return nil, fmt.Errorf("snapshot vocabulary is missing the boundary marker")
	}

	m, err := NewNgramModel(snapshot.Params)
	if err != nil {
		return nil, err
	}

	for _, token := range snapshot.IDToToken[1:] {
		m.vocabulary.intern(token)
	}

	size := uint32(len(snapshot.IDToToken))
	for _, entry := range snapshot.Entries {
		if len(entry.Context) != snapshot.Params.N-1 {
			return nil, fmt.Errorf("entry context length %d does not match n=%d", len(entry.Context), snapshot.Params.N)
		}
		if entry.Token == boundaryID || entry.Token >= size {
			return nil, fmt.Errorf("entry token id %d out of range", entry.Token)
		}
		for _, id := range entry.Context {
			if id >= size {
				return nil, fmt.Errorf("entry context id %d out of range", id)
			}
		}
		m.contexts.Add(entry.Context, entry.Token, entry.Count)
	}

	m.totalTokens = snapshot.TotalTokens
	m.textCount = snapshot.TextCount
	return m, nil
}

// saveToFile saves a snapshot using gob encoding
func (p *NGramPersistence) saveToFile(snapshot *SerializableNGramModel, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(snapshot); err != nil {
		return err
	}

	return file.Sync()
}

// loadFromFile loads a snapshot using gob decoding
func (p *NGramPersistence) loadFromFile(path string) (*SerializableNGramModel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snapshot SerializableNGramModel
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
