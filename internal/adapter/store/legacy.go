package store

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"carspire/internal/domain"
)

// LegacyImport is the outcome of importing a two-file JSON knowledge base.
type LegacyImport struct {
	Added     int
	Recovered *domain.ConsistencyViolation
}

// ReadLegacy reads the older layout in which fragments and vectors live in
// two separate JSON arrays. A length mismatch between the files is repaired
// by keeping their common prefix.
func ReadLegacy(knowledgePath, embeddingsPath string) ([]string, []domain.Vector, *domain.ConsistencyViolation, error) {
	var texts []string
	if err := readJSON(knowledgePath, &texts); err != nil {
		return nil, nil, nil, err
	}
	var vectors []domain.Vector
	if err := readJSON(embeddingsPath, &vectors); err != nil {
		return nil, nil, nil, err
	}

	if len(texts) == len(vectors) {
		return texts, vectors, nil, nil
	}
	violation := &domain.ConsistencyViolation{Fragments: len(texts), Vectors: len(vectors)}
	keep := violation.Kept()
	return texts[:keep], vectors[:keep], violation, nil
}

// ImportLegacy appends the legacy files to the store as a single commit.
func (s *BoltKnowledgeStore) ImportLegacy(knowledgePath, embeddingsPath string) (LegacyImport, error) {
	texts, vectors, violation, err := ReadLegacy(knowledgePath, embeddingsPath)
	if err != nil {
		return LegacyImport{}, err
	}
	if violation != nil {
		s.logger.Warn("legacy knowledge files inconsistent, importing common prefix",
			zap.Int("fragments", violation.Fragments),
			zap.Int("vectors", violation.Vectors),
		)
	}

	added, err := s.Append(texts, vectors)
	if err != nil {
		return LegacyImport{}, err
	}
	return LegacyImport{Added: added, Recovered: violation}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
