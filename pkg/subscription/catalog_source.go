package subscription

import (
	"context"
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogSource defines how plans are loaded into the subscription service.
type CatalogSource interface {
	Load(ctx context.Context) (Catalog, error)
}

// StaticSource serves a fixed in-memory catalog.
type StaticSource struct {
	catalog Catalog
}

// NewStaticSource wraps a catalog in a CatalogSource.
func NewStaticSource(c Catalog) *StaticSource {
	return &StaticSource{catalog: c}
}

func (s *StaticSource) Load(_ context.Context) (Catalog, error) {
	return s.catalog, nil
}

// FileSource loads the plan catalog from a YAML file, letting operators
// adjust quotas and prices without a deploy.
type FileSource struct {
	path string
}

// NewFileSource creates a catalog source reading the given YAML file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(_ context.Context) (Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var plans []Plan
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	catalog := make(Catalog, len(plans))
	for _, plan := range plans {
		catalog[plan.ID] = plan
	}

	return catalog, nil
}
