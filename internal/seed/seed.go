// Package seed provides the initial authoritative item set.
package seed

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

// File is the on-disk seed format.
type File struct {
	Items []model.Item `yaml:"items"`
}

// Defaults returns the built-in item set.
func Defaults() []model.Item {
	return []model.Item{
		{Name: "Mobile Phones", Rate: 18, Description: "Smartphones and feature phones"},
		{Name: "Laptops", Rate: 18, Description: "Portable computers and notebooks"},
		{Name: "Tablets", Rate: 12, Description: "Tablet computers and e-readers"},
		{Name: "Software", Rate: 18, Description: "Packaged and downloadable software"},
		{Name: "Cloud Services", Rate: 18, Description: "Hosted compute, storage and SaaS"},
		{Name: "Data Services", Rate: 18, Description: "Data processing and hosting services"},
	}
}

// Load reads items from a YAML file.
func Load(path string) ([]model.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates seed YAML. Names must be non-empty and unique
// and rates non-negative.
func Parse(data []byte) ([]model.Item, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "seed: parse yaml")
	}
	seen := make(map[string]bool, len(f.Items))
	for i := range f.Items {
		it := &f.Items[i]
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			return nil, eris.Errorf("seed: item %d has no name", i)
		}
		if seen[it.Name] {
			return nil, eris.Errorf("seed: duplicate item %q", it.Name)
		}
		if it.Rate < 0 {
			return nil, eris.Errorf("seed: item %q has negative rate", it.Name)
		}
		seen[it.Name] = true
	}
	return f.Items, nil
}

// Apply inserts items when the item set is empty and returns how many were
// inserted.
func Apply(ctx context.Context, st store.Store, items []model.Item) (int, error) {
	now := time.Now().UTC()
	for i := range items {
		if items[i].LastUpdated.IsZero() {
			items[i].LastUpdated = now
		}
	}
	n, err := st.SeedItems(ctx, items)
	if err != nil {
		return 0, eris.Wrap(err, "seed: apply")
	}
	if n == 0 {
		zap.L().Info("seed: item set already populated, nothing inserted")
	} else {
		zap.L().Info("seed: inserted items", zap.Int("count", n))
	}
	return n, nil
}
