package pricing

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the on-disk form of pricing configs: one entry per scope.
type ConfigFile struct {
	Scopes map[string]PricingConfig `yaml:"scopes"`
}

func ReadConfigFile(path string) (ConfigFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ConfigFile{}, err
	}
	var f ConfigFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return ConfigFile{}, fmt.Errorf("%s: %w", path, err)
	}
	for _, scope := range f.scopeNames() {
		if err := f.Scopes[scope].Validate(); err != nil {
			return ConfigFile{}, fmt.Errorf("%s: scope %s: %w", path, scope, err)
		}
	}
	return f, nil
}

// Seed pushes every scope in the file through UpdatePricingConfig.
func (f ConfigFile) Seed(ctx context.Context, svc *Service) error {
	for _, scope := range f.scopeNames() {
		if _, err := svc.UpdatePricingConfig(ctx, scope, f.Scopes[scope]); err != nil {
			return fmt.Errorf("seed scope %s: %w", scope, err)
		}
	}
	return nil
}

func (f ConfigFile) scopeNames() []string {
	names := make([]string, 0, len(f.Scopes))
	for s := range f.Scopes {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}
