package repository

import (
	"fmt"
	"os"

	"OptionScan/internal/domain/models"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Strategies []models.Strategy `yaml:"strategies"`
}

// LoadYAMLCatalog reads strategy templates from a YAML file.
func LoadYAMLCatalog(path string) (*StaticCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseYAMLCatalog(b)
}

// ParseYAMLCatalog parses a catalog document.
func ParseYAMLCatalog(b []byte) (*StaticCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Strategies) == 0 {
		return nil, fmt.Errorf("catalog has no strategies")
	}
	c, err := NewStaticCatalog(f.Strategies)
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return c, nil
}
