package demo

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Dataset struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	File      string   `json:"file"`
	Questions []string `json:"questions,omitempty"`
}

type Catalog struct {
	Demos []Dataset `json:"demos"`
}

func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode demo catalog: %w", err)
	}
	for i, dataset := range catalog.Demos {
		if strings.TrimSpace(dataset.File) == "" {
			return Catalog{}, fmt.Errorf("demo %d (%q) has no file", i, dataset.Title)
		}
	}
	return catalog, nil
}

func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Catalog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read demo catalog: %w", err)
	}
	return ParseCatalog(data)
}
