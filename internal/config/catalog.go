package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog describes the source site: where each category is listed and how detail
// pages are recognised.
type Catalog struct {
	BaseURL       string           `yaml:"base_url"`
	Sort          string           `yaml:"sort"`
	DetailPattern string           `yaml:"detail_pattern"`
	ListPattern   string           `yaml:"list_pattern"`
	Categories    []CategorySource `yaml:"categories"`
}

type CategorySource struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// Render=false lets discovery use a plain HTTP collector instead of the browser.
	Render *bool `yaml:"render,omitempty"`
}

func (c CategorySource) Rendered() bool {
	return c.Render == nil || *c.Render
}

// LoadCatalog reads the catalog file at path, or the built-in catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		raw = b
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c.BaseURL == "" {
		return nil, fmt.Errorf("catalog: base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return nil, fmt.Errorf("catalog: base_url: %w", err)
	}
	if c.DetailPattern == "" {
		c.DetailPattern = "/p/"
	}
	if c.ListPattern == "" {
		c.ListPattern = "/pl/"
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.ID == "" || cat.Path == "" {
			return nil, fmt.Errorf("catalog: category needs id and path")
		}
		if seen[cat.ID] {
			return nil, fmt.Errorf("catalog: duplicate category %q", cat.ID)
		}
		seen[cat.ID] = true
	}
	return &c, nil
}

func (c *Catalog) Category(id string) (CategorySource, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return CategorySource{}, false
}

// ListingURL builds the listing URL for a zero-based page index.
func (c *Catalog) ListingURL(cat CategorySource, page int) string {
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(cat.Path, "/")
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	q.Set("page", strconv.Itoa(page))
	if c.Sort != "" {
		q.Set("sort", c.Sort)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
