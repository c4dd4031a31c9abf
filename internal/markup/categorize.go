package markup

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryRule names a category and the description keywords that imply it.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// categoryConfig is the on-disk shape of a category rules file.
type categoryConfig struct {
	Categories []CategoryRule `yaml:"categories"`
}

// CategoryMatcher assigns categories to free-text descriptions by keyword
// matching. Rules are evaluated in order; the first keyword hit wins.
type CategoryMatcher struct {
	rules []CategoryRule
}

// DefaultCategoryRules are the compiled-in rules used when no rules file is
// configured.
var DefaultCategoryRules = []CategoryRule{
	{Name: "Combustible", Keywords: []string{"gasolina", "diesel", "combustible", "magna", "premium", "fuel"}},
	{Name: "Mantenimiento", Keywords: []string{"mantenimiento", "servicio", "afinacion", "reparacion", "maintenance", "repair"}},
	{Name: "Refacciones", Keywords: []string{"refaccion", "llanta", "bateria", "filtro", "balata", "parts", "tire"}},
	{Name: "Peajes", Keywords: []string{"caseta", "peaje", "autopista", "toll"}},
}

// NewCategoryMatcher builds a matcher from explicit rules; nil or empty
// rules fall back to the defaults.
func NewCategoryMatcher(rules []CategoryRule) *CategoryMatcher {
	if len(rules) == 0 {
		rules = DefaultCategoryRules
	}
	return &CategoryMatcher{rules: rules}
}

// LoadCategoryRules parses a YAML rules file.
func LoadCategoryRules(data []byte) ([]CategoryRule, error) {
	var cfg categoryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}
	return cfg.Categories, nil
}

// Match returns the category implied by the text, if any.
func (m *CategoryMatcher) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	if lower == "" {
		return "", false
	}
	for _, rule := range m.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Name, true
			}
		}
	}
	return "", false
}
