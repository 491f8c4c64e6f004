package hooks

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// PatternRule is one deny/prohibited/greeting/api-limit entry loaded from a
// YAML patterns file (spec §4.8 "a list of deny regex patterns loaded from
// YAML").
type PatternRule struct {
	Pattern     string `yaml:"pattern"`
	Message     string `yaml:"message"`
	Description string `yaml:"description"`
}

// CompiledRule pre-compiles PatternRule.Pattern once at load time.
type CompiledRule struct {
	Regexp      *regexp.Regexp
	Message     string
	Description string
}

type patternFile struct {
	Patterns []PatternRule `yaml:"patterns"`
}

// LoadPatterns reads a YAML file of {pattern, message, description} entries
// and compiles each regex. A missing file yields an empty, non-error rule
// set (matches the original's "return empty dict if config doesn't exist").
func LoadPatterns(path string) ([]CompiledRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pattern file %s: %w", path, err)
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing pattern file %s: %w", path, err)
	}

	rules := make([]CompiledRule, 0, len(pf.Patterns))
	for _, p := range pf.Patterns {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q in %s: %w", p.Pattern, path, err)
		}
		rules = append(rules, CompiledRule{Regexp: re, Message: p.Message, Description: p.Description})
	}
	return rules, nil
}

// FirstMatch returns the first rule matching text, or nil.
func FirstMatch(rules []CompiledRule, text string) *CompiledRule {
	for i := range rules {
		if rules[i].Regexp.MatchString(text) {
			return &rules[i]
		}
	}
	return nil
}
