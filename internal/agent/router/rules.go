package router

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spacecopilot/server/internal/agent/graph/prompts"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// maxRulesFileSize bounds a rules file read from disk.
const maxRulesFileSize = 1 << 20

// Topic is one knowledge corpus the router can send a part to.
type Topic struct {
	File        string `yaml:"file"`
	Description string `yaml:"description"`
}

// ForcedMapping sends a question straight to Topic when any pattern occurs
// in it.
type ForcedMapping struct {
	Patterns []string `yaml:"patterns"`
	Topic    string   `yaml:"topic"`
	Reason   string   `yaml:"reason"`
}

// Rules is the router configuration. Immutable after loading.
type Rules struct {
	DefaultTopic   string           `yaml:"default_topic"`
	Topics         map[string]Topic `yaml:"topics"`
	ForcedMappings []ForcedMapping  `yaml:"forced_mappings"`
}

// DefaultRules returns the embedded rules.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads rules from path, or the embedded rules when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}
	if info.Size() > maxRulesFileSize {
		return nil, fmt.Errorf("LoadRules: %s exceeds maximum size (%d > %d)", path, info.Size(), maxRulesFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates YAML rules. Labels and patterns are
// lowercased.
func ParseRules(data []byte) (*Rules, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ParseRules: empty YAML data")
	}
	var raw Rules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ParseRules: parsing YAML: %w", err)
	}

	rules := &Rules{
		DefaultTopic: normalize(raw.DefaultTopic),
		Topics:       make(map[string]Topic, len(raw.Topics)),
	}
	for label, topic := range raw.Topics {
		if topic.File == "" {
			return nil, fmt.Errorf("ParseRules: topic %q: file must not be empty", label)
		}
		rules.Topics[normalize(label)] = topic
	}
	if _, ok := rules.Topics[rules.DefaultTopic]; !ok {
		return nil, fmt.Errorf("ParseRules: default topic %q is not a known topic", raw.DefaultTopic)
	}
	for i, fm := range raw.ForcedMappings {
		topic := normalize(fm.Topic)
		if _, ok := rules.Topics[topic]; !ok {
			return nil, fmt.Errorf("ParseRules: forced_mapping[%d]: unknown topic %q", i, fm.Topic)
		}
		if len(fm.Patterns) == 0 {
			return nil, fmt.Errorf("ParseRules: forced_mapping[%d] (%s): patterns must not be empty", i, fm.Topic)
		}
		patterns := make([]string, 0, len(fm.Patterns))
		for _, p := range fm.Patterns {
			if p = normalize(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		rules.ForcedMappings = append(rules.ForcedMappings, ForcedMapping{Patterns: patterns, Topic: topic, Reason: fm.Reason})
	}
	return rules, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Forced returns the topic of the first forced mapping matching question.
func (r *Rules) Forced(question string) (string, bool) {
	q := strings.ToLower(question)
	for _, fm := range r.ForcedMappings {
		for _, p := range fm.Patterns {
			if strings.Contains(q, p) {
				return fm.Topic, true
			}
		}
	}
	return "", false
}

// File returns the corpus file of label, falling back to the default topic.
// The boolean reports whether label itself was known.
func (r *Rules) File(label string) (string, bool) {
	if t, ok := r.Topics[normalize(label)]; ok {
		return t.File, true
	}
	return r.Topics[r.DefaultTopic].File, false
}

// DefaultFile returns the corpus file of the default topic.
func (r *Rules) DefaultFile() string {
	return r.Topics[r.DefaultTopic].File
}

// Options lists the topics for the topic-selection prompt, sorted by label.
func (r *Rules) Options() []prompts.TopicOption {
	out := make([]prompts.TopicOption, 0, len(r.Topics))
	for label, t := range r.Topics {
		out = append(out, prompts.TopicOption{Label: label, Description: t.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
