// Package personality holds the table of bot personalities: the system
// prompt, response schema and banner shown for each Slack channel.
package personality

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"regenie/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed personalities.yaml
var builtinTable []byte

// DefaultKey is the personality used for channels without a binding.
const DefaultKey = "default"

// Personality is one entry of the personality table.
type Personality struct {
	Key          string            `yaml:"-"`
	Name         string            `yaml:"name"`
	Emoji        string            `yaml:"emoji"`
	Description  string            `yaml:"description"`
	Schema       domain.SchemaKind `yaml:"schema"`
	Channels     []string          `yaml:"channels"`
	SystemPrompt string            `yaml:"systemPrompt"`
	// PromptFrom reuses another personality's system prompt.
	PromptFrom string `yaml:"promptFrom"`
}

// Banner renders the context line posted above personality-framed replies.
func (p Personality) Banner() string {
	return fmt.Sprintf("%s *%s*: %s", p.Emoji, p.Name, p.Description)
}

// Prompt returns the system prompt with {date} replaced by now's UTC date.
func (p Personality) Prompt(now time.Time) string {
	return strings.ReplaceAll(p.SystemPrompt, "{date}", now.UTC().Format("2006-01-02"))
}

type table struct {
	Default       string                  `yaml:"default"`
	Personalities map[string]*Personality `yaml:"personalities"`
}

// Registry resolves personalities by key and by Slack channel ID.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	defaultKey string
	byKey      map[string]Personality
	byChannel  map[string]string
}

// Builtin returns the registry compiled into the binary.
func Builtin() (*Registry, error) {
	r, err := Parse(builtinTable)
	if err != nil {
		return nil, fmt.Errorf("builtin personalities: %w", err)
	}
	return r, nil
}

// Load reads a personality table from path. An empty path yields the
// built-in table.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personalities %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("personalities %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a YAML personality table.
func Parse(data []byte) (*Registry, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if t.Default == "" {
		t.Default = DefaultKey
	}
	if len(t.Personalities) == 0 {
		return nil, fmt.Errorf("no personalities defined")
	}
	if _, ok := t.Personalities[t.Default]; !ok {
		return nil, fmt.Errorf("default personality %q is not defined", t.Default)
	}

	r := &Registry{
		defaultKey: t.Default,
		byKey:      make(map[string]Personality, len(t.Personalities)),
		byChannel:  make(map[string]string),
	}

	var errs []string
	for key, p := range t.Personalities {
		if p == nil {
			errs = append(errs, fmt.Sprintf("%s: empty entry", key))
			continue
		}
		entry := *p
		entry.Key = key

		if entry.PromptFrom != "" {
			src, ok := t.Personalities[entry.PromptFrom]
			switch {
			case !ok || src == nil:
				errs = append(errs, fmt.Sprintf("%s: promptFrom references unknown personality %q", key, entry.PromptFrom))
			case src.PromptFrom != "":
				errs = append(errs, fmt.Sprintf("%s: promptFrom %q must point at a personality with its own prompt", key, entry.PromptFrom))
			case entry.SystemPrompt == "":
				entry.SystemPrompt = src.SystemPrompt
			}
		}
		if strings.TrimSpace(entry.SystemPrompt) == "" {
			errs = append(errs, fmt.Sprintf("%s: systemPrompt is required", key))
		}
		if entry.Schema == "" {
			entry.Schema = domain.SchemaFull
		}
		if !entry.Schema.Valid() {
			errs = append(errs, fmt.Sprintf("%s: schema must be full or simple, got %q", key, entry.Schema))
		}

		for _, ch := range entry.Channels {
			if other, dup := r.byChannel[ch]; dup {
				errs = append(errs, fmt.Sprintf("channel %s is bound to both %s and %s", ch, other, key))
				continue
			}
			r.byChannel[ch] = key
		}
		r.byKey[key] = entry
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("invalid personalities:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return r, nil
}

// ForChannel returns the personality bound to channelID, or the default.
func (r *Registry) ForChannel(channelID string) Personality {
	if key, ok := r.byChannel[channelID]; ok && channelID != "" {
		return r.byKey[key]
	}
	return r.Default()
}

// Get looks up a personality by key.
func (r *Registry) Get(key string) (Personality, bool) {
	p, ok := r.byKey[key]
	return p, ok
}

func (r *Registry) Default() Personality {
	return r.byKey[r.defaultKey]
}

// All returns every personality, the default first and the rest by key.
func (r *Registry) All() []Personality {
	out := make([]Personality, 0, len(r.byKey))
	for _, p := range r.byKey {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Key == r.defaultKey) != (out[j].Key == r.defaultKey) {
			return out[i].Key == r.defaultKey
		}
		return out[i].Key < out[j].Key
	})
	return out
}
