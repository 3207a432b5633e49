// Package prompts holds the catalog a host draws round prompts from.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var builtin []byte

// namespace keeps prompt ids stable across runs for the same text.
var namespace = uuid.MustParse("6f1c2a0e-58a4-4d8e-9a53-3f0b7c2d9e11")

type file struct {
	Prompts []item `yaml:"prompts"`
}

type item struct {
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	prompts []game.Prompt
	byID    map[string]bool
}

func New() *Catalog {
	return &Catalog{byID: make(map[string]bool)}
}

// Builtin returns the catalog shipped with the binary.
func Builtin() *Catalog {
	c := New()
	if err := c.parse(builtin); err != nil {
		panic(fmt.Sprintf("prompts: builtin catalog: %v", err))
	}
	return c
}

// Load reads a YAML (or JSON) prompt file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := New()
	if err := c.parse(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", path, errEmpty)
	}
	return c, nil
}

var errEmpty = errors.New("no prompts")

// LoadOrBuiltin loads path and falls back to the builtin catalog when path is
// empty or unusable. The returned error explains the fallback.
func LoadOrBuiltin(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	c, err := Load(path)
	if err != nil {
		return Builtin(), err
	}
	return c, nil
}

func (c *Catalog) parse(b []byte) error {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	for _, it := range f.Prompts {
		c.Add(it.Text, game.ParseCategory(it.Category))
	}
	return nil
}

// Add inserts a prompt unless the same text is already present.
func (c *Catalog) Add(text string, cat game.Category) (game.Prompt, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return game.Prompt{}, false
	}
	p := game.Prompt{
		ID:       uuid.NewSHA1(namespace, []byte(strings.ToLower(text))).String(),
		Text:     text,
		Category: cat,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byID[p.ID] {
		return p, false
	}
	c.byID[p.ID] = true
	c.prompts = append(c.prompts, p)
	return p, true
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prompts)
}

// ByCategory lists the prompts of one category.
func (c *Catalog) ByCategory(cat game.Category) []game.Prompt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []game.Prompt
	for _, p := range c.prompts {
		if p.Category == cat {
			out = append(out, p)
		}
	}
	return out
}

// Next picks a random unused prompt. An empty allowed list means every
// category.
func (c *Catalog) Next(excluding map[string]bool, allowed []game.Category) (game.Prompt, bool) {
	ok := make(map[game.Category]bool, len(allowed))
	for _, cat := range allowed {
		ok[cat] = true
	}
	c.mu.RLock()
	var candidates []game.Prompt
	for _, p := range c.prompts {
		if excluding[p.ID] {
			continue
		}
		if len(ok) > 0 && !ok[p.Category] {
			continue
		}
		candidates = append(candidates, p)
	}
	c.mu.RUnlock()
	if len(candidates) == 0 {
		return game.Prompt{}, false
	}
	return candidates[rand.Intn(len(candidates))], true
}
