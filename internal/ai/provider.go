// Package ai generates photo prompts with a language model.
package ai

import (
    "context"
    "errors"
    "regexp"
    "strings"
)

// DefaultSystemPrompt steers a model toward short, photographable prompts.
const DefaultSystemPrompt = "You write prompts for a party game where players answer with a photo from their camera roll. " +
    "Reply with one prompt per line, no numbering, each under 60 characters, starting with \"A photo\" or \"Your\"."

var ErrUnknownProvider = errors.New("ai: unknown provider")

type Provider interface {
    Complete(ctx context.Context, model string, prompt string) (string, error)
    CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

type Config struct {
    Provider      string
    Model         string
    SystemPrompt  string
    OpenAIKey     string
    OpenAIBaseURL string
    OllamaHost    string
}

// Enabled reports whether a provider was configured at all.
func (c Config) Enabled() bool {
    return c.Provider != "" && c.Provider != "none"
}

// listMarker matches a bullet or a "1." / "2)" numbering at line start.
var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])(?:\s+|$)`)

// Lines splits a completion into trimmed, non-empty lines, stripping list
// markers models like to add anyway.
func Lines(completion string) []string {
    var out []string
    for _, l := range strings.Split(completion, "\n") {
        l = strings.TrimSpace(l)
        l = listMarker.ReplaceAllString(l, "")
        l = strings.TrimSpace(strings.Trim(l, "\""))
        if l != "" {
            out = append(out, l)
        }
    }
    return out
}
