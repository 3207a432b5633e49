package ai

import (
    "github.com/ColinKOB/PhotoParty/internal/ai/ollama"
    "github.com/ColinKOB/PhotoParty/internal/ai/openai"
)

// NewProvider builds the client named by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
    switch cfg.Provider {
    case "openai":
        return openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
    case "ollama":
        return ollama.New(cfg.OllamaHost), nil
    }
    return nil, ErrUnknownProvider
}
