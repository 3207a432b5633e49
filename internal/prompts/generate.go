package prompts

import (
	"context"
	"fmt"

	"github.com/ColinKOB/PhotoParty/internal/ai"
	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/rs/zerolog"
)

// Generate asks p for perCategory fresh prompts in each category and adds
// them to c. An empty system prompt uses ai.DefaultSystemPrompt. It returns
// how many were added. A failing category is logged and skipped.
func (c *Catalog) Generate(ctx context.Context, log zerolog.Logger, p ai.Provider, model, system string, cats []game.Category, perCategory int) (int, error) {
	if perCategory <= 0 {
		return 0, nil
	}
	if system == "" {
		system = ai.DefaultSystemPrompt
	}
	if len(cats) == 0 {
		cats = game.AllCategories()
	}
	added := 0
	var lastErr error
	for _, cat := range cats {
		req := fmt.Sprintf("Write %d %s photo prompts.", perCategory, cat)
		out, err := p.CompleteWithSystem(ctx, model, system, req)
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			log.Warn().Err(err).Str("category", string(cat)).Msg("prompt generation failed")
			lastErr = err
			continue
		}
		n := 0
		for _, line := range ai.Lines(out) {
			if n == perCategory {
				break
			}
			if _, ok := c.Add(line, cat); ok {
				n++
			}
		}
		log.Debug().Str("category", string(cat)).Int("added", n).Msg("generated prompts")
		added += n
	}
	if added == 0 && lastErr != nil {
		return 0, lastErr
	}
	return added, nil
}
