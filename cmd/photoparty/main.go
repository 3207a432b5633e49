package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/ai"
	"github.com/ColinKOB/PhotoParty/internal/config"
	"github.com/ColinKOB/PhotoParty/internal/engine"
	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/prompts"
	"github.com/ColinKOB/PhotoParty/internal/spectator"
	"github.com/ColinKOB/PhotoParty/internal/transport/lan"
	staticserver "github.com/ColinKOB/PhotoParty/static"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
		nameFlag    = flag.String("name", "", "Display name (overrides PLAYER_NAME)")
		hostFlag    = flag.Bool("host", false, "Host a new session")
		joinFlag    = flag.String("join", "", "Join the session with this code")
		addrFlag    = flag.String("addr", "", "Join the session hosted at host:port")
		presetFlag  = flag.String("preset", "", "Settings preset: default, quick or extended")
		demoFlag    = flag.Int("demo", 0, "Host a session with this many local bot players")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`PhotoParty - photo party game for the local network

Usage: %s [options]

Options:
  -h, --help        Show this help message
  -v, --version     Show version information
  --port PORT       Port to listen on (default: 7777 or PORT env var)
  --name NAME       Display name
  --host            Host a new session
  --join CODE       Join a session by its 6 character code
  --addr HOST:PORT  Join the session hosted at an address (no mDNS needed)
  --preset NAME     default, quick or extended
  --demo N          Host a session with N local bots

Environment Variables:
  PORT              Port to listen on (default: 7777)
  PLAYER_NAME       Display name (default: hostname)
  PLAYER_AVATAR     Avatar emoji (default: random)
  PLAYER_ID         Stable player id (default: generated and kept in PLAYER_ID_FILE)
  ROUND_COUNT       Rounds per game, 3-15 (default: 5)
  SELECTION_TIME    Seconds to pick a photo, 30-120 (default: 60)
  VOTING_TIME       Seconds to vote, 15-60 (default: 30)
  CATEGORIES        Comma separated prompt categories (default: all)
  PROMPTS_FILE      YAML prompt catalog (default: builtin)
  MDNS_ENABLED      Advertise and discover sessions with mDNS (default: true)
  INVITE_TIMEOUT    How long joining may take (default: 30s)
  EXPORT_ENABLED    Append round results to a file (default: false)
  EXPORT_FILE       Path of the results file (default: ./photoparty_results.txt)
  AI_PROVIDER       "openai" or "ollama" to generate extra prompts (default: off)
  AI_MODEL          Model used for prompt generation (default: gpt-4o-mini)
  OPENAI_API_KEY    OpenAI API key
  OPENAI_BASE_URL   Custom OpenAI API base URL (optional)
  OLLAMA_HOST       Ollama host URL (default: http://localhost:11434)
  AI_PROMPT_COUNT   Generated prompts per category (default: 3)
  LOG_LEVEL         debug, info, warn or error (default: info)

Examples:
  %s --host                 Host a game
  %s --join K7QP2M          Join a game found on the network
  %s --demo 3               Try the game against three bots
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("PhotoParty %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	cfg, err := config.Load()
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log := zerologlog.Logger

	if *portFlag != "" {
		cfg.Port = *portFlag
	}
	if *nameFlag != "" {
		cfg.PlayerName = *nameFlag
	}
	if *presetFlag != "" {
		s, err := game.SettingsPreset(*presetFlag)
		if err != nil {
			log.Fatal().Err(err).Str("preset", *presetFlag).Msg("unknown preset")
		}
		s.Categories = cfg.Settings.Categories
		cfg.Settings = s
	}
	if _, err := cfg.EnsurePlayerID(); err != nil {
		log.Fatal().Err(err).Msg("failed to load player id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := lan.New(lan.Config{
		Listen:        ":" + cfg.Port,
		EnableMDNS:    cfg.MDNSEnabled,
		InviteTimeout: cfg.InviteTimeout,
		Logger:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start transport")
	}
	defer tr.Close()

	watchers := spectator.New(log)
	watchers.Mount(tr.Engine())
	defer watchers.Close()
	tr.Engine().NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	catalog := loadPrompts(ctx, cfg, log)

	observers := []engine.Observer{watchers}
	if cfg.ExportEnabled {
		observers = append(observers, game.NewExporter(cfg.ExportFile, log))
	}

	term := newTerminal(os.Stdin, os.Stdout, cfg.PlayerID)
	dev, err := engine.New(engine.Config{
		Self: game.Player{
			ID:     cfg.PlayerID,
			Name:   cfg.PlayerName,
			Avatar: cfg.PlayerAvatar,
		},
		Transport:     tr,
		Prompts:       catalog,
		Hooks:         term,
		Observers:     observers,
		Logger:        log,
		InviteTimeout: cfg.InviteTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create device")
	}
	term.dev = dev
	term.spectators = watchers.Spectators
	go func() {
		if err := dev.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("device stopped")
		}
	}()

	switch {
	case *demoFlag > 0:
		if err := startDemo(ctx, dev, cfg, tr.Port(), *demoFlag, log); err != nil {
			log.Fatal().Err(err).Msg("failed to start demo")
		}
	case *hostFlag:
		code, err := dev.Host(ctx, cfg.Settings)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to host")
		}
		term.printf("Hosting session %s. Spectators: http://localhost:%d\n", code, tr.Port())
	case *joinFlag != "":
		if err := dev.JoinByCode(ctx, *joinFlag); err != nil {
			log.Fatal().Err(err).Str("code", *joinFlag).Msg("failed to join")
		}
	case *addrFlag != "":
		ad, err := tr.Lookup(ctx, *addrFlag)
		if err != nil {
			log.Fatal().Err(err).Str("addr", *addrFlag).Msg("no session at address")
		}
		if err := dev.Join(ctx, ad); err != nil {
			log.Fatal().Err(err).Str("addr", *addrFlag).Msg("failed to join")
		}
	default:
		term.printf("Nothing to do: use --host, --join CODE, --addr HOST:PORT or --demo N. See --help.\n")
		return
	}

	term.run(ctx)
	stop()
	log.Info().Msg("bye")
}

func loadPrompts(ctx context.Context, cfg config.Config, log zerolog.Logger) *prompts.Catalog {
	catalog, err := prompts.LoadOrBuiltin(cfg.PromptsFile)
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.PromptsFile).Msg("using builtin prompts")
	}
	if cfg.AI.Enabled() {
		generatePrompts(ctx, cfg, log, catalog)
	}
	for _, cat := range emptyCategories(catalog, cfg.Settings.Categories) {
		log.Warn().Str("category", string(cat)).Msg("no prompts in allowed category")
	}
	return catalog
}

func generatePrompts(ctx context.Context, cfg config.Config, log zerolog.Logger, catalog *prompts.Catalog) {
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("prompt generation disabled")
		return
	}
	gctx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	n, err := catalog.Generate(gctx, log, provider, cfg.AI.Model, cfg.AI.SystemPrompt, cfg.Settings.Categories, cfg.AIPromptCount)
	if err != nil {
		log.Warn().Err(err).Msg("prompt generation failed")
	}
	log.Info().Int("generated", n).Int("total", catalog.Len()).Msg("prompts ready")
}

// emptyCategories lists the allowed categories the catalog cannot draw from.
// No allowed categories means all of them.
func emptyCategories(c *prompts.Catalog, allowed []game.Category) []game.Category {
	if len(allowed) == 0 {
		allowed = game.AllCategories()
	}
	var out []game.Category
	for _, cat := range allowed {
		if len(c.ByCategory(cat)) == 0 {
			out = append(out, cat)
		}
	}
	return out
}
