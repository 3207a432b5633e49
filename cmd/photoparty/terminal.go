package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ColinKOB/PhotoParty/internal/engine"
	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/imagecodec"
)

// terminal drives a device from stdin and prints its presentation cues.
type terminal struct {
	in   io.Reader
	self string
	dev  *engine.Device
	// photoLimit caps an encoded submission in bytes.
	photoLimit int
	// spectators reports connected browser views, when serving them.
	spectators func() int

	mu  sync.Mutex
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer, self string) *terminal {
	return &terminal{in: in, out: out, self: self, photoLimit: imagecodec.MaxBytes}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

const helpText = `Commands:
  start              start the game (host)
  settings PRESET    default, quick or extended (host, lobby)
  submit PATH        submit a photo from disk
  vote N             vote for photo N
  end                end the game from the results screen (host)
  again              back to the lobby after the final results (host)
  status             show the session
  leave              leave the session and quit
`

// run reads commands until stdin closes, ctx ends or the player leaves.
func (t *terminal) run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(t.in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	t.printf("%s", helpText)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := t.exec(ctx, line); quit {
				return
			}
		}
	}
}

func (t *terminal) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	var err error
	switch strings.ToLower(cmd) {
	case "":
		return false
	case "help", "?":
		t.printf("%s", helpText)
	case "start":
		err = t.dev.StartGame(ctx)
	case "settings":
		var s game.Settings
		if s, err = game.SettingsPreset(arg); err == nil {
			err = t.dev.UpdateSettings(ctx, s)
		}
	case "submit":
		err = t.submit(ctx, arg)
	case "vote":
		err = t.vote(ctx, arg)
	case "end":
		err = t.dev.EndGame(ctx)
	case "again":
		err = t.dev.PlayAgain(ctx)
	case "status":
		err = t.status(ctx)
	case "leave", "quit", "exit":
		if err := t.dev.Leave(ctx); err != nil && !errors.Is(err, engine.ErrNoSession) {
			t.printf("! %v\n", err)
		}
		return true
	default:
		t.printf("unknown command %q, try help\n", cmd)
	}
	if err != nil {
		t.printf("! %v\n", err)
	}
	return false
}

func (t *terminal) submit(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: submit PATH")
	}
	b, err := imagecodec.EncodeFile(path, t.photoLimit)
	if errors.Is(err, imagecodec.ErrTooLarge) {
		return fmt.Errorf("%s is still %d KB at the lowest quality, pick a smaller photo: %w", path, len(b)/1024, err)
	}
	if err != nil {
		return err
	}
	if _, err := t.dev.SubmitPhoto(ctx, b); err != nil {
		return err
	}
	t.printf("submitted %s (%d KB)\n", path, len(b)/1024)
	return nil
}

func (t *terminal) vote(ctx context.Context, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return errors.New("usage: vote N")
	}
	v, err := t.dev.Snapshot(ctx)
	if err != nil {
		return err
	}
	if v.Session == nil {
		return engine.ErrNoSession
	}
	if n < 1 || n > len(v.Session.Submissions) {
		return fmt.Errorf("pick a photo between 1 and %d", len(v.Session.Submissions))
	}
	return t.dev.Vote(ctx, v.Session.Submissions[n-1].ID)
}

func (t *terminal) status(ctx context.Context) error {
	v, err := t.dev.Snapshot(ctx)
	if err != nil {
		return err
	}
	s := v.Session
	if s == nil {
		t.printf("not in a session (%s)\n", v.Role)
		return nil
	}
	t.printf("session %s · %s · phase %s · round %d/%d", s.Code, v.Role, s.Phase, s.CurrentRound, s.Settings.RoundCount)
	if v.Remaining > 0 {
		t.printf(" · %ds left", v.Remaining)
	}
	if v.HostLost {
		t.printf(" · host lost")
	}
	if t.spectators != nil && v.Role == engine.RoleHost {
		t.printf(" · %d watching", t.spectators())
	}
	t.printf("\n")
	if s.Prompt != nil {
		t.printf("prompt: %s (%s)\n", s.Prompt.Text, s.Prompt.Category)
	}
	for i, p := range s.Leaderboard() {
		marks := ""
		if p.IsHost {
			marks += " host"
		}
		if !p.Connected {
			marks += " away"
		}
		if p.HasSubmitted {
			marks += " submitted"
		}
		if p.HasVoted {
			marks += " voted"
		}
		t.printf("  %d. %s %s %d%s\n", i+1, p.Avatar, p.Name, p.Score, marks)
	}
	if s.Phase == game.PhaseVoting {
		t.printSubmissions(s)
	}
	return nil
}

func (t *terminal) printSubmissions(s *game.Session) {
	for i, sub := range s.Submissions {
		mine := ""
		if sub.PlayerID == t.self {
			mine = " (yours)"
		}
		t.printf("  photo %d: %d KB%s\n", i+1, len(sub.Image)/1024, mine)
	}
}

func (t *terminal) PhaseChanged(from, to game.Phase) {
	switch to {
	case game.PhasePromptDisplay:
		v, err := t.dev.Snapshot(context.Background())
		if err == nil && v.Session != nil && v.Session.Prompt != nil {
			t.printf("\n=== Round %d: %s ===\n", v.Session.CurrentRound, v.Session.Prompt.Text)
			return
		}
	case game.PhasePhotoSelection:
		t.printf("Pick a photo: submit PATH\n")
		return
	case game.PhaseVoting:
		t.printf("Vote for your favourite: vote N\n")
		if v, err := t.dev.Snapshot(context.Background()); err == nil && v.Session != nil {
			t.printSubmissions(v.Session)
		}
		return
	case game.PhaseRoundResults, game.PhaseFinalResults:
		if to == game.PhaseFinalResults {
			t.printf("\n*** Final results ***\n")
		}
		_ = t.status(context.Background())
		return
	}
	t.printf("[%s]\n", to)
}

func (t *terminal) PlayerJoined(p game.Player) { t.printf("+ %s %s joined\n", p.Avatar, p.Name) }
func (t *terminal) PlayerLeft(p game.Player)   { t.printf("- %s %s left\n", p.Avatar, p.Name) }
func (t *terminal) Submitted(playerID string) {
	if playerID != t.self {
		t.printf("· someone submitted\n")
	}
}
func (t *terminal) Voted(voterID string) {
	if voterID != t.self {
		t.printf("· someone voted\n")
	}
}
func (t *terminal) Revealed(index int, sub game.Submission) {
	img, err := imagecodec.Decode(sub.Image)
	if err != nil {
		t.printf("photo %d revealed (%d KB)\n", index+1, len(sub.Image)/1024)
		return
	}
	b := img.Bounds()
	t.printf("photo %d revealed (%dx%d, %d KB)\n", index+1, b.Dx(), b.Dy(), len(sub.Image)/1024)
}

func (t *terminal) Tick(remaining int) {
	if remaining > 0 && remaining <= 5 {
		t.printf("\a%d…\n", remaining)
	}
}

func (t *terminal) Notice(n engine.Notice) {
	if n.Blocking {
		t.printf("!! %v\n", n.Err)
		return
	}
	t.printf("! %v\n", n.Err)
}
