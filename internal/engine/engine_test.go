package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/protocol"
	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/ColinKOB/PhotoParty/internal/transport/memory"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type promptList []game.Prompt

func (l promptList) Next(excluding map[string]bool, allowed []game.Category) (game.Prompt, bool) {
	for _, p := range l {
		if !excluding[p.ID] {
			return p, true
		}
	}
	return game.Prompt{}, false
}

func manyPrompts(n int) promptList {
	out := make(promptList, n)
	for i := range out {
		out[i] = game.Prompt{ID: fmt.Sprintf("p%d", i), Text: fmt.Sprintf("Prompt %d", i), Category: game.CategoryFunny}
	}
	return out
}

type harness struct {
	t      *testing.T
	net    *memory.Network
	clock  *clockwork.FakeClock
	ctx    context.Context
	cancel context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &harness{t: t, net: memory.NewNetwork(), clock: clockwork.NewFakeClock(), ctx: ctx, cancel: cancel}
}

func (h *harness) device(id string, prompts PromptSource, code string) *Device {
	h.t.Helper()
	return h.deviceWithHooks(id, prompts, code, nil)
}

func (h *harness) deviceWithHooks(id string, prompts PromptSource, code string, hooks Hooks) *Device {
	h.t.Helper()
	tr := h.net.NewTransport(id)
	d, err := New(Config{
		Self:          game.Player{ID: id, Name: "Player " + id, Avatar: "🦊"},
		Transport:     tr,
		Prompts:       prompts,
		Clock:         h.clock,
		Hooks:         hooks,
		Logger:        zerolog.Nop(),
		InviteTimeout: 2 * time.Second,
		SessionCode:   code,
	})
	if err != nil {
		h.t.Fatalf("should be able to create device: %v", err)
	}
	go func() { _ = d.Run(h.ctx) }()
	h.t.Cleanup(func() { _ = tr.Close() })
	return d
}

// waitFor polls the device until cond holds.
func (h *harness) waitFor(d *Device, what string, cond func(View) bool) View {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		v, err := d.Snapshot(h.ctx)
		if err != nil {
			h.t.Fatalf("snapshot: %v", err)
		}
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			phase := game.Phase("")
			if v.Session != nil {
				phase = v.Session.Phase
			}
			h.t.Fatalf("timed out waiting for %s (role=%s phase=%s remaining=%d)", what, v.Role, phase, v.Remaining)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (h *harness) waitPhase(d *Device, phase game.Phase) View {
	h.t.Helper()
	return h.waitFor(d, string(phase), func(v View) bool { return v.Session != nil && v.Session.Phase == phase })
}

func (h *harness) waitConnected(d *Device, n int) View {
	h.t.Helper()
	return h.waitFor(d, fmt.Sprintf("%d connected players", n), func(v View) bool {
		return v.Session != nil && len(v.Session.ConnectedPlayers()) == n
	})
}

// lobby hosts a session on the first id and joins the rest to it.
func (h *harness) lobby(settings game.Settings, prompts PromptSource, ids ...string) []*Device {
	h.t.Helper()
	host := h.device(ids[0], prompts, "AB23CD")
	if _, err := host.Host(h.ctx, settings); err != nil {
		h.t.Fatalf("host: %v", err)
	}
	devices := []*Device{host}
	for _, id := range ids[1:] {
		d := h.device(id, nil, "")
		if err := d.JoinByCode(h.ctx, "ab23cd"); err != nil {
			h.t.Fatalf("%s join: %v", id, err)
		}
		devices = append(devices, d)
	}
	h.waitConnected(host, len(ids))
	for _, d := range devices[1:] {
		h.waitConnected(d, len(ids))
	}
	return devices
}

// toSelection starts the game and lets the prompt display elapse.
func (h *harness) toSelection(host *Device) {
	h.t.Helper()
	if err := host.StartGame(h.ctx); err != nil {
		h.t.Fatalf("start game: %v", err)
	}
	h.waitPhase(host, game.PhasePromptDisplay)
	h.clock.Advance(game.PromptDisplayDuration)
	h.waitPhase(host, game.PhasePhotoSelection)
}

// revealAll advances through every reveal card into voting.
func (h *harness) revealAll(host *Device) View {
	h.t.Helper()
	v := h.waitPhase(host, game.PhasePhotoReveal)
	for i := 1; i <= len(v.Session.Submissions); i++ {
		h.clock.Advance(game.RevealCardDuration)
		want := i
		h.waitFor(host, fmt.Sprintf("reveal %d", i), func(v View) bool {
			return v.Session.Phase == game.PhaseVoting || v.Session.RevealIndex == want
		})
	}
	return h.waitPhase(host, game.PhaseVoting)
}

// submit waits until d shows the selection phase, then submits payload.
func (h *harness) submit(d *Device, payload string) {
	h.t.Helper()
	h.waitPhase(d, game.PhasePhotoSelection)
	if _, err := d.SubmitPhoto(h.ctx, []byte(payload)); err != nil {
		h.t.Fatalf("submit: %v", err)
	}
}

// recorder keeps the presentation cues a device raised.
type recorder struct {
	NopHooks
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) PhaseChanged(from, to game.Phase) { r.add("phase:" + string(to)) }
func (r *recorder) Submitted(playerID string)        { r.add("submitted:" + playerID) }
func (r *recorder) Voted(voterID string)             { r.add("voted:" + voterID) }
func (r *recorder) Notice(n Notice)                  { r.add("notice") }

func (r *recorder) seen(e string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

func (h *harness) waitHook(r *recorder, e string) {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !r.seen(e) {
		if time.Now().After(deadline) {
			r.mu.Lock()
			got := append([]string(nil), r.events...)
			r.mu.Unlock()
			h.t.Fatalf("timed out waiting for cue %q, got %v", e, got)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func submissionOf(v View, playerID string) string {
	if sub := v.Session.SubmissionBy(playerID); sub != nil {
		return sub.ID
	}
	return ""
}

func TestHostCreatesLobby(t *testing.T) {
	h := newHarness(t)
	host := h.device("host", manyPrompts(3), "AB23CD")
	code, err := host.Host(h.ctx, game.DefaultSettings())
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	if code != "AB23CD" {
		t.Fatalf("expected code AB23CD, got %s", code)
	}
	v := h.waitPhase(host, game.PhaseLobby)
	if v.Role != RoleHost || v.Session.Host().ID != "host" {
		t.Fatalf("unexpected view %+v", v)
	}
	if _, err := host.Host(h.ctx, game.DefaultSettings()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestStartGameRules(t *testing.T) {
	h := newHarness(t)
	host := h.device("host", manyPrompts(3), "AB23CD")
	if _, err := host.Host(h.ctx, game.DefaultSettings()); err != nil {
		t.Fatalf("host: %v", err)
	}
	if err := host.StartGame(h.ctx); !errors.Is(err, game.ErrNotEnoughPlayers) {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}

	guest := h.device("guest", nil, "")
	if err := guest.JoinByCode(h.ctx, "AB23CD"); err != nil {
		t.Fatalf("join: %v", err)
	}
	h.waitConnected(guest, 2)
	if err := guest.StartGame(h.ctx); !errors.Is(err, game.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
}

func TestStartGameWithoutPrompts(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), promptList{}, "host", "guest")
	if err := devices[0].StartGame(h.ctx); !errors.Is(err, game.ErrNoPromptAvailable) {
		t.Fatalf("expected ErrNoPromptAvailable, got %v", err)
	}
	if v := h.waitPhase(devices[0], game.PhaseLobby); v.Session.CurrentRound != 0 {
		t.Fatal("round must not start without a prompt")
	}
}

func TestJoinUnknownCode(t *testing.T) {
	h := newHarness(t)
	d := h.device("lonely", nil, "")
	ctx, cancel := context.WithTimeout(h.ctx, time.Second)
	defer cancel()
	if err := d.JoinByCode(ctx, "ZZZZZZ"); err == nil {
		t.Fatal("expected join to fail")
	}
	if err := d.JoinByCode(ctx, "BAD"); !errors.Is(err, game.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

// Two players, both submit, the round moves on to the reveal.
func TestSubmissionCompletionAdvancesToReveal(t *testing.T) {
	h := newHarness(t)
	settings := game.DefaultSettings()
	settings.RoundCount = 3
	devices := h.lobby(settings, manyPrompts(5), "host", "guest")
	host, guest := devices[0], devices[1]

	h.toSelection(host)
	v := h.waitPhase(guest, game.PhasePhotoSelection)
	if v.Session.CurrentRound != 1 || v.Session.Prompt == nil {
		t.Fatalf("expected round 1 with a prompt, got %+v", v.Session)
	}
	if v.Remaining != settings.SelectionTime {
		t.Fatalf("expected replica countdown at %d, got %d", settings.SelectionTime, v.Remaining)
	}

	h.submit(host, "host-photo")
	h.submit(guest, "guest-photo")

	hv := h.waitPhase(host, game.PhasePhotoReveal)
	if len(hv.Session.Submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(hv.Session.Submissions))
	}
	h.waitPhase(guest, game.PhasePhotoReveal)
}

// Only one of three players submits; the selection timer forces the reveal.
func TestSelectionTimerForcesReveal(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(5), "host", "p1", "p2")
	host := devices[0]

	h.toSelection(host)
	h.submit(devices[1], "only-one")
	h.waitFor(host, "submission", func(v View) bool { return len(v.Session.Submissions) == 1 })

	limit := game.DefaultSettings().SelectionTime
	for i := 1; i <= limit; i++ {
		h.clock.Advance(time.Second)
		want := limit - i
		h.waitFor(host, fmt.Sprintf("remaining %d", want), func(v View) bool {
			return v.Session.Phase != game.PhasePhotoSelection || v.Remaining == want
		})
	}
	v := h.waitPhase(host, game.PhasePhotoReveal)
	if len(v.Session.Submissions) != 1 {
		t.Fatalf("expected the single submission to be revealed, got %d", len(v.Session.Submissions))
	}
	if v.Remaining != 0 {
		t.Fatalf("expected countdown idle, got %d", v.Remaining)
	}
}

// A player drops mid-vote and no longer blocks the round.
func TestDisconnectDuringVotingCompletesRound(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(5), "host", "p1", "p2")
	host, p1, p2 := devices[0], devices[1], devices[2]

	h.toSelection(host)
	h.submit(host, "h")
	h.submit(p1, "a")
	h.waitFor(host, "p1 submission", func(v View) bool { return v.Session.Player("p1").HasSubmitted })
	h.submit(p2, "b")
	v := h.revealAll(host)
	h.waitPhase(p1, game.PhaseVoting)

	if err := host.Vote(h.ctx, submissionOf(v, "p1")); err != nil {
		t.Fatalf("host vote: %v", err)
	}
	if err := p1.Vote(h.ctx, submissionOf(v, "p2")); err != nil {
		t.Fatalf("p1 vote: %v", err)
	}
	h.waitFor(host, "two votes", func(v View) bool { return v.Session.Player("p1").HasVoted })
	if err := p2.Leave(h.ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}

	rv := h.waitPhase(host, game.PhaseRoundResults)
	if rv.Session.Player("p2").Connected {
		t.Fatal("expected p2 to be marked disconnected")
	}
	if rv.Session.Player("p1").Score != 100 || rv.Session.Player("p2").Score != 100 {
		t.Fatalf("unexpected scores p1=%d p2=%d", rv.Session.Player("p1").Score, rv.Session.Player("p2").Score)
	}
	if len(rv.Session.RoundWinners) != 1 || rv.Session.RoundWinners[0] != "p1" {
		t.Fatalf("expected first max to win, got %v", rv.Session.RoundWinners)
	}
}

func TestFirstVoteSticks(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(5), "host", "p1", "p2")
	host, p1, p2 := devices[0], devices[1], devices[2]

	h.toSelection(host)
	h.submit(host, "h")
	h.submit(p1, "a")
	h.submit(p2, "b")
	v := h.revealAll(host)
	h.waitPhase(p1, game.PhaseVoting)

	if err := p1.Vote(h.ctx, submissionOf(v, "p1")); !errors.Is(err, game.ErrSelfVote) {
		t.Fatalf("expected ErrSelfVote, got %v", err)
	}
	if err := p1.Vote(h.ctx, submissionOf(v, "host")); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := p1.Vote(h.ctx, submissionOf(v, "p2")); !errors.Is(err, game.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	hv := h.waitFor(host, "p1 vote", func(v View) bool { return v.Session.Player("p1").HasVoted })
	if hv.Session.SubmissionBy("host").VoteCount() != 1 || hv.Session.SubmissionBy("p2").VoteCount() != 0 {
		t.Fatal("expected only the first vote to count")
	}
}

func TestVotingTimerForcesResults(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(5), "host", "p1")
	host, p1 := devices[0], devices[1]

	h.toSelection(host)
	h.submit(host, "h")
	h.submit(p1, "a")
	h.revealAll(host)

	limit := game.DefaultSettings().VotingTime
	for i := 1; i <= limit; i++ {
		h.clock.Advance(time.Second)
		want := limit - i
		h.waitFor(host, fmt.Sprintf("remaining %d", want), func(v View) bool {
			return v.Session.Phase != game.PhaseVoting || v.Remaining == want
		})
	}
	v := h.waitPhase(host, game.PhaseRoundResults)
	if len(v.Session.RoundWinners) != 0 {
		t.Fatal("a round without votes has no winner")
	}
}

func playRound(h *harness, devices []*Device) {
	h.t.Helper()
	host := devices[0]
	h.waitPhase(host, game.PhasePromptDisplay)
	h.clock.Advance(game.PromptDisplayDuration)
	h.waitPhase(host, game.PhasePhotoSelection)
	for _, d := range devices {
		h.submit(d, "photo")
	}
	v := h.revealAll(host)
	for i, d := range devices {
		h.waitPhase(d, game.PhaseVoting)
		target := devices[(i+1)%len(devices)]
		if err := d.Vote(h.ctx, submissionOf(v, target.cfg.Self.ID)); err != nil {
			h.t.Fatalf("vote: %v", err)
		}
	}
	h.waitPhase(host, game.PhaseRoundResults)
	h.clock.Advance(game.ResultsDisplayDuration)
}

func TestFullGameAndPlayAgain(t *testing.T) {
	h := newHarness(t)
	settings := game.QuickSettings()
	devices := h.lobby(settings, manyPrompts(5), "host", "guest")
	host, guest := devices[0], devices[1]

	if err := host.StartGame(h.ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	for round := 1; round <= settings.RoundCount; round++ {
		playRound(h, devices)
	}
	v := h.waitPhase(host, game.PhaseFinalResults)
	if len(v.Session.UsedPromptIDs) != settings.RoundCount {
		t.Fatalf("expected %d distinct prompts, got %v", settings.RoundCount, v.Session.UsedPromptIDs)
	}
	for _, p := range v.Session.Players {
		if p.Score != 100*settings.RoundCount {
			t.Fatalf("expected %s to score %d, got %d", p.ID, 100*settings.RoundCount, p.Score)
		}
	}
	gv := h.waitPhase(guest, game.PhaseFinalResults)
	if gv.Session.Player("guest").Score != v.Session.Player("guest").Score {
		t.Fatal("replica did not converge on final scores")
	}

	if err := guest.PlayAgain(h.ctx); !errors.Is(err, game.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if err := host.PlayAgain(h.ctx); err != nil {
		t.Fatalf("play again: %v", err)
	}
	lv := h.waitPhase(guest, game.PhaseLobby)
	if lv.Session.CurrentRound != 0 || len(lv.Session.Players) != 2 || lv.Session.Player("host").Score != 0 {
		t.Fatalf("unexpected lobby after play again: %+v", lv.Session)
	}
}

func TestRunningOutOfPromptsBlocksUntilEndGame(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(1), "host", "guest")
	host := devices[0]

	if err := host.EndGame(h.ctx); !errors.Is(err, game.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
	if err := host.StartGame(h.ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	playRound(h, devices)

	// the next round has no prompt, so the results stay on screen
	v := h.waitPhase(host, game.PhaseRoundResults)
	if v.Session.CurrentRound != 1 {
		t.Fatalf("expected to stay on round 1, got %d", v.Session.CurrentRound)
	}
	if err := host.EndGame(h.ctx); err != nil {
		t.Fatalf("end game: %v", err)
	}
	h.waitPhase(devices[1], game.PhaseFinalResults)
}

func TestHostLossFreezesReplica(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(3), "host", "guest")
	host, guest := devices[0], devices[1]

	if err := host.Leave(h.ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	v := h.waitFor(guest, "host loss", func(v View) bool { return v.HostLost })
	if v.Session == nil || v.Session.Phase != game.PhaseLobby {
		t.Fatal("replica should keep its last state")
	}
	if v.Role != RoleReplica {
		t.Fatalf("replica must not promote itself, got role %s", v.Role)
	}
}

func TestUpdateSettingsReplicates(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(3), "host", "guest")
	if err := devices[0].UpdateSettings(h.ctx, game.ExtendedSettings()); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	h.waitFor(devices[1], "new settings", func(v View) bool { return v.Session.Settings.RoundCount == 10 })

	bad := game.DefaultSettings()
	bad.VotingTime = 5
	if err := devices[0].UpdateSettings(h.ctx, bad); !errors.Is(err, game.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestReconnectKeepsScore(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(3), "host", "guest")
	host, guest := devices[0], devices[1]

	if err := guest.Leave(h.ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	h.waitConnected(host, 1)
	if err := guest.Join(h.ctx, transport.Advert{Code: "AB23CD", Addr: "host"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	v := h.waitConnected(host, 2)
	if len(v.Session.Players) != 2 {
		t.Fatalf("expected the same roster entry to be reused, got %d players", len(v.Session.Players))
	}
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	h := newHarness(t)
	d, err := New(Config{
		Self:      game.Player{ID: "guest", Name: "Guest"},
		Transport: h.net.NewTransport("guest"),
		Clock:     h.clock,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d.role = RoleReplica

	s := game.NewSession("AB23CD", game.Player{ID: "host", Name: "Host"}, game.DefaultSettings())
	_, _, _ = s.AddPlayer(game.Player{ID: "guest", Name: "Guest"})
	s.Phase = game.PhasePhotoSelection
	s.CurrentRound = 1
	_ = s.AddSubmission(game.Submission{ID: "s1", PlayerID: "host", Image: []byte("h")})
	b, err := protocol.Encode(protocol.StateSnapshot{Seq: 7, Session: s})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// the same wire bytes delivered twice decode into two distinct copies
	decode := func() protocol.StateSnapshot {
		m, err := protocol.Decode(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return m.(protocol.StateSnapshot)
	}
	first, second := decode(), decode()
	if first.Session == second.Session {
		t.Fatal("expected separate decoded sessions")
	}

	d.applySnapshot(first)
	d.applySnapshot(second)
	if d.seq != 7 || d.session != second.Session {
		t.Fatalf("expected the duplicate to be applied at seq 7, got seq=%d", d.seq)
	}
	if d.session.Phase != game.PhasePhotoSelection || d.session.CurrentRound != 1 ||
		len(d.session.Players) != 2 || len(d.session.Submissions) != 1 ||
		string(d.session.SubmissionBy("host").Image) != "h" {
		t.Fatalf("re-applying a snapshot changed the replica: %+v", d.session)
	}
	if d.countdown.Remaining() != game.DefaultSettings().SelectionTime {
		t.Fatalf("expected display countdown at %d, got %d", game.DefaultSettings().SelectionTime, d.countdown.Remaining())
	}

	older := protocol.StateSnapshot{Seq: 6, Session: game.NewSession("AB23CD", game.Player{ID: "host"}, game.DefaultSettings())}
	d.applySnapshot(older)
	if d.seq != 7 || d.session.Phase != game.PhasePhotoSelection {
		t.Fatal("a stale snapshot must be ignored")
	}
	d.countdown.Stop()
}

// A player who drops during selection and comes back is not waited on.
func TestRejoinedPlayerIsNotRequiredToSubmit(t *testing.T) {
	h := newHarness(t)
	devices := h.lobby(game.DefaultSettings(), manyPrompts(5), "host", "p1", "p2")
	host, p1, p2 := devices[0], devices[1], devices[2]

	h.toSelection(host)
	h.waitPhase(p2, game.PhasePhotoSelection)
	if err := p2.Leave(h.ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	h.waitConnected(host, 2)
	if err := p2.Join(h.ctx, transport.Advert{Code: "AB23CD", Addr: "host"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	h.waitConnected(host, 3)
	h.waitPhase(p2, game.PhasePhotoSelection)

	h.submit(host, "h")
	h.submit(p1, "a")
	v := h.waitPhase(host, game.PhasePhotoReveal)
	if len(v.Session.Submissions) != 2 || !v.Session.Player("p2").Connected {
		t.Fatalf("expected two submissions with p2 back online, got %+v", v.Session)
	}
}

// Garbage from a fresh link is dropped without closing it, and anything it
// sends before identifying itself is held until its PlayerInfo arrives.
func TestUnidentifiedPeerMessagesAreDeferred(t *testing.T) {
	h := newHarness(t)
	cues := &recorder{}
	host := h.deviceWithHooks("host", manyPrompts(5), "AB23CD", cues)
	if _, err := host.Host(h.ctx, game.DefaultSettings()); err != nil {
		t.Fatalf("host: %v", err)
	}
	guest := h.device("guest", nil, "")
	if err := guest.JoinByCode(h.ctx, "AB23CD"); err != nil {
		t.Fatalf("join: %v", err)
	}
	h.waitConnected(host, 2)
	h.toSelection(host)

	raw := h.net.NewTransport("raw")
	t.Cleanup(func() { _ = raw.Close() })
	link, err := raw.Connect(h.ctx, transport.Advert{Code: "AB23CD", Addr: "host"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	send := func(m protocol.Message) {
		t.Helper()
		b, err := protocol.Encode(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := raw.Send(b, link); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if err := raw.Send([]byte("{not json"), link); err != nil {
		t.Fatalf("send garbage: %v", err)
	}
	send(protocol.SubmissionMessage{Submission: game.Submission{ID: "raw-1", PlayerID: "raw", Image: []byte("r")}})
	send(protocol.PlayerInfoMessage{Player: game.Player{ID: "raw", Name: "Raw"}})

	h.waitHook(cues, "notice")
	v := h.waitFor(host, "deferred submission", func(v View) bool { return v.Session.SubmissionBy("raw") != nil })
	if len(v.Session.ConnectedPlayers()) != 3 {
		t.Fatalf("expected the raw link to stay up, got %d connected", len(v.Session.ConnectedPlayers()))
	}
	if v.Session.Phase != game.PhasePhotoSelection {
		t.Fatalf("expected selection to stay open, got %s", v.Session.Phase)
	}

	// still usable once identified
	if err := raw.Send([]byte(`{"type":"vote"}`), link); err != nil {
		t.Fatalf("send garbage: %v", err)
	}
	send(protocol.SubmissionMessage{Submission: game.Submission{ID: "raw-2", PlayerID: "raw", Image: []byte("r2")}})
	h.waitFor(host, "replacement", func(v View) bool { return submissionOf(v, "raw") == "raw-2" })
}

func TestHooksFollowTheRound(t *testing.T) {
	h := newHarness(t)
	hostCues, guestCues := &recorder{}, &recorder{}
	host := h.deviceWithHooks("host", manyPrompts(5), "AB23CD", hostCues)
	if _, err := host.Host(h.ctx, game.DefaultSettings()); err != nil {
		t.Fatalf("host: %v", err)
	}
	guest := h.deviceWithHooks("guest", nil, "", guestCues)
	if err := guest.JoinByCode(h.ctx, "AB23CD"); err != nil {
		t.Fatalf("join: %v", err)
	}
	h.waitConnected(host, 2)
	h.waitConnected(guest, 2)

	h.toSelection(host)
	h.submit(host, "h")
	h.submit(guest, "g")
	v := h.revealAll(host)
	h.waitPhase(guest, game.PhaseVoting)
	if err := host.Vote(h.ctx, submissionOf(v, "guest")); err != nil {
		t.Fatalf("host vote: %v", err)
	}
	if err := guest.Vote(h.ctx, submissionOf(v, "host")); err != nil {
		t.Fatalf("guest vote: %v", err)
	}
	h.waitPhase(guest, game.PhaseRoundResults)

	for _, r := range []*recorder{hostCues, guestCues} {
		for _, e := range []string{
			"phase:" + string(game.PhasePhotoSelection),
			"submitted:host",
			"submitted:guest",
			"phase:" + string(game.PhaseVoting),
			"voted:host",
			"voted:guest",
			"phase:" + string(game.PhaseRoundResults),
		} {
			h.waitHook(r, e)
		}
	}
}
