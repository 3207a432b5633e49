package game

import (
	"errors"
	"testing"
)

func newTestSession(t *testing.T, ids ...string) *Session {
	t.Helper()
	s := NewSession("AB23CD", Player{ID: "host", Name: "Host"}, DefaultSettings())
	for _, id := range ids {
		if _, _, err := s.AddPlayer(Player{ID: id, Name: id}); err != nil {
			t.Fatalf("should be able to add player %s: %v", id, err)
		}
	}
	return s
}

func TestNewSession(t *testing.T) {
	s := NewSession("AB23CD", Player{ID: "host", Name: "Alice"}, DefaultSettings())
	if s.Phase != PhaseLobby {
		t.Fatalf("expected phase %s, got %s", PhaseLobby, s.Phase)
	}
	h := s.Host()
	if h == nil || h.ID != "host" || !h.Connected {
		t.Fatalf("expected connected host, got %+v", h)
	}
}

func TestAtMostOneHost(t *testing.T) {
	s := newTestSession(t)
	if _, _, err := s.AddPlayer(Player{ID: "p1", IsHost: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := s.AddPlayer(Player{ID: "host"}); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost when a peer claims the host id, got %v", err)
	}
	hosts := 0
	for _, p := range s.Players {
		if p.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Fatalf("expected exactly one host, got %d", hosts)
	}
}

func TestAddPlayerReconnectKeepsScore(t *testing.T) {
	s := newTestSession(t, "p1")
	s.Player("p1").Score = 300
	s.SetConnected("p1", false)

	p, added, err := s.AddPlayer(Player{ID: "p1", Name: "Renamed"})
	if err != nil {
		t.Fatalf("reconnect should succeed: %v", err)
	}
	if added {
		t.Fatal("reconnect should not count as a new player")
	}
	if !p.Connected || p.Score != 300 || p.Name != "Renamed" {
		t.Fatalf("unexpected player after reconnect: %+v", p)
	}
	if len(s.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(s.Players))
	}
}

func TestAddPlayerCapacity(t *testing.T) {
	s := newTestSession(t, "p1", "p2", "p3", "p4", "p5", "p6", "p7")
	if _, _, err := s.AddPlayer(Player{ID: "p8"}); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
}

func TestSubmissionReplacesPrevious(t *testing.T) {
	s := newTestSession(t, "p1")
	if err := s.AddSubmission(Submission{ID: "a", PlayerID: "p1", Image: []byte{1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddSubmission(Submission{ID: "b", PlayerID: "host", Image: []byte{2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddSubmission(Submission{ID: "c", PlayerID: "p1", Image: []byte{3}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(s.Submissions))
	}
	if s.Submissions[0].ID != "c" {
		t.Fatalf("expected replacement to keep position, got %s first", s.Submissions[0].ID)
	}
	if !s.Player("p1").HasSubmitted {
		t.Fatal("expected hasSubmitted to be set")
	}
	if err := s.AddSubmission(Submission{ID: "d", PlayerID: "ghost"}); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestCastVoteRules(t *testing.T) {
	s := newTestSession(t, "p1", "p2")
	_ = s.AddSubmission(Submission{ID: "s1", PlayerID: "p1"})
	_ = s.AddSubmission(Submission{ID: "s2", PlayerID: "p2"})

	if err := s.CastVote("p1", "s1"); !errors.Is(err, ErrSelfVote) {
		t.Fatalf("expected ErrSelfVote, got %v", err)
	}
	if err := s.CastVote("p1", "nope"); !errors.Is(err, ErrUnknownSubmission) {
		t.Fatalf("expected ErrUnknownSubmission, got %v", err)
	}
	if err := s.CastVote("host", "s1"); err != nil {
		t.Fatalf("vote should be accepted: %v", err)
	}
	// first vote sticks
	if err := s.CastVote("host", "s2"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if err := s.CastVote("host", "s1"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted on repeat, got %v", err)
	}
	if s.SubmissionByID("s1").VoteCount() != 1 || s.SubmissionByID("s2").VoteCount() != 0 {
		t.Fatal("expected the first vote to stand alone")
	}
	for _, sub := range s.Submissions {
		if sub.HasVoter(sub.PlayerID) {
			t.Fatalf("author found in own vote set on %s", sub.ID)
		}
	}
}

func TestResetForNextRoundKeepsScores(t *testing.T) {
	s := newTestSession(t, "p1")
	_ = s.AddSubmission(Submission{ID: "s1", PlayerID: "p1"})
	_ = s.CastVote("host", "s1")
	s.CalculateRoundResults()
	s.ResetForNextRound()

	if len(s.Submissions) != 0 {
		t.Fatalf("expected submissions cleared, got %d", len(s.Submissions))
	}
	p := s.Player("p1")
	if p.HasSubmitted || s.Player("host").HasVoted {
		t.Fatal("expected per-round flags cleared")
	}
	if p.Score != 100 {
		t.Fatalf("expected score kept at 100, got %d", p.Score)
	}
}

func TestResetGame(t *testing.T) {
	s := newTestSession(t, "p1")
	s.CurrentRound = 3
	s.Phase = PhaseFinalResults
	s.Prompt = &Prompt{ID: "x"}
	s.MarkPromptUsed("x")
	s.RoundWinners = []string{"p1"}
	s.Player("p1").Score = 500

	s.ResetGame()
	if s.Phase != PhaseLobby || s.CurrentRound != 0 || s.Prompt != nil {
		t.Fatalf("unexpected state after reset: phase=%s round=%d", s.Phase, s.CurrentRound)
	}
	if len(s.UsedPromptIDs) != 0 || len(s.RoundWinners) != 0 {
		t.Fatal("expected history cleared")
	}
	if len(s.Players) != 2 || s.Player("p1").Score != 0 {
		t.Fatal("expected roster kept with scores zeroed")
	}
}

func TestLeaderboardAndRoundsWon(t *testing.T) {
	s := newTestSession(t, "p1", "p2")
	s.Player("p1").Score = 200
	s.Player("p2").Score = 200
	s.Player("host").Score = 100
	s.RoundWinners = []string{"p1", "p2", "p1"}

	board := s.Leaderboard()
	if board[0].ID != "p1" || board[1].ID != "p2" || board[2].ID != "host" {
		t.Fatalf("unexpected leaderboard order: %v", board)
	}
	if s.RoundsWon("p1") != 2 {
		t.Fatalf("expected 2 rounds won, got %d", s.RoundsWon("p1"))
	}
	if w := s.Winner(); w == nil || w.ID != "p1" {
		t.Fatalf("expected p1 to win, got %+v", w)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestSession(t, "p1")
	_ = s.AddSubmission(Submission{ID: "s1", PlayerID: "p1"})
	c := s.Clone()
	_ = s.CastVote("host", "s1")
	s.Player("p1").Name = "changed"

	if c.SubmissionByID("s1").VoteCount() != 0 {
		t.Fatal("clone shares vote slice")
	}
	if c.Player("p1").Name != "p1" {
		t.Fatal("clone shares players")
	}
}

func TestCodes(t *testing.T) {
	for i := 0; i < 100; i++ {
		if err := ValidateCode(GenerateCode()); err != nil {
			t.Fatalf("generated code failed validation: %v", err)
		}
	}
	if err := ValidateCode("AB23CD"); err != nil {
		t.Fatalf("expected AB23CD to be valid: %v", err)
	}
	for _, bad := range []string{"AB23C", "AB23CDE", "AB23C0", "ab23cd", "AB-3CD"} {
		if err := ValidateCode(bad); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}
	if NormalizeCode(" ab23cd ") != "AB23CD" {
		t.Fatal("expected normalization to uppercase and trim")
	}
}

func TestSettings(t *testing.T) {
	for _, name := range []string{"", "quick", "extended"} {
		s, err := SettingsPreset(name)
		if err != nil {
			t.Fatalf("preset %q: %v", name, err)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("preset %q should validate: %v", name, err)
		}
	}
	bad := DefaultSettings()
	bad.RoundCount = 2
	if err := bad.Validate(); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if DefaultSettings().TimeLimit(PhaseVoting) != 30 {
		t.Fatal("expected voting limit of 30s")
	}
	if !PhaseRoundResults.CanTransitionTo(PhaseFinalResults) || PhaseLobby.CanTransitionTo(PhaseVoting) {
		t.Fatal("unexpected transition table")
	}
}
