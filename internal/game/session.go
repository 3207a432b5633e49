package game

import (
	"sort"
)

// Session is the whole replicated game state. Only the hosting device
// mutates it; replicas overwrite their copy with every snapshot.
type Session struct {
	Code          string        `json:"code"`
	Players       []*Player     `json:"players"`
	CurrentRound  int           `json:"currentRound"`
	Phase         Phase         `json:"phase"`
	Prompt        *Prompt       `json:"prompt,omitempty"`
	Submissions   []*Submission `json:"submissions"`
	Settings      Settings      `json:"settings"`
	UsedPromptIDs []string      `json:"usedPromptIds"`
	RoundWinners  []string      `json:"roundWinners"`
	RevealIndex   int           `json:"revealIndex"`
	// Excused holds players who dropped while this round's submissions or
	// votes were open. They stay optional until the next round.
	Excused []string `json:"excused,omitempty"`
}

// NewSession creates a lobby holding only the host.
func NewSession(code string, host Player, settings Settings) *Session {
	host.IsHost = true
	host.Connected = true
	host.Score = 0
	host.HasSubmitted = false
	host.HasVoted = false
	return &Session{
		Code:          code,
		Players:       []*Player{&host},
		Phase:         PhaseLobby,
		Submissions:   []*Submission{},
		Settings:      settings,
		UsedPromptIDs: []string{},
		RoundWinners:  []string{},
	}
}

func (s *Session) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) Host() *Player {
	for _, p := range s.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (s *Session) ConnectedPlayers() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Connected {
			out = append(out, p)
		}
	}
	return out
}

// AddPlayer admits a non-host player. A known id is treated as a reconnect:
// the existing record keeps its score and is marked connected again.
// The returned bool is true when the player is new to the roster.
func (s *Session) AddPlayer(p Player) (*Player, bool, error) {
	if existing := s.Player(p.ID); existing != nil {
		if existing.IsHost {
			return nil, false, ErrNotHost
		}
		existing.Name = p.Name
		existing.Avatar = p.Avatar
		existing.Connected = true
		return existing, false, nil
	}
	if len(s.Players) >= MaxPlayers {
		return nil, false, ErrSessionFull
	}
	np := &Player{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Connected: true}
	s.Players = append(s.Players, np)
	return np, true, nil
}

// UpdatePlayer copies display fields from an identity announcement.
func (s *Session) UpdatePlayer(p Player) error {
	existing := s.Player(p.ID)
	if existing == nil {
		return ErrPlayerNotFound
	}
	existing.Name = p.Name
	existing.Avatar = p.Avatar
	return nil
}

// SetConnected flips a player's link state. Dropping out while photos or
// votes are being collected excuses the player for the rest of the round.
func (s *Session) SetConnected(id string, connected bool) bool {
	p := s.Player(id)
	if p == nil || p.Connected == connected {
		return false
	}
	p.Connected = connected
	if !connected && (s.Phase == PhasePhotoSelection || s.Phase == PhaseVoting) {
		s.Excuse(id)
	}
	return true
}

func (s *Session) Excuse(id string) {
	if !s.IsExcused(id) {
		s.Excused = append(s.Excused, id)
	}
}

func (s *Session) IsExcused(id string) bool {
	for _, e := range s.Excused {
		if e == id {
			return true
		}
	}
	return false
}

func (s *Session) SubmissionByID(id string) *Submission {
	for _, sub := range s.Submissions {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

func (s *Session) SubmissionBy(playerID string) *Submission {
	for _, sub := range s.Submissions {
		if sub.PlayerID == playerID {
			return sub
		}
	}
	return nil
}

// AddSubmission stores a player's entry, replacing any earlier entry from the
// same player in place so the reveal order stays stable.
func (s *Session) AddSubmission(sub Submission) error {
	p := s.Player(sub.PlayerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	sub.Votes = []string{}
	for i, existing := range s.Submissions {
		if existing.PlayerID == sub.PlayerID {
			s.Submissions[i] = &sub
			p.HasSubmitted = true
			return nil
		}
	}
	s.Submissions = append(s.Submissions, &sub)
	p.HasSubmitted = true
	return nil
}

// CastVote records voterID on a submission. The first accepted vote of a
// voter stands for the rest of the round.
func (s *Session) CastVote(voterID, submissionID string) error {
	voter := s.Player(voterID)
	if voter == nil {
		return ErrPlayerNotFound
	}
	target := s.SubmissionByID(submissionID)
	if target == nil {
		return ErrUnknownSubmission
	}
	if target.PlayerID == voterID {
		return ErrSelfVote
	}
	for _, sub := range s.Submissions {
		if sub.HasVoter(voterID) {
			return ErrAlreadyVoted
		}
	}
	target.Votes = append(target.Votes, voterID)
	voter.HasVoted = true
	return nil
}

func (s *Session) MarkPromptUsed(id string) {
	for _, used := range s.UsedPromptIDs {
		if used == id {
			return
		}
	}
	s.UsedPromptIDs = append(s.UsedPromptIDs, id)
}

func (s *Session) UsedPrompts() map[string]bool {
	out := make(map[string]bool, len(s.UsedPromptIDs))
	for _, id := range s.UsedPromptIDs {
		out[id] = true
	}
	return out
}

func (s *Session) IsLastRound() bool {
	return s.CurrentRound >= s.Settings.RoundCount
}

// ResetForNextRound clears the round's entries and per-player flags but keeps scores.
func (s *Session) ResetForNextRound() {
	s.Submissions = []*Submission{}
	s.RevealIndex = 0
	s.Excused = nil
	for _, p := range s.Players {
		p.HasSubmitted = false
		p.HasVoted = false
	}
}

// ResetGame returns to the lobby with the roster kept and all progress cleared.
func (s *Session) ResetGame() {
	s.CurrentRound = 0
	s.Phase = PhaseLobby
	s.Prompt = nil
	s.UsedPromptIDs = []string{}
	s.RoundWinners = []string{}
	s.ResetForNextRound()
	for _, p := range s.Players {
		p.Score = 0
	}
}

// Leaderboard orders players by score, keeping roster order among equals.
func (s *Session) Leaderboard() []Player {
	out := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Session) RoundsWon(playerID string) int {
	n := 0
	for _, id := range s.RoundWinners {
		if id == playerID {
			n++
		}
	}
	return n
}

// Winner is the head of the leaderboard, or nil for an empty roster.
func (s *Session) Winner() *Player {
	board := s.Leaderboard()
	if len(board) == 0 {
		return nil
	}
	return s.Player(board[0].ID)
}

// Clone deep-copies the session. Image payloads are shared since they are immutable.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		c.Players[i] = &cp
	}
	c.Submissions = make([]*Submission, len(s.Submissions))
	for i, sub := range s.Submissions {
		cs := *sub
		cs.Votes = append([]string{}, sub.Votes...)
		c.Submissions[i] = &cs
	}
	if s.Prompt != nil {
		pr := *s.Prompt
		c.Prompt = &pr
	}
	c.Settings.Categories = append([]Category(nil), s.Settings.Categories...)
	c.UsedPromptIDs = append([]string{}, s.UsedPromptIDs...)
	c.RoundWinners = append([]string{}, s.RoundWinners...)
	c.Excused = append([]string(nil), s.Excused...)
	return &c
}
