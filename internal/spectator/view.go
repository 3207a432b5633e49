package spectator

import (
	"github.com/ColinKOB/PhotoParty/internal/game"
)

type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Score        int    `json:"score"`
	IsHost       bool   `json:"isHost"`
	Connected    bool   `json:"connected"`
	HasSubmitted bool   `json:"hasSubmitted"`
	HasVoted     bool   `json:"hasVoted"`
	RoundsWon    int    `json:"roundsWon"`
}

type SubmissionView struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId,omitempty"`
	Image    []byte `json:"image,omitempty"`
	Votes    *int   `json:"votes,omitempty"`
}

// View is what a big screen shows for one snapshot.
type View struct {
	Seq         uint64           `json:"seq"`
	Code        string           `json:"sessionCode"`
	Phase       game.Phase       `json:"phase"`
	Round       int              `json:"round"`
	Rounds      int              `json:"rounds"`
	Prompt      string           `json:"prompt,omitempty"`
	Category    game.Category    `json:"category,omitempty"`
	RevealIndex int              `json:"revealIndex"`
	Players     []PlayerView     `json:"players"`
	Submissions []SubmissionView `json:"submissions"`
	Winners     []string         `json:"roundWinners"`
	Winner      string           `json:"winner,omitempty"`
}

// NewView projects a session for spectators. Photos stay hidden until their
// reveal card comes up, authors and votes until the round is scored.
func NewView(seq uint64, s *game.Session) View {
	v := View{
		Seq:         seq,
		Code:        s.Code,
		Phase:       s.Phase,
		Round:       s.CurrentRound,
		Rounds:      s.Settings.RoundCount,
		RevealIndex: s.RevealIndex,
		Winners:     append([]string(nil), s.RoundWinners...),
	}
	if s.Prompt != nil {
		v.Prompt = s.Prompt.Text
		v.Category = s.Prompt.Category
	}
	for _, p := range s.Leaderboard() {
		v.Players = append(v.Players, PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Avatar:       p.Avatar,
			Score:        p.Score,
			IsHost:       p.IsHost,
			Connected:    p.Connected,
			HasSubmitted: p.HasSubmitted,
			HasVoted:     p.HasVoted,
			RoundsWon:    s.RoundsWon(p.ID),
		})
	}
	scored := s.Phase == game.PhaseRoundResults || s.Phase == game.PhaseFinalResults
	for i, sub := range s.Submissions {
		sv := SubmissionView{ID: sub.ID}
		if imageVisible(s, i) {
			sv.Image = sub.Image
		}
		if scored {
			n := sub.VoteCount()
			sv.PlayerID = sub.PlayerID
			sv.Votes = &n
		}
		v.Submissions = append(v.Submissions, sv)
	}
	if s.Phase == game.PhaseFinalResults {
		if w := s.Winner(); w != nil {
			v.Winner = w.ID
		}
	}
	return v
}

func imageVisible(s *game.Session, i int) bool {
	switch s.Phase {
	case game.PhasePhotoReveal:
		return i <= s.RevealIndex
	case game.PhaseVoting, game.PhaseRoundResults, game.PhaseFinalResults:
		return true
	}
	return false
}
