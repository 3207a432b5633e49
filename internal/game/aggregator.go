package game

// RoundResult summarises one scored round.
type RoundResult struct {
	Round        int            `json:"round"`
	WinnerID     string         `json:"winnerId,omitempty"`
	SubmissionID string         `json:"submissionId,omitempty"`
	TotalVotes   int            `json:"totalVotes"`
	Awarded      map[string]int `json:"awarded"`
}

// AllPlayersSubmitted is true once every connected player authored a
// submission this round. Disconnected and excused players never block it.
func (s *Session) AllPlayersSubmitted() bool {
	authors := make(map[string]bool, len(s.Submissions))
	for _, sub := range s.Submissions {
		authors[sub.PlayerID] = true
	}
	for _, p := range s.Players {
		if p.Connected && !authors[p.ID] && !s.IsExcused(p.ID) {
			return false
		}
	}
	return true
}

// AllPlayersVoted is true once every connected player has voted on some
// submission other than their own. A player with nothing else to vote for
// counts as done.
func (s *Session) AllPlayersVoted() bool {
	for _, p := range s.Players {
		if !p.Connected || s.IsExcused(p.ID) {
			continue
		}
		votable := false
		voted := false
		for _, sub := range s.Submissions {
			if sub.PlayerID == p.ID {
				continue
			}
			votable = true
			if sub.HasVoter(p.ID) {
				voted = true
				break
			}
		}
		if votable && !voted {
			return false
		}
	}
	return true
}

// RoundWinner scans submissions in order and returns the first one holding
// the strictly greatest vote count, or nil when nobody voted.
func RoundWinner(subs []*Submission) *Submission {
	var best *Submission
	max := 0
	for _, sub := range subs {
		if sub.VoteCount() > max {
			max = sub.VoteCount()
			best = sub
		}
	}
	return best
}

// CalculateRoundResults awards PointsPerVote for every vote a submission got
// and appends the round winner to the winners history. A round without any
// votes awards nothing and records no winner.
func (s *Session) CalculateRoundResults() RoundResult {
	res := RoundResult{Round: s.CurrentRound, Awarded: map[string]int{}}
	for _, sub := range s.Submissions {
		res.TotalVotes += sub.VoteCount()
	}
	if res.TotalVotes == 0 {
		return res
	}
	for _, sub := range s.Submissions {
		if sub.VoteCount() == 0 {
			continue
		}
		if p := s.Player(sub.PlayerID); p != nil {
			pts := sub.VoteCount() * PointsPerVote
			p.Score += pts
			res.Awarded[p.ID] += pts
		}
	}
	if w := RoundWinner(s.Submissions); w != nil {
		res.WinnerID = w.PlayerID
		res.SubmissionID = w.ID
		s.RoundWinners = append(s.RoundWinners, w.PlayerID)
	}
	return res
}
