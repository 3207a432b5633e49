package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExportRound appends the scored round held in s to a text file. The session
// must be in PhaseRoundResults so votes and scores are final.
func ExportRound(s *Session, filename string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	var sb strings.Builder
	name := func(id string) string {
		if p := s.Player(id); p != nil {
			return p.Name
		}
		return "Unknown"
	}

	// Header only for new files or the first round of a new session
	if !fileExists || s.CurrentRound == 1 {
		if fileExists {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("PhotoParty Results - Session %s\n", s.Code))
		sb.WriteString(fmt.Sprintf("Started: %s\n", time.Now().Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
		sb.WriteString("Players:\n")
		for _, p := range s.Players {
			sb.WriteString(fmt.Sprintf("- %s %s\n", p.Avatar, p.Name))
		}
		sb.WriteString("\n")
	}

	prompt := ""
	if s.Prompt != nil {
		prompt = s.Prompt.Text
	}
	sb.WriteString(fmt.Sprintf("Round %d: \"%s\"\n", s.CurrentRound, prompt))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	for _, sub := range s.Submissions {
		voters := make([]string, 0, len(sub.Votes))
		for _, v := range sub.Votes {
			voters = append(voters, name(v))
		}
		line := fmt.Sprintf("- %s: photo %d KB, %d vote(s)", name(sub.PlayerID), (len(sub.Image)+1023)/1024, sub.VoteCount())
		if len(voters) > 0 {
			line += " from " + strings.Join(voters, ", ")
		}
		sb.WriteString(line + "\n")
	}
	if w := RoundWinner(s.Submissions); w != nil {
		sb.WriteString(fmt.Sprintf("\nRound winner: %s\n", name(w.PlayerID)))
	} else {
		sb.WriteString("\nNo votes this round\n")
	}

	sb.WriteString("\nScores after this round:\n")
	for _, p := range s.Leaderboard() {
		sb.WriteString(fmt.Sprintf("- %s: %d points\n", p.Name, p.Score))
	}
	sb.WriteString("\n")
	return appendText(filename, sb.String())
}

// ExportFinal appends the closing standings of a finished game, whether it
// ran all its rounds or was ended early.
func ExportFinal(s *Session, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Game ended at %s after %d of %d round(s)\n",
		time.Now().Format("2006-01-02 15:04:05"), s.CurrentRound, s.Settings.RoundCount))
	if w := s.Winner(); w != nil {
		sb.WriteString(fmt.Sprintf("Winner: %s with %d points\n", w.Name, w.Score))
	}
	sb.WriteString("Rounds won:\n")
	for _, p := range s.Leaderboard() {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", p.Name, s.RoundsWon(p.ID)))
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	return appendText(filename, sb.String())
}

func appendText(filename, text string) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(text); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

// Exporter watches host snapshots. It writes each round once when it reaches
// the results phase and the closing standings once per game.
type Exporter struct {
	File string
	Log  zerolog.Logger

	mu       sync.Mutex
	lastCode string
	last     int
	ended    bool
}

func NewExporter(file string, log zerolog.Logger) *Exporter {
	return &Exporter{File: file, Log: log}
}

func (e *Exporter) Observe(seq uint64, s *Session) {
	if s == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.Code != e.lastCode {
		e.lastCode = s.Code
		e.last = 0
		e.ended = false
	}
	switch s.Phase {
	case PhaseLobby:
		// play again starts numbering from round 1
		e.last = 0
		e.ended = false
	case PhaseRoundResults:
		if s.CurrentRound == e.last {
			return
		}
		e.last = s.CurrentRound
		if err := ExportRound(s, e.File); err != nil {
			e.Log.Error().Err(err).Str("code", s.Code).Msg("failed to export round")
			return
		}
		e.Log.Info().Str("code", s.Code).Int("round", s.CurrentRound).Str("file", e.File).Msg("exported round")
	case PhaseFinalResults:
		if e.ended {
			return
		}
		e.ended = true
		if err := ExportFinal(s, e.File); err != nil {
			e.Log.Error().Err(err).Str("code", s.Code).Msg("failed to export final results")
			return
		}
		e.Log.Info().Str("code", s.Code).Str("file", e.File).Msg("exported final results")
	}
}
