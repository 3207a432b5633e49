package engine

import (
	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/protocol"
	"github.com/ColinKOB/PhotoParty/internal/transport"
)

// commit publishes the host session: cues, a snapshot to every identified
// peer, then observers. Every host mutation ends here.
func (d *Device) commit() {
	d.seq++
	snap := d.session.Clone()
	d.emitDiff(d.committed, snap)
	d.committed = snap

	b, err := protocol.Encode(protocol.StateSnapshot{Seq: d.seq, Session: snap})
	if err != nil {
		d.log.Error().Err(err).Uint64("seq", d.seq).Msg("failed to encode snapshot")
		d.notice(err, false)
		return
	}
	if to := d.identifiedPeers(); len(to) > 0 {
		if err := d.tr.Send(b, to...); err != nil {
			d.log.Warn().Err(err).Uint64("seq", d.seq).Msg("snapshot not delivered to every peer")
		}
	}
	seq := d.seq
	for _, o := range d.cfg.Observers {
		d.disp.enqueue(func() { o.Observe(seq, snap) })
	}
}

func (d *Device) identifiedPeers() []transport.Handle {
	out := make([]transport.Handle, 0, len(d.peers))
	for h, p := range d.peers {
		if p.playerID != "" {
			out = append(out, h)
		}
	}
	return out
}

func (d *Device) setPhase(next game.Phase) {
	prev := d.session.Phase
	if !prev.CanTransitionTo(next) {
		d.log.Error().Str("from", string(prev)).Str("to", string(next)).Msg("unexpected phase transition")
	}
	d.session.Phase = next
	d.epoch++
	d.cancelStep()
	d.log.Info().
		Str("code", d.session.Code).
		Int("round", d.session.CurrentRound).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("phase transition")
}

func (d *Device) nextPrompt() (game.Prompt, bool) {
	if d.cfg.Prompts == nil {
		return game.Prompt{}, false
	}
	return d.cfg.Prompts.Next(d.session.UsedPrompts(), d.session.Settings.Categories)
}

func (d *Device) startGame() error {
	if d.role != RoleHost {
		return game.ErrNotHost
	}
	if d.session.Phase != game.PhaseLobby {
		return game.ErrInvalidPhase
	}
	if n := len(d.session.ConnectedPlayers()); n < game.MinPlayers {
		return game.ErrNotEnoughPlayers
	}
	prompt, ok := d.nextPrompt()
	if !ok {
		d.notice(game.ErrNoPromptAvailable, true)
		return game.ErrNoPromptAvailable
	}
	d.startRound(prompt)
	return nil
}

func (d *Device) startRound(prompt game.Prompt) {
	s := d.session
	s.ResetForNextRound()
	s.CurrentRound++
	s.Prompt = &prompt
	s.MarkPromptUsed(prompt.ID)
	d.setPhase(game.PhasePromptDisplay)
	d.commit()
	d.schedule(game.PromptDisplayDuration, d.enterPhotoSelection)
}

func (d *Device) enterPhotoSelection() {
	d.setPhase(game.PhasePhotoSelection)
	d.countdown.Start(d.session.Settings.SelectionTime, func() {
		d.log.Info().Str("code", d.session.Code).Msg("selection time is up")
		d.enterPhotoReveal()
	})
	d.commit()
}

func (d *Device) enterPhotoReveal() {
	d.countdown.Stop()
	d.setPhase(game.PhasePhotoReveal)
	d.session.RevealIndex = 0
	d.commit()
	if len(d.session.Submissions) == 0 {
		d.enterVoting()
		return
	}
	d.schedule(game.RevealCardDuration, d.revealNext)
}

func (d *Device) revealNext() {
	d.session.RevealIndex++
	if d.session.RevealIndex >= len(d.session.Submissions) {
		d.enterVoting()
		return
	}
	d.commit()
	d.schedule(game.RevealCardDuration, d.revealNext)
}

func (d *Device) enterVoting() {
	d.setPhase(game.PhaseVoting)
	if d.session.AllPlayersVoted() {
		d.commit()
		d.enterRoundResults()
		return
	}
	d.countdown.Start(d.session.Settings.VotingTime, func() {
		d.log.Info().Str("code", d.session.Code).Msg("voting time is up")
		d.enterRoundResults()
	})
	d.commit()
}

func (d *Device) enterRoundResults() {
	d.countdown.Stop()
	res := d.session.CalculateRoundResults()
	d.setPhase(game.PhaseRoundResults)
	d.log.Info().
		Str("code", d.session.Code).
		Int("round", res.Round).
		Int("votes", res.TotalVotes).
		Str("winner", res.WinnerID).
		Msg("round scored")
	d.commit()
	d.schedule(game.ResultsDisplayDuration, d.finishRound)
}

func (d *Device) finishRound() {
	if d.session.IsLastRound() {
		d.enterFinalResults()
		return
	}
	prompt, ok := d.nextPrompt()
	if !ok {
		d.log.Warn().Str("code", d.session.Code).Int("round", d.session.CurrentRound).Msg("no prompt left for next round")
		d.notice(game.ErrNoPromptAvailable, true)
		return
	}
	d.startRound(prompt)
}

func (d *Device) enterFinalResults() {
	d.countdown.Stop()
	d.setPhase(game.PhaseFinalResults)
	ev := d.log.Info().Str("code", d.session.Code)
	if w := d.session.Winner(); w != nil {
		ev = ev.Str("winner", w.ID).Int("score", w.Score)
	}
	ev.Msg("game over")
	d.commit()
}

// endGame cuts a game short from the results screen, typically after the
// prompt catalog ran dry.
func (d *Device) endGame() error {
	if d.role != RoleHost {
		return game.ErrNotHost
	}
	if d.session.Phase != game.PhaseRoundResults {
		return game.ErrInvalidPhase
	}
	d.enterFinalResults()
	return nil
}

func (d *Device) playAgain() error {
	if d.role != RoleHost {
		return game.ErrNotHost
	}
	if d.session.Phase != game.PhaseFinalResults {
		return game.ErrInvalidPhase
	}
	d.cancelStep()
	d.countdown.Stop()
	d.session.ResetGame()
	d.epoch++
	d.log.Info().Str("code", d.session.Code).Msg("back to lobby")
	d.commit()
	return nil
}

func (d *Device) applySubmission(sub game.Submission) error {
	if d.session.Phase != game.PhasePhotoSelection {
		return game.ErrInvalidPhase
	}
	if err := d.session.AddSubmission(sub); err != nil {
		return err
	}
	d.commit()
	if d.session.AllPlayersSubmitted() {
		d.enterPhotoReveal()
	}
	return nil
}

func (d *Device) applyVote(voterID, submissionID string) error {
	if d.session.Phase != game.PhaseVoting {
		return game.ErrInvalidPhase
	}
	if err := d.session.CastVote(voterID, submissionID); err != nil {
		return err
	}
	d.commit()
	if d.session.AllPlayersVoted() {
		d.enterRoundResults()
	}
	return nil
}

// recheckCompletion re-evaluates the current phase after the roster changed.
func (d *Device) recheckCompletion() {
	switch d.session.Phase {
	case game.PhasePhotoSelection:
		if d.session.AllPlayersSubmitted() {
			d.enterPhotoReveal()
		}
	case game.PhaseVoting:
		if d.session.AllPlayersVoted() {
			d.enterRoundResults()
		}
	}
}
