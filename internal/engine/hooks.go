package engine

import (
	"fmt"

	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/rs/zerolog"
)

// Hooks receives presentation cues. Calls happen on a dedicated goroutine,
// in order, and are dropped when the consumer falls too far behind.
type Hooks interface {
	PhaseChanged(from, to game.Phase)
	PlayerJoined(p game.Player)
	PlayerLeft(p game.Player)
	Submitted(playerID string)
	Voted(voterID string)
	Revealed(index int, sub game.Submission)
	Tick(remaining int)
	Notice(n Notice)
}

// Observer receives every snapshot the host commits.
type Observer interface {
	Observe(seq uint64, s *game.Session)
}

type NopHooks struct{}

func (NopHooks) PhaseChanged(from, to game.Phase)        {}
func (NopHooks) PlayerJoined(p game.Player)              {}
func (NopHooks) PlayerLeft(p game.Player)                {}
func (NopHooks) Submitted(playerID string)               {}
func (NopHooks) Voted(voterID string)                    {}
func (NopHooks) Revealed(index int, sub game.Submission) {}
func (NopHooks) Tick(remaining int)                      {}
func (NopHooks) Notice(n Notice)                         {}

// LogHooks writes every cue to a logger.
type LogHooks struct {
	Log zerolog.Logger
}

func (h LogHooks) PhaseChanged(from, to game.Phase) {
	h.Log.Info().Str("from", string(from)).Str("to", string(to)).Msg("phase changed")
}
func (h LogHooks) PlayerJoined(p game.Player) {
	h.Log.Info().Str("player_id", p.ID).Str("name", p.Name).Msg("player joined")
}
func (h LogHooks) PlayerLeft(p game.Player) {
	h.Log.Info().Str("player_id", p.ID).Str("name", p.Name).Msg("player left")
}
func (h LogHooks) Submitted(playerID string) {
	h.Log.Info().Str("player_id", playerID).Msg("photo submitted")
}
func (h LogHooks) Voted(voterID string) { h.Log.Info().Str("player_id", voterID).Msg("vote cast") }
func (h LogHooks) Revealed(index int, sub game.Submission) {
	h.Log.Info().Int("index", index).Str("player_id", sub.PlayerID).Msg("photo revealed")
}
func (h LogHooks) Tick(remaining int) {
	if remaining <= 5 {
		h.Log.Debug().Int("remaining", remaining).Msg("tick")
	}
}
func (h LogHooks) Notice(n Notice) {
	h.Log.Warn().Err(n.Err).Bool("blocking", n.Blocking).Msg("notice")
}

const hookQueueSize = 256

type dispatcher struct {
	ch  chan func()
	log zerolog.Logger
}

func newDispatcher(log zerolog.Logger) *dispatcher {
	return &dispatcher{ch: make(chan func(), hookQueueSize), log: log}
}

func (q *dispatcher) enqueue(fn func()) {
	select {
	case q.ch <- fn:
	default:
		q.log.Warn().Msg("hook queue full, dropping event")
	}
}

func (q *dispatcher) run(stop <-chan struct{}) {
	for {
		select {
		case fn := <-q.ch:
			q.call(fn)
		case <-stop:
			return
		}
	}
}

func (q *dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("panic", fmt.Sprint(r)).Msg("hook panicked")
		}
	}()
	fn()
}

func (d *Device) hook(fn func(Hooks)) {
	h := d.hooks
	d.disp.enqueue(func() { fn(h) })
}

func (d *Device) notice(err error, blocking bool) {
	n := Notice{Err: err, Blocking: blocking}
	d.log.Warn().Err(err).Bool("blocking", blocking).Msg("notice")
	d.hook(func(h Hooks) { h.Notice(n) })
}

// emitDiff derives presentation cues from two consecutive session values, so
// hosts and replicas raise the same cues for the same change.
func (d *Device) emitDiff(prev, cur *game.Session) {
	if cur == nil {
		return
	}
	var prevPhase game.Phase
	if prev != nil {
		prevPhase = prev.Phase
	}
	if prevPhase != cur.Phase {
		from, to := prevPhase, cur.Phase
		d.hook(func(h Hooks) { h.PhaseChanged(from, to) })
	}
	self := d.cfg.Self.ID
	for _, p := range cur.Players {
		var old *game.Player
		if prev != nil {
			old = prev.Player(p.ID)
		}
		pc := *p
		if p.ID != self {
			switch {
			case p.Connected && (old == nil || !old.Connected):
				d.hook(func(h Hooks) { h.PlayerJoined(pc) })
			case !p.Connected && old != nil && old.Connected:
				d.hook(func(h Hooks) { h.PlayerLeft(pc) })
			}
		}
		if p.HasSubmitted && (old == nil || !old.HasSubmitted) {
			d.hook(func(h Hooks) { h.Submitted(pc.ID) })
		}
		if p.HasVoted && (old == nil || !old.HasVoted) {
			d.hook(func(h Hooks) { h.Voted(pc.ID) })
		}
	}
	if prev != nil {
		for _, old := range prev.Players {
			if cur.Player(old.ID) == nil && old.ID != self {
				pc := *old
				d.hook(func(h Hooks) { h.PlayerLeft(pc) })
			}
		}
	}
	if cur.Phase == game.PhasePhotoReveal && cur.RevealIndex < len(cur.Submissions) &&
		(prevPhase != game.PhasePhotoReveal || prev.RevealIndex != cur.RevealIndex) {
		idx, sub := cur.RevealIndex, *cur.Submissions[cur.RevealIndex]
		d.hook(func(h Hooks) { h.Revealed(idx, sub) })
	}
}
