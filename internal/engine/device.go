// Package engine runs one device of a game: the host's authoritative state
// machine or a replica that mirrors it. Every mutation happens on a single
// loop goroutine fed by commands, transport events and timer callbacks.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/protocol"
	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type Role int

const (
	RoleIdle Role = iota
	RoleHost
	RoleReplica
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleReplica:
		return "replica"
	}
	return "idle"
}

// PromptSource hands out prompts the session has not used yet.
type PromptSource interface {
	Next(excluding map[string]bool, allowed []game.Category) (game.Prompt, bool)
}

type Config struct {
	Self          game.Player
	Transport     transport.Transport
	Prompts       PromptSource
	Clock         clockwork.Clock
	Hooks         Hooks
	Observers     []Observer
	Logger        zerolog.Logger
	InviteTimeout time.Duration
	// SessionCode pins the code used by Host; empty picks a random one.
	SessionCode string
}

// View is a read-only copy of the device state.
type View struct {
	Role      Role
	Self      string
	Session   *game.Session
	Seq       uint64
	Remaining int
	HostLost  bool
}

type peer struct {
	playerID string
	isHost   bool
	pending  []protocol.Message
}

type Device struct {
	cfg   Config
	log   zerolog.Logger
	clock clockwork.Clock
	tr    transport.Transport
	hooks Hooks
	disp  *dispatcher

	cmds chan func()
	done chan struct{}

	// owned by the loop
	role      Role
	joining   bool
	session   *game.Session
	committed *game.Session
	seq       uint64
	epoch     uint64
	peers     map[transport.Handle]*peer
	hostPeer  transport.Handle
	hostLost  bool
	stepStop  chan struct{}
	countdown *Countdown
}

func New(cfg Config) (*Device, error) {
	if cfg.Self.ID == "" {
		return nil, errors.New("engine: player id required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("engine: transport required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = NopHooks{}
	}
	if cfg.InviteTimeout <= 0 {
		cfg.InviteTimeout = transport.DefaultInviteTimeout
	}
	cfg.Self.IsHost = false
	cfg.Self.Connected = true
	log := cfg.Logger.With().Str("player_id", cfg.Self.ID).Logger()
	d := &Device{
		cfg:   cfg,
		log:   log,
		clock: cfg.Clock,
		tr:    cfg.Transport,
		hooks: cfg.Hooks,
		disp:  newDispatcher(log),
		cmds:  make(chan func(), 64),
		done:  make(chan struct{}),
		peers: make(map[transport.Handle]*peer),
	}
	d.countdown = newCountdown(d.clock, d.post, func(remaining int) {
		d.hook(func(h Hooks) { h.Tick(remaining) })
	})
	return d, nil
}

// Run processes commands and transport events until ctx is done. It must be
// called exactly once.
func (d *Device) Run(ctx context.Context) error {
	go d.disp.run(d.done)
	defer close(d.done)
	defer d.reset()
	events := d.tr.Events()
	for {
		select {
		case fn := <-d.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.handleEvent(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// do runs fn on the loop and waits for its result.
func (d *Device) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case d.cmds <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
}

// post queues fn on the loop without waiting.
func (d *Device) post(fn func()) {
	select {
	case d.cmds <- fn:
	case <-d.done:
	}
}

func (d *Device) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := d.do(ctx, func() error {
		v = View{
			Role:      d.role,
			Self:      d.cfg.Self.ID,
			Session:   d.session.Clone(),
			Seq:       d.seq,
			Remaining: d.countdown.Remaining(),
			HostLost:  d.hostLost,
		}
		return nil
	})
	return v, err
}

// Host opens a new session with this device as its authority.
func (d *Device) Host(ctx context.Context, settings game.Settings) (string, error) {
	var code string
	err := d.do(ctx, func() error {
		if d.role != RoleIdle || d.joining {
			return ErrBusy
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		code = game.NormalizeCode(d.cfg.SessionCode)
		if code == "" {
			code = game.GenerateCode()
		} else if err := game.ValidateCode(code); err != nil {
			return err
		}
		self := d.cfg.Self
		if err := d.tr.Advertise(code, transport.HostInfo{Name: self.Name, Avatar: self.Avatar}); err != nil {
			d.notice(err, false)
			return err
		}
		d.role = RoleHost
		d.session = game.NewSession(code, self, settings)
		d.committed = nil
		d.seq = 0
		d.log.Info().Str("code", code).Int("rounds", settings.RoundCount).Msg("hosting session")
		d.commit()
		return nil
	})
	return code, err
}

func (d *Device) Discover(ctx context.Context) (<-chan transport.Advert, error) {
	return d.tr.Discover(ctx)
}

// JoinByCode discovers adverts until one carries code, then joins it.
func (d *Device) JoinByCode(ctx context.Context, code string) error {
	code = game.NormalizeCode(code)
	if err := game.ValidateCode(code); err != nil {
		return err
	}
	dctx, cancel := context.WithTimeout(ctx, d.cfg.InviteTimeout)
	defer cancel()
	ch, err := d.tr.Discover(dctx)
	if err != nil {
		return err
	}
	for ad := range ch {
		if ad.Code == code {
			cancel()
			return d.Join(ctx, ad)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return transport.Errorf(transport.Timeout, "join", "no session %s found", code)
}

// Join connects to a host. The handshake runs off the loop; its result is
// applied on the loop.
func (d *Device) Join(ctx context.Context, ad transport.Advert) error {
	err := d.do(ctx, func() error {
		if d.role != RoleIdle || d.joining {
			return ErrBusy
		}
		d.joining = true
		d.seq = 0
		return nil
	})
	if err != nil {
		return err
	}
	h, cerr := d.tr.Connect(ctx, ad)
	return d.do(context.WithoutCancel(ctx), func() error {
		if cerr != nil {
			d.joining = false
			d.notice(cerr, false)
			return cerr
		}
		if !d.joining && !(d.role == RoleReplica && d.hostPeer == h) {
			// left while the handshake was running
			d.tr.Disconnect(h)
			return ErrNoSession
		}
		d.becomeReplica(h)
		d.log.Info().Str("code", ad.Code).Str("host", ad.Host.Name).Msg("joined session")
		return nil
	})
}

func (d *Device) becomeReplica(h transport.Handle) {
	if d.role == RoleReplica && d.hostPeer == h {
		return
	}
	d.joining = false
	d.role = RoleReplica
	d.hostPeer = h
	d.hostLost = false
}

// Leave drops the session, its timers and every link.
func (d *Device) Leave(ctx context.Context) error {
	return d.do(ctx, func() error {
		if d.role == RoleIdle && !d.joining {
			return ErrNoSession
		}
		d.log.Info().Str("role", d.role.String()).Msg("leaving session")
		d.reset()
		return nil
	})
}

func (d *Device) reset() {
	d.cancelStep()
	d.countdown.Stop()
	if d.role == RoleHost {
		d.tr.StopAdvertising()
	}
	for h := range d.peers {
		d.tr.Disconnect(h)
	}
	d.peers = make(map[transport.Handle]*peer)
	d.role = RoleIdle
	d.joining = false
	d.session = nil
	d.committed = nil
	d.hostPeer = ""
	d.hostLost = false
	d.seq = 0
	d.epoch++
}

// SubmitPhoto enters image as this player's photo for the round.
func (d *Device) SubmitPhoto(ctx context.Context, image []byte) (string, error) {
	var id string
	err := d.do(ctx, func() error {
		if d.session == nil {
			return ErrNoSession
		}
		if d.session.Phase != game.PhasePhotoSelection {
			return game.ErrInvalidPhase
		}
		sub := game.Submission{ID: uuid.NewString(), PlayerID: d.cfg.Self.ID, Image: image, CreatedAt: d.clock.Now().UTC()}
		id = sub.ID
		if d.role == RoleHost {
			return d.applySubmission(sub)
		}
		if d.hostLost {
			return ErrHostUnavailable
		}
		b, err := protocol.Encode(protocol.SubmissionMessage{Submission: sub})
		if err != nil {
			d.notice(err, false)
			return err
		}
		if err := d.optimistic(func(s *game.Session) error { return s.AddSubmission(sub) }); err != nil {
			return err
		}
		return d.sendToHost(b)
	})
	return id, err
}

// Vote casts this player's vote for submissionID.
func (d *Device) Vote(ctx context.Context, submissionID string) error {
	return d.do(ctx, func() error {
		if d.session == nil {
			return ErrNoSession
		}
		if d.session.Phase != game.PhaseVoting {
			return game.ErrInvalidPhase
		}
		self := d.cfg.Self.ID
		if d.role == RoleHost {
			return d.applyVote(self, submissionID)
		}
		if d.hostLost {
			return ErrHostUnavailable
		}
		b, err := protocol.Encode(protocol.VoteMessage{VoterID: self, SubmissionID: submissionID})
		if err != nil {
			d.notice(err, false)
			return err
		}
		if err := d.optimistic(func(s *game.Session) error { return s.CastVote(self, submissionID) }); err != nil {
			return err
		}
		return d.sendToHost(b)
	})
}

func (d *Device) StartGame(ctx context.Context) error {
	return d.do(ctx, d.startGame)
}

func (d *Device) PlayAgain(ctx context.Context) error {
	return d.do(ctx, d.playAgain)
}

func (d *Device) EndGame(ctx context.Context) error {
	return d.do(ctx, d.endGame)
}

func (d *Device) UpdateSettings(ctx context.Context, settings game.Settings) error {
	return d.do(ctx, func() error {
		if d.role != RoleHost {
			return game.ErrNotHost
		}
		if d.session.Phase != game.PhaseLobby {
			return game.ErrInvalidPhase
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		d.session.Settings = settings
		d.commit()
		return nil
	})
}

// optimistic applies a local proposal to the replica copy ahead of the host.
func (d *Device) optimistic(fn func(*game.Session) error) error {
	prev := d.session.Clone()
	if err := fn(d.session); err != nil {
		return err
	}
	d.emitDiff(prev, d.session)
	return nil
}

func (d *Device) sendToHost(b []byte) error {
	if err := d.tr.Send(b, d.hostPeer); err != nil {
		d.notice(err, false)
		return err
	}
	return nil
}
