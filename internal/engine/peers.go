package engine

import (
	"errors"

	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/protocol"
	"github.com/ColinKOB/PhotoParty/internal/transport"
)

func (d *Device) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.PeerConnected:
		d.onConnected(ev.Peer)
	case transport.PeerDisconnected:
		d.onDisconnected(ev.Peer)
	case transport.MessageReceived:
		d.onMessage(ev.Peer, ev.Data)
	}
}

// onConnected registers an unidentified peer and announces ourselves to it.
func (d *Device) onConnected(h transport.Handle) {
	if _, ok := d.peers[h]; ok {
		return
	}
	if d.role == RoleIdle && !d.joining {
		d.log.Debug().Str("peer", string(h)).Msg("not in a session, dropping link")
		d.tr.Disconnect(h)
		return
	}
	d.peers[h] = &peer{}
	self := d.cfg.Self
	if d.role == RoleHost {
		self = *d.session.Host()
	}
	b, err := protocol.Encode(protocol.PlayerInfoMessage{Player: self})
	if err != nil {
		d.log.Error().Err(err).Msg("failed to encode player info")
		return
	}
	if err := d.tr.Send(b, h); err != nil {
		d.log.Warn().Err(err).Str("peer", string(h)).Msg("failed to announce identity")
	}
}

func (d *Device) onDisconnected(h transport.Handle) {
	p := d.peers[h]
	delete(d.peers, h)
	if p == nil {
		return
	}
	switch d.role {
	case RoleHost:
		if p.playerID == "" {
			return
		}
		if d.session.SetConnected(p.playerID, false) {
			d.log.Info().Str("peer", string(h)).Str("player", p.playerID).Msg("player disconnected")
			d.commit()
			d.recheckCompletion()
		}
	case RoleReplica:
		if h != d.hostPeer {
			return
		}
		d.hostLost = true
		d.countdown.Stop()
		d.log.Warn().Str("peer", string(h)).Msg("lost connection to host")
		d.notice(ErrHostUnavailable, true)
	}
}

func (d *Device) onMessage(h transport.Handle, data []byte) {
	p := d.peers[h]
	if p == nil {
		d.log.Debug().Str("peer", string(h)).Msg("message from unknown peer")
		return
	}
	m, err := protocol.Decode(data)
	if err != nil {
		d.log.Warn().Err(err).Str("peer", string(h)).Msg("dropping undecodable message")
		d.notice(err, false)
		return
	}
	if info, ok := m.(protocol.PlayerInfoMessage); ok {
		d.onPlayerInfo(h, p, info.Player)
		return
	}
	if p.playerID == "" {
		p.pending = append(p.pending, m)
		return
	}
	d.dispatch(h, p, m)
}

func (d *Device) onPlayerInfo(h transport.Handle, p *peer, player game.Player) {
	if d.role != RoleHost {
		p.playerID = player.ID
		p.isHost = player.IsHost
		if !player.IsHost {
			d.log.Warn().Str("peer", string(h)).Msg("replica linked to a non-host peer")
		} else if d.joining {
			d.becomeReplica(h)
		}
		d.flushPending(h, p)
		return
	}

	if player.ID == d.cfg.Self.ID {
		d.log.Warn().Str("peer", string(h)).Msg("peer claims the host identity")
		d.drop(h)
		return
	}
	if p.playerID != "" {
		if p.playerID != player.ID {
			d.log.Warn().Str("peer", string(h)).Str("player", p.playerID).Msg("ignoring identity change on bound link")
			return
		}
		if err := d.session.UpdatePlayer(player); err == nil {
			d.commit()
		}
		return
	}

	// a player coming back on a new link replaces the stale one
	for oh, op := range d.peers {
		if oh != h && op.playerID == player.ID {
			delete(d.peers, oh)
			d.tr.Disconnect(oh)
		}
	}
	_, added, err := d.session.AddPlayer(player)
	if err != nil {
		d.log.Warn().Err(err).Str("peer", string(h)).Str("player", player.ID).Msg("refusing player")
		d.drop(h)
		return
	}
	p.playerID = player.ID
	d.log.Info().
		Str("peer", string(h)).
		Str("player", player.ID).
		Str("name", player.Name).
		Bool("reconnect", !added).
		Msg("player identified")
	d.commit()
	d.flushPending(h, p)
}

func (d *Device) drop(h transport.Handle) {
	delete(d.peers, h)
	d.tr.Disconnect(h)
}

func (d *Device) flushPending(h transport.Handle, p *peer) {
	pending := p.pending
	p.pending = nil
	for _, m := range pending {
		if d.peers[h] != p {
			return
		}
		d.dispatch(h, p, m)
	}
}

// dispatch handles a message from an identified peer.
func (d *Device) dispatch(h transport.Handle, p *peer, m protocol.Message) {
	switch m := m.(type) {
	case protocol.StateSnapshot:
		if d.role != RoleReplica || h != d.hostPeer || !p.isHost {
			d.log.Warn().Str("peer", string(h)).Msg("ignoring snapshot from non-host")
			return
		}
		d.applySnapshot(m)
	case protocol.SubmissionMessage:
		if d.role != RoleHost {
			return
		}
		if m.Submission.PlayerID != p.playerID {
			d.log.Warn().Str("peer", string(h)).Str("author", m.Submission.PlayerID).Msg("submission author does not match sender")
			return
		}
		if err := d.applySubmission(m.Submission); err != nil {
			d.logRejected(err, h, "submission")
		}
	case protocol.VoteMessage:
		if d.role != RoleHost {
			return
		}
		if m.VoterID != p.playerID {
			d.log.Warn().Str("peer", string(h)).Str("voter", m.VoterID).Msg("voter does not match sender")
			return
		}
		if err := d.applyVote(m.VoterID, m.SubmissionID); err != nil {
			d.logRejected(err, h, "vote")
		}
	}
}

func (d *Device) logRejected(err error, h transport.Handle, what string) {
	ev := d.log.Info()
	if !errors.Is(err, game.ErrInvalidPhase) && !errors.Is(err, game.ErrAlreadyVoted) {
		ev = d.log.Warn()
	}
	ev.Err(err).Str("peer", string(h)).Str("phase", string(d.session.Phase)).Msg("dropping " + what)
}

// applySnapshot overwrites the replica copy. Snapshots older than the last
// one applied are ignored; re-applying the same one changes nothing.
func (d *Device) applySnapshot(snap protocol.StateSnapshot) {
	if snap.Seq < d.seq {
		d.log.Debug().Uint64("seq", snap.Seq).Uint64("last", d.seq).Msg("dropping stale snapshot")
		return
	}
	prev := d.session
	d.seq = snap.Seq
	d.session = snap.Session
	d.emitDiff(prev, d.session)

	if prev == nil || prev.Phase != d.session.Phase {
		if d.session.Phase.HasCountdown() {
			d.countdown.Start(d.session.Settings.TimeLimit(d.session.Phase), nil)
		} else {
			d.countdown.Stop()
		}
	}
}
