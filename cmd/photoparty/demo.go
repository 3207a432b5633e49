package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"strconv"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/config"
	"github.com/ColinKOB/PhotoParty/internal/engine"
	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/ColinKOB/PhotoParty/internal/imagecodec"
	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/ColinKOB/PhotoParty/internal/transport/lan"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// bot plays along on its own device: it submits a random picture and votes
// for a random photo that is not its own.
type bot struct {
	engine.LogHooks
	ctx context.Context
	id  string
	dev *engine.Device
}

func (b *bot) PhaseChanged(from, to game.Phase) {
	switch to {
	case game.PhasePhotoSelection:
		go b.after(func() {
			if _, err := b.dev.SubmitPhoto(b.ctx, b.picture()); err != nil {
				zerolog.Ctx(b.ctx).Debug().Err(err).Str("bot", b.id).Msg("bot submit failed")
			}
		})
	case game.PhaseVoting:
		go b.after(b.vote)
	}
}

func (b *bot) after(fn func()) {
	select {
	case <-time.After(time.Duration(1+rand.Intn(4)) * time.Second):
		fn()
	case <-b.ctx.Done():
	}
}

func (b *bot) vote() {
	v, err := b.dev.Snapshot(b.ctx)
	if err != nil || v.Session == nil {
		return
	}
	var choices []string
	for _, sub := range v.Session.Submissions {
		if sub.PlayerID != b.id {
			choices = append(choices, sub.ID)
		}
	}
	if len(choices) == 0 {
		return
	}
	_ = b.dev.Vote(b.ctx, choices[rand.Intn(len(choices))])
}

func (b *bot) picture() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	c := color.RGBA{uint8(rand.Intn(256)), uint8(rand.Intn(256)), uint8(rand.Intn(256)), 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	out, _ := imagecodec.EncodeImage(img)
	return out
}

// startDemo hosts a session on dev and joins n bots to it over loopback.
func startDemo(ctx context.Context, dev *engine.Device, cfg config.Config, port, n int, log zerolog.Logger) error {
	if n >= game.MaxPlayers {
		n = game.MaxPlayers - 1
	}
	code, err := dev.Host(ctx, cfg.Settings)
	if err != nil {
		return err
	}
	ad := transport.Advert{Code: code, Addr: "127.0.0.1:" + strconv.Itoa(port)}
	botLog := log.Level(zerolog.WarnLevel)
	ctx = botLog.WithContext(ctx)
	for i := 0; i < n; i++ {
		tr, err := lan.New(lan.Config{Listen: "127.0.0.1:0", InviteTimeout: cfg.InviteTimeout, Logger: botLog})
		if err != nil {
			return err
		}
		b := &bot{LogHooks: engine.LogHooks{Log: botLog}, ctx: ctx, id: uuid.NewString()}
		b.dev, err = engine.New(engine.Config{
			Self: game.Player{
				ID:     b.id,
				Name:   fmt.Sprintf("Bot %d", i+1),
				Avatar: game.Avatars[rand.Intn(len(game.Avatars))],
			},
			Transport: tr,
			Hooks:     b,
			Logger:    botLog,
		})
		if err != nil {
			return err
		}
		go func() {
			defer tr.Close()
			_ = b.dev.Run(ctx)
		}()
		if err := b.dev.Join(ctx, ad); err != nil {
			return fmt.Errorf("bot %d: %w", i+1, err)
		}
	}
	log.Info().Str("code", code).Int("bots", n).Msg("demo session ready, type start")
	return nil
}
