package ws

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
	"github.com/vovakirdan/lockstep/internal/wire"
)

// BotConfig configures RunBot.
type BotConfig struct {
	URL      string
	Reliable bool
	// FramesPerTick is how often per tick the client updates.
	FramesPerTick int
	Logger        *log.Logger
	Options       []lockstep.Option
}

// BotResult is what a bot saw before it stopped.
type BotResult struct {
	Player   lockstep.PlayerID
	Ticks    uint32
	Desyncs  int
	Infos    int
	PingMs   int
	Requests int
}

// RunBot connects a predicting client driven by the model's brain and plays
// until ctx is done or the connection fails.
func RunBot[P, I lockstep.Hashable, T any](ctx context.Context, cfg BotConfig, m sim.Model[P, I, T]) (BotResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return BotResult{}, fmt.Errorf("ws: bot url: %w", err)
	}
	if cfg.Reliable {
		q := target.Query()
		q.Set("reliable", "1")
		target.RawQuery = q.Encode()
	}
	frames := max(cfg.FramesPerTick, 1)

	c, err := Dial(ctx, target.String())
	if err != nil {
		return BotResult{}, err
	}
	defer c.Close()

	codec := wire.New(m.NewWorld)
	client := lockstep.NewClient(m.NewWorld(), append([]lockstep.Option{lockstep.WithLogger(logger)}, cfg.Options...)...)
	var res BotResult

	incoming := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := c.Receive()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var sendErr error
	sample := func(bool) I { return m.Brain(client.PlayerID, client.Predicted) }
	send := func(req lockstep.Request[I], _ bool) {
		frame, err := codec.EncodeRequest(req)
		if err == nil {
			err = c.Send(frame)
		}
		if err != nil && sendErr == nil {
			sendErr = err
		}
		res.Requests++
	}

	ticker := time.NewTicker(client.Config().TickPeriod() / time.Duration(frames))
	defer ticker.Stop()
	last := time.Now()

	finish := func() BotResult {
		res.Player = client.PlayerID
		res.Ticks = client.Real.Context.TickID
		res.Desyncs = client.Desyncs()
		res.PingMs = client.AveragePingLatencyMillis()
		return res
	}

	for {
		select {
		case <-ctx.Done():
			return finish(), nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return finish(), nil
			}
			return finish(), fmt.Errorf("ws: bot read: %w", err)
		case f := <-incoming:
			u, err := codec.DecodeUpdate(f)
			if err != nil {
				return finish(), fmt.Errorf("ws: bot: %w", err)
			}
			if !client.Loaded() && u.Initialization != nil {
				logger.Info("bot joined", "player", u.Initialization.PlayerID)
			}
			client.Receive(u)
		case now := <-ticker.C:
			res.Infos += len(client.Update(now.Sub(last), !cfg.Reliable, sample, send))
			last = now
			if sendErr != nil {
				if ctx.Err() != nil {
					return finish(), nil
				}
				return finish(), fmt.Errorf("ws: bot send: %w", sendErr)
			}
		}
	}
}
