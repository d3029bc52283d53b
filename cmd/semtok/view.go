package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/lsp"
	"github.com/dshills/semtok/internal/render"
)

// view runs the interactive editor. Key handling, token updates and
// drawing all happen on this goroutine.
func (s *session) view(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	return s.viewLoop(ctx, screen)
}

func (s *session) viewLoop(ctx context.Context, screen tcell.Screen) error {
	v := render.NewView(screen, render.DefaultTheme(), s.client.Capabilities().PositionEncoding)

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(s.cfg.Sync.TickInterval.D())
	defer ticker.Stop()

	var total lsp.UpdateStats
	redraw := func() {
		v.SetStatus(s.status(total))
		v.Draw(s.buf)
	}
	redraw()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.client.Done():
			return fmt.Errorf("language server stopped: %w", s.client.Err())

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				done, err := v.HandleKey(ev, s.buf)
				if err != nil {
					s.logger.Warn("edit", zap.Error(err))
				}
				if done {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			redraw()

		case <-ticker.C:
			before := total
			if _, err := s.tick(&total); err != nil {
				s.logger.Debug("token update", zap.Error(err))
			}
			if total != before {
				redraw()
			}
		}
	}
}

func (s *session) status(total lsp.UpdateStats) string {
	return fmt.Sprintf(" %s  v%d  tokens %d  applied %d  stale %d  failed %d  in-flight %d  [Esc quits]",
		s.opts.File, s.client.Version(), s.buf.TokenCount(),
		total.Applied, total.Stale, total.Failed+total.Invalid, s.client.InFlight())
}
