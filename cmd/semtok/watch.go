package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/watch"
)

// watch prints the token set, then re-syncs and reprints it every time
// the file changes on disk.
func (s *session) watch(ctx context.Context) error {
	w, err := watch.New(s.opts.File)
	if err != nil {
		return err
	}
	defer func() {
		s.logger.Info("watch stopped", watchFields(w.Stats())...)
		_ = w.Close()
	}()

	if err := s.report(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.client.Done():
			return fmt.Errorf("language server stopped: %w", s.client.Err())
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", zap.Error(err))
		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			s.logger.Debug("file changed",
				append([]zap.Field{zap.String("path", change.Path), zap.Stringer("op", change.Op)},
					watchFields(w.Stats())...)...)
			if change.Op == watch.OpRemove {
				s.logger.Warn("file removed; waiting for it to reappear", zap.String("path", change.Path))
				continue
			}
			text, err := os.ReadFile(change.Path)
			if err != nil {
				s.logger.Warn("reading changed file", zap.Error(err))
				continue
			}
			if string(text) == s.buf.Text() {
				continue
			}
			s.buf.SetText(string(text))
			if err := s.report(ctx); err != nil {
				return err
			}
		}
	}
}

// report waits for the current version's tokens and prints them under
// a version header.
func (s *session) report(ctx context.Context) error {
	if err := s.waitTokens(ctx, s.opts.Timeout); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.out, "# version %d\n", s.client.Version()); err != nil {
		return err
	}
	return s.printTokens()
}

func watchFields(st watch.Stats) []zap.Field {
	fields := []zap.Field{
		zap.Int64("raw_events", st.RawEvents),
		zap.Int64("changes", st.Changes),
		zap.Int64("watch_errors", st.Errors),
	}
	if st.LastError != nil {
		fields = append(fields, zap.NamedError("last_watch_error", st.LastError))
	}
	return fields
}
