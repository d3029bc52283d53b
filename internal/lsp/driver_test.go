package lsp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/semtok/internal/document"
	"github.com/dshills/semtok/internal/lsptest"
	"github.com/dshills/semtok/internal/semantic"
)

const testURI = DocumentURI("file:///tmp/test.cpp")

type session struct {
	client *Client
	server *lsptest.Server
	buf    *document.Buffer
}

func newSession(t *testing.T, opts lsptest.Options, cfg Config) *session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := lsptest.NewServer(opts)
	pipe, err := lsptest.Listen(ctx, srv)
	require.NoError(t, err)

	if cfg.URI == "" {
		cfg.URI = testURI
	}
	if cfg.LanguageID == "" {
		cfg.LanguageID = "cpp"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}

	client, err := Attach(ctx, pipe, cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { client.Shutdown(context.Background()) })

	buf := document.NewBuffer("")
	require.NoError(t, client.Open(buf))
	return &session{client: client, server: srv, buf: buf}
}

// settle calls Update until no token request is outstanding.
func (s *session) settle(t *testing.T) UpdateStats {
	t.Helper()
	var total UpdateStats
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := s.client.Update()
		total.Applied += st.Applied
		total.Stale += st.Stale
		total.Failed += st.Failed
		total.Empty += st.Empty
		total.Invalid += st.Invalid
		total.Tokens += st.Tokens
		if s.client.driver.InFlight() == 0 {
			return total
		}
		if time.Now().After(deadline) {
			t.Fatalf("token requests still in flight: %d", s.client.driver.InFlight())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDriver_OpenSendsEmptyVersionZero(t *testing.T) {
	s := newSession(t, lsptest.Options{}, Config{})

	require.Eventually(t, func() bool {
		return len(s.server.Versions()) == 1
	}, 5*time.Second, 5*time.Millisecond)

	uri, lang, text, version := s.server.Document()
	assert.Equal(t, string(testURI), uri)
	assert.Equal(t, "cpp", lang)
	assert.Equal(t, "", text)
	assert.Equal(t, int32(0), version)
	assert.Equal(t, int32(0), s.client.Version())
}

func TestDriver_VersionRoundTrip(t *testing.T) {
	s := newSession(t, lsptest.Options{}, Config{})

	require.NoError(t, s.buf.InsertLine(0, "int main() {"))
	require.NoError(t, s.buf.InsertLine(1, "  return 0;"))
	require.NoError(t, s.buf.SetLine(2, "}"))
	assert.Equal(t, int32(3), s.client.Version())

	require.Eventually(t, func() bool {
		_, _, _, v := s.server.Document()
		return v == 3
	}, 5*time.Second, 5*time.Millisecond)

	_, _, text, _ := s.server.Document()
	assert.Equal(t, s.buf.Text(), text)
	assert.Equal(t, []int32{0, 1, 2, 3}, s.server.Versions())

	stats := s.settle(t)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 2, stats.Stale)

	assert.Equal(t, []semantic.Token{
		{Line: 0, Column: 0, Length: 3, Category: semantic.Keyword},
		{Line: 0, Column: 4, Length: 4, Category: semantic.Function},
	}, s.buf.Tokens(0))
	assert.Equal(t, []semantic.Token{
		{Line: 1, Column: 2, Length: 6, Category: semantic.Keyword},
		{Line: 1, Column: 9, Length: 1, Category: semantic.NumericLiteral},
	}, s.buf.Tokens(1))
}

func TestDriver_StaleResponsesDiscarded(t *testing.T) {
	s := newSession(t, lsptest.Options{TokenDelay: 50 * time.Millisecond}, Config{})

	s.buf.SetText("int a;")
	s.buf.SetText("int b;")
	s.buf.SetText("int c;")
	assert.Equal(t, 3, s.client.driver.InFlight())

	stats := s.settle(t)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 2, stats.Stale)

	toks := s.buf.Tokens(0)
	require.Len(t, toks, 2)
	assert.Equal(t, semantic.Variable, toks[1].Category)
	assert.Equal(t, 2, s.buf.TokenCount())
}

func TestDriver_MaxInFlightDropsOldest(t *testing.T) {
	s := newSession(t, lsptest.Options{TokenDelay: 100 * time.Millisecond}, Config{MaxInFlight: 2})

	for i := 0; i < 5; i++ {
		s.buf.SetText("int x;")
	}
	assert.Equal(t, 2, s.client.driver.InFlight())
	assert.Equal(t, 2, s.client.conn.PendingCount())

	stats := s.settle(t)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 1, stats.Stale)
}

func TestDriver_UpdateNeverBlocks(t *testing.T) {
	s := newSession(t, lsptest.Options{TokenDelay: 500 * time.Millisecond}, Config{})
	s.buf.SetText("int x;")

	start := time.Now()
	stats := s.client.Update()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, UpdateStats{}, stats)
	assert.Equal(t, 1, s.client.driver.InFlight())
}

func TestDriver_ServerErrorLeavesOverlay(t *testing.T) {
	tests := []struct {
		name  string
		mode  lsptest.TokenMode
		check func(t *testing.T, st UpdateStats)
	}{
		{"error", lsptest.TokensError, func(t *testing.T, st UpdateStats) { assert.Equal(t, 1, st.Failed) }},
		{"null", lsptest.TokensNull, func(t *testing.T, st UpdateStats) { assert.Equal(t, 1, st.Empty) }},
		{"malformed", lsptest.TokensMalformed, func(t *testing.T, st UpdateStats) { assert.Equal(t, 1, st.Invalid) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, lsptest.Options{Tokens: tt.mode}, Config{})

			marker := semantic.Token{Line: 0, Column: 0, Length: 1, Category: semantic.Comment}
			s.buf.PaintToken(marker)
			s.buf.SetText("int x;")

			stats := s.settle(t)
			tt.check(t, stats)
			assert.Equal(t, 0, stats.Applied)
			assert.Equal(t, []semantic.Token{marker}, s.buf.Tokens(0))
		})
	}
}

func TestDriver_NoSemanticTokens(t *testing.T) {
	s := newSession(t, lsptest.Options{NoSemanticTokens: true}, Config{})

	s.buf.SetText("int x;")
	assert.Equal(t, 0, s.client.driver.InFlight())

	require.Eventually(t, func() bool {
		_, _, text, _ := s.server.Document()
		return text == "int x;"
	}, 5*time.Second, 5*time.Millisecond)
	assert.NotContains(t, s.server.Methods(), MethodSemanticTokensFull)
}

func TestDriver_Resync(t *testing.T) {
	s := newSession(t, lsptest.Options{}, Config{})

	require.NoError(t, s.client.Resync())
	assert.Equal(t, int32(1), s.client.Version())
	stats := s.settle(t)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 0, stats.Tokens)
}

func TestDriver_NotOpen(t *testing.T) {
	d := NewDriver(NewConn(&captureWriter{}), document.NewBuffer(""), nil, Capabilities{}, DriverConfig{}, nil, nil)
	err := d.DidEdit(document.Edit{})
	assert.True(t, errors.Is(err, ErrNotOpen))
	assert.Equal(t, UpdateStats{}, d.Update())
}

// flakyWriter fails every write while broken is set.
type flakyWriter struct {
	mu     sync.Mutex
	broken bool
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func (w *flakyWriter) setBroken(b bool) {
	w.mu.Lock()
	w.broken = b
	w.mu.Unlock()
}

func TestDriver_FailedChangeKeepsVersion(t *testing.T) {
	w := &flakyWriter{}
	table, err := semantic.NewTable([]string{"variable"})
	require.NoError(t, err)
	caps := Capabilities{SemanticTokens: SemanticTokensSupport{Supported: true, Full: true}}

	buf := document.NewBuffer("")
	d := NewDriver(NewConn(w), buf, table, caps, DriverConfig{URI: testURI, LanguageID: "cpp"}, zaptest.NewLogger(t), nil)
	require.NoError(t, d.Open())
	defer d.Close()

	w.setBroken(true)
	assert.Error(t, d.DidEdit(document.Edit{Kind: document.Replaced}))
	assert.Equal(t, int32(0), d.Version())
	assert.Equal(t, 0, d.InFlight())

	w.setBroken(false)
	require.NoError(t, d.DidEdit(document.Edit{Kind: document.Replaced}))
	assert.Equal(t, int32(1), d.Version())
	assert.Equal(t, 1, d.InFlight())
}
