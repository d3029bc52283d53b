package lsp

import (
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (c *Client) handleLogMessage(method string, params json.RawMessage) {
	var msg LogMessageParams
	if err := json.Unmarshal(params, &msg); err != nil {
		c.logger.Debug("malformed message", zap.String("method", method), zap.Error(err))
		return
	}

	level := zapcore.DebugLevel
	switch msg.Type {
	case MessageTypeError:
		level = zapcore.ErrorLevel
	case MessageTypeWarning:
		level = zapcore.WarnLevel
	case MessageTypeInfo:
		level = zapcore.InfoLevel
	}
	if method == MethodShowMessage && level < zapcore.InfoLevel {
		level = zapcore.InfoLevel
	}

	if ce := c.logger.Check(level, "server: "+msg.Message); ce != nil {
		ce.Write(zap.String("method", method))
	}
}

func (c *Client) handleDiagnostics(_ string, params json.RawMessage) {
	var p PublishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		c.logger.Debug("malformed diagnostics", zap.Error(err))
		return
	}
	c.logger.Debug("diagnostics", zap.String("uri", string(p.URI)), zap.Int("count", len(p.Diagnostics)))
	for _, d := range p.Diagnostics {
		c.logger.Debug("diagnostic",
			zap.Int("line", d.Range.Start.Line),
			zap.Int("character", d.Range.Start.Character),
			zap.Int("severity", d.Severity),
			zap.String("source", d.Source),
			zap.String("message", d.Message),
		)
	}
}
