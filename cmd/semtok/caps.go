package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/semtok/internal/lsp"
)

// printCapabilities writes the negotiated server configuration, one
// "key: value" row per capability.
func printCapabilities(w io.Writer, caps lsp.Capabilities) error {
	st := caps.SemanticTokens
	rows := []struct {
		key   string
		value any
	}{
		{"server", strings.TrimSpace(caps.ServerName + " " + caps.ServerVersion)},
		{"position_encoding", caps.PositionEncoding},
		{"text_sync.open_close", caps.TextSync.OpenClose},
		{"text_sync.change", caps.TextSync.Change},
		{"text_sync.will_save", caps.TextSync.WillSave},
		{"text_sync.will_save_wait_until", caps.TextSync.WillSaveWaitUntil},
		{"text_sync.save", caps.TextSync.Save},
		{"text_sync.save_include_text", caps.TextSync.SaveIncludeText},
		{"hover", caps.Hover},
		{"declaration", caps.Declaration},
		{"definition", caps.Definition},
		{"type_definition", caps.TypeDefinition},
		{"implementation", caps.Implementation},
		{"color", caps.Color},
		{"signature_help", caps.SignatureHelp},
		{"completion", caps.Completion},
		{"completion.trigger_characters", strings.Join(caps.CompletionTriggerCharacters, " ")},
		{"completion.resolve", caps.CompletionResolve},
		{"semantic_tokens", st.Supported},
		{"semantic_tokens.full", st.Full},
		{"semantic_tokens.full_delta", st.FullDelta},
		{"semantic_tokens.range", st.Range},
		{"semantic_tokens.token_types", strings.Join(st.Legend.TokenTypes, ",")},
		{"semantic_tokens.token_modifiers", strings.Join(st.Legend.TokenModifiers, ",")},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s: %v\n", r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}
