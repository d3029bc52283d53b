package lsp

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semtok/internal/semantic"
)

func parseCaps(t *testing.T, raw string) Capabilities {
	t.Helper()
	caps, err := ParseCapabilities(json.RawMessage(raw))
	require.NoError(t, err)
	return caps
}

func TestParseCapabilities_Clangd(t *testing.T) {
	caps := parseCaps(t, `{
		"capabilities": {
			"textDocumentSync": {"openClose": true, "change": 2, "save": true},
			"hoverProvider": true,
			"definitionProvider": true,
			"declarationProvider": true,
			"implementationProvider": true,
			"typeDefinitionProvider": true,
			"signatureHelpProvider": {"triggerCharacters": ["(", ","]},
			"completionProvider": {"resolveProvider": false, "triggerCharacters": [".", "<", ">", ":", "\"", "/", "*"]},
			"semanticTokensProvider": {
				"full": {"delta": true},
				"range": false,
				"legend": {
					"tokenTypes": ["variable", "variable", "parameter", "function", "method", "function", "property",
						"variable", "class", "interface", "enum", "enumMember", "type", "type", "unknown",
						"namespace", "typeParameter", "concept", "type", "macro", "modifier", "operator",
						"bracket", "label", "comment"],
					"tokenModifiers": ["declaration", "definition", "deprecated", "deduced", "readonly", "static"]
				}
			}
		},
		"serverInfo": {"name": "clangd", "version": "clangd version 18.1.3"},
		"offsetEncoding": "utf-8"
	}`)

	assert.Equal(t, semantic.UTF8, caps.PositionEncoding)
	assert.Equal(t, TextSync{OpenClose: true, Change: TextDocumentSyncKindIncremental, Save: true}, caps.TextSync)
	assert.True(t, caps.Hover)
	assert.True(t, caps.Definition)
	assert.True(t, caps.Declaration)
	assert.True(t, caps.Implementation)
	assert.True(t, caps.TypeDefinition)
	assert.True(t, caps.SignatureHelp)
	assert.False(t, caps.Color)
	assert.True(t, caps.Completion)
	assert.False(t, caps.CompletionResolve)
	assert.Len(t, caps.CompletionTriggerCharacters, 7)

	st := caps.SemanticTokens
	assert.True(t, st.Supported)
	assert.True(t, st.Full)
	assert.True(t, st.FullDelta)
	assert.False(t, st.Range)
	assert.Len(t, st.Legend.TokenTypes, 25)
	assert.Equal(t, "readonly", st.Legend.TokenModifiers[4])

	assert.Equal(t, "clangd", caps.ServerName)
	assert.Equal(t, "clangd version 18.1.3", caps.ServerVersion)

	table, err := semantic.NewTable(st.Legend.TokenTypes)
	require.NoError(t, err)
	assert.Equal(t, 25, table.Len())
}

func TestParseCapabilities_Empty(t *testing.T) {
	caps := parseCaps(t, `{"capabilities": {}}`)

	assert.Equal(t, Capabilities{PositionEncoding: semantic.UTF16}, caps)

	caps = parseCaps(t, `{}`)
	assert.Equal(t, semantic.UTF16, caps.PositionEncoding)
	assert.False(t, caps.SemanticTokens.Supported)
}

func TestParseCapabilities_SyncShapesNormalizeIdentically(t *testing.T) {
	for _, kind := range []TextDocumentSyncKind{TextDocumentSyncKindFull, TextDocumentSyncKindIncremental} {
		bare := parseCaps(t, `{"capabilities":{"textDocumentSync":`+strconv.Itoa(int(kind))+`}}`)
		object := parseCaps(t, `{"capabilities":{"textDocumentSync":{"openClose":true,"change":`+strconv.Itoa(int(kind))+`}}}`)
		assert.Equal(t, object.TextSync, bare.TextSync, "kind %s", kind)
	}

	none := parseCaps(t, `{"capabilities":{"textDocumentSync":0}}`)
	assert.Equal(t, TextSync{}, none.TextSync)
}

func TestParseCapabilities_VariantShapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, c Capabilities)
	}{
		{
			name: "provider false",
			raw:  `{"capabilities":{"hoverProvider":false}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.False(t, c.Hover)
			},
		},
		{
			name: "provider options object",
			raw:  `{"capabilities":{"hoverProvider":{"workDoneProgress":true},"colorProvider":{}}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.True(t, c.Hover)
				assert.True(t, c.Color)
			},
		},
		{
			name: "provider of wrong type",
			raw:  `{"capabilities":{"hoverProvider":"yes"}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.False(t, c.Hover)
			},
		},
		{
			name: "save with includeText",
			raw:  `{"capabilities":{"textDocumentSync":{"openClose":true,"change":1,"save":{"includeText":true},"willSave":true}}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.Equal(t, TextSync{
					OpenClose:       true,
					Change:          TextDocumentSyncKindFull,
					WillSave:        true,
					Save:            true,
					SaveIncludeText: true,
				}, c.TextSync)
			},
		},
		{
			name: "out of range sync kind",
			raw:  `{"capabilities":{"textDocumentSync":9}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.Equal(t, TextSync{}, c.TextSync)
			},
		},
		{
			name: "standard position encoding wins",
			raw:  `{"capabilities":{"positionEncoding":"utf-32"},"offsetEncoding":"utf-8"}`,
			check: func(t *testing.T, c Capabilities) {
				assert.Equal(t, semantic.UTF32, c.PositionEncoding)
			},
		},
		{
			name: "semantic tokens full bool",
			raw:  `{"capabilities":{"semanticTokensProvider":{"legend":{"tokenTypes":["variable"],"tokenModifiers":[]},"full":true,"range":true}}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.True(t, c.SemanticTokens.Full)
				assert.False(t, c.SemanticTokens.FullDelta)
				assert.True(t, c.SemanticTokens.Range)
				assert.Equal(t, []string{"variable"}, c.SemanticTokens.Legend.TokenTypes)
			},
		},
		{
			name: "semantic tokens without full",
			raw:  `{"capabilities":{"semanticTokensProvider":{"legend":{"tokenTypes":[],"tokenModifiers":[]}}}}`,
			check: func(t *testing.T, c Capabilities) {
				assert.True(t, c.SemanticTokens.Supported)
				assert.False(t, c.SemanticTokens.Full)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseCaps(t, tt.raw))
		})
	}
}

func TestParseCapabilities_Errors(t *testing.T) {
	for _, raw := range []string{
		`null`,
		`[1]`,
		`{"capabilities":`,
		`{"capabilities":{"semanticTokensProvider":{"legend":{"tokenTypes":[1,2]}}}}`,
	} {
		_, err := ParseCapabilities(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}
