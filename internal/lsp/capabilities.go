package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/semtok/internal/semantic"
)

// TextSync is the normalized textDocumentSync capability.
type TextSync struct {
	OpenClose         bool
	Change            TextDocumentSyncKind
	WillSave          bool
	WillSaveWaitUntil bool
	Save              bool
	SaveIncludeText   bool
}

// SemanticTokensSupport is the normalized semanticTokensProvider.
type SemanticTokensSupport struct {
	Supported bool
	Full      bool
	FullDelta bool
	Range     bool
	Legend    semantic.Legend
}

// Capabilities is a snapshot of what the server advertised in its
// initialize result. Every field has a defined value whether or not the
// server sent it.
type Capabilities struct {
	PositionEncoding semantic.PositionEncoding
	TextSync         TextSync

	Hover          bool
	Declaration    bool
	Definition     bool
	TypeDefinition bool
	Implementation bool
	Color          bool
	SignatureHelp  bool

	Completion                  bool
	CompletionTriggerCharacters []string
	CompletionResolve           bool

	SemanticTokens SemanticTokensSupport

	ServerName    string
	ServerVersion string
}

// ParseCapabilities normalizes a raw InitializeResult. Missing fields keep
// their protocol defaults; only a result that is not an object, or a
// legend that cannot be read, is an error.
func ParseCapabilities(raw json.RawMessage) (Capabilities, error) {
	if !gjson.ValidBytes(raw) {
		return Capabilities{}, fmt.Errorf("initialize result is not valid JSON")
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return Capabilities{}, fmt.Errorf("initialize result is %s, not an object", res.Type)
	}
	caps := res.Get("capabilities")

	st, err := semanticTokensFrom(caps.Get("semanticTokensProvider"))
	if err != nil {
		return Capabilities{}, err
	}

	completion := caps.Get("completionProvider")
	return Capabilities{
		PositionEncoding: positionEncodingFrom(caps.Get("positionEncoding"), res.Get("offsetEncoding")),
		TextSync:         textSyncFrom(caps.Get("textDocumentSync")),

		Hover:          providerFrom(caps.Get("hoverProvider")),
		Declaration:    providerFrom(caps.Get("declarationProvider")),
		Definition:     providerFrom(caps.Get("definitionProvider")),
		TypeDefinition: providerFrom(caps.Get("typeDefinitionProvider")),
		Implementation: providerFrom(caps.Get("implementationProvider")),
		Color:          providerFrom(caps.Get("colorProvider")),
		SignatureHelp:  providerFrom(caps.Get("signatureHelpProvider")),

		Completion:                  providerFrom(completion),
		CompletionTriggerCharacters: stringsFrom(completion.Get("triggerCharacters")),
		CompletionResolve:           completion.Get("resolveProvider").Bool(),

		SemanticTokens: st,

		ServerName:    res.Get("serverInfo.name").String(),
		ServerVersion: res.Get("serverInfo.version").String(),
	}, nil
}

// positionEncodingFrom prefers the standard field and falls back to the
// clangd offsetEncoding extension.
func positionEncodingFrom(standard, clangd gjson.Result) semantic.PositionEncoding {
	if standard.Type == gjson.String {
		return semantic.ParsePositionEncoding(standard.String())
	}
	if clangd.Type == gjson.String {
		return semantic.ParsePositionEncoding(clangd.String())
	}
	return semantic.UTF16
}

func textSyncFrom(v gjson.Result) TextSync {
	switch {
	case v.Type == gjson.Number:
		return syncFromKind(syncKind(v.Int()))
	case v.IsObject():
		return syncFromOptions(v)
	default:
		return TextSync{}
	}
}

// syncFromKind normalizes the bare number form.
func syncFromKind(k TextDocumentSyncKind) TextSync {
	return TextSync{
		OpenClose: k != TextDocumentSyncKindNone,
		Change:    k,
	}
}

// syncFromOptions normalizes the TextDocumentSyncOptions object form.
func syncFromOptions(v gjson.Result) TextSync {
	ts := TextSync{
		OpenClose:         v.Get("openClose").Bool(),
		Change:            syncKind(v.Get("change").Int()),
		WillSave:          v.Get("willSave").Bool(),
		WillSaveWaitUntil: v.Get("willSaveWaitUntil").Bool(),
	}
	save := v.Get("save")
	switch {
	case save.IsBool():
		ts.Save = save.Bool()
	case save.IsObject():
		ts.Save = true
		ts.SaveIncludeText = save.Get("includeText").Bool()
	}
	return ts
}

// syncKind maps out-of-range values to None.
func syncKind(n int64) TextDocumentSyncKind {
	switch k := TextDocumentSyncKind(n); k {
	case TextDocumentSyncKindNone, TextDocumentSyncKindFull, TextDocumentSyncKindIncremental:
		return k
	default:
		return TextDocumentSyncKindNone
	}
}

func providerFrom(v gjson.Result) bool {
	switch {
	case v.IsBool():
		return providerFromBool(v.Bool())
	case v.IsObject():
		return providerFromOptions(v)
	default:
		return false
	}
}

func providerFromBool(b bool) bool { return b }

// providerFromOptions treats any options object as support.
func providerFromOptions(gjson.Result) bool { return true }

func stringsFrom(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, e := range v.Array() {
		if e.Type == gjson.String {
			out = append(out, e.String())
		}
	}
	return out
}

func semanticTokensFrom(v gjson.Result) (SemanticTokensSupport, error) {
	if !v.IsObject() {
		return SemanticTokensSupport{}, nil
	}

	var legend semantic.Legend
	if l := v.Get("legend"); l.Exists() {
		if err := json.Unmarshal([]byte(l.Raw), &legend); err != nil {
			return SemanticTokensSupport{}, fmt.Errorf("semantic tokens legend: %w", err)
		}
	}

	st := SemanticTokensSupport{
		Supported: true,
		Range:     providerFrom(v.Get("range")),
		Legend:    legend,
	}
	full := v.Get("full")
	switch {
	case full.IsBool():
		st.Full = full.Bool()
	case full.IsObject():
		st.Full = true
		st.FullDelta = full.Get("delta").Bool()
	}
	return st, nil
}
