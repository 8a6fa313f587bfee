package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/strictly/config"
)

// harness drives the coordinator directly and decodes what it wrote.
type harness struct {
	server *Server
	out    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	server := NewServer(NewConn(strings.NewReader(""), out), config.Default())
	return &harness{server: server, out: out}
}

func (h *harness) drainMessages(t *testing.T) []*Message {
	t.Helper()
	conn := NewConn(bytes.NewReader(h.out.Bytes()), io.Discard)
	h.out.Reset()
	var out []*Message
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return out
		}
		out = append(out, msg)
	}
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	h.server.handleMessage(context.Background(), &Message{
		JSONRPC: "2.0", ID: num("1"), Method: "initialize", Params: json.RawMessage(`{}`),
	})
}

func (h *harness) edit(t *testing.T, path, text string) {
	t.Helper()
	edit := NewWorkspaceEdit()
	edit.Counts["textDocument/didChange"]++
	edit.Contents[path] = &text
	h.server.applyEdit(context.Background(), edit)
}

func diagnosticsFor(t *testing.T, msgs []*Message, uri string) ([]Diagnostic, bool) {
	t.Helper()
	var set []Diagnostic
	found := false
	for _, msg := range msgs {
		if msg.Method != "textDocument/publishDiagnostics" {
			continue
		}
		var params PublishDiagnosticsParams
		require.NoError(t, json.Unmarshal(msg.Params, &params))
		if params.URI == uri {
			set = params.Diagnostics
			found = true
		}
	}
	return set, found
}

const goodFile = `# typed: true
class Demo
  sig { returns(Integer) }
  def answer
    41
  end
end
`

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	msgs := h.drainMessages(t)
	require.NotEmpty(t, msgs)

	var init *Message
	for _, msg := range msgs {
		if msg.ID != nil && msg.ID.String() == "1" {
			init = msg
		}
	}
	require.NotNil(t, init)
}

func TestEditPublishesDiagnosticsAndReplacesThem(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.drainMessages(t)

	broken := strings.Replace(goodFile, "41", `"oops"`, 1)
	h.edit(t, "/ws/demo.rb", broken)
	require.False(t, h.server.TookFastPath, "first sighting of a file is structural")

	diags, found := diagnosticsFor(t, h.drainMessages(t), "file:///ws/demo.rb")
	require.True(t, found)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "Expected `Integer`")

	// Fixing the body replaces the set with an empty one.
	h.edit(t, "/ws/demo.rb", goodFile)
	diags, found = diagnosticsFor(t, h.drainMessages(t), "file:///ws/demo.rb")
	require.True(t, found)
	assert.Empty(t, diags)
}

func TestBodyEditTakesFastPath(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.edit(t, "/ws/demo.rb", goodFile)
	h.edit(t, "/ws/other.rb", `# typed: true
class Other
  sig { returns(String) }
  def broken
    42
  end
end
`)
	require.False(t, h.server.TookFastPath)
	h.drainMessages(t)

	// A body-only change re-infers only the touched method.
	bodyEdit := strings.Replace(goodFile, "41", "42", 1)
	h.edit(t, "/ws/demo.rb", bodyEdit)
	assert.True(t, h.server.TookFastPath)

	msgs := h.drainMessages(t)
	// Diagnostics for the untouched broken file are not re-published.
	_, republished := diagnosticsFor(t, msgs, "file:///ws/other.rb")
	assert.False(t, republished, "fast path must leave unaffected files alone")

	// And the touched file's (empty) set is.
	diags, found := diagnosticsFor(t, msgs, "file:///ws/demo.rb")
	require.True(t, found)
	assert.Empty(t, diags)
}

func TestBodyEditIntroducingErrorOnFastPath(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.edit(t, "/ws/demo.rb", goodFile)
	h.drainMessages(t)

	broken := strings.Replace(goodFile, "41", `"oops"`, 1)
	h.edit(t, "/ws/demo.rb", broken)
	require.True(t, h.server.TookFastPath)

	diags, found := diagnosticsFor(t, h.drainMessages(t), "file:///ws/demo.rb")
	require.True(t, found)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "Expected `Integer`")
}

func TestSignatureEditTakesSlowPath(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.edit(t, "/ws/demo.rb", goodFile)
	h.drainMessages(t)

	sigEdit := strings.Replace(goodFile, "returns(Integer)", "returns(String)", 1)
	h.edit(t, "/ws/demo.rb", sigEdit)
	assert.False(t, h.server.TookFastPath)

	diags, found := diagnosticsFor(t, h.drainMessages(t), "file:///ws/demo.rb")
	require.True(t, found)
	require.Len(t, diags, 1)
}

func TestUnknownRequestGetsMethodNotFound(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.drainMessages(t)

	h.server.handleMessage(context.Background(), &Message{
		JSONRPC: "2.0", ID: num("5"), Method: "textDocument/rename", Params: json.RawMessage(`{}`),
	})
	assert.Contains(t, h.out.String(), `-32601`)

	h.out.Reset()
	h.server.handleMessage(context.Background(), &Message{
		JSONRPC: "2.0", ID: num("6"), Method: "textDocument/hover", Params: json.RawMessage(`"not-an-object"`),
	})
	assert.Contains(t, h.out.String(), `-32602`)
}

func TestHoverAndDefinition(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.edit(t, "/ws/demo.rb", goodFile)
	h.drainMessages(t)

	// Hover over `answer` in `def answer`.
	line := 3
	char := strings.Index("  def answer", "answer")
	result := h.server.hover(PositionParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///ws/demo.rb"},
		Position:     Position{Line: line, Character: char + 1},
	})
	hover, ok := result.(*Hover)
	require.True(t, ok, "expected hover content, got %T", result)
	assert.Contains(t, hover.Contents.Value, "Demo#answer")
	assert.Contains(t, hover.Contents.Value, "Integer")

	defs := h.server.definition(PositionParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///ws/demo.rb"},
		Position:     Position{Line: line, Character: char + 1},
	})
	locs, ok := defs.([]Location)
	require.True(t, ok)
	require.NotEmpty(t, locs)
	assert.Equal(t, "file:///ws/demo.rb", locs[0].URI)
}

func TestDocumentAndWorkspaceSymbols(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.edit(t, "/ws/demo.rb", goodFile)
	h.drainMessages(t)

	docSyms := h.server.documentSymbols("file:///ws/demo.rb")
	require.Len(t, docSyms, 1)
	assert.Equal(t, "Demo", docSyms[0].Name)
	require.Len(t, docSyms[0].Children, 1)
	assert.Equal(t, "answer", docSyms[0].Children[0].Name)

	wsSyms := h.server.workspaceSymbols("answ")
	require.NotEmpty(t, wsSyms)
	assert.Equal(t, "answer", wsSyms[0].Name)
}

func TestProgressMarkersPair(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.edit(t, "/ws/demo.rb", goodFile)

	begins, ends := 0, 0
	for _, msg := range h.drainMessages(t) {
		if msg.Method != "$/progress" {
			continue
		}
		var params ProgressParams
		require.NoError(t, json.Unmarshal(msg.Params, &params))
		switch params.Value.Kind {
		case "begin":
			begins++
		case "end":
			ends++
		}
	}
	assert.Equal(t, begins, ends, "every operation start must close")
	assert.Greater(t, begins, 0)
}
