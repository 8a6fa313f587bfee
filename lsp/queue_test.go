package lsp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func didChangeMsg(path, text string) *Message {
	params, _ := json.Marshal(&DidChangeParams{
		TextDocument: TextDocumentItem{URI: "file://" + path},
		Changes:      []ContentChange{{Text: text}},
	})
	return &Message{JSONRPC: "2.0", Method: "textDocument/didChange", Params: params}
}

func requestMsg(id, method string) *Message {
	return &Message{JSONRPC: "2.0", ID: num(id), Method: method, Params: json.RawMessage(`{}`)}
}

func TestQueueFusesConsecutiveEdits(t *testing.T) {
	q := NewQueue()
	q.Enqueue(didChangeMsg("/a.rb", "first"))
	q.Enqueue(didChangeMsg("/a.rb", "second"))
	q.Enqueue(didChangeMsg("/b.rb", "other"))

	msg, edit, ok := q.Dequeue()
	require.True(t, ok)
	assert.Nil(t, msg)
	require.NotNil(t, edit)

	// Per-file final contents aggregate; the last change wins.
	require.NotNil(t, edit.Contents["/a.rb"])
	assert.Equal(t, "second", *edit.Contents["/a.rb"])
	require.NotNil(t, edit.Contents["/b.rb"])
	assert.Equal(t, "other", *edit.Contents["/b.rb"])
	assert.Equal(t, 3, edit.Counts["textDocument/didChange"])
}

func TestQueueMergeStopsAtNonDelayable(t *testing.T) {
	q := NewQueue()
	q.Enqueue(didChangeMsg("/a.rb", "first"))
	q.Enqueue(requestMsg("7", "textDocument/hover"))
	q.Enqueue(didChangeMsg("/a.rb", "second"))

	_, edit, ok := q.Dequeue()
	require.True(t, ok)
	require.NotNil(t, edit)
	// The hover observes state, so the second edit stays queued behind it.
	assert.Equal(t, "first", *edit.Contents["/a.rb"])

	msg, edit, ok := q.Dequeue()
	require.True(t, ok)
	assert.Nil(t, edit)
	assert.Equal(t, "textDocument/hover", msg.Method)

	_, edit, ok = q.Dequeue()
	require.True(t, ok)
	require.NotNil(t, edit)
	assert.Equal(t, "second", *edit.Contents["/a.rb"])
}

func TestQueueMergeSkipsDelayable(t *testing.T) {
	q := NewQueue()
	q.Enqueue(didChangeMsg("/a.rb", "first"))
	q.Enqueue(&Message{JSONRPC: "2.0", Method: "initialized", Params: json.RawMessage(`{}`)})
	q.Enqueue(didChangeMsg("/a.rb", "second"))

	_, edit, ok := q.Dequeue()
	require.True(t, ok)
	require.NotNil(t, edit)
	assert.Equal(t, "second", *edit.Contents["/a.rb"])
	assert.Equal(t, 2, edit.Counts["textDocument/didChange"])

	// The delayable notification survives, reordered after the edit.
	msg, _, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "initialized", msg.Method)
}

func TestCancelQueuedRequest(t *testing.T) {
	q := NewQueue()
	q.Enqueue(requestMsg("9", "textDocument/hover"))

	cancel, _ := json.Marshal(&CancelParams{ID: json.Number("9")})
	q.Enqueue(&Message{JSONRPC: "2.0", Method: "$/cancelRequest", Params: cancel})

	msg, _, ok := q.Dequeue()
	require.True(t, ok)
	assert.True(t, msg.cancelled)
}

func TestCancelTooLateIsDropped(t *testing.T) {
	q := NewQueue()
	q.Enqueue(requestMsg("9", "textDocument/hover"))
	msg, _, ok := q.Dequeue()
	require.True(t, ok)
	require.False(t, msg.cancelled)

	cancel, _ := json.Marshal(&CancelParams{ID: json.Number("9")})
	q.Enqueue(&Message{JSONRPC: "2.0", Method: "$/cancelRequest", Params: cancel})

	// The late cancel enqueues nothing.
	q.Terminate()
	_, _, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestTerminateDrainsRemaining(t *testing.T) {
	q := NewQueue()
	q.Enqueue(requestMsg("1", "textDocument/hover"))
	q.Terminate()

	msg, _, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "textDocument/hover", msg.Method)

	_, _, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestPauseHoldsMessages(t *testing.T) {
	q := NewQueue()
	q.Pause(true)
	q.Enqueue(requestMsg("1", "textDocument/hover"))

	delivered := make(chan struct{})
	go func() {
		q.Dequeue()
		close(delivered)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-delivered:
		t.Fatal("paused queue must not deliver")
	default:
	}
	q.Pause(false)
	<-delivered
}

func TestDrainCounters(t *testing.T) {
	q := NewQueue()
	q.Enqueue(didChangeMsg("/a.rb", "x"))
	q.Enqueue(didChangeMsg("/a.rb", "y"))
	counts := q.DrainCounters()
	assert.Equal(t, 2, counts["textDocument/didChange"])
	assert.Empty(t, q.DrainCounters())
}
