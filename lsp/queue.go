package lsp

import (
	"encoding/json"
	"sync"
)

// editMethods are the client messages that mutate workspace state and may
// be fused into one WorkspaceEdit.
var editMethods = map[string]bool{
	"textDocument/didOpen":            true,
	"textDocument/didChange":          true,
	"textDocument/didClose":           true,
	"workspace/didChangeWatchedFiles": true,
}

// delayableMethods do not observe state, so merging may reorder them past
// file edits without behavior change.
var delayableMethods = map[string]bool{
	"$/cancelRequest": true,
	"initialized":     true,
}

// Queue is the shared request queue: one reader thread enqueues, the main
// thread services. All fields live behind one mutex.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Message
	paused bool

	terminated bool

	// counters accumulate per-method message counts, merged when drained.
	counters map[string]int
}

// NewQueue builds an empty queue.
func NewQueue() *Queue {
	q := &Queue{counters: map[string]int{}}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a message and wakes the main thread.
func (q *Queue) Enqueue(msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if msg.Method == "$/cancelRequest" {
		var params CancelParams
		if err := json.Unmarshal(msg.Params, &params); err == nil && q.cancelLocked(params.ID) {
			// The target was still queued; the cancel is fully served.
			return
		}
		// Too late: the query ran or was never seen. Silently dropped.
		return
	}
	q.items = append(q.items, msg)
	q.counters[msg.Method]++
	q.cond.Broadcast()
}

// cancelLocked marks a queued-but-unstarted request cancelled.
func (q *Queue) cancelLocked(id json.Number) bool {
	for _, item := range q.items {
		if item.ID != nil && *item.ID == id && !item.cancelled {
			item.cancelled = true
			return true
		}
	}
	return false
}

// Terminate wakes the main thread for shutdown; set by the reader thread's
// destruction or a watcher exit.
func (q *Queue) Terminate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.terminated = true
	q.cond.Broadcast()
}

// Pause stops dequeueing without discarding messages.
func (q *Queue) Pause(paused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = paused
	q.cond.Broadcast()
}

// Dequeue blocks until terminate or (not paused and queue non-empty); this
// is the main thread's only suspension point. Consecutive edits at the head
// of the queue, possibly separated only by delayable messages, come back
// fused into one WorkspaceEdit.
func (q *Queue) Dequeue() (*Message, *WorkspaceEdit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.terminated && (q.paused || len(q.items) == 0) {
		q.cond.Wait()
	}
	if q.terminated && len(q.items) == 0 {
		return nil, nil, false
	}

	head := q.items[0]
	if !editMethods[head.Method] {
		q.items = q.items[1:]
		return head, nil, true
	}

	// Fuse the edit run: take every edit reachable from the head skipping
	// only delayable messages; everything else stays queued in order.
	edit := NewWorkspaceEdit()
	var rest []*Message
	fusing := true
	for _, item := range q.items {
		switch {
		case fusing && editMethods[item.Method]:
			edit.absorb(item)
		case fusing && delayableMethods[item.Method]:
			rest = append(rest, item)
		default:
			fusing = false
			rest = append(rest, item)
		}
	}
	q.items = rest
	return nil, edit, true
}

// DrainCounters returns and resets the accumulated per-method counts.
func (q *Queue) DrainCounters() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.counters
	q.counters = map[string]int{}
	return out
}

// WorkspaceEdit is a fused batch of file mutations: the aggregated final
// contents per path (nil meaning closed/deleted) plus a running count per
// edit kind.
type WorkspaceEdit struct {
	Contents map[string]*string
	// Reload lists paths the watcher flagged; contents come from disk at
	// apply time.
	Reload map[string]bool
	Counts map[string]int
}

// NewWorkspaceEdit builds an empty edit.
func NewWorkspaceEdit() *WorkspaceEdit {
	return &WorkspaceEdit{Contents: map[string]*string{}, Reload: map[string]bool{}, Counts: map[string]int{}}
}

func (w *WorkspaceEdit) absorb(msg *Message) {
	w.Counts[msg.Method]++
	switch msg.Method {
	case "textDocument/didOpen":
		var params DidOpenParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			text := params.TextDocument.Text
			w.Contents[uriToPath(params.TextDocument.URI)] = &text
		}
	case "textDocument/didChange":
		var params DidChangeParams
		if err := json.Unmarshal(msg.Params, &params); err == nil && len(params.Changes) > 0 {
			// Full sync: the last change wins.
			text := params.Changes[len(params.Changes)-1].Text
			w.Contents[uriToPath(params.TextDocument.URI)] = &text
		}
	case "textDocument/didClose":
		var params DidCloseParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			w.Contents[uriToPath(params.TextDocument.URI)] = nil
		}
	case "workspace/didChangeWatchedFiles":
		var params DidChangeWatchedFilesParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			for _, change := range params.Changes {
				path := uriToPath(change.URI)
				if change.Type == 3 {
					w.Contents[path] = nil
				} else if _, tracked := w.Contents[path]; !tracked {
					w.Reload[path] = true
				}
			}
		}
	}
}
