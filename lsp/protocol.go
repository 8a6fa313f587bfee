package lsp

import "encoding/json"

// Message is one decoded JSON-RPC envelope; a request has an ID, a
// notification does not.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.Number    `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`

	// cancelled marks a queued request deleted by $/cancelRequest.
	cancelled bool
}

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool { return m.ID != nil && m.Method != "" }

// Response is a JSON-RPC reply.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      *json.Number   `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error member of a failed response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC and LSP error codes the server emits.
const (
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeRequestCancelled = -32800
)

// Notification is a server-originated message without an ID.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Position is an LSP zero-based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open LSP range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location pairs a document with a range.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Diagnostic is one published problem.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Code     int    `json:"code"`
	Source   string `json:"source"`
	Message  string `json:"message"`
}

// PublishDiagnosticsParams is textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// TextDocumentIdentifier names a document.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem is a full document payload.
type TextDocumentItem struct {
	URI     string `json:"uri"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

// DidOpenParams is textDocument/didOpen.
type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// ContentChange carries one change event; the server requests full sync, so
// Text is the whole document.
type ContentChange struct {
	Text string `json:"text"`
}

// DidChangeParams is textDocument/didChange.
type DidChangeParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
	Changes      []ContentChange  `json:"contentChanges"`
}

// DidCloseParams is textDocument/didClose.
type DidCloseParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// WatchedFileEvent is one filesystem change from the watcher.
type WatchedFileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"` // 1 created, 2 changed, 3 deleted
}

// DidChangeWatchedFilesParams is workspace/didChangeWatchedFiles.
type DidChangeWatchedFilesParams struct {
	Changes []WatchedFileEvent `json:"changes"`
}

// PositionParams is the shared shape of position-addressed queries.
type PositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// ReferenceParams is textDocument/references.
type ReferenceParams struct {
	PositionParams
	Context struct {
		IncludeDeclaration bool `json:"includeDeclaration"`
	} `json:"context"`
}

// CancelParams is $/cancelRequest.
type CancelParams struct {
	ID json.Number `json:"id"`
}

// InitializeParams is the subset of initialize the server reads.
type InitializeParams struct {
	RootURI      string `json:"rootUri"`
	RootPath     string `json:"rootPath"`
	Capabilities struct {
		TextDocument struct {
			PublishDiagnostics struct {
				RelatedInformation bool `json:"relatedInformation"`
			} `json:"publishDiagnostics"`
		} `json:"textDocument"`
	} `json:"capabilities"`
}

// InitializeResult advertises server capabilities.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities is the advertised capability set.
type ServerCapabilities struct {
	TextDocumentSync        int          `json:"textDocumentSync"` // 1 = full
	HoverProvider           bool         `json:"hoverProvider"`
	DefinitionProvider      bool         `json:"definitionProvider"`
	ReferencesProvider      bool         `json:"referencesProvider"`
	DocumentSymbolProvider  bool         `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider bool         `json:"workspaceSymbolProvider"`
	CodeActionProvider      bool         `json:"codeActionProvider"`
	CompletionProvider      *Completions `json:"completionProvider,omitempty"`
	SignatureHelpProvider   *SigHelp     `json:"signatureHelpProvider,omitempty"`
}

// Completions configures completion triggers.
type Completions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

// SigHelp configures signature-help triggers.
type SigHelp struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

// Hover is the textDocument/hover result.
type Hover struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// MarkupContent is markdown hover content.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// CompletionItem is one completion entry.
type CompletionItem struct {
	Label  string `json:"label"`
	Kind   int    `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// SignatureInformation describes one callable for signature help.
type SignatureInformation struct {
	Label      string           `json:"label"`
	Parameters []ParameterLabel `json:"parameters,omitempty"`
}

// ParameterLabel names one parameter.
type ParameterLabel struct {
	Label string `json:"label"`
}

// SignatureHelp is the textDocument/signatureHelp result.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature int                    `json:"activeSignature"`
	ActiveParameter int                    `json:"activeParameter"`
}

// DocumentSymbol is a hierarchical symbol entry.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is a flat workspace symbol entry.
type SymbolInformation struct {
	Name     string   `json:"name"`
	Kind     int      `json:"kind"`
	Location Location `json:"location"`
}

// LSP SymbolKind values the server uses.
const (
	SymbolKindClass  = 5
	SymbolKindMethod = 6
	SymbolKindModule = 2
)

// WorkspaceSymbolParams is workspace/symbol.
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// ShowMessageParams is window/showMessage.
type ShowMessageParams struct {
	Type    int    `json:"type"` // 1 error, 2 warning, 3 info
	Message string `json:"message"`
}

// ProgressParams is $/progress with a begin/end payload.
type ProgressParams struct {
	Token string        `json:"token"`
	Value ProgressValue `json:"value"`
}

// ProgressValue is the begin/end report body.
type ProgressValue struct {
	Kind  string `json:"kind"` // "begin" | "end"
	Title string `json:"title,omitempty"`
}
