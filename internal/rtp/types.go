package rtp

import "encoding/json"

// ProtocolVersion is exchanged during the initialize handshake.
const ProtocolVersion = "2025-11-25"

// JsonRpcRequest is an outgoing JSON-RPC 2.0 request or notification. A
// notification omits ID.
type JsonRpcRequest struct {
	JsonRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

// JsonRpcResponse is an incoming JSON-RPC 2.0 response. Exactly one of
// Result/Error is populated for a non-notification response.
type JsonRpcResponse struct {
	JsonRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JsonRpcError   `json:"error,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// ClientCapabilities is advertised verbatim during initialize.
type ClientCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Sampling  *SamplingCapability  `json:"sampling,omitempty"`
	Roots     *RootsCapability     `json:"roots,omitempty"`
}

type ToolsCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
}

type ResourcesCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
	Subscribe   *bool `json:"subscribe,omitempty"`
}

type PromptsCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
}

type SamplingCapability struct{}

type RootsCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultClientCapabilities is the capability set §4.1 requires every
// transport to advertise during connect().
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		Tools:     &ToolsCapability{ListChanged: boolPtr(true)},
		Resources: &ResourcesCapability{ListChanged: boolPtr(true), Subscribe: boolPtr(true)},
		Prompts:   &PromptsCapability{ListChanged: boolPtr(true)},
		Sampling:  &SamplingCapability{},
		Roots:     &RootsCapability{ListChanged: boolPtr(true)},
	}
}

// ServerCapabilities is cached from the initialize response.
type ServerCapabilities struct {
	Tools     *ServerToolsCapability     `json:"tools,omitempty"`
	Resources *ServerResourcesCapability `json:"resources,omitempty"`
	Prompts   *ServerPromptsCapability   `json:"prompts,omitempty"`
	Logging   *LoggingCapability         `json:"logging,omitempty"`
}

type ServerToolsCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
}

type ServerResourcesCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
	Subscribe   *bool `json:"subscribe,omitempty"`
}

type ServerPromptsCapability struct {
	ListChanged *bool `json:"listChanged,omitempty"`
}

type LoggingCapability struct{}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type InitializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	Capabilities    ClientCapabilities  `json:"capabilities"`
	ClientInfo      ClientInfo          `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string              `json:"protocolVersion"`
	Capabilities    ServerCapabilities  `json:"capabilities"`
	ServerInfo      ServerInfo          `json:"serverInfo"`
	Instructions    string              `json:"instructions,omitempty"`
}

// Tool, Resource and Prompt records as advertised by a remote provider.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type ToolsListResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type ToolCallParams struct {
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments,omitempty"`
}

// ToolResultContent is a tagged union over the "type" discriminant; exactly
// one of the kind-specific fields is populated per Kind.
type ToolResultContent struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`
	MimeType string            `json:"mimeType,omitempty"`
	Resource *EmbeddedResource `json:"resource,omitempty"`
}

type EmbeddedResource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

type ToolCallResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type ResourcesListResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type PromptsListResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// SseFrame is one reassembled server-sent-event frame. Frames without Data
// are discarded by the parser (see ParseSSEFrames).
type SseFrame struct {
	Event string
	Data  string
	ID    string
}
