package rtp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/HyphaGroup/oubliette/internal/logger"
)

// Transport is the client-side contract every remote tool provider
// connection satisfies.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	SessionID() string

	Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error)
	SendInitialized(ctx context.Context) error

	ListTools(ctx context.Context, cursor string) (*ToolsListResult, error)
	CallTool(ctx context.Context, name string, arguments interface{}) (*ToolCallResult, error)
	ListResources(ctx context.Context, cursor string) (*ResourcesListResult, error)
	ReadResource(ctx context.Context, uri string) (json.RawMessage, error)
	ListPrompts(ctx context.Context, cursor string) (*PromptsListResult, error)
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (json.RawMessage, error)

	SendRequest(ctx context.Context, req JsonRpcRequest) (*JsonRpcResponse, error)
	SendNotification(ctx context.Context, method string, params interface{}) error
	Ping(ctx context.Context) error

	TransportType() string
}

// hostLimiters rate-limits outbound requests per provider host, shared
// across all StreamableHTTPTransport instances in the process.
var hostLimiters = struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}{limiters: make(map[string]*rate.Limiter)}

func limiterForHost(host string) *rate.Limiter {
	hostLimiters.mu.Lock()
	defer hostLimiters.mu.Unlock()
	l, ok := hostLimiters.limiters[host]
	if !ok {
		// 20 requests/second, burst 40 — generous enough for tool list
		// refreshes, tight enough to stop a runaway loop hammering a
		// single provider host.
		l = rate.NewLimiter(rate.Limit(20), 40)
		hostLimiters.limiters[host] = l
	}
	return l
}

// StreamableHTTPTransport implements Transport over the MCP 2025-11-25
// Streamable HTTP wire protocol: a single POST endpoint, session affinity
// via the Mcp-Session-Id response/request header, and optional SSE
// streaming for any individual response.
type StreamableHTTPTransport struct {
	client    *http.Client
	endpoint  string
	auth      AuthPolicy
	timeout   time.Duration

	mu                 sync.RWMutex
	sessionID          string
	connected          bool
	serverCapabilities *ServerCapabilities
	serverInfo         *ServerInfo

	requestID atomic.Uint64
}

// NewStreamableHTTPTransport constructs a transport against endpoint with
// the given auth policy and per-request timeout.
func NewStreamableHTTPTransport(endpoint string, auth AuthPolicy, timeout time.Duration) *StreamableHTTPTransport {
	if auth == nil {
		auth = NoAuth{}
	}
	return &StreamableHTTPTransport{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 5,
			},
		},
		endpoint: endpoint,
		auth:     auth,
		timeout:  timeout,
	}
}

func (t *StreamableHTTPTransport) nextRequestID() uint64 {
	return t.requestID.Add(1)
}

func (t *StreamableHTTPTransport) buildRequest(ctx context.Context, body interface{}) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	t.mu.RLock()
	sessionID := t.sessionID
	t.mu.RUnlock()
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}

	t.auth.Apply(req)
	return req, nil
}

func (t *StreamableHTTPTransport) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := limiterForHost(req.URL.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	return t.client.Do(req)
}

func (t *StreamableHTTPTransport) sendAndReceive(ctx context.Context, request JsonRpcRequest) (*JsonRpcResponse, error) {
	httpReq, err := t.buildRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	logger.Debug("sending rtp request: %s (id: %v)", request.Method, request.ID)

	resp, err := t.do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.mu.Lock()
		if t.sessionID == "" || t.sessionID != sid {
			logger.Info("rtp session id: %s", sid)
			t.sessionID = sid
		}
		t.mu.Unlock()
	}

	return t.handleResponse(resp, request.ID)
}

func (t *StreamableHTTPTransport) handleResponse(resp *http.Response, requestID interface{}) (*JsonRpcResponse, error) {
	contentType := resp.Header.Get("Content-Type")
	logger.Debug("rtp response status: %d, content-type: %s", resp.StatusCode, contentType)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		if strings.Contains(contentType, "text/event-stream") {
			return t.handleSSEResponse(resp.Body, requestID)
		}
		var out JsonRpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if out.Error != nil {
			return nil, out.Error
		}
		return &out, nil
	case http.StatusUnauthorized:
		return nil, ErrAuthenticationFailed
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: endpoint not found", ErrConnectionFailed)
	case http.StatusBadRequest:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: bad request: %s", ErrInvalidResponse, body)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTransportError, resp.StatusCode, body)
	}
}

// handleSSEResponse reassembles blank-line-delimited SSE frames from body
// until it finds the one carrying the JSON-RPC response matching requestID.
func (t *StreamableHTTPTransport) handleSSEResponse(body io.Reader, requestID interface{}) (*JsonRpcResponse, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	for _, frame := range ParseSSEFrames(string(data)) {
		var resp JsonRpcResponse
		if err := json.Unmarshal([]byte(frame.Data), &resp); err != nil {
			continue
		}
		if fmt.Sprint(resp.ID) == fmt.Sprint(requestID) {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("%w: no result in SSE stream", ErrInvalidResponse)
}

// ParseSSEFrames splits raw SSE text into blank-line-delimited frames,
// accumulating "event:"/"data:"/"id:" lines per the SSE spec. Frames with
// no data line are discarded.
func ParseSSEFrames(text string) []SseFrame {
	var frames []SseFrame
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var frame SseFrame
		var dataLines []string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				frame.Event = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			case strings.HasPrefix(line, "id:"):
				frame.ID = strings.TrimSpace(line[len("id:"):])
			}
		}
		if len(dataLines) == 0 {
			continue
		}
		frame.Data = strings.Join(dataLines, "\n")
		frames = append(frames, frame)
	}
	return frames
}

func (t *StreamableHTTPTransport) Connect(ctx context.Context) error {
	logger.Info("connecting to rtp server at %s", t.endpoint)

	if !t.auth.IsValid() {
		return ErrTokenExpired
	}

	result, err := t.Initialize(ctx, InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    DefaultClientCapabilities(),
		ClientInfo:      ClientInfo{Name: "oubliette", Version: "1.0"},
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.serverInfo = &result.ServerInfo
	t.serverCapabilities = &result.Capabilities
	t.mu.Unlock()

	if err := t.SendInitialized(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	logger.Info("connected to rtp server: %s (protocol: %s)", result.ServerInfo.Name, result.ProtocolVersion)
	return nil
}

func (t *StreamableHTTPTransport) Disconnect(ctx context.Context) error {
	if !t.IsConnected() {
		return nil
	}
	logger.Info("disconnecting from rtp server %s", t.endpoint)

	t.mu.Lock()
	t.sessionID = ""
	t.connected = false
	t.serverCapabilities = nil
	t.serverInfo = nil
	t.mu.Unlock()
	return nil
}

func (t *StreamableHTTPTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SessionID exposes the transport's cached Mcp-Session-Id, empty if none
// has been assigned yet.
func (t *StreamableHTTPTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *StreamableHTTPTransport) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	request := JsonRpcRequest{JsonRPC: "2.0", Method: "initialize", Params: params, ID: t.nextRequestID()}
	resp, err := t.sendAndReceive(ctx, request)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: missing result in initialize response", ErrInvalidResponse)
	}
	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if result.ProtocolVersion != ProtocolVersion {
		logger.Warn("rtp protocol version mismatch: expected %s, got %s", ProtocolVersion, result.ProtocolVersion)
	}
	return &result, nil
}

func (t *StreamableHTTPTransport) SendInitialized(ctx context.Context) error {
	return t.SendNotification(ctx, "notifications/initialized", nil)
}

func (t *StreamableHTTPTransport) ListTools(ctx context.Context, cursor string) (*ToolsListResult, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	var params interface{}
	if cursor != "" {
		params = map[string]string{"cursor": cursor}
	}
	resp, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "tools/list", Params: params, ID: t.nextRequestID()})
	if err != nil {
		return nil, err
	}
	var result ToolsListResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *StreamableHTTPTransport) CallTool(ctx context.Context, name string, arguments interface{}) (*ToolCallResult, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	params := ToolCallParams{Name: name, Arguments: arguments}
	resp, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "tools/call", Params: params, ID: t.nextRequestID()})
	if err != nil {
		return nil, err
	}
	var result ToolCallResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *StreamableHTTPTransport) ListResources(ctx context.Context, cursor string) (*ResourcesListResult, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	var params interface{}
	if cursor != "" {
		params = map[string]string{"cursor": cursor}
	}
	resp, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "resources/list", Params: params, ID: t.nextRequestID()})
	if err != nil {
		return nil, err
	}
	var result ResourcesListResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *StreamableHTTPTransport) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	resp, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "resources/read", Params: map[string]string{"uri": uri}, ID: t.nextRequestID()})
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: missing result", ErrInvalidResponse)
	}
	return resp.Result, nil
}

func (t *StreamableHTTPTransport) ListPrompts(ctx context.Context, cursor string) (*PromptsListResult, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	var params interface{}
	if cursor != "" {
		params = map[string]string{"cursor": cursor}
	}
	resp, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "prompts/list", Params: params, ID: t.nextRequestID()})
	if err != nil {
		return nil, err
	}
	var result PromptsListResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *StreamableHTTPTransport) GetPrompt(ctx context.Context, name string, arguments map[string]string) (json.RawMessage, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	params := map[string]interface{}{"name": name, "arguments": arguments}
	resp, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "prompts/get", Params: params, ID: t.nextRequestID()})
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: missing result", ErrInvalidResponse)
	}
	return resp.Result, nil
}

func (t *StreamableHTTPTransport) SendRequest(ctx context.Context, req JsonRpcRequest) (*JsonRpcResponse, error) {
	return t.sendAndReceive(ctx, req)
}

func (t *StreamableHTTPTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	notification := JsonRpcRequest{JsonRPC: "2.0", Method: method, Params: params}
	httpReq, err := t.buildRequest(ctx, notification)
	if err != nil {
		return err
	}
	resp, err := t.do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: notification failed with HTTP %d: %s", ErrTransportError, resp.StatusCode, body)
	}
}

func (t *StreamableHTTPTransport) Ping(ctx context.Context) error {
	_, err := t.sendAndReceive(ctx, JsonRpcRequest{JsonRPC: "2.0", Method: "ping", ID: t.nextRequestID()})
	return err
}

func (t *StreamableHTTPTransport) TransportType() string { return "streamable-http" }

func decodeResult(resp *JsonRpcResponse, v interface{}) error {
	if resp.Result == nil {
		return fmt.Errorf("%w: missing result", ErrInvalidResponse)
	}
	if err := json.Unmarshal(resp.Result, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return nil
}

// FormatRequestID renders a JSON-RPC id for logging/display purposes.
func FormatRequestID(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
