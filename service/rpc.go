package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// rpcRequest/rpcResponse mirror the JSON-RPC 2.0 envelope the teacher's mcp
// package uses for its stdio transport (mcp.JSONRPCRequest/JSONRPCResponse),
// reused here for the plugin sandbox's registration protocol: a sandboxed
// plugin process writes one rpcRequest per line on stdout to describe the
// services it wants to register, and reads one rpcResponse per line on
// stdin acknowledging each.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

// RegisterServiceParams is the params payload for the "register_service"
// method a plugin's sandboxed process sends to declare a service it wants
// the host to create a privilege-gated, group-scoped On/OnMessage binding
// for (the RPCRegister protocol, spec §4.7).
type RegisterServiceParams struct {
	ServiceName string `json:"service_name"`
	// MessageFilter, if non-empty, restricts registration to message events
	// whose plain text contains this substring. Empty matches every event
	// the plugin's declared privilege allows.
	MessageFilter string `json:"message_filter,omitempty"`
	Required      int    `json:"required_priv"`
}

// rpcCodec reads line-delimited JSON-RPC requests from r and writes
// line-delimited responses to w, grounded on the teacher's mcp stdio
// transport shape but specialized to the plugin-registration direction
// (the sandboxed process is the requester, the host is the responder).
type rpcCodec struct {
	in  *bufio.Scanner
	out io.Writer
}

func newRPCCodec(r io.Reader, w io.Writer) *rpcCodec {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &rpcCodec{in: s, out: w}
}

// next blocks for the next request line. Returns io.EOF when the
// underlying reader closes (the sandboxed process exited or finished
// registering).
func (c *rpcCodec) next() (*rpcRequest, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var req rpcRequest
	if err := json.Unmarshal(c.in.Bytes(), &req); err != nil {
		return nil, fmt.Errorf("service: malformed rpc request: %w", err)
	}
	return &req, nil
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("service: missing rpc params")
	}
	return json.Unmarshal(raw, v)
}

func (c *rpcCodec) reply(id int64, result any, rpcErr *rpcError) error {
	resp := rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		resp.Result = data
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = c.out.Write(data)
	return err
}
