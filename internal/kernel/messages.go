package kernel

import "encoding/json"

// Channels and message types used by the execute handler.
const (
	IOPub = "iopub"
	Shell = "shell"

	MsgStream = "stream"

	Stdout = "stdout"
	Stderr = "stderr"

	StatusOK    = "ok"
	StatusError = "error"
)

// Host is the notebook side of the kernel: it owns the execution counter
// and delivers messages to the front-end.
type Host interface {
	ExecutionCount() int
	SendResponse(channel, msgType string, content any) error
}

// ExecuteRequest is the content of an execute_request.
type ExecuteRequest struct {
	Code            string            `json:"code"`
	Silent          bool              `json:"silent"`
	StoreHistory    bool              `json:"store_history"`
	UserExpressions map[string]string `json:"user_expressions,omitempty"`
	AllowStdin      bool              `json:"allow_stdin"`
}

// StreamContent is the content of a stream message.
type StreamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ExecuteReply is the content of an execute_reply. Error replies carry only
// the status and execution count.
type ExecuteReply struct {
	Status          string
	ExecutionCount  int
	Payload         []any
	UserExpressions map[string]any
}

// OK returns a success reply with an empty payload.
func OK(count int) ExecuteReply {
	return ExecuteReply{
		Status:          StatusOK,
		ExecutionCount:  count,
		Payload:         []any{},
		UserExpressions: map[string]any{},
	}
}

// Error returns an error-status reply.
func Error(count int) ExecuteReply {
	return ExecuteReply{Status: StatusError, ExecutionCount: count}
}

func (r ExecuteReply) MarshalJSON() ([]byte, error) {
	if r.Status != StatusOK {
		return json.Marshal(struct {
			Status         string `json:"status"`
			ExecutionCount int    `json:"execution_count"`
		}{r.Status, r.ExecutionCount})
	}
	payload, exprs := r.Payload, r.UserExpressions
	if payload == nil {
		payload = []any{}
	}
	if exprs == nil {
		exprs = map[string]any{}
	}
	return json.Marshal(struct {
		Status          string         `json:"status"`
		ExecutionCount  int            `json:"execution_count"`
		Payload         []any          `json:"payload"`
		UserExpressions map[string]any `json:"user_expressions"`
	}{r.Status, r.ExecutionCount, payload, exprs})
}

// Outcome is the reply plus the captured text, which hosts keep in history
// even when the reply discards it.
type Outcome struct {
	Reply  ExecuteReply
	Stdout string
	Stderr string
}
