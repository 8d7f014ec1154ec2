package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ecairns22/seqkernel/internal/kernel"
)

// Message is one line of output from the JSON-lines host.
type Message struct {
	MsgID    string `json:"msg_id"`
	ParentID string `json:"parent_id,omitempty"`
	Channel  string `json:"channel"`
	MsgType  string `json:"msg_type"`
	Content  any    `json:"content"`
}

// Request is one line of input to the JSON-lines host.
type Request struct {
	MsgID   string          `json:"msg_id"`
	MsgType string          `json:"msg_type"`
	Content json.RawMessage `json:"content,omitempty"`
}

type historyRequest struct {
	Session string `json:"session"`
	N       int    `json:"n"`
}

type statusContent struct {
	ExecutionState string `json:"execution_state"`
}

type errorReply struct {
	Status         string   `json:"status"`
	ExecutionCount int      `json:"execution_count,omitempty"`
	EName          string   `json:"ename"`
	EValue         string   `json:"evalue"`
	Traceback      []string `json:"traceback"`
}

// JSONLines serves requests read one per line and writes one JSON message
// per line. It carries the kernel's message shapes without the Jupyter wire
// protocol, so a thin bridge process can sit between it and a notebook.
type JSONLines struct {
	session *Session
	reader  HistoryReader
	in      io.Reader
	enc     *json.Encoder
	parent  string
}

// NewJSONLines creates the bridge host. reader may be nil when history is off.
func NewJSONLines(s *Session, reader HistoryReader, in io.Reader, out io.Writer) *JSONLines {
	j := &JSONLines{session: s, reader: reader, in: in, enc: json.NewEncoder(out)}
	s.send = j.emit
	return j
}

func (j *JSONLines) emit(channel, msgType string, content any) error {
	return j.enc.Encode(Message{
		MsgID:    uuid.NewString(),
		ParentID: j.parent,
		Channel:  channel,
		MsgType:  msgType,
		Content:  content,
	})
}

// Serve handles requests until a shutdown_request or the end of input.
func (j *JSONLines) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(j.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			j.parent = ""
			if err := j.emit(kernel.Shell, "error", errorReply{Status: kernel.StatusError, EName: "BadRequest", EValue: err.Error(), Traceback: []string{}}); err != nil {
				return err
			}
			continue
		}

		j.parent = req.MsgID
		done, err := j.handle(ctx, req)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

func (j *JSONLines) handle(ctx context.Context, req Request) (bool, error) {
	switch req.MsgType {
	case "execute_request":
		return false, j.execute(ctx, req)
	case "kernel_info_request":
		info, err := j.session.kernel.Info(ctx)
		if err != nil {
			return false, j.emit(kernel.Shell, "kernel_info_reply", errorReply{Status: kernel.StatusError, EName: "KernelInfoError", EValue: err.Error(), Traceback: []string{}})
		}
		return false, j.emit(kernel.Shell, "kernel_info_reply", info)
	case "history_request":
		return false, j.history(ctx, req)
	case "shutdown_request":
		return true, j.emit(kernel.Shell, "shutdown_reply", map[string]any{"status": kernel.StatusOK, "restart": false})
	default:
		return false, j.emit(kernel.Shell, "error", errorReply{
			Status:    kernel.StatusError,
			EName:     "UnknownMessageType",
			EValue:    fmt.Sprintf("unsupported msg_type %q", req.MsgType),
			Traceback: []string{},
		})
	}
}

func (j *JSONLines) execute(ctx context.Context, req Request) error {
	er := kernel.ExecuteRequest{StoreHistory: true}
	if len(req.Content) > 0 {
		if err := json.Unmarshal(req.Content, &er); err != nil {
			return j.emit(kernel.Shell, "execute_reply", errorReply{Status: kernel.StatusError, EName: "BadRequest", EValue: err.Error(), Traceback: []string{}})
		}
	}

	if err := j.emit(kernel.IOPub, "status", statusContent{ExecutionState: "busy"}); err != nil {
		return err
	}

	outcome, err := j.session.Execute(ctx, er)
	if err != nil {
		j.session.logger.Error("execute failed", "err", err)
		err = j.emit(kernel.Shell, "execute_reply", errorReply{
			Status:         kernel.StatusError,
			ExecutionCount: j.session.ExecutionCount(),
			EName:          "KernelError",
			EValue:         err.Error(),
			Traceback:      []string{},
		})
	} else {
		err = j.emit(kernel.Shell, "execute_reply", outcome.Reply)
	}
	if err != nil {
		return err
	}

	return j.emit(kernel.IOPub, "status", statusContent{ExecutionState: "idle"})
}

func (j *JSONLines) history(ctx context.Context, req Request) error {
	var hr historyRequest
	if len(req.Content) > 0 {
		if err := json.Unmarshal(req.Content, &hr); err != nil {
			return j.emit(kernel.Shell, "history_reply", errorReply{Status: kernel.StatusError, EName: "BadRequest", EValue: err.Error(), Traceback: []string{}})
		}
	}
	if hr.Session == "" {
		hr.Session = j.session.ID
	}

	entries := [][]any{}
	if j.reader != nil {
		execs, err := j.reader.ListExecutions(ctx, hr.Session, hr.N)
		if err != nil {
			return j.emit(kernel.Shell, "history_reply", errorReply{Status: kernel.StatusError, EName: "HistoryError", EValue: err.Error(), Traceback: []string{}})
		}
		// Oldest first, as the notebook expects.
		for i := len(execs) - 1; i >= 0; i-- {
			e := execs[i]
			entries = append(entries, []any{e.Session, e.ExecutionCount, e.Code})
		}
	}
	return j.emit(kernel.Shell, "history_reply", map[string]any{"status": kernel.StatusOK, "history": entries})
}
