package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/intake"
)

// JSONHandler implements IOHandler for JSON-lines communication.
// Replies are written as {"type":"response",...}; system messages as
// {"type":"system","message":...}.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

type jsonReply struct {
	Type string `json:"type"`
	intake.Response
}

type jsonSystem struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *JSONHandler) Output(_ context.Context, res intake.Response) error {
	return h.Encoder.Encode(jsonReply{Type: "response", Response: res})
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.Encoder.Encode(jsonSystem{Type: "system", Message: msg})
}

// Input accepts a JSON string, an object with a "message" key, or a raw line.
func (h *JSONHandler) Input(_ context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return s, nil
	}
	var obj struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Message != nil {
		return *obj.Message, nil
	}
	return text, nil
}
