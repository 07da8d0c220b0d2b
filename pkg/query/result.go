package query

import (
	"encoding/json"
	"strings"
)

// Error codes carried in error results.
const (
	CodeBadRequest   = 400
	CodeNotFound     = 404
	CodeNotValid     = 405
	CodeTimeout      = 408
	CodeInternal     = 500
	CodeDisconnected = 503
)

type errorDoc struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrorResult formats an error result document.
func ErrorResult(code int, message string) string {
	var doc errorDoc
	doc.Error.Code = code
	doc.Error.Message = message
	out, _ := json.Marshal(doc)
	return string(out)
}

// ParseError reports the code and message of an error result.
func ParseError(result string) (code int, message string, ok bool) {
	if !strings.HasPrefix(strings.TrimSpace(result), `{"error"`) {
		return 0, "", false
	}
	var doc errorDoc
	if err := json.Unmarshal([]byte(result), &doc); err != nil || doc.Error.Code == 0 {
		return 0, "", false
	}
	return doc.Error.Code, doc.Error.Message, true
}

// IsError reports whether result is an error document.
func IsError(result string) bool {
	_, _, ok := ParseError(result)
	return ok
}

// JSON marshals v as a result document.
func JSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return ErrorResult(CodeInternal, err.Error())
	}
	return string(out)
}

// TimeState is the answer to a current_time query, from a broker, core or
// federate.
type TimeState struct {
	Name      string  `json:"name"`
	Granted   float64 `json:"granted_time"`
	Requested float64 `json:"requested_time"`
}

// Quote formats a plain string result.
func Quote(s string) string {
	return JSON(s)
}

// Buffer collects the answer of a query callback.
type Buffer struct {
	data   string
	filled bool
}

// Fill stores the answer.
func (b *Buffer) Fill(s string) {
	b.data = s
	b.filled = true
}

// String returns the stored answer.
func (b *Buffer) String() string {
	return b.data
}

// Filled reports whether Fill was called.
func (b *Buffer) Filled() bool {
	return b.filled
}

// Callback answers federate-specific queries. It leaves buf unfilled for
// queries it does not handle.
type Callback func(query string, buf *Buffer)

// Split separates a compound query such as "global_value/name" into its
// command and argument.
func Split(q string) (command, arg string) {
	command, arg, _ = strings.Cut(strings.TrimSpace(q), "/")
	return command, arg
}
