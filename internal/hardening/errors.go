package hardening

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/mcpfleet/orchestrator/internal/jsonrpc"
)

// correlationAlphabet is used to generate the 9-character random suffix of
// a correlation id, matching the source's err_<unix-ms>_<9-char-random>
// format.
const correlationAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	out := make([]byte, n)
	for i, c := range b {
		out[i] = correlationAlphabet[int(c)%len(correlationAlphabet)]
	}
	return string(out)
}

// NewCorrelationID produces an err_<unix-ms>_<9-char-random> identifier.
func NewCorrelationID(now time.Time) string {
	return fmt.Sprintf("err_%d_%s", now.UnixMilli(), randomSuffix(9))
}

// NewRequestID produces a req_<unix-ms>_<9-char-random> identifier, used by
// the router for outbound request ids (§4.3).
func NewRequestID(now time.Time) string {
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), randomSuffix(9))
}

// OrchestratorError is the structured error every failure is wrapped into
// before it leaves the orchestrator, per §4.2.
type OrchestratorError struct {
	Code          int
	Message       string
	OriginalError string
	Context       string
	CorrelationID string
	Timestamp     time.Time
}

func (e *OrchestratorError) Error() string { return e.Message }

// Data renders the error's jsonrpc.ErrorData payload.
func (e *OrchestratorError) Data() jsonrpc.ErrorData {
	return jsonrpc.ErrorData{
		OriginalError: e.OriginalError,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Context:       e.Context,
		CorrelationID: e.CorrelationID,
	}
}

// Wrap produces an OrchestratorError for err, tagging it with a fresh
// correlation id and the given JSON-RPC code/context.
func Wrap(err error, code int, context string, now time.Time) *OrchestratorError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &OrchestratorError{
		Code:          code,
		Message:       msg,
		OriginalError: msg,
		Context:       context,
		CorrelationID: NewCorrelationID(now),
		Timestamp:     now,
	}
}

// Category is one of the error-stat buckets from §4.2. Used only for
// aggregate statistics, never for control flow.
type Category string

const (
	CategoryTimeout    Category = "timeout"
	CategoryConnection Category = "connection"
	CategoryParse      Category = "parse"
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryUnknown    Category = "unknown"
)

// categorySubstrings is checked in order; the first substring match wins.
var categorySubstrings = []struct {
	substr string
	cat    Category
}{
	{"timeout", CategoryTimeout},
	{"timed out", CategoryTimeout},
	{"connection", CategoryConnection},
	{"connect:", CategoryConnection},
	{"refused", CategoryConnection},
	{"parse", CategoryParse},
	{"unmarshal", CategoryParse},
	{"validation", CategoryValidation},
	{"invalid", CategoryValidation},
	{"not_found", CategoryNotFound},
	{"not found", CategoryNotFound},
}

// Categorize classifies an error message by case-insensitive substring
// match, per §4.2. Used only for error-stat aggregation.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, c := range categorySubstrings {
		if strings.Contains(msg, c.substr) {
			return c.cat
		}
	}
	return CategoryUnknown
}
