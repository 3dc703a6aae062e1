package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"pocketpilot/internal/core"
)

// maxBodyBytes bounds the finance request body.
const maxBodyBytes = 64 << 10

// financeRequest mirrors the request document. Pointers distinguish a
// missing field from a zero value.
type financeRequest struct {
	Income   *json.Number   `json:"income"`
	Expenses *core.Expenses `json:"expenses"`
	Goal     *string        `json:"goal"`
}

// parseFinanceRequest decodes and validates r's body. It returns a
// *core.ValidationError for malformed input and *http.MaxBytesError when
// the body exceeds maxBodyBytes. Unknown fields are ignored.
func parseFinanceRequest(w http.ResponseWriter, r *http.Request) (core.FinanceState, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return core.FinanceState{}, &core.ValidationError{Message: "content type must be application/json"}
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	var req financeRequest
	if err := dec.Decode(&req); err != nil {
		return core.FinanceState{}, decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return core.FinanceState{}, maxErr
		}
		return core.FinanceState{}, &core.ValidationError{Message: "invalid JSON: unexpected data after the request object"}
	}

	switch {
	case req.Income == nil:
		return core.FinanceState{}, &core.ValidationError{Field: "income", Message: "field required"}
	case req.Expenses == nil:
		return core.FinanceState{}, &core.ValidationError{Field: "expenses", Message: "field required"}
	case req.Goal == nil:
		return core.FinanceState{}, &core.ValidationError{Field: "goal", Message: "field required"}
	}

	income, err := req.Income.Int64()
	if errors.Is(err, strconv.ErrRange) {
		return core.FinanceState{}, &core.ValidationError{Field: "income", Message: "out of range"}
	}
	if err != nil {
		return core.FinanceState{}, &core.ValidationError{Field: "income", Message: fmt.Sprintf("must be an integer, got %s", req.Income.String())}
	}

	state := core.NewFinanceState(income, *req.Expenses, *req.Goal)
	if err := state.Validate(); err != nil {
		return core.FinanceState{}, err
	}
	return state, nil
}

func decodeError(err error) error {
	var (
		maxErr  *http.MaxBytesError
		valErr  *core.ValidationError
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
	)
	switch {
	case errors.As(err, &maxErr):
		return maxErr
	case errors.As(err, &valErr):
		return valErr
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return &core.ValidationError{Message: "request body must be a JSON object"}
		}
		return &core.ValidationError{Field: typeErr.Field, Message: "invalid type " + typeErr.Value}
	case errors.As(err, &synErr):
		return &core.ValidationError{Message: fmt.Sprintf("invalid JSON at offset %d", synErr.Offset)}
	case errors.Is(err, io.EOF):
		return &core.ValidationError{Message: "request body is empty"}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &core.ValidationError{Message: "invalid JSON: unexpected end of input"}
	default:
		return &core.ValidationError{Message: "invalid JSON: " + err.Error()}
	}
}
