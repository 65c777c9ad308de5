// Package response implements the external response contract: a status code
// plus a body that is either a profile view, a success acknowledgement, or a
// list of field errors. The HTTP layer that serializes these lives in the
// embedding application.
package response

import (
	"errors"
	"net/http"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/server/validation"
)

// Response couples a status code with its body.
type Response struct {
	Status int
	Body   any
}

// Ack is the body of a bodyless success (logout, delete, probes).
type Ack struct {
	Success bool `json:"success"`
}

// OK wraps a successful body.
func OK(body any) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Acknowledge is a 200 with a plain success marker.
func Acknowledge() Response {
	return OK(Ack{Success: true})
}

// ValidationFailed is a 400 carrying the ordered field errors.
func ValidationFailed(errs []validation.FieldError) Response {
	return Response{Status: http.StatusBadRequest, Body: errs}
}

// FromError classifies a workflow error into the response contract.
// Infrastructure failures are converted generically; their detail is for the
// server log, not the caller.
func FromError(err error) Response {
	var fieldErrs validation.Errors
	switch {
	case errors.As(err, &fieldErrs):
		return ValidationFailed(fieldErrs)
	case errors.Is(err, common.ErrorUnauthorized):
		return Response{Status: http.StatusUnauthorized, Body: Ack{}}
	case errors.Is(err, common.ErrorFederation):
		return Response{Status: http.StatusConflict, Body: Ack{}}
	case errors.Is(err, common.ErrorTaken):
		return Response{Status: http.StatusLocked, Body: Ack{}}
	case errors.Is(err, common.ErrorNotFound):
		return Response{Status: http.StatusUnauthorized, Body: Ack{}}
	default:
		return Response{Status: http.StatusInternalServerError, Body: Ack{}}
	}
}
