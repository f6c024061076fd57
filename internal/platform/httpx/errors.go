// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrBadRequest = errors.New("malformed request body")
	ErrValidation = errors.New("validation failed")
)

// Mapping binds a domain sentinel to a problem status and kind.
type Mapping struct {
	Err    error
	Status int
	Kind   string
}

var baseMappings = []Mapping{
	{Err: shared.ErrNotFound, Status: http.StatusNotFound, Kind: "NotFound"},
	{Err: shared.ErrConcurrentModification, Status: http.StatusConflict, Kind: "ConcurrentModification"},
	{Err: shared.ErrReferentialIntegrity, Status: http.StatusUnprocessableEntity, Kind: "ReferentialIntegrityFailure"},
	{Err: shared.ErrIdempotencyConflict, Status: http.StatusConflict, Kind: "DuplicateRequest"},
	{Err: shared.ErrActorRequired, Status: http.StatusUnauthorized, Kind: "ActorRequired"},
	{Err: ErrBadRequest, Status: http.StatusBadRequest, Kind: "BadRequest"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Kind: "Validation"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. Package
// specific mappings are consulted before the shared ones.
func RespondError(w http.ResponseWriter, err error, mappings ...Mapping) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		ProblemWithDetails(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error(), fields)
		return
	}
	for _, set := range [][]Mapping{mappings, baseMappings} {
		for _, m := range set {
			if errors.Is(err, m.Err) {
				ProblemWithDetails(w, m.Status, m.Kind, http.StatusText(m.Status), err.Error(), shared.DetailsOf(err))
				return
			}
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
