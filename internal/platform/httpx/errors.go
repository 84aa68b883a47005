package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for lookup endpoints.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
)

// RespondError maps lookup errors to failure envelopes. Unknown errors never leak their text.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadRequest):
		Fail(w, http.StatusBadRequest, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
