package ragerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_HasNoCause(t *testing.T) {
	err := New(Validation, "bad input")
	assert.Nil(t, err.Cause)
	assert.Equal(t, "VALIDATION: bad input", err.Error())
}

func TestWrap_PreservesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(PersistenceFailed, "saving file", cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf_UnclassifiedErrorDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestKindOf_ClassifiedErrorThroughWrappingLayers(t *testing.T) {
	inner := New(Forbidden, "not your file")
	outer := errors.Join(errors.New("request failed"), inner)
	assert.Equal(t, Forbidden, KindOf(outer))
}

func TestHTTPStatus_MapsEveryKind(t *testing.T) {
	cases := map[Kind]int{
		Validation:        http.StatusBadRequest,
		Forbidden:         http.StatusForbidden,
		NotFound:          http.StatusNotFound,
		ExtractionFailed:  http.StatusBadRequest,
		EmbeddingFailed:   http.StatusServiceUnavailable,
		IndexFailed:       http.StatusServiceUnavailable,
		LLMFailed:         http.StatusServiceUnavailable,
		PersistenceFailed: http.StatusInternalServerError,
		Internal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(New(kind, "x")), "kind %s", kind)
	}
}

func TestHTTPStatus_UnclassifiedErrorIsInternalServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestIs_MatchesClassifiedKind(t *testing.T) {
	err := New(NotFound, "missing")
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Forbidden))
}
