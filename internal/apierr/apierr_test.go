package apierr

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, 400, KindBadRequest.HTTPStatus())
	assert.Equal(t, 401, KindUnauthorized.HTTPStatus())
	assert.Equal(t, 403, KindForbidden.HTTPStatus())
	assert.Equal(t, 403, KindConflict.HTTPStatus())
	assert.Equal(t, 404, KindNotFound.HTTPStatus())
	assert.Equal(t, 410, KindGone.HTTPStatus())
	assert.Equal(t, 429, KindRateLimited.HTTPStatus())
	assert.Equal(t, 500, KindInternal.HTTPStatus())
}

func TestWriteHTTPRendersWireShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, New(KindForbidden, TagConflictingAuth, "bearer and refresh cookie both present"))

	assert.Equal(t, 403, rec.Code)

	var body wireError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TagConflictingAuth, body.Error)
	assert.Equal(t, "bearer and refresh cookie both present", body.Message)
}

func TestWriteHTTPMasksUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, errors.New("pq: connection refused"))

	assert.Equal(t, 500, rec.Code)

	var body wireError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TagInternal, body.Error)
	assert.NotContains(t, body.Message, "pq:")
}

func TestWrapPreservesCauseForLoggingOnly(t *testing.T) {
	cause := errors.New("underlying driver failure")
	err := Wrap(KindInternal, TagInternal, "failed to persist", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "underlying driver failure")
}
