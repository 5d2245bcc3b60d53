package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_EncodeAndStatus(t *testing.T) {
	err := New(InvalidArgument, errors.New("bad filter"))

	data, contentType, encErr := err.Encode()
	require.NoError(t, encErr)
	assert.Equal(t, "application/json", contentType)
	assert.JSONEq(t, `{"code":"invalid_argument","message":"bad filter"}`, string(data))
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.FileName, "errs_test.go")
}

func TestError_Unwrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Newf(ResourceExhausted, "slow down"))

	require.True(t, IsError(wrapped))
	got := GetError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, http.StatusTooManyRequests, got.HTTPStatus())
	assert.Nil(t, GetError(errors.New("plain")))
}

func TestErrCode_TextRoundTrip(t *testing.T) {
	var code ErrCode
	require.NoError(t, json.Unmarshal([]byte(`"not_found"`), &code))
	assert.True(t, code.Equal(NotFound))

	assert.Error(t, code.UnmarshalText([]byte("nope")))
}

func TestCheck(t *testing.T) {
	type req struct {
		Operation string   `json:"operation" validate:"required,oneof=ignore assign"`
		Keys      []string `json:"defect_keys" validate:"max=2"`
	}

	assert.NoError(t, Check(req{Operation: "ignore"}))

	err := Check(req{Operation: "delete", Keys: []string{"a", "b", "c"}})
	require.Error(t, err)

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Len(t, fields, 2)
	assert.Equal(t, "operation", fields[0].Field)
	assert.Equal(t, "defect_keys", fields[1].Field)
}
