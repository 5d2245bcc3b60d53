package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPStatusSetter is implemented by encoders that want to override the
// default 200 status code.
type HTTPStatusSetter interface {
	HTTPStatus() int
}

// Respond sends a response to the client.
func Respond(ctx context.Context, w http.ResponseWriter, resp Encoder) error {
	if _, ok := resp.(NoResponse); ok {
		return nil
	}

	// If the context has been canceled, it means the client is no longer
	// waiting for a response.
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("client disconnected, do not send response")
		}
	}

	statusCode := StatusCode(resp)
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	data, contentType, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("respond: encode: %w", err)
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("respond: write: %w", err)
	}

	return nil
}

// StatusCode returns the HTTP status Respond writes for resp.
func StatusCode(resp Encoder) int {
	switch v := resp.(type) {
	case HTTPStatusSetter:
		return v.HTTPStatus()
	case error:
		return http.StatusInternalServerError
	case nil:
		return http.StatusNoContent
	}
	return http.StatusOK
}
