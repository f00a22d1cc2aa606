package authapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func encodeJSON(v any) (io.Reader, error) {
	if v == nil {
		return http.NoBody, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

var errBodyTooLarge = errors.New("response body too large")

// readBody returns at most maxBytes of the body. On errBodyTooLarge the
// truncated prefix is still returned.
func readBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return b, err
	}
	if int64(len(b)) > maxBytes {
		return b[:maxBytes], errBodyTooLarge
	}
	return b, nil
}

func decodeSuccess(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrDecode)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func statusErrorFrom(status int, body []byte) *StatusError {
	se := &StatusError{Status: status}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return se
	}
	if er.Error != nil {
		se.Code = strings.TrimSpace(er.Error.Code)
		se.Message = strings.TrimSpace(er.Error.Message)
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(er.Message)
	}
	return se
}
