package yotta

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxPlainDetail caps how many runes of a text/plain error body are shown.
const maxPlainDetail = 200

// ErrMalformedResponse is returned when a 2xx body cannot be used.
var ErrMalformedResponse = errors.New("malformed response from yotta api")

// APIError represents a non-success answer from the backend.
type APIError struct {
	StatusCode int
	Status     string
	Detail     string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("yotta api error: %s", e.Detail)
	}
	return fmt.Sprintf("yotta api returned %d: %s", e.StatusCode, e.Detail)
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// newAPIError builds an APIError, preferring a server-supplied detail over the status text.
func newAPIError(resp *http.Response, body []byte) *APIError {
	statusText := resp.Status
	if statusText == "" {
		statusText = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     statusText,
		Detail:     extractDetail(body, resp.Header.Get("Content-Type"), statusText),
	}
}

// extractDetail reads {"detail": ...} the way FastAPI-style backends return it.
// detail may be a string or a list of {"msg": ...} validation items.
// Bodies that are not JSON fall back to the status text. A short text/plain body
// without markup is the only exception.
func extractDetail(body []byte, contentType, statusText string) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return statusText
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return plainDetail(trimmed, contentType, statusText)
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return statusText
}

// plainDetail keeps a short plain-text body, anything else (HTML pages etc.) becomes statusText.
func plainDetail(text, contentType, statusText string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "text/plain" {
		return statusText
	}
	if strings.ContainsAny(text, "<>") || !utf8.ValidString(text) {
		return statusText
	}
	if utf8.RuneCountInString(text) > maxPlainDetail {
		runes := []rune(text)
		return string(runes[:maxPlainDetail]) + "…"
	}
	return text
}
