package sdyn

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrSessionExpired is returned when the backend keeps rejecting the
	// session's credentials and a refresh could not fix it.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoRefresh is returned by token sources that hold no refresh token.
	ErrNoRefresh = errors.New("token refresh not supported")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsValidation reports whether the backend rejected the submitted payload.
func IsValidation(err error) bool {
	return IsStatus(err, http.StatusBadRequest) || IsStatus(err, http.StatusUnprocessableEntity)
}

// Message returns the backend's explanation for err, if it carried one.
func Message(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

func errorFromResponse(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &StatusError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(b) > 0 {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &payload) == nil {
			se.Message = payload.Message
			if se.Message == "" {
				se.Message = payload.Error
			}
		} else if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			se.Message = strings.TrimSpace(string(b))
		}
	}
	return se
}

// RawBody receives an undecoded response, e.g. a report export.
type RawBody struct {
	ContentType string
	Data        []byte
}

func decodeResponse(resp *http.Response, output interface{}) error {
	if raw, ok := output.(*RawBody); ok {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		raw.ContentType = resp.Header.Get("Content-Type")
		raw.Data = b
		return nil
	}
	return decodeResponseAsJSON(resp, resp.Body, output)
}

func decodeResponseAsJSON(resp *http.Response, body io.Reader, output interface{}) error {
	if output == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return errors.Errorf("unexpected content type %q", ct)
	}
	if err := json.NewDecoder(body).Decode(output); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}
