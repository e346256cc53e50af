package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxIdleConns     = 10
	timeoutInSeconds = 60
	clientAgent      = "sohma-cli"
	contentTypeJSON  = "application/json"
	maxErrorBody     = 1 << 16
)

var (
	reqTransport = &http.Transport{
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       timeoutInSeconds * time.Second,
		DisableCompression:    true,
		DisableKeepAlives:     false,
		ResponseHeaderTimeout: time.Duration(timeoutInSeconds) * time.Second,
	}

	// ErrUnexpectedStatus is matched by every *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// StatusError is returned when the server answers with a non-2xx status.
// Detail carries the server's "detail" message when it sent one.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s: %d %s: %s", ErrUnexpectedStatus, e.Code, http.StatusText(e.Code), e.Detail)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

func GetHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   time.Duration(timeoutInSeconds) * time.Second,
		Transport: reqTransport,
	}
}

// GetJSON retrieves the HTTP content and decodes it into the passed target.
func GetJSON[T any](ctx context.Context, url string, target *T) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	return doJSON(req, target)
}

// PostJSON sends body as JSON and decodes the response into target.
func PostJSON[T any](ctx context.Context, url string, body io.Reader, target *T) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("error creating HTTP Post request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	return doJSON(req, target)
}

func doJSON[T any](req *http.Request, target *T) error {
	req.Header.Set("User-Agent", clientAgent)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := GetHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("error sending request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		PrintHTTPResponse(resp)
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(b) == 0 {
		return se
	}

	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			se.Detail = s
		} else {
			se.Detail = fmt.Sprint(body.Detail)
		}
		return se
	}

	se.Detail = strings.TrimSpace(string(b))
	return se
}
