package careerapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

// errorBody is the JSON error envelope the API returns on non-2xx statuses.
type errorBody struct {
	Error struct {
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+path, body)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error()}
	}

	return c.do(req, target)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+path, nil)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error()}
	}

	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	c.setHeaders(req)

	c.logger.Debug("make request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("request_id", req.Header.Get("X-Request-Id")),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error()}
	}

	if err := checkStatus(resp, data); err != nil {
		return err
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return &APIError{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode response: %s", err),
		}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-Id", uuid.NewString())
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(reader)
}

// checkStatus maps a non-2xx response onto the error taxonomy. The server
// message, when present, is preserved verbatim.
func checkStatus(resp *http.Response, data []byte) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	message := serverMessage(data)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if message == "" {
			message = "credential rejected"
		}
		return &APIError{Kind: KindAuth, StatusCode: resp.StatusCode, Message: message}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if message == "" {
			message = fmt.Sprintf("bad status: %s", resp.Status)
		}
		return &APIError{Kind: KindValidation, StatusCode: resp.StatusCode, Message: message}
	default:
		if message == "" {
			message = fmt.Sprintf("bad status: %s", resp.Status)
		}
		return &APIError{Kind: KindTransport, StatusCode: resp.StatusCode, Message: message}
	}
}

func serverMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	if msg := strings.TrimSpace(body.Error.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(body.Message)
}
