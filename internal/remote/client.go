package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"github.com/at-ishikawa/labloom/internal/note"
)

const (
	DefaultBaseURL = "http://localhost:8888/.netlify/functions"
	DefaultTimeout = 10 * time.Second
)

// Client implements Store over the notes HTTP API.
type Client struct {
	httpClient       *resty.Client
	maxRetryAttempts uint
	retryDelay       time.Duration
}

// NewClient creates a client for the API at baseURL. Failed reads are
// retried up to retryAttempts times; writes are retried only when the
// connection could not be established.
func NewClient(baseURL string, timeout time.Duration, retryAttempts uint) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	return &Client{
		httpClient:       client,
		maxRetryAttempts: retryAttempts,
		retryDelay:       200 * time.Millisecond,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type updateRequest struct {
	ID string `json:"id"`
	note.Input
}

type deleteResponse struct {
	ID string `json:"id"`
}

// ListNotes implements Store. Entries the server returns in an unusable
// shape are dropped.
func (client *Client) ListNotes(ctx context.Context, filter note.Filter) ([]note.Note, error) {
	query := make(map[string]string)
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["search"] = search
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query["category"] = category
	}
	if len(filter.Tags) > 0 {
		query["tags"] = strings.Join(filter.Tags, ",")
	}

	var raw []note.RawNote
	if err := client.do(ctx, http.MethodGet, "/notes-read", query, nil, &raw); err != nil {
		return nil, err
	}
	notes := make([]note.Note, 0, len(raw))
	for _, entry := range raw {
		n, err := note.NormalizeNote(entry)
		if err != nil {
			logrus.WithError(err).WithField("id", entry.ID).Debug("dropping remote note")
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// CreateNote implements Store.
func (client *Client) CreateNote(ctx context.Context, input note.Input) (note.Note, error) {
	var raw note.RawNote
	if err := client.do(ctx, http.MethodPost, "/notes-create", nil, requestInput(input), &raw); err != nil {
		return note.Note{}, err
	}
	return normalizeResponse(raw)
}

// UpdateNote implements Store.
func (client *Client) UpdateNote(ctx context.Context, id string, input note.Input) (note.Note, error) {
	var raw note.RawNote
	body := updateRequest{ID: id, Input: requestInput(input)}
	if err := client.do(ctx, http.MethodPut, "/notes-update", nil, body, &raw); err != nil {
		return note.Note{}, err
	}
	return normalizeResponse(raw)
}

// DeleteNote implements Store and returns the deleted id.
func (client *Client) DeleteNote(ctx context.Context, id string) (string, error) {
	var response deleteResponse
	if err := client.do(ctx, http.MethodDelete, "/notes-delete", map[string]string{"id": id}, nil, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		response.ID = id
	}
	return response.ID, nil
}

func (client *Client) do(ctx context.Context, method, path string, query map[string]string, body, result any) error {
	retryIf := isConnectionFailure
	if method == http.MethodGet {
		retryIf = IsTransport
	}

	return retry.Do(
		func() error {
			return client.send(ctx, method, path, query, body, result)
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.Delay(client.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
		retry.OnRetry(func(n uint, err error) {
			logrus.WithError(err).WithFields(logrus.Fields{
				"method":  method,
				"path":    path,
				"attempt": n + 1,
			}).Info("retrying remote request")
		}),
	)
}

func (client *Client) send(ctx context.Context, method, path string, query map[string]string, body, result any) error {
	request := client.httpClient.R().SetContext(ctx)
	if len(query) > 0 {
		request.SetQueryParams(query)
	}
	if body != nil {
		request.SetBody(body)
	}

	response, err := request.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: httpClient.%s(%s) > %w", ErrTransport, method, path, err)
	}

	content := response.String()
	switch status := response.StatusCode(); {
	case status == http.StatusNotFound && isNotFoundBody(content):
		return fmt.Errorf("%w: %s", ErrNotFound, errorMessage(content))
	case status == http.StatusBadRequest:
		return &ValidationError{Message: errorMessage(content)}
	case status < 200 || status >= 300:
		return fmt.Errorf("%w: response error %d: %s", ErrTransport, status, content)
	}

	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("%w: json.Unmarshal(%s) > %w", ErrTransport, path, err)
	}
	return nil
}

// isConnectionFailure reports whether the request never reached the server.
func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// isNotFoundBody reports whether a 404 came from the notes API rather than
// from a missing route.
func isNotFoundBody(content string) bool {
	var response errorResponse
	return json.Unmarshal([]byte(content), &response) == nil && response.Error == "NOT_FOUND"
}

func errorMessage(content string) string {
	var response errorResponse
	if err := json.Unmarshal([]byte(content), &response); err == nil && response.Message != "" {
		return response.Message
	}
	return strings.TrimSpace(content)
}

func normalizeResponse(raw note.RawNote) (note.Note, error) {
	n, err := note.NormalizeNote(raw)
	if err != nil {
		return note.Note{}, fmt.Errorf("%w: note.NormalizeNote() > %w", ErrTransport, err)
	}
	return n, nil
}

func requestInput(input note.Input) note.Input {
	if input.Tags == nil {
		input.Tags = []note.Tag{}
	}
	if input.Attachments == nil {
		input.Attachments = []note.Attachment{}
	}
	return input
}
