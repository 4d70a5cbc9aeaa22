package callclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skillswap/internal/turnserver"
	"skillswap/pkg/types"
)

// APIClient talks to the meeting endpoints on behalf of one user
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewAPIClient returns a client with a bounded request timeout
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// RevealRoom asks for the room of one class; fails outside the join window
func (c *APIClient) RevealRoom(ctx context.Context, meetingID string, index int) (*types.RoomReveal, error) {
	var reveal types.RoomReveal
	path := fmt.Sprintf("/api/meetings/%s/room/%d", url.PathEscape(meetingID), index)
	if err := c.do(ctx, http.MethodGet, path, nil, &reveal); err != nil {
		return nil, err
	}
	return &reveal, nil
}

// ICEServers fetches the STUN/TURN configuration for peer connections
func (c *APIClient) ICEServers(ctx context.Context) ([]turnserver.ICEServer, error) {
	var body struct {
		ICEServers []turnserver.ICEServer `json:"iceServers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/rtc/ice-servers", nil, &body); err != nil {
		return nil, err
	}
	return body.ICEServers, nil
}

// GetMeeting reads a meeting the caller participates in
func (c *APIClient) GetMeeting(ctx context.Context, meetingID string) (*types.Meeting, error) {
	var meeting types.Meeting
	if err := c.do(ctx, http.MethodGet, "/api/meetings/"+url.PathEscape(meetingID), nil, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// ReportCompletion marks a class completed with the observed call times.
// Both participants report; the second one is answered with a conflict, which
// is resolved against the stored slot: a completed slot is returned together
// with ErrAlreadyCompleted, a cancelled one yields ErrClassCancelled.
func (c *APIClient) ReportCompletion(ctx context.Context, meetingID string, index int, report types.CompletionReport) (*types.ClassSlot, error) {
	var slot types.ClassSlot
	path := fmt.Sprintf("/api/meetings/%s/classes/%d/complete", url.PathEscape(meetingID), index)
	err := c.do(ctx, http.MethodPut, path, report, &slot)
	if err == nil {
		return &slot, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		return nil, err
	}

	meeting, lookupErr := c.GetMeeting(ctx, meetingID)
	if lookupErr != nil || index < 0 || index >= len(meeting.Classes) {
		return nil, err
	}
	stored := meeting.Classes[index]
	switch stored.Status {
	case types.SlotStatusCompleted:
		return &stored, ErrAlreadyCompleted
	case types.SlotStatusCancelled:
		return nil, ErrClassCancelled
	default:
		return nil, err
	}
}

// RelayURL derives the socket address from the API base URL
func (c *APIClient) RelayURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
