package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"jobtalk/pkg/interfaces"
	"jobtalk/pkg/types"
)

// Client is the request/response side of the engine: room bulk loads,
// history pages, seen durability, room origination and smart replies.
// It implements interfaces.APIClient.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates an API client. The credential is an opaque bearer token
// presented on every request and never inspected.
func NewClient(baseURL, credential string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		credential: credential,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// RoomsForSession returns the participant's room summaries.
func (c *Client) RoomsForSession(ctx context.Context) ([]*types.Room, error) {
	var rooms []*types.Room
	if err := c.get(ctx, "/rooms-for-session", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Messages fetches one ordered history page; page 1 is the most recent.
func (c *Client) Messages(ctx context.Context, roomID string, page, pageSize int) ([]*types.Message, error) {
	if !types.IsValidRoomID(roomID) {
		return nil, types.ErrInvalidRoomID
	}

	q := url.Values{}
	q.Set("room", roomID)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var reply types.MessagePage
	if err := c.get(ctx, "/messages", q, &reply); err != nil {
		return nil, err
	}
	return reply.Messages, nil
}

// MarkSeen durably records the seen point so a reload clears badge state.
func (c *Client) MarkSeen(ctx context.Context, roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return types.ErrInvalidRoomID
	}
	body := map[string]string{"room": roomID}
	return c.post(ctx, "/mark-seen", body, nil)
}

// OriginateRoom creates or fetches the canonical room for a
// (job, counterparty) pair. The server guarantees idempotence; calling twice
// resolves to the same room.
func (c *Client) OriginateRoom(ctx context.Context, jobID, counterpartyID string) (*types.Room, error) {
	body := map[string]string{"job": jobID, "counterparty": counterpartyID}
	var room types.Room
	if err := c.post(ctx, "/originate-room", body, &room); err != nil {
		return nil, err
	}
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return &room, nil
}

// smartReplyResponse carries either suggestions or the policy sentinel.
type smartReplyResponse struct {
	Suggestions []string `json:"suggestions"`
	Withheld    bool     `json:"withheld"`
}

// SmartReplies returns suggestion texts for the given message. The policy
// sentinel maps to interfaces.ErrSuggestionsWithheld so callers can tell a
// refusal apart from a failure.
func (c *Client) SmartReplies(ctx context.Context, lastMessageID string) ([]string, error) {
	q := url.Values{}
	q.Set("lastMessageId", lastMessageID)

	var reply smartReplyResponse
	if err := c.get(ctx, "/smart-reply-suggestions", q, &reply); err != nil {
		return nil, err
	}
	if reply.Withheld {
		return nil, interfaces.ErrSuggestionsWithheld
	}
	return reply.Suggestions, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", req.URL.Path).Msg("request failed")
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d on %s", ErrRequestFailed, resp.StatusCode, req.URL.Path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return nil
}
