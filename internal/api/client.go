package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/pkg/apperror"
)

// AccessProvider supplies the opaque current access context. Token storage
// and refresh live outside this core; the client only attaches whatever
// string the provider returns.
type AccessProvider interface {
	AccessToken() string
}

// StaticAccess is an AccessProvider for a fixed token (tests, tooling).
type StaticAccess string

func (s StaticAccess) AccessToken() string { return string(s) }

// Client talks to the Thrive backend. Cursors are passed through verbatim;
// the client never parses or constructs them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	access     AccessProvider
}

func NewClient(baseURL string, timeout time.Duration, access AccessProvider) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		access: access,
	}
}

func (c *Client) GetFeed(ctx context.Context, cursor string, limit int) (*PostPage, error) {
	var page PostPage
	if err := c.do(ctx, http.MethodGet, "/feed", pageQuery(cursor, limit), nil, &page); err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return &page, nil
}

func (c *Client) LikePost(ctx context.Context, postID string) (*LikeResult, error) {
	var res LikeResult
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/like", nil, nil, &res); err != nil {
		return nil, fmt.Errorf("like post: %w", err)
	}
	return &res, nil
}

func (c *Client) UnlikePost(ctx context.Context, postID string) (*LikeResult, error) {
	var res LikeResult
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/unlike", nil, nil, &res); err != nil {
		return nil, fmt.Errorf("unlike post: %w", err)
	}
	return &res, nil
}

func (c *Client) GetComments(ctx context.Context, postID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.do(ctx, http.MethodGet, "/posts/"+postID+"/comments", nil, nil, &comments); err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, text string) (*model.Comment, error) {
	var created model.Comment
	body := CreateCommentRequest{Text: text}
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/comments", nil, body, &created); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &created, nil
}

func (c *Client) SharePost(ctx context.Context, postID string) error {
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/share", nil, nil, nil); err != nil {
		return fmt.Errorf("share post: %w", err)
	}
	return nil
}

// GetThreadMessages pages a team talk thread. Within a page messages are
// oldest first; the cursor walks further back in history.
func (c *Client) GetThreadMessages(ctx context.Context, threadID, cursor string, limit int) (*MessagePage, error) {
	var page MessagePage
	if err := c.do(ctx, http.MethodGet, "/talk/"+threadID, pageQuery(cursor, limit), nil, &page); err != nil {
		return nil, fmt.Errorf("get thread messages: %w", err)
	}
	return &page, nil
}

func (c *Client) GetDirectMessages(ctx context.Context, userID, cursor string, limit int) (*MessagePage, error) {
	var page MessagePage
	if err := c.do(ctx, http.MethodGet, "/dm/"+userID, pageQuery(cursor, limit), nil, &page); err != nil {
		return nil, fmt.Errorf("get direct messages: %w", err)
	}
	return &page, nil
}

func (c *Client) SendThreadMessage(ctx context.Context, threadID, body string) (*model.Message, error) {
	var created model.Message
	req := SendMessageRequest{Body: body}
	if err := c.do(ctx, http.MethodPost, "/talk/"+threadID+"/messages", nil, req, &created); err != nil {
		return nil, fmt.Errorf("send thread message: %w", err)
	}
	return &created, nil
}

func (c *Client) SendDirectMessage(ctx context.Context, userID, body string) (*model.Message, error) {
	var created model.Message
	req := SendMessageRequest{Body: body}
	if err := c.do(ctx, http.MethodPost, "/dm/"+userID, nil, req, &created); err != nil {
		return nil, fmt.Errorf("send direct message: %w", err)
	}
	return &created, nil
}

func (c *Client) GetNotifications(ctx context.Context) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, nil, &notifications); err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	return notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/"+id+"/read", nil, nil, nil); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil, nil); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (c *Client) GetChallengeDayTasks(ctx context.Context, challengeID string, day int, cursor string, limit int) (*TaskPage, error) {
	var page TaskPage
	path := "/challenges/" + challengeID + "/days/" + strconv.Itoa(day) + "/tasks"
	if err := c.do(ctx, http.MethodGet, path, pageQuery(cursor, limit), nil, &page); err != nil {
		return nil, fmt.Errorf("get challenge tasks: %w", err)
	}
	return &page, nil
}

func pageQuery(cursor string, limit int) url.Values {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.access.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport errors are one recoverable kind
		return fmt.Errorf("%w: %v", apperror.ErrRemote, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperror.ErrRemote, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperror.New(resp.StatusCode,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(respBody)),
			apperror.FromStatus(resp.StatusCode))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
