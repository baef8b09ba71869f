// ABOUTME: HTTP JSON client for the forum API
// ABOUTME: Wraps every endpoint with bearer auth, request IDs, and error mapping

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/posteo/posteo-client/internal/auth"
)

// TokenSource supplies the current bearer token, or "" when anonymous.
// auth.Session satisfies it.
type TokenSource interface {
	Token() string
}

// anonymous is the TokenSource used when no session is wired in.
type anonymous struct{}

func (anonymous) Token() string { return "" }

// Client talks to the forum API. All methods are safe for sequential use
// from the event loop; none of them retries.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// NewClient creates a client for the forum at baseURL. tokens may be nil for
// an anonymous client.
func NewClient(baseURL string, tokens TokenSource, logger *slog.Logger) *Client {
	if tokens == nil {
		tokens = anonymous{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		logger:  logger.With("component", "api"),
	}
}

// loginRequest is the JSON body for POST /login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest is the JSON body for POST /register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// tokenResponse is the JSON response from /login and /register.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &StatusError{Code: http.StatusOK, Message: "server response carried no access token"}
	}
	return resp.AccessToken, nil
}

// Register creates an account and returns the bearer token the server issues
// alongside it.
func (c *Client) Register(ctx context.Context, p auth.RegisterParams) (string, error) {
	body := registerRequest{
		Username: p.Username,
		Email:    p.Email,
		Password: p.Password,
		Role:     string(p.Role),
	}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/register", body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &StatusError{Code: http.StatusOK, Message: "server response carried no access token"}
	}
	return resp.AccessToken, nil
}

// postsResponse wraps GET /post, which nests the list under "posts".
type postsResponse struct {
	Posts []Post `json:"posts"`
}

// ListPosts fetches all posts with their nested comments.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var resp postsResponse
	if err := c.do(ctx, http.MethodGet, "/post", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

// CreatePost creates a post. The caller refetches rather than trusting the
// returned record.
func (c *Client) CreatePost(ctx context.Context, p CreatePostParams) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodPost, "/post", p, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost replaces a post's fields.
func (c *Client) UpdatePost(ctx context.Context, id int, p CreatePostParams) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/post/%d", id), p, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost permanently removes a post.
func (c *Client) DeletePost(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/post/%d", id), nil, nil)
}

// ListComments fetches the comments of one post.
func (c *Client) ListComments(ctx context.Context, postID int) ([]Comment, error) {
	var comments []Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/post/%d/comments", postID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// commentRequest is the JSON body for comment create/update.
type commentRequest struct {
	Content string `json:"content"`
}

// CreateComment adds a comment to a post.
func (c *Client) CreateComment(ctx context.Context, postID int, content string) (*Comment, error) {
	var comment Comment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/post/%d/comments", postID), commentRequest{Content: content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment replaces a comment's content.
func (c *Client) UpdateComment(ctx context.Context, id int, content string) (*Comment, error) {
	var comment Comment
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/comments/%d", id), commentRequest{Content: content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment permanently removes a comment.
func (c *Client) DeleteComment(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", id), nil, nil)
}

// ListCategories fetches all visible categories.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, "/category", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// categoryRequest is the JSON body for category create/update.
type categoryRequest struct {
	Name string `json:"name"`
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, name string) (*Category, error) {
	var category Category
	if err := c.do(ctx, http.MethodPost, "/category", categoryRequest{Name: name}, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory renames a category.
func (c *Client) UpdateCategory(ctx context.Context, id int, name string) (*Category, error) {
	var category Category
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/category/%d", id), categoryRequest{Name: name}, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory soft-deletes a category; the server hides it rather than
// removing it.
func (c *Client) DeleteCategory(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/category/%d", id), nil, nil)
}

// ListUsers fetches every account. Admin only, enforced server-side too.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches one account.
func (c *Client) GetUser(ctx context.Context, id int) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeactivateUser deactivates an account. The record stays listed with
// is_active false.
func (c *Client) DeactivateUser(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

// roleRequest is the JSON body for PATCH /users/:id/role.
type roleRequest struct {
	Role string `json:"role"`
}

// SetUserRole changes an account's role.
func (c *Client) SetUserRole(ctx context.Context, id int, role auth.Role) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/users/%d/role", id), roleRequest{Role: string(role)}, nil)
}

// statusRequest is the JSON body for PATCH /users/:id/status.
type statusRequest struct {
	IsActive bool `json:"is_active"`
}

// SetUserStatus flips an account's active flag.
func (c *Client) SetUserStatus(ctx context.Context, id int, active bool) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/users/%d/status", id), statusRequest{IsActive: active}, nil)
}

// Stats fetches the aggregate counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// do executes one JSON round trip. The bearer token is attached whenever the
// session holds one; every request carries an X-Request-ID for correlation
// against server logs. Non-2xx statuses map to the package error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", method, path, ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Code: resp.StatusCode, Message: serverMessage(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}
