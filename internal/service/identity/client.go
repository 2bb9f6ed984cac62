package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/janisto/identity-gateway/internal/platform/logging"
)

const (
	defaultBaseURL = "https://identitytoolkit.googleapis.com"
	signUpPath     = "/v1/accounts:signUp"
	signInPath     = "/v1/accounts:signInWithPassword"

	maxErrorBody = 64 << 10
)

// Admin is the subset of *fbauth.Client the provider client uses.
type Admin interface {
	PasswordResetLink(ctx context.Context, email string) (string, error)
	CustomTokenWithClaims(ctx context.Context, uid string, claims map[string]any) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}

// Client implements Service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	admin      Admin
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the REST calls somewhere other than production, such as
// the Auth emulator or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithEmulator targets a Firebase Auth emulator at host:port.
func WithEmulator(host string) Option {
	return WithBaseURL("http://" + host + "/identitytoolkit.googleapis.com")
}

// WithTimeout bounds every REST call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// NewClient returns a provider client. httpClient may be nil.
func NewClient(httpClient *http.Client, apiKey string, admin Admin, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		admin:      admin,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type sessionResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.passwordCall(ctx, signUpPath, email, password)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.passwordCall(ctx, signInPath, email, password)
}

func (c *Client) passwordCall(ctx context.Context, path, email, password string) (*Session, error) {
	payload, err := json.Marshal(passwordRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := c.baseURL + path + "?" + url.Values{"key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogWarn(ctx, "identity toolkit unreachable", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamError(ctx, path, resp)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrUnavailable, err)
	}
	if sr.LocalID == "" {
		return nil, fmt.Errorf("%w: response without localId", ErrUnavailable)
	}
	return sr.session(), nil
}

func (sr sessionResponse) session() *Session {
	s := &Session{
		UserID:       sr.LocalID,
		Email:        sr.Email,
		IDToken:      sr.IDToken,
		RefreshToken: sr.RefreshToken,
	}
	if secs, err := strconv.Atoi(sr.ExpiresIn); err == nil {
		s.ExpiresIn = time.Duration(secs) * time.Second
	}
	return s
}

// upstreamError decodes the provider's error body. Bodies that are not
// provider errors (proxies, outages) are reported as ErrUnavailable.
func (c *Client) upstreamError(ctx context.Context, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		logging.LogWarn(ctx, "identity toolkit returned an unexpected response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}

	// Messages look like "WEAK_PASSWORD : Password should be at least 6 characters".
	code, detail, _ := strings.Cut(er.Error.Message, " : ")
	code = strings.TrimSpace(code)
	logging.LogWarn(ctx, "identity toolkit rejected request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("code", code),
	)
	return &UpstreamError{Code: code, Message: strings.TrimSpace(detail), Status: resp.StatusCode}
}

func (c *Client) PasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := c.admin.PasswordResetLink(ctx, email)
	if err != nil {
		return "", adminError(ctx, "password_reset_link", err)
	}
	return link, nil
}

func (c *Client) CustomToken(ctx context.Context, uid string, claims map[string]any) (string, error) {
	token, err := c.admin.CustomTokenWithClaims(ctx, uid, claims)
	if err != nil {
		return "", adminError(ctx, "custom_token", err)
	}
	return token, nil
}

func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	if err := c.admin.DeleteUser(ctx, uid); err != nil {
		return adminError(ctx, "delete_user", err)
	}
	return nil
}

func adminError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	ue := &UpstreamError{Code: err.Error(), Status: http.StatusBadRequest}
	switch {
	case fbauth.IsEmailNotFound(err):
		ue.Code = "EMAIL_NOT_FOUND"
	case fbauth.IsUserNotFound(err):
		ue.Code, ue.Status = "USER_NOT_FOUND", http.StatusNotFound
	case fbauth.IsEmailAlreadyExists(err):
		ue.Code = "EMAIL_EXISTS"
	default:
		ue.Status = http.StatusInternalServerError
	}
	logging.LogWarn(ctx, "firebase admin call failed", zap.String("op", op), zap.String("code", ue.Code))
	return ue
}

var _ Service = (*Client)(nil)
