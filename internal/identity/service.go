// Package identity is the authentication boundary of the sync engine. It
// wraps the remote identity provider's thin HTTP flows (login, signup,
// password reset), persists the resulting session, and exposes the two
// things the rest of the engine consumes: a "current identity or none"
// accessor and an identity-change event stream. The engine never sees
// passwords or tokens — only the resolved user ID.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Event is one identity change. LoggedIn false means logout; UID is then
// the identity that was signed out.
type Event struct {
	UID      string
	LoggedIn bool
}

// Handler receives identity events.
type Handler func(Event)

// Service implements the identity provider boundary. All methods are safe
// for concurrent use.
type Service struct {
	serverURL string
	client    *http.Client
	sessions  *SessionStore
	logger    *slog.Logger

	mu       sync.Mutex
	current  *Session
	handlers []*handlerReg
}

type handlerReg struct {
	fn Handler
}

// NewService creates the identity service and resumes any persisted
// session. A resumed session does not emit an event — handlers registered
// afterward observe it through the immediate OnChange delivery.
func NewService(serverURL string, client *http.Client, sessions *SessionStore, logger *slog.Logger) *Service {
	s := &Service{
		serverURL: serverURL,
		client:    client,
		sessions:  sessions,
		logger:    logger,
	}

	session, err := sessions.Load()
	if err == nil {
		s.current = session
		logger.Debug("resumed session", slog.String("uid", session.UID))
	}

	return s
}

// Current returns the authenticated user ID, or ("", false) when logged
// out.
func (s *Service) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "", false
	}

	return s.current.UID, true
}

// Email returns the authenticated user's email, or "" when logged out.
func (s *Service) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ""
	}

	return s.current.Email
}

// Token returns the current session token for authenticating remote
// document operations.
func (s *Service) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	return s.current.Token
}

// OnChange registers a handler for identity events. The handler is
// invoked immediately with the current state, then on every subsequent
// login or logout. The returned function removes exactly this
// registration.
func (s *Service) OnChange(fn Handler) func() {
	reg := &handlerReg{fn: fn}

	s.mu.Lock()
	s.handlers = append(s.handlers, reg)

	event := Event{}
	if s.current != nil {
		event = Event{UID: s.current.UID, LoggedIn: true}
	}
	s.mu.Unlock()

	fn(event)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, h := range s.handlers {
			if h == reg {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Login authenticates with email and password via the provider's OAuth2
// password grant, extracts the user ID from the access token's subject
// claim, persists the session, and emits a login event.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	cfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{TokenURL: s.serverURL + "/v1/auth/token"},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	token, err := cfg.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("identity: login failed: %w", err)
	}

	uid, err := uidFromToken(token.AccessToken)
	if err != nil {
		return "", err
	}

	session := &Session{UID: uid, Email: email, Token: token}
	if err := s.sessions.Save(session); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.current = session
	handlers := s.snapshotHandlersLocked()
	s.mu.Unlock()

	s.logger.Info("logged in", slog.String("uid", uid))

	s.emit(handlers, Event{UID: uid, LoggedIn: true})

	return uid, nil
}

// Logout clears the persisted session and emits a logout event. Safe to
// call when already logged out.
func (s *Service) Logout() error {
	s.mu.Lock()

	if s.current == nil {
		s.mu.Unlock()
		return nil
	}

	uid := s.current.UID
	s.current = nil
	handlers := s.snapshotHandlersLocked()
	s.mu.Unlock()

	if err := s.sessions.Clear(); err != nil {
		return err
	}

	s.logger.Info("logged out", slog.String("uid", uid))

	s.emit(handlers, Event{UID: uid, LoggedIn: false})

	return nil
}

// SignUp creates a new account. A thin wrapper — the provider does the
// real work.
func (s *Service) SignUp(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	if err := s.post(ctx, "/v1/auth/signup", body); err != nil {
		return fmt.Errorf("identity: signup failed: %w", err)
	}

	s.logger.Info("signed up", slog.String("email", email))

	return nil
}

// ResetPassword requests a password reset email for the address.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	if err := s.post(ctx, "/v1/auth/reset", map[string]string{"email": email}); err != nil {
		return fmt.Errorf("identity: password reset failed: %w", err)
	}

	s.logger.Info("password reset requested", slog.String("email", email))

	return nil
}

func (s *Service) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	return nil
}

func (s *Service) snapshotHandlersLocked() []Handler {
	handlers := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h.fn)
	}

	return handlers
}

func (s *Service) emit(handlers []Handler, event Event) {
	for _, fn := range handlers {
		fn(event)
	}
}

// uidFromToken extracts the subject claim from the access token. The
// token is not verified here — the server already authenticated us; we
// only need the identity it minted.
func uidFromToken(accessToken string) (string, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("identity: parsing access token: %w", err)
	}

	uid, err := claims.GetSubject()
	if err != nil || uid == "" {
		return "", fmt.Errorf("identity: access token has no subject claim")
	}

	return uid, nil
}
