package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

// LoginTokenTTL is the lifetime assumed for tokens from a username/password
// login. The server does not report one.
const LoginTokenTTL = 30 * 24 * time.Hour

// Credentials are the configured ways to authenticate. The API key is
// preferred when both are set.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

// SessionService obtains and caches the credential used for every
// media server call
type SessionService struct {
	client domain.MediaServerClient
	creds  Credentials
	logger *slog.Logger
	now    func() time.Time

	mu             sync.RWMutex
	cred           domain.Credential
	connectedSince time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(client domain.MediaServerClient, creds Credentials, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		client: client,
		creds:  creds,
		logger: logger,
		now:    time.Now,
	}
}

// Ensure returns a usable credential, authenticating only when the cached
// one is missing or expired. It is safe to call before every request.
func (s *SessionService) Ensure(ctx context.Context) (domain.Credential, error) {
	s.mu.RLock()
	if s.cred.Valid(s.now()) {
		cred := s.cred
		s.mu.RUnlock()
		return cred, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have authenticated while we waited
	if s.cred.Valid(s.now()) {
		return s.cred, nil
	}

	cred, err := s.authenticate(ctx)
	if err != nil {
		s.cred = domain.Credential{}
		return domain.Credential{}, err
	}

	s.cred = cred
	if s.connectedSince.IsZero() {
		s.connectedSince = s.now()
	}
	return cred, nil
}

func (s *SessionService) authenticate(ctx context.Context) (domain.Credential, error) {
	switch {
	case s.creds.APIKey != "":
		if err := s.client.ProbeAPIKey(ctx, s.creds.APIKey); err != nil {
			s.logAuthError("api key rejected", err)
			return domain.Credential{}, err
		}
		s.logger.Info("connected to media server using API key")
		return domain.Credential{
			Token:  s.creds.APIKey,
			Source: domain.CredentialAPIKey,
		}, nil

	case s.creds.Username != "" && s.creds.Password != "":
		cred, err := s.client.AuthenticateByName(ctx, s.creds.Username, s.creds.Password)
		if err != nil {
			s.logAuthError("login failed", err)
			return domain.Credential{}, err
		}
		cred.Source = domain.CredentialLogin
		cred.Expiry = s.now().Add(LoginTokenTTL)
		s.logger.Info("authenticated with media server", "username", s.creds.Username)
		return cred, nil

	default:
		s.logger.Error("no authentication method provided (API key or username/password required)")
		return domain.Credential{}, domain.ErrNotConfigured
	}
}

func (s *SessionService) logAuthError(msg string, err error) {
	var pe *domain.ProtocolError
	switch {
	case errors.Is(err, domain.ErrAuthFailed):
		s.logger.Error(msg, "error", err)
	case errors.As(err, &pe):
		s.logger.Error(msg, "status", pe.Status, "body", pe.Body)
	default:
		s.logger.Warn(msg, "error", err)
	}
}

// Invalidate drops the cached credential so the next Ensure re-authenticates
func (s *SessionService) Invalidate() {
	s.mu.Lock()
	s.cred = domain.Credential{}
	s.mu.Unlock()
}

// ConnectedSince returns when the process first authenticated, or the zero
// time if it never has
func (s *SessionService) ConnectedSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectedSince
}

// Source reports how the current credential was obtained, empty when
// there is none
func (s *SessionService) Source() domain.CredentialSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Source
}

// Do runs fn with a valid credential. A 401 from fn invalidates the
// credential so the next call re-authenticates.
func Do[T any](ctx context.Context, s *SessionService, fn func(domain.Credential) (T, error)) (T, error) {
	var zero T
	cred, err := s.Ensure(ctx)
	if err != nil {
		return zero, err
	}
	out, err := fn(cred)
	if errors.Is(err, domain.ErrAuthFailed) {
		s.logger.Warn("credential rejected, will re-authenticate")
		s.Invalidate()
	}
	return out, err
}
