package gdrive

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/logger"
)

// DefaultScopes grants read-only access, which is all a mirror needs
var DefaultScopes = []string{drive.DriveReadonlyScope}

// Token represents a stored OAuth2 token
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// toOAuth2Token converts to golang.org/x/oauth2.Token
func (t *Token) toOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// fromOAuth2Token creates Token from oauth2.Token
func fromOAuth2Token(t *oauth2.Token) *Token {
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// Authenticator implements adapter.CredentialProvider with OAuth2 for Google Drive
type Authenticator struct {
	config *oauth2.Config
	store  adapter.TokenStore

	mu    sync.Mutex
	token *oauth2.Token

	// Interactive allows Session to fall back to the consent flow
	Interactive bool
	// In and Out are used by the consent flow
	In  io.Reader
	Out io.Writer
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(config *oauth2.Config, store adapter.TokenStore) *Authenticator {
	return &Authenticator{
		config: config,
		store:  store,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// NewAuthenticatorFromFile reads an installed-app client secret JSON file
func NewAuthenticatorFromFile(credentialsPath string, scopes []string, store adapter.TokenStore) (*Authenticator, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading client secret %s: %v", domain.ErrAuthentication, credentialsPath, err)
	}
	return NewAuthenticatorFromJSON(data, scopes, store)
}

// NewAuthenticatorFromJSON parses client secret JSON content
func NewAuthenticatorFromJSON(data []byte, scopes []string, store adapter.TokenStore) (*Authenticator, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid client secret: %v", domain.ErrAuthentication, err)
	}
	return NewAuthenticator(config, store), nil
}

// IsValid reports whether a loaded token is present and unexpired
func (a *Authenticator) IsValid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != nil && a.token.Valid()
}

// Session ensures a valid token: load, then refresh, then (if allowed) consent
func (a *Authenticator) Session(ctx context.Context) error {
	if err := a.loadToken(); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Get().Warn("ignoring unreadable stored token", "error", err)
	}

	if a.IsValid() {
		return nil
	}

	if a.hasRefreshToken() {
		err := a.Refresh(ctx)
		if err == nil {
			return nil
		}
		logger.Get().Warn("token refresh failed", "error", err)
	}

	if a.Interactive {
		return a.ObtainNew(ctx)
	}

	return fmt.Errorf("%w: no valid token, please run 'drivemirror auth' first", domain.ErrAuthentication)
}

// Refresh refreshes an expired token and persists it
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()

	if token == nil || token.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token available", domain.ErrAuthentication)
	}

	// Force a round trip even if the access token looks valid
	expired := *token
	expired.Expiry = time.Unix(1, 0)

	newToken, err := a.config.TokenSource(ctx, &expired).Token()
	if err != nil {
		return fmt.Errorf("%w: failed to refresh token: %v", domain.ErrAuthentication, err)
	}

	if err := a.saveToken(newToken); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	return nil
}

// ObtainNew performs the authorization code flow
func (a *Authenticator) ObtainNew(ctx context.Context) error {
	state, err := generateRandomState()
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}

	authURL := a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(a.Out, "\nTo authorize drivemirror to read Google Drive:\n\n")
	fmt.Fprintf(a.Out, "1. Visit this URL:\n   %s\n\n", authURL)
	fmt.Fprintf(a.Out, "2. Sign in and authorize the application\n\n")
	fmt.Fprintf(a.Out, "3. Copy the 'code' parameter from the redirected URL and paste it below\n\n")
	fmt.Fprintf(a.Out, "Enter authorization code: ")

	code, err := readCode(a.In)
	if err != nil {
		return fmt.Errorf("%w: failed to read authorization code: %v", domain.ErrAuthentication, err)
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: failed to exchange code for token: %v", domain.ErrAuthentication, err)
	}

	if err := a.saveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Fprintln(a.Out, "\nAuthentication successful! Token saved.")
	return nil
}

// Client returns an HTTP client whose refreshed tokens are written back to the store
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	if err := a.Session(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	token := a.token
	a.mu.Unlock()

	source := &persistingTokenSource{
		base: oauth2.ReuseTokenSource(token, a.config.TokenSource(ctx, token)),
		auth: a,
		last: token.AccessToken,
	}
	return oauth2.NewClient(ctx, source), nil
}

// Revoke forgets the stored token
func (a *Authenticator) Revoke() error {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
	return a.store.Delete()
}

// Token returns a copy of the current token, if loaded
func (a *Authenticator) Token() (*oauth2.Token, bool) {
	if err := a.loadToken(); err != nil {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t := *a.token
	return &t, true
}

// Config returns the OAuth2 config
func (a *Authenticator) Config() *oauth2.Config {
	return a.config
}

func (a *Authenticator) hasRefreshToken() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != nil && a.token.RefreshToken != ""
}

// loadToken loads the token from the store once
func (a *Authenticator) loadToken() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != nil {
		return nil
	}

	data, err := a.store.Load()
	if err != nil {
		return err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("invalid token blob: %w", err)
	}

	a.token = token.toOAuth2Token()
	return nil
}

// saveToken persists the token and makes it current
func (a *Authenticator) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(fromOAuth2Token(token), "", "  ")
	if err != nil {
		return err
	}
	if err := a.store.Save(data); err != nil {
		return err
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	return nil
}

// persistingTokenSource saves every newly minted token
type persistingTokenSource struct {
	base oauth2.TokenSource
	auth *Authenticator

	mu   sync.Mutex
	last string
}

// Token implements oauth2.TokenSource
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		if err := s.auth.saveToken(token); err != nil {
			logger.Get().Warn("failed to persist refreshed token", "error", err)
		}
		s.last = token.AccessToken
	}
	return token, nil
}

// generateRandomState generates a cryptographically secure random state string
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// readCode reads one non-empty line from r
func readCode(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	return code, nil
}

var _ adapter.CredentialProvider = (*Authenticator)(nil)
