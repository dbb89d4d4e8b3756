package melcloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/skra72/melcloudd/internal/device"
)

// Timeouts per endpoint class. Account endpoints answer quickly; the
// Set endpoints block while the cloud relays to the unit.
const (
	accountTimeout = 5 * time.Second
	deviceTimeout  = 25 * time.Second
)

// Config describes one account's connection parameters.
type Config struct {
	// BaseURL defaults to DefaultBaseURL when empty.
	BaseURL string

	Email    string
	Password string

	// Language is the numeric MELCloud language id.
	Language int

	// InsecureTLS skips certificate verification. The production
	// endpoint needs this; only disable it behind a trusted proxy.
	InsecureTLS bool
}

// Session is one account's authenticated connection to MELCloud.
//
// All methods are safe for concurrent use. Command submission holds a
// per-session lock so at most one Set request is in flight at a time;
// overlapping writes make the cloud drop commands.
type Session struct {
	cfg Config

	accountClient *http.Client
	deviceClient  *http.Client

	mu    sync.Mutex
	login *LoginResult

	sendMu sync.Mutex
}

// NewSession creates a session. No network traffic happens until
// Connect.
func NewSession(cfg Config) *Session {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	transport := func() *http.Transport {
		return &http.Transport{
			DisableKeepAlives: true,
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: cfg.InsecureTLS},
		}
	}
	return &Session{
		cfg:           cfg,
		accountClient: &http.Client{Timeout: accountTimeout, Transport: transport()},
		deviceClient:  &http.Client{Timeout: deviceTimeout, Transport: transport()},
	}
}

// Connected reports whether a context key is currently held.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login != nil
}

// Reset drops the current context key so the next Connect performs a
// fresh login. Call it after ErrSessionExpired.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = nil
}

// Connect logs in and caches the context key. Calling Connect on an
// already connected session returns the cached result without touching
// the network, so schedulers may call it every cycle.
//
// Parameters:
//   - ctx: Cancels the login request
//
// Returns:
//   - LoginResult: Context key plus the raw account info payload
//   - error: ErrAuth on rejected credentials, ErrTransport on network
//     failure, ErrRemote on unexpected responses
func (s *Session) Connect(ctx context.Context) (LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.login != nil {
		return *s.login, nil
	}

	body, err := json.Marshal(loginRequest{
		Email:      s.cfg.Email,
		Password:   s.cfg.Password,
		Language:   s.cfg.Language,
		AppVersion: appVersion,
		Persist:    true,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("melcloud: encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+pathClientLogin, bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, fmt.Errorf("melcloud: building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.accountClient.Do(req)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: login: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LoginResult{}, fmt.Errorf("%w: login returned status %d", ErrRemote, resp.StatusCode)
	}

	var envelope loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return LoginResult{}, fmt.Errorf("%w: decoding login response: %w", ErrRemote, err)
	}
	if envelope.ErrorId != nil {
		msg := "unknown reason"
		if envelope.ErrorMessage != nil {
			msg = *envelope.ErrorMessage
		}
		return LoginResult{}, fmt.Errorf("%w: error id %d: %s", ErrAuth, *envelope.ErrorId, msg)
	}

	var data loginData
	if err := json.Unmarshal(envelope.LoginData, &data); err != nil {
		return LoginResult{}, fmt.Errorf("%w: decoding login data: %w", ErrRemote, err)
	}
	if data.ContextKey == "" {
		return LoginResult{}, fmt.Errorf("%w: login succeeded but context key is missing", ErrRemote)
	}

	result := LoginResult{ContextKey: data.ContextKey, AccountInfo: envelope.LoginData}
	s.login = &result
	return result, nil
}

// ListDevices fetches the account's building tree.
//
// Returns:
//   - []Building: The raw tree; flatten it with FlattenBuildings
//   - error: ErrNotConnected, ErrSessionExpired, ErrTransport or
//     ErrRemote
func (s *Session) ListDevices(ctx context.Context) ([]Building, error) {
	key, err := s.contextKey()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+pathListDevices, nil)
	if err != nil {
		return nil, fmt.Errorf("melcloud: building list request: %w", err)
	}
	req.Header.Set("X-MitsContextKey", key)

	resp, err := s.accountClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := s.checkStatus(resp.StatusCode, "list devices"); err != nil {
		return nil, err
	}

	var buildings []Building
	if err := json.NewDecoder(resp.Body).Decode(&buildings); err != nil {
		return nil, fmt.Errorf("%w: decoding building list: %w", ErrRemote, err)
	}
	return buildings, nil
}

// Send submits a command to a device's Set endpoint. The command is
// marked pending first; sends are serialized across the session.
//
// The cloud applies only the fields selected by the command's effective
// flags. There is no retry here: a failed send surfaces to the caller
// and the next state read reveals what the device actually did.
//
// Returns:
//   - json.RawMessage: The server's echo of the resulting device state
//   - error: ErrNotConnected, ErrSessionExpired, ErrTransport or
//     ErrRemote
func (s *Session) Send(ctx context.Context, cmd device.Command) (json.RawMessage, error) {
	key, err := s.contextKey()
	if err != nil {
		return nil, err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	cmd.MarkPending()
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("melcloud: encoding command for device %d: %w", cmd.TargetDevice(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+cmd.Family().SetPath(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("melcloud: building command request: %w", err)
	}
	req.Header.Set("X-MitsContextKey", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.deviceClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending command to device %d: %w", ErrTransport, cmd.TargetDevice(), err)
	}
	defer resp.Body.Close()

	if err := s.checkStatus(resp.StatusCode, "send command"); err != nil {
		return nil, err
	}

	echo, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading command response: %w", ErrRemote, err)
	}
	return echo, nil
}

// UpdateApplicationOptions pushes modified account settings (units,
// language and similar) back to the cloud.
func (s *Session) UpdateApplicationOptions(ctx context.Context, accountInfo json.RawMessage) error {
	key, err := s.contextKey()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+pathUpdateApplicationOptions, bytes.NewReader(accountInfo))
	if err != nil {
		return fmt.Errorf("melcloud: building options request: %w", err)
	}
	req.Header.Set("X-MitsContextKey", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.accountClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: update application options: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	return s.checkStatus(resp.StatusCode, "update application options")
}

// contextKey returns the cached key or ErrNotConnected.
func (s *Session) contextKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.login == nil {
		return "", ErrNotConnected
	}
	return s.login.ContextKey, nil
}

// checkStatus maps an HTTP status to the package's sentinel errors.
func (s *Session) checkStatus(status int, op string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d", ErrSessionExpired, op, status)
	default:
		return fmt.Errorf("%w: %s returned status %d", ErrRemote, op, status)
	}
}
