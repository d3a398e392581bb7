package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"airways-scraper/pkg/logger"
)

const challengeTokenHeader = "X-Gate-Token"

// HTTPSessionProvider acquires sessions against the real upstream: one
// handshake against the gate endpoint yields a token plus cookies that the
// schedule endpoint then accepts.
type HTTPSessionProvider struct {
	baseURL string
	timeout time.Duration
	logger  logger.Logger
}

// NewHTTPSessionProvider creates a provider for the upstream base URL
func NewHTTPSessionProvider(baseURL string, timeout time.Duration, log logger.Logger) *HTTPSessionProvider {
	return &HTTPSessionProvider{
		baseURL: baseURL,
		timeout: timeout,
		logger:  log,
	}
}

// Acquire performs the gate handshake and returns a reusable session
func (p *HTTPSessionProvider) Acquire(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSession, err)
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: p.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/gate", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSession, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSession, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gate returned %d", ErrSession, resp.StatusCode)
	}

	token := resp.Header.Get(challengeTokenHeader)
	if token == "" {
		return nil, fmt.Errorf("%w: gate response missing token", ErrSession)
	}

	p.logger.Debug("Feed session acquired")

	return &httpSession{
		baseURL: p.baseURL,
		token:   token,
		client:  client,
	}, nil
}

type httpSession struct {
	baseURL string
	token   string
	client  *http.Client
}

// FetchSchedule retrieves the raw schedule document for one local date
func (s *httpSession) FetchSchedule(ctx context.Context, flightDate string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/schedule?date=%s", s.baseURL, url.QueryEscape(flightDate))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(challengeTokenHeader, s.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The gate invalidates tokens server-side; a rejected token means the
	// whole session is gone, not just this fetch
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: schedule fetch rejected with %d", ErrSession, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule fetch for %s returned %d", flightDate, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (s *httpSession) Close() {
	s.client.CloseIdleConnections()
}
