package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// rateFloor is the minimum spacing between outbound requests, shared across
// every endpoint and every caller of one Client.
const rateFloor = 250 * time.Millisecond

const defaultRequestTimeout = 10 * time.Second

// Searcher is the subset of client functionality the resolver consumes.
type Searcher interface {
	SearchMovie(ctx context.Context, query string) (*Response, error)
	SearchTV(ctx context.Context, query string) (*Response, error)
}

// Client provides throttled access to a TMDB-compatible metadata API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	bearer     bool
	timeout    time.Duration
	httpClient *http.Client

	gateMu sync.Mutex
	floor  time.Duration
	last   time.Time

	invalidateMu sync.Mutex
	invalidate   chan struct{}
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateFloor overrides the minimum inter-request spacing.
func WithRateFloor(floor time.Duration) Option {
	return func(c *Client) {
		if floor >= 0 {
			c.floor = floor
		}
	}
}

// WithRequestTimeout overrides the fixed per-request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBearerAuth switches from api_key query auth to an Authorization header.
func WithBearerAuth() Option {
	return func(c *Client) {
		c.bearer = true
	}
}

// New creates a metadata client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: strings.TrimSpace(language),
		timeout:  defaultRequestTimeout,
		// The request timeout is driven by the combined abort signal, not
		// by the transport.
		httpClient: &http.Client{},
		floor:      rateFloor,
		last:       time.Unix(0, 0),
		invalidate: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Invalidate aborts every in-flight request with ErrInvalidated. Used when
// cached read state is being torn down (for example on sign-out) so stale
// responses cannot land afterwards.
func (c *Client) Invalidate() {
	c.invalidateMu.Lock()
	close(c.invalidate)
	c.invalidate = make(chan struct{})
	c.invalidateMu.Unlock()
}

func (c *Client) invalidationSignal() <-chan struct{} {
	c.invalidateMu.Lock()
	defer c.invalidateMu.Unlock()
	return c.invalidate
}

// SearchMovie searches for movies matching the query.
func (c *Client) SearchMovie(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	var payload Response
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchTV searches for TV shows matching the query.
func (c *Client) SearchTV(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	var payload Response
	if err := c.get(ctx, "/search/tv", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetMovieDetails fetches movie details by catalog ID.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*Result, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload Result
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", movieID), nil, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "movie"
	return &payload, nil
}

// GetTVDetails fetches TV show details by catalog ID.
func (c *Client) GetTVDetails(ctx context.Context, showID int64) (*Result, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	var payload Result
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", showID), nil, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "tv"
	return &payload, nil
}

// GetMovieCredits fetches cast and crew for a movie.
func (c *Client) GetMovieCredits(ctx context.Context, movieID int64) (*Credits, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload Credits
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/credits", movieID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetTVCredits fetches cast and crew for a TV show.
func (c *Client) GetTVCredits(ctx context.Context, showID int64) (*Credits, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	var payload Credits
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/credits", showID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetPerson fetches a person by ID.
func (c *Client) GetPerson(ctx context.Context, personID int64) (*Person, error) {
	if personID <= 0 {
		return nil, errors.New("person id must be positive")
	}
	var payload Person
	if err := c.get(ctx, fmt.Sprintf("/person/%d", personID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetPersonCombinedCredits fetches a person's combined movie and TV credits.
func (c *Client) GetPersonCombinedCredits(ctx context.Context, personID int64) (*CombinedCredits, error) {
	if personID <= 0 {
		return nil, errors.New("person id must be positive")
	}
	var payload CombinedCredits
	if err := c.get(ctx, fmt.Sprintf("/person/%d/combined_credits", personID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// wait enforces the shared spacing floor. The last-dispatch marker advances
// on every attempt, not only on success, so failures cannot hot-loop.
func (c *Client) wait(ctx context.Context) error {
	for {
		c.gateMu.Lock()
		pause := c.floor - time.Since(c.last)
		if pause <= 0 {
			c.last = time.Now()
			c.gateMu.Unlock()
			return nil
		}
		c.gateMu.Unlock()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrCallerCanceled, context.Cause(ctx))
		case <-time.After(pause):
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	if !c.bearer {
		params.Set("api_key", c.apiKey)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	// Combined abort signal: caller context, fixed request timeout, and the
	// invalidation broadcast. Whichever fires first cancels the request and
	// names itself as the cause.
	reqCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	defer cancel(nil)
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel(ErrCallerCanceled)
		case <-timer.C:
			cancel(ErrRequestTimeout)
		case <-c.invalidationSignal():
			cancel(ErrInvalidated)
		case <-done:
		}
	}()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if cause := context.Cause(reqCtx); cause != nil && reqCtx.Err() != nil {
			return fmt.Errorf("metadata request aborted: %w", cause)
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		detail := decodeAPIError(resp.Body)
		if detail != nil && detail.StatusCode == invalidKeyStatusCode {
			return fmt.Errorf("%w: %s", ErrAuth, detail.StatusMessage)
		}
		return fmt.Errorf("%w: status 401", ErrTransport)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429", ErrThrottled)
	default:
		return fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
}

func decodeAPIError(body io.Reader) *apiError {
	var detail apiError
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&detail); err != nil {
		return nil
	}
	return &detail
}
