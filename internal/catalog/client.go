package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"gamevault/pkg/models"
)

// Fetcher runs catalog queries. The search session and the home feed depend
// on it so tests can substitute a fake catalog.
type Fetcher interface {
	Games(ctx context.Context, query string) ([]models.Game, error)
}

// Source is a Fetcher that can also load full game records.
type Source interface {
	Fetcher
	GameDetails(ctx context.Context, id int64) (*models.GameDetails, error)
}

// Client talks to the IGDB-style catalog: every request is a POST of a query
// string to /{endpoint}, authenticated with a client id and bearer token.
type Client struct {
	BaseURL  string
	ClientID string
	Token    string
	HTTP     *http.Client
	log      *zap.Logger

	details singleflight.Group
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTP = hc }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.HTTP.Timeout = d
		}
	}
}

func NewClient(baseURL, clientID, token string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		ClientID: clientID,
		Token:    token,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Games runs a query against the games endpoint.
func (c *Client) Games(ctx context.Context, query string) ([]models.Game, error) {
	var games []models.Game
	if err := c.post(ctx, "games", query, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// GameDetails loads the full record of one game. It returns (nil, nil) when
// the catalog has no game with that id. Concurrent requests for the same id
// share one round trip.
func (c *Client) GameDetails(ctx context.Context, id int64) (*models.GameDetails, error) {
	key := strconv.FormatInt(id, 10)
	ch := c.details.DoChan(key, func() (any, error) {
		// detach from the first caller so its cancellation does not fail the
		// callers sharing this flight
		var out []models.GameDetails
		if err := c.post(context.WithoutCancel(ctx), "games", DetailsQuery(id), &out); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out[0], nil
	})

	select {
	case <-ctx.Done():
		return nil, &Error{Kind: KindNetwork, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Val == nil {
			return nil, nil
		}
		d := res.Val.(models.GameDetails)
		return &d, nil
	}
}

func (c *Client) post(ctx context.Context, endpoint, query string, out any) error {
	url := c.BaseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(query))
	if err != nil {
		return &Error{Kind: KindUnknown, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Client-ID", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Warn("catalog request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("catalog request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			Kind:   KindAPI,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindUnknown, Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}
	return nil
}
