package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"bloomcart-be/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	pathDistricts       = "/districts"
	pathStoreInfo       = "/store-info"
	pathPaymentChannels = "/payment-channels"
)

type Client interface {
	Districts(ctx context.Context) ([]District, error)
	District(ctx context.Context, id string) (*District, error)
	StoreInfo(ctx context.Context) (*StoreInfo, error)
	PaymentChannels(ctx context.Context) ([]PaymentChannel, error)
	PaymentChannel(ctx context.Context, method string) (*PaymentChannel, error)
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

type client struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
}

func NewClient(baseURL string, ttl time.Duration) Client {
	if baseURL == "" {
		logger.L().Warn("storefront base URL is empty")
	}
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

func (c *client) Districts(ctx context.Context) ([]District, error) {
	v, err := c.cached(ctx, pathDistricts, func(ctx context.Context) (any, error) {
		var out []District
		if err := c.getJSON(ctx, pathDistricts, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]District), nil
}

func (c *client) District(ctx context.Context, id string) (*District, error) {
	districts, err := c.Districts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range districts {
		if districts[i].ID == id {
			d := districts[i]
			return &d, nil
		}
	}
	return nil, ErrDistrictNotFound
}

func (c *client) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	v, err := c.cached(ctx, pathStoreInfo, func(ctx context.Context) (any, error) {
		var out StoreInfo
		if err := c.getJSON(ctx, pathStoreInfo, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StoreInfo), nil
}

func (c *client) PaymentChannels(ctx context.Context) ([]PaymentChannel, error) {
	v, err := c.cached(ctx, pathPaymentChannels, func(ctx context.Context) (any, error) {
		var out []PaymentChannel
		if err := c.getJSON(ctx, pathPaymentChannels, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PaymentChannel), nil
}

func (c *client) PaymentChannel(ctx context.Context, method string) (*PaymentChannel, error) {
	channels, err := c.PaymentChannels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range channels {
		if channels[i].Method == method {
			ch := channels[i]
			return &ch, nil
		}
	}
	return nil, ErrChannelNotFound
}

// cached serves key from memory while fresh; concurrent misses share one fetch.
// Failed fetches are not cached, so the next caller retries.
func (c *client) cached(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	// the shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.httpClient.Timeout)
		defer cancel()

		value, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *client) getJSON(ctx context.Context, path string, dest any) error {
	log := logger.FromCtx(ctx).With(zap.String("path", path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		log.Error("failed building request", zap.Error(err))
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("storefront request failed", zap.Error(err))
		return fmt.Errorf("storefront %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read storefront response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn("storefront returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return fmt.Errorf("storefront %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Error("failed decoding storefront response", zap.Error(err))
		return err
	}
	return nil
}
