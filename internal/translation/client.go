package translation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const retryBase = 500 * time.Millisecond

// ErrNoEndpoints means the client has neither endpoints nor a fallback
// to send requests to.
var ErrNoEndpoints = errors.New("translation: no usable endpoints")

// Config wires a Client.
type Config struct {
	Source string
	Target string

	// Endpoints are the self-hosted backends, rotated per request.
	Endpoints []string
	// FallbackEndpoint serves requests while the rotation is empty.
	// Empty disables the fallback.
	FallbackEndpoint string

	Timeout      time.Duration
	RequestDelay time.Duration
	MaxRetries   int
	BanThreshold int
	BanDuration  time.Duration
	// Racing is how many endpoints each request is sent to in
	// parallel; the first success wins. Values below one disable it.
	Racing int
}

// Client translates text batches with retry, endpoint rotation, request
// racing and public fallback.
type Client struct {
	cfg      Config
	tracker  *Tracker
	primary  Provider
	fallback Provider
}

func NewClient(cfg Config) *Client {
	hc := &http.Client{Timeout: cfg.Timeout}
	c := &Client{
		cfg:     cfg,
		tracker: NewTracker(cfg.Endpoints, cfg.BanThreshold, cfg.BanDuration),
		primary: NewSugoiProvider(hc),
	}
	if cfg.FallbackEndpoint != "" {
		c.fallback = NewLingvaProvider(hc)
	}
	return c
}

// Tracker exposes endpoint state for status reporting.
func (c *Client) Tracker() *Tracker { return c.tracker }

// TranslateBatch translates texts in one exchange, falling back to one
// request per item, issued in parallel, when the batch fails or comes
// back misaligned. The returned slices are index-aligned with texts;
// errs[i] is non-nil when item i could not be translated at all.
func (c *Client) TranslateBatch(ctx context.Context, texts []string) ([]string, []error) {
	results := make([]string, len(texts))
	errs := make([]error, len(texts))
	if len(texts) == 0 {
		return results, errs
	}

	out, err := c.translateContent(ctx, JoinBatch(texts))
	if err == nil {
		parts := SplitBatch(strings.TrimSpace(out))
		if len(parts) == len(texts) {
			for i, p := range parts {
				results[i] = RestoreNewlines(p)
			}
			return results, errs
		}
		log.Warn().
			Int("want", len(texts)).
			Int("got", len(parts)).
			Msg("Batch came back with wrong item count, retrying items individually")
	} else {
		if ctx.Err() != nil {
			for i := range errs {
				errs[i] = ctx.Err()
			}
			return results, errs
		}
		log.Warn().Err(err).Msg("Batch translation failed, retrying items individually")
	}

	var wg sync.WaitGroup
	for i, t := range texts {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			itemOut, itemErr := c.translateContent(ctx, ProtectNewlines(t))
			if itemErr != nil {
				errs[i] = itemErr
				return
			}
			results[i] = RestoreNewlines(strings.TrimSpace(itemOut))
		}(i, t)
	}
	wg.Wait()
	return results, errs
}

func (c *Client) translateContent(ctx context.Context, content string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBase<<(attempt-1) + time.Duration(rand.Int63n(int64(retryBase)))
			log.Debug().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying translation")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := c.attempt(ctx, content)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var re *RequestError
		if errors.Is(err, ErrNoEndpoints) || (errors.As(err, &re) && !re.Transient()) {
			break
		}
	}
	return "", fmt.Errorf("translation failed: %w", lastErr)
}

// attempt sends content to one or more endpoints. With racing enabled
// the request goes to several endpoints at once and the first success
// cancels the rest.
func (c *Client) attempt(ctx context.Context, content string) (string, error) {
	racing := c.cfg.Racing
	if racing < 1 {
		racing = 1
	}
	eps := c.tracker.PickN(racing)
	if len(eps) == 0 {
		if c.fallback != nil {
			return c.fallbackCall(ctx, content)
		}
		// An all-banned pool lifts its bans instead of refusing the
		// call.
		c.tracker.ResetBans()
		eps = c.tracker.PickN(racing)
		if len(eps) == 0 {
			return "", ErrNoEndpoints
		}
	}
	if len(eps) == 1 {
		return c.call(ctx, eps[0], content)
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	type result struct {
		out string
		err error
	}
	ch := make(chan result, len(eps))
	for _, ep := range eps {
		go func(ep string) {
			out, err := c.call(rctx, ep, content)
			ch <- result{out, err}
		}(ep)
	}
	var lastErr error
	for range eps {
		r := <-ch
		if r.err == nil {
			return r.out, nil
		}
		lastErr = r.err
	}
	return "", lastErr
}

func (c *Client) fallbackCall(ctx context.Context, content string) (string, error) {
	log.Debug().Str("provider", c.fallback.Name()).Msg("All endpoints banned, using fallback")
	return c.fallback.Translate(ctx, c.cfg.FallbackEndpoint, content, c.cfg.Source, c.cfg.Target)
}

func (c *Client) call(ctx context.Context, endpoint, content string) (string, error) {
	if c.cfg.RequestDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.RequestDelay):
		}
	}

	out, err := c.primary.Translate(ctx, endpoint, content, c.cfg.Source, c.cfg.Target)
	if err != nil {
		var re *RequestError
		rateLimited := errors.As(err, &re) && re.RateLimited()
		// Rate limiting is backpressure and a canceled race loser is
		// not the endpoint's fault; neither counts toward a ban.
		if !rateLimited && !errors.Is(err, context.Canceled) {
			c.tracker.Failure(endpoint)
		}
		return "", err
	}
	c.tracker.Success(endpoint)
	return out, nil
}
