// Package discovery harvests raw proxy candidates from the web: it searches
// for public proxy lists, follows every result link and collects each
// non-empty line of the fetched bodies.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"golang.org/x/time/rate"

	"github.com/August26/proxyscout/internal/logging"
	"github.com/August26/proxyscout/internal/model"
	"github.com/August26/proxyscout/internal/parser"
	"github.com/August26/proxyscout/internal/progress"
)

const (
	DefaultSearchURL    = "https://www.google.com/search?q=%s"
	DefaultFetchTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// ErrAlreadyStarted is returned when Start is called on a used session.
var ErrAlreadyStarted = errors.New("discovery session already started")

// State is the lifecycle of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is what a session hands back once it stops running.
type Result struct {
	State      State
	Candidates []string
	Links      int   // source links found by the search
	Processed  int   // source links visited
	Err        error // set when State is StateFailed
}

// Observer receives progress of a session. Calls come from the session
// goroutine only.
type Observer interface {
	progress.Reporter
	OnCompleted(Result)
}

// Session is one cancellable discovery run.
type Session struct {
	protocol     model.Protocol
	obs          Observer
	client       *http.Client
	searchURL    string
	fetchTimeout time.Duration
	limiter      *rate.Limiter
	userAgent    string
	log          *slog.Logger

	stopped atomic.Bool

	mu     sync.Mutex
	state  State
	done   chan struct{}
	result Result
}

type Option func(*Session)

// WithHTTPClient replaces the client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithSearchURL sets the search endpoint; %s receives the escaped query.
func WithSearchURL(u string) Option {
	return func(s *Session) {
		if u != "" {
			s.searchURL = u
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithRate limits link fetches to perSecond; zero or less means unlimited.
func WithRate(perSecond float64) Option {
	return func(s *Session) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithUserAgent fixes the User-Agent header instead of a random one.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New returns an idle session for protocol.
func New(protocol model.Protocol, obs Observer, opts ...Option) *Session {
	s := &Session{
		protocol:     protocol,
		obs:          obs,
		client:       &http.Client{},
		searchURL:    DefaultSearchURL,
		fetchTimeout: DefaultFetchTimeout,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		log:          logging.Discard(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if s.userAgent == "" {
		s.userAgent = uarand.GetRandom()
	}
	s.log = s.log.With("component", "discovery", "protocol", protocol)
	return s
}

// Start moves the session to Running and works in a new goroutine.
func (s *Session) Start(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	go s.run(ctx)
	return nil
}

// Run is the blocking form of Start followed by Wait.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if err := s.begin(); err != nil {
		return Result{}, err
	}
	s.run(ctx)
	return s.Wait(), nil
}

// Stop asks the session to end. It is observed before the next link is
// fetched; a fetch already in flight finishes first.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// Wait blocks until the session has stopped running.
func (s *Session) Wait() Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Done is closed once the session has stopped running.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	return nil
}

func (s *Session) cancelled(ctx context.Context) bool {
	return s.stopped.Load() || ctx.Err() != nil
}

func (s *Session) run(ctx context.Context) {
	res := s.collect(ctx)

	s.mu.Lock()
	s.state = res.State
	s.result = res
	s.mu.Unlock()

	s.log.Info("discovery finished",
		"state", res.State.String(),
		"links", res.Links,
		"processed", res.Processed,
		"candidates", len(res.Candidates),
	)
	s.obs.OnCompleted(res)
	close(s.done)
}

func (s *Session) collect(ctx context.Context) Result {
	query := fmt.Sprintf("free %s proxy list", s.protocol)
	searchURL := s.searchURL
	if strings.Contains(searchURL, "%s") {
		searchURL = fmt.Sprintf(searchURL, url.QueryEscape(query))
	}

	links, err := s.search(ctx, searchURL)
	if err != nil {
		err = fmt.Errorf("search: %w", err)
		s.obs.OnProgress(fmt.Sprintf("Failed to perform dynamic search: %v", err))
		s.log.Error("search failed", "url", searchURL, "err", err)
		return Result{State: StateFailed, Err: err}
	}
	s.log.Info("search finished", "links", len(links))

	res := Result{State: StateCompleted, Links: len(links)}
	for i, link := range links {
		if s.cancelled(ctx) {
			res.State = StateCancelled
			return res
		}
		if err := s.limiter.Wait(ctx); err != nil {
			res.State = StateCancelled
			return res
		}

		lines, err := s.fetch(ctx, link)
		if s.cancelled(ctx) {
			// stopped while this fetch was in flight: drop its lines
			res.State = StateCancelled
			return res
		}
		if err != nil {
			s.obs.OnProgress(fmt.Sprintf("Failed to fetch from %s: %v", link, err))
			s.log.Debug("fetch failed", "link", link, "err", err)
		} else {
			res.Candidates = append(res.Candidates, lines...)
			s.obs.OnProgress(fmt.Sprintf("Fetched proxies from %s", link))
		}
		res.Processed = i + 1
		s.obs.OnProgressCount(i+1, len(links))
	}
	return res
}

func (s *Session) get(ctx context.Context, rawURL string) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, cancel, nil
}

// search returns the distinct result links of the search page.
func (s *Session) search(ctx context.Context, searchURL string) ([]string, error) {
	resp, cancel, err := s.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return extractLinks(doc, resp.Request.URL), nil
}

// extractLinks keeps anchors whose href mentions http. Google result links
// of the form /url?q=<target> are unwrapped to their target.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.Contains(href, "http") {
			return
		}

		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Path == "/url" {
			if q := u.Query().Get("q"); strings.HasPrefix(q, "http") {
				if target, err := url.Parse(q); err == nil {
					u = target
				}
			}
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}

		link := u.String()
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// fetch returns the non-empty lines of link's body.
func (s *Session) fetch(ctx context.Context, link string) ([]string, error) {
	resp, cancel, err := s.get(ctx, link)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	return parser.Lines(io.LimitReader(resp.Body, maxBodyBytes))
}

type nopObserver struct {
	progress.Nop
}

func (nopObserver) OnCompleted(Result) {}
