package rod

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fwojciec/lpscrape"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// DefaultMaxPages is the default number of pages before browser recycling.
const DefaultMaxPages = 75

const windowSizeFlag flags.Flag = "window-size"

// DefaultMaxConcurrent is the default number of simultaneous leases.
const DefaultMaxConcurrent = 4

// BrowserPool shares one Chrome process between concurrent fetches. Each
// lease gets its own incognito context, so pages never share cookies or
// storage. Chrome accumulates memory over time, so the process is replaced
// after maxPages leases, and immediately when a lease reports it broken.
// A replaced browser is closed once its last lease is released.
//
// BrowserPool is safe for concurrent use.
type BrowserPool struct {
	maxPages int64
	sem      chan struct{}
	headless bool
	extra    map[flags.Flag]string
	logger   *slog.Logger

	mu      sync.Mutex
	current *generation
	nextID  int
	closed  bool
}

// generation is one launched browser process.
type generation struct {
	id       int
	browser  *rod.Browser
	launcher *launcher.Launcher
	pages    int64
	active   int
	retired  bool
}

// PoolOption configures a BrowserPool.
type PoolOption func(*BrowserPool)

// WithMaxPages sets the maximum number of pages before the browser is recycled.
// Defaults to 75 if not specified.
func WithMaxPages(n int64) PoolOption {
	return func(p *BrowserPool) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithMaxConcurrent bounds the number of pages open at once.
func WithMaxConcurrent(n int) PoolOption {
	return func(p *BrowserPool) {
		if n > 0 {
			p.sem = make(chan struct{}, n)
		}
	}
}

// WithHeadless toggles headless mode. Headless is the default.
func WithHeadless(enabled bool) PoolOption {
	return func(p *BrowserPool) {
		p.headless = enabled
	}
}

// WithWindowSize sets the browser window size.
func WithWindowSize(width, height int) PoolOption {
	return func(p *BrowserPool) {
		p.extra[windowSizeFlag] = fmt.Sprintf("%d,%d", width, height)
	}
}

// WithPoolLogger sets the logger used for browser lifecycle events.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *BrowserPool) {
		p.logger = logger
	}
}

// NewBrowserPool creates a BrowserPool and launches its first browser.
// Close must be called when the pool is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewBrowserPool(opts ...PoolOption) (*BrowserPool, error) {
	p := &BrowserPool{
		maxPages: DefaultMaxPages,
		sem:      make(chan struct{}, DefaultMaxConcurrent),
		headless: true,
		extra: map[flags.Flag]string{
			windowSizeFlag: fmt.Sprintf("%d,%d", DefaultViewportWidth, DefaultViewportHeight),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	gen, err := p.launch()
	if err != nil {
		return nil, err
	}
	p.current = gen
	return p, nil
}

// Lease is exclusive use of an incognito browser context.
// Release must be called exactly once when the page work is done.
type Lease struct {
	// Browser is the incognito context for this lease.
	Browser *rod.Browser

	pool *BrowserPool
	gen  *generation
	once sync.Once
}

// Acquire waits for a free slot and returns a lease on a fresh incognito
// context. It recycles the browser first when it has served maxPages pages.
func (p *BrowserPool) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	gen, err := p.checkout()
	if err != nil {
		<-p.sem
		return nil, err
	}

	incognito, err := gen.browser.Incognito()
	if err != nil {
		p.release(gen, true)
		return nil, fmt.Errorf("creating incognito context: %w", err)
	}
	return &Lease{Browser: incognito, pool: p, gen: gen}, nil
}

// Release disposes the incognito context and returns the slot. Pass broken
// when the browser misbehaved so that it is replaced before the next lease.
func (l *Lease) Release(broken bool) {
	l.once.Do(func() {
		_ = l.Browser.Close()
		l.pool.release(l.gen, broken)
	})
}

func (p *BrowserPool) checkout() (*generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, lpscrape.Errorf(lpscrape.EINVALID, "browser pool closed")
	}

	if p.current == nil || p.current.pages >= p.maxPages {
		if err := p.recycleLocked(); err != nil {
			return nil, err
		}
	}

	gen := p.current
	gen.pages++
	gen.active++
	return gen, nil
}

func (p *BrowserPool) release(gen *generation, broken bool) {
	p.mu.Lock()
	gen.active--
	if broken && gen == p.current {
		p.logger.Warn("browser marked broken", "generation", gen.id)
		gen.retired = true
		p.current = nil
	}
	if gen.retired && gen.active == 0 {
		p.closeGeneration(gen)
	}
	p.mu.Unlock()

	<-p.sem
}

// recycleLocked launches a fresh browser and retires the current one.
// If launching fails, a healthy current browser is kept.
// Must be called with mu held.
func (p *BrowserPool) recycleLocked() error {
	gen, err := p.launch()
	if err != nil {
		if p.current != nil {
			p.logger.Warn("browser recycle failed, keeping current browser", "err", err)
			return nil
		}
		return err
	}

	if old := p.current; old != nil {
		old.retired = true
		if old.active == 0 {
			p.closeGeneration(old)
		}
	}
	p.current = gen
	return nil
}

// launch starts a new browser instance with stealth and stability flags.
func (p *BrowserPool) launch() (*generation, error) {
	lnchr := launcher.New().
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(p.headless)
	for name, value := range p.extra {
		lnchr = lnchr.Set(name, value)
	}

	u, err := lnchr.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	p.nextID++
	p.logger.Info("browser launched", "generation", p.nextID, "pid", lnchr.PID())
	return &generation{id: p.nextID, browser: browser, launcher: lnchr}, nil
}

// closeGeneration shuts down a browser and its launcher.
func (p *BrowserPool) closeGeneration(gen *generation) {
	if gen.browser != nil {
		_ = gen.browser.Close()
		gen.browser = nil
	}
	if gen.launcher != nil {
		gen.launcher.Kill()
		gen.launcher = nil
	}
	p.logger.Info("browser closed", "generation", gen.id, "pages", gen.pages)
}

// Close releases browser resources. Leases still held keep their browser
// until they are released. Close is safe to call multiple times.
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if gen := p.current; gen != nil {
		gen.retired = true
		if gen.active == 0 {
			p.closeGeneration(gen)
		}
		p.current = nil
	}
	return nil
}

// Generation returns the number of browsers launched so far.
// This method exists for testing purposes to verify recycling.
func (p *BrowserPool) Generation() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextID
}

// LauncherPID returns the process ID of the current browser launcher.
// This method exists for testing purposes to verify proper cleanup.
func (p *BrowserPool) LauncherPID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.launcher == nil {
		return 0
	}
	return p.current.launcher.PID()
}
