// Package honeypot implements the honeytoken trap: decoy paths that no
// legitimate user ever reaches, advertised only through the sitemap and
// robots.txt. Any visit marks the identity as an attacker and records an
// alert.
package honeypot

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/middleware"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
)

// DefaultAlertCap is the maximum number of retained alerts.
const DefaultAlertCap = 500

// DefaultDecoyPaths is the built-in decoy set: paths that scanners probe
// for but the site never serves. The set is data, not code; deployments
// can replace it from config without touching trap handling.
var DefaultDecoyPaths = []string{
	"/wp-login.php",
	"/wp-admin/setup-config.php",
	"/.env",
	"/.git/config",
	"/admin/config.bak",
	"/backup.sql",
	"/phpmyadmin/index.php",
	"/cgi-bin/test.cgi",
	"/api/internal/debug",
	"/old/site.zip",
}

// Blocklister marks identities as blocked. Satisfied by gate.Gate.
type Blocklister interface {
	Block(ctx context.Context, hashedIdentity string, ttl time.Duration) error
}

// Alert is one trap trigger, stored as JSON in a capped list.
type Alert struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Identity  string    `json:"identity"`
	UserAgent string    `json:"user_agent"`
}

// Config holds trap settings.
type Config struct {
	// DecoyPaths is the decoy set. Empty means DefaultDecoyPaths.
	DecoyPaths []string
	// BlockTTL bounds how long a triggering identity stays blocked.
	// Zero means permanent until manually cleared.
	BlockTTL time.Duration
	// AlertCap bounds the retained alert list. Zero means DefaultAlertCap.
	AlertCap int64
	// BaseURL is the site's absolute base for sitemap entries,
	// e.g. "https://example.com".
	BaseURL string
	// MaxDelay bounds the randomized entropy delay added before the decoy
	// response. Zero means 1200ms. Tests set this to a small value.
	MaxDelay time.Duration
}

// Trap serves the honeytoken surface and handles triggers.
type Trap struct {
	store     store.Store
	hasher    *identity.Hasher
	blocklist Blocklister
	metrics   *middleware.Metrics
	decoys    map[string]bool
	decoyList []string
	blockTTL  time.Duration
	alertCap  int64
	baseURL   string
	maxDelay  time.Duration
	now       func() time.Time
	sleep     func(time.Duration)
}

// New creates a Trap. metrics may be nil.
func New(s store.Store, hasher *identity.Hasher, blocklist Blocklister, metrics *middleware.Metrics, cfg Config) *Trap {
	paths := cfg.DecoyPaths
	if len(paths) == 0 {
		paths = DefaultDecoyPaths
	}
	decoys := make(map[string]bool, len(paths))
	list := make([]string, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if !decoys[p] {
			decoys[p] = true
			list = append(list, p)
		}
	}

	alertCap := cfg.AlertCap
	if alertCap <= 0 {
		alertCap = DefaultAlertCap
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 1200 * time.Millisecond
	}

	return &Trap{
		store:     s,
		hasher:    hasher,
		blocklist: blocklist,
		metrics:   metrics,
		decoys:    decoys,
		decoyList: list,
		blockTTL:  cfg.BlockTTL,
		alertCap:  alertCap,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxDelay:  maxDelay,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// SetClock replaces the trap's clock. Test helper.
func (t *Trap) SetClock(now func() time.Time) {
	t.now = now
}

// IsDecoy reports whether path belongs to the decoy set.
func (t *Trap) IsDecoy(path string) bool {
	return t.decoys[path]
}

// DecoyPaths returns the decoy set in load order.
func (t *Trap) DecoyPaths() []string {
	out := make([]string, len(t.decoyList))
	copy(out, t.decoyList)
	return out
}

// ServeTrap handles a request to a decoy path. It blocks the identity,
// records an alert, wastes the caller's time with a randomized delay, and
// replies 403 with an HTML body full of further decoy links.
//
// Storage failures are logged and swallowed: the forbidden response is
// returned no matter what.
func (t *Trap) ServeTrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hashedIdentity := t.hasher.FromRequest(r)

	if t.metrics != nil {
		t.metrics.IncHoneypotTriggers(r.URL.Path)
	}

	if err := t.blocklist.Block(ctx, hashedIdentity, t.blockTTL); err != nil {
		slog.ErrorContext(ctx, "honeypot failed to blocklist identity", "error", err)
	}

	alert := Alert{
		Key:       r.URL.Path,
		Timestamp: t.now().UTC(),
		Identity:  hashedIdentity,
		UserAgent: r.UserAgent(),
	}
	if payload, err := json.Marshal(alert); err == nil {
		if err := t.store.PushCapped(ctx, store.KeyHoneypotAlerts, string(payload), t.alertCap); err != nil {
			slog.ErrorContext(ctx, "honeypot failed to record alert", "error", err)
		}
	}

	slog.WarnContext(ctx, "honeytoken triggered",
		"path", r.URL.Path,
		"identity", hashedIdentity,
		"user_agent", r.UserAgent(),
	)

	t.entropyDelay()
	t.decoyHeaders(w)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprint(w, t.decoyBody())
}

// Alerts returns up to limit most-recent alerts, newest first. Entries
// that fail to decode are skipped.
func (t *Trap) Alerts(ctx context.Context, limit int64) ([]Alert, error) {
	if limit <= 0 || limit > t.alertCap {
		limit = t.alertCap
	}
	raw, err := t.store.List(ctx, store.KeyHoneypotAlerts, 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	alerts := make([]Alert, 0, len(raw))
	for _, v := range raw {
		var a Alert
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// ServeSitemap serves a syntactically valid XML sitemap listing only decoy
// URLs. Legitimate pages are deliberately absent; anything that crawls
// this document and follows a link self-identifies.
func (t *Trap) ServeSitemap(w http.ResponseWriter, r *http.Request) {
	type sitemapURL struct {
		Loc string `xml:"loc"`
	}
	type urlset struct {
		XMLName xml.Name     `xml:"urlset"`
		Xmlns   string       `xml:"xmlns,attr"`
		URLs    []sitemapURL `xml:"url"`
	}

	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range t.decoyList {
		set.URLs = append(set.URLs, sitemapURL{Loc: t.baseURL + p})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	fmt.Fprint(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode sitemap", "error", err)
	}
}

// ServeRobots serves a robots.txt disallowing the decoy family. Compliant
// crawlers never touch the traps; anything that does was ignoring the
// rules.
func (t *Trap) ServeRobots(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, p := range t.decoyList {
		b.WriteString("Disallow: " + p + "\n")
	}
	b.WriteString("Disallow: /api/\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, b.String())
}

// entropyDelay sleeps a random duration to slow automated crawlers and
// blur response-time fingerprints.
func (t *Trap) entropyDelay() {
	min := t.maxDelay / 4
	t.sleep(min + rand.N(t.maxDelay-min))
}

// decoyHeaders sets headers mimicking a sloppy legacy PHP deployment so
// scanners waste time probing for software the site does not run.
func (t *Trap) decoyHeaders(w http.ResponseWriter) {
	w.Header().Set("Server", "Apache/2.4.29 (Ubuntu)")
	w.Header().Set("X-Powered-By", "PHP/7.2.34")
	w.Header().Set("X-Cache", fmt.Sprintf("MISS from cache-%02d", rand.N(32)))
	w.Header().Set("Retry-After", fmt.Sprintf("%d", 30+rand.N(90)))
}

// decoyBody returns HTML linking to more decoy paths to keep simplistic
// recursive crawlers occupied instead of learning they were detected.
func (t *Trap) decoyBody() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>403 Forbidden</title></head><body>\n")
	b.WriteString("<h1>Forbidden</h1>\n<p>You don't have permission to access this resource.</p>\n<ul>\n")
	for _, p := range t.decoyList {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", p, p)
	}
	b.WriteString("</ul>\n<hr><address>Apache/2.4.29 (Ubuntu) Server</address>\n</body></html>\n")
	return b.String()
}
