// Package browser drives a real browser session for crawling pages that
// need scripts and click-triggered downloads.
package browser

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Profile is the client identity a session presents.
type Profile struct {
	UserAgent string
	Width     int
	Height    int
}

// Link is an anchor on a page. Href is the raw attribute value; URL is the
// resolved absolute target when known.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
	URL  string `json:"-"`
}

// Browser opens sessions.
type Browser interface {
	NewSession(ctx context.Context, p Profile) (Session, error)
}

// Session is one browser tab. Close must be called on every exit path.
type Session interface {
	// Navigate loads url and waits until the document is ready.
	Navigate(ctx context.Context, url string) error
	// Location returns the URL of the loaded document after redirects.
	Location(ctx context.Context) (string, error)
	// Links lists every anchor with an href on the loaded document.
	Links(ctx context.Context) ([]Link, error)
	// Download clicks link and saves the resulting file at dest.
	Download(ctx context.Context, link Link, dest string) error
	Close() error
}

// ProfileSource picks the profile for the next session.
type ProfileSource interface {
	Next() Profile
}

// Viewport is a window size.
type Viewport struct {
	Width, Height int
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(s string) (Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Viewport{}, eris.Errorf("browser: invalid viewport %q", s)
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return Viewport{}, eris.Errorf("browser: invalid viewport %q", s)
	}
	return Viewport{Width: width, Height: height}, nil
}

// DefaultViewport is used when no viewport is configured.
var DefaultViewport = Viewport{Width: 1280, Height: 720}

// RandomProfiles picks a user agent and viewport uniformly at random.
type RandomProfiles struct {
	agents    []string
	viewports []Viewport
	intn      func(n int) int
}

// NewRandomProfiles builds a source from a user-agent pool and "WxH"
// viewport strings. Invalid viewports are rejected.
func NewRandomProfiles(agents []string, viewports []string) (*RandomProfiles, error) {
	rp := &RandomProfiles{agents: agents, intn: rand.IntN}
	for _, s := range viewports {
		v, err := ParseViewport(s)
		if err != nil {
			return nil, err
		}
		rp.viewports = append(rp.viewports, v)
	}
	if len(rp.viewports) == 0 {
		rp.viewports = []Viewport{DefaultViewport}
	}
	return rp, nil
}

func (r *RandomProfiles) Next() Profile {
	v := r.viewports[r.intn(len(r.viewports))]
	p := Profile{Width: v.Width, Height: v.Height}
	if len(r.agents) > 0 {
		p.UserAgent = r.agents[r.intn(len(r.agents))]
	}
	return p
}

// StaticProfile always returns the same profile.
type StaticProfile Profile

func (s StaticProfile) Next() Profile { return Profile(s) }
