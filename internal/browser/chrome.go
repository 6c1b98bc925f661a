package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const linksScript = `Array.from(document.querySelectorAll('a[href]')).map(a => ({
	text: (a.innerText || a.textContent || '').trim(),
	href: a.getAttribute('href') || ''
}))`

// clickScript clicks the first anchor whose raw href equals the argument.
const clickScript = `((href) => {
	const a = Array.from(document.querySelectorAll('a[href]')).find(a => a.getAttribute('href') === href);
	if (!a) return false;
	a.removeAttribute('target');
	a.click();
	return true;
})(%s)`

// Chrome launches headless Chrome through the DevTools protocol.
type Chrome struct {
	headless bool
	execPath string
}

// ChromeOption configures Chrome.
type ChromeOption func(*Chrome)

// WithExecPath overrides browser discovery.
func WithExecPath(path string) ChromeOption {
	return func(c *Chrome) { c.execPath = path }
}

// NewChrome creates a Chrome launcher.
func NewChrome(headless bool, opts ...ChromeOption) *Chrome {
	c := &Chrome{headless: headless}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewSession starts a browser process with profile p. The process lives
// until Close; ctx bounds startup only.
func (c *Chrome) NewSession(ctx context.Context, p Profile) (Session, error) {
	downloadDir, err := os.MkdirTemp("", "lexaudit-dl-")
	if err != nil {
		return nil, eris.Wrap(err, "browser: create download dir")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.WindowSize(p.Width, p.Height),
	)
	if p.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.UserAgent))
	}
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:         tabCtx,
		downloadDir: downloadDir,
		events:      make(chan downloadEvent, 16),
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run allocates the browser and binds it to the context it is
	// given, so it must be the session context rather than a derived one.
	stop := context.AfterFunc(ctx, s.cancel)
	err = chromedp.Run(tabCtx)
	stop()
	if err != nil {
		s.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	start := []chromedp.Action{
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	}
	if p.Width > 0 && p.Height > 0 {
		start = append(start, chromedp.EmulateViewport(int64(p.Width), int64(p.Height)))
	}
	if err := s.run(ctx, start...); err != nil {
		s.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	zap.L().Debug("browser: session started",
		zap.String("user_agent", p.UserAgent),
		zap.Int("width", p.Width),
		zap.Int("height", p.Height),
	)
	return s, nil
}

type downloadEvent struct {
	guid      string
	began     bool
	completed bool
	canceled  bool
}

type chromeSession struct {
	ctx         context.Context
	cancel      func()
	downloadDir string
	events      chan downloadEvent
	closeOnce   sync.Once
}

func (s *chromeSession) onEvent(ev any) {
	var de downloadEvent
	switch ev := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		de = downloadEvent{guid: ev.GUID, began: true}
	case *cdpbrowser.EventDownloadProgress:
		switch ev.State {
		case cdpbrowser.DownloadProgressStateCompleted:
			de = downloadEvent{guid: ev.GUID, completed: true}
		case cdpbrowser.DownloadProgressStateCanceled:
			de = downloadEvent{guid: ev.GUID, canceled: true}
		default:
			return
		}
	default:
		return
	}
	select {
	case s.events <- de:
	default:
	}
}

// run executes actions on the tab, aborting when ctx is done.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: location")
	}
	return loc, nil
}

func (s *chromeSession) Links(ctx context.Context) ([]Link, error) {
	var links []Link
	if err := s.run(ctx, chromedp.Evaluate(linksScript, &links)); err != nil {
		return nil, eris.Wrap(err, "browser: list links")
	}
	return links, nil
}

func (s *chromeSession) Download(ctx context.Context, link Link, dest string) error {
	s.drain()

	arg, err := json.Marshal(link.Href)
	if err != nil {
		return eris.Wrap(err, "browser: encode href")
	}
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickScript, string(arg)), &clicked)); err != nil {
		return eris.Wrapf(err, "browser: click %s", link.Href)
	}
	if !clicked {
		return eris.Errorf("browser: anchor %q not on page", link.Href)
	}

	guid, err := s.awaitDownload(ctx)
	if err != nil {
		return eris.Wrapf(err, "browser: download %s", link.Href)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "browser: create destination dir")
	}
	if err := moveFile(filepath.Join(s.downloadDir, guid), dest); err != nil {
		return eris.Wrapf(err, "browser: save %s", dest)
	}
	return nil
}

// awaitDownload waits for the first download that begins after the click
// to finish and returns its GUID.
func (s *chromeSession) awaitDownload(ctx context.Context) (string, error) {
	var guid string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev := <-s.events:
			switch {
			case ev.began && guid == "":
				guid = ev.guid
			case ev.guid != guid:
			case ev.completed:
				return guid, nil
			case ev.canceled:
				return "", eris.New("download canceled")
			}
		}
	}
}

func (s *chromeSession) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = os.RemoveAll(s.downloadDir)
	})
	return err
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
