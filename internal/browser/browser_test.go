package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViewport(t *testing.T) {
	tests := []struct {
		in      string
		want    Viewport
		wantErr bool
	}{
		{in: "1280x720", want: Viewport{1280, 720}},
		{in: " 1920X1080 ", want: Viewport{1920, 1080}},
		{in: "1280", wantErr: true},
		{in: "0x720", wantErr: true},
		{in: "axb", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseViewport(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRandomProfiles(t *testing.T) {
	rp, err := NewRandomProfiles([]string{"ua-1", "ua-2"}, []string{"1280x720", "1366x768"})
	require.NoError(t, err)

	picks := []int{1, 0}
	rp.intn = func(int) int {
		v := picks[0]
		picks = append(picks[1:], v)
		return v
	}
	assert.Equal(t, Profile{UserAgent: "ua-1", Width: 1366, Height: 768}, rp.Next())
}

func TestRandomProfiles_IndependentDraws(t *testing.T) {
	rp, err := NewRandomProfiles([]string{"ua-1", "ua-2"}, []string{"1280x720", "1366x768", "1920x1080"})
	require.NoError(t, err)

	var bounds []int
	picks := []int{0, 1}
	rp.intn = func(n int) int {
		bounds = append(bounds, n)
		v := picks[0]
		picks = picks[1:]
		return v
	}
	assert.Equal(t, Profile{UserAgent: "ua-2", Width: 1280, Height: 720}, rp.Next())
	assert.Equal(t, []int{3, 2}, bounds, "viewport drawn over 3 sizes, agent over 2 agents")
}

func TestNewChrome_ExecPath(t *testing.T) {
	assert.Empty(t, NewChrome(true).execPath)

	c := NewChrome(false, WithExecPath("/opt/chrome/chrome"))
	assert.Equal(t, "/opt/chrome/chrome", c.execPath)
	assert.False(t, c.headless)
}

func TestRandomProfiles_Defaults(t *testing.T) {
	rp, err := NewRandomProfiles(nil, nil)
	require.NoError(t, err)
	p := rp.Next()
	assert.Empty(t, p.UserAgent)
	assert.Equal(t, DefaultViewport.Width, p.Width)
	assert.Equal(t, DefaultViewport.Height, p.Height)
}

func TestRandomProfiles_InvalidViewport(t *testing.T) {
	_, err := NewRandomProfiles(nil, []string{"big"})
	assert.Error(t, err)
}

func TestStaticProfile(t *testing.T) {
	p := Profile{UserAgent: "ua", Width: 10, Height: 20}
	assert.Equal(t, p, StaticProfile(p).Next())
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "guid")
	require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o644))
	dst := filepath.Join(dir, "out.pdf")

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestOnEvent_NonBlocking(t *testing.T) {
	s := &chromeSession{events: make(chan downloadEvent, 1)}
	s.onEvent(struct{}{})
	assert.Len(t, s.events, 0)
	s.drain()
}

func TestAwaitDownload(t *testing.T) {
	s := &chromeSession{events: make(chan downloadEvent, 4)}
	s.events <- downloadEvent{guid: "g1", began: true}
	s.events <- downloadEvent{guid: "stale", completed: true}
	s.events <- downloadEvent{guid: "g1", completed: true}

	guid, err := s.awaitDownload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "g1", guid)
}

func TestAwaitDownload_Canceled(t *testing.T) {
	s := &chromeSession{events: make(chan downloadEvent, 4)}
	s.events <- downloadEvent{guid: "g1", began: true}
	s.events <- downloadEvent{guid: "g1", canceled: true}

	_, err := s.awaitDownload(context.Background())
	assert.Error(t, err)
}

func TestAwaitDownload_ContextDone(t *testing.T) {
	s := &chromeSession{events: make(chan downloadEvent)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.awaitDownload(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
