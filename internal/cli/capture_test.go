package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/config"
)

func TestCapturePages(t *testing.T) {
	cfg := config.Default()
	cfg.Pages = []config.PageConfig{{URL: "https://a.example/"}, {URL: "https://b.example/", Label: "b"}}

	assert.Equal(t, []string{"https://c.example/"}, capturePages([]string{"https://c.example/"}, cfg))
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, capturePages(nil, cfg))
	assert.Empty(t, capturePages(nil, config.Default()))
}

func TestCaptureBrowserConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.Stealth = true
	cfg.Registration.Enabled = false

	bc := (&CaptureOptions{}).browserConfig(cfg)
	assert.True(t, bc.Headless)
	assert.True(t, bc.Stealth)
	assert.False(t, bc.Registration)
	assert.Equal(t, cfg.Registration.Marker, bc.Marker)
	assert.Equal(t, 30*time.Second, bc.NavigationTimeout)
	assert.Empty(t, bc.Remote)

	bc = (&CaptureOptions{Headful: true, Remote: "ws://127.0.0.1:9222/devtools/browser/x"}).browserConfig(cfg)
	assert.False(t, bc.Headless)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", bc.Remote)
}

func TestCapture_NoPages(t *testing.T) {
	_, err := execute(t, "capture")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no pages to capture")
}
