// Package snapshot captures a PNG of a rendered results page with a headless
// Chromium driven by Playwright.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kamilpajak/radiolens/internal/results"
	"github.com/kamilpajak/radiolens/internal/server"
	"github.com/playwright-community/playwright-go"
)

// ErrNotInstalled is returned by Report when the driver or browser is missing.
var ErrNotInstalled = errors.New("playwright not installed, run: radiolens install-browser")

// Viewport size of the captured page.
const (
	viewportWidth  = 1280
	viewportHeight = 900
)

// Screenshot opens url in a headless browser and returns a full-page PNG.
func Screenshot(url string) ([]byte, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	if _, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return nil, fmt.Errorf("could not navigate: %w", err)
	}

	if err := page.Locator("#results").WaitFor(); err != nil {
		return nil, fmt.Errorf("results not rendered: %w", err)
	}

	png, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("could not capture screenshot: %w", err)
	}
	return png, nil
}

// Report renders v as a standalone page, serves it locally and returns a PNG
// of it.
func Report(v results.View) ([]byte, error) {
	if !IsAvailable() {
		return nil, ErrNotInstalled
	}

	var page bytes.Buffer
	if err := results.RenderPage(&page, v); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	srv, err := server.Start(page.Bytes(), "index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}
	defer srv.Stop()

	png, err := Screenshot(srv.URL("index.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return png, nil
}

// IsAvailable checks if the Playwright driver and browsers are installed.
func IsAvailable() bool {
	pw, err := playwright.Run()
	if err != nil {
		return false
	}
	pw.Stop()
	return true
}

// Install installs the Playwright driver and Chromium.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}
