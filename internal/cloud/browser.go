package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// BrowserLoginTimeout bounds the whole headless login flow.
const BrowserLoginTimeout = 90 * time.Second

// LoginWithBrowser drives the SSO login form in a headless browser and copies
// the session cookies into the client's jar. This covers identity providers
// that render their login form with JavaScript, where the plain form-scraping
// flow sees an empty page. Requires Chrome/Chromium on the system.
func (c *Client) LoginWithBrowser(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, BrowserLoginTimeout)
	defer cancel()

	var cookies []*http.Cookie
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(c.baseURL),
		chromedp.WaitVisible(`input[name="username"], input[name="user"]`, chromedp.ByQueryAll),
		chromedp.SendKeys(`input[name="username"], input[name="user"]`, c.username, chromedp.ByQueryAll),
		chromedp.SendKeys(`input[name="password"]`, c.password, chromedp.ByQuery),
		chromedp.Submit(`input[name="password"]`, chromedp.ByQuery),
		// Give the provider time to redirect back to the server.
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			browserCookies, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, bc := range browserCookies {
				cookies = append(cookies, &http.Cookie{
					Name:   bc.Name,
					Value:  bc.Value,
					Path:   bc.Path,
					Domain: bc.Domain,
				})
			}
			return nil
		}),
	)
	if err != nil {
		return &RequestError{Op: "browser login", Path: "/", Message: "headless login failed", Cause: err}
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid server address %q: %w", c.baseURL, err)
	}
	c.httpClient.Jar.SetCookies(base, cookies)

	return c.Probe(ctx)
}
