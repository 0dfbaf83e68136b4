package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// Renderer fetches a page through headless Chrome so JS-rendered sites
// still yield content. Used only when the static fetch extracted next
// to nothing and rendering is enabled.
type Renderer struct {
	timeout time.Duration
}

// NewRenderer creates a headless-browser renderer.
func NewRenderer(timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{timeout: timeout}
}

// Render navigates to urlStr in headless Chrome and returns the
// post-JS document HTML.
func (r *Renderer) Render(ctx context.Context, urlStr string) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, r.timeout)
	defer cancelTimeout()

	var rendered string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			root, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			rendered, err = dom.GetOuterHTML().WithNodeID(root.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("headless render failed: %w", err)
	}

	log.Printf("🖥️  [SCRAPER] Rendered %s via headless browser (%d bytes)", urlStr, len(rendered))
	return []byte(rendered), nil
}
