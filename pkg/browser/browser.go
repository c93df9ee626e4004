// Package browser abstracts the remote browsing session behind a small
// capability surface. The traversal and harvest layers never hold a raw
// driver handle; they get bounded-wait operations that a test fake can
// implement without a browser.
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Session is one browser tab. Every operation is bounded by the session's
// wait budget and honors caller cancellation; timeouts surface as
// context.DeadlineExceeded so callers can tell benign expiry from breakage.
type Session interface {
	// Navigate loads a URL in this tab.
	Navigate(ctx context.Context, url string) error
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// WaitReady blocks until the selector matches an element in the DOM.
	WaitReady(ctx context.Context, selector string) error
	// Click dispatches a JS click on the first match.
	Click(ctx context.Context, selector string) error
	// HTML returns the outer HTML of the first match.
	HTML(ctx context.Context, selector string) (string, error)
	// Eval runs a JS expression and unmarshals its JSON result into out.
	Eval(ctx context.Context, js string, out any) error
	// Poll re-evaluates a JS expression until it is truthy.
	Poll(ctx context.Context, js string) error
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// NewTab opens url in a new, isolated tab. The receiver tab's state
	// (scroll, pagination cursor) is untouched.
	NewTab(ctx context.Context, url string) (Session, error)
	// Close tears the tab down. Safe on every exit path.
	Close() error
}

// NavigationError is fatal: a structurally required element never appeared
// within the wait budget. Snapshot names the diagnostic screenshot written
// for the operator, when one could be captured.
type NavigationError struct {
	Step     string
	Snapshot string
	Err      error
}

func (e *NavigationError) Error() string {
	if e.Snapshot != "" {
		return fmt.Sprintf("navigation failed at %s (snapshot: %s): %v", e.Step, e.Snapshot, e.Err)
	}
	return fmt.Sprintf("navigation failed at %s: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a bounded wait expiring, whether the
// session budget ran out or the driver's in-page poll timer fired first.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chromedp.ErrPollingTimeout)
}
