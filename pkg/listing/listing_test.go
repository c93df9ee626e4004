package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chromedp/chromedp"

	"github.com/dtnitsch/tadawul-harvest/models"
	"github.com/dtnitsch/tadawul-harvest/pkg/browser"
)

// fakeSession scripts the browser surface: waits fail per selector, HTML and
// eval results come from canned values, and every click is recorded.
type fakeSession struct {
	waitErr  map[string]error
	htmlBy   map[string]string
	htmlErr  error
	probe    nextProbe
	probeErr error
	page     string
	pollErrs []error
	shot     []byte
	shotErr  error

	clicks []string
	polls  int
	marks  int
}

func (f *fakeSession) Navigate(context.Context, string) error { return nil }
func (f *fakeSession) Title(context.Context) (string, error)  { return "", nil }
func (f *fakeSession) Close() error                           { return nil }

func (f *fakeSession) WaitReady(_ context.Context, selector string) error {
	return f.waitErr[selector]
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeSession) HTML(_ context.Context, selector string) (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return f.htmlBy[selector], nil
}

func (f *fakeSession) Eval(_ context.Context, js string, out any) error {
	switch {
	case strings.Contains(js, "__harvestMark = true"):
		f.marks++
		return nil
	case strings.Contains(js, "found:"):
		if f.probeErr != nil {
			return f.probeErr
		}
		*(out.(*nextProbe)) = f.probe
		return nil
	case strings.Contains(js, "getAttribute"):
		*(out.(*string)) = f.page
		return nil
	}
	return fmt.Errorf("unexpected eval: %s", js)
}

func (f *fakeSession) Poll(_ context.Context, _ string) error {
	f.polls++
	if len(f.pollErrs) == 0 {
		return nil
	}
	err := f.pollErrs[0]
	f.pollErrs = f.pollErrs[1:]
	return err
}

func (f *fakeSession) Screenshot(context.Context) ([]byte, error) {
	if f.shotErr != nil {
		return nil, f.shotErr
	}
	return f.shot, nil
}

func (f *fakeSession) NewTab(context.Context, string) (browser.Session, error) {
	return nil, errors.New("fakeSession does not open tabs")
}

const listingURL = "https://www.saudiexchange.sa/wps/portal/announcements"

func newTestController(t *testing.T, sess *fakeSession) *Controller {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "snapshot.png")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctl, err := NewController(sess, cfg, listingURL, logger)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctl
}

func TestApplyTimeWindowFilter(t *testing.T) {
	sess := &fakeSession{}
	ctl := newTestController(t, sess)

	if err := ctl.ApplyTimeWindowFilter(context.Background(), "1D"); err != nil {
		t.Fatalf("ApplyTimeWindowFilter() error = %v", err)
	}
	if len(sess.clicks) != 1 || sess.clicks[0] != "#1D" {
		t.Errorf("clicks = %v, want [#1D]", sess.clicks)
	}
}

func TestApplyTimeWindowFilterTimeout(t *testing.T) {
	sess := &fakeSession{
		waitErr: map[string]error{"#1D": context.DeadlineExceeded},
		shot:    []byte("png-bytes"),
	}
	ctl := newTestController(t, sess)

	err := ctl.ApplyTimeWindowFilter(context.Background(), "1D")
	if err == nil {
		t.Fatal("ApplyTimeWindowFilter() error = nil, want NavigationError")
	}

	var navErr *browser.NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("error = %v, want *browser.NavigationError", err)
	}
	if navErr.Step != "filter activation" {
		t.Errorf("Step = %q, want %q", navErr.Step, "filter activation")
	}
	if navErr.Snapshot == "" {
		t.Fatal("Snapshot path is empty")
	}
	data, readErr := os.ReadFile(navErr.Snapshot)
	if readErr != nil {
		t.Fatalf("failed to read snapshot: %v", readErr)
	}
	if string(data) != "png-bytes" {
		t.Errorf("snapshot content = %q, want %q", data, "png-bytes")
	}
	if len(sess.clicks) != 0 {
		t.Errorf("clicks = %v, want none after failed wait", sess.clicks)
	}
}

const containerHTML = `<div id="announcementResultsDivId">
	<a href="/news/1"><li><h2> Co X announces Y </h2><div class="date">2024-01-01</div></li></a>
	<a href="https://other.example/abs"><li><h2>Second item</h2><div class="date">2024-01-02</div></li></a>
	<a href="/news/3"><li><h2>No date row</h2></li></a>
	<li><h2>No anchor row</h2><div class="date">2024-01-03</div></li>
</div>`

func TestCurrentPageItems(t *testing.T) {
	sess := &fakeSession{
		htmlBy: map[string]string{"#announcementResultsDivId": containerHTML},
	}
	ctl := newTestController(t, sess)

	items, err := ctl.CurrentPageItems(context.Background())
	if err != nil {
		t.Fatalf("CurrentPageItems() error = %v", err)
	}

	want := []models.ListingItem{
		{Date: "2024-01-01", Title: "Co X announces Y", URL: "https://www.saudiexchange.sa/news/1"},
		{Date: "2024-01-02", Title: "Second item", URL: "https://other.example/abs"},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(items), len(want), items)
	}
	for i, item := range items {
		if item != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, item, want[i])
		}
	}
}

func TestCurrentPageItemsTimeout(t *testing.T) {
	sess := &fakeSession{
		waitErr: map[string]error{"#announcementResultsDivId li": context.DeadlineExceeded},
	}
	ctl := newTestController(t, sess)

	items, err := ctl.CurrentPageItems(context.Background())
	if err != nil {
		t.Fatalf("CurrentPageItems() error = %v, want nil on empty page", err)
	}
	if items != nil {
		t.Errorf("items = %+v, want nil", items)
	}
}

func TestAdvancePage(t *testing.T) {
	tests := []struct {
		name      string
		probe     nextProbe
		probeErr  error
		pollErrs  []error
		want      bool
		wantErr   bool
		wantClick bool
	}{
		{
			name:  "control absent",
			probe: nextProbe{Found: false},
			want:  false,
		},
		{
			name:  "control disabled",
			probe: nextProbe{Found: true, Class: "px-btn disable"},
			want:  false,
		},
		{
			name:      "advances",
			probe:     nextProbe{Found: true, Class: "px-btn"},
			want:      true,
			wantClick: true,
		},
		{
			name:      "refresh wait expires",
			probe:     nextProbe{Found: true, Class: "px-btn"},
			pollErrs:  []error{context.DeadlineExceeded},
			want:      false,
			wantClick: true,
		},
		{
			name:      "indicator wait expires",
			probe:     nextProbe{Found: true, Class: "px-btn"},
			pollErrs:  []error{nil, context.DeadlineExceeded},
			want:      false,
			wantClick: true,
		},
		{
			name:      "refresh wait hits the driver poll timer",
			probe:     nextProbe{Found: true, Class: "px-btn"},
			pollErrs:  []error{fmt.Errorf("failed polling for condition: %w", chromedp.ErrPollingTimeout)},
			want:      false,
			wantClick: true,
		},
		{
			name:      "indicator wait hits the driver poll timer",
			probe:     nextProbe{Found: true, Class: "px-btn"},
			pollErrs:  []error{nil, fmt.Errorf("failed polling for condition: %w", chromedp.ErrPollingTimeout)},
			want:      false,
			wantClick: true,
		},
		{
			name:     "probe failure",
			probeErr: errors.New("eval blew up"),
			want:     false,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{
				probe:    tt.probe,
				probeErr: tt.probeErr,
				page:     "1",
				pollErrs: tt.pollErrs,
			}
			ctl := newTestController(t, sess)

			got, err := ctl.AdvancePage(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("AdvancePage() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("AdvancePage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AdvancePage() = %v, want %v", got, tt.want)
			}

			clicked := len(sess.clicks) > 0
			if clicked != tt.wantClick {
				t.Errorf("clicked = %v, want %v (clicks: %v)", clicked, tt.wantClick, sess.clicks)
			}
			if tt.wantClick && sess.clicks[0] != "#next-toggle-id a" {
				t.Errorf("click selector = %q, want %q", sess.clicks[0], "#next-toggle-id a")
			}
			if tt.wantClick && sess.marks != 1 {
				t.Errorf("container marks = %d, want 1", sess.marks)
			}
		})
	}
}
