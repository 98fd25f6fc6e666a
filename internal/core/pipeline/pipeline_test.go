package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oilcatalog/internal/config"
	"oilcatalog/internal/core/extract"
	"oilcatalog/internal/core/normalize"
	"oilcatalog/internal/core/product"
	"oilcatalog/internal/core/store"
	"oilcatalog/internal/logger"
	"oilcatalog/internal/platform/browser"
	"oilcatalog/internal/platform/browser/browsertest"
)

const base = "https://www.doterra.com/TW/zh_TW"

const testCatalog = `
base_url: https://www.doterra.com/TW/zh_TW
sort: name-asc
categories:
  - id: single-oils
    path: /pl/single-oils
  - id: proprietary-blends
    path: /pl/proprietary-blends
  - id: onguard-collection
    path: /pl/onguard-collection
`

func listing(links ...string) string {
	html := "<html><body><div class=\"grid\">"
	for _, l := range links {
		html += `<a href="` + l + `">` + filepath.Base(l) + `</a>`
	}
	return html + "</div></body></html>"
}

func detail(name, code, benefits string) string {
	return `<html><body><h1>` + name + `</h1>
<h2>主要功效</h2><p>` + benefits + `</p>
<p>產品編號：` + code + `</p><p>建議售價：NT$1,460</p></body></html>`
}

type fakeBrowser struct {
	page   *browsertest.Page
	closed bool
}

func (b *fakeBrowser) NewPage() (browser.Page, error) { return b.page, nil }
func (b *fakeBrowser) Close() error                   { b.closed = true; return nil }

type recordingTracker struct {
	pending  []string
	started  []string
	finished []Summary
}

func (t *recordingTracker) Pending(_ context.Context, id string, _ Request) error {
	t.pending = append(t.pending, id)
	return nil
}
func (t *recordingTracker) Start(_ context.Context, id string, _ Request) error {
	t.started = append(t.started, id)
	return nil
}
func (t *recordingTracker) Progress(context.Context, string, State, Stats) error { return nil }
func (t *recordingTracker) Finish(_ context.Context, sum Summary) error {
	t.finished = append(t.finished, sum)
	return nil
}

type harness struct {
	page    *browsertest.Page
	browser *fakeBrowser
	store   *store.Store
	svc     *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := config.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "data"), filepath.Join(dir, "backups"), logger.Nop())
	page := browsertest.New()
	fb := &fakeBrowser{page: page}

	svc := NewService(cat,
		func() (Browser, error) { return fb, nil },
		extract.NewService(logger.Nop()),
		normalize.NewService(logger.Nop()),
		st,
		Options{Backoff: Backoff{Retries: 2}},
	).WithLogger(logger.Nop())

	return &harness{page: page, browser: fb, store: st, svc: svc}
}

func (h *harness) listing(cat string, page int) string {
	c, _ := h.svc.catalog.Category(cat)
	return h.svc.catalog.ListingURL(c, page)
}

func (h *harness) seedSingleOils() {
	lav, pep := base+"/p/lavender-oil", base+"/p/peppermint-oil"
	h.page.HTML[h.listing("single-oils", 0)] = listing(lav, pep)
	h.page.HTML[h.listing("single-oils", 1)] = listing()
	h.page.HTML[lav] = detail("薰衣草精油", "3000 1234", "舒緩肌膚、促進睡眠、淨化空氣")
	h.page.HTML[pep] = detail("薄荷精油", "3000 5678", "提神醒腦、清新口氣")
}

func TestRunStopsAtEmptyListingPage(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.NoError(t, err)

	assert.Equal(t, StateDone, sum.State)
	assert.Equal(t, 2, sum.Stats.Pages)
	assert.Equal(t, 2, sum.Stats.Inserted)
	assert.Equal(t, 0, h.page.Count(h.listing("single-oils", 2)))
	assert.True(t, h.browser.closed)
	assert.True(t, h.page.Closed)

	recs, err := h.store.Read(product.CategorySingleOils)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "30001234", recs[0].BusinessKey)
	assert.Equal(t, []string{"舒緩肌膚", "促進睡眠", "淨化空氣"}, recs[0].MainBenefits)
	require.NotNil(t, recs[0].RetailPrice)
	assert.Equal(t, 1460, *recs[0].RetailPrice)

	all, err := h.store.ReadAggregate()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()

	_, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.NoError(t, err)
	before, err := os.ReadFile(h.store.Path(product.CategorySingleOils))
	require.NoError(t, err)
	backupsBefore, err := h.store.Backups(product.CategorySingleOils)
	require.NoError(t, err)

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Stats.Inserted)
	assert.Equal(t, 0, sum.Stats.Updated)
	assert.Equal(t, 2, sum.Stats.Skipped)

	after, err := os.ReadFile(h.store.Path(product.CategorySingleOils))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	backupsAfter, err := h.store.Backups(product.CategorySingleOils)
	require.NoError(t, err)
	assert.Equal(t, backupsBefore, backupsAfter)
}

func TestItemFailuresDoNotAbortRun(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	broken := base + "/p/broken-oil"
	h.page.HTML[h.listing("single-oils", 0)] = listing(broken, base+"/p/lavender-oil", base+"/p/peppermint-oil")

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.NoError(t, err)
	assert.Equal(t, StateDone, sum.State)
	assert.Equal(t, 1, sum.Stats.Failed)
	assert.Equal(t, 2, sum.Stats.Inserted)
	assert.Equal(t, 1, h.page.Count(broken), "404 is not retried")
}

func TestRetryableNavigationIsRetried(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	lav := base + "/p/lavender-oil"
	h.page.FailTimes(lav, 1, errors.New("Timeout 20000ms exceeded"))

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Stats.Inserted)
	assert.Equal(t, 0, sum.Stats.Failed)
	assert.Equal(t, 2, h.page.Count(lav))
}

func TestKeyCollisionIsCountedAndSkipped(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	dup := base + "/p/lavender-oil-kit"
	h.page.HTML[h.listing("single-oils", 0)] = listing(base+"/p/lavender-oil", dup)
	h.page.HTML[dup] = detail("薰衣草套組", "3000 1234", "舒緩")

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Stats.Collisions)
	assert.Equal(t, 1, sum.Stats.Inserted)
}

func TestSharedProductCollectsEveryCategory(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	lav := base + "/p/lavender-oil"
	h.page.HTML[h.listing("proprietary-blends", 0)] = listing()
	h.page.HTML[h.listing("onguard-collection", 0)] = listing(lav)
	h.page.HTML[h.listing("onguard-collection", 1)] = listing()

	sum, err := h.svc.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StateDone, sum.State)
	assert.Equal(t, 0, sum.Stats.Collisions)
	assert.Equal(t, 2, sum.Stats.Inserted)
	assert.Equal(t, 1, sum.Stats.Updated)
	assert.Equal(t, 1, h.page.Count(lav), "second listing reuses the extracted record")

	recs, err := h.store.Read(product.CategorySingleOils)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"single-oils", "onguard-collection"}, recs[0].Collections)
	assert.Equal(t, product.CategorySingleOils, recs[0].Category)

	collection, err := h.store.Read(product.CategoryOnGuard)
	require.NoError(t, err)
	assert.Empty(t, collection)

	again, err := h.svc.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Stats.Updated)
	assert.Equal(t, 3, again.Stats.Skipped)
}

func TestStartPageAndMaxPages(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	h.page.HTML[h.listing("single-oils", 1)] = listing(base + "/p/peppermint-oil")

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}, StartPage: 1, MaxPages: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Stats.Pages)
	assert.Equal(t, 1, sum.Stats.Inserted)
	assert.Equal(t, 0, h.page.Count(h.listing("single-oils", 0)))
}

func TestListingFailureEndsOnlyThatCategory(t *testing.T) {
	h := newHarness(t)
	blend := base + "/p/balance-oil"
	h.page.HTML[h.listing("proprietary-blends", 0)] = listing(blend)
	h.page.HTML[h.listing("proprietary-blends", 1)] = listing()
	h.page.HTML[blend] = detail("平衡複方精油", "3101 0001", "安定情緒")

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils", "proprietary-blends"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Stats.Failed, "single-oils listing is missing")
	assert.Equal(t, 1, sum.Stats.Inserted)

	recs, err := h.store.Read(product.CategoryProprietaryBlends)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, product.CategoryProprietaryBlends, recs[0].Category)
}

func TestBrowserStartFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.svc.launch = func() (Browser, error) { return nil, errors.New("chromium missing") }
	tr := &recordingTracker{}
	h.svc.WithTracker(tr)

	sum, err := h.svc.Run(context.Background(), Request{Categories: []string{"single-oils"}})
	require.Error(t, err)
	assert.Equal(t, StateFatalError, sum.State)
	require.Len(t, tr.finished, 1)
	assert.Equal(t, StateFatalError, tr.finished[0].State)
}

func TestCancelledRun(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.svc.Run(ctx, Request{Categories: []string{"single-oils"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, sum.State)
	assert.Equal(t, 0, sum.Stats.Inserted)
}

func TestUnknownCategory(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Run(context.Background(), Request{Categories: []string{"candles"}})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

type fakeQueue struct {
	tasks []*asynq.Task
	ids   []string
}

func (q *fakeQueue) Enqueue(task *asynq.Task, id string, _ int) error {
	q.tasks = append(q.tasks, task)
	q.ids = append(q.ids, id)
	return nil
}

func TestEnqueueAndHandleTask(t *testing.T) {
	h := newHarness(t)
	h.seedSingleOils()
	tr := &recordingTracker{}
	h.svc.WithTracker(tr)
	q := &fakeQueue{}

	id, err := h.svc.Enqueue(context.Background(), q, Request{Categories: []string{"single-oils"}}, 0)
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, id, q.ids[0])
	assert.Equal(t, []string{id}, tr.pending)

	require.NoError(t, h.svc.HandleCrawlTask(context.Background(), q.tasks[0]))
	require.Len(t, tr.finished, 1)
	assert.Equal(t, id, tr.finished[0].RunID)
	assert.Equal(t, 2, tr.finished[0].Stats.Inserted)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Jitter: time.Second, Multiplier: 2, Max: 5 * time.Second, rand: func(n int64) int64 { return n / 2 }}
	assert.Equal(t, 1500*time.Millisecond, b.Delay(0))
	assert.Equal(t, 2500*time.Millisecond, b.Delay(1))
	assert.Equal(t, 4500*time.Millisecond, b.Delay(2))
	assert.Equal(t, 5*time.Second, b.Delay(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Backoff{Base: time.Hour}.Wait(ctx, 0), context.Canceled)
}
