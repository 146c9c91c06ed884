package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/zeenbase/zeenbase/internal/billing"
	"github.com/zeenbase/zeenbase/internal/cache"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
	"github.com/zeenbase/zeenbase/internal/search"
)

// memKeyStore is an in-memory KeyStore with per-step failure injection.
type memKeyStore struct {
	mu   sync.Mutex
	keys []*model.APIKey

	getErr        error
	createErr     error
	deactivateErr error
	deleteErr     error

	deleted []string
}

func (s *memKeyStore) GetActiveAPIKey(_ context.Context, userID string) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var newest *model.APIKey
	for _, k := range s.keys {
		if k.UserID == userID && k.IsActive && (newest == nil || !k.CreatedAt.Before(newest.CreatedAt)) {
			newest = k
		}
	}
	if newest == nil {
		return nil, repository.ErrAPIKeyNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *memKeyStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *key
	s.keys = append(s.keys, &cp)
	return nil
}

func (s *memKeyStore) DeactivateOtherAPIKeys(_ context.Context, userID, keepID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deactivateErr != nil {
		return 0, s.deactivateErr
	}
	var n int64
	for _, k := range s.keys {
		if k.UserID == userID && k.ID != keepID && k.IsActive {
			k.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *memKeyStore) DeleteAPIKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, k := range s.keys {
		if k.ID == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return repository.ErrAPIKeyNotFound
}

func (s *memKeyStore) activeCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.keys {
		if k.UserID == userID && k.IsActive {
			n++
		}
	}
	return n
}

func (s *memKeyStore) byValue(value string) *model.APIKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyValue == value {
			cp := *k
			return &cp
		}
	}
	return nil
}

func (s *memKeyStore) snapshot() []model.APIKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// memLocker is an in-process Locker.
type memLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	err   error
	calls int
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Acquire(_ context.Context, name string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if l.held[name] {
		return nil, cache.ErrLockHeld
	}
	l.held[name] = true
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
		return nil
	}, nil
}

// fakeInvalidator records invalidations.
type fakeInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeInvalidator) InvalidateUserKeys(_ context.Context, userID string) error {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	return nil
}

// fakePolicyStore serves fixed subscription and settings rows.
type fakePolicyStore struct {
	subs        map[string]*model.Subscription
	settings    *model.SiteSettings
	subErr      error
	settingsErr error
	subCalls    int
}

func (f *fakePolicyStore) GetSubscriptionByUserID(_ context.Context, userID string) (*model.Subscription, error) {
	f.subCalls++
	if f.subErr != nil {
		return nil, f.subErr
	}
	if s, ok := f.subs[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (f *fakePolicyStore) GetLatestSiteSettings(context.Context) (*model.SiteSettings, error) {
	if f.settingsErr != nil {
		return nil, f.settingsErr
	}
	if f.settings == nil {
		return nil, repository.ErrSettingsNotFound
	}
	cp := *f.settings
	return &cp, nil
}

// staticAdmins treats a fixed email as admin.
type staticAdmins string

func (a staticAdmins) IsAdmin(id model.Identity) bool {
	return id.Email != "" && id.Email == string(a)
}

var errStoreDown = errors.New("connection refused")

// memSettingsStore is an append-only settings table.
type memSettingsStore struct {
	rows      []model.SiteSettings
	getErr    error
	insertErr error
	gets      int
}

func (s *memSettingsStore) GetLatestSiteSettings(context.Context) (*model.SiteSettings, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if len(s.rows) == 0 {
		return nil, repository.ErrSettingsNotFound
	}
	cp := s.rows[len(s.rows)-1]
	return &cp, nil
}

func (s *memSettingsStore) InsertSiteSettings(_ context.Context, in model.SiteSettings) (*model.SiteSettings, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	in.ID = int64(len(s.rows) + 1)
	in.CreatedAt = time.Now()
	s.rows = append(s.rows, in)
	return &in, nil
}

// memSettingsCache is a SettingsCache without expiry.
type memSettingsCache struct {
	cur     *model.SiteSettings
	deletes int
}

func (c *memSettingsCache) GetSiteSettings(context.Context) (*model.SiteSettings, error) {
	return c.cur, nil
}

func (c *memSettingsCache) SetSiteSettings(_ context.Context, s *model.SiteSettings) error {
	cp := *s
	c.cur = &cp
	return nil
}

func (c *memSettingsCache) DeleteSiteSettings(context.Context) error {
	c.cur = nil
	c.deletes++
	return nil
}

// memFeedbackStore records feedback in memory.
type memFeedbackStore struct {
	items     []*model.Feedback
	err       error
	lastLimit int
}

func (s *memFeedbackStore) CreateFeedback(_ context.Context, f *model.Feedback) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, f)
	return nil
}

func (s *memFeedbackStore) GetFeedbackSummary(context.Context) (model.FeedbackSummary, error) {
	if s.err != nil {
		return model.FeedbackSummary{}, s.err
	}
	var sum model.FeedbackSummary
	for _, f := range s.items {
		sum.Average += float64(f.Rating)
		sum.Count++
	}
	if sum.Count > 0 {
		sum.Average /= float64(sum.Count)
	}
	return sum, nil
}

func (s *memFeedbackStore) ListRecentFeedback(_ context.Context, limit int) ([]*model.Feedback, error) {
	s.lastLimit = limit
	if limit > len(s.items) {
		limit = len(s.items)
	}
	return s.items[:limit], nil
}

// memSubStore backs the subscription, admin and billing services.
type memSubStore struct {
	memFeedbackStore

	subs     map[string]*model.Subscription
	profiles map[string]string
	keys     []*model.APIKey
	orders   map[string]*model.PayPalOrder
	err      error
}

func newMemSubStore() *memSubStore {
	return &memSubStore{
		subs:     map[string]*model.Subscription{},
		profiles: map[string]string{},
		orders:   map[string]*model.PayPalOrder{},
	}
}

func (s *memSubStore) GetSubscriptionByUserID(_ context.Context, userID string) (*model.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	if sub, ok := s.subs[userID]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (s *memSubStore) UpsertProfile(_ context.Context, id, email string) error {
	s.profiles[id] = email
	return nil
}

func (s *memSubStore) UpsertSubscription(_ context.Context, in *model.Subscription) (*model.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *in
	if prev, ok := s.subs[in.UserID]; ok {
		cp.APIAccess = prev.APIAccess || (!prev.PlanType.AllowsAPI() && in.PlanType.AllowsAPI())
		if cp.StripeSubscriptionID == "" {
			cp.StripeSubscriptionID = prev.StripeSubscriptionID
		}
	}
	s.subs[in.UserID] = &cp
	out := cp
	return &out, nil
}

func (s *memSubStore) CapturePayPalOrder(ctx context.Context, order *model.PayPalOrder, sub *model.Subscription) (*model.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	if _, ok := s.orders[order.OrderID]; ok {
		return nil, repository.ErrOrderAlreadyCaptured
	}
	cp := *order
	s.orders[order.OrderID] = &cp
	return s.UpsertSubscription(ctx, sub)
}

func (s *memSubStore) UpdateSubscriptionByStripeID(_ context.Context, stripeID string, status model.SubscriptionStatus, periodEnd *time.Time) error {
	if s.err != nil {
		return s.err
	}
	for _, sub := range s.subs {
		if sub.StripeSubscriptionID == stripeID {
			sub.Status = status
			sub.CurrentPeriodEnd = periodEnd
			return nil
		}
	}
	return repository.ErrSubscriptionNotFound
}

func (s *memSubStore) ToggleAPIAccess(_ context.Context, userID string) (*model.Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	sub.APIAccess = !sub.APIAccess
	cp := *sub
	return &cp, nil
}

func (s *memSubStore) ToggleSubscriptionStatus(_ context.Context, userID string) (*model.Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	sub.Status = sub.Status.Toggle()
	cp := *sub
	return &cp, nil
}

func (s *memSubStore) ListSubscriptionsWithEmail(context.Context) ([]*model.SubscriptionWithEmail, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*model.SubscriptionWithEmail, 0, len(s.subs))
	for id, sub := range s.subs {
		out = append(out, &model.SubscriptionWithEmail{Subscription: *sub, Email: s.profiles[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memSubStore) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	var out []*model.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

// fakeKeyLookup resolves keys from a fixed set.
type fakeKeyLookup struct {
	keys       map[string]*model.APIKey
	profiles   map[string]string
	keyErr     error
	profileErr error
	lookups    int

	// afterLookup runs once a lookup has been answered, before the caller
	// sees the result.
	afterLookup func(n int)
}

func (f *fakeKeyLookup) GetActiveAPIKeyByValue(_ context.Context, value string) (*model.APIKey, error) {
	f.lookups++
	if f.afterLookup != nil {
		defer f.afterLookup(f.lookups)
	}
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	if k, ok := f.keys[value]; ok && k.IsActive {
		cp := *k
		return &cp, nil
	}
	return nil, repository.ErrAPIKeyNotFound
}

func (f *fakeKeyLookup) GetProfileByID(_ context.Context, id string) (*model.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if email, ok := f.profiles[id]; ok {
		return &model.Profile{ID: id, Email: email}, nil
	}
	return nil, repository.ErrProfileNotFound
}

// memOwnerCache is a KeyOwnerCache without expiry.
type memOwnerCache struct {
	owners map[string]*cache.KeyOwner
}

func (c *memOwnerCache) GetKeyOwner(_ context.Context, fp string) (*cache.KeyOwner, error) {
	return c.owners[fp], nil
}

func (c *memOwnerCache) SetKeyOwner(_ context.Context, fp string, owner *cache.KeyOwner) error {
	c.owners[fp] = owner
	return nil
}

func (c *memOwnerCache) DeleteKeyOwner(_ context.Context, fp, _ string) error {
	delete(c.owners, fp)
	return nil
}

func (c *memOwnerCache) InvalidateUserKeys(_ context.Context, userID string) error {
	for fp, owner := range c.owners {
		if owner.UserID == userID {
			delete(c.owners, fp)
		}
	}
	return nil
}

// fakeBackend returns a canned search result.
type fakeBackend struct {
	result   *search.Result
	err      error
	keywords []string
}

func (b *fakeBackend) Search(_ context.Context, keyword string) (*search.Result, error) {
	b.keywords = append(b.keywords, keyword)
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

// fakeStripe is a scripted StripeGateway.
type fakeStripe struct {
	event     *billing.Event
	parseErr  error
	subs      map[string]*billing.SubscriptionInfo
	checkouts []billing.CheckoutRequest
	url       string
	err       error
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.checkouts = append(f.checkouts, req)
	return f.url, nil
}

func (f *fakeStripe) GetSubscription(_ context.Context, id string) (*billing.SubscriptionInfo, error) {
	if info, ok := f.subs[id]; ok {
		return info, nil
	}
	return nil, billing.ErrProvider
}

func (f *fakeStripe) ParseEvent([]byte, string) (*billing.Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

// fakePayPal reports completed orders from a fixed set. Unknown order ids
// verify as the default order, paid by buyer at amount.
type fakePayPal struct {
	err    error
	known  map[string]*billing.PayPalOrder
	buyer  string
	amount billing.Money
	orders []string
}

func (f *fakePayPal) VerifyOrder(_ context.Context, orderID string) (*billing.PayPalOrder, error) {
	f.orders = append(f.orders, orderID)
	if f.err != nil {
		return nil, f.err
	}
	if order, ok := f.known[orderID]; ok {
		return order, nil
	}
	return &billing.PayPalOrder{ID: orderID, CustomID: f.buyer, Amount: f.amount}, nil
}
