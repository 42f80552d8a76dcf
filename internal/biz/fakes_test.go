package biz

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/errors"
)

// In-memory fakes mirroring the data layer contracts, including the
// unique-constraint and status-guard semantics the usecases lean on.

type fakeTransactionRepo struct {
	mu  sync.Mutex
	txs map[string]*Transaction
	// beforeCreate lets a test inject a rival writer between the
	// idempotency pre-check and the insert.
	beforeCreate func(tx *Transaction) error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txs: make(map[string]*Transaction)}
}

func (r *fakeTransactionRepo) Create(ctx context.Context, tx *Transaction) error {
	if r.beforeCreate != nil {
		if err := r.beforeCreate(tx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txs {
		if existing.MerchantID == tx.MerchantID && existing.IdempotencyKey == tx.IdempotencyKey {
			return fmt.Errorf("duplicate key value violates unique constraint \"uq_tx_merchant_idem\"")
		}
	}
	cp := *tx
	r.txs[tx.ID] = &cp
	return nil
}

func (r *fakeTransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.txs[id]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeTransactionRepo) GetByIdempotencyKey(ctx context.Context, merchantID, key string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.MerchantID == merchantID && tx.IdempotencyKey == key {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTransactionRepo) GetByProviderTxID(ctx context.Context, providerCode, providerTxID string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ProviderCode == providerCode && tx.ProviderTxID == providerTxID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTransactionRepo) UpdateGuarded(ctx context.Context, tx *Transaction, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.txs[tx.ID]
	if !ok || stored.Status != expected {
		return errors.StaleTransaction(tx.ID)
	}
	cp := *tx
	cp.Version = stored.Version + 1
	r.txs[tx.ID] = &cp
	return nil
}

func (r *fakeTransactionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

func (r *fakeTransactionRepo) byParent(parentID string) []*Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Transaction
	for _, tx := range r.txs {
		if tx.ParentID == parentID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*CheckoutSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*CheckoutSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetActiveByTransaction(ctx context.Context, transactionID string) (*CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.TransactionID == transactionID && s.Active(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) UpdateStatus(ctx context.Context, id string, status SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.Status = status
	return nil
}

func (r *fakeSessionRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if (s.Status == SessionCreated || s.Status == SessionRedirected) && !s.ExpiresAt.After(now) {
			s.Status = SessionExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeSessionRepo) byTransaction(transactionID string) []*CheckoutSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*CheckoutSession
	for _, s := range r.sessions {
		if s.TransactionID == transactionID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

type fakeCustomerRepo struct {
	ids map[string]bool
}

func newFakeCustomerRepo(ids ...string) *fakeCustomerRepo {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return &fakeCustomerRepo{ids: m}
}

func (r *fakeCustomerRepo) Exists(ctx context.Context, customerID string) (bool, error) {
	return r.ids[customerID], nil
}

type fakeFeeRuleRepo struct {
	rules []*FeeRule
	err   error
}

func (r *fakeFeeRuleRepo) Find(ctx context.Context, txType TxType, provider, method, currency string) (*FeeRule, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, rule := range r.rules {
		if rule.TxType == txType && rule.ProviderCode == provider &&
			rule.PaymentMethod == method && rule.Currency == currency {
			return rule, nil
		}
	}
	return nil, nil
}

type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	events map[string]*WebhookEvent
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{events: make(map[string]*WebhookEvent)}
}

func (r *fakeWebhookEventRepo) key(provider, eventID string) string {
	return provider + "/" + eventID
}

func (r *fakeWebhookEventRepo) InsertIfAbsent(ctx context.Context, ev *WebhookEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(ev.ProviderCode, ev.ProviderEventID)
	if _, ok := r.events[k]; ok {
		return false, nil
	}
	cp := *ev
	r.events[k] = &cp
	return true, nil
}

func (r *fakeWebhookEventRepo) Update(ctx context.Context, ev *WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ev
	r.events[r.key(ev.ProviderCode, ev.ProviderEventID)] = &cp
	return nil
}

func (r *fakeWebhookEventRepo) get(provider, eventID string) *WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.events[r.key(provider, eventID)]; ok {
		cp := *ev
		return &cp
	}
	return nil
}

type fakeRetryScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*RetrySchedule
}

func newFakeRetryScheduleRepo() *fakeRetryScheduleRepo {
	return &fakeRetryScheduleRepo{schedules: make(map[string]*RetrySchedule)}
}

func (r *fakeRetryScheduleRepo) Create(ctx context.Context, s *RetrySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.schedules {
		if existing.TransactionID == s.TransactionID {
			return fmt.Errorf("duplicate key value violates unique constraint on transaction_id")
		}
	}
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *fakeRetryScheduleRepo) GetByTransaction(ctx context.Context, transactionID string) (*RetrySchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.TransactionID == transactionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRetryScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*RetrySchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*RetrySchedule
	for _, s := range r.schedules {
		if s.Status == ScheduleActive && !s.NextAttemptAt.After(now) {
			cp := *s
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRetryScheduleRepo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status != ScheduleActive || s.NextAttemptAt.After(now) {
		return false, nil
	}
	s.Status = ScheduleInProgress
	s.Attempts++
	s.UpdatedAt = now
	return true, nil
}

func (r *fakeRetryScheduleRepo) Update(ctx context.Context, s *RetrySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *fakeRetryScheduleRepo) get(id string) *RetrySchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedules[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*NotificationEvent
}

func (n *fakeNotifier) Notify(ctx context.Context, event *NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

// fakeTxManager runs the closure directly; the fakes are already atomic
// enough for unit tests.
type fakeTxManager struct{}

func (fakeTxManager) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeMutex struct {
	busy bool
}

func (m *fakeMutex) LockContext(ctx context.Context) error {
	if m.busy {
		return fmt.Errorf("lock already taken")
	}
	return nil
}

func (m *fakeMutex) UnlockContext(ctx context.Context) (bool, error) {
	return true, nil
}

type fakeLockFactory struct {
	busy bool
}

func (f *fakeLockFactory) NewMutex(name string) Mutex {
	return &fakeMutex{busy: f.busy}
}

// fakeAdapter is a scriptable provider adapter.
type fakeAdapter struct {
	code         string
	checkoutFn   func(ctx context.Context, tx *Transaction, urls ReturnURLs) (*CheckoutResult, error)
	rejectSig    bool
	callback     *CallbackEvent
	callbackErr  error
	checkoutSeen int
}

func (a *fakeAdapter) Code() string { return a.code }

func (a *fakeAdapter) CreateCheckout(ctx context.Context, tx *Transaction, urls ReturnURLs) (*CheckoutResult, error) {
	a.checkoutSeen++
	if a.checkoutFn != nil {
		return a.checkoutFn(ctx, tx, urls)
	}
	return &CheckoutResult{
		SessionToken: "sess_" + tx.ID,
		RedirectURL:  "https://pay.example.com/" + tx.ID,
	}, nil
}

func (a *fakeAdapter) VerifySignature(payload []byte, headers http.Header) bool {
	return !a.rejectSig
}

func (a *fakeAdapter) ParseCallback(payload []byte, headers http.Header) (*CallbackEvent, error) {
	if a.callbackErr != nil {
		return nil, a.callbackErr
	}
	return a.callback, nil
}
