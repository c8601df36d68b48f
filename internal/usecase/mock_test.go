//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Repositories
// =============================

// ---- In-memory TransactionRepository ----

type MockTransactionRepo struct {
	mu   sync.Mutex
	byID map[string]model.Transaction

	SaveFunc         func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error)
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, fields *model.GatewayFields, completedAt *time.Time) error

	UpdateStatusCalls int
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byID: map[string]model.Transaction{}}
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[t.ID] = *t
	return nil
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := t
	return &c, nil
}

func (m *MockTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.TrxReferenceNumber == reference {
			c := t
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.OrderID == orderID {
			c := t
			return &c, nil
		}
	}
	for _, t := range m.byID {
		if t.MerchantOrderID == orderID {
			c := t
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.byID {
		if t.UserID == userID {
			c := t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockTransactionRepo) LastSuccessfulByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Transaction
	for _, t := range m.byID {
		if t.UserID != userID || t.Status != model.PaymentStatusSuccess {
			continue
		}
		c := t
		if best == nil || (c.CompletedAt != nil && best.CompletedAt != nil && c.CompletedAt.After(*best.CompletedAt)) {
			best = &c
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (m *MockTransactionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, fields *model.GatewayFields, completedAt *time.Time) error {
	m.mu.Lock()
	m.UpdateStatusCalls++
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, fields, completedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.CompletedAt = completedAt
	if fields != nil {
		if fields.TrxReferenceNumber != "" {
			t.TrxReferenceNumber = fields.TrxReferenceNumber
		}
		if fields.MerchantOrderID != "" {
			t.MerchantOrderID = fields.MerchantOrderID
		}
		if fields.MaskedCard != "" {
			t.MaskedCard = fields.MaskedCard
		}
		if fields.CardBrand != "" {
			t.CardBrand = fields.CardBrand
		}
		if fields.Signature != "" {
			t.Signature = fields.Signature
		}
	}
	m.byID[id] = t
	return nil
}

func (m *MockTransactionRepo) ListSuccessfulUnactivated(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	return nil, nil
}

func (m *MockTransactionRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.byID {
		if t.Status == model.PaymentStatusSuccess {
			sum += t.Amount
		}
	}
	return sum, nil
}

// ---- In-memory AccountRepository ----

type MockAccountRepo struct {
	mu   sync.Mutex
	byID map[string]model.Account

	FindByIDFunc           func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	UpdateSubscriptionFunc func(ctx context.Context, tx repository.Tx, a *model.Account) error
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{byID: map[string]model.Account{}}
}

func (m *MockAccountRepo) Put(a *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = *a
}

func (m *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byID[a.ID]; ok {
		existing.Email, existing.Name, existing.Phone = a.Email, a.Name, a.Phone
		m.byID[a.ID] = existing
		return nil
	}
	m.byID[a.ID] = *a
	return nil
}

// FindByID returns a deep copy so callers mutate their own view until
// UpdateSubscription commits, mirroring transactional isolation.
func (m *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := a
	c.SubscriptionHistory = append([]model.HistoryEntry(nil), a.SubscriptionHistory...)
	return &c, nil
}

func (m *MockAccountRepo) UpdateSubscription(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.UpdateSubscriptionFunc != nil {
		if err := m.UpdateSubscriptionFunc(ctx, tx, a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *a
	c.SubscriptionHistory = append([]model.HistoryEntry(nil), a.SubscriptionHistory...)
	m.byID[a.ID] = c
	return nil
}

func (m *MockAccountRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.byID {
		if a.Subscription.Status == model.SubscriptionStatusActive &&
			a.Subscription.Plan != model.PlanFree &&
			a.Subscription.ExpirationDate != nil &&
			a.Subscription.ExpirationDate.Before(now) {
			a.Subscription.Status = model.SubscriptionStatusExpired
			m.byID[id] = a
			n++
		}
	}
	return n, nil
}

// ---- TransactionManager passthrough ----

// fakeTxManager runs the callback without a real database transaction. The
// mock repositories' copy-on-read semantics stand in for rollback.
type fakeTxManager struct{}

var _ repository.TransactionManager = (*fakeTxManager)(nil)

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

type MockGateway struct {
	CheckoutURLFunc     func(t *model.Transaction) (string, error)
	VerifySignatureFunc func(params map[string]string, provided string, mode model.GatewayMode) bool
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CheckoutURL(t *model.Transaction) (string, error) {
	if m.CheckoutURLFunc != nil {
		return m.CheckoutURLFunc(t)
	}
	return "https://pay.example.com/" + t.OrderID, nil
}

func (m *MockGateway) VerifySignature(params map[string]string, provided string, mode model.GatewayMode) bool {
	if m.VerifySignatureFunc != nil {
		return m.VerifySignatureFunc(params, provided, mode)
	}
	return true
}

type MockTracker struct {
	mu      sync.Mutex
	Tracked []string
}

func (m *MockTracker) TrackPurchase(ctx context.Context, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tracked = append(m.Tracked, t.ID)
	return nil
}

type MockActivator struct {
	mu           sync.Mutex
	Activated    []string
	ActivateFunc func(ctx context.Context, transactionID string) (*model.Account, error)
}

func (m *MockActivator) Activate(ctx context.Context, transactionID string) (*model.Account, error) {
	m.mu.Lock()
	m.Activated = append(m.Activated, transactionID)
	m.mu.Unlock()
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, transactionID)
	}
	return &model.Account{ID: "u-1"}, nil
}
