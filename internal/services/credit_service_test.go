package services

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"companion-api/internal/credit"
	"companion-api/internal/models"
	"companion-api/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	user    *models.User
	saveErr error
	saves   int
}

func (f *fakeUserRepo) WithLockedUser(ctx context.Context, id uuid.UUID, fn func(user *models.User) (bool, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.user == nil || f.user.ID != id {
		return errors.ErrNotFound
	}
	working := *f.user
	save, err := fn(&working)
	if err != nil {
		return err
	}
	if save {
		if f.saveErr != nil {
			return f.saveErr
		}
		f.user = &working
		f.saves++
	}
	return nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error { return nil }
func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.user, nil
}
func (f *fakeUserRepo) GetByClerkID(ctx context.Context, clerkUserID string) (*models.User, error) {
	return f.user, nil
}
func (f *fakeUserRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	return f.user, nil
}
func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }
func (f *fakeUserRepo) UpdateMembership(ctx context.Context, clerkUserID string, membership models.Membership) error {
	return nil
}
func (f *fakeUserRepo) Delete(ctx context.Context, clerkUserID string) error { return nil }

type fakeLedger struct {
	mu        sync.Mutex
	entries   []models.CreditUsage
	appendErr error
}

func (f *fakeLedger) Append(ctx context.Context, entry *models.CreditUsage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.CreditUsage, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

func (f *fakeLedger) ListSince(ctx context.Context, since time.Time, page, pageSize int) ([]models.CreditUsage, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

type fakeEmails struct {
	mu      sync.Mutex
	notices int
}

func (f *fakeEmails) SendThreadLockNotice(user *models.User, nextRefillAt *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices++
}

func (f *fakeEmails) noticeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notices
}

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time { return s.now }

func newCreditFixture(user *models.User) (CreditService, *fakeUserRepo, *fakeLedger, *fakeEmails, *stubClock) {
	clock := &stubClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	engine := credit.NewEngine(credit.DefaultConfig(), clock)
	repo := &fakeUserRepo{user: user}
	ledger := &fakeLedger{}
	emails := &fakeEmails{}
	svc := NewCreditService(repo, ledger, engine, clock, emails)
	return svc, repo, ledger, emails, clock
}

func testUser(credits int, membership models.Membership) *models.User {
	return &models.User{
		ID:         uuid.New(),
		Membership: membership,
		Credits:    credits,
	}
}

func TestTryDebitWritesOneLedgerEntry(t *testing.T) {
	user := testUser(5, models.FreeMembership)
	svc, repo, ledger, _, _ := newCreditFixture(user)

	res, err := svc.TryDebit(context.Background(), user.ID, string(models.EventTypeMessage), decimal.NewFromInt(1), string(models.KindMonthlyCredits), "companion-v1")
	require.NoError(t, err)
	require.True(t, res.OK)

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	assert.Equal(t, user.ID, entry.UserID)
	assert.Equal(t, models.EventTypeMessage, entry.EventType)
	assert.Equal(t, models.KindMonthlyCredits, entry.Kind)
	assert.Equal(t, "companion-v1", entry.Model)
	assert.Equal(t, 4, repo.user.Credits)
	assert.Equal(t, 1, repo.saves)
}

func TestTryDebitFailureWritesNoLedgerEntry(t *testing.T) {
	user := testUser(0, models.FreeMembership)
	svc, repo, ledger, _, _ := newCreditFixture(user)

	res, err := svc.TryDebit(context.Background(), user.ID, string(models.EventTypeMessage), decimal.NewFromInt(1), string(models.KindMonthlyCredits), "")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Empty(t, ledger.entries)
	assert.Equal(t, 0, repo.saves, "failed debit must not persist anything")
}

func TestPersistenceFailureIsNotReportedAsSuccess(t *testing.T) {
	user := testUser(5, models.FreeMembership)
	svc, repo, ledger, _, _ := newCreditFixture(user)
	repo.saveErr = stderrors.New("connection reset")

	_, err := svc.TryDebit(context.Background(), user.ID, string(models.EventTypeMessage), decimal.NewFromInt(1), string(models.KindMonthlyCredits), "")

	require.Error(t, err)
	assert.Empty(t, ledger.entries, "no ledger entry for a debit that never committed")
	assert.Equal(t, 5, repo.user.Credits)
}

func TestLedgerFailureDoesNotRollBackDebit(t *testing.T) {
	user := testUser(5, models.FreeMembership)
	svc, repo, ledger, _, _ := newCreditFixture(user)
	ledger.appendErr = stderrors.New("ledger down")

	res, err := svc.TryDebit(context.Background(), user.ID, string(models.EventTypeMessage), decimal.NewFromInt(1), string(models.KindMonthlyCredits), "")

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 4, repo.user.Credits, "debit is authoritative, ledger is best-effort")
}

func TestLockTripSendsNotice(t *testing.T) {
	user := testUser(5, models.FreeMembership)
	user.TotalUsage14d = 649
	last := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	user.LastUsageAt = &last
	svc, repo, _, emails, _ := newCreditFixture(user)

	res, err := svc.TryDebit(context.Background(), user.ID, string(models.EventTypeMessage), decimal.NewFromInt(1), string(models.KindMonthlyCredits), "")
	require.NoError(t, err)
	require.True(t, res.LockTripped)
	assert.True(t, repo.user.ThreadDepthLocked)

	assert.Eventually(t, func() bool {
		return emails.noticeCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStatusAppliesDueRefill(t *testing.T) {
	user := testUser(0, models.FreeMembership)
	svc, repo, _, _, clock := newCreditFixture(user)
	depleted := clock.Now().Add(-9 * time.Hour)
	repo.user.LastDepletedAt = &depleted

	snap, err := svc.Status(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, 50, snap.Credits)
	assert.False(t, snap.IsOutOfCredits)
	assert.Equal(t, 50, repo.user.Credits, "status persists the catch-up refill")
	assert.Equal(t, 1, repo.saves)
}

func TestStatusIsReadOnlyWhenNoRefillDue(t *testing.T) {
	user := testUser(0, models.FreeMembership)
	svc, repo, _, _, clock := newCreditFixture(user)
	depleted := clock.Now().Add(-time.Hour)
	repo.user.LastDepletedAt = &depleted

	snap, err := svc.Status(context.Background(), user.ID)
	require.NoError(t, err)

	assert.True(t, snap.IsOutOfCredits)
	require.NotNil(t, snap.NextRefillAt)
	assert.Equal(t, depleted.Add(8*time.Hour), *snap.NextRefillAt)
	assert.Equal(t, 0, repo.saves)
}

func TestStatusUnknownUser(t *testing.T) {
	svc, _, _, _, _ := newCreditFixture(testUser(5, models.FreeMembership))

	_, err := svc.Status(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	user := testUser(5, models.FreeMembership)
	svc, repo, ledger, _, _ := newCreditFixture(user)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.TryDebit(context.Background(), user.ID, string(models.EventTypeMessage), decimal.NewFromInt(1), string(models.KindMonthlyCredits), "")
			if err == nil && res.OK {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes, "exactly the available credits are spendable")
	assert.Equal(t, 0, repo.user.Credits)
	assert.Len(t, ledger.entries, 5)
}
