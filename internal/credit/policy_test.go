package credit

import (
	"testing"
	"time"

	"companion-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	return NewEngine(DefaultConfig(), clock), clock
}

func freeUser(credits int) *models.User {
	return &models.User{
		Membership: models.FreeMembership,
		Credits:    credits,
	}
}

func premiumUser(credits int) *models.User {
	return &models.User{
		Membership: models.PremiumMembership,
		Credits:    credits,
	}
}

func TestTryDebitLastCreditStartsTimer(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(1)

	res := engine.TryDebit(user)

	require.True(t, res.OK)
	assert.True(t, res.Depleted)
	assert.Equal(t, 0, user.Credits)
	require.NotNil(t, user.LastDepletedAt)
	assert.Equal(t, clock.Now(), *user.LastDepletedAt)
}

func TestTryDebitWhileDepletedBeforeGrace(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-6 * time.Hour)
	user := freeUser(0)
	user.LastDepletedAt = &depleted

	res := engine.TryDebit(user)

	assert.False(t, res.OK)
	assert.False(t, res.Refilled)
	assert.Equal(t, 0, user.Credits)
	require.NotNil(t, user.LastDepletedAt)
	assert.Equal(t, depleted, *user.LastDepletedAt)
}

func TestRefusedDebitReportsLockState(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-time.Hour)

	user := freeUser(0)
	user.LastDepletedAt = &depleted
	res := engine.TryDebit(user)
	assert.False(t, res.OK)
	assert.False(t, res.ThreadLocked)

	locked := freeUser(0)
	locked.LastDepletedAt = &depleted
	locked.ThreadDepthLocked = true
	res = engine.TryDebit(locked)
	assert.False(t, res.OK)
	assert.True(t, res.ThreadLocked)
}

func TestReconcileRefillAfterGrace(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-9 * time.Hour)
	user := freeUser(0)
	user.LastDepletedAt = &depleted

	require.True(t, engine.ReconcileRefill(user))
	assert.Equal(t, 50, user.Credits)
	assert.Nil(t, user.LastDepletedAt)
}

func TestReconcileRefillPremiumAllotment(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-9 * time.Hour)
	user := premiumUser(0)
	user.LastDepletedAt = &depleted

	require.True(t, engine.ReconcileRefill(user))
	assert.Equal(t, 200, user.Credits)
}

func TestReconcileRefillIdempotent(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-9 * time.Hour)
	user := freeUser(0)
	user.LastDepletedAt = &depleted

	require.True(t, engine.ReconcileRefill(user))
	after := *user

	assert.False(t, engine.ReconcileRefill(user))
	assert.Equal(t, after, *user)
}

func TestReconcileRefillNoopWithCredits(t *testing.T) {
	engine, _ := newTestEngine(t)
	user := freeUser(10)

	assert.False(t, engine.ReconcileRefill(user))
	assert.Equal(t, 10, user.Credits)
}

func TestLockedRefillUsesCooldownAndUnlocks(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(0)
	user.ThreadDepthLocked = true
	user.TotalUsage14d = 12

	depleted := clock.Now().Add(-6 * 24 * time.Hour)
	user.LastDepletedAt = &depleted
	assert.False(t, engine.ReconcileRefill(user), "6 days is inside the 7 day cooldown")

	depleted = clock.Now().Add(-8 * 24 * time.Hour)
	user.LastDepletedAt = &depleted
	require.True(t, engine.ReconcileRefill(user))
	assert.Equal(t, 50, user.Credits)
	assert.False(t, user.ThreadDepthLocked)
	assert.Equal(t, 0, user.TotalUsage14d)
	assert.Nil(t, user.LastDepletedAt)
}

func TestUsageCounterFirstDebit(t *testing.T) {
	engine, _ := newTestEngine(t)
	user := freeUser(10)

	res := engine.TryDebit(user)

	require.True(t, res.OK)
	assert.Equal(t, 1, user.TotalUsage14d)
	require.NotNil(t, user.LastUsageAt)
}

func TestUsageCounterSameDayIncrements(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(10)

	require.True(t, engine.TryDebit(user).OK)
	clock.Advance(30 * time.Minute)
	require.True(t, engine.TryDebit(user).OK)

	assert.Equal(t, 2, user.TotalUsage14d)
}

func TestUsageCounterDifferentDayDoesNotIncrement(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(10)

	require.True(t, engine.TryDebit(user).OK)
	clock.Advance(24 * time.Hour)
	require.True(t, engine.TryDebit(user).OK)

	// Shipped behavior: a debit on a different calendar day inside the
	// window stamps the timestamp but leaves the counter alone.
	assert.Equal(t, 1, user.TotalUsage14d)
}

func TestUsageCounterResetAfterStaleWindow(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(10)
	user.TotalUsage14d = 300
	stale := clock.Now().Add(-15 * 24 * time.Hour)
	user.LastUsageAt = &stale

	require.True(t, engine.TryDebit(user).OK)

	assert.Equal(t, 0, user.TotalUsage14d)
	assert.Equal(t, clock.Now(), *user.LastUsageAt)
}

func TestLockTripsAtThreshold(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(10)
	user.TotalUsage14d = 649
	last := clock.Now().Add(-time.Hour)
	user.LastUsageAt = &last

	res := engine.TryDebit(user)

	require.True(t, res.OK)
	assert.True(t, res.LockTripped)
	assert.True(t, user.ThreadDepthLocked)
	assert.Equal(t, 0, user.TotalUsage14d, "counter resets on lock")
}

func TestPremiumNeverTracksUsageOrLocks(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := premiumUser(200)

	for i := 0; i < 200; i++ {
		res := engine.TryDebit(user)
		require.True(t, res.OK)
		assert.False(t, res.LockTripped)
		clock.Advance(time.Minute)
	}

	assert.Equal(t, 0, user.TotalUsage14d)
	assert.False(t, user.ThreadDepthLocked)
	assert.Equal(t, 0, user.Credits)
	assert.NotNil(t, user.LastDepletedAt)
}

func TestPremiumDebitClearsStaleLock(t *testing.T) {
	engine, _ := newTestEngine(t)
	user := premiumUser(5)
	user.ThreadDepthLocked = true

	require.True(t, engine.TryDebit(user).OK)
	assert.False(t, user.ThreadDepthLocked)
}

func TestCreditsNeverGoNegative(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(3)

	for i := 0; i < 20; i++ {
		engine.TryDebit(user)
		assert.GreaterOrEqual(t, user.Credits, 0)
		if user.Credits > 0 {
			assert.Nil(t, user.LastDepletedAt)
		}
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 0, user.Credits)
}

func TestDebitAfterDueRefillSpendsFromFreshAllotment(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-9 * time.Hour)
	user := freeUser(0)
	user.LastDepletedAt = &depleted

	res := engine.TryDebit(user)

	require.True(t, res.OK)
	assert.True(t, res.Refilled)
	assert.Equal(t, 49, user.Credits)
	assert.Nil(t, user.LastDepletedAt)
}

func TestNextRefillAt(t *testing.T) {
	engine, clock := newTestEngine(t)

	user := freeUser(10)
	assert.Nil(t, engine.NextRefillAt(user))

	depleted := clock.Now()
	user = freeUser(0)
	user.LastDepletedAt = &depleted
	at := engine.NextRefillAt(user)
	require.NotNil(t, at)
	assert.Equal(t, depleted.Add(8*time.Hour), *at)

	user.ThreadDepthLocked = true
	at = engine.NextRefillAt(user)
	require.NotNil(t, at)
	assert.Equal(t, depleted.Add(7*24*time.Hour), *at)
}

func TestSnapshotFree(t *testing.T) {
	engine, clock := newTestEngine(t)
	depleted := clock.Now().Add(-time.Hour)
	user := freeUser(0)
	user.LastDepletedAt = &depleted
	user.TotalUsage14d = 42

	snap := engine.Snapshot(user)

	assert.Equal(t, 0, snap.Credits)
	assert.True(t, snap.IsOutOfCredits)
	assert.Equal(t, models.FreeMembership, snap.Membership)
	assert.Equal(t, 50, snap.DailyCap)
	assert.Equal(t, 42, snap.TotalUsage14d)
	require.NotNil(t, snap.UsageLimit)
	assert.Equal(t, 650, *snap.UsageLimit)
	require.NotNil(t, snap.NextRefillAt)
	assert.Equal(t, depleted.Add(8*time.Hour), *snap.NextRefillAt)
}

func TestSnapshotPremiumHidesUsageTracking(t *testing.T) {
	engine, _ := newTestEngine(t)
	user := premiumUser(150)
	user.TotalUsage14d = 99
	user.ThreadDepthLocked = true

	snap := engine.Snapshot(user)

	assert.Equal(t, 150, snap.Credits)
	assert.False(t, snap.IsOutOfCredits)
	assert.Equal(t, 200, snap.DailyCap)
	assert.Equal(t, 0, snap.TotalUsage14d)
	assert.False(t, snap.ThreadDepthLocked)
	assert.Nil(t, snap.UsageLimit)
	assert.Nil(t, snap.NextRefillAt)
}

func TestConfigOverridesApply(t *testing.T) {
	cfg := Config{
		FreeRefillCredits:    10,
		PremiumRefillCredits: 40,
		GraceDelay:           time.Hour,
		LockCooldown:         48 * time.Hour,
		UsageWindow:          7 * 24 * time.Hour,
		LockThreshold:        3,
	}
	clock := &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(cfg, clock)

	user := freeUser(5)
	for i := 0; i < 3; i++ {
		require.True(t, engine.TryDebit(user).OK)
	}
	assert.True(t, user.ThreadDepthLocked)

	depleted := clock.Now().Add(-2 * time.Hour)
	user.Credits = 0
	user.LastDepletedAt = &depleted
	assert.False(t, engine.ReconcileRefill(user), "locked account waits out the cooldown")

	depleted = clock.Now().Add(-49 * time.Hour)
	user.LastDepletedAt = &depleted
	require.True(t, engine.ReconcileRefill(user))
	assert.Equal(t, 10, user.Credits)
}

func TestFullLifecycle(t *testing.T) {
	engine, clock := newTestEngine(t)
	user := freeUser(50)

	// Burn the allotment same-day: ACTIVE -> DEPLETED_GRACE.
	for i := 0; i < 50; i++ {
		require.True(t, engine.TryDebit(user).OK)
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 0, user.Credits)
	require.NotNil(t, user.LastDepletedAt)
	assert.False(t, engine.TryDebit(user).OK)

	// Grace elapses: back to ACTIVE via lazy refill on the next debit.
	clock.Advance(9 * time.Hour)
	res := engine.TryDebit(user)
	require.True(t, res.OK)
	assert.True(t, res.Refilled)
	assert.Equal(t, 49, user.Credits)
}
