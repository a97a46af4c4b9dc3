package credit

import (
	"time"

	"companion-api/internal/models"
)

// Clock supplies the current time so elapsed-time behavior is testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config holds the metering policy numbers. Defaults match the current
// product contract; all of them can be overridden through the environment
// (see config.NewCreditPolicyConfig).
type Config struct {
	FreeRefillCredits    int
	PremiumRefillCredits int
	GraceDelay           time.Duration
	LockCooldown         time.Duration
	UsageWindow          time.Duration
	LockThreshold        int
}

func DefaultConfig() Config {
	return Config{
		FreeRefillCredits:    50,
		PremiumRefillCredits: 200,
		GraceDelay:           8 * time.Hour,
		LockCooldown:         7 * 24 * time.Hour,
		UsageWindow:          14 * 24 * time.Hour,
		LockThreshold:        650,
	}
}

// DebitResult reports what a TryDebit call did to the account. On a
// refused debit ThreadLocked tells the caller whether the account is
// waiting out the lock cooldown rather than the ordinary grace delay.
type DebitResult struct {
	OK           bool
	Refilled     bool
	Depleted     bool
	LockTripped  bool
	ThreadLocked bool
}

// StatusSnapshot is the projection returned by the credit status endpoint.
type StatusSnapshot struct {
	Credits           int               `json:"credits"`
	IsOutOfCredits    bool              `json:"is_out_of_credits"`
	Membership        models.Membership `json:"membership"`
	DailyCap          int               `json:"daily_cap"`
	TotalUsage14d     int               `json:"total_usage_14d"`
	ThreadDepthLocked bool              `json:"thread_depth_locked"`
	NextRefillAt      *time.Time        `json:"next_refill_at,omitempty"`
	UsageLimit        *int              `json:"usage_limit,omitempty"`
}

// Engine is the pure decision core of the metering policy. Its methods
// mutate the in-memory account only; persistence is the caller's job, done
// once per operation inside a row-locked transaction.
type Engine struct {
	cfg   Config
	clock Clock
}

func NewEngine(cfg Config, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{cfg: cfg, clock: clock}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// TryDebit spends one credit if any are available after catching the
// account up on a pending refill. On the 1->0 transition it starts the
// refill timer.
func (e *Engine) TryDebit(u *models.User) DebitResult {
	res := DebitResult{Refilled: e.ReconcileRefill(u)}

	if u.Credits <= 0 {
		res.ThreadLocked = u.ThreadDepthLocked
		return res
	}

	u.Credits--
	if u.Credits == 0 {
		now := e.clock.Now()
		u.LastDepletedAt = &now
	}
	res.LockTripped = e.recordUsage(u)
	res.Depleted = u.Credits == 0
	res.OK = true
	return res
}

// ReconcileRefill applies a due refill. Refill is lazy: there is no
// background timer, every debit or status read calls this first. Only
// reachable from {credits == 0, depletion timestamp set}; idempotent.
func (e *Engine) ReconcileRefill(u *models.User) bool {
	if u.Credits != 0 || u.LastDepletedAt == nil {
		return false
	}

	delay := e.cfg.GraceDelay
	if u.ThreadDepthLocked {
		delay = e.cfg.LockCooldown
	}
	if e.clock.Now().Before(u.LastDepletedAt.Add(delay)) {
		return false
	}

	u.Credits = e.refillAmount(u)
	u.LastDepletedAt = nil
	if u.ThreadDepthLocked {
		u.ThreadDepthLocked = false
		u.TotalUsage14d = 0
	}
	return true
}

// recordUsage maintains the rolling 14-day counter and trips the thread
// depth lock at the threshold. Free tier only; a premium account never
// accumulates usage, and any stale lock is dropped on its next debit.
//
// The counter only increments when the previous debit happened on the same
// UTC calendar date. One debit per day across distinct days never trips the
// lock. That is the shipped behavior, kept as-is.
func (e *Engine) recordUsage(u *models.User) bool {
	if u.Membership == models.PremiumMembership {
		u.ThreadDepthLocked = false
		return false
	}

	now := e.clock.Now()
	switch {
	case u.LastUsageAt == nil:
		u.TotalUsage14d = 1
	case now.Sub(*u.LastUsageAt) > e.cfg.UsageWindow:
		// Window elapsed with no activity: discard the stale count. The
		// current debit starts accruing from the next same-day call.
		u.TotalUsage14d = 0
	case sameUTCDate(*u.LastUsageAt, now):
		u.TotalUsage14d++
	}
	u.LastUsageAt = &now

	if u.TotalUsage14d >= e.cfg.LockThreshold {
		u.ThreadDepthLocked = true
		u.TotalUsage14d = 0
		return true
	}
	return false
}

// NextRefillAt reports when a depleted account's credits come back, or nil
// if the account still has credits.
func (e *Engine) NextRefillAt(u *models.User) *time.Time {
	if u.Credits > 0 || u.LastDepletedAt == nil {
		return nil
	}
	delay := e.cfg.GraceDelay
	if u.ThreadDepthLocked {
		delay = e.cfg.LockCooldown
	}
	at := u.LastDepletedAt.Add(delay)
	return &at
}

// Snapshot projects the account into the status payload. Callers reconcile
// the refill first; Snapshot itself never mutates.
func (e *Engine) Snapshot(u *models.User) StatusSnapshot {
	snap := StatusSnapshot{
		Credits:        u.Credits,
		IsOutOfCredits: u.Credits <= 0,
		Membership:     u.Membership,
		DailyCap:       e.refillAmount(u),
		NextRefillAt:   e.NextRefillAt(u),
	}
	if u.Membership != models.PremiumMembership {
		snap.TotalUsage14d = u.TotalUsage14d
		snap.ThreadDepthLocked = u.ThreadDepthLocked
		limit := e.cfg.LockThreshold
		snap.UsageLimit = &limit
	}
	return snap
}

func (e *Engine) refillAmount(u *models.User) int {
	if u.Membership == models.PremiumMembership {
		return e.cfg.PremiumRefillCredits
	}
	return e.cfg.FreeRefillCredits
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
