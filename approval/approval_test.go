package approval_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/generic"
)

var (
	admin  = generic.Actor{ID: "admin-1", Role: generic.RoleAdmin, Context: "planning"}
	driver = generic.Actor{ID: "drv-001", Role: generic.RoleDriver, Context: "app"}
	other  = generic.Actor{ID: "drv-002", Role: generic.RoleDriver, Context: "app"}
	now    = time.Date(2024, time.June, 17, 9, 0, 0, 0, time.UTC)
)

func assertStateError(t *testing.T, err error, current string) {
	t.Helper()
	var se *generic.StateError
	require.True(t, errors.As(err, &se), "expected StateError, got %v", err)
	assert.Equal(t, current, se.Current)
}

func assertActorError(t *testing.T, err error, actor, action string) {
	t.Helper()
	var ae *generic.ActorError
	require.True(t, errors.As(err, &ae), "expected ActorError, got %v", err)
	assert.Equal(t, actor, ae.Actor)
	assert.Equal(t, action, ae.Action)
	assert.NotErrorIs(t, err, generic.ErrInvalidStateTransition)
}

// =============================================================================
// WEEK APPROVAL
// =============================================================================

func TestWeekApproval_HappyPath(t *testing.T) {
	// GIVEN: A fresh week approval
	w := approval.NewWeekApproval("w1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	assert.Equal(t, approval.WeekPendingAdmin, w.Status)
	assert.Equal(t, generic.WeekKey{Year: 2024, Week: 24}, w.Week)
	assert.Equal(t, 6, w.Period)

	// WHEN: Admin allows, then the driver signs
	require.NoError(t, w.Allow(admin, now))
	assert.Equal(t, approval.WeekPendingDriver, w.Status)
	require.NotNil(t, w.AllowedBy)
	assert.Equal(t, "admin-1", w.AllowedBy.By)

	require.NoError(t, w.Sign(driver, now.Add(time.Hour)))

	// THEN: Signed with the driver's signature and context
	assert.Equal(t, approval.WeekSigned, w.Status)
	require.NotNil(t, w.SignedBy)
	assert.Equal(t, "drv-001", w.SignedBy.By)
	assert.Equal(t, "app", w.SignedBy.Context)
}

func TestWeekApproval_RejectsOutOfOrderSteps(t *testing.T) {
	w := approval.NewWeekApproval("w1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)

	// Driver can't sign before the admin allows
	assertStateError(t, w.Sign(driver, now), "pending_admin")

	// Only an admin allows
	assertActorError(t, w.Allow(driver, now), "driver:drv-001", "allow")

	require.NoError(t, w.Allow(admin, now))

	// Allowing twice is rejected
	assertStateError(t, w.Allow(admin, now), "pending_driver")

	// Another driver can't sign
	assertActorError(t, w.Sign(other, now), "driver:drv-002", "sign")
	assert.Equal(t, approval.WeekPendingDriver, w.Status)
}

func TestWeekApproval_InvalidateAndReallow(t *testing.T) {
	// GIVEN: A signed week
	w := approval.NewWeekApproval("w1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	require.NoError(t, w.Allow(admin, now))
	require.NoError(t, w.Sign(driver, now))

	// WHEN: A ride in it is edited
	changed := w.Invalidate(now.Add(time.Hour))

	// THEN: The signature no longer holds
	assert.True(t, changed)
	assert.Equal(t, approval.WeekInvalidated, w.Status)
	require.NotNil(t, w.InvalidatedAt)
	assert.False(t, w.Invalidate(now.Add(2*time.Hour)), "already invalidated")

	// The driver can't re-sign without a new allowance
	assertStateError(t, w.Sign(driver, now), "invalidated")

	require.NoError(t, w.Allow(admin, now.Add(3*time.Hour)))
	assert.Equal(t, approval.WeekPendingDriver, w.Status)
	assert.Nil(t, w.SignedBy)
}

func TestWeekApproval_InvalidateOnlyAffectsSigned(t *testing.T) {
	w := approval.NewWeekApproval("w1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	assert.False(t, w.Invalidate(now))
	assert.Equal(t, approval.WeekPendingAdmin, w.Status)

	require.NoError(t, w.Allow(admin, now))
	assert.False(t, w.Invalidate(now))
	assert.Equal(t, approval.WeekPendingDriver, w.Status)
}

// =============================================================================
// PERIOD APPROVAL
// =============================================================================

// weeksOf returns approvals for the period's weeks, the first n signed.
func weeksOf(p generic.PeriodKey, n int) []*approval.WeekApproval {
	var out []*approval.WeekApproval
	for i, k := range p.Weeks() {
		w := approval.NewWeekApproval(generic.WeekApprovalID(k.String()), "drv-001", k.Range().Start, now)
		if i < n {
			w.Status = approval.WeekSigned
		}
		out = append(out, w)
	}
	return out
}

func TestPeriodApproval_DriverSignRequiresAllWeeks(t *testing.T) {
	// GIVEN: Period 6 of 2024 with three of four weeks signed
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	require.Equal(t, generic.PeriodKey{Year: 2024, Number: 6}, p.Period)
	weeks := weeksOf(p.Period, 3)

	// WHEN/THEN: Signing is rejected and readiness says not ready
	assert.Equal(t, approval.NotReady, p.Readiness(weeks))
	assertStateError(t, p.Sign(driver, weeks, now), "pending_driver")

	// Missing week approvals count as unsigned
	assert.False(t, p.AllWeeksSigned(weeks[:2]))
}

func TestPeriodApproval_FullSignOff(t *testing.T) {
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	weeks := weeksOf(p.Period, 4)
	assert.Equal(t, approval.ReadyToSign, p.Readiness(weeks))

	// Admin can't go first
	assertStateError(t, p.Sign(admin, weeks, now), "pending_driver")

	require.NoError(t, p.Sign(driver, weeks, now))
	assert.Equal(t, approval.PeriodPendingAdmin, p.Status)
	require.NotNil(t, p.DriverSignature)

	require.NoError(t, p.Sign(admin, weeks, now.Add(time.Hour)))
	assert.Equal(t, approval.PeriodSigned, p.Status)
	require.NotNil(t, p.AdminSignature)
	assert.Equal(t, approval.Signed, p.Readiness(weeks))

	assertStateError(t, p.Sign(admin, weeks, now), "signed")
}

func TestPeriodApproval_OtherDriverCannotSign(t *testing.T) {
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	weeks := weeksOf(p.Period, 4)

	assertActorError(t, p.Sign(other, weeks, now), "driver:drv-002", "sign")
	assert.Equal(t, approval.PeriodPendingDriver, p.Status)

	stranger := generic.Actor{ID: "ops-1", Role: generic.Role("auditor")}
	assertActorError(t, p.Sign(stranger, weeks, now), "auditor:ops-1", "sign")
}

func TestPeriodApproval_InvalidateAndResign(t *testing.T) {
	// GIVEN: A fully signed period
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)
	weeks := weeksOf(p.Period, 4)
	require.NoError(t, p.Sign(driver, weeks, now))
	require.NoError(t, p.Sign(admin, weeks, now))

	// WHEN: A ride in it is edited
	assert.True(t, p.Invalidate(now))

	// THEN: It needs both signatures again
	assert.Equal(t, approval.PeriodInvalidated, p.Status)
	assert.False(t, p.Invalidate(now))
	assertStateError(t, p.Sign(admin, weeks, now), "invalidated")

	require.NoError(t, p.Sign(driver, weeks, now))
	assert.Equal(t, approval.PeriodPendingAdmin, p.Status)
	assert.Nil(t, p.AdminSignature)
}

func TestPeriodApproval_PendingDriverIsNotInvalidated(t *testing.T) {
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)

	assert.False(t, p.Invalidate(now))
	assert.Equal(t, approval.PeriodPendingDriver, p.Status)
}

func TestPeriodApproval_ShortFinalPeriod(t *testing.T) {
	// GIVEN: Period 14 of 2020 holds only ISO week 53
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2020, time.December, 30), now)
	require.Equal(t, generic.PeriodKey{Year: 2020, Number: 14}, p.Period)
	weeks := weeksOf(p.Period, 1)

	// WHEN/THEN: One signed week is enough
	assert.Equal(t, approval.ReadyToSign, p.Readiness(weeks))
	require.NoError(t, p.Sign(driver, weeks, now))
}

func TestPeriodApproval_SetTotalsRounds(t *testing.T) {
	p := approval.NewPeriodApproval("p1", "drv-001", generic.NewTimePoint(2024, time.June, 12), now)

	p.SetTotals(generic.MustParseDecimal("56.254"), generic.MustParseDecimal("62.805"))

	assert.Equal(t, "56.25", p.TotalHours.StringFixed(2))
	assert.Equal(t, "62.81", p.TotalCompensation.StringFixed(2))
}
