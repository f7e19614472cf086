package payroll_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/config"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/payroll/store"
	"github.com/warp/ride-engine/ride"
	"github.com/warp/ride-engine/vacation"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

const driverID = generic.DriverID("drv-001")

var (
	admin      = generic.Actor{ID: "admin-1", Role: generic.RoleAdmin, Context: "planning"}
	driver     = generic.Actor{ID: string(driverID), Role: generic.RoleDriver, Context: "app"}
	otherDrv   = generic.Actor{ID: "drv-002", Role: generic.RoleDriver, Context: "app"}
	fixedClock = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *store.Memory
	svc     *payroll.Service
	changes []payroll.RideChange
}

// newHarness seeds the built-in reference data and one full-time driver with
// a 25km commute, born 1985, employed since 2020.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	seed, err := config.DefaultSeed()
	require.NoError(t, err)
	require.NoError(t, seed.Apply(ctx, mem))

	require.NoError(t, mem.PutDriver(ctx, payroll.Driver{ID: driverID, Name: "Jan de Vries", BirthDate: generic.NewTimePoint(1985, time.March, 14)}))
	settings := compensation.DefaultDriverSettings(driverID)
	settings.HourlyWage = dec("17.85")
	settings.KilometerAllowanceEnabled = true
	settings.HomeWorkDistanceKm = dec("25")
	require.NoError(t, mem.PutDriverSettings(ctx, settings))
	require.NoError(t, mem.PutContract(ctx, vacation.Contract{ID: "c1", DriverID: driverID, StartDate: generic.NewTimePoint(2020, time.January, 1)}))

	h := &harness{t: t, ctx: ctx, store: mem}
	h.svc = payroll.NewService(mem, payroll.Config{DefaultHoursCode: "normal"})
	h.svc.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	h.svc.Now = func() time.Time { return fixedClock }
	h.svc.OnRideChanged = func(_ context.Context, c payroll.RideChange) {
		h.changes = append(h.changes, c)
	}
	return h
}

func dec(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s: want %s, got %s", field, want, got)
}

func inputs(date generic.TimePoint, start, end string) ride.RawInputs {
	return ride.RawInputs{
		Date:      date,
		Start:     generic.MustClock(start),
		End:       generic.MustClock(end),
		RestTaken: generic.MustClock("00:45"),
	}
}

func (h *harness) saveRide(date generic.TimePoint, start, end string) ride.Record {
	h.t.Helper()
	rec, err := h.svc.SaveRide(h.ctx, ride.Record{DriverID: driverID, RawInputs: inputs(date, start, end)})
	require.NoError(h.t, err)
	return rec
}

// signWeek walks the week containing date through admin allowance and
// driver signature.
func (h *harness) signWeek(date generic.TimePoint) *approval.WeekApproval {
	h.t.Helper()
	w, err := h.svc.GetOrCreateWeekApproval(h.ctx, driverID, date)
	require.NoError(h.t, err)
	_, err = h.svc.AllowWeek(h.ctx, w.ID, admin)
	require.NoError(h.t, err)
	w, err = h.svc.SignWeek(h.ctx, w.ID, driver)
	require.NoError(h.t, err)
	require.Equal(h.t, approval.WeekSigned, w.Status)
	return w
}

func (h *harness) week(date generic.TimePoint) *approval.WeekApproval {
	h.t.Helper()
	w, err := h.store.FindWeekApproval(h.ctx, driverID, generic.WeekOf(date))
	require.NoError(h.t, err)
	return w
}

func (h *harness) period(date generic.TimePoint) *approval.PeriodApproval {
	h.t.Helper()
	p, err := h.store.FindPeriodApproval(h.ctx, driverID, generic.PeriodOf(date))
	require.NoError(h.t, err)
	return p
}

var (
	tue11June = generic.NewTimePoint(2024, time.June, 11)
	tue18June = generic.NewTimePoint(2024, time.June, 18)
)

// =============================================================================
// RIDE COMMIT
// =============================================================================

func TestSaveRide_ComputesAndBooks(t *testing.T) {
	h := newHarness(t)

	// WHEN: Saving a 06:00-18:00 shift
	rec := h.saveRide(tue11June, "06:00", "18:00")

	// THEN: The record carries its computed figures
	require.NotNil(t, rec.Result)
	assertDecimal(t, "11.25", rec.Result.DecimalHours, "decimal hours")
	assertDecimal(t, "11.5", rec.Result.KilometerAllowance, "km allowance")
	assertDecimal(t, "0.76", rec.Result.VacationHoursEarned, "vacation earned")
	assert.NotEmpty(t, rec.ID)

	// AND: Week and period approvals were created lazily
	w := h.week(tue11June)
	assert.Equal(t, w.ID, rec.WeekApprovalID)
	assert.Equal(t, approval.WeekPendingAdmin, w.Status)

	p := h.period(tue11June)
	assert.Equal(t, approval.PeriodPendingDriver, p.Status)
	assertDecimal(t, "11.25", p.TotalHours, "period hours")
	assertDecimal(t, "12.56", p.TotalCompensation, "period compensation")

	require.Len(t, h.changes, 1)
	assert.False(t, h.changes[0].Invalidated)
}

func TestSaveRide_RejectsInvalidInputs(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SaveRide(h.ctx, ride.Record{DriverID: driverID, RawInputs: inputs(tue11June, "18:00", "06:00")})

	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Empty(t, h.changes)
}

func TestSaveRide_MissingRateBlocksCommit(t *testing.T) {
	h := newHarness(t)
	date := generic.NewTimePoint(2023, time.December, 29)

	_, err := h.svc.SaveRide(h.ctx, ride.Record{DriverID: driverID, RawInputs: inputs(date, "06:00", "18:00")})

	assert.ErrorIs(t, err, generic.ErrMissingRateRow)
	_, err = h.store.FindWeekApproval(h.ctx, driverID, generic.WeekOf(date))
	assert.True(t, generic.IsNotFound(err), "no approval may be created")
}

func TestSaveRide_EditInvalidatesSignedWeek(t *testing.T) {
	// GIVEN: A ride in a signed week
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	h.signWeek(tue11June)

	// WHEN: The ride is edited to end at 19:00
	rec.End = generic.MustClock("19:00")
	edited, err := h.svc.SaveRide(h.ctx, rec)
	require.NoError(t, err)

	// THEN: Recomputed with the long-day allowance
	assertDecimal(t, "12.25", edited.Result.DecimalHours, "decimal hours")
	assertDecimal(t, "19.29", edited.Result.UntaxedAllowance, "untaxed allowance")
	assert.Equal(t, 1, edited.Version)

	// AND: The week signature no longer holds
	assert.Equal(t, approval.WeekInvalidated, h.week(tue11June).Status)
	require.Len(t, h.changes, 2)
	assert.True(t, h.changes[1].Invalidated)

	// AND: Period totals follow
	p := h.period(tue11June)
	assertDecimal(t, "12.25", p.TotalHours, "period hours")
	assertDecimal(t, "30.79", p.TotalCompensation, "period compensation")
}

func TestSaveRide_IdenticalResaveIsNoop(t *testing.T) {
	// GIVEN: A ride in a signed week
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	h.signWeek(tue11June)

	// WHEN: Saving the same inputs again
	again, err := h.svc.SaveRide(h.ctx, rec)
	require.NoError(t, err)

	// THEN: Nothing changed
	assert.Equal(t, rec.Version, again.Version)
	assert.Equal(t, approval.WeekSigned, h.week(tue11June).Status)
	assert.Len(t, h.changes, 1)
}

func TestSaveRide_StaleVersionConflicts(t *testing.T) {
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")

	first := rec
	first.End = generic.MustClock("17:00")
	_, err := h.svc.SaveRide(h.ctx, first)
	require.NoError(t, err)

	// A second editor still holding version 0
	second := rec
	second.End = generic.MustClock("16:00")
	_, err = h.svc.SaveRide(h.ctx, second)

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(err))
}

func TestSaveRide_CannotChangeDriver(t *testing.T) {
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")

	rec.DriverID = "drv-002"
	_, err := h.svc.SaveRide(h.ctx, rec)

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestSaveRide_MoveToAnotherWeekCascadesBoth(t *testing.T) {
	// GIVEN: A ride in a signed week of period 6
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	h.signWeek(tue11June)

	// WHEN: The ride is moved to the next week, in period 7
	rec.Date = tue18June
	moved, err := h.svc.SaveRide(h.ctx, rec)
	require.NoError(t, err)

	// THEN: The old week is invalidated and the new one starts fresh
	assert.Equal(t, approval.WeekInvalidated, h.week(tue11June).Status)
	newWeek := h.week(tue18June)
	assert.Equal(t, newWeek.ID, moved.WeekApprovalID)
	assert.Equal(t, approval.WeekPendingAdmin, newWeek.Status)

	// AND: Both periods have current totals
	assertDecimal(t, "0", h.period(tue11June).TotalHours, "old period hours")
	assertDecimal(t, "11.25", h.period(tue18June).TotalHours, "new period hours")
}

// =============================================================================
// PERIOD SIGN-OFF
// =============================================================================

func TestSignPeriod_GatedByWeeks(t *testing.T) {
	h := newHarness(t)

	// GIVEN: One ride in each week of period 6 (ISO weeks 21-24)
	tuesdays := []generic.TimePoint{
		generic.NewTimePoint(2024, time.May, 21),
		generic.NewTimePoint(2024, time.May, 28),
		generic.NewTimePoint(2024, time.June, 4),
		generic.NewTimePoint(2024, time.June, 11),
	}
	for _, d := range tuesdays {
		h.saveRide(d, "06:00", "18:00")
	}
	for _, d := range tuesdays[:3] {
		h.signWeek(d)
	}
	p := h.period(tue11June)

	// WHEN: The driver signs with one week open
	readiness, err := h.svc.PeriodReadiness(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.NotReady, readiness)

	_, err = h.svc.SignPeriod(h.ctx, p.ID, driver)

	// THEN: Rejected
	assert.ErrorIs(t, err, generic.ErrInvalidStateTransition)

	// WHEN: The last week is signed
	h.signWeek(tuesdays[3])
	readiness, err = h.svc.PeriodReadiness(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.ReadyToSign, readiness)

	// THEN: Driver then admin sign
	p, err = h.svc.SignPeriod(h.ctx, p.ID, driver)
	require.NoError(t, err)
	assert.Equal(t, approval.PeriodPendingAdmin, p.Status)

	p, err = h.svc.SignPeriod(h.ctx, p.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, approval.PeriodSigned, p.Status)
	assertDecimal(t, "45", p.TotalHours, "period hours")
	assertDecimal(t, "50.24", p.TotalCompensation, "period compensation")

	readiness, err = h.svc.PeriodReadiness(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.Signed, readiness)
}

func TestSignedPeriodInvalidatedByRideEdit(t *testing.T) {
	// GIVEN: A fully signed period with a single-week ride booked in it
	h := newHarness(t)
	tuesdays := []generic.TimePoint{
		generic.NewTimePoint(2024, time.May, 21),
		generic.NewTimePoint(2024, time.May, 28),
		generic.NewTimePoint(2024, time.June, 4),
		generic.NewTimePoint(2024, time.June, 11),
	}
	var last ride.Record
	for _, d := range tuesdays {
		last = h.saveRide(d, "06:00", "18:00")
		h.signWeek(d)
	}
	p := h.period(tue11June)
	_, err := h.svc.SignPeriod(h.ctx, p.ID, driver)
	require.NoError(t, err)
	_, err = h.svc.SignPeriod(h.ctx, p.ID, admin)
	require.NoError(t, err)

	// WHEN: One ride is edited
	last.Start = generic.MustClock("07:00")
	_, err = h.svc.SaveRide(h.ctx, last)
	require.NoError(t, err)

	// THEN: Week and period both need signing again
	assert.Equal(t, approval.WeekInvalidated, h.week(tue11June).Status)
	assert.Equal(t, approval.PeriodInvalidated, h.period(tue11June).Status)
}

func TestGetOrCreateWeekApproval_ReturnsExisting(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.GetOrCreateWeekApproval(h.ctx, driverID, tue11June)
	require.NoError(t, err)
	second, err := h.svc.GetOrCreateWeekApproval(h.ctx, driverID, generic.NewTimePoint(2024, time.June, 16))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	weeks, err := h.svc.ListWeekApprovals(h.ctx, driverID, generic.PeriodKey{Year: 2024, Number: 6})
	require.NoError(t, err)
	assert.Len(t, weeks, 1)

	_, err = h.svc.GetOrCreateWeekApproval(h.ctx, "", tue11June)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestWeekTransitions_RequireRoles(t *testing.T) {
	h := newHarness(t)
	w, err := h.svc.GetOrCreateWeekApproval(h.ctx, driverID, tue11June)
	require.NoError(t, err)

	_, err = h.svc.AllowWeek(h.ctx, w.ID, driver)
	assert.ErrorIs(t, err, generic.ErrActorNotAllowed)

	_, err = h.svc.AllowWeek(h.ctx, w.ID, admin)
	require.NoError(t, err)

	_, err = h.svc.SignWeek(h.ctx, w.ID, otherDrv)
	assert.ErrorIs(t, err, generic.ErrActorNotAllowed)

	_, err = h.svc.AllowWeek(h.ctx, "missing", admin)
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// RIDE DISPUTES
// =============================================================================

func TestDispute_DriverAcceptAppliesCorrection(t *testing.T) {
	// GIVEN: A ride in a signed week with an admin proposing +2.5h
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	h.signWeek(tue11June)

	d, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("2.5"), "Depot loading not booked")
	require.NoError(t, err)
	assert.Equal(t, dispute.PendingDriver, d.Status)

	// WHEN: The driver accepts
	d, err = h.svc.AcceptDispute(h.ctx, d.ID, driver)
	require.NoError(t, err)

	// THEN: The correction lands on the ride and it is recomputed
	assert.Equal(t, dispute.AcceptedByDriver, d.Status)
	got, err := h.store.GetRecord(h.ctx, rec.ID)
	require.NoError(t, err)
	assertDecimal(t, "2.5", got.CorrectionHours, "correction hours")
	assertDecimal(t, "13.75", got.Result.DecimalHours, "decimal hours")

	// AND: The signed week is invalidated and totals refreshed
	assert.Equal(t, approval.WeekInvalidated, h.week(tue11June).Status)
	assertDecimal(t, "13.75", h.period(tue11June).TotalHours, "period hours")
	require.NotEmpty(t, h.changes)
	assert.True(t, h.changes[len(h.changes)-1].Invalidated)
}

func TestDispute_CounterThenAdminAccepts(t *testing.T) {
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	d, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("2.5"), "")
	require.NoError(t, err)

	_, err = h.svc.CounterDispute(h.ctx, d.ID, driver, dec("1.5"))
	require.NoError(t, err)
	d, err = h.svc.AcceptDispute(h.ctx, d.ID, admin)
	require.NoError(t, err)

	assert.Equal(t, dispute.AcceptedByAdmin, d.Status)
	got, err := h.store.GetRecord(h.ctx, rec.ID)
	require.NoError(t, err)
	assertDecimal(t, "12.75", got.Result.DecimalHours, "decimal hours")
}

func TestDispute_CloseLeavesRideUntouched(t *testing.T) {
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	d, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("2.5"), "")
	require.NoError(t, err)

	d, err = h.svc.CloseDispute(h.ctx, d.ID, admin)
	require.NoError(t, err)

	assert.Equal(t, dispute.Closed, d.Status)
	got, err := h.store.GetRecord(h.ctx, rec.ID)
	require.NoError(t, err)
	assertDecimal(t, "11.25", got.Result.DecimalHours, "decimal hours")
	assert.Equal(t, rec.Version, got.Version)
}

func TestDispute_OneOpenPerRide(t *testing.T) {
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	first, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("1"), "")
	require.NoError(t, err)

	_, err = h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("2"), "")
	assert.ErrorIs(t, err, generic.ErrValidation)

	// Once settled a new one may be opened
	_, err = h.svc.CloseDispute(h.ctx, first.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("2"), "")
	assert.NoError(t, err)
}

func TestDispute_CorrectionEditBlockedWhileOpen(t *testing.T) {
	// GIVEN: An open dispute on a ride
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	_, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("1"), "")
	require.NoError(t, err)

	// WHEN: Someone edits the correction hours directly
	rec.CorrectionHours = dec("1")
	_, err = h.svc.SaveRide(h.ctx, rec)

	// THEN: Rejected, the dispute owns the correction
	assert.ErrorIs(t, err, generic.ErrInvalidStateTransition)

	// Other fields stay editable
	rec.CorrectionHours = decimal.Zero
	rec.End = generic.MustClock("17:00")
	_, err = h.svc.SaveRide(h.ctx, rec)
	assert.NoError(t, err)
}

func TestDispute_Comments(t *testing.T) {
	h := newHarness(t)
	rec := h.saveRide(tue11June, "06:00", "18:00")
	d, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("1"), "")
	require.NoError(t, err)

	_, err = h.svc.AddDisputeComment(h.ctx, d.ID, admin, "See tacho export")
	require.NoError(t, err)
	_, err = h.svc.AddDisputeComment(h.ctx, d.ID, driver, "Agreed, I forgot the loading")
	require.NoError(t, err)
	_, err = h.svc.AddDisputeComment(h.ctx, d.ID, otherDrv, "Me too")
	assert.ErrorIs(t, err, generic.ErrActorNotAllowed)

	got, err := h.svc.GetDispute(h.ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "See tacho export", got.Comments[0].Body)
	assert.Equal(t, string(driverID), got.Comments[1].AuthorID)
	assert.Equal(t, dispute.PendingDriver, got.Status)
}

// =============================================================================
// SHARED RIDES AND EXECUTIONS
// =============================================================================

func (h *harness) saveExecution(waiting string) ride.Execution {
	h.t.Helper()
	shared, err := h.svc.CreateSharedRide(h.ctx, ride.Ride{Date: tue11June, Description: "Rotterdam - Venlo"})
	require.NoError(h.t, err)

	w := dec(waiting)
	ex, err := h.svc.SaveExecution(h.ctx, ride.Execution{
		RideID:           shared.ID,
		DriverID:         driverID,
		RawInputs:        inputs(tue11June, "06:00", "18:00"),
		ContainerWaiting: &w,
	})
	require.NoError(h.t, err)
	return ex
}

func TestSaveExecution_ContainerWaiting(t *testing.T) {
	h := newHarness(t)

	ex := h.saveExecution("2.5")

	require.NotNil(t, ex.Result)
	require.NotNil(t, ex.Result.ExceedingContainerWaiting)
	assertDecimal(t, "1.5", *ex.Result.ExceedingContainerWaiting, "exceeding waiting")
	assertDecimal(t, "11.25", ex.Result.DecimalHours, "decimal hours")
	assert.Equal(t, h.week(tue11June).ID, ex.WeekApprovalID)
	assertDecimal(t, "11.25", h.period(tue11June).TotalHours, "period hours")
}

func TestSaveExecution_UnknownRide(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SaveExecution(h.ctx, ride.Execution{
		RideID:    "ride-404",
		DriverID:  driverID,
		RawInputs: inputs(tue11June, "06:00", "18:00"),
	})

	assert.True(t, generic.IsNotFound(err))
}

func TestCreateSharedRide_RequiresDate(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateSharedRide(h.ctx, ride.Ride{Description: "undated"})

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestExecutionDispute_HoursCorrected(t *testing.T) {
	// GIVEN: A driver disputing their execution
	h := newHarness(t)
	ex := h.saveExecution("0.5")

	d, err := h.svc.OpenExecutionDispute(h.ctx, ex.ID, driver, "Terminal queue not booked")
	require.NoError(t, err)

	// Only one open dispute per execution
	_, err = h.svc.OpenExecutionDispute(h.ctx, ex.ID, driver, "again")
	assert.ErrorIs(t, err, generic.ErrValidation)

	// Correction edits are blocked while it is open
	blocked := ex
	blocked.CorrectionHours = dec("1")
	_, err = h.svc.SaveExecution(h.ctx, blocked)
	assert.ErrorIs(t, err, generic.ErrInvalidStateTransition)

	// WHEN: The admin resolves with a one hour correction
	one := dec("1")
	d, err = h.svc.ResolveExecutionDispute(h.ctx, d.ID, admin, payroll.ExecutionResolution{
		Type:       dispute.HoursCorrected,
		Notes:      "Terminal log confirms",
		Correction: &one,
	})
	require.NoError(t, err)

	// THEN: The execution is recomputed with the correction
	assert.Equal(t, dispute.ExecutionResolved, d.Status)
	got, err := h.store.GetExecution(h.ctx, ex.ID)
	require.NoError(t, err)
	assertDecimal(t, "1", got.CorrectionHours, "correction hours")
	assertDecimal(t, "12.25", got.Result.DecimalHours, "decimal hours")
}

func TestExecutionDispute_NoChangeAndClose(t *testing.T) {
	h := newHarness(t)
	ex := h.saveExecution("0.5")

	d, err := h.svc.OpenExecutionDispute(h.ctx, ex.ID, driver, "Check waiting time")
	require.NoError(t, err)
	_, err = h.svc.AddExecutionDisputeComment(h.ctx, d.ID, admin, "Within the free hour")
	require.NoError(t, err)

	d, err = h.svc.ResolveExecutionDispute(h.ctx, d.ID, admin, payroll.ExecutionResolution{Type: dispute.NoChange})
	require.NoError(t, err)
	assert.Equal(t, dispute.ExecutionResolved, d.Status)

	got, err := h.store.GetExecution(h.ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, ex.Version, got.Version)

	// A fresh dispute can be closed without resolution
	d2, err := h.svc.OpenExecutionDispute(h.ctx, ex.ID, driver, "Still wrong")
	require.NoError(t, err)
	d2, err = h.svc.CloseExecutionDispute(h.ctx, d2.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, dispute.ExecutionClosed, d2.Status)

	thread, err := h.svc.GetExecutionDispute(h.ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, thread.Comments, 1)
}

func TestExecutionDispute_OnlyOwnDriverOpens(t *testing.T) {
	h := newHarness(t)
	ex := h.saveExecution("0.5")

	_, err := h.svc.OpenExecutionDispute(h.ctx, ex.ID, otherDrv, "Not mine")

	assert.ErrorIs(t, err, generic.ErrActorNotAllowed)
}

// =============================================================================
// CALCULATION ENTRY POINTS
// =============================================================================

func TestResolveRate(t *testing.T) {
	h := newHarness(t)

	row, err := h.svc.ResolveRate(h.ctx, generic.NewTimePoint(2024, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, generic.RateRowID("cao-2024-h2"), row.ID)

	_, err = h.svc.ResolveRate(h.ctx, generic.NewTimePoint(2023, time.December, 31))
	assert.ErrorIs(t, err, generic.ErrReferenceDataMissing)
}

func TestCalculateCompensation_DoesNotWrite(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.CalculateCompensation(h.ctx, compensation.Inputs{
		DriverID:  driverID,
		Date:      tue11June,
		Start:     generic.MustClock("06:00"),
		End:       generic.MustClock("18:00"),
		RestTaken: generic.MustClock("00:45"),
	})
	require.NoError(t, err)

	assertDecimal(t, "11.25", res.DecimalHours, "decimal hours")
	assertDecimal(t, "0.76", res.VacationHoursEarned, "vacation earned")
	_, err = h.store.FindWeekApproval(h.ctx, driverID, generic.WeekOf(tue11June))
	assert.True(t, generic.IsNotFound(err))
}

func TestEarnedVacationHours(t *testing.T) {
	h := newHarness(t)

	hours, err := h.svc.EarnedVacationHours(h.ctx, driverID, tue11June)
	require.NoError(t, err)
	assertDecimal(t, "0.76", hours, "earned hours")

	// A driver without a contract earns nothing
	hours, err = h.svc.EarnedVacationHours(h.ctx, "drv-002", tue11June)
	require.NoError(t, err)
	assert.True(t, hours.IsZero())
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// hookedStore lets a test interfere with selected calls, including those
// made through the transactional view.
type hookedStore struct {
	payroll.Store
	hooks *storeHooks
}

type storeHooks struct {
	driverSettings func(generic.DriverID) error

	// Fired once, right before the service's own insert.
	createWeek   func(ctx context.Context, st payroll.Store)
	createPeriod func(ctx context.Context, st payroll.Store)
}

func (s hookedStore) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	return s.Store.WithTx(ctx, func(tx payroll.Store) error {
		return fn(hookedStore{Store: tx, hooks: s.hooks})
	})
}

func (s hookedStore) DriverSettings(ctx context.Context, driverID generic.DriverID) (compensation.DriverSettings, error) {
	if s.hooks.driverSettings != nil {
		if err := s.hooks.driverSettings(driverID); err != nil {
			return compensation.DriverSettings{}, err
		}
	}
	return s.Store.DriverSettings(ctx, driverID)
}

func (s hookedStore) CreateWeekApproval(ctx context.Context, w *approval.WeekApproval) error {
	if fire := s.hooks.createWeek; fire != nil {
		s.hooks.createWeek = nil
		fire(ctx, s.Store)
	}
	return s.Store.CreateWeekApproval(ctx, w)
}

func (s hookedStore) CreatePeriodApproval(ctx context.Context, p *approval.PeriodApproval) error {
	if fire := s.hooks.createPeriod; fire != nil {
		s.hooks.createPeriod = nil
		fire(ctx, s.Store)
	}
	return s.Store.CreatePeriodApproval(ctx, p)
}

func (h *harness) hook() *storeHooks {
	hooks := &storeHooks{}
	h.svc.Store = hookedStore{Store: h.store, hooks: hooks}
	return hooks
}

func TestDispute_AcceptRollsBackWhenRecomputeFails(t *testing.T) {
	// GIVEN: A ride in a signed week with an open dispute
	h := newHarness(t)
	hooks := h.hook()
	rec := h.saveRide(tue11June, "06:00", "18:00")
	h.signWeek(tue11June)
	d, err := h.svc.OpenDispute(h.ctx, rec.ID, admin, dec("2.5"), "Depot loading not booked")
	require.NoError(t, err)
	notified := len(h.changes)

	// AND: The driver's settings vanish before the driver answers
	hooks.driverSettings = func(id generic.DriverID) error {
		return &generic.NotFoundError{Entity: "driver settings", ID: string(id)}
	}

	// WHEN: The driver accepts
	_, err = h.svc.AcceptDispute(h.ctx, d.ID, driver)

	// THEN: The recompute failure is reported
	assert.ErrorIs(t, err, generic.ErrMissingDriverSettings)

	// AND: Nothing of the resolution was committed
	gotDispute, err := h.store.GetDispute(h.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, dispute.PendingDriver, gotDispute.Status)
	assert.Equal(t, d.Version, gotDispute.Version)
	assert.Nil(t, gotDispute.ResolvedAt)

	gotRide, err := h.store.GetRecord(h.ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, gotRide.CorrectionHours.IsZero())
	assertDecimal(t, "11.25", gotRide.Result.DecimalHours, "decimal hours")
	assert.Equal(t, rec.Version, gotRide.Version)

	assert.Equal(t, approval.WeekSigned, h.week(tue11June).Status)
	assert.Len(t, h.changes, notified)

	// AND: Once the settings are back the same answer goes through
	hooks.driverSettings = nil
	d, err = h.svc.AcceptDispute(h.ctx, d.ID, driver)
	require.NoError(t, err)
	assert.Equal(t, dispute.AcceptedByDriver, d.Status)
}

func TestGetOrCreateWeekApproval_LosesCreateRace(t *testing.T) {
	// GIVEN: Another writer books the week between our lookup and our insert
	h := newHarness(t)
	hooks := h.hook()
	hooks.createWeek = func(ctx context.Context, st payroll.Store) {
		rival := approval.NewWeekApproval("rival-week", driverID, tue11June, fixedClock)
		require.NoError(t, st.CreateWeekApproval(ctx, rival))
	}

	// WHEN: Asking for the week
	w, err := h.svc.GetOrCreateWeekApproval(h.ctx, driverID, tue11June)

	// THEN: The existing approval is returned, not an error
	require.NoError(t, err)
	assert.Equal(t, generic.WeekApprovalID("rival-week"), w.ID)
	weeks, err := h.store.ListWeekApprovals(h.ctx, driverID, generic.PeriodOf(tue11June))
	require.NoError(t, err)
	assert.Len(t, weeks, 1)

	// AND: The period is booked even though the rival never created it
	assert.Equal(t, generic.PeriodOf(tue11June), h.period(tue11June).Period)
}

func TestGetOrCreatePeriodApproval_LosesCreateRace(t *testing.T) {
	// GIVEN: Another writer books the period between our lookup and our insert
	h := newHarness(t)
	hooks := h.hook()
	hooks.createPeriod = func(ctx context.Context, st payroll.Store) {
		rival := approval.NewPeriodApproval("rival-period", driverID, tue11June, fixedClock)
		require.NoError(t, st.CreatePeriodApproval(ctx, rival))
	}

	// WHEN: Asking for the period
	p, err := h.svc.GetOrCreatePeriodApproval(h.ctx, driverID, tue11June)

	// THEN: The existing approval is returned
	require.NoError(t, err)
	assert.Equal(t, generic.PeriodApprovalID("rival-period"), p.ID)

	// AND: Later ride commits book their totals on it
	h.saveRide(tue11June, "06:00", "18:00")
	got := h.period(tue11June)
	assert.Equal(t, generic.PeriodApprovalID("rival-period"), got.ID)
	assertDecimal(t, "11.25", got.TotalHours, "period hours")
}

// =============================================================================
// DRIVERS
// =============================================================================

func TestSaveRide_ContractWithoutDriverRow(t *testing.T) {
	// GIVEN: Settings and a contract for a driver with no master data
	h := newHarness(t)
	require.NoError(t, h.store.PutDriverSettings(h.ctx, compensation.DefaultDriverSettings("drv-003")))
	require.NoError(t, h.store.PutContract(h.ctx, vacation.Contract{ID: "c3", DriverID: "drv-003", StartDate: generic.NewTimePoint(2020, time.January, 1)}))

	// WHEN: Saving a worked day
	_, err := h.svc.SaveRide(h.ctx, ride.Record{DriverID: "drv-003", RawInputs: inputs(tue11June, "06:00", "18:00")})

	// THEN: It is reported as missing reference data, not as a missing entity
	assert.ErrorIs(t, err, generic.ErrMissingDriver)
	assert.False(t, generic.IsNotFound(err))
}

func ptr[T any](v T) *T { return &v }

func TestPutDriver_MergesIntoStoredSettings(t *testing.T) {
	// GIVEN: The harness driver with a 25km commute and kilometer allowance
	h := newHarness(t)

	// WHEN: Only the wage is edited
	d, settings, err := h.svc.PutDriver(h.ctx, payroll.DriverUpdate{ID: driverID, HourlyWage: ptr(dec("18.50"))})
	require.NoError(t, err)

	// THEN: Everything else keeps its stored value
	assert.Equal(t, "Jan de Vries", d.Name)
	assert.True(t, d.BirthDate.Equal(generic.NewTimePoint(1985, time.March, 14)))
	assertDecimal(t, "18.5", settings.HourlyWage, "hourly wage")
	assert.True(t, settings.KilometerAllowanceEnabled)
	assertDecimal(t, "25", settings.HomeWorkDistanceKm, "distance")
	assertDecimal(t, "100", settings.PartTimePercentage, "part time")

	stored, err := h.store.DriverSettings(h.ctx, driverID)
	require.NoError(t, err)
	assertDecimal(t, "18.5", stored.HourlyWage, "stored wage")
	assert.True(t, stored.KilometerAllowanceEnabled)
}

func TestPutDriver_NewDriverGetsDefaults(t *testing.T) {
	h := newHarness(t)

	_, settings, err := h.svc.PutDriver(h.ctx, payroll.DriverUpdate{
		ID:        "drv-010",
		Name:      ptr("Piet"),
		BirthDate: ptr(generic.NewTimePoint(1990, time.May, 2)),
	})
	require.NoError(t, err)
	assertDecimal(t, "100", settings.PartTimePercentage, "part time")
	assert.True(t, settings.HourlyWage.IsZero())

	// A new driver needs a birth date
	_, _, err = h.svc.PutDriver(h.ctx, payroll.DriverUpdate{ID: "drv-011", Name: ptr("Kees")})
	var ve *generic.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, "birth_date", ve.Field)
	_, err = h.store.Driver(h.ctx, "drv-011")
	assert.True(t, generic.IsNotFound(err))
}

func TestPutDriver_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		update payroll.DriverUpdate
		field  string
	}{
		{"negative wage", payroll.DriverUpdate{HourlyWage: ptr(dec("-1"))}, "hourly_wage"},
		{"negative distance", payroll.DriverUpdate{HomeWorkDistanceKm: ptr(dec("-5"))}, "home_work_distance_km"},
		{"part time above 100", payroll.DriverUpdate{PartTimePercentage: ptr(dec("120"))}, "part_time_percentage"},
		{"negative part time", payroll.DriverUpdate{PartTimePercentage: ptr(dec("-10"))}, "part_time_percentage"},
		{"blank name", payroll.DriverUpdate{Name: ptr("  ")}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.update.ID = driverID

			_, _, err := h.svc.PutDriver(h.ctx, tt.update)

			var ve *generic.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)

			stored, err := h.store.DriverSettings(h.ctx, driverID)
			require.NoError(t, err)
			assertDecimal(t, "17.85", stored.HourlyWage, "wage untouched")
		})
	}
}
