/*
handlers.go - HTTP API handlers for the ride engine

PURPOSE:
  Exposes payroll.Service via REST. Handlers parse requests, take the
  actor from headers, call one service entry point and serialize the
  result. No business rule lives here.

ENDPOINTS:
  Reference data:
    GET    /api/rates?date=                  Rate row effective on date
    PUT    /api/drivers/{id}                 Driver master data and settings
    POST   /api/drivers/{id}/contracts       Add an employment contract
    GET    /api/drivers/{id}/vacation?date=  Vacation hours earned on date

  Rides:
    POST   /api/rides                        Save a ride record
    GET    /api/rides/{id}
    POST   /api/shared-rides                 Create a shared ride
    POST   /api/executions                   Save a driver's execution
    GET    /api/executions/{id}

  Approvals:
    POST   /api/weeks                        Get or create the week of a date
    GET    /api/weeks/{id}
    POST   /api/weeks/{id}/allow             Admin allows the driver to sign
    POST   /api/weeks/{id}/sign              Driver signs
    POST   /api/periods                      Get or create the period of a date
    GET    /api/periods/{id}                 With readiness
    GET    /api/periods/{id}/weeks
    POST   /api/periods/{id}/sign            Driver, then admin
    GET    /api/periods/{id}/export          .xlsx workbook

  Disputes:
    POST   /api/disputes                     Admin opens
    GET    /api/disputes/{id}
    POST   /api/disputes/{id}/reply          Counter proposal
    POST   /api/disputes/{id}/accept
    POST   /api/disputes/{id}/close
    POST   /api/disputes/{id}/comments
    POST   /api/execution-disputes           Driver opens
    GET    /api/execution-disputes/{id}
    POST   /api/execution-disputes/{id}/resolve
    POST   /api/execution-disputes/{id}/close
    POST   /api/execution-disputes/{id}/comments

ACTOR:
  Authentication is external. The caller is taken from X-Actor-ID and
  X-Actor-Role ("driver" or "admin"); X-Actor-Context is recorded on
  signatures when present.

ERROR HANDLING:
  - 400: Malformed body or missing actor headers
  - 404: Entity not found
  - 409: Stale version, retry after re-reading
  - 422: Validation, invalid state transition, missing reference data
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/report"
	"github.com/warp/ride-engine/ride"
	"github.com/warp/ride-engine/vacation"
)

const (
	HeaderActorID      = "X-Actor-ID"
	HeaderActorRole    = "X-Actor-Role"
	HeaderActorContext = "X-Actor-Context"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *payroll.Service

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *payroll.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// GetRate returns the rate row effective on ?date=.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate("date", r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	row, err := h.Service.ResolveRate(r.Context(), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateRowDTO(row))
}

// PutDriver creates or edits a driver and the driver's calculation settings.
func (h *Handler) PutDriver(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req DriverSettingsRequest
	if !decode(w, r, &req) {
		return
	}
	update, err := req.toUpdate(generic.DriverID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	driver, settings, err := h.Service.PutDriver(r.Context(), update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDriverDTO(driver, settings))
}

// AddContract adds an employment contract for vacation accrual.
func (h *Handler) AddContract(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req ContractRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	contract := vacation.Contract{
		ID:        req.ID,
		DriverID:  generic.DriverID(chi.URLParam(r, "id")),
		StartDate: start,
	}
	if contract.ID == "" {
		contract.ID = h.Service.NewID()
	}
	if req.LastWorkingDay != nil {
		last, err := parseDate("last_working_day", *req.LastWorkingDay)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		contract.LastWorkingDay = &last
	}
	if err := h.Service.Store.PutContract(r.Context(), contract); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved", "contract_id": contract.ID})
}

// GetVacation returns the vacation hours earned on ?date=.
func (h *Handler) GetVacation(w http.ResponseWriter, r *http.Request) {
	driverID := generic.DriverID(chi.URLParam(r, "id"))
	date, err := parseDate("date", r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	hours, err := h.Service.EarnedVacationHours(r.Context(), driverID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VacationDTO{DriverID: string(driverID), Date: date.String(), EarnedHours: hours})
}

// =============================================================================
// RIDE HANDLERS
// =============================================================================

// SaveRide creates or updates a ride record.
func (h *Handler) SaveRide(w http.ResponseWriter, r *http.Request) {
	var req SaveRideRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toRawInputs()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := h.Service.SaveRide(r.Context(), ride.Record{
		ID:        generic.RideID(req.ID),
		DriverID:  generic.DriverID(req.DriverID),
		RawInputs: in,
		Version:   req.Version,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(saved))
}

// GetRide returns a ride record.
func (h *Handler) GetRide(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Store.GetRecord(r.Context(), generic.RideID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// CreateSharedRide creates a ride executions can refer to.
func (h *Handler) CreateSharedRide(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req CreateSharedRideRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	created, err := h.Service.CreateSharedRide(r.Context(), ride.Ride{
		ID:          generic.RideID(req.ID),
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SharedRideDTO{ID: string(created.ID), Date: created.Date.String(), Description: created.Description})
}

// SaveExecution creates or updates a driver's execution of a shared ride.
func (h *Handler) SaveExecution(w http.ResponseWriter, r *http.Request) {
	var req SaveExecutionRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toRawInputs()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := h.Service.SaveExecution(r.Context(), ride.Execution{
		ID:               generic.ExecutionID(req.ID),
		RideID:           generic.RideID(req.RideID),
		DriverID:         generic.DriverID(req.DriverID),
		RawInputs:        in,
		ContainerWaiting: req.ContainerWaiting,
		Version:          req.Version,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDTO(saved))
}

// GetExecution returns an execution.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	ex, err := h.Service.Store.GetExecution(r.Context(), generic.ExecutionID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDTO(ex))
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// GetOrCreateWeek returns the week approval containing the given date.
func (h *Handler) GetOrCreateWeek(w http.ResponseWriter, r *http.Request) {
	var req ApprovalKeyRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	week, err := h.Service.GetOrCreateWeekApproval(r.Context(), generic.DriverID(req.DriverID), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(week))
}

// GetWeek returns a week approval.
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	week, err := h.Service.GetWeekApproval(r.Context(), generic.WeekApprovalID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(week))
}

// AllowWeek lets the driver sign the week.
func (h *Handler) AllowWeek(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	week, err := h.Service.AllowWeek(r.Context(), generic.WeekApprovalID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(week))
}

// SignWeek records the driver's week signature.
func (h *Handler) SignWeek(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	week, err := h.Service.SignWeek(r.Context(), generic.WeekApprovalID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(week))
}

// GetOrCreatePeriod returns the period approval containing the given date.
func (h *Handler) GetOrCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req ApprovalKeyRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	period, err := h.Service.GetOrCreatePeriodApproval(r.Context(), generic.DriverID(req.DriverID), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writePeriod(w, r, http.StatusOK, period.ID)
}

// GetPeriod returns a period approval with its readiness.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	h.writePeriod(w, r, http.StatusOK, generic.PeriodApprovalID(chi.URLParam(r, "id")))
}

// ListPeriodWeeks returns the week approvals of a period.
func (h *Handler) ListPeriodWeeks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period, err := h.Service.GetPeriodApproval(ctx, generic.PeriodApprovalID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	weeks, err := h.Service.ListWeekApprovals(ctx, period.DriverID, period.Period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]WeekApprovalDTO, len(weeks))
	for i, wk := range weeks {
		dtos[i] = toWeekDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SignPeriod records the driver's or the admin's period signature.
func (h *Handler) SignPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	period, err := h.Service.SignPeriod(r.Context(), generic.PeriodApprovalID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writePeriod(w, r, http.StatusOK, period.ID)
}

// ExportPeriod streams the period sign-off workbook.
func (h *Handler) ExportPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period, err := h.Service.GetPeriodApproval(ctx, generic.PeriodApprovalID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := h.Service.PeriodRides(ctx, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	book, err := report.PeriodWorkbook(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	defer book.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(period)))
	w.WriteHeader(http.StatusOK)
	book.WriteTo(w)
}

func (h *Handler) writePeriod(w http.ResponseWriter, r *http.Request, status int, id generic.PeriodApprovalID) {
	ctx := r.Context()
	period, err := h.Service.GetPeriodApproval(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	readiness, err := h.Service.PeriodReadiness(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dto := toPeriodDTO(period)
	dto.Readiness = string(readiness)
	writeJSON(w, status, dto)
}

// =============================================================================
// DISPUTE HANDLERS
// =============================================================================

// OpenDispute opens a ride-level dispute with a proposed correction.
func (h *Handler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req OpenDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Service.OpenDispute(r.Context(), generic.RideID(req.RideID), actor, req.Correction, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeDTO(d))
}

// GetDispute returns a ride-level dispute with its thread.
func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.GetDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// ReplyDispute answers with a counter proposal.
func (h *Handler) ReplyDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ReplyRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Service.CounterDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor, req.Hours)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// AcceptDispute accepts the current proposal and applies it to the ride.
func (h *Handler) AcceptDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.Service.AcceptDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// CloseDispute closes a dispute without applying it.
func (h *Handler) CloseDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.Service.CloseDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// CommentDispute appends to a ride-level dispute thread.
func (h *Handler) CommentDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CommentRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Service.AddDisputeComment(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor, req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentDTO(c))
}

// OpenExecutionDispute opens an execution-level dispute.
func (h *Handler) OpenExecutionDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req OpenExecutionDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Service.OpenExecutionDispute(r.Context(), generic.ExecutionID(req.ExecutionID), actor, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExecutionDisputeDTO(d))
}

// GetExecutionDispute returns an execution-level dispute with its thread.
func (h *Handler) GetExecutionDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.GetExecutionDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDisputeDTO(d))
}

// ResolveExecutionDispute settles an execution-level dispute.
func (h *Handler) ResolveExecutionDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ResolveExecutionDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Service.ResolveExecutionDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor, payroll.ExecutionResolution{
		Type:       dispute.ResolutionType(req.Type),
		Notes:      req.Notes,
		Correction: req.Correction,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDisputeDTO(d))
}

// CloseExecutionDispute closes an execution-level dispute.
func (h *Handler) CloseExecutionDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.Service.CloseExecutionDispute(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDisputeDTO(d))
}

// CommentExecutionDispute appends to an execution-level dispute thread.
func (h *Handler) CommentExecutionDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CommentRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Service.AddExecutionDisputeComment(r.Context(), generic.DisputeID(chi.URLParam(r, "id")), actor, req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentDTO(c))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps the generic error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsRetryable(err):
		writeError(w, http.StatusConflict, "Concurrent modification, reload and retry", err)
	case generic.IsForbidden(err):
		writeError(w, http.StatusForbidden, "Not allowed for this actor", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, "Request rejected", err)
	case errors.Is(err, generic.ErrReferenceDataMissing):
		writeError(w, http.StatusUnprocessableEntity, "Reference data missing", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// actorFrom reads the caller identity set by the authenticating proxy.
func actorFrom(r *http.Request) (generic.Actor, error) {
	actor := generic.Actor{
		ID:      r.Header.Get(HeaderActorID),
		Role:    generic.Role(r.Header.Get(HeaderActorRole)),
		Context: r.Header.Get(HeaderActorContext),
	}
	if actor.ID == "" {
		return generic.Actor{}, fmt.Errorf("missing %s header", HeaderActorID)
	}
	if !actor.IsAdmin() && !actor.IsDriver() {
		return generic.Actor{}, fmt.Errorf("invalid %s header %q", HeaderActorRole, actor.Role)
	}
	if actor.Context == "" {
		actor.Context = r.UserAgent()
	}
	return actor, nil
}

func requireActor(w http.ResponseWriter, r *http.Request) (generic.Actor, bool) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Actor required", err)
		return generic.Actor{}, false
	}
	return actor, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (generic.Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return generic.Actor{}, false
	}
	if !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, "Admin only", nil)
		return generic.Actor{}, false
	}
	return actor, true
}
