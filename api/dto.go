/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are "2006-01-02", clock hours "HH:MM", quantities decimal strings,
  timestamps RFC 3339.

VALIDATION:
  Parsing happens in the to*() helpers below. Domain validation stays in
  the ride, approval and dispute packages.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/ride"
)

// =============================================================================
// RIDES
// =============================================================================

// RideInputsRequest carries the raw inputs shared by both ride shapes.
type RideInputsRequest struct {
	Date            string           `json:"date"`
	Start           string           `json:"start"`
	End             string           `json:"end"`
	RestTaken       string           `json:"rest_taken"`
	OdometerStart   *decimal.Decimal `json:"odometer_start,omitempty"`
	OdometerEnd     *decimal.Decimal `json:"odometer_end,omitempty"`
	ExtraKilometers decimal.Decimal  `json:"extra_kilometers"`
	HoursCode       string           `json:"hours_code"`
	HoursOption     string           `json:"hours_option"`
	CorrectionHours decimal.Decimal  `json:"correction_hours"`
}

// SaveRideRequest creates (empty id) or updates a ride record.
type SaveRideRequest struct {
	ID       string `json:"id"`
	DriverID string `json:"driver_id"`
	Version  int    `json:"version"`
	RideInputsRequest
}

// SaveExecutionRequest creates or updates one driver's execution.
type SaveExecutionRequest struct {
	ID               string           `json:"id"`
	RideID           string           `json:"ride_id"`
	DriverID         string           `json:"driver_id"`
	Version          int              `json:"version"`
	ContainerWaiting *decimal.Decimal `json:"container_waiting,omitempty"`
	RideInputsRequest
}

// CreateSharedRideRequest creates a ride executions refer to.
type CreateSharedRideRequest struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ResultDTO is a computed compensation result.
type ResultDTO struct {
	DecimalHours              decimal.Decimal  `json:"decimal_hours"`
	CalculatedRest            decimal.Decimal  `json:"calculated_rest"`
	UntaxedAllowance          decimal.Decimal  `json:"untaxed_allowance"`
	NightHours                decimal.Decimal  `json:"night_hours"`
	NightAllowance            decimal.Decimal  `json:"night_allowance"`
	HomeWorkKilometers        decimal.Decimal  `json:"home_work_kilometers"`
	KilometerAllowance        decimal.Decimal  `json:"kilometer_allowance"`
	ConsignmentAllowance      decimal.Decimal  `json:"consignment_allowance"`
	SaturdayHours             decimal.Decimal  `json:"saturday_hours"`
	SundayHolidayHours        decimal.Decimal  `json:"sunday_holiday_hours"`
	SickHours                 decimal.Decimal  `json:"sick_hours"`
	VacationHoursTaken        decimal.Decimal  `json:"vacation_hours_taken"`
	VacationHoursEarned       decimal.Decimal  `json:"vacation_hours_earned"`
	ExceedingContainerWaiting *decimal.Decimal `json:"exceeding_container_waiting,omitempty"`
	ISOYear                   int              `json:"iso_year"`
	ISOWeek                   int              `json:"iso_week"`
	Period                    int              `json:"period"`
	WeekInPeriod              int              `json:"week_in_period"`
	RateRowID                 string           `json:"rate_row_id"`
	Total                     decimal.Decimal  `json:"total"`
}

// RideDTO represents either ride shape in responses.
type RideDTO struct {
	ID               string           `json:"id"`
	RideID           string           `json:"ride_id,omitempty"`
	DriverID         string           `json:"driver_id"`
	Date             string           `json:"date"`
	Start            string           `json:"start"`
	End              string           `json:"end"`
	RestTaken        decimal.Decimal  `json:"rest_taken"`
	HoursCode        string           `json:"hours_code,omitempty"`
	HoursOption      string           `json:"hours_option,omitempty"`
	CorrectionHours  decimal.Decimal  `json:"correction_hours"`
	ContainerWaiting *decimal.Decimal `json:"container_waiting,omitempty"`
	Result           *ResultDTO       `json:"result"`
	WeekApprovalID   string           `json:"week_approval_id,omitempty"`
	Version          int              `json:"version"`
}

// SharedRideDTO represents a shared ride.
type SharedRideDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// RateRowDTO is the resolved CAO rate row.
type RateRowDTO struct {
	ID                       string          `json:"id"`
	StartDate                string          `json:"start_date"`
	EndDate                  *string         `json:"end_date"`
	OneDayAllowance          decimal.Decimal `json:"one_day_allowance"`
	OneDayLongAllowance      decimal.Decimal `json:"one_day_long_allowance"`
	OneDayEveningSupplement  decimal.Decimal `json:"one_day_evening_supplement"`
	DepartureHourlyAllowance decimal.Decimal `json:"departure_hourly_allowance"`
	IntermediateDayAllowance decimal.Decimal `json:"intermediate_day_allowance"`
	ArrivalHourlyAllowance   decimal.Decimal `json:"arrival_hourly_allowance"`
	NightAllowanceRate       decimal.Decimal `json:"night_allowance_rate"`
	NightStart               string          `json:"night_start"`
	NightEnd                 string          `json:"night_end"`
	KilometerRate            decimal.Decimal `json:"kilometer_rate"`
	ConsignmentAllowance     decimal.Decimal `json:"consignment_allowance"`
}

// DriverSettingsRequest sets a driver's calculation constants. Omitted
// fields keep their stored value.
type DriverSettingsRequest struct {
	Name                      *string          `json:"name"`
	BirthDate                 *string          `json:"birth_date"`
	HourlyWage                *decimal.Decimal `json:"hourly_wage"`
	NightHoursEnabled         *bool            `json:"night_hours_enabled"`
	KilometerAllowanceEnabled *bool            `json:"kilometer_allowance_enabled"`
	HomeWorkDistanceKm        *decimal.Decimal `json:"home_work_distance_km"`
	PartTimePercentage        *decimal.Decimal `json:"part_time_percentage"`
}

func (req DriverSettingsRequest) toUpdate(id generic.DriverID) (payroll.DriverUpdate, error) {
	u := payroll.DriverUpdate{
		ID:                        id,
		Name:                      req.Name,
		HourlyWage:                req.HourlyWage,
		NightHoursEnabled:         req.NightHoursEnabled,
		KilometerAllowanceEnabled: req.KilometerAllowanceEnabled,
		HomeWorkDistanceKm:        req.HomeWorkDistanceKm,
		PartTimePercentage:        req.PartTimePercentage,
	}
	if req.BirthDate != nil {
		birth, err := parseDate("birth_date", *req.BirthDate)
		if err != nil {
			return payroll.DriverUpdate{}, err
		}
		u.BirthDate = &birth
	}
	return u, nil
}

// DriverDTO is a driver with the settings now in force.
type DriverDTO struct {
	ID                        string          `json:"id"`
	Name                      string          `json:"name"`
	BirthDate                 string          `json:"birth_date"`
	HourlyWage                decimal.Decimal `json:"hourly_wage"`
	NightHoursEnabled         bool            `json:"night_hours_enabled"`
	KilometerAllowanceEnabled bool            `json:"kilometer_allowance_enabled"`
	HomeWorkDistanceKm        decimal.Decimal `json:"home_work_distance_km"`
	PartTimePercentage        decimal.Decimal `json:"part_time_percentage"`
}

func toDriverDTO(d payroll.Driver, s compensation.DriverSettings) DriverDTO {
	return DriverDTO{
		ID:                        string(d.ID),
		Name:                      d.Name,
		BirthDate:                 d.BirthDate.String(),
		HourlyWage:                s.HourlyWage,
		NightHoursEnabled:         s.NightHoursEnabled,
		KilometerAllowanceEnabled: s.KilometerAllowanceEnabled,
		HomeWorkDistanceKm:        s.HomeWorkDistanceKm,
		PartTimePercentage:        s.PartTimePercentage,
	}
}

// ContractRequest adds an employment contract.
type ContractRequest struct {
	ID             string  `json:"id"`
	StartDate      string  `json:"start_date"`
	LastWorkingDay *string `json:"last_working_day"`
}

// VacationDTO is the vacation accrual of one day.
type VacationDTO struct {
	DriverID    string          `json:"driver_id"`
	Date        string          `json:"date"`
	EarnedHours decimal.Decimal `json:"earned_hours"`
}

// =============================================================================
// APPROVALS
// =============================================================================

// ApprovalKeyRequest addresses the week or period containing Date.
type ApprovalKeyRequest struct {
	DriverID string `json:"driver_id"`
	Date     string `json:"date"`
}

// SignatureDTO is an actor's signature.
type SignatureDTO struct {
	At      string `json:"at"`
	By      string `json:"by"`
	Context string `json:"context,omitempty"`
}

// WeekApprovalDTO represents a week approval.
type WeekApprovalDTO struct {
	ID            string        `json:"id"`
	DriverID      string        `json:"driver_id"`
	Week          string        `json:"week"`
	Period        int           `json:"period"`
	Status        string        `json:"status"`
	AllowedBy     *SignatureDTO `json:"allowed_by,omitempty"`
	SignedBy      *SignatureDTO `json:"signed_by,omitempty"`
	InvalidatedAt *string       `json:"invalidated_at,omitempty"`
	Version       int           `json:"version"`
}

// PeriodApprovalDTO represents a period approval.
type PeriodApprovalDTO struct {
	ID                string          `json:"id"`
	DriverID          string          `json:"driver_id"`
	Period            string          `json:"period"`
	Status            string          `json:"status"`
	Readiness         string          `json:"readiness,omitempty"`
	DriverSignature   *SignatureDTO   `json:"driver_signature,omitempty"`
	AdminSignature    *SignatureDTO   `json:"admin_signature,omitempty"`
	InvalidatedAt     *string         `json:"invalidated_at,omitempty"`
	TotalHours        decimal.Decimal `json:"total_hours"`
	TotalCompensation decimal.Decimal `json:"total_compensation"`
	Version           int             `json:"version"`
}

// =============================================================================
// DISPUTES
// =============================================================================

// OpenDisputeRequest opens a ride-level dispute.
type OpenDisputeRequest struct {
	RideID     string          `json:"ride_id"`
	Correction decimal.Decimal `json:"correction"`
	Reason     string          `json:"reason"`
}

// ReplyRequest is a counter proposal.
type ReplyRequest struct {
	Hours decimal.Decimal `json:"hours"`
}

// CommentRequest appends to a dispute thread.
type CommentRequest struct {
	Body string `json:"body"`
}

// OpenExecutionDisputeRequest opens an execution-level dispute.
type OpenExecutionDisputeRequest struct {
	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"`
}

// ResolveExecutionDisputeRequest resolves an execution-level dispute.
type ResolveExecutionDisputeRequest struct {
	Type       string           `json:"type"`
	Notes      string           `json:"notes"`
	Correction *decimal.Decimal `json:"correction,omitempty"`
}

// CommentDTO is a thread entry.
type CommentDTO struct {
	ID         string `json:"id"`
	AuthorID   string `json:"author_id"`
	AuthorRole string `json:"author_role"`
	Body       string `json:"body"`
	At         string `json:"at"`
}

// DisputeDTO represents a ride-level dispute.
type DisputeDTO struct {
	ID                 string          `json:"id"`
	RideID             string          `json:"ride_id"`
	DriverID           string          `json:"driver_id"`
	Reason             string          `json:"reason,omitempty"`
	ProposedCorrection decimal.Decimal `json:"proposed_correction"`
	Status             string          `json:"status"`
	CreatedAt          string          `json:"created_at"`
	ResolvedAt         *string         `json:"resolved_at,omitempty"`
	ResolvedBy         string          `json:"resolved_by,omitempty"`
	Comments           []CommentDTO    `json:"comments"`
	Version            int             `json:"version"`
}

// ExecutionDisputeDTO represents an execution-level dispute.
type ExecutionDisputeDTO struct {
	ID              string           `json:"id"`
	ExecutionID     string           `json:"execution_id"`
	DriverID        string           `json:"driver_id"`
	Reason          string           `json:"reason"`
	Status          string           `json:"status"`
	CreatedAt       string           `json:"created_at"`
	ResolvedAt      *string          `json:"resolved_at,omitempty"`
	ResolvedBy      string           `json:"resolved_by,omitempty"`
	ResolutionType  string           `json:"resolution_type,omitempty"`
	ResolutionNotes string           `json:"resolution_notes,omitempty"`
	Correction      *decimal.Decimal `json:"correction,omitempty"`
	Comments        []CommentDTO     `json:"comments"`
	Version         int              `json:"version"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (req RideInputsRequest) toRawInputs() (ride.RawInputs, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return ride.RawInputs{}, err
	}
	start, err := parseClock("start", req.Start)
	if err != nil {
		return ride.RawInputs{}, err
	}
	end, err := parseClock("end", req.End)
	if err != nil {
		return ride.RawInputs{}, err
	}
	rest, err := parseClock("rest_taken", req.RestTaken)
	if err != nil {
		return ride.RawInputs{}, err
	}
	return ride.RawInputs{
		Date:            date,
		Start:           start,
		End:             end,
		RestTaken:       rest,
		OdometerStart:   req.OdometerStart,
		OdometerEnd:     req.OdometerEnd,
		ExtraKilometers: req.ExtraKilometers,
		HoursCode:       generic.HoursCodeID(req.HoursCode),
		HoursOption:     generic.HoursOptionID(req.HoursOption),
		CorrectionHours: req.CorrectionHours,
	}, nil
}

func parseDate(field, s string) (generic.TimePoint, error) {
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, &generic.ValidationError{Field: field, Reason: "use YYYY-MM-DD"}
	}
	return tp, nil
}

// parseClock accepts "HH:MM"; empty means zero.
func parseClock(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := generic.ParseClock(s)
	if err != nil {
		return decimal.Zero, &generic.ValidationError{Field: field, Reason: "use HH:MM"}
	}
	return d, nil
}

func toResultDTO(r *compensation.Result) *ResultDTO {
	if r == nil {
		return nil
	}
	return &ResultDTO{
		DecimalHours:              r.DecimalHours,
		CalculatedRest:            r.CalculatedRest,
		UntaxedAllowance:          r.UntaxedAllowance,
		NightHours:                r.NightHours,
		NightAllowance:            r.NightAllowance,
		HomeWorkKilometers:        r.HomeWorkKilometers,
		KilometerAllowance:        r.KilometerAllowance,
		ConsignmentAllowance:      r.ConsignmentAllowance,
		SaturdayHours:             r.SaturdayHours,
		SundayHolidayHours:        r.SundayHolidayHours,
		SickHours:                 r.SickHours,
		VacationHoursTaken:        r.VacationHoursTaken,
		VacationHoursEarned:       r.VacationHoursEarned,
		ExceedingContainerWaiting: r.ExceedingContainerWaiting,
		ISOYear:                   r.ISOYear,
		ISOWeek:                   r.ISOWeek,
		Period:                    r.Period,
		WeekInPeriod:              r.WeekInPeriod,
		RateRowID:                 string(r.RateRowID),
		Total:                     r.Total(),
	}
}

func toRecordDTO(rec ride.Record) RideDTO {
	return RideDTO{
		ID:              string(rec.ID),
		DriverID:        string(rec.DriverID),
		Date:            rec.Date.String(),
		Start:           generic.FormatClock(rec.Start),
		End:             generic.FormatClock(rec.End),
		RestTaken:       rec.RestTaken,
		HoursCode:       string(rec.HoursCode),
		HoursOption:     string(rec.HoursOption),
		CorrectionHours: rec.CorrectionHours,
		Result:          toResultDTO(rec.Result),
		WeekApprovalID:  string(rec.WeekApprovalID),
		Version:         rec.Version,
	}
}

func toExecutionDTO(ex ride.Execution) RideDTO {
	return RideDTO{
		ID:               string(ex.ID),
		RideID:           string(ex.RideID),
		DriverID:         string(ex.DriverID),
		Date:             ex.Date.String(),
		Start:            generic.FormatClock(ex.Start),
		End:              generic.FormatClock(ex.End),
		RestTaken:        ex.RestTaken,
		HoursCode:        string(ex.HoursCode),
		HoursOption:      string(ex.HoursOption),
		CorrectionHours:  ex.CorrectionHours,
		ContainerWaiting: ex.ContainerWaiting,
		Result:           toResultDTO(ex.Result),
		WeekApprovalID:   string(ex.WeekApprovalID),
		Version:          ex.Version,
	}
}

func toRateRowDTO(row cao.RateRow) RateRowDTO {
	dto := RateRowDTO{
		ID:                       string(row.ID),
		StartDate:                row.StartDate.String(),
		OneDayAllowance:          row.OneDayAllowance,
		OneDayLongAllowance:      row.OneDayLongAllowance,
		OneDayEveningSupplement:  row.OneDayEveningSupplement,
		DepartureHourlyAllowance: row.DepartureHourlyAllowance,
		IntermediateDayAllowance: row.IntermediateDayAllowance,
		ArrivalHourlyAllowance:   row.ArrivalHourlyAllowance,
		NightAllowanceRate:       row.NightAllowanceRate,
		NightStart:               generic.FormatClock(row.NightStart),
		NightEnd:                 generic.FormatClock(row.NightEnd),
		KilometerRate:            row.KilometerRate,
		ConsignmentAllowance:     row.ConsignmentAllowance,
	}
	if row.EndDate != nil {
		end := row.EndDate.String()
		dto.EndDate = &end
	}
	return dto
}

func toSignatureDTO(s *approval.Signature) *SignatureDTO {
	if s == nil {
		return nil
	}
	return &SignatureDTO{At: s.At.Format(time.RFC3339), By: s.By, Context: s.Context}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toWeekDTO(w *approval.WeekApproval) WeekApprovalDTO {
	return WeekApprovalDTO{
		ID:            string(w.ID),
		DriverID:      string(w.DriverID),
		Week:          w.Week.String(),
		Period:        w.Period,
		Status:        string(w.Status),
		AllowedBy:     toSignatureDTO(w.AllowedBy),
		SignedBy:      toSignatureDTO(w.SignedBy),
		InvalidatedAt: formatTimePtr(w.InvalidatedAt),
		Version:       w.Version,
	}
}

func toPeriodDTO(p *approval.PeriodApproval) PeriodApprovalDTO {
	return PeriodApprovalDTO{
		ID:                string(p.ID),
		DriverID:          string(p.DriverID),
		Period:            p.Period.String(),
		Status:            string(p.Status),
		DriverSignature:   toSignatureDTO(p.DriverSignature),
		AdminSignature:    toSignatureDTO(p.AdminSignature),
		InvalidatedAt:     formatTimePtr(p.InvalidatedAt),
		TotalHours:        p.TotalHours,
		TotalCompensation: p.TotalCompensation,
		Version:           p.Version,
	}
}

func toCommentDTOs(thread dispute.Thread) []CommentDTO {
	out := make([]CommentDTO, len(thread))
	for i, c := range thread {
		out[i] = toCommentDTO(c)
	}
	return out
}

func toCommentDTO(c dispute.Comment) CommentDTO {
	return CommentDTO{
		ID:         c.ID,
		AuthorID:   c.AuthorID,
		AuthorRole: string(c.AuthorRole),
		Body:       c.Body,
		At:         c.At.Format(time.RFC3339),
	}
}

func toDisputeDTO(d *dispute.Dispute) DisputeDTO {
	return DisputeDTO{
		ID:                 string(d.ID),
		RideID:             string(d.RideID),
		DriverID:           string(d.DriverID),
		Reason:             d.Reason,
		ProposedCorrection: d.ProposedCorrection,
		Status:             string(d.Status),
		CreatedAt:          d.CreatedAt.Format(time.RFC3339),
		ResolvedAt:         formatTimePtr(d.ResolvedAt),
		ResolvedBy:         d.ResolvedBy,
		Comments:           toCommentDTOs(d.Comments),
		Version:            d.Version,
	}
}

func toExecutionDisputeDTO(d *dispute.ExecutionDispute) ExecutionDisputeDTO {
	return ExecutionDisputeDTO{
		ID:              string(d.ID),
		ExecutionID:     string(d.ExecutionID),
		DriverID:        string(d.DriverID),
		Reason:          d.Reason,
		Status:          string(d.Status),
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
		ResolvedAt:      formatTimePtr(d.ResolvedAt),
		ResolvedBy:      d.ResolvedBy,
		ResolutionType:  string(d.ResolutionType),
		ResolutionNotes: d.ResolutionNotes,
		Correction:      d.Correction,
		Comments:        toCommentDTOs(d.Comments),
		Version:         d.Version,
	}
}
