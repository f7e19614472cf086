/*
Package report renders period sign-off workbooks.

SHEETS:
  Summary  driver, period, status, signatures and the cached totals
  Weeks    one row per week approval of the period
  Rides    one row per computed ride record and execution, by date

Rides whose result is not computed yet are listed with empty figures.
*/
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary = "Summary"
	SheetWeeks   = "Weeks"
	SheetRides   = "Rides"

	dateLayout = "02-01-2006 15:04"
)

var rideHeaders = []string{
	"Date", "Ride", "Kind", "Start", "End", "Rest", "Correction", "Hours",
	"Saturday hours", "Sunday/holiday hours", "Sick hours", "Vacation taken", "Vacation earned",
	"Untaxed allowance", "Night hours", "Night allowance", "Home-work km",
	"Kilometer allowance", "Consignment", "Exceeding container waiting", "Total",
}

// rideLine is a row of the Rides sheet; records and executions share it.
type rideLine struct {
	date       generic.TimePoint
	id         string
	kind       string
	start, end decimal.Decimal
	rest       decimal.Decimal
	correction decimal.Decimal
	result     *compensation.Result
}

// PeriodWorkbook builds the sign-off workbook of one period.
func PeriodWorkbook(data payroll.PeriodRides) (*excelize.File, error) {
	if data.Period == nil {
		return nil, fmt.Errorf("period approval is required")
	}

	f := excelize.NewFile()
	// The default sheet becomes the summary so it stays first and active.
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	for _, name := range []string{SheetWeeks, SheetRides} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
	}

	w := &sheetWriter{f: f}
	w.summary(data.Period)
	w.weeks(data.Weeks)
	w.rides(lines(data))
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// WritePeriodWorkbook streams the workbook as .xlsx.
func WritePeriodWorkbook(out io.Writer, data payroll.PeriodRides) error {
	f, err := PeriodWorkbook(data)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// FileName is the download name of a period workbook.
func FileName(p *approval.PeriodApproval) string {
	return fmt.Sprintf("period_%s_%s.xlsx", p.DriverID, p.Period)
}

func lines(data payroll.PeriodRides) []rideLine {
	out := make([]rideLine, 0, len(data.Records)+len(data.Executions))
	for _, r := range data.Records {
		out = append(out, rideLine{
			date: r.Date, id: string(r.ID), kind: string(r.HoursCode),
			start: r.Start, end: r.End, rest: r.RestTaken, correction: r.CorrectionHours,
			result: r.Result,
		})
	}
	for _, e := range data.Executions {
		out = append(out, rideLine{
			date: e.Date, id: string(e.ID), kind: string(e.HoursCode),
			start: e.Start, end: e.End, rest: e.RestTaken, correction: e.CorrectionHours,
			result: e.Result,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].date.Equal(out[j].date) {
			return out[i].date.Before(out[j].date)
		}
		return out[i].id < out[j].id
	})
	return out
}

// =============================================================================
// SHEET WRITER
// =============================================================================

// sheetWriter keeps the first cell error.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) set(sheet string, col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if d, ok := value.(decimal.Decimal); ok {
		value = d.InexactFloat64()
	}
	if err := w.f.SetCellValue(sheet, cell, value); err != nil {
		w.err = fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
}

func (w *sheetWriter) row(sheet string, row int, values ...any) {
	for i, v := range values {
		w.set(sheet, i+1, row, v)
	}
}

func (w *sheetWriter) summary(p *approval.PeriodApproval) {
	w.row(SheetSummary, 1, "Driver", string(p.DriverID))
	w.row(SheetSummary, 2, "Period", p.Period.String())
	span := p.Period.Range()
	w.row(SheetSummary, 3, "From", span.Start.String())
	w.row(SheetSummary, 4, "To", span.End.String())
	w.row(SheetSummary, 5, "Status", string(p.Status))
	w.row(SheetSummary, 6, "Total hours", p.TotalHours)
	w.row(SheetSummary, 7, "Total compensation", p.TotalCompensation)
	w.row(SheetSummary, 8, "Driver signature", signature(p.DriverSignature))
	w.row(SheetSummary, 9, "Admin signature", signature(p.AdminSignature))
}

func (w *sheetWriter) weeks(weeks []*approval.WeekApproval) {
	w.row(SheetWeeks, 1, "Week", "Week in period", "Status", "Allowed", "Signed")
	for i, wk := range weeks {
		w.row(SheetWeeks, i+2,
			wk.Week.String(), wk.Week.WeekInPeriod(), string(wk.Status),
			signature(wk.AllowedBy), signature(wk.SignedBy))
	}
}

func (w *sheetWriter) rides(lines []rideLine) {
	header := make([]any, len(rideHeaders))
	for i, h := range rideHeaders {
		header[i] = h
	}
	w.row(SheetRides, 1, header...)

	for i, l := range lines {
		row := i + 2
		w.row(SheetRides, row,
			l.date.String(), l.id, l.kind,
			generic.FormatClock(l.start), generic.FormatClock(l.end), l.rest, l.correction)
		if l.result == nil {
			continue
		}
		r := l.result
		values := []any{
			r.DecimalHours, r.SaturdayHours, r.SundayHolidayHours, r.SickHours,
			r.VacationHoursTaken, r.VacationHoursEarned, r.UntaxedAllowance, r.NightHours,
			r.NightAllowance, r.HomeWorkKilometers, r.KilometerAllowance, r.ConsignmentAllowance,
		}
		if r.ExceedingContainerWaiting != nil {
			values = append(values, *r.ExceedingContainerWaiting)
		} else {
			values = append(values, "")
		}
		values = append(values, r.Total())
		for j, v := range values {
			w.set(SheetRides, 8+j, row, v)
		}
	}
}

func signature(s *approval.Signature) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", s.By, s.At.Format(dateLayout))
}
