// Package export renders booking requests as spreadsheets for admins.
package export

import (
	"fmt"
	"io"
	"time"

	"charterly/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Booking requests"

// ContentType is the media type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var columns = []struct {
	title string
	width float64
	value func(*models.BookingRequest) interface{}
}{
	{"ID", 38, func(r *models.BookingRequest) interface{} { return r.ID }},
	{"Boat", 20, func(r *models.BookingRequest) interface{} { return r.BoatID }},
	{"User", 20, func(r *models.BookingRequest) interface{} { return r.OwnerID() }},
	{"Customer", 25, func(r *models.BookingRequest) interface{} { return r.CustomerName }},
	{"Email", 25, func(r *models.BookingRequest) interface{} { return r.CustomerEmail }},
	{"Phone", 18, func(r *models.BookingRequest) interface{} { return r.CustomerPhone }},
	{"Start", 12, func(r *models.BookingRequest) interface{} { return r.StartDate }},
	{"End", 12, func(r *models.BookingRequest) interface{} { return r.EndDate }},
	{"Hours", 8, func(r *models.BookingRequest) interface{} { return r.NumberOfHours }},
	{"Passengers", 11, func(r *models.BookingRequest) interface{} { return r.NumberOfPassengers }},
	{"Captain", 9, func(r *models.BookingRequest) interface{} { return r.NeedsCaptain }},
	{"Total", 12, func(r *models.BookingRequest) interface{} { return r.TotalAmount }},
	{"Deposit", 12, func(r *models.BookingRequest) interface{} {
		if r.DepositAmount == nil {
			return ""
		}
		return *r.DepositAmount
	}},
	{"Currency", 9, func(r *models.BookingRequest) interface{} { return r.Currency }},
	{"Status", 12, func(r *models.BookingRequest) interface{} { return string(r.Status) }},
	{"Review notes", 30, func(r *models.BookingRequest) interface{} { return r.ReviewNotes }},
	{"Created", 20, func(r *models.BookingRequest) interface{} { return r.CreatedAt.UTC().Format(time.DateTime) }},
}

// FileName names an export of requests created in [from, to).
func FileName(from, to time.Time) string {
	return fmt.Sprintf("booking_requests_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// WriteBookingRequests renders reqs as a workbook with a period title,
// a header row and one row per request.
func WriteBookingRequests(w io.Writer, reqs []*models.BookingRequest, from, to time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("error naming sheet: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Period: %s - %s", from.Format(models.DateLayout), to.Format(models.DateLayout)))
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(SheetName, name+"2", col.title)
		_ = f.SetColWidth(SheetName, name, name, col.width)
	}
	_ = f.SetCellStyle(SheetName, "A2", lastCol+"2", headerStyle)

	for r, req := range reqs {
		row := make([]interface{}, len(columns))
		for i, col := range columns {
			row[i] = col.value(req)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+3)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", r+3, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
