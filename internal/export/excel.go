package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"
	"carshare/internal/service"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{
	"Booking ID", "Status", "Car", "Customer", "Email",
	"Start date", "End date", "Days", "Total", "Rejection reason", "Created at",
}

var statusColors = map[models.BookingStatus]string{
	models.StatusPending:   "#FFF2CC",
	models.StatusUpcoming:  "#DDEBF7",
	models.StatusOngoing:   "#E2EFDA",
	models.StatusCompleted: "#D9D9D9",
	models.StatusCancelled: "#F8CBAD",
	models.StatusRejected:  "#F4B084",
}

// Exporter renders an owner's bookings as an XLSX workbook.
type Exporter struct {
	bookings domain.BookingService
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewExporter(bookings domain.BookingService, logger *zerolog.Logger) *Exporter {
	return &Exporter{bookings: bookings, logger: logger, now: time.Now}
}

// FileName is the suggested download name for an owner export.
func (e *Exporter) FileName(ownerID string) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", ownerID, e.now().UTC().Format("20060102"))
}

// ExportOwnerBookings returns the workbook bytes for all bookings on the caller's cars.
func (e *Exporter) ExportOwnerBookings(ctx context.Context, caller models.Caller) ([]byte, error) {
	if !caller.IsOwner() {
		return nil, domain.ErrWrongRole
	}

	bookings, err := e.bookings.ListBookings(ctx, caller, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeBookings(f, bookings); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}

	if e.logger != nil {
		e.logger.Info().Str("owner_id", caller.UserID).Int("rows", len(bookings)).Msg("Owner bookings exported")
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeBookings(f *excelize.File, bookings []*models.BookingDetails) error {
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle)

	styles := make(map[models.BookingStatus]int, len(statusColors))
	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err == nil {
			styles[status] = id
		}
	}

	for i, b := range bookings {
		row := i + 2
		reason := ""
		if b.RejectionReason != nil {
			reason = *b.RejectionReason
		}
		values := []any{
			b.ID,
			string(b.Status),
			fmt.Sprintf("%s %s", b.Car.Make, b.Car.Model),
			b.Customer.Name,
			b.Customer.Email,
			models.FormatDate(b.StartDate),
			models.FormatDate(b.EndDate),
			service.BookingDays(b.StartDate, b.EndDate),
			float64(b.TotalPriceCents) / 100,
			reason,
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if id, ok := styles[b.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(2, row)
			_ = f.SetCellStyle(sheetName, statusCell, statusCell, id)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", lastCol, 18)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}
