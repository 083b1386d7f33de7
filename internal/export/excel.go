// Package export builds the admin schedule workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"repbaza/internal/model"
)

var headerColumns = []string{"Дата", "Начало", "Конец", "Часы", "Группа", "Тип", "Контакт", "Комментарий", "Статус"}

// Workbook writes bookings grouped by date into one sheet per day.
type Workbook struct {
	file       *excelize.File
	sheet      string
	currentRow int
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// AddDay opens a sheet named after the date and writes the header row.
func (w *Workbook) AddDay(date string) error {
	name := date
	if len(name) > 31 {
		name = name[:31]
	}

	if w.sheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	w.sheet = name
	w.currentRow = 1

	for i, col := range headerColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(headerColumns), w.currentRow)
		_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
	}
	w.currentRow++
	return nil
}

// AddBooking writes one booking row under the current day sheet.
func (w *Workbook) AddBooking(b model.Booking) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	row := []any{
		b.Date,
		b.StartTime.Format(model.TimeLayout),
		b.EndTime.Format(model.TimeLayout),
		b.Hours(),
		b.GroupName,
		b.BookingType,
		b.ContactInfo,
		b.Comment,
		b.Status.String(),
	}
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

// Write streams the workbook as xlsx.
func (w *Workbook) Write(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases the underlying file resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Schedule builds a complete workbook from bookings grouped by date. The
// dates slice fixes the sheet order; days without bookings still get a
// sheet so gaps are visible.
func Schedule(dates []string, byDate map[string][]model.Booking) (*Workbook, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("no dates to export")
	}
	w := NewWorkbook()
	for _, date := range dates {
		if err := w.AddDay(date); err != nil {
			w.Close()
			return nil, err
		}
		for _, b := range byDate[date] {
			if err := w.AddBooking(b); err != nil {
				w.Close()
				return nil, err
			}
		}
	}
	return w, nil
}
