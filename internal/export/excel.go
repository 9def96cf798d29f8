package export

import (
	"fmt"
	"io"

	"turfhub/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet   = "Bookings"
	OrdersSheet     = "Orders"
	OrderItemsSheet = "Order items"

	// ContentType для ответа с .xlsx
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateTimeLayout = "2006-01-02 15:04"
)

var (
	bookingHeaders = []string{"ID", "Turf", "Customer", "Email", "Phone", "Start", "End", "Hours", "Total", "Status", "Payment", "Booked at"}
	orderHeaders   = []string{"ID", "Customer", "Email", "Phone", "Address", "Items", "Subtotal", "Tax", "Total", "Status", "Payment", "Ordered at"}
	itemHeaders    = []string{"Order ID", "Item ID", "Equipment ID", "Equipment", "Quantity", "Unit price", "Total"}
)

// WriteBookings renders bookings as a single-sheet workbook.
func WriteBookings(w io.Writer, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, BookingsSheet, bookingHeaders); err != nil {
		return err
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID,
			b.TurfID,
			b.CustomerName,
			b.CustomerEmail,
			b.CustomerPhone,
			b.StartTime.Format(dateTimeLayout),
			b.EndTime.Format(dateTimeLayout),
			b.Hours,
			b.TotalAmount.InexactFloat64(),
			b.Status,
			b.PaymentStatus,
			b.BookingDate.Format(dateTimeLayout),
		}
		if err := writeRow(f, BookingsSheet, i+2, row); err != nil {
			return err
		}
	}

	return finish(f, w)
}

// WriteOrders renders orders and their lines on two sheets.
func WriteOrders(w io.Writer, orders []*models.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, OrdersSheet, orderHeaders); err != nil {
		return err
	}
	if err := newSheet(f, OrderItemsSheet, itemHeaders); err != nil {
		return err
	}

	itemRow := 2
	for i, o := range orders {
		row := []interface{}{
			o.ID,
			o.CustomerName,
			o.CustomerEmail,
			o.CustomerPhone,
			o.DeliveryAddress,
			len(o.Items),
			o.Subtotal.InexactFloat64(),
			o.Tax.InexactFloat64(),
			o.TotalAmount.InexactFloat64(),
			o.Status,
			o.PaymentStatus,
			o.OrderDate.Format(dateTimeLayout),
		}
		if err := writeRow(f, OrdersSheet, i+2, row); err != nil {
			return err
		}

		for _, item := range o.Items {
			line := []interface{}{
				o.ID,
				item.ID,
				item.EquipmentID,
				item.EquipmentName,
				item.Quantity,
				item.UnitPrice.InexactFloat64(),
				item.TotalPrice.InexactFloat64(),
			}
			if err := writeRow(f, OrderItemsSheet, itemRow, line); err != nil {
				return err
			}
			itemRow++
		}
	}

	return finish(f, w)
}

func newSheet(f *excelize.File, name string, headers []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := writeRow(f, name, 1, row); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(name, "A1", last, style)

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(name, "A", lastCol, 18)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", row, err)
	}
	return nil
}

func finish(f *excelize.File, w io.Writer) error {
	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
