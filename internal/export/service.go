package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/auctions-etl/internal/repository"
)

// Service is a tiny façade over the auctions repository that produces XLSX
// bytes for the monitoring sheet.
type Service struct {
	auctionsRepo repository.AuctionsRepository
	logger       *slog.Logger
}

func NewService(repo repository.AuctionsRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{auctionsRepo: repo, logger: logger}
}

// ExportAuctionsXLSX returns an XLSX workbook (as bytes) for the given
// auction-date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all auctions.
func (s *Service) ExportAuctionsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	recs, err := s.auctionsRepo.ListAuctions(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query auctions: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Auctions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Case Number",
		"Auction Date",
		"Auction Time",
		"Sheriff Office",
		"Property Address",
		"Reserve Price",
		"Currency",
		"Plaintiff",
		"Defendant",
		"Office Matched",
		"Source Document",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.Fields.CaseNumber)
		write(2, r.Fields.AuctionDate)
		write(3, r.Fields.AuctionTime)
		write(4, r.Fields.SheriffOffice)
		write(5, truncate(r.Fields.StreetAddress, 140))
		if r.Fields.ReservePrice > 0 {
			write(6, r.Fields.ReservePrice)
		} else {
			write(6, "")
		}
		write(7, r.Fields.Currency)
		write(8, truncate(r.Fields.Plaintiff, 80))
		write(9, truncate(r.Fields.Defendant, 80))
		write(10, r.OfficeAssociated)
		write(11, r.DocID)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 16) // case number
	_ = f.SetColWidth(sheet, "B", "C", 12) // date, time
	_ = f.SetColWidth(sheet, "D", "D", 28) // office
	_ = f.SetColWidth(sheet, "E", "E", 48) // address
	_ = f.SetColWidth(sheet, "F", "G", 14) // price, currency
	_ = f.SetColWidth(sheet, "H", "I", 30) // parties
	_ = f.SetColWidth(sheet, "K", "K", 32) // source doc

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
