package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/Palpita209/Palpita209-sub001/internal/app"
	"github.com/Palpita209/Palpita209-sub001/internal/documents"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
	"github.com/Palpita209/Palpita209-sub001/internal/shared"
)

type sample struct {
	kind documents.Kind
	body string
}

var samples = []sample{
	{documents.KindPO, `{
		"po_no": "PO-2024-0001",
		"supplier": "Northwind Office Supply",
		"po_date": "2024-01-15",
		"mode_of_procurement": "Shopping",
		"place_of_delivery": "Main Office",
		"date_of_delivery": "01/30/2024",
		"items": [
			{"description": "Ballpoint pen, black", "unit": "box", "quantity": 10, "unit_cost": "120.50"},
			{"description": "Bond paper A4", "unit": "ream", "quantity": "25", "unit_cost": "₱245.00"}
		]
	}`},
	{documents.KindPO, `{
		"po_no": "PO-2024-0002",
		"supplier": "Cebu Computer Center",
		"po_date": "Feb 3, 2024",
		"items": [
			{"description": "Laptop, 14 inch", "unit": "unit", "quantity": 2, "unit_cost": "48,500.00", "property_number": "ICT-2024-001", "date_acquired": "2024-02-10"}
		]
	}`},
	{documents.KindPAR, `{
		"par_no": "PAR-2024-0001",
		"received_by": "Maria Santos",
		"par_date": "2024-02-12",
		"position": "Administrative Officer",
		"office": "General Services",
		"items": [
			{"description": "Laptop, 14 inch", "unit": "unit", "quantity": 1, "amount": "48500", "property_number": "ICT-2024-001"}
		]
	}`},
	{documents.KindPAR, `{
		"par_no": "PAR-2024-0002",
		"received_by": " Maria Santos ",
		"par_date": "2024-02-20",
		"items": [
			{"description": "Office chair", "unit": "pc", "quantity": 2, "amount": "3,250.00"}
		]
	}`},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	service := documents.NewService(
		documents.NewRepository(pool),
		documents.NewNormalizer(cfg.Location()),
		nil,
		shared.NewAuditLogger(pool),
		nil,
		logger,
	)

	var created, skipped int
	for _, s := range samples {
		res, err := service.Save(ctx, s.kind, documents.ModeSave, []byte(s.body))
		var dup *documents.DuplicateKeyError
		switch {
		case errors.As(err, &dup):
			skipped++
			logger.Info("sample already present", slog.String("kind", string(s.kind)), slog.String("number", dup.Number))
		case err != nil:
			logger.Error("seed sample", slog.String("kind", string(s.kind)), slog.Any("error", err))
			os.Exit(1)
		default:
			created++
			logger.Info("sample saved", slog.String("kind", string(s.kind)), slog.String("number", res.Number), slog.String("total", res.Total.String()))
		}
	}
	logger.Info("seed complete", slog.Int("created", created), slog.Int("skipped", skipped))
}
