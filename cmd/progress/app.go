package main

import (
	"fmt"

	"github.com/jesses-code-adventures/progress/internal/config"
	"github.com/jesses-code-adventures/progress/internal/database"
	"github.com/jesses-code-adventures/progress/internal/erp"
	"github.com/jesses-code-adventures/progress/internal/feeds"
	"github.com/jesses-code-adventures/progress/internal/service"
)

// app carries what the commands share. The controller is only built when the
// AFAS settings are present, so journal-only commands work without them.
type app struct {
	cfg        *config.Config
	db         database.DB
	controller *service.Controller
	erpErr     error
}

func newApp(cfg *config.Config, db database.DB) *app {
	a := &app{cfg: cfg, db: db}
	a.controller, a.erpErr = buildController(cfg, db)
	return a
}

func buildController(cfg *config.Config, journal service.Journal) (*service.Controller, error) {
	if err := cfg.ValidateERP(); err != nil {
		return nil, err
	}

	schema, err := feeds.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}

	client, err := erp.NewClient(erp.ClientConfig{
		BaseURL:  cfg.AFASBaseURL,
		Token:    cfg.AFASToken,
		PageSize: cfg.AFASPageSize,
		Timeout:  cfg.AFASTimeout,
		Invoice: erp.InvoiceDefaults{
			VATCode:  cfg.InvoiceVATCode,
			ItemCode: cfg.InvoiceItemCode,
			Unit:     cfg.InvoiceUnit,
		},
	})
	if err != nil {
		return nil, err
	}

	fetcher := feeds.NewFetcher(client, schema)
	return service.NewController(
		service.NewProjectService(fetcher, cfg.FetchInvoiced),
		service.NewSubmissionService(client, cfg.SubmitConcurrency),
		journal,
	), nil
}

func (a *app) requireController() (*service.Controller, error) {
	if a.erpErr != nil {
		return nil, fmt.Errorf("AFAS is not configured: %w", a.erpErr)
	}
	return a.controller, nil
}
