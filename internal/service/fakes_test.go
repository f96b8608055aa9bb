package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jesses-code-adventures/progress/internal/erp"
	"github.com/jesses-code-adventures/progress/internal/feeds"
	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
)

const (
	connBase        = "Cursor_Voortgang_Projecten_en_fases"
	connWorkTypes   = "Cursor_Voortgang_Nacalculatie_Werksoorten"
	connCumCosts    = "Cursor_Voortgang_Projecten_Cumulatieven_Kosten"
	connActualCosts = "Cursor_Voortgang_Nacalculatie_Kostensoorten"
	connTerms       = "Cursor_Voortgang_Projecten_Contractsom_Fase"
	connInvoiced    = "Cursor_Voortgang_Gefactureerd"
	connSidebar     = "Cursor_Voortgang_Projecten_per_Projectleider"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

// fakeGateway serves canned rows per connector and scripted invoice results.
type fakeGateway struct {
	mu         sync.Mutex
	rows       map[string][]erp.Row
	fetchErr   map[string]error
	blockFetch string
	fetchCalls map[string]int

	invoice func(line erp.InvoiceLine) (*models.InvoiceResult, error)
	lines   []erp.InvoiceLine
	started chan struct{}
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rows:       make(map[string][]erp.Row),
		fetchErr:   make(map[string]error),
		fetchCalls: make(map[string]int),
	}
}

func (g *fakeGateway) FetchRows(ctx context.Context, connector string, filter *erp.Filter) ([]erp.Row, error) {
	g.mu.Lock()
	g.fetchCalls[connector]++
	err := g.fetchErr[connector]
	rows := g.rows[connector]
	block := g.blockFetch == connector
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return rows, nil
	}

	var out []erp.Row
	for _, row := range rows {
		if feeds.NormalizeKey(row[filter.Field]) == filter.Value {
			out = append(out, row)
		}
	}
	return out, nil
}

func (g *fakeGateway) CreateInvoiceLine(ctx context.Context, line erp.InvoiceLine) (*models.InvoiceResult, error) {
	g.mu.Lock()
	g.lines = append(g.lines, line)
	invoice := g.invoice
	g.mu.Unlock()

	if g.started != nil {
		select {
		case g.started <- struct{}{}:
		default:
		}
	}
	if g.release != nil {
		<-g.release
	}

	if invoice == nil {
		return &models.InvoiceResult{PhaseCode: line.PhaseCode, Amount: line.Amount, Success: true, Message: "ok"}, nil
	}
	return invoice(line)
}

func (g *fakeGateway) sentLines() []erp.InvoiceLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]erp.InvoiceLine(nil), g.lines...)
}

func (g *fakeGateway) calls(connector string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchCalls[connector]
}

func (g *fakeGateway) setRows(connector string, rows ...erp.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows[connector] = rows
}

func newServices(t *testing.T, gw erp.Gateway, fetchInvoiced bool) (*ProjectService, *SubmissionService) {
	t.Helper()
	schema, err := feeds.DefaultSchema()
	if err != nil {
		t.Fatalf("DefaultSchema failed: %v", err)
	}
	fetcher := feeds.NewFetcher(gw, schema)
	return NewProjectService(fetcher, fetchInvoiced), NewSubmissionService(gw, 4)
}

// seedProject loads a three-phase project P1 into gw.
func seedProject(gw *fakeGateway) {
	gw.setRows(connBase,
		erp.Row{"Projectnummer": "P1", "Projectfase": "F1", "Project_omschrijving": "Brede school", "Projectfase_omschrijving": "Ruwbouw"},
		erp.Row{"Projectnummer": "P1", "Projectfase": "F2", "Project_omschrijving": "Brede school", "Projectfase_omschrijving": "Afbouw"},
		erp.Row{"Projectnummer": " P1 ", "Projectfase": "F3", "Project_omschrijving": "Brede school", "Projectfase_omschrijving": "Oplevering"},
	)
	gw.setRows(connTerms,
		erp.Row{"Projectnummer": "P1", "Projectfase": "F1", "Termijnbedrag": "50000"},
		erp.Row{"Projectnummer": "P1", "Projectfase": "F2", "Termijnbedrag": "20000"},
		erp.Row{"Projectnummer": "P1", "Projectfase": "F3", "Termijnbedrag": "10000"},
	)
	gw.setRows(connActualCosts,
		erp.Row{"Projectnummer": "P1", "Projectfase": "F1", "Kostprijsbedrag": "10000"},
		erp.Row{"Projectnummer": "P1", "Projectfase": "F1", "Kostprijsbedrag": "20000"},
	)
	gw.setRows(connCumCosts,
		erp.Row{"Projectnummer": "P1", "KOSTENSOORT": "K100", "Omschrijving_kostensoort": "Materiaal", "Budget_kosten": "40000", "Nacalculatie_kosten": "30000"},
	)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
