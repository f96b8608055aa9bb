package erp

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jesses-code-adventures/progress/internal/models"
)

// Row is one flat record as returned by a GetConnector. Numbers are decoded as
// json.Number so codes like 2024001 keep their exact digits.
type Row map[string]any

// Filter restricts a GetConnector to rows whose Field equals Value.
type Filter struct {
	Field string
	Value string
}

// InvoiceLine is a single direct-invoice line for one project phase.
type InvoiceLine struct {
	ProjectCode string
	PhaseCode   string
	Date        time.Time
	Amount      decimal.Decimal
}

// Gateway is everything the progress workflow needs from the ERP.
//
// CreateInvoiceLine reports vendor rejections through a result with
// Success=false. A non-nil error always means the request did not complete.
type Gateway interface {
	FetchRows(ctx context.Context, connector string, filter *Filter) ([]Row, error)
	CreateInvoiceLine(ctx context.Context, line InvoiceLine) (*models.InvoiceResult, error)
}
