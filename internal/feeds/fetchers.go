package feeds

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jesses-code-adventures/progress/internal/erp"
	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
)

// BasePhaseRow seeds one (project, phase) pair.
type BasePhaseRow struct {
	ProjectCode        string
	PhaseCode          string
	ProjectDescription string
	PhaseDescription   string
}

type WorkTypeSummaryRow struct {
	ProjectCode string
	Item        models.CumulativeWorkTypeItem
}

type CostSummaryRow struct {
	ProjectCode string
	Item        models.CumulativeCostItem
}

// PhaseAmountRow is the shape shared by every feed that carries one amount
// per (project, phase): actual costs, actual work types, invoice terms and
// invoiced amounts.
type PhaseAmountRow struct {
	ProjectCode string
	PhaseCode   string
	Amount      decimal.Decimal
}

// Fetcher turns vendor rows into typed rows using the schema mapping.
type Fetcher struct {
	gateway erp.Gateway
	schema  *Schema
	log     zerolog.Logger
}

func NewFetcher(gateway erp.Gateway, schema *Schema) *Fetcher {
	return &Fetcher{
		gateway: gateway,
		schema:  schema,
		log:     logger.WithComponent("feeds"),
	}
}

func (f *Fetcher) Schema() *Schema {
	return f.schema
}

func (f *Fetcher) fetch(ctx context.Context, id FeedID, projectCode string) ([]erp.Row, *rowMapper, error) {
	feed := f.schema.Feed(id)

	var filter *erp.Filter
	if projectCode != "" && feed.FilterField != "" {
		filter = &erp.Filter{Field: feed.FilterField, Value: projectCode}
	}

	rows, err := f.gateway.FetchRows(ctx, feed.Connector, filter)
	if err != nil {
		return nil, nil, erp.NewFeedFetchError(string(id), feed.Connector, err)
	}

	return rows, newRowMapper(id, feed, f.log), nil
}

func (f *Fetcher) BasePhases(ctx context.Context, projectCode string) ([]BasePhaseRow, error) {
	rows, m, err := f.fetch(ctx, BasePhases, projectCode)
	if err != nil {
		return nil, err
	}

	out := make([]BasePhaseRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, BasePhaseRow{
			ProjectCode:        m.key(row, FieldProjectCode),
			PhaseCode:          m.key(row, FieldPhaseCode),
			ProjectDescription: m.text(row, FieldProjectDescription),
			PhaseDescription:   m.text(row, FieldPhaseDescription),
		})
	}
	return out, nil
}

func (f *Fetcher) CumulativeWorkTypes(ctx context.Context, projectCode string) ([]WorkTypeSummaryRow, error) {
	rows, m, err := f.fetch(ctx, CumulativeWorkTypes, projectCode)
	if err != nil {
		return nil, err
	}

	out := make([]WorkTypeSummaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, WorkTypeSummaryRow{
			ProjectCode: m.key(row, FieldProjectCode),
			Item: models.CumulativeWorkTypeItem{
				ItemCode:    m.key(row, FieldItemCode),
				Description: m.text(row, FieldDescription),
				BudgetHours: m.amount(row, FieldBudgetHours),
				ActualHours: m.amount(row, FieldActualHours),
				BudgetCosts: m.amount(row, FieldBudgetCosts),
				ActualCosts: m.amount(row, FieldActualCosts),
			},
		})
	}
	return out, nil
}

func (f *Fetcher) CumulativeCosts(ctx context.Context, projectCode string) ([]CostSummaryRow, error) {
	rows, m, err := f.fetch(ctx, CumulativeCosts, projectCode)
	if err != nil {
		return nil, err
	}

	out := make([]CostSummaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, CostSummaryRow{
			ProjectCode: m.key(row, FieldProjectCode),
			Item: models.CumulativeCostItem{
				ItemCode:    m.key(row, FieldItemCode),
				Description: m.text(row, FieldDescription),
				BudgetCosts: m.amount(row, FieldBudgetCosts),
				ActualCosts: m.amount(row, FieldActualCosts),
			},
		})
	}
	return out, nil
}

func (f *Fetcher) ActualCosts(ctx context.Context, projectCode string) ([]PhaseAmountRow, error) {
	return f.phaseAmounts(ctx, ActualCosts, projectCode)
}

func (f *Fetcher) ActualWorkTypes(ctx context.Context, projectCode string) ([]PhaseAmountRow, error) {
	return f.phaseAmounts(ctx, ActualWorkTypes, projectCode)
}

func (f *Fetcher) InvoiceTerms(ctx context.Context, projectCode string) ([]PhaseAmountRow, error) {
	return f.phaseAmounts(ctx, InvoiceTerms, projectCode)
}

func (f *Fetcher) InvoicedAmounts(ctx context.Context, projectCode string) ([]PhaseAmountRow, error) {
	return f.phaseAmounts(ctx, InvoicedAmounts, projectCode)
}

func (f *Fetcher) phaseAmounts(ctx context.Context, id FeedID, projectCode string) ([]PhaseAmountRow, error) {
	rows, m, err := f.fetch(ctx, id, projectCode)
	if err != nil {
		return nil, err
	}

	out := make([]PhaseAmountRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, PhaseAmountRow{
			ProjectCode: m.key(row, FieldProjectCode),
			PhaseCode:   m.key(row, FieldPhaseCode),
			Amount:      m.amount(row, FieldAmount),
		})
	}
	return out, nil
}

// SidebarProjects lists every project with its leader. The connector is not
// filtered.
func (f *Fetcher) SidebarProjects(ctx context.Context) ([]models.SidebarProject, error) {
	rows, m, err := f.fetch(ctx, SidebarProjects, "")
	if err != nil {
		return nil, err
	}

	out := make([]models.SidebarProject, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.SidebarProject{
			ProjectCode:  m.key(row, FieldProjectCode),
			Description:  m.text(row, FieldDescription),
			LeaderName:   m.text(row, FieldLeaderName),
			CustomerName: m.text(row, FieldCustomerName),
		})
	}
	return out, nil
}

// rowMapper reads logical fields out of vendor rows for one fetch. A field
// the schema maps but the row lacks is warned about once per fetch.
type rowMapper struct {
	feed   FeedID
	schema FeedSchema
	warned map[string]bool
	log    zerolog.Logger
}

func newRowMapper(feed FeedID, schema FeedSchema, log zerolog.Logger) *rowMapper {
	return &rowMapper{
		feed:   feed,
		schema: schema,
		warned: make(map[string]bool),
		log:    log,
	}
}

func (m *rowMapper) value(row erp.Row, field string) any {
	vendorField := m.schema.Fields[field]
	v, ok := row[vendorField]
	if !ok && !m.warned[field] {
		m.warned[field] = true
		m.log.Warn().
			Str("feed", string(m.feed)).
			Str("field", field).
			Str("vendor_field", vendorField).
			Msg("Mapped field missing from feed row, schema may be out of date")
	}
	return v
}

func (m *rowMapper) key(row erp.Row, field string) string {
	return NormalizeKey(m.value(row, field))
}

func (m *rowMapper) text(row erp.Row, field string) string {
	return NormalizeKey(m.value(row, field))
}

func (m *rowMapper) amount(row erp.Row, field string) decimal.Decimal {
	raw := m.value(row, field)
	d, err := ParseAmount(raw)
	if err != nil {
		m.log.Warn().
			Str("feed", string(m.feed)).
			Str("field", field).
			Interface("value", raw).
			Msg("Invalid amount, counting as zero")
		return decimal.Zero
	}
	return d
}
