package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jesses-code-adventures/progress/internal/erp"
	"github.com/jesses-code-adventures/progress/internal/feeds"
	"github.com/jesses-code-adventures/progress/internal/models"
)

func amountRow(project, phase, amount string) feeds.PhaseAmountRow {
	return feeds.PhaseAmountRow{ProjectCode: project, PhaseCode: phase, Amount: dec(amount)}
}

func TestReconcileJoinCorrectness(t *testing.T) {
	data := FeedData{
		Base: []feeds.BasePhaseRow{
			{ProjectCode: "P1", PhaseCode: "F1"},
			{ProjectCode: "P1", PhaseCode: "F2"},
			{ProjectCode: "P1", PhaseCode: "F1"},
		},
		ActualCosts: []feeds.PhaseAmountRow{
			amountRow("P1", "F1", "100"),
			amountRow("P1", "F2", "7.5"),
			amountRow("P1", "F1", "250.25"),
			amountRow("P1", "F9", "999"),
			amountRow("P2", "F1", "999"),
		},
		ActualWorkTypes: []feeds.PhaseAmountRow{
			amountRow("P1", "F2", "40"),
			amountRow("P1", "F2", "0"),
			amountRow("P1", "F2", "60"),
		},
		InvoiceTerms: []feeds.PhaseAmountRow{
			amountRow("P1", "F1", "1000"),
			amountRow("P1", "F2", "3000"),
			amountRow("P1", "F1", "2000"),
		},
	}

	projects, stats := Reconcile(data, zerolog.Nop())
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
	p := projects[0]
	if len(p.Phases) != 2 {
		t.Fatalf("duplicate base rows must not duplicate phases, got %d", len(p.Phases))
	}

	want := map[string]struct{ costs, workTypes, contract string }{
		"F1": {"350.25", "0", "2000"},
		"F2": {"7.5", "100", "3000"},
	}
	for _, phase := range p.Phases {
		w := want[phase.Code]
		if !phase.ActualCosts.Equal(dec(w.costs)) {
			t.Errorf("%s ActualCosts = %s, want %s", phase.Code, phase.ActualCosts, w.costs)
		}
		if !phase.ActualWorkTypes.Equal(dec(w.workTypes)) {
			t.Errorf("%s ActualWorkTypes = %s, want %s", phase.Code, phase.ActualWorkTypes, w.workTypes)
		}
		if !phase.ContractSum.Equal(dec(w.contract)) {
			t.Errorf("%s ContractSum = %s, want %s", phase.Code, phase.ContractSum, w.contract)
		}
		if phase.NewProgress != nil {
			t.Errorf("%s should have no pending edit", phase.Code)
		}
	}

	if stats.UnmatchedPhaseRows != 2 {
		t.Errorf("UnmatchedPhaseRows = %d, want 2", stats.UnmatchedPhaseRows)
	}
	if stats.ZeroAmountRows != 1 {
		t.Errorf("ZeroAmountRows = %d, want 1", stats.ZeroAmountRows)
	}
	if stats.ContractOverwrites != 1 {
		t.Errorf("ContractOverwrites = %d, want 1", stats.ContractOverwrites)
	}
}

func TestReconcileLastInvoiceTermWins(t *testing.T) {
	data := FeedData{
		Base: []feeds.BasePhaseRow{{ProjectCode: "P1", PhaseCode: "F1"}},
		InvoiceTerms: []feeds.PhaseAmountRow{
			amountRow("P1", "F1", "40000"),
			amountRow("P1", "F1", "50000"),
		},
	}

	projects, _ := Reconcile(data, zerolog.Nop())
	if got := projects[0].Phases[0].ContractSum; !got.Equal(dec("50000")) {
		t.Errorf("ContractSum = %s, want 50000", got)
	}
}

func TestReconcileSkipsIncompleteBaseRows(t *testing.T) {
	data := FeedData{
		Base: []feeds.BasePhaseRow{
			{ProjectCode: "", PhaseCode: "F1"},
			{ProjectCode: "P1", PhaseCode: ""},
			{ProjectCode: "P1", PhaseCode: "F1"},
		},
	}

	projects, stats := Reconcile(data, zerolog.Nop())
	if len(projects) != 1 || len(projects[0].Phases) != 1 {
		t.Fatalf("unexpected projects %+v", projects)
	}
	if stats.SkippedBaseRows != 2 || stats.BaseRows != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestReconcileKeepsFirstSeenOrderAndDefaults(t *testing.T) {
	data := FeedData{
		Base: []feeds.BasePhaseRow{
			{ProjectCode: "P2", PhaseCode: "B", ProjectDescription: "Tweede"},
			{ProjectCode: "P1", PhaseCode: "Z"},
			{ProjectCode: "P2", PhaseCode: "A"},
		},
	}

	projects, _ := Reconcile(data, zerolog.Nop())
	if len(projects) != 2 || projects[0].Code != "P2" || projects[1].Code != "P1" {
		t.Fatalf("projects out of order: %+v", projects)
	}
	if projects[0].Phases[0].Code != "B" || projects[0].Phases[1].Code != "A" {
		t.Errorf("phases out of order")
	}
	if projects[1].Description != unknownProjectDescription {
		t.Errorf("Description = %q", projects[1].Description)
	}
	if projects[1].Phases[0].Description != unknownPhaseDescription {
		t.Errorf("phase Description = %q", projects[1].Phases[0].Description)
	}
}

func TestReconcileSummaryRowsAreAppendedVerbatim(t *testing.T) {
	item := models.CumulativeWorkTypeItem{ItemCode: "W1", BudgetHours: dec("10")}
	data := FeedData{
		Base: []feeds.BasePhaseRow{{ProjectCode: "P1", PhaseCode: "F1"}},
		WorkTypes: []feeds.WorkTypeSummaryRow{
			{ProjectCode: "P1", Item: item},
			{ProjectCode: "P1", Item: item},
			{ProjectCode: "P9", Item: item},
		},
		Costs: []feeds.CostSummaryRow{
			{ProjectCode: "P1", Item: models.CumulativeCostItem{ItemCode: "K1"}},
		},
	}

	projects, stats := Reconcile(data, zerolog.Nop())
	p := projects[0]
	if len(p.CumulativeWorkTypes) != 2 {
		t.Errorf("expected one entry per source row, got %d", len(p.CumulativeWorkTypes))
	}
	if len(p.CumulativeCosts) != 1 {
		t.Errorf("expected 1 cost row, got %d", len(p.CumulativeCosts))
	}
	if stats.UnmatchedSummaryRows != 1 {
		t.Errorf("UnmatchedSummaryRows = %d, want 1", stats.UnmatchedSummaryRows)
	}
}

func TestReconcileDerivesProgressFromInvoiced(t *testing.T) {
	data := FeedData{
		Base: []feeds.BasePhaseRow{
			{ProjectCode: "P1", PhaseCode: "F1"},
			{ProjectCode: "P1", PhaseCode: "F2"},
		},
		InvoiceTerms: []feeds.PhaseAmountRow{amountRow("P1", "F1", "50000")},
		Invoiced: []feeds.PhaseAmountRow{
			amountRow("P1", "F1", "15000"),
			amountRow("P1", "F1", "5000"),
			amountRow("P1", "F2", "100"),
		},
	}

	projects, _ := Reconcile(data, zerolog.Nop())
	f1 := projects[0].Phase("F1")
	if !f1.Invoiced.Equal(dec("20000")) || f1.Progress != 40 {
		t.Errorf("F1 invoiced=%s progress=%d", f1.Invoiced, f1.Progress)
	}
	if !f1.ToInvoice.IsZero() {
		t.Errorf("F1 ToInvoice = %s, want 0", f1.ToInvoice)
	}

	f2 := projects[0].Phase("F2")
	if f2.Progress != 0 {
		t.Errorf("zero contract sum should give progress 0, got %d", f2.Progress)
	}
	if !f2.ToInvoice.Equal(dec("-100")) {
		t.Errorf("F2 ToInvoice = %s, want -100", f2.ToInvoice)
	}
}

func TestFetchProjectThenEditProgress(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	projects, _ := newServices(t, gw, false)

	result, err := projects.FetchProject(context.Background(), "P1")
	if err != nil {
		t.Fatalf("FetchProject failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 project, got %d", len(result))
	}

	project := result[0]
	f1 := project.Phase("F1")
	if !f1.ContractSum.Equal(dec("50000")) || !f1.ActualCosts.Equal(dec("30000")) {
		t.Fatalf("F1 contract=%s costs=%s", f1.ContractSum, f1.ActualCosts)
	}
	if len(project.Phases) != 3 {
		t.Errorf("whitespace in the project code should not split the project, got %d phases", len(project.Phases))
	}
	if len(project.CumulativeCosts) != 1 || project.CumulativeCosts[0].ItemCode != "K100" {
		t.Errorf("unexpected cumulative costs %+v", project.CumulativeCosts)
	}

	if _, err := ApplyProgressEdit(project, "F1", "40"); err != nil {
		t.Fatalf("ApplyProgressEdit failed: %v", err)
	}
	if !f1.ToInvoice.Equal(dec("20000")) {
		t.Errorf("ToInvoice = %s, want 20000", f1.ToInvoice)
	}

	if gw.calls(connInvoiced) != 0 {
		t.Error("the invoiced feed should not be fetched when disabled")
	}
}

func TestFetchProjectNormalizesNumericCodes(t *testing.T) {
	gw := newFakeGateway()
	gw.setRows(connBase, erp.Row{"Projectnummer": json.Number("2024001"), "Projectfase": json.Number("10")})
	gw.setRows(connTerms, erp.Row{"Projectnummer": "2024001 ", "Projectfase": "10", "Termijnbedrag": json.Number("1200")})
	projects, _ := newServices(t, gw, false)

	result, err := projects.FetchProject(context.Background(), "2024001")
	if err != nil {
		t.Fatalf("FetchProject failed: %v", err)
	}
	if len(result) != 1 || !result[0].Phase("10").ContractSum.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("numeric and string codes should join, got %+v", result)
	}
}

func TestFetchProjectIncludesInvoicedFeed(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	gw.setRows(connInvoiced, erp.Row{"Projectnummer": "P1", "Projectfase": "F1", "Gefactureerd": "20000"})
	projects, _ := newServices(t, gw, true)

	result, err := projects.FetchProject(context.Background(), "P1")
	if err != nil {
		t.Fatalf("FetchProject failed: %v", err)
	}
	f1 := result[0].Phase("F1")
	if f1.Progress != 40 || !f1.Invoiced.Equal(dec("20000")) {
		t.Errorf("progress=%d invoiced=%s", f1.Progress, f1.Invoiced)
	}
}

func TestFetchProjectNotFoundIsEmpty(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	projects, _ := newServices(t, gw, false)

	result, err := projects.FetchProject(context.Background(), "UNKNOWN")
	if err != nil {
		t.Fatalf("an unknown project is not an error here: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected no projects, got %d", len(result))
	}
}

func TestFetchProjectFailsFast(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	gw.fetchErr[connTerms] = errors.New("502 bad gateway")
	gw.blockFetch = connCumCosts
	projects, _ := newServices(t, gw, false)

	result, err := projects.FetchProject(context.Background(), "P1")
	if result != nil {
		t.Errorf("no partial aggregate may be returned, got %+v", result)
	}

	var feedErr *erp.FeedFetchError
	if !errors.As(err, &feedErr) {
		t.Fatalf("expected *erp.FeedFetchError, got %v", err)
	}
	if feedErr.Feed != string(feeds.InvoiceTerms) {
		t.Errorf("Feed = %q, want %q", feedErr.Feed, feeds.InvoiceTerms)
	}
}

func TestFetchProjectRequiresCode(t *testing.T) {
	projects, _ := newServices(t, newFakeGateway(), false)
	if _, err := projects.FetchProject(context.Background(), "  "); !errors.Is(err, ErrProjectCodeRequired) {
		t.Errorf("expected ErrProjectCodeRequired for a blank code, got %v", err)
	}
}
