package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Project struct {
	Code                string                   `json:"project_code"`
	Description         string                   `json:"description"`
	Phases              []*Phase                 `json:"phases"`
	CumulativeWorkTypes []CumulativeWorkTypeItem `json:"cumulative_work_types"`
	CumulativeCosts     []CumulativeCostItem     `json:"cumulative_costs"`
}

type Phase struct {
	ProjectCode     string          `json:"project_code"`
	Code            string          `json:"phase_code"`
	Description     string          `json:"description"`
	ContractSum     decimal.Decimal `json:"contract_sum"`
	ActualCosts     decimal.Decimal `json:"actual_costs"`
	ActualWorkTypes decimal.Decimal `json:"actual_work_types"`
	Invoiced        decimal.Decimal `json:"invoiced"`
	Progress        int             `json:"progress"`
	NewProgress     *int            `json:"new_progress"`
	ToInvoice       decimal.Decimal `json:"to_invoice"`
}

type CumulativeWorkTypeItem struct {
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description"`
	BudgetHours decimal.Decimal `json:"budget_hours"`
	ActualHours decimal.Decimal `json:"actual_hours"`
	BudgetCosts decimal.Decimal `json:"budget_costs"`
	ActualCosts decimal.Decimal `json:"actual_costs"`
}

type CumulativeCostItem struct {
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description"`
	BudgetCosts decimal.Decimal `json:"budget_costs"`
	ActualCosts decimal.Decimal `json:"actual_costs"`
}

type SidebarProject struct {
	ProjectCode  string `json:"project_code"`
	Description  string `json:"description"`
	LeaderName   string `json:"leader_name"`
	CustomerName string `json:"customer_name"`
}

type InvoiceResult struct {
	PhaseCode     string          `json:"phase_code"`
	Amount        decimal.Decimal `json:"amount"`
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	InvoiceNumber *string         `json:"invoice_number,omitempty"`
	Details       string          `json:"details,omitempty"`
}

type SubmissionOutcome string

const (
	OutcomeNothingToDo     SubmissionOutcome = "nothing_to_do"
	OutcomeDeclined        SubmissionOutcome = "declined"
	OutcomeAllSucceeded    SubmissionOutcome = "all_succeeded"
	OutcomePartiallyFailed SubmissionOutcome = "partially_failed"
	OutcomeTotalFailure    SubmissionOutcome = "total_failure"
)

type SubmissionSummary struct {
	ID           string            `json:"id"`
	ProjectCode  string            `json:"project_code"`
	Outcome      SubmissionOutcome `json:"outcome"`
	Message      string            `json:"message"`
	Results      []InvoiceResult   `json:"results"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	RefreshError string            `json:"refresh_error,omitempty"`
}

func (s *SubmissionSummary) Successes() []InvoiceResult {
	var out []InvoiceResult
	for _, r := range s.Results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

func (s *SubmissionSummary) Failures() []InvoiceResult {
	var out []InvoiceResult
	for _, r := range s.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// Phase looks up a phase by code. Phase codes are only unique within a project.
func (p *Project) Phase(code string) *Phase {
	for _, phase := range p.Phases {
		if phase.Code == code {
			return phase
		}
	}
	return nil
}

func (p *Project) TotalContractSum() decimal.Decimal {
	total := decimal.Zero
	for _, phase := range p.Phases {
		total = total.Add(phase.ContractSum)
	}
	return total
}

func (p *Project) TotalToInvoice() decimal.Decimal {
	total := decimal.Zero
	for _, phase := range p.Phases {
		total = total.Add(phase.ToInvoice)
	}
	return total
}

// Clone returns a deep copy so callers can read the aggregate without holding
// the controller's lock.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Phases = make([]*Phase, len(p.Phases))
	for i, phase := range p.Phases {
		out.Phases[i] = phase.Clone()
	}
	out.CumulativeWorkTypes = append([]CumulativeWorkTypeItem(nil), p.CumulativeWorkTypes...)
	out.CumulativeCosts = append([]CumulativeCostItem(nil), p.CumulativeCosts...)
	return &out
}

func (p *Phase) Clone() *Phase {
	if p == nil {
		return nil
	}
	out := *p
	if p.NewProgress != nil {
		v := *p.NewProgress
		out.NewProgress = &v
	}
	return &out
}

func NewUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}
