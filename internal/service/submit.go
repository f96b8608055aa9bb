package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jesses-code-adventures/progress/internal/erp"
	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
)

var ErrSubmissionInProgress = errors.New("a submission is already running for this project")

// SubmissionState is where a project's submission cycle currently is.
type SubmissionState string

const (
	StateIdle            SubmissionState = "idle"
	StateConfirming      SubmissionState = "confirming"
	StateSubmitting      SubmissionState = "submitting"
	StateAllSucceeded    SubmissionState = "all_succeeded"
	StatePartiallyFailed SubmissionState = "partially_failed"
	StateTotalFailure    SubmissionState = "total_failure"
)

// PlannedLine is one phase selected for invoicing, frozen at planning time.
type PlannedLine struct {
	PhaseCode   string          `json:"phase_code"`
	Description string          `json:"description"`
	NewProgress int             `json:"new_progress"`
	Amount      decimal.Decimal `json:"amount"`
}

type SubmissionPlan struct {
	ProjectCode string          `json:"project_code"`
	Lines       []PlannedLine   `json:"lines"`
	Total       decimal.Decimal `json:"total"`
}

func (p SubmissionPlan) Empty() bool {
	return len(p.Lines) == 0
}

// ConfirmRequest is what the user is asked to approve before any invoice line
// is sent.
type ConfirmRequest struct {
	ProjectCode string
	LineCount   int
	Total       decimal.Decimal
	Phases      []PlannedLine
}

type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

type ConfirmFunc func(ctx context.Context, req ConfirmRequest) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	return f(ctx, req)
}

// AutoConfirm approves every request. Used for --yes.
var AutoConfirm = ConfirmFunc(func(context.Context, ConfirmRequest) (bool, error) { return true, nil })

// PlanSubmission selects the phases with a pending edit and a positive amount
// to invoice. Credits are never invoiced automatically.
func PlanSubmission(project *models.Project) SubmissionPlan {
	plan := SubmissionPlan{ProjectCode: project.Code, Total: decimal.Zero}
	for _, phase := range project.Phases {
		if !phase.Invoiceable() {
			continue
		}
		plan.Lines = append(plan.Lines, PlannedLine{
			PhaseCode:   phase.Code,
			Description: phase.Description,
			NewProgress: *phase.NewProgress,
			Amount:      phase.ToInvoice,
		})
		plan.Total = plan.Total.Add(phase.ToInvoice)
	}
	return plan
}

// SubmissionService sends planned invoice lines to the ERP.
type SubmissionService struct {
	gateway     erp.Gateway
	concurrency int
	now         func() time.Time
	log         zerolog.Logger
}

func NewSubmissionService(gateway erp.Gateway, concurrency int) *SubmissionService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SubmissionService{
		gateway:     gateway,
		concurrency: concurrency,
		now:         time.Now,
		log:         logger.WithComponent("submit"),
	}
}

// Execute runs the confirmation gate and then one invoice line per planned
// phase. Lines are independent: a failure never undoes a sibling. The only
// error returned is one from the confirmer itself.
func (s *SubmissionService) Execute(ctx context.Context, plan SubmissionPlan, confirmer Confirmer, onState func(SubmissionState)) (*models.SubmissionSummary, error) {
	if onState == nil {
		onState = func(SubmissionState) {}
	}

	summary := &models.SubmissionSummary{
		ID:          models.NewUUID(),
		ProjectCode: plan.ProjectCode,
		SubmittedAt: s.now(),
	}

	if plan.Empty() {
		summary.Outcome = models.OutcomeNothingToDo
		summary.Message = "Nothing to invoice: no phase has a new progress with a positive amount."
		return summary, nil
	}

	onState(StateConfirming)
	ok, err := confirmer.Confirm(ctx, ConfirmRequest{
		ProjectCode: plan.ProjectCode,
		LineCount:   len(plan.Lines),
		Total:       plan.Total,
		Phases:      plan.Lines,
	})
	if err != nil {
		onState(StateIdle)
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		onState(StateIdle)
		summary.Outcome = models.OutcomeDeclined
		summary.Message = "Submission cancelled, no invoice lines were sent."
		return summary, nil
	}

	onState(StateSubmitting)
	summary.Results = s.send(ctx, plan)

	successes := summary.Successes()
	failures := summary.Failures()
	switch {
	case len(failures) == 0:
		summary.Outcome = models.OutcomeAllSucceeded
		onState(StateAllSucceeded)
	case len(successes) == 0:
		summary.Outcome = models.OutcomeTotalFailure
		onState(StateTotalFailure)
	default:
		summary.Outcome = models.OutcomePartiallyFailed
		onState(StatePartiallyFailed)
	}
	summary.Message = summaryMessage(successes, failures)

	s.log.Info().
		Str("project", plan.ProjectCode).
		Str("outcome", string(summary.Outcome)).
		Int("succeeded", len(successes)).
		Int("failed", len(failures)).
		Msg("Submission finished")

	return summary, nil
}

func (s *SubmissionService) send(ctx context.Context, plan SubmissionPlan) []models.InvoiceResult {
	results := make([]models.InvoiceResult, len(plan.Lines))
	today := s.now()

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, line := range plan.Lines {
		g.Go(func() error {
			results[i] = s.sendLine(ctx, erp.InvoiceLine{
				ProjectCode: plan.ProjectCode,
				PhaseCode:   line.PhaseCode,
				Date:        today,
				Amount:      line.Amount,
			})
			return nil
		})
	}
	g.Wait()

	return results
}

func (s *SubmissionService) sendLine(ctx context.Context, line erp.InvoiceLine) models.InvoiceResult {
	result, err := s.gateway.CreateInvoiceLine(ctx, line)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("project", line.ProjectCode).
			Str("phase", line.PhaseCode).
			Msg("Invoice line request failed")
		return models.InvoiceResult{
			PhaseCode: line.PhaseCode,
			Amount:    line.Amount,
			Success:   false,
			Message:   err.Error(),
			Details:   err.Error(),
		}
	}
	if result == nil {
		return models.InvoiceResult{
			PhaseCode: line.PhaseCode,
			Amount:    line.Amount,
			Message:   "no result returned",
		}
	}

	out := *result
	if out.PhaseCode == "" {
		out.PhaseCode = line.PhaseCode
	}
	if out.Amount.IsZero() {
		out.Amount = line.Amount
	}
	return out
}

func summaryMessage(successes, failures []models.InvoiceResult) string {
	var b strings.Builder

	if len(successes) > 0 {
		fmt.Fprintf(&b, "%d invoice line(s) created", len(successes))
		var numbers []string
		for _, r := range successes {
			if r.InvoiceNumber != nil {
				numbers = append(numbers, *r.InvoiceNumber)
			}
		}
		if len(numbers) > 0 {
			fmt.Fprintf(&b, " (invoice numbers: %s)", strings.Join(numbers, ", "))
		}
		b.WriteString(".")
	}

	if len(failures) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d invoice line(s) failed: ", len(failures))
		reasons := make([]string, 0, len(failures))
		for _, r := range failures {
			reasons = append(reasons, fmt.Sprintf("%s: %s", r.PhaseCode, r.Message))
		}
		b.WriteString(strings.Join(reasons, "; "))
	}

	return b.String()
}

// ApplySubmission rolls every attempted phase, whatever its result: the
// submitted percentage becomes the current progress. A pending edit made
// after planning is kept.
func ApplySubmission(project *models.Project, plan SubmissionPlan, summary *models.SubmissionSummary) {
	if summary == nil || len(summary.Results) == 0 {
		return
	}

	attempted := make(map[string]bool, len(summary.Results))
	for _, r := range summary.Results {
		attempted[r.PhaseCode] = true
	}

	for _, line := range plan.Lines {
		if !attempted[line.PhaseCode] {
			continue
		}
		phase := project.Phase(line.PhaseCode)
		if phase == nil {
			continue
		}
		if phase.NewProgress != nil && *phase.NewProgress == line.NewProgress {
			phase.RollProgress()
			continue
		}
		phase.Progress = line.NewProgress
		phase.Recalculate()
	}
}

// SubmitProject plans, confirms, sends and rolls in one call, for callers
// that own the project outright.
func (s *SubmissionService) SubmitProject(ctx context.Context, project *models.Project, confirmer Confirmer) (*models.SubmissionSummary, error) {
	plan := PlanSubmission(project)
	summary, err := s.Execute(ctx, plan, confirmer, nil)
	if err != nil {
		return nil, err
	}
	ApplySubmission(project, plan, summary)
	return summary, nil
}
