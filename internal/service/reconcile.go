package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jesses-code-adventures/progress/internal/feeds"
	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/utils"
)

const (
	unknownProjectDescription = "Onbekende Projectomschrijving"
	unknownPhaseDescription   = "Onbekende Faseomschrijving"
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrProjectCodeRequired = errors.New("project code is required")
)

// FeedData holds the typed rows of every feed for one reconciliation.
type FeedData struct {
	Base            []feeds.BasePhaseRow
	WorkTypes       []feeds.WorkTypeSummaryRow
	Costs           []feeds.CostSummaryRow
	ActualCosts     []feeds.PhaseAmountRow
	ActualWorkTypes []feeds.PhaseAmountRow
	InvoiceTerms    []feeds.PhaseAmountRow
	Invoiced        []feeds.PhaseAmountRow
}

// JoinStats counts the row anomalies seen while joining. None of them are
// errors.
type JoinStats struct {
	BaseRows             int `json:"base_rows"`
	SkippedBaseRows      int `json:"skipped_base_rows"`
	UnmatchedSummaryRows int `json:"unmatched_summary_rows"`
	UnmatchedPhaseRows   int `json:"unmatched_phase_rows"`
	ZeroAmountRows       int `json:"zero_amount_rows"`
	ContractOverwrites   int `json:"contract_overwrites"`
}

func (s JoinStats) Anomalies() int {
	return s.SkippedBaseRows + s.UnmatchedSummaryRows + s.UnmatchedPhaseRows
}

type phaseKey struct {
	project string
	phase   string
}

// Reconcile joins the feeds into projects. Projects and phases keep the order
// in which the base feed first mentions them.
func Reconcile(data FeedData, log zerolog.Logger) ([]*models.Project, JoinStats) {
	var stats JoinStats
	var order []string
	projects := make(map[string]*models.Project)
	phases := make(map[phaseKey]*models.Phase)

	for _, row := range data.Base {
		stats.BaseRows++
		if row.ProjectCode == "" || row.PhaseCode == "" {
			stats.SkippedBaseRows++
			log.Warn().
				Str("feed", string(feeds.BasePhases)).
				Str("project", row.ProjectCode).
				Str("phase", row.PhaseCode).
				Msg("Skipping base row without project or phase code")
			continue
		}

		project, ok := projects[row.ProjectCode]
		if !ok {
			project = &models.Project{
				Code:        row.ProjectCode,
				Description: utils.OrDefault(row.ProjectDescription, unknownProjectDescription),
			}
			projects[row.ProjectCode] = project
			order = append(order, row.ProjectCode)
		}

		key := phaseKey{row.ProjectCode, row.PhaseCode}
		if _, ok := phases[key]; ok {
			continue
		}
		phase := &models.Phase{
			ProjectCode: row.ProjectCode,
			Code:        row.PhaseCode,
			Description: utils.OrDefault(row.PhaseDescription, unknownPhaseDescription),
		}
		phase.Recalculate()
		phases[key] = phase
		project.Phases = append(project.Phases, phase)
	}

	for _, row := range data.WorkTypes {
		project, ok := projects[row.ProjectCode]
		if !ok {
			stats.UnmatchedSummaryRows++
			warnUnmatched(log, feeds.CumulativeWorkTypes, row.ProjectCode, "")
			continue
		}
		project.CumulativeWorkTypes = append(project.CumulativeWorkTypes, row.Item)
	}

	for _, row := range data.Costs {
		project, ok := projects[row.ProjectCode]
		if !ok {
			stats.UnmatchedSummaryRows++
			warnUnmatched(log, feeds.CumulativeCosts, row.ProjectCode, "")
			continue
		}
		project.CumulativeCosts = append(project.CumulativeCosts, row.Item)
	}

	accumulate := func(feed feeds.FeedID, rows []feeds.PhaseAmountRow, apply func(*models.Phase, feeds.PhaseAmountRow)) {
		for _, row := range rows {
			phase, ok := phases[phaseKey{row.ProjectCode, row.PhaseCode}]
			if !ok {
				stats.UnmatchedPhaseRows++
				warnUnmatched(log, feed, row.ProjectCode, row.PhaseCode)
				continue
			}
			apply(phase, row)
		}
	}

	accumulate(feeds.ActualCosts, data.ActualCosts, func(phase *models.Phase, row feeds.PhaseAmountRow) {
		if row.Amount.IsZero() {
			stats.ZeroAmountRows++
			return
		}
		phase.ActualCosts = phase.ActualCosts.Add(row.Amount)
	})

	accumulate(feeds.ActualWorkTypes, data.ActualWorkTypes, func(phase *models.Phase, row feeds.PhaseAmountRow) {
		if row.Amount.IsZero() {
			stats.ZeroAmountRows++
			return
		}
		phase.ActualWorkTypes = phase.ActualWorkTypes.Add(row.Amount)
	})

	seenTerm := make(map[phaseKey]bool)
	accumulate(feeds.InvoiceTerms, data.InvoiceTerms, func(phase *models.Phase, row feeds.PhaseAmountRow) {
		key := phaseKey{row.ProjectCode, row.PhaseCode}
		if seenTerm[key] {
			stats.ContractOverwrites++
		}
		seenTerm[key] = true
		phase.ContractSum = row.Amount
	})

	accumulate(feeds.InvoicedAmounts, data.Invoiced, func(phase *models.Phase, row feeds.PhaseAmountRow) {
		if row.Amount.IsZero() {
			stats.ZeroAmountRows++
			return
		}
		phase.Invoiced = phase.Invoiced.Add(row.Amount)
	})

	out := make([]*models.Project, 0, len(order))
	for _, code := range order {
		project := projects[code]
		for _, phase := range project.Phases {
			phase.Progress = models.DeriveProgress(phase.Invoiced, phase.ContractSum)
			phase.Recalculate()
		}
		out = append(out, project)
	}

	return out, stats
}

func warnUnmatched(log zerolog.Logger, feed feeds.FeedID, project, phase string) {
	log.Warn().
		Str("feed", string(feed)).
		Str("project", project).
		Str("phase", phase).
		Msg("Dropping row that matches no seeded project or phase")
}

// ProjectService fetches the feeds for one project and reconciles them.
type ProjectService struct {
	fetcher       *feeds.Fetcher
	fetchInvoiced bool
	log           zerolog.Logger
}

func NewProjectService(fetcher *feeds.Fetcher, fetchInvoiced bool) *ProjectService {
	return &ProjectService{
		fetcher:       fetcher,
		fetchInvoiced: fetchInvoiced,
		log:           logger.WithComponent("reconcile"),
	}
}

// FetchProject returns the reconciled aggregate for code, or an empty slice
// when the base feed has no rows for it.
func (s *ProjectService) FetchProject(ctx context.Context, code string) ([]*models.Project, error) {
	projects, _, err := s.FetchProjectWithStats(ctx, code)
	return projects, err
}

// FetchProjectWithStats runs every feed concurrently. The first failing feed
// cancels the others and no aggregate is returned.
func (s *ProjectService) FetchProjectWithStats(ctx context.Context, code string) ([]*models.Project, JoinStats, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, JoinStats{}, ErrProjectCodeRequired
	}

	var data FeedData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.fetcher.BasePhases(gctx, code)
		data.Base = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.fetcher.CumulativeWorkTypes(gctx, code)
		data.WorkTypes = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.fetcher.CumulativeCosts(gctx, code)
		data.Costs = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.fetcher.ActualCosts(gctx, code)
		data.ActualCosts = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.fetcher.ActualWorkTypes(gctx, code)
		data.ActualWorkTypes = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.fetcher.InvoiceTerms(gctx, code)
		data.InvoiceTerms = rows
		return err
	})
	if s.fetchInvoiced {
		g.Go(func() error {
			rows, err := s.fetcher.InvoicedAmounts(gctx, code)
			data.Invoiced = rows
			return err
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Str("project", code).Msg("Reconciliation aborted")
		return nil, JoinStats{}, err
	}

	projects, stats := Reconcile(data, s.log)
	s.log.Debug().
		Str("project", code).
		Int("projects", len(projects)).
		Int("base_rows", stats.BaseRows).
		Int("anomalies", stats.Anomalies()).
		Msg("Reconciled project")

	return projects, stats, nil
}

// ListSidebarProjects returns every project with its leader and customer.
func (s *ProjectService) ListSidebarProjects(ctx context.Context) ([]models.SidebarProject, error) {
	projects, err := s.fetcher.SidebarProjects(ctx)
	if err != nil {
		return nil, err
	}

	out := projects[:0]
	for _, p := range projects {
		if p.ProjectCode == "" {
			s.log.Warn().Str("feed", string(feeds.SidebarProjects)).Msg("Skipping sidebar row without project code")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
