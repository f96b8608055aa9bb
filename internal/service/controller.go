package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/utils"
)

const unknownLeader = "Onbekende Projectleider"

// Journal records submission attempts. It is an audit trail only and is never
// read back into the aggregate.
type Journal interface {
	RecordSubmission(ctx context.Context, summary *models.SubmissionSummary) error
}

type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

type LeaderGroup struct {
	Leader   string                  `json:"leader"`
	Projects []models.SidebarProject `json:"projects"`
}

// Controller owns the application state: the sidebar, the one selected
// project and the submission cycle. Presentation layers only go through its
// methods.
type Controller struct {
	projects  *ProjectService
	submitter *SubmissionService
	journal   Journal
	log       zerolog.Logger

	mu      sync.Mutex
	sidebar []models.SidebarProject
	current *models.Project
	stats   JoinStats
	busy    map[string]bool
	state   SubmissionState
}

func NewController(projects *ProjectService, submitter *SubmissionService, journal Journal) *Controller {
	return &Controller{
		projects:  projects,
		submitter: submitter,
		journal:   journal,
		log:       logger.WithComponent("controller"),
		busy:      make(map[string]bool),
		state:     StateIdle,
	}
}

func (c *Controller) ListProjectsForSidebar(ctx context.Context) ([]models.SidebarProject, error) {
	projects, err := c.projects.ListSidebarProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	c.mu.Lock()
	c.sidebar = projects
	c.mu.Unlock()

	return append([]models.SidebarProject(nil), projects...), nil
}

// SearchSidebar filters the last listed sidebar on code, description, leader
// and customer, case-insensitively.
func (c *Controller) SearchSidebar(term string) []models.SidebarProject {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FilterSidebar(c.sidebar, term)
}

func FilterSidebar(projects []models.SidebarProject, term string) []models.SidebarProject {
	term = strings.ToLower(strings.TrimSpace(term))
	var out []models.SidebarProject
	for _, p := range projects {
		if term == "" ||
			strings.Contains(strings.ToLower(p.ProjectCode), term) ||
			strings.Contains(strings.ToLower(p.Description), term) ||
			strings.Contains(strings.ToLower(p.LeaderName), term) ||
			strings.Contains(strings.ToLower(p.CustomerName), term) {
			out = append(out, p)
		}
	}
	return out
}

// GroupSidebarByLeader groups projects by leader name, leaders sorted, keeping
// the feed order within each group.
func GroupSidebarByLeader(projects []models.SidebarProject) []LeaderGroup {
	index := make(map[string]int)
	var groups []LeaderGroup
	for _, p := range projects {
		leader := utils.OrDefault(p.LeaderName, unknownLeader)
		i, ok := index[leader]
		if !ok {
			i = len(groups)
			index[leader] = i
			groups = append(groups, LeaderGroup{Leader: leader})
		}
		groups[i].Projects = append(groups[i].Projects, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Leader < groups[j].Leader
	})
	return groups
}

// NeighbourProject returns the project before or after code in its leader's
// group of the last listed sidebar.
func (c *Controller) NeighbourProject(code string, dir Direction) (string, bool) {
	c.mu.Lock()
	sidebar := c.sidebar
	c.mu.Unlock()

	for _, group := range GroupSidebarByLeader(sidebar) {
		for i, p := range group.Projects {
			if p.ProjectCode != code {
				continue
			}
			j := i + int(dir)
			if j < 0 || j >= len(group.Projects) {
				return "", false
			}
			return group.Projects[j].ProjectCode, true
		}
	}
	return "", false
}

// SelectProject reconciles code and makes it the current project. On any
// error the previous aggregate stays in place.
func (c *Controller) SelectProject(ctx context.Context, code string) (*models.Project, error) {
	code = strings.TrimSpace(code)
	projects, stats, err := c.projects.FetchProjectWithStats(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = projects[0]
	c.stats = stats
	return c.current.Clone(), nil
}

func (c *Controller) CurrentProject() *models.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

func (c *Controller) LastJoinStats() JoinStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) SubmissionState() SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(state SubmissionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// selected returns the current project when it is code. Callers hold mu.
func (c *Controller) selected(code string) (*models.Project, error) {
	if c.current == nil || c.current.Code != strings.TrimSpace(code) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotSelected, code)
	}
	return c.current, nil
}

func (c *Controller) EditPhaseProgress(projectCode, phaseCode, raw string) (*models.Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.selected(projectCode)
	if err != nil {
		return nil, err
	}
	phase, err := ApplyProgressEdit(project, strings.TrimSpace(phaseCode), raw)
	if err != nil {
		return nil, err
	}
	return phase.Clone(), nil
}

func (c *Controller) ClearPhaseProgress(projectCode, phaseCode string) (*models.Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.selected(projectCode)
	if err != nil {
		return nil, err
	}
	phase, err := ClearProgressEdit(project, strings.TrimSpace(phaseCode))
	if err != nil {
		return nil, err
	}
	return phase.Clone(), nil
}

// PreviewSubmission returns what SubmitProgress would send, without sending.
func (c *Controller) PreviewSubmission(projectCode string) (SubmissionPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.selected(projectCode)
	if err != nil {
		return SubmissionPlan{}, err
	}
	return PlanSubmission(project), nil
}

// SubmitProgress runs one submission cycle for the selected project:
// confirm, send, roll the attempted phases, then refresh from the ERP. A
// second call for the same project while one runs gets
// ErrSubmissionInProgress.
func (c *Controller) SubmitProgress(ctx context.Context, projectCode string, confirmer Confirmer) (*models.SubmissionSummary, error) {
	projectCode = strings.TrimSpace(projectCode)

	c.mu.Lock()
	project, err := c.selected(projectCode)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.busy[projectCode] {
		c.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	c.busy[projectCode] = true
	plan := PlanSubmission(project)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.busy, projectCode)
		c.state = StateIdle
		c.mu.Unlock()
	}()

	summary, err := c.submitter.Execute(ctx, plan, confirmer, c.setState)
	if err != nil {
		return nil, err
	}
	if len(summary.Results) == 0 {
		return summary, nil
	}

	c.mu.Lock()
	if c.current == project {
		ApplySubmission(project, plan, summary)
	}
	c.mu.Unlock()

	if err := c.refresh(ctx, projectCode); err != nil {
		summary.RefreshError = err.Error()
		c.log.Warn().Err(err).Str("project", projectCode).Msg("Refresh after submission failed, showing local state")
	}

	if c.journal != nil {
		if err := c.journal.RecordSubmission(ctx, summary); err != nil {
			c.log.Error().Err(err).Str("project", projectCode).Msg("Failed to record submission")
		}
	}

	return summary, nil
}

func (c *Controller) refresh(ctx context.Context, code string) error {
	projects, stats, err := c.projects.FetchProjectWithStats(ctx, code)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Code != code {
		return nil
	}
	c.current = projects[0]
	c.stats = stats
	return nil
}

// IsNotFound reports whether err means the project or phase does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) || errors.Is(err, ErrPhaseNotFound)
}
