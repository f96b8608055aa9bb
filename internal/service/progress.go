package service

import (
	"errors"
	"fmt"

	"github.com/jesses-code-adventures/progress/internal/models"
)

var (
	ErrPhaseNotFound      = errors.New("phase not found")
	ErrProjectNotSelected = errors.New("project is not the selected project")
)

// ApplyProgressEdit parses raw, stores the clamped value as the phase's
// pending progress and recalculates the amount to invoice. It does no I/O.
func ApplyProgressEdit(project *models.Project, phaseCode, raw string) (*models.Phase, error) {
	phase := project.Phase(phaseCode)
	if phase == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrPhaseNotFound, project.Code, phaseCode)
	}
	phase.SetNewProgress(models.ParseProgress(raw))
	return phase, nil
}

func ClearProgressEdit(project *models.Project, phaseCode string) (*models.Phase, error) {
	phase := project.Phase(phaseCode)
	if phase == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrPhaseNotFound, project.Code, phaseCode)
	}
	phase.ClearNewProgress()
	return phase, nil
}
