package scheduler

import (
	"errors"

	"github.com/a2zsellr/backend/internal/domain/shared"
)

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped scheduler
	ErrSchedulerNotRunning = shared.NewDomainError("SCHEDULER_NOT_RUNNING", "Reset scheduler is not running")

	// ErrRunInProgress is returned when a run is requested while one is
	// active here or on another instance
	ErrRunInProgress = shared.NewDomainError("RUN_IN_PROGRESS", "A scheduled reset run is already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
