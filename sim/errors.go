package sim

import "errors"

var (
	// ErrInvalidSimulationParameters indicates bad parameters or a bad run
	// request. Returned before any integration starts.
	ErrInvalidSimulationParameters = errors.New("invalid simulation parameters")

	// ErrIntegrationFailure indicates the solver could not produce a solution
	// for the requested span. No partial trajectory accompanies it.
	ErrIntegrationFailure = errors.New("integration failure")
)
