package stage

import "context"

// Handler describes the contract the Runner needs from each pipeline stage.
//
// Run performs one unit of work. A non-nil error marks the stage failed; the
// returned Result still carries whatever exit information is available.
// Absence of input is reported as a no-op Result, never as an error.
type Handler interface {
	Name() string
	Run(ctx context.Context) (Result, error)
	HealthCheck(ctx context.Context) Health
}
