package stage

import "context"

// Unavailable stands in for a stage whose construction failed. It fails every
// run with the construction error so the rest of the pipeline keeps working.
type Unavailable struct {
	name string
	err  error
}

// NewUnavailable wraps err as a permanently failing stage.
func NewUnavailable(name string, err error) *Unavailable {
	return &Unavailable{name: name, err: err}
}

func (u *Unavailable) Name() string { return u.name }

func (u *Unavailable) Run(context.Context) (Result, error) {
	return Result{Outcome: OutcomeFailed, ExitCode: 1}, u.err
}

func (u *Unavailable) HealthCheck(context.Context) Health {
	return Unhealthy(u.name, u.err.Error())
}
