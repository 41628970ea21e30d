package stage

// Health is a stage's readiness, checked once when the scheduler starts.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy reports a stage that can run.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage whose next run is expected to fail, and why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// NotReady keeps the unready entries of checks, in order.
func NotReady(checks []Health) []Health {
	var out []Health
	for _, h := range checks {
		if !h.Ready {
			out = append(out, h)
		}
	}
	return out
}
