package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// SchedulerSubcommand is the hidden CLI verb that runs the scheduler loop.
const SchedulerSubcommand = "scheduler"

// ProcessInfo is the subset of a process table entry discovery needs.
type ProcessInfo struct {
	PID       int
	Cmdline   []string
	CreatedAt time.Time
	Zombie    bool
}

// ProcessTable lists running processes.
type ProcessTable interface {
	Processes(ctx context.Context) ([]ProcessInfo, error)
}

// SystemProcessTable reads the OS process table through gopsutil.
type SystemProcessTable struct{}

// Processes lists every process whose command line can be read. Processes
// that exit mid-scan are skipped.
func (SystemProcessTable) Processes(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list processes")
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		cmdline, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || len(cmdline) == 0 {
			continue
		}
		info := ProcessInfo{PID: int(p.Pid), Cmdline: cmdline}
		if created, err := p.CreateTimeWithContext(ctx); err == nil {
			info.CreatedAt = time.UnixMilli(created)
		}
		if status, err := p.StatusWithContext(ctx); err == nil {
			info.Zombie = slices.Contains(status, process.Zombie)
		}
		out = append(out, info)
	}
	return out, nil
}

// Discovery is one observation of the process table.
type Discovery struct {
	Alive     bool      `json:"alive"`
	PIDs      []int     `json:"pids,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// PID returns the oldest matching pid, or zero.
func (d Discovery) PID() int {
	if len(d.PIDs) == 0 {
		return 0
	}
	return d.PIDs[0]
}

// Has reports whether pid is among the matches.
func (d Discovery) Has(pid int) bool {
	return slices.Contains(d.PIDs, pid)
}

// Discoverer finds scheduler processes by command line.
type Discoverer struct {
	table  ProcessTable
	marker string
	self   int
}

// NewDiscoverer matches processes whose executable base name equals that of
// executable and whose arguments include the scheduler subcommand.
func NewDiscoverer(table ProcessTable, executable string) *Discoverer {
	if table == nil {
		table = SystemProcessTable{}
	}
	return &Discoverer{table: table, marker: filepath.Base(executable), self: os.Getpid()}
}

// Discover scans the process table once.
func (d *Discoverer) Discover(ctx context.Context) (Discovery, error) {
	procs, err := d.table.Processes(ctx)
	if err != nil {
		return Discovery{}, err
	}
	var matches []ProcessInfo
	for _, p := range procs {
		if p.PID == d.self || p.Zombie {
			continue
		}
		if MatchesScheduler(p.Cmdline, d.marker) {
			matches = append(matches, p)
		}
	}
	slices.SortFunc(matches, func(a, b ProcessInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.PID - b.PID
	})
	disc := Discovery{Alive: len(matches) > 0}
	for _, m := range matches {
		disc.PIDs = append(disc.PIDs, m.PID)
	}
	if len(matches) > 0 {
		disc.StartedAt = matches[0].CreatedAt
	}
	return disc, nil
}

// MatchesScheduler reports whether cmdline is the scheduler entry point.
func MatchesScheduler(cmdline []string, marker string) bool {
	if len(cmdline) < 2 || marker == "" {
		return false
	}
	if filepath.Base(cmdline[0]) != marker {
		return false
	}
	return slices.Contains(cmdline[1:], SchedulerSubcommand)
}
