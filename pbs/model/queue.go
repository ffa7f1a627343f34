package model

import (
	"strconv"
	"strings"
)

// Queue is a queue as reported by qstat -Q -f. Priority, TotalJobs and
// MaxUserRun are -1 when not reported or malformed.
type Queue struct {
	Name       string `json:"name" yaml:"name"`
	QueueType  string `json:"queue_type,omitempty" yaml:"queue_type,omitempty"`
	Priority   int    `json:"priority" yaml:"priority"`
	TotalJobs  int    `json:"total_jobs" yaml:"total_jobs"`
	StateCount string `json:"state_count,omitempty" yaml:"state_count,omitempty"`
	MTime      string `json:"mtime,omitempty" yaml:"mtime,omitempty"`
	MaxUserRun int    `json:"max_user_run" yaml:"max_user_run"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Started    bool   `json:"started" yaml:"started"`

	ResourcesMax      map[string]string `json:"resources_max,omitempty" yaml:"resources_max,omitempty"`
	ResourcesMin      map[string]string `json:"resources_min,omitempty" yaml:"resources_min,omitempty"`
	ResourcesAssigned map[string]string `json:"resources_assigned,omitempty" yaml:"resources_assigned,omitempty"`
	ResourcesDefault  map[string]string `json:"resources_default,omitempty" yaml:"resources_default,omitempty"`
}

func NewQueue(name string) Queue {
	return Queue{
		Name:              name,
		Priority:          -1,
		TotalJobs:         -1,
		MaxUserRun:        -1,
		ResourcesMax:      make(map[string]string),
		ResourcesMin:      make(map[string]string),
		ResourcesAssigned: make(map[string]string),
		ResourcesDefault:  make(map[string]string),
	}
}

// StateCounts parses state_count, e.g. "Transit:0 Queued:3 Held:0 Running:1",
// into a map keyed by the lowercased state. Malformed entries are skipped.
func (q Queue) StateCounts() map[string]int {
	ret := make(map[string]int)
	for _, field := range strings.Fields(q.StateCount) {
		k, v, ok := strings.Cut(field, ":")
		if !ok || k == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		ret[strings.ToLower(k)] = n
	}
	return ret
}
