package model

import (
	"time"
)

// Job is a single job as reported by qstat -f. Integer attributes which
// were present but malformed are set to -1.
type Job struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Owner      string `json:"owner,omitempty" yaml:"owner,omitempty"`
	State      string `json:"state,omitempty" yaml:"state,omitempty"`
	Queue      string `json:"queue,omitempty" yaml:"queue,omitempty"`
	Server     string `json:"server,omitempty" yaml:"server,omitempty"`
	Checkpoint string `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
	CTime      string `json:"ctime,omitempty" yaml:"ctime,omitempty"`
	MTime      string `json:"mtime,omitempty" yaml:"mtime,omitempty"`
	QTime      string `json:"qtime,omitempty" yaml:"qtime,omitempty"`
	ETime      string `json:"etime,omitempty" yaml:"etime,omitempty"`
	StartTime  string `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	CompTime   string `json:"comp_time,omitempty" yaml:"comp_time,omitempty"`
	ErrorPath  string `json:"error_path,omitempty" yaml:"error_path,omitempty"`
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	ExecHost   string `json:"exec_host,omitempty" yaml:"exec_host,omitempty"`
	ExecPort   string `json:"exec_port,omitempty" yaml:"exec_port,omitempty"`
	HoldTypes  string `json:"hold_types,omitempty" yaml:"hold_types,omitempty"`
	JoinPath   string `json:"join_path,omitempty" yaml:"join_path,omitempty"`
	KeepFiles  string `json:"keep_files,omitempty" yaml:"keep_files,omitempty"`
	MailPoints string `json:"mail_points,omitempty" yaml:"mail_points,omitempty"`
	MailUsers  string `json:"mail_users,omitempty" yaml:"mail_users,omitempty"`
	EUser      string `json:"euser,omitempty" yaml:"euser,omitempty"`
	EGroup     string `json:"egroup,omitempty" yaml:"egroup,omitempty"`
	HashName   string `json:"hashname,omitempty" yaml:"hashname,omitempty"`
	QueueType  string `json:"queue_type,omitempty" yaml:"queue_type,omitempty"`
	Comment    string `json:"comment,omitempty" yaml:"comment,omitempty"`
	SubmitArgs string `json:"submit_args,omitempty" yaml:"submit_args,omitempty"`
	SubmitHost string `json:"submit_host,omitempty" yaml:"submit_host,omitempty"`

	Priority   int `json:"priority" yaml:"priority"`
	SessionID  int `json:"session_id" yaml:"session_id"`
	Substate   int `json:"substate" yaml:"substate"`
	QueueRank  int `json:"queue_rank" yaml:"queue_rank"`
	ExitStatus int `json:"exit_status" yaml:"exit_status"`
	StartCount int `json:"start_count" yaml:"start_count"`
	ArrayID    int `json:"job_array_id" yaml:"job_array_id"`
	Radix      int `json:"job_radix" yaml:"job_radix"`
	// QueueIndex is the execution slot of the job when listed by qnodes.
	QueueIndex int `json:"queue_index" yaml:"queue_index"`

	WalltimeRemaining int64   `json:"walltime_remaining" yaml:"walltime_remaining"`
	TotalRuntime      float64 `json:"total_runtime" yaml:"total_runtime"`

	Rerunable     bool `json:"rerunable" yaml:"rerunable"`
	FaultTolerant bool `json:"fault_tolerant" yaml:"fault_tolerant"`

	// keys are the attribute names without the resources_used. prefix
	ResourcesUsed map[string]string `json:"resources_used,omitempty" yaml:"resources_used,omitempty"`
	// keys are the attribute names without the resource_list. prefix
	ResourceList map[string]string `json:"resource_list,omitempty" yaml:"resource_list,omitempty"`
	// Variables is the job environment from Variable_List
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// NewJob returns a Job with initialized maps.
func NewJob(id string) Job {
	return Job{
		ID:            id,
		ResourcesUsed: make(map[string]string),
		ResourceList:  make(map[string]string),
		Variables:     make(map[string]string),
	}
}

// Walltime returns resources_used.walltime as a duration. The second
// value is false if the job did not report a valid walltime yet.
func (j Job) Walltime() (time.Duration, bool) {
	return j.resourceDuration(j.ResourcesUsed, "walltime")
}

// CPUTime returns resources_used.cput as a duration.
func (j Job) CPUTime() (time.Duration, bool) {
	return j.resourceDuration(j.ResourcesUsed, "cput")
}

// WalltimeLimit returns the requested Resource_List.walltime.
func (j Job) WalltimeLimit() (time.Duration, bool) {
	return j.resourceDuration(j.ResourceList, "walltime")
}

func (j Job) resourceDuration(m map[string]string, key string) (time.Duration, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	d, err := ParseWalltime(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// StateName expands the single letter job_state into a readable name.
func (j Job) StateName() string {
	switch j.State {
	case "C":
		return "completed"
	case "E":
		return "exiting"
	case "H":
		return "held"
	case "Q":
		return "queued"
	case "R":
		return "running"
	case "T":
		return "transit"
	case "W":
		return "waiting"
	case "S":
		return "suspended"
	case "B":
		return "begun"
	case "X":
		return "expired"
	case "":
		return "unknown"
	default:
		return j.State
	}
}
