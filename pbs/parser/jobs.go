package parser

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/CZERTAINLY/pbsctl/pbs/model"
)

var jobHeaderRx = regexp.MustCompile(`(?i)^job\s+id:(.*)$`)

const (
	prefixResourcesUsed = "resources_used."
	prefixResourceList  = "resource_list."
	keyVariableList     = "variable_list"
)

// ParseJobs parses the output of qstat -f [-t] [id]. Blank input results
// in an empty slice.
func ParseJobs(ctx context.Context, text string) ([]model.Job, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Job{}, nil
	}

	blocks := splitBlocks(ctx, text, jobHeaderRx)
	jobs := make([]model.Job, 0, len(blocks))
	for _, b := range blocks {
		job := model.NewJob(b.header)
		for _, a := range b.attrs {
			setJobAttribute(ctx, &job, a)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func setJobAttribute(ctx context.Context, job *model.Job, a attribute) {
	switch a.key {
	case "job_name":
		job.Name = a.value
	case "job_owner":
		job.Owner = a.value
	case "job_state":
		job.State = a.value
	case "queue":
		job.Queue = a.value
	case "server":
		job.Server = a.value
	case "checkpoint":
		job.Checkpoint = a.value
	case "ctime":
		job.CTime = a.value
	case "mtime":
		job.MTime = a.value
	case "qtime":
		job.QTime = a.value
	case "etime":
		job.ETime = a.value
	case "start_time":
		job.StartTime = a.value
	case "comp_time":
		job.CompTime = a.value
	case "error_path":
		job.ErrorPath = a.value
	case "output_path":
		job.OutputPath = a.value
	case "exec_host":
		job.ExecHost = a.value
	case "exec_port":
		job.ExecPort = a.value
	case "hold_types":
		job.HoldTypes = a.value
	case "join_path":
		job.JoinPath = a.value
	case "keep_files":
		job.KeepFiles = a.value
	case "mail_points":
		job.MailPoints = a.value
	case "mail_users":
		job.MailUsers = a.value
	case "euser":
		job.EUser = a.value
	case "egroup":
		job.EGroup = a.value
	case "hashname":
		job.HashName = a.value
	case "queue_type":
		job.QueueType = a.value
	case "comment":
		job.Comment = a.value
	case "submit_args":
		job.SubmitArgs = a.value
	case "submit_host":
		job.SubmitHost = a.value
	case "priority":
		job.Priority = atoi(ctx, a)
	case "session_id":
		job.SessionID = atoi(ctx, a)
	case "substate":
		job.Substate = atoi(ctx, a)
	case "queue_rank":
		job.QueueRank = atoi(ctx, a)
	case "exit_status":
		job.ExitStatus = atoi(ctx, a)
	case "start_count":
		job.StartCount = atoi(ctx, a)
	case "job_array_id":
		job.ArrayID = atoi(ctx, a)
	case "job_radix":
		job.Radix = atoi(ctx, a)
	case "walltime.remaining":
		job.WalltimeRemaining = atoi64(ctx, a)
	case "total_runtime":
		job.TotalRuntime = atof(ctx, a)
	case "rerunable":
		job.Rerunable = atob(a)
	case "fault_tolerant":
		job.FaultTolerant = atob(a)
	case keyVariableList:
		for k, v := range parseVariables(a.value) {
			job.Variables[k] = v
		}
	default:
		switch {
		case bucket(job.ResourcesUsed, a, prefixResourcesUsed):
		case bucket(job.ResourceList, a, prefixResourceList):
		default:
			slog.DebugContext(ctx, "unmapped job attribute", "job", job.ID, "key", a.key)
		}
	}
}

// parseVariables splits Variable_List into NAME=VALUE pairs. Values may
// contain commas, so a fragment without = belongs to the previous value.
func parseVariables(value string) map[string]string {
	ret := make(map[string]string)
	var last string
	for _, fragment := range strings.Split(value, ",") {
		name, val, ok := strings.Cut(fragment, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			if last != "" {
				ret[last] += "," + fragment
			}
			continue
		}
		ret[name] = val
		last = name
	}
	return ret
}
