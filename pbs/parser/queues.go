package parser

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/CZERTAINLY/pbsctl/pbs/model"
)

var queueHeaderRx = regexp.MustCompile(`(?i)^queue:(.*)$`)

// ParseQueues parses the output of qstat -Q -f [name]
func ParseQueues(ctx context.Context, text string) ([]model.Queue, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Queue{}, nil
	}

	blocks := splitBlocks(ctx, text, queueHeaderRx)
	queues := make([]model.Queue, 0, len(blocks))
	for _, b := range blocks {
		queue := model.NewQueue(b.header)
		for _, a := range b.attrs {
			setQueueAttribute(ctx, &queue, a)
		}
		queues = append(queues, queue)
	}
	return queues, nil
}

func setQueueAttribute(ctx context.Context, queue *model.Queue, a attribute) {
	switch a.key {
	case "queue_type":
		queue.QueueType = a.value
	case "priority":
		queue.Priority = atoi(ctx, a)
	case "total_jobs":
		queue.TotalJobs = atoi(ctx, a)
	case "max_user_run":
		queue.MaxUserRun = atoi(ctx, a)
	case "state_count":
		queue.StateCount = a.value
	case "mtime":
		queue.MTime = a.value
	case "enabled":
		queue.Enabled = atob(a)
	case "started":
		queue.Started = atob(a)
	default:
		switch {
		case bucket(queue.ResourcesMax, a, "resources_max."):
		case bucket(queue.ResourcesMin, a, "resources_min."):
		case bucket(queue.ResourcesAssigned, a, "resources_assigned."):
		case bucket(queue.ResourcesDefault, a, "resources_default."):
		default:
			slog.DebugContext(ctx, "unmapped queue attribute", "queue", queue.Name, "key", a.key, "value", a.value)
		}
	}
}
