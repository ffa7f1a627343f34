package parser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/pbsctl/pbs/model"
)

const (
	nodeElement = "Node"
	// maxSlotRange is the widest job slot range accepted in <jobs>
	maxSlotRange = 4096
)

// node fields collected from child elements of <Node>
var nodeFields = map[string]struct{}{
	"name":       {},
	"state":      {},
	"np":         {},
	"properties": {},
	"ntype":      {},
	"status":     {},
	"jobs":       {},
	"gpus":       {},
	"note":       {},
}

// ParseNodes parses the XML output of qnodes -x [name]
func ParseNodes(ctx context.Context, text string) ([]model.Node, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Node{}, nil
	}
	return DecodeNodes(ctx, strings.NewReader(text))
}

// DecodeNodes is a streaming variant of ParseNodes
func DecodeNodes(ctx context.Context, r io.Reader) ([]model.Node, error) {
	dec := xml.NewDecoder(r)

	nodes := []model.Node{}
	var (
		inNode bool
		field  string
		text   strings.Builder
		fields map[string]string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: node xml: %w", ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == nodeElement:
				inNode = true
				fields = make(map[string]string, len(nodeFields))
			case inNode && field == "":
				if _, ok := nodeFields[t.Name.Local]; ok {
					field = t.Name.Local
					text.Reset()
				}
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case field != "" && t.Name.Local == field:
				fields[field] = text.String()
				field = ""
			case t.Name.Local == nodeElement && inNode:
				node, err := newNode(ctx, fields)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, node)
				inNode = false
			}
		}
	}
	return nodes, nil
}

func newNode(ctx context.Context, fields map[string]string) (model.Node, error) {
	name := strings.TrimSpace(fields["name"])
	node := model.NewNode(name)
	node.NodeType = strings.TrimSpace(fields["ntype"])
	node.Note = strings.TrimSpace(fields["note"])

	var err error
	if node.NP, err = nodeInt(fields, "np", name); err != nil {
		return model.Node{}, err
	}
	if node.GPUs, err = nodeInt(fields, "gpus", name); err != nil {
		return model.Node{}, err
	}

	for _, s := range strings.Split(fields["state"], ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		node.States = append(node.States, model.ParseNodeState(s))
	}
	if len(node.States) > 0 {
		node.State = node.States[0]
	}

	for _, prop := range strings.Split(fields["properties"], ",") {
		if strings.TrimSpace(prop) == "" {
			continue
		}
		node.Properties = append(node.Properties, prop)
	}

	for _, st := range strings.Split(fields["status"], ",") {
		if strings.IndexByte(st, '=') <= 0 {
			continue
		}
		kv := strings.Split(st, "=")
		if len(kv) != 2 {
			slog.DebugContext(ctx, "ambiguous node status entry: ignoring", "node", name, "entry", st)
			continue
		}
		node.Status[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}

	jobs, err := nodeJobs(fields["jobs"], name)
	if err != nil {
		return model.Node{}, err
	}
	node.Jobs = jobs
	return node, nil
}

func nodeInt(fields map[string]string, key, name string) (int, error) {
	v, ok := fields[key]
	if !ok || strings.TrimSpace(v) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: node %q: %s: %w", ErrParse, name, key, err)
	}
	return n, nil
}

// nodeJobs parses the jobs element, a list of slot/job_id pairs. Newer
// servers compress adjacent slots into a range, e.g. 0-3/12.server.
func nodeJobs(value, name string) ([]model.Job, error) {
	var jobs []model.Job
	for _, entry := range strings.Split(value, ",") {
		if strings.IndexByte(entry, '/') <= 0 {
			continue
		}
		parts := strings.Split(entry, "/")
		if len(parts) != 2 {
			continue
		}
		id := parts[1]
		first, last, err := slotRange(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: job slot %q: %w", ErrParse, name, parts[0], err)
		}
		for n := range last - first + 1 {
			jobs = append(jobs, model.Job{
				ID:         id,
				Name:       id,
				QueueIndex: first + n,
			})
		}
	}
	return jobs, nil
}

func slotRange(s string) (int, int, error) {
	a, b, isRange := strings.Cut(s, "-")
	first, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return first, first, nil
	}
	last, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, err
	}
	if last < first {
		return 0, 0, fmt.Errorf("invalid range %d-%d", first, last)
	}
	if last-first >= maxSlotRange {
		return 0, 0, fmt.Errorf("range %d-%d wider than %d slots", first, last, maxSlotRange)
	}
	return first, last, nil
}
