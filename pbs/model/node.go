package model

import "strings"

// NodeState is a state of a compute node as reported by qnodes
type NodeState string

const (
	NodeStateFree         NodeState = "free"
	NodeStateOffline      NodeState = "offline"
	NodeStateDown         NodeState = "down"
	NodeStateReserve      NodeState = "reserve"
	NodeStateJobExclusive NodeState = "job-exclusive"
	NodeStateJobSharing   NodeState = "job-sharing"
	NodeStateBusy         NodeState = "busy"
	NodeStateTimeShared   NodeState = "time-shared"
	NodeStateStateUnknown NodeState = "state-unknown"
	NodeStateUnknown      NodeState = "unknown"
)

var nodeStates = []NodeState{
	NodeStateFree,
	NodeStateOffline,
	NodeStateDown,
	NodeStateReserve,
	NodeStateJobExclusive,
	NodeStateJobSharing,
	NodeStateBusy,
	NodeStateTimeShared,
	NodeStateStateUnknown,
	NodeStateUnknown,
}

// NodeStates returns all known node states
func NodeStates() []NodeState {
	return append([]NodeState(nil), nodeStates...)
}

// ParseNodeState maps a single state name to a NodeState. Anything not
// recognized is NodeStateUnknown.
func ParseNodeState(s string) NodeState {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range nodeStates {
		if s == string(st) {
			return st
		}
	}
	return NodeStateUnknown
}

func (s NodeState) String() string {
	return string(s)
}

// Node is a compute node as reported by qnodes -x.
type Node struct {
	Name     string `json:"name" yaml:"name"`
	NP       int    `json:"np" yaml:"np"`
	NodeType string `json:"ntype,omitempty" yaml:"ntype,omitempty"`
	// State is the first state of the node, States all of them. Torque
	// reports combinations such as "down,offline".
	State      NodeState         `json:"state" yaml:"state"`
	States     []NodeState       `json:"states,omitempty" yaml:"states,omitempty"`
	Properties []string          `json:"properties,omitempty" yaml:"properties,omitempty"`
	Status     map[string]string `json:"status,omitempty" yaml:"status,omitempty"`
	Jobs       []Job             `json:"jobs,omitempty" yaml:"jobs,omitempty"`
	GPUs       int               `json:"gpus,omitempty" yaml:"gpus,omitempty"`
	Note       string            `json:"note,omitempty" yaml:"note,omitempty"`
}

func NewNode(name string) Node {
	return Node{
		Name:   name,
		State:  NodeStateUnknown,
		Status: make(map[string]string),
	}
}

// HasState reports whether st is one of the node states
func (n Node) HasState(st NodeState) bool {
	for _, s := range n.States {
		if s == st {
			return true
		}
	}
	return n.State == st
}

// Available is true for a node which accepts new work
func (n Node) Available() bool {
	return n.State == NodeStateFree && !n.HasState(NodeStateOffline) && !n.HasState(NodeStateDown)
}
