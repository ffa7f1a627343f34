package model

import "time"

// Snapshot is a state of the whole cluster taken at once
type Snapshot struct {
	Taken  time.Time `json:"taken" yaml:"taken"`
	Nodes  []Node    `json:"nodes" yaml:"nodes"`
	Queues []Queue   `json:"queues" yaml:"queues"`
	Jobs   []Job     `json:"jobs" yaml:"jobs"`
}
