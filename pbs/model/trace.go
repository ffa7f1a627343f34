package model

import (
	"time"
)

// CommandOutput is the raw output of a command
type CommandOutput struct {
	Output string `json:"output" yaml:"output"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// TraceSource is the log a tracejob line comes from
type TraceSource string

const (
	TraceSourceServer     TraceSource = "S"
	TraceSourceMom        TraceSource = "M"
	TraceSourceAccounting TraceSource = "A"
	TraceSourceScheduler  TraceSource = "L"
)

func (s TraceSource) String() string {
	switch s {
	case TraceSourceServer:
		return "server"
	case TraceSourceMom:
		return "mom"
	case TraceSourceAccounting:
		return "accounting"
	case TraceSourceScheduler:
		return "scheduler"
	default:
		return string(s)
	}
}

// TraceEvent is one event of tracejob output
type TraceEvent struct {
	Time    time.Time   `json:"time" yaml:"time"`
	Source  TraceSource `json:"source" yaml:"source"`
	Message string      `json:"message" yaml:"message"`
}
