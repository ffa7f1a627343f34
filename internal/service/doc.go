// Package service takes scheduler snapshots periodically.
//
// A Poller owns a gocron scheduler and an event loop. The scheduler only
// signals a poll, the loop takes the snapshot and writes it as JSON to all
// sinks. A poll signaled while another one runs is coalesced into a single
// poll.
//
//	gocron --trigger--> Poller.Run --Snapshot--> pbs.Client
//	                        |
//	                        +--json--> Sink (stdout, directory)
//
// Failures of a periodic poll are logged and the loop continues. RunOnce
// returns them to the caller.
package service
