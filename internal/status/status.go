// Package status defines the execution status set, the active/terminal
// classification, and the command/cluster-message maps that drive notify.
package status

import "fmt"

// Status is one value from the execution status set.
type Status string

const (
	Pending          Status = "pending"
	Scheduling       Status = "scheduling"
	Initializing     Status = "initializing"
	Running          Status = "running"
	Failing          Status = "failing"
	Paused           Status = "paused"
	ModeratorPaused  Status = "moderator_paused"
	Completed        Status = "completed"
	Stopped          Status = "stopped"
	Rejected         Status = "rejected"
	Failed           Status = "failed"
	Terminated       Status = "terminated"
)

// active holds the first-seven statuses; its membership, not any property
// of the status value itself, is what "active" means.
var active = map[Status]bool{
	Pending:         true,
	Scheduling:      true,
	Initializing:    true,
	Running:         true,
	Failing:         true,
	Paused:          true,
	ModeratorPaused: true,
}

// all is the full status set, used to validate SetStatus calls.
var all = map[Status]bool{
	Pending: true, Scheduling: true, Initializing: true, Running: true,
	Failing: true, Paused: true, ModeratorPaused: true,
	Completed: true, Stopped: true, Rejected: true, Failed: true, Terminated: true,
}

// IsActive reports whether s is one of the first seven statuses.
func IsActive(s Status) bool {
	return active[s]
}

// IsValid reports whether s is a member of the status set at all.
func IsValid(s Status) bool {
	return all[s]
}

// Command is a notify command accepted by the lifecycle's Notify operation.
type Command string

const (
	CmdStop            Command = "stop"
	CmdPause           Command = "pause"
	CmdResume          Command = "resume"
	CmdModeratorPaused Command = "moderator_paused"
	CmdRestart         Command = "restart"
	CmdTerminated      Command = "terminated"
)

// commandStatus is the command -> resulting-status map.
// restart/terminated do not appear here: restart re-enqueues rather than
// setting a status directly, and terminated is written only by shutdown.
var commandStatus = map[Command]Status{
	CmdStop:            Stopped,
	CmdPause:           Paused,
	CmdResume:          Running,
	CmdModeratorPaused: ModeratorPaused,
}

// ResultingStatus returns the status a notify command transitions an
// execution to.
func ResultingStatus(c Command) (Status, bool) {
	s, ok := commandStatus[c]
	return s, ok
}

// ClusterMessage is the opaque message kind fanned out to cluster nodes.
type ClusterMessage string

const (
	MsgJobPause   ClusterMessage = "cluster:job:pause"
	MsgJobResume  ClusterMessage = "cluster:job:resume"
	MsgJobRestart ClusterMessage = "cluster:job:restart"
	MsgJobStop    ClusterMessage = "cluster:job:stop"
)

// messageTarget is the command -> (cluster message, slicer-only?) map.
type messageTarget struct {
	msg        ClusterMessage
	slicerOnly bool
}

var commandMessage = map[Command]messageTarget{
	CmdPause:           {MsgJobPause, true},
	CmdResume:          {MsgJobResume, true},
	CmdModeratorPaused: {MsgJobPause, true},
	CmdRestart:         {MsgJobRestart, false},
	CmdStop:            {MsgJobStop, false},
	CmdTerminated:      {MsgJobStop, false},
}

// ErrInvalidCommand is returned by ClusterMessageFor and ResultingStatus
// callers for a command outside the notify set.
var ErrInvalidCommand = fmt.Errorf("invalid notify command")

// ClusterMessageFor maps a notify command to the cluster message fanned
// out to nodes, and whether only the slicer node should receive it.
func ClusterMessageFor(c Command) (ClusterMessage, bool, error) {
	t, ok := commandMessage[c]
	if !ok {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidCommand, c)
	}
	return t.msg, t.slicerOnly, nil
}

// IsKnownCommand reports whether c is present in either map, i.e. whether
// Notify should accept it at all.
func IsKnownCommand(c Command) bool {
	_, inStatus := commandStatus[c]
	_, inMessage := commandMessage[c]
	return inStatus || inMessage
}
