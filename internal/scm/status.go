package scm

// DeployStatus is the state of a server-side build as reported by the
// control plane.
type DeployStatus int

const (
	StatusUnknown        DeployStatus = -1
	StatusPending        DeployStatus = 0
	StatusBuilding       DeployStatus = 1
	StatusDeploying      DeployStatus = 2
	StatusFailed         DeployStatus = 3
	StatusSuccess        DeployStatus = 4
	StatusConflict       DeployStatus = 5
	StatusPartialSuccess DeployStatus = 6
)

func (s DeployStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusBuilding:
		return "Building"
	case StatusDeploying:
		return "Deploying"
	case StatusFailed:
		return "Failed"
	case StatusSuccess:
		return "Success"
	case StatusConflict:
		return "Conflict"
	case StatusPartialSuccess:
		return "PartialSuccess"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s DeployStatus) Terminal() bool {
	switch s {
	case StatusFailed, StatusSuccess, StatusConflict, StatusPartialSuccess:
		return true
	}
	return false
}

func parseStatus(v int64) DeployStatus {
	s := DeployStatus(v)
	if s < StatusPending || s > StatusPartialSuccess {
		return StatusUnknown
	}
	return s
}

// Tracker folds polled statuses into the state of one build. Only statuses
// of the deployment started by this run count, and Success is only accepted
// once that deployment has been seen building or deploying, so the result of
// an earlier deployment is never mistaken for this one.
type Tracker struct {
	status      DeployStatus
	progressed  bool
	unconfirmed bool
}

// NewTracker returns a tracker in the Unknown state.
func NewTracker() *Tracker {
	return &Tracker{status: StatusUnknown}
}

// Status returns the last accepted status.
func (t *Tracker) Status() DeployStatus { return t.status }

// Unconfirmed reports whether this run's deployment reported Success before
// any build phase was observed.
func (t *Tracker) Unconfirmed() bool { return t.unconfirmed }

// Observe records one polled status. fresh is true when the status belongs
// to a deployment started by this run. It returns true once a terminal
// status has been accepted.
func (t *Tracker) Observe(s DeployStatus, fresh bool) bool {
	if t.status.Terminal() {
		return true
	}
	if !fresh {
		return false
	}
	switch {
	case s == StatusBuilding || s == StatusDeploying:
		t.progressed = true
		t.status = s
	case s == StatusSuccess:
		if !t.progressed {
			t.unconfirmed = true
			return false
		}
		t.status = s
	case s.Terminal(), s == StatusPending:
		t.status = s
	}
	return t.status.Terminal()
}
