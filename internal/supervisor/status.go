package supervisor

// Status is the supervisor's projection of the wrapped server's lifecycle.
// It is mutated only by the Supervisor, in response to dashboard commands
// and observed process events.
type Status string

const (
	StatusStopped    Status = "stopped"
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusStopping   Status = "stopping"
	StatusRestarting Status = "restarting"
)

// AllStatuses lists every status value, for gauge labelling.
func AllStatuses() []string {
	return []string{
		string(StatusStopped),
		string(StatusStarting),
		string(StatusRunning),
		string(StatusStopping),
		string(StatusRestarting),
	}
}
