package domain

// Command is an administrative instruction for a session. The set of
// variants is closed; handlers switch over the concrete types.
type Command interface {
	command()
	Name() string
}

// RerouteCommand moves the session to another pod.
type RerouteCommand struct {
	PodName string
}

// ForceRegionCommand skips disclaimer and region prompts and routes the
// session to the region's pods.
type ForceRegionCommand struct {
	Region string
}

// ResumeSessionCommand revives a stale session.
type ResumeSessionCommand struct{}

// NewSessionCommand ends the current session and starts a fresh one in a pod.
type NewSessionCommand struct {
	PodName string
}

// EndSessionCommand tears the session down.
type EndSessionCommand struct{}

func (RerouteCommand) command()       {}
func (ForceRegionCommand) command()   {}
func (ResumeSessionCommand) command() {}
func (NewSessionCommand) command()    {}
func (EndSessionCommand) command()    {}

func (RerouteCommand) Name() string       { return "reroute" }
func (ForceRegionCommand) Name() string   { return "force-region" }
func (ResumeSessionCommand) Name() string { return "resume" }
func (NewSessionCommand) Name() string    { return "new-session" }
func (EndSessionCommand) Name() string    { return "end" }
