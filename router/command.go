package router

import (
	"fmt"
	"strings"

	"github.com/pilab-dev/helpline/domain"
)

// CommandPrefix marks an operator message as a command.
const CommandPrefix = "!"

// ParseCommand reads an operator command such as "!reroute nc-1". ok is false
// when body is not a command at all; err is set when it is one but cannot be
// understood.
func ParseCommand(body string) (cmd domain.Command, ok bool, err error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, CommandPrefix) {
		return nil, false, nil
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(body, CommandPrefix), " ")
	cmd, err = NewCommand(name, arg)
	return cmd, true, err
}

// NewCommand builds a command from its name and argument.
func NewCommand(name, arg string) (domain.Command, error) {
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "reroute":
		if arg == "" {
			return nil, fmt.Errorf("reroute requires a pod name")
		}
		return domain.RerouteCommand{PodName: arg}, nil
	case "force-region", "region":
		if arg == "" {
			return nil, fmt.Errorf("force-region requires a region")
		}
		return domain.ForceRegionCommand{Region: arg}, nil
	case "resume":
		return domain.ResumeSessionCommand{}, nil
	case "new-session", "newsession":
		if arg == "" {
			return nil, fmt.Errorf("new-session requires a pod name")
		}
		return domain.NewSessionCommand{PodName: arg}, nil
	case "end":
		return domain.EndSessionCommand{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}
}
