package bootstrap

import "github.com/ErlanBelekov/agentgate/internal/domain"

type State string

const (
	Idle                     State = "idle"
	ValidatingInput          State = "validating_input"
	CreatingOrAuthenticating State = "creating_or_authenticating"
	FetchingAgentLink        State = "fetching_agent_link"
	Complete                 State = "complete"
	Failed                   State = "failed"
	// LinkPending: account and session exist but no link was obtained.
	// The caller retries link retrieval and must not navigate forward.
	LinkPending State = "link_pending"
)

func (s State) Terminal() bool {
	return s == Complete || s == Failed || s == LinkPending
}

type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeLogin, ModeSignup:
		return Mode(s), true
	}
	return "", false
}

// Input is one user submission. In login mode only Email and Password of
// Profile are read.
type Input struct {
	Mode    Mode
	Profile domain.SignupProfile
}

// Result is the outcome of one flow. Err is set for Failed and LinkPending.
type Result struct {
	State          State
	Mode           Mode
	User           *domain.User
	Session        *domain.Session
	Link           *domain.AgentLink
	AccountCreated bool
	Err            *domain.Error
	Transitions    []State
}

func (r *Result) to(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

func (r *Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}

func (r *Result) Kind() domain.Kind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}
