package purge

// Request parameter names shared by the trigger link and the dispatcher
const (
	ParamAction = "action"
	ParamScope  = "urls"
	ParamToken  = "_wpnonce"
)

// Token namespaces. Links from the toolbar are signed with PurgeNamespace,
// form submissions from the settings screen with SettingsNamespace.
const (
	PurgeNamespace    = "page-cache-purge_all"
	SettingsNamespace = "page-cache-settings"
)

// Action is the closed set of purge instructions a request may carry
type Action int

const (
	ActionNone Action = iota
	ActionPurgeAll
	ActionPurgeCurrentPage
	ActionDone
	// ActionUnknown is any other value. It authorizes and redirects like a
	// purge but never reaches the cache engine.
	ActionUnknown
)

// ParseAction maps a raw parameter value onto an Action
func ParseAction(raw string) Action {
	switch raw {
	case "":
		return ActionNone
	case "purge":
		return ActionPurgeAll
	case "purge_current_page":
		return ActionPurgeCurrentPage
	case "done":
		return ActionDone
	default:
		return ActionUnknown
	}
}

// String returns the wire value of the action
func (a Action) String() string {
	switch a {
	case ActionNone:
		return ""
	case ActionPurgeAll:
		return "purge"
	case ActionPurgeCurrentPage:
		return "purge_current_page"
	case ActionDone:
		return "done"
	default:
		return "unknown"
	}
}

// label is the value used in logs and metrics, where "" is not useful
func (a Action) label() string {
	if a == ActionNone {
		return "none"
	}
	return a.String()
}

// terminal reports whether the action ends dispatch before any side effect
func (a Action) terminal() bool {
	return a == ActionNone || a == ActionDone
}

// Origin tells which surface a request came from
type Origin int

const (
	OriginFrontEnd Origin = iota
	OriginAdmin
)

func (o Origin) String() string {
	if o == OriginAdmin {
		return "admin"
	}
	return "front_end"
}

// Scope is what a trigger link asks to purge
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeCurrentURL Scope = "current-url"
)

// ScopeFor returns the link scope for a surface
func ScopeFor(o Origin) Scope {
	if o == OriginAdmin {
		return ScopeAll
	}
	return ScopeCurrentURL
}

// State is a step of the dispatch state machine
type State int

const (
	StateIdle State = iota
	StateAuthorizing
	StateScoping
	StateInvalidating
	StateRedirecting
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthorizing:
		return "authorizing"
	case StateScoping:
		return "scoping"
	case StateInvalidating:
		return "invalidating"
	case StateRedirecting:
		return "redirecting"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
