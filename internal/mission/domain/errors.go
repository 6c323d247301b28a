package domain

import "errors"

var (
	ErrScenarioNotFound    = errors.New("scenario not found")
	ErrScenarioUnpublished = errors.New("scenario not published")
	ErrDuplicateCode       = errors.New("scenario code already exists")
	ErrInvalidScenario     = errors.New("invalid scenario definition")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionTerminal = errors.New("session already terminal")
	ErrStaleVersion    = errors.New("stale session version")
	ErrNotAuthorized   = errors.New("not authorized for this session")

	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidPayload = errors.New("invalid command payload")
)

// ErrorCode maps an error to the stable machine code surfaced to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrScenarioNotFound):
		return "scenario_not_found"
	case errors.Is(err, ErrScenarioUnpublished):
		return "scenario_unpublished"
	case errors.Is(err, ErrDuplicateCode):
		return "conflict"
	case errors.Is(err, ErrInvalidScenario):
		return "validation"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionTerminal):
		return "session_terminal"
	case errors.Is(err, ErrStaleVersion):
		return "conflict"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrInvalidPayload):
		return "validation"
	default:
		return "internal"
	}
}
