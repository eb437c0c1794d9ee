package domain

import "errors"

var (
	ErrMissingCredentials = errors.New("missing jira domain, email or api token")
	ErrMissingBoard       = errors.New("missing board id")
	ErrNoSprint           = errors.New("no active or closed sprints found for this board")
	ErrMissingDateWindow  = errors.New("sprint has no start or end date")
	ErrUnknownEdit        = errors.New("unknown edit")
	ErrUnknownUser        = errors.New("unknown user")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrTicketIndex        = errors.New("ticket index out of range")
)
