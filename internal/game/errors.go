package game

import "errors"

var (
	ErrNotHost           = errors.New("not host")
	ErrInvalidPhase      = errors.New("invalid phase for action")
	ErrNotEnoughPlayers  = errors.New("not enough connected players")
	ErrSessionFull       = errors.New("session is full")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrUnknownSubmission = errors.New("unknown submission")
	ErrSelfVote          = errors.New("cannot vote for own submission")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrInvalidCode       = errors.New("invalid session code")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrNoPromptAvailable = errors.New("no prompt available")
)
