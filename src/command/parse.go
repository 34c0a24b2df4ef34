// Package command parses the free-text vote commands. Parsing is pure: no
// I/O, no chat context, and every input yields either a structured request
// or one specific error.
package command

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const (
	// AddPrefix starts a vote-add command ("/+", "/+ 3", "/+ Ann, Bob").
	AddPrefix = "/+"
	// RevokePrefix starts a vote-revoke command ("/- 2").
	RevokePrefix = "/-"

	MaxNames      = 10
	MaxNameLength = 50
	// DefaultMaxVoteCount bounds the "/+ N" form when no limit is
	// configured. Deployments tune this through config.
	DefaultMaxVoteCount = 20
)

var (
	ErrNotVoteCommand          = errors.New("not a vote command")
	ErrInvalidVoteCount        = errors.New("vote count out of range")
	ErrEmptyNames              = errors.New("no names given")
	ErrTooManyNames            = errors.New("too many names")
	ErrNameTooLong             = errors.New("name too long")
	ErrInvalidNameChars        = errors.New("name contains invalid characters")
	ErrVoteNumberNotProvided   = errors.New("vote number not provided")
	ErrInvalidVoteNumberFormat = errors.New("vote number must be digits")
	ErrInvalidVoteNumber       = errors.New("vote number must be positive")
)

var (
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	// Letters and digits in any script, whitespace, and ._- are allowed
	// in names.
	nameRe  = regexp.MustCompile(`^[\p{L}\p{N}\s._-]+$`)
	splitRe = regexp.MustCompile(`[,\s]+`)
)

// VoteRequest is a parsed vote-add command: either Names, or Count
// anonymous votes.
type VoteRequest struct {
	Names []string
	Count int
}

// ParseVote parses a vote-add command. Bare "/+" requests one anonymous
// vote; an all-digits argument requests that many anonymous votes; any
// other argument is a comma/whitespace separated name list.
func ParseVote(text string, maxCount int) (VoteRequest, error) {
	if maxCount <= 0 {
		maxCount = DefaultMaxVoteCount
	}
	if !strings.HasPrefix(text, AddPrefix) {
		return VoteRequest{}, ErrNotVoteCommand
	}
	args := strings.TrimSpace(text[len(AddPrefix):])
	if args == "" {
		return VoteRequest{Count: 1}, nil
	}
	if digitsRe.MatchString(args) {
		count, err := strconv.Atoi(args)
		if err != nil || count < 1 || count > maxCount {
			return VoteRequest{}, ErrInvalidVoteCount
		}
		return VoteRequest{Count: count}, nil
	}
	var names []string
	for _, part := range splitRe.Split(args, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names = append(names, part)
	}
	if len(names) == 0 {
		return VoteRequest{}, ErrEmptyNames
	}
	if len(names) > MaxNames {
		return VoteRequest{}, ErrTooManyNames
	}
	for _, name := range names {
		if len([]rune(name)) > MaxNameLength {
			return VoteRequest{}, ErrNameTooLong
		}
		if !nameRe.MatchString(name) {
			return VoteRequest{}, ErrInvalidNameChars
		}
	}
	return VoteRequest{Names: names}, nil
}

// ParseRevoke parses a vote-revoke command and returns the display number
// to remove.
func ParseRevoke(text string) (int, error) {
	if !strings.HasPrefix(text, RevokePrefix) {
		return 0, ErrNotVoteCommand
	}
	args := strings.TrimSpace(text[len(RevokePrefix):])
	if args == "" {
		return 0, ErrVoteNumberNotProvided
	}
	if !digitsRe.MatchString(args) {
		return 0, ErrInvalidVoteNumberFormat
	}
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		return 0, ErrInvalidVoteNumber
	}
	return n, nil
}
