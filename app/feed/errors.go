package feed

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedSite
	KindInvalidParameter
	KindFetchFailure
	KindParseFailure
	KindGenerationFailure
)

// Code returns the machine readable error code exposed to API consumers.
func (k Kind) Code() string {
	switch k {
	case KindUnsupportedSite:
		return "UNSUPPORTED_SITE"
	case KindInvalidParameter:
		return "INVALID_PARAMETER"
	case KindFetchFailure:
		return "FETCH_FAILURE"
	case KindParseFailure:
		return "PARSE_FAILURE"
	case KindGenerationFailure:
		return "GENERATION_FAILURE"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k Kind) String() string {
	switch k {
	case KindUnsupportedSite:
		return "unsupported site"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindFetchFailure:
		return "fetch failure"
	case KindParseFailure:
		return "parse failure"
	case KindGenerationFailure:
		return "generation failure"
	default:
		return "internal error"
	}
}

// Error is the typed failure of a feed request. Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

var (
	ErrUnsupportedSite   = &Error{Kind: KindUnsupportedSite}
	ErrInvalidParameter  = &Error{Kind: KindInvalidParameter}
	ErrFetchFailure      = &Error{Kind: KindFetchFailure}
	ErrParseFailure      = &Error{Kind: KindParseFailure}
	ErrGenerationFailure = &Error{Kind: KindGenerationFailure}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrFetchFailure)
// holds for every fetch failure regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func UnsupportedSite(siteID string) error {
	return &Error{Kind: KindUnsupportedSite, Message: fmt.Sprintf("site '%s' is not supported", siteID)}
}

func InvalidParameter(format string, args ...any) error {
	return &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

func FetchFailure(url string, err error) error {
	return &Error{Kind: KindFetchFailure, Message: fmt.Sprintf("failed to fetch %s", url), Err: err}
}

func ParseFailure(message string, err error) error {
	return &Error{Kind: KindParseFailure, Message: message, Err: err}
}

func GenerationFailure(message string, err error) error {
	return &Error{Kind: KindGenerationFailure, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var feedErr *Error
	if errors.As(err, &feedErr) {
		return feedErr.Kind
	}
	return KindUnknown
}
