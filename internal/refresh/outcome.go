package refresh

import (
	"fmt"
	"net/http"
)

// Kind identifies the result of a single CheckFeed call.
type Kind int

// Outcome kinds.
const (
	KindInvalid Kind = iota + 1
	KindTooSoon
	KindUpdated
	KindMoved
	KindNotModified
	KindGone
	KindNotFound
	KindUnhandled
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindTooSoon:
		return "too_soon"
	case KindUpdated:
		return "updated"
	case KindMoved:
		return "moved"
	case KindNotModified:
		return "not_modified"
	case KindGone:
		return "gone"
	case KindNotFound:
		return "not_found"
	case KindUnhandled:
		return "unhandled"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome describes what CheckFeed did with a record.
type Outcome struct {
	Kind Kind
	// Unread is the recorded count for TooSoon and NotModified.
	Unread int
	// Delta is the number of new entries for Updated.
	Delta int
	// NewURL is the feed's new address for Moved.
	NewURL string
	// Status is the HTTP status of attempted fetches.
	Status int
	// Malformed is set when an Updated document had undated entries.
	Malformed bool
}

// Attempted reports whether the origin was contacted (or contact was tried),
// which is when the caller advances the record's last check.
func (o Outcome) Attempted() bool {
	return o.Kind != KindTooSoon && o.Kind != KindInvalid
}

// Err returns ErrInvalidFeed for an invalid record and nil otherwise.
func (o Outcome) Err() error {
	if o.Kind == KindInvalid {
		return ErrInvalidFeed
	}
	return nil
}

// Class is the closed set of response categories a status maps to.
type Class int

// Response classes.
const (
	ClassSuccess Class = iota + 1
	ClassRedirect
	ClassNotModified
	ClassGone
	ClassNotFound
	ClassUnhandled
)

// Classify maps an HTTP status onto its Class. Every status has exactly one.
func Classify(status int) Class {
	switch status {
	case http.StatusOK, http.StatusFound:
		return ClassSuccess
	case http.StatusMovedPermanently, http.StatusPermanentRedirect:
		return ClassRedirect
	case http.StatusNotModified:
		return ClassNotModified
	case http.StatusGone:
		return ClassGone
	case http.StatusNotFound:
		return ClassNotFound
	default:
		return ClassUnhandled
	}
}
