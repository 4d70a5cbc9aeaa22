package types

import (
	"regexp"
	"strings"
	"unicode"
)

// Regex compiled once at package initialization
var (
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// MaxSignalBytes bounds an opaque negotiation blob
const MaxSignalBytes = 65536

// Validate checks the fields a requester supplies when creating a request.
// Status, payment and amounts are filled in by the server.
func (r *Request) Validate() error {
	if !IsValidUserID(r.FromUser) || !IsValidUserID(r.ToUser) {
		return ErrInvalidUserID
	}
	if r.FromUser == r.ToUser {
		return ErrSelfRequest
	}
	if !IsValidRequestType(r.Type) {
		return ErrInvalidRequestType
	}
	if !IsValidClassCount(r.Classes) {
		return ErrInvalidClassCount
	}
	if len(r.ProposedSlots) == 0 {
		return ErrNoProposedSlots
	}
	for _, slot := range r.ProposedSlots {
		if slot.IsZero() {
			return ErrInvalidProposedSlot
		}
	}
	return nil
}

// Validate ensures the user record is storable
func (u *User) Validate() error {
	if !IsValidUserID(u.ID) {
		return ErrInvalidUserID
	}
	if len(u.Name) < 1 || len(u.Name) > 200 {
		return ErrInvalidUserName
	}
	if u.Price4 < 0 || u.Price6 < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// PriceFor returns the package price for a class count; unknown counts cost nothing
func (u *User) PriceFor(classes int) float64 {
	switch classes {
	case 4:
		return u.Price4
	case 6:
		return u.Price6
	default:
		return 0
	}
}

// Validate checks a signal before relay. The blob itself is never inspected.
func (s *SignalPayload) Validate() error {
	if s.To == "" || len(s.Signal) == 0 || string(s.Signal) == "null" {
		return ErrInvalidPayload
	}
	if len(s.Signal) > MaxSignalBytes {
		return ErrSignalTooLarge
	}
	return nil
}

// IsValidUserID checks if a user ID meets format requirements.
// Auth subjects are usually UUIDs or hex object ids, both fit.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 64 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRequestType checks the closed set of request types
func IsValidRequestType(t RequestType) bool {
	return t == RequestTypePaid || t == RequestTypeExchange
}

// IsValidClassCount checks the closed set of package sizes
func IsValidClassCount(n int) bool {
	return n == 4 || n == 6
}

// IsValidRoomName rejects empty, oversized or whitespace-bearing room names
func IsValidRoomName(name string) bool {
	if len(name) < 1 || len(name) > 128 {
		return false
	}
	return strings.IndexFunc(name, unicode.IsSpace) < 0
}
