package hub

import (
	"regexp"
)

// MaxRoomLength is the longest room identifier accepted
const MaxRoomLength = 128

var validRoom = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var invalidRoomChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ValidRoom reports whether room may be used as a room identifier.
// Rooms are limited in length and charset so that adversarial input cannot
// grow the directory with arbitrary keys.
func ValidRoom(room string) bool {
	return len(room) <= MaxRoomLength && validRoom.MatchString(room)
}

// SanitizeRoom removes every character not permitted in a room identifier
// and truncates the result to MaxRoomLength
func SanitizeRoom(room string) string {
	safe := invalidRoomChars.ReplaceAllString(room, "")
	if len(safe) > MaxRoomLength {
		safe = safe[:MaxRoomLength]
	}
	return safe
}
