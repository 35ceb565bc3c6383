package hub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRoom(t *testing.T) {

	valid := []string{"demo", "room-1", "Room_2", EventsRoom, strings.Repeat("a", MaxRoomLength)}

	for _, room := range valid {
		assert.True(t, ValidRoom(room), room)
	}

	invalid := []string{"", "a/b", "a b", "ü", "../x", "demo?x=1", strings.Repeat("a", MaxRoomLength+1)}

	for _, room := range invalid {
		assert.False(t, ValidRoom(room), room)
	}
}

func TestSanitizeRoom(t *testing.T) {

	assert.Equal(t, "demo", SanitizeRoom("demo"))
	assert.Equal(t, "demo1", SanitizeRoom("de mo/1"))
	assert.Equal(t, "a-b_cscript", SanitizeRoom("a-b_c<script>"))
	assert.Equal(t, "", SanitizeRoom("../"))
	assert.Len(t, SanitizeRoom(strings.Repeat("x", 300)), MaxRoomLength)
	assert.True(t, ValidRoom(SanitizeRoom("live stream #1")))
}
