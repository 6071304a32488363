package utils

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

var aliasAdjectives = []string{
	"Amber", "Brisk", "Calm", "Dusky", "Eager", "Fuzzy", "Gentle", "Hazy",
	"Idle", "Jolly", "Keen", "Lunar", "Misty", "Nimble", "Opal", "Quiet",
}

var aliasNouns = []string{
	"Otter", "Falcon", "Maple", "Comet", "Lynx", "Harbor", "Willow", "Pebble",
	"Heron", "Ember", "Fern", "Koala", "Meadow", "Raven", "Tide", "Sparrow",
}

// Alias returns the stable pseudonym userID carries inside one session.
// Aliases differ between sessions, so they cannot be linked to each other.
func Alias(secret []byte, sessionID, userID string) string {
	h, err := blake2b.New256(secret)
	if err != nil {
		// keys longer than 64 bytes are rejected; fall back to hashing the key
		sum := blake2b.Sum256(secret)
		h, _ = blake2b.New256(sum[:])
	}
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	sum := h.Sum(nil)

	adj := aliasAdjectives[int(sum[0])%len(aliasAdjectives)]
	noun := aliasNouns[int(sum[1])%len(aliasNouns)]
	return fmt.Sprintf("%s %s %d", adj, noun, binary.BigEndian.Uint16(sum[2:4])%1000)
}
