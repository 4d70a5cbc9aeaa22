package scheduler

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
)

// roomSuffixBytes gives 80 random bits, 16 base32 characters
const roomSuffixBytes = 10

var roomEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// RoomIDGenerator builds room ids as <last 6 of meeting id>-<index>-<random suffix>
type RoomIDGenerator struct {
	Random io.Reader
}

// NewRoomIDGenerator returns a generator backed by crypto/rand
func NewRoomIDGenerator() *RoomIDGenerator {
	return &RoomIDGenerator{Random: rand.Reader}
}

// Generate returns a fresh room id for one class slot
func (g *RoomIDGenerator) Generate(meetingID string, index int) (string, error) {
	buf := make([]byte, roomSuffixBytes)
	if _, err := io.ReadFull(g.Random, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRoomIDGeneration, err)
	}
	short := strings.ReplaceAll(meetingID, "-", "")
	if len(short) > 6 {
		short = short[len(short)-6:]
	}
	return fmt.Sprintf("%s-%d-%s", short, index, roomEncoding.EncodeToString(buf)), nil
}
