package protocol

import (
	"fmt"
	"strings"
)

// The LED display speaks plain text frames rather than JSON: cell tuples
// (see board.EncodeChanges) plus these two control frames.
const (
	DisplayTurnOff        = "TURN_OFF"
	DisplayGameOverPrefix = "GAMEOVER"
)

// FormatGameOver is the final frame of a game, carrying the line count.
func FormatGameOver(lines int) string {
	return fmt.Sprintf("%s,%d", DisplayGameOverPrefix, lines)
}

func IsGameOverFrame(s string) bool {
	return strings.HasPrefix(s, DisplayGameOverPrefix)
}
