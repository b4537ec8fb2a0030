package session

import (
	"fmt"

	"stackfall.dev/internal/protocol"
	"stackfall.dev/internal/sim/board"
)

// Intent is one discrete player input.
type Intent uint8

const (
	IntentLeft Intent = iota + 1
	IntentRight
	IntentRotate
	IntentDrop
)

func (i Intent) String() string {
	switch i {
	case IntentLeft:
		return protocol.IntentLeft
	case IntentRight:
		return protocol.IntentRight
	case IntentRotate:
		return protocol.IntentRotate
	case IntentDrop:
		return protocol.IntentDrop
	default:
		return fmt.Sprintf("Intent(%d)", uint8(i))
	}
}

// ParseIntent maps a wire intent name to an Intent.
func ParseIntent(s string) (Intent, error) {
	switch s {
	case protocol.IntentLeft:
		return IntentLeft, nil
	case protocol.IntentRight:
		return IntentRight, nil
	case protocol.IntentRotate:
		return IntentRotate, nil
	case protocol.IntentDrop:
		return IntentDrop, nil
	default:
		return 0, fmt.Errorf("unknown intent %q", s)
	}
}

func applyIntent(b *board.Board, in Intent) bool {
	switch in {
	case IntentLeft:
		return b.MoveLeft()
	case IntentRight:
		return b.MoveRight()
	case IntentRotate:
		return b.Rotate()
	case IntentDrop:
		return b.HardDrop()
	default:
		return false
	}
}
