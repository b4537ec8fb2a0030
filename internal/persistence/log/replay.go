package log

import (
	"errors"
	"fmt"
	"io"

	"stackfall.dev/internal/sim/session"
)

// ReplayReport summarizes a verified game log.
type ReplayReport struct {
	Header  GameHeader
	Checked uint64
	Lines   int
	Over    bool
}

// Replay rebuilds the game recorded at path tick by tick and compares every
// digest. toTick, when non-zero, stops after that tick.
func Replay(path string, toTick uint64) (ReplayReport, error) {
	g, err := OpenGameLog(path)
	if err != nil {
		return ReplayReport{}, err
	}
	defer g.Close()

	rep := ReplayReport{Header: g.Header}
	s := session.New(session.Config{
		ID:   g.Header.GameID,
		Rows: g.Header.Rows,
		Cols: g.Header.Cols,
		Seed: g.Header.Seed,
	}, nil)

	for {
		entry, err := g.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, err
		}
		if toTick != 0 && entry.Tick > toTick {
			break
		}
		intents := make([]session.Intent, 0, len(entry.Intents))
		for _, name := range entry.Intents {
			in, err := session.ParseIntent(name)
			if err != nil {
				return rep, fmt.Errorf("tick %d: %w", entry.Tick, err)
			}
			intents = append(intents, in)
		}
		tick, digest := s.StepOnce(intents)
		if tick != entry.Tick {
			return rep, fmt.Errorf("tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if digest != entry.Digest {
			return rep, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
		}
		rep.Checked++
	}
	m := s.Metrics()
	rep.Lines = m.Lines
	rep.Over = m.Over
	return rep, nil
}
