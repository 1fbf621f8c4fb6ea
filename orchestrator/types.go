package orchestrator

import (
	"errors"
	"fmt"

	"github.com/maastricht-university/meeting-transcriber/speaker"
	"github.com/maastricht-university/meeting-transcriber/store"
)

// State is a step of a meeting run. A run only moves forward, one state
// at a time.
type State int

const (
	Pending State = iota
	LoadedAudio
	Diarised
	SpeakerGroupsBuilt
	SpeakersMatched
	Transcribed
	Serialised
	Persisted
)

var stateNames = [...]string{
	Pending:            "PENDING",
	LoadedAudio:        "LOADED_AUDIO",
	Diarised:           "DIARISED",
	SpeakerGroupsBuilt: "SPEAKER_GROUPS_BUILT",
	SpeakersMatched:    "SPEAKERS_MATCHED",
	Transcribed:        "TRANSCRIBED",
	Serialised:         "SERIALISED",
	Persisted:          "PERSISTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ErrPrecondition marks a run that stopped before doing any work: the
// meeting, its audio record, the audio file or its attendees are missing.
var ErrPrecondition = errors.New("precondition failed")

// StageError is a fatal failure. State is the state the run failed to
// reach; nothing was persisted.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result describes a persisted run.
type Result struct {
	Record   store.RawFile
	Path     string
	Replaced []store.RawFile
	Speakers []speaker.Resolution
	Entries  int
}
