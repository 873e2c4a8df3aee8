package session

import (
	"time"

	"github.com/codemusic/safetyscribe/internal/capture"
	"github.com/codemusic/safetyscribe/internal/uplink"
)

// event is a completion posted back to the orchestrator loop by a worker
// goroutine or a deferred timer. Button events arrive on their own channel.
type event interface{ isEvent() }

// evConnected reports a successful endpoint reachability check.
type evConnected struct{}

// evUploadDone carries the upload outcome together with the recording it
// belongs to, so the journal entry can be written from the loop.
type evUploadDone struct {
	rec   *recording
	bytes int64
	in    *uplink.Instruction
	err   error
}

// evFetchDone reports the response audio landing on disk.
type evFetchDone struct {
	path string
	err  error
}

// evPlaybackDone reports the player exiting.
type evPlaybackDone struct {
	err error
}

// evLinger fires after a transient LED pattern has been shown long enough.
// Stale tokens are ignored.
type evLinger struct {
	token uint64
}

func (evConnected) isEvent()    {}
func (evUploadDone) isEvent()   {}
func (evFetchDone) isEvent()    {}
func (evPlaybackDone) isEvent() {}
func (evLinger) isEvent()       {}

// recording tracks one capture attempt from start through its journal entry.
type recording struct {
	id        string
	handle    *capture.Handle
	startedAt time.Time
}
