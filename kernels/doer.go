// ============================================================================
// KERNEL LAUNCH FRAMEWORK
// ============================================================================
//
// Every compute stage is a Doer: a small per-worker object holding its
// configuration, buffer views and scratch space. TryLaunch is the single
// contract with the worker loop — dequeue exactly one event, run the
// kernel for each tag, emit exactly one completion carrying the resulting
// tag list, and report whether any work was served.
//
// Workers own their Doer set exclusively; kernels share nothing but the
// buffer pools, whose cells the scheduler hands to one writer at a time.

package kernels

import (
	"main/equeue"
	"main/event"
)

// Doer is one stage's compute object.
type Doer interface {
	// TryLaunch serves at most one event from stageQ. Never blocks on an
	// empty queue; spins only to place the completion.
	TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool
}

// launch implements the dequeue-process-complete cycle shared by every
// kernel. fn maps an input tag to its completion tag (most stages return
// the tag unchanged; FFT translates packet references to coordinates).
func launch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken,
	fn func(tag uint64) uint64) bool {
	var ev event.Event
	if !stageQ.TryDequeue(&ev) {
		return false
	}
	comp := event.Event{Kind: ev.Kind, NumTags: ev.NumTags}
	for i := 0; i < int(ev.NumTags); i++ {
		comp.Tags[i] = fn(ev.Tags[i])
	}
	completeQ.EnqueueSpin(tok, &comp)
	return true
}
