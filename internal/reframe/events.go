package reframe

import "github.com/zsiec/reframer/internal/media"

// HandleEvent processes a control event sent from downstream on the
// output paired with in, and forwards it upstream. Play requests on time
// ranges are moved to the range start minus the seek safety margin.
func (r *Reframer) HandleEvent(in Input, ev media.Event) error {
	st := r.lookup(in)
	if st == nil {
		return ErrUnknownInput
	}
	switch ev.Type {
	case media.EventPlay:
		if r.state != stateNone && r.win.startFrame == 0 {
			ev.Start = max(r.win.start.Seconds()-r.opts.SeekSafe, 0)
		}
		st.inEOS = false
		st.playing = true
		st.eosSignaled = false
		if r.eos == eosDone {
			r.eos = eosNone
		}
	case media.EventStop:
		st.playing = false
		// Queued lookahead belongs to a position that no longer exists.
		st.queue.clear()
		st.split.clear()
		st.start = startPending
	}
	st.in.SendEvent(ev)
	return nil
}
