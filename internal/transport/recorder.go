// internal/transport/recorder.go
package transport

import "sync"

// Recorder is a Sender that keeps payloads in memory instead of sending
// them. Each send settles immediately through its Poster.
type Recorder struct {
	mu       sync.Mutex
	payloads []*Payload
	post     Poster
	onSend   func(*Payload)
}

// NewRecorder returns a Recorder that completes sends through post, or
// immediately when post is nil.
func NewRecorder(post Poster) *Recorder {
	if post == nil {
		post = Immediate
	}
	return &Recorder{post: post}
}

// OnSend registers a hook that observes every recorded payload.
func (r *Recorder) OnSend(fn func(*Payload)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSend = fn
}

func (r *Recorder) Send(p *Payload, done func()) {
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	hook := r.onSend
	r.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	if done != nil {
		r.post(once(done))
	}
}

// Payloads returns the recorded payloads in send order.
func (r *Recorder) Payloads() []*Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Payload(nil), r.payloads...)
}

// Names returns the event names of the recorded payloads in send order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.payloads))
	for i, p := range r.payloads {
		names[i] = p.Name
	}
	return names
}
