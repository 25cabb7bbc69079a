package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/setuper/internal/engine"
)

// RecordingNotifier collects progress announcements.
type RecordingNotifier struct {
	mu       sync.Mutex
	progress []engine.Progress
}

// Notify implements engine.Notifier.
func (n *RecordingNotifier) Notify(p engine.Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, p)
}

// Progress returns a copy of the announcements in order.
func (n *RecordingNotifier) Progress() []engine.Progress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]engine.Progress(nil), n.progress...)
}

// Lines renders each announcement as "(i/n) event action".
func (n *RecordingNotifier) Lines() []string {
	progress := n.Progress()
	out := make([]string, len(progress))
	for i, p := range progress {
		out[i] = fmt.Sprintf("(%d/%d) %s %s", p.Index, p.Total, p.Event, p.Action)
	}
	return out
}
