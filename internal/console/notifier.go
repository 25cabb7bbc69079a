package console

import (
	"fmt"

	"github.com/roach88/setuper/internal/engine"
)

// ProgressNotifier prints one line per started action:
//
//	[2/5] Event: setup Action: write
type ProgressNotifier struct {
	IO IO
}

// Notify implements engine.Notifier.
func (n ProgressNotifier) Notify(p engine.Progress) {
	n.IO.Write(fmt.Sprintf("[%s/%s] Event: %s Action: %s",
		infoStyle.Render(fmt.Sprint(p.Index)),
		infoStyle.Render(fmt.Sprint(p.Total)),
		infoStyle.Render(p.Event),
		infoStyle.Render(p.Action),
	), Normal)
}
