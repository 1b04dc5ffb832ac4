// Package notify is the boundary to the UI render layer. The core calls
// these after state changes; how anything gets rendered is not its business.
package notify

import "log"

// Renderer is implemented by the status surface (sidebar, tray, whatever the
// deployment ships). All methods must be safe to call from any goroutine and
// must not block.
type Renderer interface {
	// RefreshStatus re-renders the status view from current state
	RefreshStatus()
	// Banner shows a transient inline message (provider errors, slow-downs)
	Banner(msg string)
	// Notice shows a blocking user-visible notification (fatal stops)
	Notice(msg string)
	// PendingApproval surfaces a drafted message awaiting a human decision
	PendingApproval(matchID, text string)
}

// LogRenderer is the default headless implementation
type LogRenderer struct{}

func (LogRenderer) RefreshStatus() {}

func (LogRenderer) Banner(msg string) {
	log.Printf("[ui] banner: %s", msg)
}

func (LogRenderer) Notice(msg string) {
	log.Printf("[ui] notice: %s", msg)
}

func (LogRenderer) PendingApproval(matchID, text string) {
	log.Printf("[ui] pending approval for %s: %q", matchID, text)
}
