package tracking

import "sync"

// BackgroundTask models the OS-scheduled long-running location task. The
// current booking id is process-wide state: set only by the coordinator's
// Start, cleared only by Stop, and read by exactly one task instance.
// Registration is idempotent; re-registering while registered swaps the
// booking instead of creating a duplicate registration.
type BackgroundTask struct {
	mu         sync.Mutex
	registered bool
	bookingID  string
}

func NewBackgroundTask() *BackgroundTask {
	return &BackgroundTask{}
}

func (t *BackgroundTask) Register(bookingID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registered = true
	t.bookingID = bookingID
	return nil
}

func (t *BackgroundTask) Unregister() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registered = false
	t.bookingID = ""
	return nil
}

// Current reports the booking the task would stream for, if registered.
func (t *BackgroundTask) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bookingID, t.registered
}
