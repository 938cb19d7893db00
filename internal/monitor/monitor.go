// Package monitor holds the consumer-side view of watch activity: event rows,
// the entries counter and the status labels. Messages from a watch session are
// applied by the feed consumer goroutine; readers take snapshots.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/listenupapp/dirwatch/internal/browser"
	"github.com/listenupapp/dirwatch/internal/watcher"
)

// Status labels.
const (
	LabelListening    = "Listening..."
	LabelNotListening = "Not listening..."
	LabelDeleted      = "Listening directory was deleted!"
	LabelMoved        = "Listening directory was moved!"
)

// Row is one displayed change record.
type Row struct {
	ReceivedAt  time.Time `json:"received_at" doc:"When the batch carrying this record was applied"`
	Name        *string   `json:"name,omitempty" doc:"Entry name relative to the watched directory"`
	SessionID   string    `json:"session_id" doc:"Watch session that produced the record"`
	Label       string    `json:"label" doc:"Kernel flags followed by the affected path"`
	Icon        string    `json:"icon" doc:"Icon name for the entry"`
	Kinds       []string  `json:"kinds" doc:"Change kinds carried by the record"`
	Seq         uint64    `json:"seq" doc:"Monotonic sequence number"`
	Cookie      uint32    `json:"cookie,omitempty" doc:"Move cookie pairing moved_from and moved_to"`
	IsDirectory bool      `json:"is_directory" doc:"Whether the entry is a directory"`
	Overflow    bool      `json:"overflow,omitempty" doc:"Kernel event queue overflowed; events were lost"`
}

// Status is a snapshot of the listening state and counters.
type Status struct {
	Target         string `json:"target,omitempty" doc:"Directory being watched, or last watched"`
	SessionID      string `json:"session_id,omitempty" doc:"Current or last session"`
	ListeningLabel string `json:"listening_label" doc:"Listening status text"`
	Error          string `json:"error,omitempty" doc:"Error label; empty when hidden"`
	EntriesLabel   string `json:"entries_label" doc:"Entries counter with thousands separators"`
	Entries        int64  `json:"entries" doc:"Records received since the last clear"`
	LastSeq        uint64 `json:"last_seq" doc:"Sequence number of the newest row"`
	Listening      bool   `json:"listening" doc:"Whether a session is watching"`
}

// Publisher receives every change to the view.
type Publisher interface {
	Publish(u Update)
}

// Options configures a Monitor.
type Options struct {
	// MaxRows caps retained rows; the oldest are dropped first. Zero keeps all.
	MaxRows int
	// Now returns the receive time stamped on rows. Defaults to time.Now.
	Now func() time.Time
}

// Monitor applies watch messages to the view state.
type Monitor struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	// pubMu is taken before mu and held until the update is published.
	pubMu sync.Mutex

	mu         sync.RWMutex
	rows       []Row
	seq        uint64
	entries    int64
	maxRows    int
	listening  bool
	target     string
	sessionID  string
	errLabel   string
	currentDir string
}

// New creates a monitor. publisher may be nil.
func New(opts Options, publisher Publisher, logger *slog.Logger) *Monitor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		publisher: publisher,
		logger:    logger.With("component", "monitor"),
		now:       now,
		maxRows:   opts.MaxRows,
	}
}

// Apply updates the view with one session message. It must only be called
// from the feed consumer.
func (m *Monitor) Apply(msg watcher.Message) {
	switch msg := msg.(type) {
	case watcher.Batch:
		m.applyBatch(msg)
	case watcher.EnteredWatching:
		m.update(func() Update {
			m.listening = true
			m.target = msg.Target
			m.sessionID = msg.SessionID
			m.errLabel = ""
			return Update{Type: UpdateStatus, Status: m.statusLocked()}
		})
	case watcher.LeftWatching:
		m.update(func() Update {
			m.listening = false
			switch msg.Reason.Cause {
			case watcher.CauseTargetVanished:
				m.errLabel = LabelDeleted
			case watcher.CauseTargetMoved:
				m.errLabel = LabelMoved
			case watcher.CauseUserRequested, watcher.CauseKernelError, watcher.CauseSetupError:
			}
			return Update{Type: UpdateStatus, Status: m.statusLocked()}
		})
	case watcher.FatalError:
		m.update(func() Update {
			m.errLabel = msg.Message
			if msg.Cause == watcher.CauseSetupError {
				m.target = msg.Target
				m.sessionID = msg.SessionID
			}
			return Update{Type: UpdateStatus, Status: m.statusLocked()}
		})
	default:
		m.logger.Warn("unknown message", "type", fmt.Sprintf("%T", msg))
	}
}

func (m *Monitor) applyBatch(b watcher.Batch) {
	received := m.now()

	m.update(func() Update {
		added := make([]Row, 0, len(b.Records))
		for _, rec := range b.Records {
			if rec.Overflow {
				m.logger.Warn("kernel event queue overflowed", "session_id", b.SessionID)
			}
			m.seq++
			added = append(added, newRow(m.seq, b.Origin, rec, received))
		}
		m.rows = append(m.rows, added...)
		// Counter and rows change under the same lock so readers never see them disagree.
		m.entries += int64(b.Size)
		if m.maxRows > 0 && len(m.rows) > m.maxRows {
			m.rows = append([]Row(nil), m.rows[len(m.rows)-m.maxRows:]...)
		}
		return Update{Type: UpdateBatch, Rows: added, Status: m.statusLocked()}
	})
}

func newRow(seq uint64, origin watcher.Origin, rec watcher.ChangeRecord, received time.Time) Row {
	kinds := make([]string, 0, len(rec.Kinds))
	for _, k := range rec.Kinds {
		kinds = append(kinds, k.String())
	}

	icon := browser.IconGeneric
	if rec.IsDirectory {
		icon = browser.IconFolder
	}

	label := rec.Label(origin.Target)
	if rec.Overflow {
		label = "IN_Q_OVERFLOW: " + label
	}

	return Row{
		Seq:         seq,
		SessionID:   origin.SessionID,
		Label:       label,
		Icon:        icon,
		Kinds:       kinds,
		Name:        rec.Name,
		Cookie:      rec.Cookie,
		IsDirectory: rec.IsDirectory,
		Overflow:    rec.Overflow,
		ReceivedAt:  received,
	}
}

// Clear drops every row, resets the counter and hides the error label.
// Sequence numbers keep increasing.
func (m *Monitor) Clear() {
	m.update(func() Update {
		m.rows = nil
		m.entries = 0
		m.errLabel = ""
		return Update{Type: UpdateCleared, Status: m.statusLocked()}
	})
}

// Rows returns the rows with a sequence number greater than since.
func (m *Monitor) Rows(since uint64) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Row, 0)
	for _, r := range m.rows {
		if r.Seq > since {
			out = append(out, r)
		}
	}
	return out
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

// SetCurrentDir records the directory last browsed.
func (m *Monitor) SetCurrentDir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentDir = path
}

// CurrentDir returns the directory last browsed.
func (m *Monitor) CurrentDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentDir
}

func (m *Monitor) statusLocked() Status {
	s := Status{
		Listening:      m.listening,
		ListeningLabel: LabelNotListening,
		Target:         m.target,
		SessionID:      m.sessionID,
		Error:          m.errLabel,
		Entries:        m.entries,
		EntriesLabel:   humanize.Comma(m.entries),
		LastSeq:        m.seq,
	}
	if m.listening {
		s.ListeningLabel = LabelListening
	}
	return s
}

// update runs fn under the state lock and publishes its result. Publishes
// happen in the same order as the changes they describe.
func (m *Monitor) update(fn func() Update) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	u := fn()
	m.mu.Unlock()

	m.publish(u)
}

func (m *Monitor) publish(u Update) {
	if m.publisher == nil {
		return
	}
	u.Timestamp = m.now()
	m.publisher.Publish(u)
}
