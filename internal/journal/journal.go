// Package journal implements the structured JSON session log (§6.5).
//
// The original C implementation streams the document straight to disk
// with fprintf, trimming the perpetual trailing comma with a
// seek-then-peek dance (src/log.c's removeTrailingCommaFromJson). Go's
// encoding/json gives us a cleaner equivalent: accumulate the document
// as an ordinary struct tree behind the log lock, then marshal it once
// at teardown. No third-party JSON/streaming library appears anywhere
// in the retrieval pack to justify anything fancier than the standard
// library's json.Marshal here.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aemnet/aemnode/internal/contact"
	"github.com/aemnet/aemnode/internal/identity"
	"github.com/aemnet/aemnode/internal/logging"
	"github.com/aemnet/aemnode/internal/metrics"
	"github.com/aemnet/aemnode/internal/store"
)

const timeLayout = "2006-01-02T15:04:05Z"

func ftime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// MessageRecord is one logged message action within an event's
// messages[] array (§6.5).
type MessageRecord struct {
	SavedAt                string `json:"saved_at"`
	Action                 string `json:"action"`
	Sender                 string `json:"sender"`
	Recipient              string `json:"recipient"`
	CreatedAt              string `json:"created_at"`
	Body                   string `json:"body"`
	Transmitted            string `json:"transmitted"`
	TransmittedDevices     string `json:"transmitted_devices"`
	TransmittedToRecipient string `json:"transmitted_to_recipient"`
}

// DatetimeRecord is the "datetime" action logged by a time-sync event.
type DatetimeRecord struct {
	SavedAt     string `json:"saved_at"`
	Action      string `json:"action"`
	PreviousNow string `json:"previous_now"`
	NewNow      string `json:"new_now"`
}

// Event is one session-scoped occurrence (connection, production, or
// datetime) per §6.5.
type Event struct {
	OccuredAt string        `json:"occured_at"`
	Type      string        `json:"type"`
	Server    string        `json:"server"`
	Client    string        `json:"client"`
	Messages  []interface{} `json:"messages"`
	Duration  string        `json:"duration"`

	start time.Time
}

// ConnectionWindow is one device's logged (start,end,duration) entry.
type ConnectionWindow struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration string `json:"duration"`
}

// DeviceHistory is one peer's connection history (§6.5 devices[]).
type DeviceHistory struct {
	AEM             string             `json:"aem"`
	Connections     []ConnectionWindow `json:"connections"`
	AverageDuration string             `json:"average_duration"`
}

// BufferMessage and InboxMessage mirror the final store dumps (§6.5).
type BufferMessage struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	CreatedAt string `json:"created_at"`
	Body      string `json:"body"`
}

type InboxMessageRecord struct {
	Sender      string `json:"sender"`
	CreatedAt   string `json:"created_at"`
	SavedAt     string `json:"saved_at"`
	Body        string `json:"body"`
	FirstSender string `json:"first_sender"`
}

// StatsRecord is §6.5's stats{} object.
type StatsRecord struct {
	Produced               string `json:"produced"`
	Received               string `json:"received"`
	ReceivedForMe          string `json:"received_for_me"`
	Transmitted            string `json:"transmitted"`
	TransmittedToRecipient string `json:"transmitted_to_recipient"`
	ProducedDelayAvg       string `json:"producedDelayAvg"`
}

// Document is the full session-scoped log (§6.5).
type Document struct {
	Start             string          `json:"start"`
	ClientAEM         string          `json:"client_aem"`
	RequestedDuration string          `json:"requested_duration"`
	Events            []*Event        `json:"events"`
	Duration          string          `json:"duration"`
	End               string          `json:"end"`
	Stats             StatsRecord     `json:"stats"`
	Devices           []DeviceHistory `json:"devices"`
	BufferMessages    []BufferMessage `json:"buffer_messages"`
	InboxMessages     []InboxMessageRecord `json:"inbox_messages"`
}

// Journal accumulates one session's log document behind the log lock
// (§5). It never blocks the session's network IO: each method takes
// the lock only for the duration of the in-memory append (see
// DESIGN.md for why this departs from the original's session-wide
// lock hold).
type Journal struct {
	mutex   *sync.Mutex
	eventMu *sync.Mutex // the producer's / session start-stop "log event" mutex (§4.4, §4.3)

	startedAt         time.Time
	clientAEM         identity.AEM
	requestedDuration time.Duration
	alsoStdout        bool

	events []*Event
	log    logging.Logger
}

// New builds a Journal for a session about to start.
func New(clientAEM identity.AEM, requestedDuration time.Duration, alsoStdout bool, log logging.Logger) *Journal {
	return &Journal{
		mutex:             &sync.Mutex{},
		eventMu:           &sync.Mutex{},
		startedAt:         time.Now(),
		clientAEM:         clientAEM,
		requestedDuration: requestedDuration,
		alsoStdout:        alsoStdout,
		log:               log,
	}
}

// WithEventLock runs f holding the log-event mutex: the single
// critical section the producer worker and a session's start/stop
// bracket serialize on (§4.4, §5).
func (j *Journal) WithEventLock(f func()) {
	j.eventMu.Lock()
	defer j.eventMu.Unlock()
	f()
}

// StartEvent begins a new event and appends it to the document.
func (j *Journal) StartEvent(typ, server, client string) *Event {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	e := &Event{
		OccuredAt: ftime(time.Now()),
		Type:      typ,
		Server:    server,
		Client:    client,
		start:     time.Now(),
	}
	j.events = append(j.events, e)
	return e
}

// FinishEvent closes out an event's duration.
func (j *Journal) FinishEvent(e *Event) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	e.Duration = fmt.Sprintf("%.3f ms", float64(time.Since(e.start))/float64(time.Millisecond))
}

func messageRecord(action string, m store.Message, directoryLen int) MessageRecord {
	devices := make([]byte, directoryLen)
	for i := range devices {
		if i < len(m.TransmittedDevices) && m.TransmittedDevices[i] {
			devices[i] = '1'
		} else {
			devices[i] = '0'
		}
	}
	return MessageRecord{
		SavedAt:                ftime(time.Now()),
		Action:                 action,
		Sender:                 m.Sender.String(),
		Recipient:              m.Recipient.String(),
		CreatedAt:              fmt.Sprintf("%d", m.CreatedAt),
		Body:                   string(m.Body),
		Transmitted:            boolWord(m.Transmitted),
		TransmittedDevices:     string(devices),
		TransmittedToRecipient: boolWord(m.TransmittedToRecipient),
	}
}

func boolWord(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// LogMessage appends a "received"/"transmitted"/"produced" message
// action to e's messages[] array.
func (j *Journal) LogMessage(e *Event, action string, m store.Message, directoryLen int) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	e.Messages = append(e.Messages, messageRecord(action, m, directoryLen))
	if j.alsoStdout {
		fmt.Fprintf(os.Stdout, "%s: sender=%s recipient=%s created_at=%d\n", action, m.Sender, m.Recipient, m.CreatedAt)
	}
}

// LogDatetime appends a datetime-sync action to e's messages[] array.
func (j *Journal) LogDatetime(e *Event, previousNow, newNow uint64) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	e.Messages = append(e.Messages, DatetimeRecord{
		SavedAt:     ftime(time.Now()),
		Action:      "datetime",
		PreviousNow: fmt.Sprintf("%d", previousNow),
		NewNow:      fmt.Sprintf("%d", newNow),
	})
}

// Finalize builds the complete Document for writing at teardown
// (§6.5).
func (j *Journal) Finalize(directory *identity.Directory, stats metrics.Snapshot, history []contact.PeerHistory, messages []store.Message, inbox []store.InboxMessage) Document {
	j.mutex.Lock()
	events := append([]*Event(nil), j.events...)
	j.mutex.Unlock()

	devices := make([]DeviceHistory, 0, len(history))
	for _, h := range history {
		conns := make([]ConnectionWindow, 0, len(h.Windows))
		for _, w := range h.Windows {
			conns = append(conns, ConnectionWindow{
				Start:    w.Start.Format("15:04:05.000"),
				End:      w.End.Format("15:04:05.000"),
				Duration: fmt.Sprintf("%.2fms", w.DurationMillis()),
			})
		}
		devices = append(devices, DeviceHistory{
			AEM:             directory.ByIndex(h.Index).String(),
			Connections:     conns,
			AverageDuration: fmt.Sprintf("%.2fms", h.AverageDuration),
		})
	}

	bufferMessages := make([]BufferMessage, 0, len(messages))
	for _, m := range messages {
		bufferMessages = append(bufferMessages, BufferMessage{
			Sender:    m.Sender.String(),
			Recipient: m.Recipient.String(),
			CreatedAt: fmt.Sprintf("%d", m.CreatedAt),
			Body:      string(m.Body),
		})
	}

	inboxMessages := make([]InboxMessageRecord, 0, len(inbox))
	for _, m := range inbox {
		inboxMessages = append(inboxMessages, InboxMessageRecord{
			Sender:      m.Sender.String(),
			CreatedAt:   fmt.Sprintf("%d", m.CreatedAt),
			SavedAt:     fmt.Sprintf("%d", m.SavedAt),
			Body:        string(m.Body),
			FirstSender: m.FirstSender.String(),
		})
	}

	now := time.Now()
	return Document{
		Start:             ftime(j.startedAt),
		ClientAEM:         j.clientAEM.String(),
		RequestedDuration: fmt.Sprintf("%d secs", int(j.requestedDuration.Seconds())),
		Events:            events,
		Duration:          fmt.Sprintf("%.3f s", now.Sub(j.startedAt).Seconds()),
		End:               ftime(now),
		Stats: StatsRecord{
			Produced:               fmt.Sprintf("%d", stats.Produced),
			Received:               fmt.Sprintf("%d", stats.Received),
			ReceivedForMe:          fmt.Sprintf("%d", stats.ReceivedForMe),
			Transmitted:            fmt.Sprintf("%d", stats.Transmitted),
			TransmittedToRecipient: fmt.Sprintf("%d", stats.TransmittedToRecipient),
			ProducedDelayAvg:       fmt.Sprintf("%.2fmin", stats.ProducedDelayAvg()/60),
		},
		Devices:        devices,
		BufferMessages: bufferMessages,
		InboxMessages:  inboxMessages,
	}
}

// WriteFile marshals doc to path. Per §7, log write failures are
// best-effort: WriteFile prints the error to stderr and returns, so the
// session is never interrupted by them.
func (j *Journal) WriteFile(path string, doc Document) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal: failed marshalling session document: %v\n", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "journal: failed writing %s: %v\n", path, err)
	}
}

// Fatal flushes whatever partial document exists to path, then
// terminates the process. Reserved for invariant violations (§7).
func (j *Journal) Fatal(path string, directory *identity.Directory, stats metrics.Snapshot, history []contact.PeerHistory, messages []store.Message, inbox []store.InboxMessage, msg string) {
	doc := j.Finalize(directory, stats, history, messages, inbox)
	j.WriteFile(path, doc)
	j.log.Fatal(msg)
}
