package session

import (
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/models"
)

// NewImage describes an image about to enter the working set
type NewImage struct {
	Name        string
	Origin      models.Origin
	ContentType string
	Data        []byte
	// PreviewURL is used as-is when set; otherwise the session derives one
	PreviewURL string
}

// Entry is a working-set item as handed to the export path
type Entry struct {
	models.SourceImage
	Data    []byte
	Decoded image.Image
}

// Session is a composition session: the ordered working set plus the active
// layout mode. All mutations go through its methods, one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	entries    []*Entry
	layout     models.LayoutMode
	lastAccess time.Time
	previewFmt string
	now        func() time.Time
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPreviewURL sets the format used to derive preview URLs; it receives
// the session id and image id.
func WithPreviewURL(format string) Option {
	return func(s *Session) { s.previewFmt = format }
}

// New starts an empty session in vertical mode
func New(opts ...Option) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		layout:     models.LayoutVertical,
		previewFmt: "/api/sessions/%s/images/%s/preview",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CreatedAt = s.now()
	s.lastAccess = s.CreatedAt
	return s
}

func (s *Session) touch() {
	s.lastAccess = s.now()
}

// LastAccess reports when the session was last read or mutated
func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

func (s *Session) index(id string) int {
	return slices.IndexFunc(s.entries, func(e *Entry) bool { return e.ID == id })
}

// Add appends images in arrival order and returns their new identities.
// Every entry starts Pending until its decode resolves.
func (s *Session) Add(items ...NewImage) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := uuid.NewString()
		preview := item.PreviewURL
		if preview == "" {
			preview = fmt.Sprintf(s.previewFmt, s.ID, id)
		}

		s.entries = append(s.entries, &Entry{
			SourceImage: models.SourceImage{
				ID:          id,
				Name:        item.Name,
				Origin:      item.Origin,
				ContentType: item.ContentType,
				Size:        len(item.Data),
				PreviewURL:  preview,
				Status:      models.Pending{},
				AddedAt:     s.now(),
			},
			Data: item.Data,
		})
		ids = append(ids, id)
	}

	return ids
}

// MarkDecoding flags an entry as being decoded; false if the id is gone
func (s *Session) MarkDecoding(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	s.entries[i].Status = models.Decoding{}
	return true
}

// Resolve attaches a decoded bitmap to its identity. It reports false when
// the entry was removed while decoding, in which case the result is dropped.
func (s *Session) Resolve(id string, decoded *compose.Decoded) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}

	e := s.entries[i]
	e.Decoded = decoded.Image
	e.Status = models.Ready{Width: decoded.Width, Height: decoded.Height}
	return true
}

// Fail drops an entry whose decode failed; images that cannot be decoded
// never stay in the working set.
func (s *Session) Fail(id string) bool {
	return s.Remove(id)
}

// Remove deletes an entry by identity and releases its bitmap. Removing an
// absent identity is a no-op.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	i := s.index(id)
	if i < 0 {
		return false
	}

	s.entries[i].Decoded = nil
	s.entries[i].Data = nil
	s.entries = slices.Delete(s.entries, i, i+1)
	return true
}

// MoveBefore relocates id so it immediately precedes targetID
func (s *Session) MoveBefore(id, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if id == targetID {
		return nil
	}

	from, to := s.index(id), s.index(targetID)
	if from < 0 || to < 0 {
		return &compose.PreconditionError{Reason: fmt.Sprintf("cannot move %s before %s: image not in session", id, targetID)}
	}

	e := s.entries[from]
	s.entries = slices.Delete(s.entries, from, from+1)
	to = s.index(targetID)
	s.entries = slices.Insert(s.entries, to, e)
	return nil
}

// Move relocates id to the current position of targetID, shifting the
// entries in between. This is what a drag-and-drop onto another tile does.
func (s *Session) Move(id, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if id == targetID {
		return nil
	}

	from, to := s.index(id), s.index(targetID)
	if from < 0 || to < 0 {
		return &compose.PreconditionError{Reason: fmt.Sprintf("cannot move %s onto %s: image not in session", id, targetID)}
	}

	e := s.entries[from]
	s.entries = slices.Delete(s.entries, from, from+1)
	s.entries = slices.Insert(s.entries, to, e)
	return nil
}

// SetLayout changes how the working set is interpreted at export time
func (s *Session) SetLayout(mode models.LayoutMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.layout = mode
}

func (s *Session) Layout() models.LayoutMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}

// Reset empties the working set
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	for _, e := range s.entries {
		e.Decoded = nil
		e.Data = nil
	}
	s.entries = nil
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Images returns a snapshot of the working set in order
func (s *Session) Images() []models.SourceImage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SourceImage, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.SourceImage
	}
	return out
}

// Image looks up a single entry, including its raw bytes
func (s *Session) Image(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(id)
	if i < 0 {
		return Entry{}, false
	}
	return *s.entries[i], true
}

// Ready returns the working set for export along with the active layout.
// Every entry must have finished decoding.
func (s *Session) Ready() ([]Entry, models.LayoutMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.entries) == 0 {
		return nil, s.layout, &compose.PreconditionError{Reason: "add at least one image before exporting"}
	}

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		if _, ok := e.Status.(models.Ready); !ok || e.Decoded == nil {
			return nil, s.layout, &compose.PreconditionError{Reason: fmt.Sprintf("image %s is still %s", e.Name, e.Status.State())}
		}
		out[i] = *e
	}
	return out, s.layout, nil
}

// Snapshot is the JSON view of a session
type Snapshot struct {
	ID         string               `json:"id"`
	Layout     models.LayoutMode    `json:"layout"`
	Images     []models.SourceImage `json:"images"`
	CreatedAt  time.Time            `json:"created_at"`
	LastAccess time.Time            `json:"last_access"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	images := make([]models.SourceImage, len(s.entries))
	for i, e := range s.entries {
		images[i] = e.SourceImage
	}

	return Snapshot{
		ID:         s.ID,
		Layout:     s.layout,
		Images:     images,
		CreatedAt:  s.CreatedAt,
		LastAccess: s.lastAccess,
	}
}
