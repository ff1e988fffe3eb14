// Package mock provides in-memory implementations of the storage interfaces
// for testing. Transactions work on a copy of the state that replaces the
// committed state only when the callback succeeds.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
)

// Faults injects errors into store methods by name, e.g. "InsertFace".
type Faults struct {
	mu    sync.Mutex
	errs  map[string]error
	nth   map[string]int
	calls map[string]int
	holds map[string]*hold
}

type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *Faults) check(method string) error {
	f.mu.Lock()
	h := f.holds[method]
	delete(f.holds, method)
	f.mu.Unlock()
	if h != nil {
		close(h.entered)
		<-h.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	err, ok := f.errs[method]
	if !ok {
		return nil
	}
	if n := f.nth[method]; n > 0 && f.calls[method] != n {
		return nil
	}
	return err
}

type state struct {
	persons  map[uuid.UUID]models.Person
	faces    map[uuid.UUID]models.Face
	queue    map[uuid.UUID]models.QueueEntry
	messages map[uuid.UUID]models.Message
	groups   map[uuid.UUID]models.Group

	faults *Faults
	now    func() time.Time
}

func (st *state) clone() *state {
	c := &state{
		persons:  make(map[uuid.UUID]models.Person, len(st.persons)),
		faces:    make(map[uuid.UUID]models.Face, len(st.faces)),
		queue:    make(map[uuid.UUID]models.QueueEntry, len(st.queue)),
		messages: make(map[uuid.UUID]models.Message, len(st.messages)),
		groups:   make(map[uuid.UUID]models.Group, len(st.groups)),
		faults:   st.faults,
		now:      st.now,
	}
	for k, v := range st.persons {
		c.persons[k] = v
	}
	for k, v := range st.faces {
		c.faces[k] = v
	}
	for k, v := range st.queue {
		c.queue[k] = v
	}
	for k, v := range st.messages {
		c.messages[k] = v
	}
	for k, v := range st.groups {
		c.groups[k] = v
	}
	return c
}

// Store is an in-memory identity.Store. Transactions are serialized unless
// ConcurrentTx is called.
type Store struct {
	mu         sync.Mutex
	st         *state
	faults     *Faults
	concurrent bool

	clockMu sync.Mutex
	clock   time.Time
}

func NewStore() *Store {
	s := &Store{
		faults: &Faults{
			errs:  map[string]error{},
			nth:   map[string]int{},
			calls: map[string]int{},
			holds: map[string]*hold{},
		},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.st = &state{
		persons:  map[uuid.UUID]models.Person{},
		faces:    map[uuid.UUID]models.Face{},
		queue:    map[uuid.UUID]models.QueueEntry{},
		messages: map[uuid.UUID]models.Message{},
		groups:   map[uuid.UUID]models.Group{},
		faults:   s.faults,
		now:      s.tick,
	}
	return s
}

// tick returns strictly increasing timestamps so ordering by created_at is stable.
func (s *Store) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// ConcurrentTx lets transactions overlap. Each one works on a snapshot of the
// committed state taken when it starts and replaces that state on success, so
// at most one of a set of overlapping transactions may write.
func (s *Store) ConcurrentTx() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concurrent = true
}

// Hold blocks the next call of method until release is called. entered is
// closed once that call is blocked. Holding a method inside a transaction
// stalls every other transaction unless ConcurrentTx is on.
func (s *Store) Hold(method string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	s.faults.mu.Lock()
	s.faults.holds[method] = h
	s.faults.mu.Unlock()
	return h.entered, func() { h.once.Do(func() { close(h.release) }) }
}

// Fail makes every call of method return err.
func (s *Store) Fail(method string, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.errs[method] = err
	delete(s.faults.nth, method)
}

// FailOnCall makes only the n-th call (1-based, counted from now) of method fail.
func (s *Store) FailOnCall(method string, n int, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.errs[method] = err
	s.faults.nth[method] = n + s.faults.calls[method]
}

// Heal clears all injected faults.
func (s *Store) Heal() {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.errs = map[string]error{}
	s.faults.nth = map[string]int{}
}

func (s *Store) InTx(ctx context.Context, fn func(tx identity.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults.check("InTx"); err != nil {
		return err
	}
	work := s.st.clone()
	if s.concurrent {
		s.mu.Unlock()
		err := fn(work)
		s.mu.Lock()
		if err != nil {
			return err
		}
	} else if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// view runs fn against the committed state.
func (s *Store) view(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// Seeding and inspection helpers.

func (s *Store) AddGroup(g models.Group) models.Group {
	s.view(func(st *state) {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = st.now()
		}
		st.groups[g.ID] = g
	})
	return g
}

func (s *Store) AddMessage(m models.Message) models.Message {
	s.view(func(st *state) {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = st.now()
		}
		st.messages[m.ID] = m
	})
	return m
}

func (s *Store) Person(id uuid.UUID) (models.Person, bool) {
	var p models.Person
	var ok bool
	s.view(func(st *state) { p, ok = st.persons[id] })
	return p, ok
}

func (s *Store) Face(id uuid.UUID) (models.Face, bool) {
	var f models.Face
	var ok bool
	s.view(func(st *state) { f, ok = st.faces[id] })
	return f, ok
}

func (s *Store) QueueEntry(id uuid.UUID) (models.QueueEntry, bool) {
	var e models.QueueEntry
	var ok bool
	s.view(func(st *state) { e, ok = st.queue[id] })
	return e, ok
}

func (s *Store) Message(id uuid.UUID) (models.Message, bool) {
	var m models.Message
	var ok bool
	s.view(func(st *state) { m, ok = st.messages[id] })
	return m, ok
}

func (s *Store) Counts() (persons, faces, queue int) {
	s.view(func(st *state) {
		persons, faces, queue = len(st.persons), len(st.faces), len(st.queue)
	})
	return
}

func (s *Store) Faces() []models.Face {
	var out []models.Face
	s.view(func(st *state) {
		for _, f := range st.faces {
			out = append(out, f)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) QueueEntries() []models.QueueEntry {
	var out []models.QueueEntry
	s.view(func(st *state) {
		for _, e := range st.queue {
			out = append(out, e)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Non-transactional reads and writes used by the HTTP handlers.

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (m *models.Message, err error) {
	s.view(func(st *state) { m, err = st.GetMessage(ctx, id) })
	return
}

func (s *Store) GetFace(ctx context.Context, id uuid.UUID) (f *models.Face, err error) {
	s.view(func(st *state) { f, err = st.GetFace(ctx, id) })
	return
}

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) (err error) {
	s.view(func(st *state) { err = st.CreateMessage(ctx, m) })
	return
}

func (s *Store) SetMessagePhoto(ctx context.Context, id uuid.UUID, photoPath string) (err error) {
	s.view(func(st *state) { err = st.SetMessagePhoto(ctx, id, photoPath) })
	return
}

func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (g *models.Group, err error) {
	s.view(func(st *state) { g, err = st.GetGroup(ctx, id) })
	return
}

func (s *Store) EnsureGroup(ctx context.Context, name string) (g *models.Group, err error) {
	s.view(func(st *state) { g, err = st.EnsureGroup(ctx, name) })
	return
}

func (s *Store) MessageContext(ctx context.Context, m *models.Message, radius int) (msgs []models.Message, err error) {
	s.view(func(st *state) { msgs, err = st.MessageContext(ctx, m, radius) })
	return
}

func (s *Store) ListGroups(ctx context.Context) (groups []models.GroupSummary, err error) {
	s.view(func(st *state) { groups, err = st.ListGroups(ctx) })
	return
}

func (s *Store) ListMessages(ctx context.Context, f models.MessageFilter) (msgs []models.MessageRow, err error) {
	s.view(func(st *state) { msgs, err = st.ListMessages(ctx, f) })
	return
}

// --- identity.Tx ---

func (st *state) CreatePerson(_ context.Context, p *models.Person) error {
	if err := st.faults.check("CreatePerson"); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = st.now()
	st.persons[p.ID] = *p
	return nil
}

func (st *state) GetPerson(_ context.Context, id uuid.UUID) (*models.Person, error) {
	if err := st.faults.check("GetPerson"); err != nil {
		return nil, err
	}
	p, ok := st.persons[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (st *state) GetPersonForUpdate(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	return st.GetPerson(ctx, id)
}

func (st *state) UpdatePerson(_ context.Context, id uuid.UUID, displayName *string, confirmed *bool) (*models.Person, error) {
	p, ok := st.persons[id]
	if !ok {
		return nil, nil
	}
	if displayName != nil {
		name := *displayName
		p.DisplayName = &name
	}
	if confirmed != nil {
		p.Confirmed = *confirmed
	}
	st.persons[id] = p
	return &p, nil
}

func (st *state) DeletePerson(_ context.Context, id uuid.UUID) error {
	if err := st.faults.check("DeletePerson"); err != nil {
		return err
	}
	for _, f := range st.faces {
		if f.PersonID != nil && *f.PersonID == id {
			return fmt.Errorf("delete person: face %s still references person %s", f.ID, id)
		}
	}
	delete(st.persons, id)
	return nil
}

func (st *state) ListPersons(_ context.Context, f models.PersonFilter) ([]models.PersonSummary, error) {
	var out []models.PersonSummary
	for _, p := range st.persons {
		if f.Confirmed != nil && p.Confirmed != *f.Confirmed {
			continue
		}
		out = append(out, models.PersonSummary{Person: p, FaceCount: st.countFaces(p.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset, 100), nil
}

func (st *state) GetMessage(_ context.Context, id uuid.UUID) (*models.Message, error) {
	if err := st.faults.check("GetMessage"); err != nil {
		return nil, err
	}
	m, ok := st.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (st *state) CreateMessage(_ context.Context, m *models.Message) error {
	if err := st.faults.check("CreateMessage"); err != nil {
		return err
	}
	if _, ok := st.groups[m.GroupID]; !ok {
		return fmt.Errorf("create message: group %s does not exist", m.GroupID)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = st.now()
	st.messages[m.ID] = *m
	return nil
}

func (st *state) SetMessagePhoto(_ context.Context, id uuid.UUID, photoPath string) error {
	m, ok := st.messages[id]
	if !ok {
		return nil
	}
	m.PhotoPath = &photoPath
	m.HasPhoto = true
	st.messages[id] = m
	return nil
}

func (st *state) MessageContext(_ context.Context, m *models.Message, radius int) ([]models.Message, error) {
	var group []models.Message
	for _, msg := range st.messages {
		if msg.GroupID == m.GroupID {
			group = append(group, msg)
		}
	}
	sort.Slice(group, func(i, j int) bool {
		a, b := group[i], group[j]
		switch {
		case a.Timestamp == nil && b.Timestamp != nil:
			return true
		case a.Timestamp != nil && b.Timestamp == nil:
			return false
		case a.Timestamp != nil && !a.Timestamp.Equal(*b.Timestamp):
			return a.Timestamp.Before(*b.Timestamp)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	for i, msg := range group {
		if msg.ID != m.ID {
			continue
		}
		lo, hi := max(i-radius, 0), min(i+radius+1, len(group))
		return group[lo:hi], nil
	}
	return nil, nil
}

func (st *state) DeleteMessage(_ context.Context, id uuid.UUID) error {
	if err := st.faults.check("DeleteMessage"); err != nil {
		return err
	}
	for _, f := range st.faces {
		if f.MessageID != nil && *f.MessageID == id {
			return fmt.Errorf("delete message: face %s references message %s", f.ID, id)
		}
	}
	delete(st.messages, id)
	return nil
}

func (st *state) ListMessages(_ context.Context, f models.MessageFilter) ([]models.MessageRow, error) {
	if err := st.faults.check("ListMessages"); err != nil {
		return nil, err
	}
	var out []models.MessageRow
	for _, m := range st.messages {
		if f.GroupID != nil && m.GroupID != *f.GroupID {
			continue
		}
		if f.OnlyWithPhoto && !m.HasPhoto {
			continue
		}
		if f.DateFrom != nil && (m.Timestamp == nil || m.Timestamp.Before(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && (m.Timestamp == nil || m.Timestamp.After(*f.DateTo)) {
			continue
		}
		if f.Text != "" && (m.Text == nil || !strings.Contains(strings.ToLower(*m.Text), strings.ToLower(f.Text))) {
			continue
		}
		row := models.MessageRow{Message: m}
		if g, ok := st.groups[m.GroupID]; ok {
			name := g.Name
			row.GroupName = &name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Timestamp != nil && b.Timestamp == nil:
			return true
		case a.Timestamp == nil && b.Timestamp != nil:
			return false
		case a.Timestamp != nil && !a.Timestamp.Equal(*b.Timestamp):
			return a.Timestamp.After(*b.Timestamp)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return page(out, f.Limit, f.Offset, 50), nil
}

func (st *state) ListGroups(_ context.Context) ([]models.GroupSummary, error) {
	var out []models.GroupSummary
	for _, g := range st.groups {
		gs := models.GroupSummary{Group: g}
		for _, m := range st.messages {
			if m.GroupID != g.ID || m.Timestamp == nil {
				continue
			}
			if gs.LastMessageAt == nil || m.Timestamp.After(*gs.LastMessageAt) {
				ts := *m.Timestamp
				gs.LastMessageAt = &ts
			}
		}
		out = append(out, gs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (st *state) ListGroupPhotoPaths(_ context.Context, groupID uuid.UUID) ([]string, error) {
	var keys []string
	for _, m := range st.messages {
		if m.GroupID == groupID && m.PhotoPath != nil {
			keys = append(keys, *m.PhotoPath)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (st *state) GetGroup(_ context.Context, id uuid.UUID) (*models.Group, error) {
	g, ok := st.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (st *state) EnsureGroup(_ context.Context, name string) (*models.Group, error) {
	for _, g := range st.groups {
		if g.Name == name && g.TelegramID == nil {
			return &g, nil
		}
	}
	g := models.Group{ID: uuid.New(), Name: name, CreatedAt: st.now()}
	st.groups[g.ID] = g
	return &g, nil
}

func (st *state) DeleteGroup(_ context.Context, id uuid.UUID) error {
	for mid, m := range st.messages {
		if m.GroupID != id {
			continue
		}
		for _, f := range st.faces {
			if f.MessageID != nil && *f.MessageID == mid {
				return fmt.Errorf("delete group messages: face %s references message %s", f.ID, mid)
			}
		}
		delete(st.messages, mid)
	}
	delete(st.groups, id)
	return nil
}

func (st *state) InsertFace(_ context.Context, f *models.Face) error {
	if err := st.faults.check("InsertFace"); err != nil {
		return err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.PersonID != nil {
		if _, ok := st.persons[*f.PersonID]; !ok {
			return fmt.Errorf("insert face: person %s does not exist", *f.PersonID)
		}
	}
	f.CreatedAt = st.now()
	st.faces[f.ID] = *f
	return nil
}

func (st *state) SetFaceVector(_ context.Context, faceID, pointID uuid.UUID, cropPath *string) error {
	if err := st.faults.check("SetFaceVector"); err != nil {
		return err
	}
	f, ok := st.faces[faceID]
	if !ok {
		return nil
	}
	f.PointID = &pointID
	f.CropPath = cropPath
	st.faces[faceID] = f
	return nil
}

func (st *state) SetFacePerson(_ context.Context, faceID, personID uuid.UUID) error {
	f, ok := st.faces[faceID]
	if !ok {
		return nil
	}
	f.PersonID = &personID
	st.faces[faceID] = f
	return nil
}

func (st *state) GetFace(_ context.Context, id uuid.UUID) (*models.Face, error) {
	f, ok := st.faces[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (st *state) ListFacesByPerson(_ context.Context, personID uuid.UUID) ([]models.Face, error) {
	var out []models.Face
	for _, f := range st.faces {
		if f.PersonID != nil && *f.PersonID == personID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (st *state) ListFacesByGroup(_ context.Context, groupID uuid.UUID) ([]models.Face, error) {
	var out []models.Face
	for _, f := range st.faces {
		if f.MessageID == nil {
			continue
		}
		if m, ok := st.messages[*f.MessageID]; ok && m.GroupID == groupID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (st *state) ListFacesByMessage(_ context.Context, messageID uuid.UUID) ([]models.Face, error) {
	var out []models.Face
	for _, f := range st.faces {
		if f.MessageID != nil && *f.MessageID == messageID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (st *state) ListFacesAfter(_ context.Context, after uuid.UUID, limit int) ([]models.Face, error) {
	var out []models.Face
	for _, f := range st.faces {
		if bytes.Compare(f.ID[:], after[:]) > 0 {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st *state) countFaces(personID uuid.UUID) int {
	n := 0
	for _, f := range st.faces {
		if f.PersonID != nil && *f.PersonID == personID {
			n++
		}
	}
	return n
}

func (st *state) CountFaces(_ context.Context, personID uuid.UUID) (int, error) {
	return st.countFaces(personID), nil
}

func (st *state) ReassignFaces(_ context.Context, from, to uuid.UUID) (int64, error) {
	var n int64
	for id, f := range st.faces {
		if f.PersonID != nil && *f.PersonID == from {
			target := to
			f.PersonID = &target
			st.faces[id] = f
			n++
		}
	}
	return n, nil
}

func (st *state) DeleteFaces(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		for _, e := range st.queue {
			if e.FaceID == id {
				return fmt.Errorf("delete faces: queue entry %s references face %s", e.ID, id)
			}
		}
		delete(st.faces, id)
	}
	return nil
}

func (st *state) CreateQueueEntry(_ context.Context, e *models.QueueEntry) error {
	if err := st.faults.check("CreateQueueEntry"); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = models.StatusPending
	}
	e.CreatedAt = st.now()
	st.queue[e.ID] = *e
	return nil
}

func (st *state) GetQueueEntryForUpdate(_ context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	e, ok := st.queue[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (st *state) MarkReviewed(_ context.Context, id uuid.UUID, status models.IdentificationStatus, reviewer string, at time.Time) error {
	if err := st.faults.check("MarkReviewed"); err != nil {
		return err
	}
	e, ok := st.queue[id]
	if !ok || e.Status != models.StatusPending {
		return nil
	}
	e.Status = status
	e.ReviewedBy = &reviewer
	e.ReviewedAt = &at
	st.queue[id] = e
	return nil
}

func (st *state) ListPending(_ context.Context, limit, offset int) ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	for _, e := range st.queue {
		if e.Status == models.StatusPending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset, 50), nil
}

func (st *state) CountPendingSuggestions(_ context.Context, personID uuid.UUID) (int, error) {
	n := 0
	for _, e := range st.queue {
		if e.Status == models.StatusPending && e.SuggestedPersonID == personID {
			n++
		}
	}
	return n, nil
}

func (st *state) RetargetPendingSuggestions(_ context.Context, from, to uuid.UUID) error {
	for id, e := range st.queue {
		if e.Status == models.StatusPending && e.SuggestedPersonID == from {
			e.SuggestedPersonID = to
			st.queue[id] = e
		}
	}
	return nil
}

func (st *state) DeleteSettledSuggestions(_ context.Context, personID uuid.UUID) error {
	for id, e := range st.queue {
		if e.Status != models.StatusPending || e.SuggestedPersonID != personID {
			continue
		}
		if f, ok := st.faces[e.FaceID]; ok && f.PersonID != nil && *f.PersonID == personID {
			delete(st.queue, id)
		}
	}
	return nil
}

func (st *state) DeleteQueueEntriesForFaces(_ context.Context, faceIDs []uuid.UUID) error {
	set := make(map[uuid.UUID]struct{}, len(faceIDs))
	for _, id := range faceIDs {
		set[id] = struct{}{}
	}
	for id, e := range st.queue {
		if _, ok := set[e.FaceID]; ok {
			delete(st.queue, id)
		}
	}
	return nil
}

func (st *state) DeleteSuggestionsOf(_ context.Context, personID uuid.UUID) error {
	for id, e := range st.queue {
		if e.SuggestedPersonID == personID {
			delete(st.queue, id)
		}
	}
	return nil
}

func page[T any](items []T, limit, offset, def int) []T {
	if limit <= 0 {
		limit = def
	}
	if offset >= len(items) {
		return nil
	}
	items = items[max(offset, 0):]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
