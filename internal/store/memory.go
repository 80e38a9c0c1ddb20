package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"backend-prolink/internal/domain"
)

// Memory keeps everything in process. A single mutex serializes access and
// InTx holds it for the whole callback, restoring a snapshot if the callback
// fails.
type Memory struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

var _ Store = (*Memory)(nil)

type memConn struct {
	id string
	at time.Time
}

type memToken struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

type memEvent struct {
	domain.Event
	deliveredAt time.Time
}

type memData struct {
	last        time.Time
	nextEventID int64

	users         map[string]domain.User
	connections   map[string][]memConn
	requests      map[string]domain.ConnectionRequest
	notifications map[string]domain.Notification
	posts         map[string]domain.Post
	likes         map[string][]string
	comments      map[string][]domain.Comment
	media         map[string]domain.MediaObject
	tokens        map[string]memToken
	events        []memEvent
}

func NewMemory() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		data: &memData{
			users:         map[string]domain.User{},
			connections:   map[string][]memConn{},
			requests:      map[string]domain.ConnectionRequest{},
			notifications: map[string]domain.Notification{},
			posts:         map[string]domain.Post{},
			likes:         map[string][]string{},
			comments:      map[string][]domain.Comment{},
			media:         map[string]domain.MediaObject{},
			tokens:        map[string]memToken{},
		},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlices[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		last:          d.last,
		nextEventID:   d.nextEventID,
		users:         cloneMap(d.users),
		connections:   cloneSlices(d.connections),
		requests:      cloneMap(d.requests),
		notifications: cloneMap(d.notifications),
		posts:         cloneMap(d.posts),
		likes:         cloneSlices(d.likes),
		comments:      cloneSlices(d.comments),
		media:         cloneMap(d.media),
		tokens:        cloneMap(d.tokens),
		events:        append([]memEvent(nil), d.events...),
	}
}

// tick returns a strictly increasing timestamp so orderings by creation time
// are stable.
func (d *memData) tick() time.Time {
	t := time.Now().UTC()
	if !t.After(d.last) {
		t = d.last.Add(time.Microsecond)
	}
	d.last = t
	return t
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	if err := fn(&Memory{mu: m.mu, data: m.data, inTx: true}); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

// Users

func (d *memData) userView(u domain.User) domain.User {
	u.Connections = []string{}
	for _, c := range d.connections[u.ID] {
		u.Connections = append(u.Connections, c.id)
	}
	return u
}

func (d *memData) userNameTaken(userName, exceptID string) bool {
	for _, u := range d.users {
		if u.ID != exceptID && strings.EqualFold(u.UserName, userName) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateUser(ctx context.Context, u *domain.User) error {
	defer m.lock()()
	d := m.data
	if _, ok := d.users[u.ID]; ok {
		return ErrConflict
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range d.users {
		if existing.Email == email {
			return ErrConflict
		}
	}
	if d.userNameTaken(u.UserName, "") {
		return ErrConflict
	}
	u.Email = email
	if u.Skills == nil {
		u.Skills = []string{}
	}
	if u.Education == nil {
		u.Education = []domain.Education{}
	}
	if u.Experience == nil {
		u.Experience = []domain.Experience{}
	}
	u.CreatedAt = d.tick()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	stored.Connections = nil
	d.users[u.ID] = stored
	return nil
}

func (m *Memory) UserByID(ctx context.Context, id string) (domain.User, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return m.data.userView(u), nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	defer m.lock()()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.data.users {
		if u.Email == email {
			return m.data.userView(u), nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (m *Memory) UserByUserName(ctx context.Context, userName string) (domain.User, error) {
	defer m.lock()()
	userName = strings.TrimSpace(userName)
	for _, u := range m.data.users {
		if strings.EqualFold(u.UserName, userName) {
			return m.data.userView(u), nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (m *Memory) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.User, error) {
	defer m.lock()()
	d := m.data
	u, ok := d.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if patch.UserName != nil && d.userNameTaken(*patch.UserName, id) {
		return domain.User{}, ErrConflict
	}
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&u.FirstName, patch.FirstName)
	setString(&u.LastName, patch.LastName)
	setString(&u.UserName, patch.UserName)
	setString(&u.Headline, patch.Headline)
	setString(&u.Location, patch.Location)
	setString(&u.Gender, patch.Gender)
	setString(&u.ProfileImage, patch.ProfileImage)
	setString(&u.CoverImage, patch.CoverImage)
	if patch.Skills != nil {
		u.Skills = append([]string{}, (*patch.Skills)...)
	}
	if patch.Education != nil {
		u.Education = append([]domain.Education{}, (*patch.Education)...)
	}
	if patch.Experience != nil {
		u.Experience = append([]domain.Experience{}, (*patch.Experience)...)
	}
	u.UpdatedAt = d.tick()
	d.users[id] = u
	return d.userView(u), nil
}

// newestUsers returns users ordered newest first.
func (d *memData) newestUsers() []domain.User {
	users := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users
}

func matchesUser(u domain.User, q string) bool {
	for _, field := range []string{u.FirstName, u.LastName, u.UserName} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, s := range u.Skills {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func (m *Memory) SearchUsers(ctx context.Context, query string, limit int) ([]domain.UserSummary, error) {
	defer m.lock()()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.UserSummary{}
	if q == "" {
		return out, nil
	}
	for _, u := range m.data.newestUsers() {
		if len(out) == limit {
			break
		}
		if matchesUser(u, q) {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (m *Memory) SuggestedUsers(ctx context.Context, userID string, limit int) ([]domain.UserSummary, error) {
	defer m.lock()()
	d := m.data
	excluded := map[string]bool{userID: true}
	for _, c := range d.connections[userID] {
		excluded[c.id] = true
	}
	out := []domain.UserSummary{}
	for _, u := range d.newestUsers() {
		if len(out) == limit {
			break
		}
		if !excluded[u.ID] {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (d *memData) connected(userID, otherID string) bool {
	for _, c := range d.connections[userID] {
		if c.id == otherID {
			return true
		}
	}
	return false
}

func (m *Memory) AddConnection(ctx context.Context, userID, otherID string) error {
	defer m.lock()()
	d := m.data
	if d.connected(userID, otherID) {
		return nil
	}
	d.connections[userID] = append(d.connections[userID], memConn{id: otherID, at: d.tick()})
	return nil
}

func (m *Memory) RemoveConnection(ctx context.Context, userID, otherID string) error {
	defer m.lock()()
	d := m.data
	kept := d.connections[userID][:0]
	for _, c := range d.connections[userID] {
		if c.id != otherID {
			kept = append(kept, c)
		}
	}
	d.connections[userID] = kept
	return nil
}

func (m *Memory) IsConnected(ctx context.Context, userID, otherID string) (bool, error) {
	defer m.lock()()
	return m.data.connected(userID, otherID), nil
}

func (m *Memory) Connections(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	defer m.lock()()
	d := m.data
	out := []domain.UserSummary{}
	for _, c := range d.connections[userID] {
		if u, ok := d.users[c.id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

// Connection requests

func (d *memData) pendingBetween(a, b string) (domain.ConnectionRequest, bool) {
	for _, r := range d.requests {
		if r.Status != domain.ConnectionPending {
			continue
		}
		if (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a) {
			return r, true
		}
	}
	return domain.ConnectionRequest{}, false
}

func (m *Memory) CreateConnectionRequest(ctx context.Context, r *domain.ConnectionRequest) error {
	defer m.lock()()
	d := m.data
	if _, ok := d.requests[r.ID]; ok {
		return ErrConflict
	}
	if r.Status == domain.ConnectionPending {
		if _, ok := d.pendingBetween(r.SenderID, r.ReceiverID); ok {
			return ErrConflict
		}
	}
	r.CreatedAt = d.tick()
	r.UpdatedAt = r.CreatedAt
	d.requests[r.ID] = *r
	return nil
}

func (m *Memory) ConnectionRequestByID(ctx context.Context, id string) (domain.ConnectionRequest, error) {
	defer m.lock()()
	r, ok := m.data.requests[id]
	if !ok {
		return domain.ConnectionRequest{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) PendingRequestBetween(ctx context.Context, a, b string) (domain.ConnectionRequest, error) {
	defer m.lock()()
	r, ok := m.data.pendingBetween(a, b)
	if !ok {
		return domain.ConnectionRequest{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) TransitionConnectionRequest(ctx context.Context, id string, from, to domain.ConnectionStatus) (domain.ConnectionRequest, error) {
	defer m.lock()()
	d := m.data
	r, ok := d.requests[id]
	if !ok {
		return domain.ConnectionRequest{}, ErrNotFound
	}
	if r.Status != from {
		return domain.ConnectionRequest{}, ErrStale
	}
	r.Status = to
	r.UpdatedAt = d.tick()
	d.requests[id] = r
	return r, nil
}

func (m *Memory) IncomingRequests(ctx context.Context, receiverID string) ([]domain.IncomingRequest, error) {
	defer m.lock()()
	d := m.data
	out := []domain.IncomingRequest{}
	for _, r := range d.requests {
		if r.ReceiverID != receiverID || r.Status != domain.ConnectionPending {
			continue
		}
		out = append(out, domain.IncomingRequest{ConnectionRequest: r, Sender: d.users[r.SenderID].Summary()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Notifications

func (m *Memory) CreateNotification(ctx context.Context, n *domain.Notification) error {
	defer m.lock()()
	d := m.data
	if _, ok := d.notifications[n.ID]; ok {
		return ErrConflict
	}
	n.CreatedAt = d.tick()
	d.notifications[n.ID] = *n
	return nil
}

func (m *Memory) Notifications(ctx context.Context, receiverID string) ([]domain.NotificationView, error) {
	defer m.lock()()
	d := m.data
	out := []domain.NotificationView{}
	for _, n := range d.notifications {
		if n.ReceiverID != receiverID {
			continue
		}
		v := domain.NotificationView{Notification: n}
		if u, ok := d.users[n.RelatedUserID]; ok {
			s := u.Summary()
			v.RelatedUser = &s
		}
		if p, ok := d.posts[n.RelatedPostID]; ok {
			v.RelatedPost = &domain.PostSummary{ID: p.ID, Image: p.Image, Description: p.Description}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteNotification(ctx context.Context, id, receiverID string) (bool, error) {
	defer m.lock()()
	n, ok := m.data.notifications[id]
	if !ok || n.ReceiverID != receiverID {
		return false, nil
	}
	delete(m.data.notifications, id)
	return true, nil
}

func (m *Memory) ClearNotifications(ctx context.Context, receiverID string) (int64, error) {
	defer m.lock()()
	var n int64
	for id, note := range m.data.notifications {
		if note.ReceiverID == receiverID {
			delete(m.data.notifications, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteLikeNotification(ctx context.Context, receiverID, relatedUserID, postID string) (bool, error) {
	defer m.lock()()
	deleted := false
	for id, n := range m.data.notifications {
		if n.ReceiverID == receiverID && n.Type == domain.NotificationLike &&
			n.RelatedUserID == relatedUserID && n.RelatedPostID == postID {
			delete(m.data.notifications, id)
			deleted = true
		}
	}
	return deleted, nil
}

// Posts

func (m *Memory) CreatePost(ctx context.Context, p *domain.Post) error {
	defer m.lock()()
	d := m.data
	if _, ok := d.posts[p.ID]; ok {
		return ErrConflict
	}
	p.CreatedAt = d.tick()
	p.UpdatedAt = p.CreatedAt
	p.Likes = []string{}
	stored := *p
	stored.Likes = nil
	d.posts[p.ID] = stored
	return nil
}

func (d *memData) likesOf(postID string) []string {
	return append([]string{}, d.likes[postID]...)
}

func (m *Memory) PostByID(ctx context.Context, id string) (domain.Post, error) {
	defer m.lock()()
	p, ok := m.data.posts[id]
	if !ok {
		return domain.Post{}, ErrNotFound
	}
	p.Likes = m.data.likesOf(id)
	return p, nil
}

func (m *Memory) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	defer m.lock()()
	d := m.data
	for _, id := range d.likes[postID] {
		if id == userID {
			return false, nil
		}
	}
	d.likes[postID] = append(d.likes[postID], userID)
	return true, nil
}

func (m *Memory) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	defer m.lock()()
	d := m.data
	likes := d.likes[postID]
	for i, id := range likes {
		if id == userID {
			d.likes[postID] = append(likes[:i:i], likes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Likes(ctx context.Context, postID string) ([]string, error) {
	defer m.lock()()
	return m.data.likesOf(postID), nil
}

func (m *Memory) AddComment(ctx context.Context, c *domain.Comment) error {
	defer m.lock()()
	d := m.data
	c.CreatedAt = d.tick()
	d.comments[c.PostID] = append(d.comments[c.PostID], *c)
	return nil
}

func (d *memData) commentViews(postID string) []domain.CommentView {
	out := []domain.CommentView{}
	for _, c := range d.comments[postID] {
		out = append(out, domain.CommentView{Comment: c, User: d.users[c.UserID].Summary()})
	}
	return out
}

func (m *Memory) Comments(ctx context.Context, postID string) ([]domain.CommentView, error) {
	defer m.lock()()
	return m.data.commentViews(postID), nil
}

func (m *Memory) Feed(ctx context.Context, offset, limit int) ([]domain.PostView, int, error) {
	defer m.lock()()
	d := m.data
	posts := make([]domain.Post, 0, len(d.posts))
	for _, p := range d.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	total := len(posts)
	out := []domain.PostView{}
	if offset >= total {
		return out, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	for _, p := range posts[offset:end] {
		out = append(out, domain.PostView{
			ID:          p.ID,
			Author:      d.users[p.AuthorID].Summary(),
			Description: p.Description,
			Image:       p.Image,
			Likes:       d.likesOf(p.ID),
			Comments:    d.commentViews(p.ID),
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return out, total, nil
}

// Media and tokens

func (m *Memory) SaveMediaObject(ctx context.Context, o *domain.MediaObject) error {
	defer m.lock()()
	o.CreatedAt = m.data.tick()
	m.data.media[o.ID] = *o
	return nil
}

func (m *Memory) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	defer m.lock()()
	if _, ok := m.data.tokens[token]; ok {
		return ErrConflict
	}
	m.data.tokens[token] = memToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *Memory) LookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	defer m.lock()()
	t, ok := m.data.tokens[token]
	if !ok || t.revoked {
		return "", time.Time{}, ErrNotFound
	}
	return t.userID, t.expiresAt, nil
}

func (m *Memory) RevokeRefreshToken(ctx context.Context, token string) error {
	defer m.lock()()
	if t, ok := m.data.tokens[token]; ok {
		t.revoked = true
		m.data.tokens[token] = t
	}
	return nil
}

// Outbox

func (m *Memory) EnqueueEvents(ctx context.Context, events ...domain.Event) error {
	defer m.lock()()
	d := m.data
	for _, e := range events {
		d.nextEventID++
		e.ID = d.nextEventID
		e.CreatedAt = d.tick()
		d.events = append(d.events, memEvent{Event: e})
	}
	return nil
}

func (m *Memory) PendingEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	defer m.lock()()
	out := []domain.Event{}
	for _, e := range m.data.events {
		if len(out) == limit {
			break
		}
		if e.deliveredAt.IsZero() {
			out = append(out, e.Event)
		}
	}
	return out, nil
}

func (m *Memory) MarkEventsDelivered(ctx context.Context, ids []int64) error {
	defer m.lock()()
	d := m.data
	marked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range d.events {
		if marked[d.events[i].ID] && d.events[i].deliveredAt.IsZero() {
			d.events[i].deliveredAt = d.tick()
		}
	}
	return nil
}

func (m *Memory) PurgeDeliveredEvents(ctx context.Context, before time.Time) (int64, error) {
	defer m.lock()()
	d := m.data
	kept := make([]memEvent, 0, len(d.events))
	var purged int64
	for _, e := range d.events {
		if !e.deliveredAt.IsZero() && e.deliveredAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	d.events = kept
	return purged, nil
}
