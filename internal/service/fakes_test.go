package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
)

// memStore backs the fake repositories. Posts are stored as copies so the
// service under test cannot mutate stored state without going through a
// repository call.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	clock     time.Time
	posts     map[int64]*models.Post
	platforms map[int64]*models.Platform
	assoc     []*models.PostPlatform

	claimCalls int
	failStatus map[int64]error
}

func newMemStore() *memStore {
	return &memStore{
		clock:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		posts:      make(map[int64]*models.Post),
		platforms:  make(map[int64]*models.Platform),
		failStatus: make(map[int64]error),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) addPlatform(id int64, name, typ string, limit int, active bool) *models.Platform {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := models.PlatformStatusActive
	if !active {
		status = models.PlatformStatusInactive
	}
	p := &models.Platform{ID: id, Name: name, Type: typ, CharacterLimit: limit, Status: status}
	s.platforms[id] = p
	return p
}

// seedPost stores a post directly with its platform rows attached.
func (s *memStore) seedPost(p *models.Post, platformIDs ...int64) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	s.posts[p.ID] = copyPost(p)
	for _, id := range platformIDs {
		s.assoc = append(s.assoc, &models.PostPlatform{PostID: p.ID, PlatformID: id, LastStatus: models.DispatchPending})
	}
	return p
}

func (s *memStore) post(id int64) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		return copyPost(p)
	}
	return nil
}

func (s *memStore) association(postID, platformID int64) *models.PostPlatform {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assoc {
		if a.PostID == postID && a.PlatformID == platformID {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (s *memStore) associationCount(postID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assoc {
		if a.PostID == postID {
			n++
		}
	}
	return n
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type fakePostRepo struct{ *memStore }

func (r fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	post.ID = r.nextID
	post.CreatedAt = r.tick()
	post.UpdatedAt = post.CreatedAt
	r.posts[post.ID] = copyPost(post)
	return post.ID, nil
}

func (r fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return r.post(id), nil
}

func (r fakePostRepo) ListByUserID(ctx context.Context, userID int64, filter repository.PostFilter) ([]*models.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*models.Post
	for _, p := range r.posts {
		if p.UserID != userID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		matched = append(matched, copyPost(p))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r fakePostRepo) Update(ctx context.Context, tx *sql.Tx, post *models.Post, columns []string, seenUpdatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[post.ID]
	if !ok || !stored.UpdatedAt.Equal(seenUpdatedAt) || stored.Status == models.PostStatusDispatching {
		return false, nil
	}
	for _, column := range columns {
		switch column {
		case repository.PostColumnTitle:
			stored.Title = post.Title
		case repository.PostColumnContent:
			stored.Content = post.Content
		case repository.PostColumnImageURL:
			stored.ImageURL = post.ImageURL
		case repository.PostColumnScheduledTime:
			stored.ScheduledTime = post.ScheduledTime
		case repository.PostColumnStatus:
			stored.Status = post.Status
		}
	}
	stored.UpdatedAt = r.tick()

	refreshed := copyPost(stored)
	refreshed.Platforms = post.Platforms
	refreshed.Associations = post.Associations
	*post = *refreshed
	return true, nil
}

func (r fakePostRepo) CountScheduledBetween(ctx context.Context, userID int64, from, to time.Time, excludeID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.posts {
		if p.UserID != userID || p.ID == excludeID || p.Status != models.PostStatusScheduled || p.ScheduledTime == nil {
			continue
		}
		if !p.ScheduledTime.Before(from) && p.ScheduledTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && p.ScheduledTime != nil && !p.ScheduledTime.After(now) {
			due = append(due, copyPost(p))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (r fakePostRepo) ListStaleDispatching(ctx context.Context, updatedBefore time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusDispatching && p.UpdatedAt.Before(updatedBefore) {
			stale = append(stale, copyPost(p))
		}
	}
	return stale, nil
}

func (r fakePostRepo) Claim(ctx context.Context, id int64, from, to string, seenUpdatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimCalls++
	p, ok := r.posts[id]
	if !ok || p.Status != from || !p.UpdatedAt.Equal(seenUpdatedAt) {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = r.tick()
	return true, nil
}

func (r fakePostRepo) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failStatus[postID]; err != nil {
		return err
	}
	if p, ok := r.posts[postID]; ok {
		p.Status = status
		p.UpdatedAt = r.tick()
	}
	return nil
}

func (r fakePostRepo) CountByStatus(ctx context.Context, userID int64) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, p := range r.posts {
		if p.UserID == userID {
			counts[p.Status]++
		}
	}
	return counts, nil
}

func (r fakePostRepo) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return false, nil
	}
	delete(r.posts, id)
	kept := r.assoc[:0]
	for _, a := range r.assoc {
		if a.PostID != id {
			kept = append(kept, a)
		}
	}
	r.assoc = kept
	return true, nil
}

type fakePlatformRepo struct{ *memStore }

func (r fakePlatformRepo) GetByID(ctx context.Context, id int64) (*models.Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.platforms[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r fakePlatformRepo) List(ctx context.Context) ([]*models.Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*models.Platform
	for _, p := range r.platforms {
		cp := *p
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r fakePlatformRepo) ListByIDs(ctx context.Context, ids []int64) ([]*models.Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*models.Platform
	for _, id := range ids {
		if p, ok := r.platforms[id]; ok {
			cp := *p
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r fakePlatformRepo) SetStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.platforms[id]; ok {
		p.Status = status
	}
	return nil
}

func (r fakePlatformRepo) ListPostCounts(ctx context.Context, userID int64) ([]*models.PlatformPostCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts []*models.PlatformPostCount
	for _, p := range r.platforms {
		c := &models.PlatformPostCount{ID: p.ID, Name: p.Name, Type: p.Type}
		for _, a := range r.assoc {
			if post, ok := r.posts[a.PostID]; ok && a.PlatformID == p.ID && post.UserID == userID {
				c.PostCount++
			}
		}
		counts = append(counts, c)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].ID < counts[j].ID })
	return counts, nil
}

type fakePostPlatformRepo struct{ *memStore }

func (r fakePostPlatformRepo) Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assoc {
		if a.PostID == pp.PostID && a.PlatformID == pp.PlatformID {
			return nil
		}
	}
	cp := *pp
	if cp.LastStatus == "" {
		cp.LastStatus = models.DispatchPending
	}
	cp.CreatedAt = r.tick()
	r.assoc = append(r.assoc, &cp)
	return nil
}

func (r fakePostPlatformRepo) ListByPostID(ctx context.Context, tx *sql.Tx, postID int64) ([]*models.PostPlatform, error) {
	return r.ListByPostIDs(ctx, []int64{postID})
}

func (r fakePostPlatformRepo) ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.PostPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]struct{}, len(postIDs))
	for _, id := range postIDs {
		want[id] = struct{}{}
	}
	var list []*models.PostPlatform
	for _, a := range r.assoc {
		if _, ok := want[a.PostID]; ok {
			cp := *a
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r fakePostPlatformRepo) RecordOutcome(ctx context.Context, pp *models.PostPlatform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assoc {
		if a.PostID == pp.PostID && a.PlatformID == pp.PlatformID {
			a.LastStatus = pp.LastStatus
			a.LastError = pp.LastError
			a.DispatchedAt = pp.DispatchedAt
		}
	}
	return nil
}

func (r fakePostPlatformRepo) Remove(ctx context.Context, tx *sql.Tx, postID, platformID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.assoc[:0]
	for _, a := range r.assoc {
		if a.PostID == postID && a.PlatformID == platformID {
			continue
		}
		kept = append(kept, a)
	}
	r.assoc = kept
	return nil
}

type fakeMediaStore struct {
	mu      sync.Mutex
	calls   int
	objects []MediaObject
	url     string
	err     error
	block   chan struct{}
}

func (f *fakeMediaStore) Upload(ctx context.Context, obj MediaObject) (string, error) {
	f.mu.Lock()
	f.calls++
	f.objects = append(f.objects, obj)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://cdn.example.com/" + obj.Folder + "/" + obj.PublicID + "." + obj.Extension, nil
}

func (f *fakeMediaStore) uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]error
	panics map[int64]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		calls:  make(map[string]int),
		fail:   make(map[string]error),
		panics: make(map[int64]bool),
	}
}

func (f *fakePublisher) Publish(ctx context.Context, post *models.Post, platform *models.Platform) error {
	f.mu.Lock()
	f.calls[platform.Name]++
	err := f.fail[platform.Name]
	boom := f.panics[post.ID]
	f.mu.Unlock()

	if boom {
		panic("publisher exploded")
	}
	return err
}

func (f *fakePublisher) count(platform string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[platform]
}

// onePixelPNG is a valid 1x1 PNG as an inline data payload.
const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type fixture struct {
	store     *memStore
	media     *fakeMediaStore
	validator PostValidator
	posts     PostService
	platforms PlatformService
}

const (
	twitterID   int64 = 1
	instagramID int64 = 2
	facebookID  int64 = 3
	linkedinID  int64 = 4
)

func newFixture() *fixture {
	store := newMemStore()
	store.addPlatform(twitterID, "Twitter", "twitter", 280, true)
	store.addPlatform(instagramID, "Instagram", "instagram", 2200, true)
	store.addPlatform(facebookID, "Facebook", "facebook", 63206, true)
	store.addPlatform(linkedinID, "LinkedIn", "linkedin", 3000, true)

	pr := fakePostRepo{store}
	pl := fakePlatformRepo{store}
	pp := fakePostPlatformRepo{store}

	media := &fakeMediaStore{}
	validator := NewPostValidator(pl, pr, 10, "Instagram")
	ingestor := NewMediaIngestor(media, "posts", time.Second, 2)

	return &fixture{
		store:     store,
		media:     media,
		validator: validator,
		posts:     NewPostService(fakeTx{}, pr, pl, pp, validator, ingestor),
		platforms: NewPlatformService(fakeTx{}, pl),
	}
}

func ptr[T any](v T) *T {
	return &v
}
