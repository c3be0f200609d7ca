package services

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/events"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memCampaigns mirrors CampaignRepo semantics in memory: version-checked
// Update and single-step AddPost/RemovePost under one lock.
type memCampaigns struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.Campaign
	created   time.Time
	conflicts int   // forced conflicts left for Update
	addErr    error // returned by AddPost when set
	updates   int
}

func newMemCampaigns() *memCampaigns {
	return &memCampaigns{
		rows:    map[uuid.UUID]models.Campaign{},
		created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cloneCampaign(c models.Campaign) models.Campaign {
	c.PostIDs = slices.Clone(c.PostIDs)
	c.Platforms = slices.Clone(c.Platforms)
	return c
}

func (m *memCampaigns) Create(_ context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = m.created.Add(time.Second)
	c.ID = uuid.New()
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = m.created, m.created
	if c.PostIDs == nil {
		c.PostIDs = []uuid.UUID{}
	}
	m.rows[c.ID] = cloneCampaign(*c)
	return nil
}

func (m *memCampaigns) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, models.NewNotFoundError("campaign", id)
	}
	out := cloneCampaign(c)
	return &out, nil
}

func (m *memCampaigns) Update(_ context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[c.ID]
	if !ok {
		return models.NewNotFoundError("campaign", c.ID)
	}
	if m.conflicts > 0 {
		m.conflicts--
		stored.Version++
		m.rows[c.ID] = stored
		return models.NewConflictError("campaign", c.ID)
	}
	if stored.Version != c.Version {
		return models.NewConflictError("campaign", c.ID)
	}
	m.updates++
	next := cloneCampaign(*c)
	next.PostIDs = stored.PostIDs
	next.Analytics.TotalPosts = stored.Analytics.TotalPosts
	next.Version = stored.Version + 1
	m.rows[c.ID] = next
	c.Version = next.Version
	return nil
}

func (m *memCampaigns) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return models.NewNotFoundError("campaign", id)
	}
	delete(m.rows, id)
	return nil
}

func (m *memCampaigns) AddPost(_ context.Context, id, postID uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return nil, m.addErr
	}
	c, ok := m.rows[id]
	if !ok {
		return nil, models.NewNotFoundError("campaign", id)
	}
	if !c.HasPost(postID) {
		c.PostIDs = append(slices.Clone(c.PostIDs), postID)
		c.Analytics.TotalPosts++
		c.Version++
		m.rows[id] = c
	}
	out := cloneCampaign(c)
	return &out, nil
}

func (m *memCampaigns) RemovePost(_ context.Context, id, postID uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, models.NewNotFoundError("campaign", id)
	}
	if i := slices.Index(c.PostIDs, postID); i >= 0 {
		c.PostIDs = slices.Delete(slices.Clone(c.PostIDs), i, i+1)
		c.Analytics.TotalPosts = max(c.Analytics.TotalPosts-1, 0)
		c.Version++
		m.rows[id] = c
	}
	out := cloneCampaign(c)
	return &out, nil
}

func (m *memCampaigns) SetPosts(_ context.Context, id uuid.UUID, version int64, postIDs []uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, models.NewNotFoundError("campaign", id)
	}
	if c.Version != version {
		return nil, models.NewConflictError("campaign", id)
	}
	c.PostIDs = slices.Clone(postIDs)
	if c.PostIDs == nil {
		c.PostIDs = []uuid.UUID{}
	}
	c.Analytics.TotalPosts = len(postIDs)
	c.Version++
	m.rows[id] = c
	out := cloneCampaign(c)
	return &out, nil
}

func (m *memCampaigns) all(keep func(models.Campaign) bool) []models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Campaign{}
	for _, c := range m.rows {
		if keep(c) {
			out = append(out, cloneCampaign(c))
		}
	}
	return out
}

func (m *memCampaigns) List(_ context.Context, f repositories.CampaignFilter) ([]models.Campaign, error) {
	out := m.all(func(c models.Campaign) bool {
		return (f.TruckID == nil || c.TruckID == *f.TruckID) &&
			(f.OwnerID == nil || c.OwnerID == *f.OwnerID) &&
			(f.Status == nil || c.Status == *f.Status)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (m *memCampaigns) ListActive(_ context.Context, truckID string, now time.Time) ([]models.Campaign, error) {
	out := m.all(func(c models.Campaign) bool { return c.TruckID == truckID && c.IsRunning(now) })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *memCampaigns) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	out := m.all(func(c models.Campaign) bool {
		return c.Status == models.CampaignStatusActive && c.EndDate.Before(now)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return page(out, limit, 0), nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}

type memPosts struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.SocialPost
	created   time.Time
	conflicts int
}

func newMemPosts() *memPosts {
	return &memPosts{
		rows:    map[uuid.UUID]models.SocialPost{},
		created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func clonePost(p models.SocialPost) models.SocialPost {
	p.Platforms = slices.Clone(p.Platforms)
	p.Hashtags = slices.Clone(p.Hashtags)
	p.Mentions = slices.Clone(p.Mentions)
	p.Images = slices.Clone(p.Images)
	return p
}

func (m *memPosts) Create(_ context.Context, p *models.SocialPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = m.created.Add(time.Second)
	p.ID = uuid.New()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = m.created, m.created
	m.rows[p.ID] = clonePost(*p)
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id uuid.UUID) (*models.SocialPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, models.NewNotFoundError("post", id)
	}
	out := clonePost(p)
	return &out, nil
}

func (m *memPosts) Update(_ context.Context, p *models.SocialPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[p.ID]
	if !ok {
		return models.NewNotFoundError("post", p.ID)
	}
	if m.conflicts > 0 {
		m.conflicts--
		stored.Version++
		m.rows[p.ID] = stored
		return models.NewConflictError("post", p.ID)
	}
	if stored.Version != p.Version {
		return models.NewConflictError("post", p.ID)
	}
	p.Version++
	m.rows[p.ID] = clonePost(*p)
	return nil
}

func (m *memPosts) all(keep func(models.SocialPost) bool) []models.SocialPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SocialPost{}
	for _, p := range m.rows {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	return out
}

func (m *memPosts) List(_ context.Context, f repositories.PostFilter) ([]models.SocialPost, error) {
	out := m.all(func(p models.SocialPost) bool {
		statusOK := p.Status != models.PostStatusDeleted
		if f.Status != nil {
			statusOK = p.Status == *f.Status
		}
		return statusOK &&
			(f.TruckID == nil || p.TruckID == *f.TruckID) &&
			(f.OwnerID == nil || p.OwnerID == *f.OwnerID) &&
			(f.CampaignID == nil || (p.CampaignID != nil && *p.CampaignID == *f.CampaignID)) &&
			(f.IsTemplate == nil || p.IsTemplate == *f.IsTemplate)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (m *memPosts) ListScheduled(_ context.Context, truckID string, start, end time.Time) ([]models.SocialPost, error) {
	out := m.all(func(p models.SocialPost) bool {
		return p.TruckID == truckID && p.Status == models.PostStatusScheduled && p.ScheduledTime != nil &&
			!p.ScheduledTime.Before(start) && !p.ScheduledTime.After(end)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(*out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(*out[j].ScheduledTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *memPosts) ListTemplates(_ context.Context, truckID string, category *string) ([]models.SocialPost, error) {
	out := m.all(func(p models.SocialPost) bool {
		return p.TruckID == truckID && p.IsTemplate && p.Status != models.PostStatusDeleted &&
			(category == nil || (p.TemplateCategory != nil && *p.TemplateCategory == *category))
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memPosts) ListIDsByCampaign(_ context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	out := m.all(func(p models.SocialPost) bool {
		return p.CampaignID != nil && *p.CampaignID == campaignID && p.Status != models.PostStatusDeleted
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	ids := make([]uuid.UUID, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Log(_ context.Context, e models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) GetByEntity(_ context.Context, entityType string, id uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AuditLog{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == id {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	campaigns *memCampaigns
	posts     *memPosts
	audit     *memAudit
	events    *recordingPublisher
	cs        *CampaignService
	ps        *PostService
	now       time.Time
}

var testNow = time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		campaigns: newMemCampaigns(),
		posts:     newMemPosts(),
		audit:     &memAudit{},
		events:    &recordingPublisher{},
		now:       testNow,
	}
	cfg := &config.Config{ConflictRetries: 5, SweepBatchSize: 2}
	log := zap.NewNop()
	f.cs = NewCampaignService(f.campaigns, f.posts, f.audit, f.events, cfg, log)
	f.ps = NewPostService(f.posts, f.cs, f.audit, f.events, cfg, log)
	clock := func() time.Time { return f.now }
	f.cs.now = clock
	f.ps.now = clock
	return f
}

const testOwner = "owner-1"

var owner = OwnerActor(testOwner)
