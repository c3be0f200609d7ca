package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/food-truck-finder/backend/internal/events"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func validCampaignInput() CreateCampaignInput {
	return CreateCampaignInput{
		TruckID:   "truck-1",
		Name:      "Taco Tuesday",
		Type:      models.CampaignTypePromotion,
		StartDate: day(1),
		EndDate:   day(11),
		Platforms: []string{models.PlatformInstagram, models.PlatformFacebook},
	}
}

func mustCreateCampaign(t *testing.T, f *fixture, mutate func(*CreateCampaignInput)) *models.Campaign {
	t.Helper()
	in := validCampaignInput()
	if mutate != nil {
		mutate(&in)
	}
	c, err := f.cs.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return c
}

func TestCreateCampaignDefaults(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)

	assert.Equal(t, models.CampaignStatusDraft, c.Status)
	assert.Equal(t, testOwner, c.OwnerID)
	assert.Equal(t, "USD", c.Budget.Currency)
	assert.Empty(t, c.PostIDs)
	assert.Equal(t, models.CampaignAnalytics{}, c.Analytics)
	assert.Equal(t, []string{"campaign_created"}, f.audit.actions())
}

func TestCreateCampaignValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateCampaignInput)
		field  string
	}{
		{"missing name", func(in *CreateCampaignInput) { in.Name = "" }, "name"},
		{"missing truck", func(in *CreateCampaignInput) { in.TruckID = "" }, "truck_id"},
		{"bad type", func(in *CreateCampaignInput) { in.Type = "flash-sale" }, "type"},
		{"bad status", func(in *CreateCampaignInput) { in.Status = "archived" }, "status"},
		{"missing start", func(in *CreateCampaignInput) { in.StartDate = time.Time{} }, "start_date"},
		{"end before start", func(in *CreateCampaignInput) { in.EndDate = day(1).Add(-time.Hour) }, "end_date"},
		{"duplicate platform", func(in *CreateCampaignInput) {
			in.Platforms = []string{models.PlatformInstagram, models.PlatformInstagram}
		}, "platforms"},
		{"unknown platform", func(in *CreateCampaignInput) { in.Platforms = []string{"myspace"} }, "platforms[0]"},
		{"negative spend", func(in *CreateCampaignInput) { in.Budget.Spent = -1 }, "budget.spent"},
		{"name too long", func(in *CreateCampaignInput) {
			b := make([]rune, 201)
			for i := range b {
				b[i] = 'x'
			}
			in.Name = string(b)
		}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := validCampaignInput()
			tt.mutate(&in)

			_, err := f.cs.Create(context.Background(), owner, in)
			require.ErrorIs(t, err, models.ErrValidation)
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateCampaignSameDayWindow(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, func(in *CreateCampaignInput) { in.EndDate = in.StartDate })
	assert.Equal(t, c.StartDate, c.EndDate)
}

func TestCreateCampaignRequiresOwner(t *testing.T) {
	f := newFixture()
	_, err := f.cs.Create(context.Background(), Actor{Type: models.ActorOwner}, validCampaignInput())
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetCampaignHidesOtherOwners(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)

	_, err := f.cs.Get(context.Background(), c.ID, OwnerActor("someone-else"))
	assert.ErrorIs(t, err, models.ErrNotFound)

	got, err := f.cs.Get(context.Background(), c.ID, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestUpdateAnalyticsShallowMerge(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, func(in *CreateCampaignInput) {
		in.Budget = models.CampaignBudget{Total: 500, Spent: 200}
	})

	reach, clicks := int64(1000), int64(40)
	_, err := f.cs.UpdateAnalytics(context.Background(), c.ID, models.CampaignAnalyticsPatch{
		TotalReach:  &reach,
		TotalClicks: &clicks,
	})
	require.NoError(t, err)

	engagement, revenue := int64(150), 500.0
	got, err := f.cs.UpdateAnalytics(context.Background(), c.ID, models.CampaignAnalyticsPatch{
		TotalEngagement: &engagement,
		Revenue:         &revenue,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), got.Analytics.TotalReach, "unpatched field keeps prior value")
	assert.Equal(t, int64(40), got.Analytics.TotalClicks)
	assert.Equal(t, int64(150), got.Analytics.TotalEngagement)
	assert.InDelta(t, 150.0, got.Analytics.ROI, 1e-9)
	require.NotNil(t, got.Analytics.LastUpdated)
	assert.Equal(t, testNow, *got.Analytics.LastUpdated)

	stored, err := f.campaigns.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Analytics, stored.Analytics)
}

func TestUpdateAnalyticsROIUnchangedWithoutSpend(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)

	revenue := 900.0
	got, err := f.cs.UpdateAnalytics(context.Background(), c.ID, models.CampaignAnalyticsPatch{Revenue: &revenue})
	require.NoError(t, err)
	assert.Zero(t, got.Analytics.ROI)
}

func TestUpdateAnalyticsRetriesConflicts(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)
	f.campaigns.conflicts = 3

	reach := int64(7)
	got, err := f.cs.UpdateAnalytics(context.Background(), c.ID, models.CampaignAnalyticsPatch{TotalReach: &reach})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Analytics.TotalReach)
}

func TestUpdateAnalyticsGivesUpAfterRetries(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)
	f.campaigns.conflicts = 100

	reach := int64(7)
	_, err := f.cs.UpdateAnalytics(context.Background(), c.ID, models.CampaignAnalyticsPatch{TotalReach: &reach})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, 95, f.campaigns.conflicts, "five attempts were made")
}

func TestUpdateAnalyticsConcurrentMergesKeepEveryField(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)
	f.cs.retries = 100

	var wg sync.WaitGroup
	vals := []int64{11, 22, 33}
	for i, v := range vals {
		wg.Add(1)
		go func(i int, v int64) {
			defer wg.Done()
			var p models.CampaignAnalyticsPatch
			switch i {
			case 0:
				p.TotalReach = &v
			case 1:
				p.TotalEngagement = &v
			case 2:
				p.TotalClicks = &v
			}
			_, err := f.cs.UpdateAnalytics(context.Background(), c.ID, p)
			assert.NoError(t, err)
		}(i, v)
	}
	wg.Wait()

	got, err := f.campaigns.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Analytics.TotalReach)
	assert.Equal(t, int64(22), got.Analytics.TotalEngagement)
	assert.Equal(t, int64(33), got.Analytics.TotalClicks)
}

func TestUpdateAnalyticsRejectsNegative(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)

	reach := int64(-1)
	_, err := f.cs.UpdateAnalytics(context.Background(), c.ID, models.CampaignAnalyticsPatch{TotalReach: &reach})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateAnalyticsUnknownCampaign(t *testing.T) {
	f := newFixture()
	_, err := f.cs.UpdateAnalytics(context.Background(), uuid.New(), models.CampaignAnalyticsPatch{})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddPostIsIdempotent(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)
	postID := uuid.New()

	_, err := f.cs.AddPost(context.Background(), c.ID, postID)
	require.NoError(t, err)
	got, err := f.cs.AddPost(context.Background(), c.ID, postID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{postID}, got.PostIDs)
	assert.Equal(t, 1, got.Analytics.TotalPosts)
}

func TestAddPostConcurrent(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for range 3 {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := f.cs.AddPost(context.Background(), c.ID, id)
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	got, err := f.campaigns.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, got.PostIDs, len(ids))
	assert.ElementsMatch(t, ids, got.PostIDs)
	assert.Equal(t, len(ids), got.Analytics.TotalPosts)
}

func TestAddPostUnknownCampaign(t *testing.T) {
	f := newFixture()
	_, err := f.cs.AddPost(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRemovePost(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)
	a, b := uuid.New(), uuid.New()
	_, _ = f.cs.AddPost(context.Background(), c.ID, a)
	_, _ = f.cs.AddPost(context.Background(), c.ID, b)

	got, err := f.cs.RemovePost(context.Background(), c.ID, a)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, got.PostIDs)
	assert.Equal(t, 1, got.Analytics.TotalPosts)

	got, err = f.cs.RemovePost(context.Background(), c.ID, a)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Analytics.TotalPosts, "removing an absent post changes nothing")
}

func TestGetActiveCampaigns(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	early := mustCreateCampaign(t, f, func(in *CreateCampaignInput) { in.Status = models.CampaignStatusActive })
	late := mustCreateCampaign(t, f, func(in *CreateCampaignInput) {
		in.Status = models.CampaignStatusActive
		in.StartDate = day(3)
	})
	mustCreateCampaign(t, f, nil) // draft
	mustCreateCampaign(t, f, func(in *CreateCampaignInput) {
		in.Status = models.CampaignStatusActive
		in.TruckID = "truck-2"
	})
	mustCreateCampaign(t, f, func(in *CreateCampaignInput) {
		in.Status = models.CampaignStatusActive
		in.StartDate, in.EndDate = day(20), day(25)
	})

	got, err := f.cs.GetActiveCampaigns(ctx, "truck-1", day(6))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)

	got, err = f.cs.GetActiveCampaigns(ctx, "truck-1", day(11))
	require.NoError(t, err)
	assert.Len(t, got, 2, "end date is inclusive")

	_, err = f.cs.GetActiveCampaigns(ctx, "", day(6))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestChangeStatus(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		wantErr bool
	}{
		{models.CampaignStatusDraft, models.CampaignStatusActive, false},
		{models.CampaignStatusDraft, models.CampaignStatusPaused, true},
		{models.CampaignStatusActive, models.CampaignStatusPaused, false},
		{models.CampaignStatusPaused, models.CampaignStatusActive, false},
		{models.CampaignStatusActive, models.CampaignStatusDraft, true},
		{models.CampaignStatusCompleted, models.CampaignStatusActive, true},
		{models.CampaignStatusCancelled, models.CampaignStatusDraft, true},
		{models.CampaignStatusActive, "archived", true},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			f := newFixture()
			c := mustCreateCampaign(t, f, func(in *CreateCampaignInput) { in.Status = tt.from })

			got, err := f.cs.ChangeStatus(context.Background(), c.ID, owner, tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrValidation)
				assert.Empty(t, f.events.types())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.Equal(t, []string{events.EventCampaignStatusChanged}, f.events.types())
		})
	}
}

func TestChangeStatusSameStatusIsNoop(t *testing.T) {
	f := newFixture()
	c := mustCreateCampaign(t, f, nil)

	got, err := f.cs.ChangeStatus(context.Background(), c.ID, owner, models.CampaignStatusDraft)
	require.NoError(t, err)
	assert.Equal(t, c.Version, got.Version)
	assert.Empty(t, f.events.types())
}

func TestUpdateCampaign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := mustCreateCampaign(t, f, nil)

	name := "Burrito Blitz"
	end := day(20)
	got, err := f.cs.Update(ctx, c.ID, owner, UpdateCampaignInput{Name: &name, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, end, got.EndDate)
	assert.Equal(t, c.Type, got.Type)

	early := day(1).Add(-48 * time.Hour)
	_, err = f.cs.Update(ctx, c.ID, owner, UpdateCampaignInput{EndDate: &early})
	assert.ErrorIs(t, err, models.ErrValidation, "merged window is re-validated")

	paused := models.CampaignStatusPaused
	_, err = f.cs.Update(ctx, c.ID, owner, UpdateCampaignInput{Status: &paused})
	assert.ErrorIs(t, err, models.ErrValidation, "draft cannot be paused")

	_, err = f.cs.Update(ctx, c.ID, OwnerActor("intruder"), UpdateCampaignInput{Name: &name})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteCampaign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := mustCreateCampaign(t, f, nil)

	require.NoError(t, f.cs.Delete(ctx, c.ID, owner))
	_, err := f.cs.Get(ctx, c.ID, owner)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, f.cs.Delete(ctx, c.ID, owner), models.ErrNotFound)
}

func TestCompleteExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	expired := mustCreateCampaign(t, f, func(in *CreateCampaignInput) {
		in.Status = models.CampaignStatusActive
		in.StartDate, in.EndDate = day(1), day(3)
	})
	running := mustCreateCampaign(t, f, func(in *CreateCampaignInput) { in.Status = models.CampaignStatusActive })
	pausedExpired := mustCreateCampaign(t, f, func(in *CreateCampaignInput) {
		in.Status = models.CampaignStatusPaused
		in.StartDate, in.EndDate = day(1), day(2)
	})

	n, err := f.cs.CompleteExpired(ctx, day(6))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.campaigns.GetByID(ctx, expired.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	got, _ = f.campaigns.GetByID(ctx, running.ID)
	assert.Equal(t, models.CampaignStatusActive, got.Status)
	got, _ = f.campaigns.GetByID(ctx, pausedExpired.ID)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)

	n, err = f.cs.CompleteExpired(ctx, day(6))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcilePosts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := mustCreateCampaign(t, f, nil)

	// Linking fails, leaving the campaign unaware of both posts.
	f.campaigns.addErr = models.NewStorageError("campaign.add_post", assert.AnError)
	p1, err := f.ps.Create(ctx, owner, CreatePostInput{TruckID: "truck-1", CampaignID: &c.ID, Text: "one"})
	require.NoError(t, err)
	p2, err := f.ps.Create(ctx, owner, CreatePostInput{TruckID: "truck-1", CampaignID: &c.ID, Text: "two"})
	require.NoError(t, err)
	f.campaigns.addErr = nil

	// A stray id that no post points at.
	_, err = f.cs.AddPost(ctx, c.ID, uuid.New())
	require.NoError(t, err)

	got, err := f.cs.ReconcilePosts(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p1.ID, p2.ID}, got.PostIDs)
	assert.Equal(t, 2, got.Analytics.TotalPosts)

	version := got.Version
	again, err := f.cs.ReconcilePosts(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, version, again.Version, "reconciling a consistent campaign writes nothing")
}

// linkDuringList links a fresh post to the campaign right after the first
// ListIDsByCampaign returns, so the rebuilt set is already stale.
type linkDuringList struct {
	*memPosts
	once sync.Once
	link func()
}

func (l *linkDuringList) ListIDsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := l.memPosts.ListIDsByCampaign(ctx, campaignID)
	l.once.Do(l.link)
	return ids, err
}

func TestReconcilePostsKeepsConcurrentlyLinkedPost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := mustCreateCampaign(t, f, nil)

	f.campaigns.addErr = models.NewStorageError("campaign.add_post", assert.AnError)
	unlinked, err := f.ps.Create(ctx, owner, CreatePostInput{TruckID: "truck-1", CampaignID: &c.ID, Text: "unlinked"})
	require.NoError(t, err)
	f.campaigns.addErr = nil

	var late *models.SocialPost
	f.cs.posts = &linkDuringList{
		memPosts: f.posts,
		link: func() {
			p, err := f.ps.Create(ctx, owner, CreatePostInput{TruckID: "truck-1", CampaignID: &c.ID, Text: "late"})
			require.NoError(t, err)
			late = p
		},
	}

	got, err := f.cs.ReconcilePosts(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, late)
	assert.Equal(t, []uuid.UUID{unlinked.ID, late.ID}, got.PostIDs)
	assert.Equal(t, 2, got.Analytics.TotalPosts)

	stored, err := f.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{unlinked.ID, late.ID}, stored.PostIDs)
}

func TestReconcilePostsGivesUpAfterRetries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := mustCreateCampaign(t, f, nil)

	f.campaigns.addErr = models.NewStorageError("campaign.add_post", assert.AnError)
	_, err := f.ps.Create(ctx, owner, CreatePostInput{TruckID: "truck-1", CampaignID: &c.ID, Text: "unlinked"})
	require.NoError(t, err)
	f.campaigns.addErr = nil

	// Every listing is followed by another link, so the version never holds.
	f.cs.posts = &bumpOnList{memPosts: f.posts, bump: func() {
		_, err := f.cs.AddPost(ctx, c.ID, uuid.New())
		require.NoError(t, err)
	}}

	_, err = f.cs.ReconcilePosts(ctx, c.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}

type bumpOnList struct {
	*memPosts
	bump func()
}

func (b *bumpOnList) ListIDsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := b.memPosts.ListIDsByCampaign(ctx, campaignID)
	b.bump()
	return ids, err
}

func TestReconcileAll(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for range 5 {
		c := mustCreateCampaign(t, f, nil)
		_, err := f.cs.AddPost(ctx, c.ID, uuid.New())
		require.NoError(t, err)
	}

	n, err := f.cs.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all, err := f.campaigns.List(ctx, repositories.CampaignFilter{Limit: 100})
	require.NoError(t, err)
	for _, c := range all {
		assert.Empty(t, c.PostIDs)
		assert.Zero(t, c.Analytics.TotalPosts)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := mustCreateCampaign(t, f, nil)
	_, err := f.cs.ChangeStatus(ctx, c.ID, owner, models.CampaignStatusActive)
	require.NoError(t, err)

	logs, err := f.cs.History(ctx, c.ID, owner, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "campaign_status_changed", logs[0].Action)
	assert.Equal(t, "campaign_created", logs[1].Action)
}
