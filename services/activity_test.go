package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/testutil"
	"github.com/campusride/api-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type activityFixture struct {
	db        *gorm.DB
	svc       *ActivityService
	points    *PointsService
	pusher    *recordingPusher
	notifier  *recordingNotifier
	clock     *testutil.Clock
	organizer *models.User
}

func newActivityFixture(t *testing.T) *activityFixture {
	db := testutil.NewDB(t)
	f := &activityFixture{
		db:       db,
		pusher:   &recordingPusher{},
		notifier: &recordingNotifier{},
		clock:    testutil.NewClock(time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)),
	}
	f.points = NewPointsService(db, f.notifier, f.pusher, nil, nil)
	f.points.Now = f.clock.Now
	f.svc = NewActivityService(db, f.points, f.notifier, f.pusher, nil)
	f.svc.Now = f.clock.Now
	f.organizer = testutil.CreateUser(t, db, "Olga")
	return f
}

func (f *activityFixture) input(start time.Time) CreateActivityInput {
	return CreateActivityInput{
		Title:     "Robotics Workshop",
		Category:  models.CategoryTechnology,
		Type:      models.TypeWorkshop,
		Location:  "Upson Hall 142",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}
}

// published creates and publishes an activity starting 48 hours after the fixture clock.
func (f *activityFixture) published(t *testing.T, mutate func(*CreateActivityInput)) *models.Activity {
	t.Helper()
	in := f.input(f.clock.Now().Add(48 * time.Hour))
	if mutate != nil {
		mutate(&in)
	}
	ctx := context.Background()
	activity, err := f.svc.Create(ctx, f.organizer.ID, in)
	require.NoError(t, err)
	activity, err = f.svc.Publish(ctx, activity.ID, f.organizer.ID)
	require.NoError(t, err)
	return activity
}

func (f *activityFixture) reload(t *testing.T, id string) *models.Activity {
	t.Helper()
	var a models.Activity
	require.NoError(t, f.db.First(&a, "id = ?", id).Error)
	return &a
}

func TestCreateActivityValidation(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	past := f.input(now.Add(-time.Hour))
	_, err := f.svc.Create(ctx, f.organizer.ID, past)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	inverted := f.input(now.Add(time.Hour))
	inverted.EndTime = inverted.StartTime.Add(-time.Minute)
	_, err = f.svc.Create(ctx, f.organizer.ID, inverted)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	late := f.input(now.Add(time.Hour))
	deadline := late.StartTime
	late.RegistrationDeadline = &deadline
	_, err = f.svc.Create(ctx, f.organizer.ID, late)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	badCategory := f.input(now.Add(time.Hour))
	badCategory.Category = "gaming"
	_, err = f.svc.Create(ctx, f.organizer.ID, badCategory)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	unverified := testutil.CreateUser(t, f.db, "Ursula", testutil.Unverified())
	_, err = f.svc.Create(ctx, unverified.ID, f.input(now.Add(time.Hour)))
	assert.Equal(t, 403, appErr(t, err).Status)

	activity, err := f.svc.Create(ctx, f.organizer.ID, f.input(now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, models.ActivityDraft, activity.Status)
	assert.Len(t, activity.CheckinCode, CheckinCodeLength)
	assert.Contains(t, activity.Slug, "robotics-workshop-")
}

func TestCreateActivityConcurrencyCap(t *testing.T) {
	f := newActivityFixture(t)
	for i := 0; i < MaxConcurrentActivities; i++ {
		f.published(t, nil)
	}
	_, err := f.svc.Create(context.Background(), f.organizer.ID, f.input(f.clock.Now().Add(time.Hour)))
	ae := appErr(t, err)
	assert.Equal(t, 409, ae.Status)
	assert.Equal(t, utils.CodeConflict, ae.Code)
}

func TestPublishOnlyFromDraft(t *testing.T) {
	f := newActivityFixture(t)
	activity := f.published(t, nil)
	assert.Equal(t, models.ActivityPublished, activity.Status)
	require.Len(t, f.notifier.broadcasts, 1)
	assert.Equal(t, NotificationActivityNew, f.notifier.broadcasts[0].Type)

	_, err := f.svc.Publish(context.Background(), activity.ID, f.organizer.ID)
	assert.Equal(t, 409, appErr(t, err).Status)

	stranger := testutil.CreateUser(t, f.db, "Sam")
	_, err = f.svc.Publish(context.Background(), activity.ID, stranger.ID)
	assert.Equal(t, 403, appErr(t, err).Status)
}

func TestGetHidesCheckinCodeFromParticipants(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, nil)
	viewer := testutil.CreateUser(t, f.db, "Vera")
	_, err := f.svc.Register(ctx, activity.ID, viewer.ID)
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, activity.ID, viewer.ID)
	require.NoError(t, err)
	assert.Empty(t, view.CheckinCode)
	assert.True(t, view.IsRegistered)
	require.NotNil(t, view.Organizer)
	assert.Equal(t, f.organizer.ID, view.Organizer.ID)

	own, err := f.svc.Get(ctx, activity.ID, f.organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, activity.CheckinCode, own.CheckinCode)
	assert.Equal(t, 2, own.ViewCount)
}

func TestRegisterDeductsEntryFee(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, func(in *CreateActivityInput) { in.EntryFeePoints = 20 })
	user := testutil.CreateUser(t, f.db, "Paula", testutil.WithPoints(50))

	p, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationRegistered, p.Status)
	assert.Equal(t, models.PaymentPaid, p.PaymentStatus)
	assert.Equal(t, int64(20), p.PointsPaid)
	assert.Equal(t, int64(30), testutil.Balance(t, f.db, user.ID))
	assert.Equal(t, 1, f.reload(t, activity.ID).CurrentParticipants)

	_, err = f.svc.Register(ctx, activity.ID, user.ID)
	assert.Equal(t, utils.CodeAlreadyExists, appErr(t, err).Code)
	assert.Equal(t, int64(30), testutil.Balance(t, f.db, user.ID))
}

func TestRegisterInsufficientPointsRollsBack(t *testing.T) {
	f := newActivityFixture(t)
	activity := f.published(t, func(in *CreateActivityInput) { in.EntryFeePoints = 20 })
	user := testutil.CreateUser(t, f.db, "Poor", testutil.WithPoints(5))

	_, err := f.svc.Register(context.Background(), activity.ID, user.ID)
	assert.Equal(t, utils.CodeInsufficientPoints, appErr(t, err).Code)

	var count int64
	f.db.Model(&models.ActivityParticipation{}).Where("activity_id = ?", activity.ID).Count(&count)
	assert.Zero(t, count)
	assert.Zero(t, f.reload(t, activity.ID).CurrentParticipants)
	assert.Equal(t, int64(5), testutil.Balance(t, f.db, user.ID))
}

func TestRegisterCapacityAndState(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	one := 1
	activity := f.published(t, func(in *CreateActivityInput) { in.MaxParticipants = &one })

	first := testutil.CreateUser(t, f.db, "First")
	second := testutil.CreateUser(t, f.db, "Second")
	_, err := f.svc.Register(ctx, activity.ID, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, activity.ID, second.ID)
	assert.Equal(t, 409, appErr(t, err).Status)

	draft, err := f.svc.Create(ctx, f.organizer.ID, f.input(f.clock.Now().Add(time.Hour)))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, draft.ID, second.ID)
	assert.Equal(t, 409, appErr(t, err).Status)

	f.clock.Advance(49 * time.Hour)
	late := testutil.CreateUser(t, f.db, "Late")
	_, err = f.svc.Register(ctx, activity.ID, late.ID)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)
}

func TestCheckinWindow(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, func(in *CreateActivityInput) { in.RewardPoints = 15 })
	user := testutil.CreateUser(t, f.db, "Chen")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	f.clock.T = activity.StartTime.Add(-31 * time.Minute)
	_, err = f.svc.Checkin(ctx, activity.ID, user.ID, activity.CheckinCode)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	f.clock.T = activity.StartTime.Add(-30 * time.Minute)
	_, err = f.svc.Checkin(ctx, activity.ID, user.ID, "WRONG1")
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	res, err := f.svc.Checkin(ctx, activity.ID, user.ID, "  "+strings.ToLower(activity.CheckinCode))
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.PointsEarned)
	assert.Equal(t, models.ParticipationAttended, res.Participation.Status)
	assert.Equal(t, int64(15), testutil.Balance(t, f.db, user.ID))

	_, err = f.svc.Checkin(ctx, activity.ID, user.ID, activity.CheckinCode)
	assert.Equal(t, 409, appErr(t, err).Status)
	assert.Equal(t, int64(15), testutil.Balance(t, f.db, user.ID), "the reward is paid once")

	err = f.svc.CancelRegistration(ctx, activity.ID, user.ID)
	assert.Equal(t, 409, appErr(t, err).Status)
}

func TestCheckinClosesAtEnd(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, nil)
	user := testutil.CreateUser(t, f.db, "Tardy")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	f.clock.T = activity.EndTime.Add(time.Second)
	_, err = f.svc.Checkin(ctx, activity.ID, user.ID, activity.CheckinCode)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	outsider := testutil.CreateUser(t, f.db, "Outsider")
	f.clock.T = activity.StartTime
	_, err = f.svc.Checkin(ctx, activity.ID, outsider.ID, activity.CheckinCode)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)
}

func TestCancelRegistrationCutoffAndRefund(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, func(in *CreateActivityInput) { in.EntryFeePoints = 10 })
	user := testutil.CreateUser(t, f.db, "Rita", testutil.WithPoints(10))
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), testutil.Balance(t, f.db, user.ID))

	require.NoError(t, f.svc.CancelRegistration(ctx, activity.ID, user.ID))
	assert.Equal(t, int64(10), testutil.Balance(t, f.db, user.ID))
	assert.Zero(t, f.reload(t, activity.ID).CurrentParticipants)

	err = f.svc.CancelRegistration(ctx, activity.ID, user.ID)
	assert.Equal(t, 409, appErr(t, err).Status)

	p, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err, "a cancelled registration can be revived")
	assert.Equal(t, models.ParticipationRegistered, p.Status)

	f.clock.T = activity.StartTime.Add(-23 * time.Hour)
	err = f.svc.CancelRegistration(ctx, activity.ID, user.ID)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)
}

func TestCheckinCodeIsOptional(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, func(in *CreateActivityInput) { in.RewardPoints = 5 })
	require.NotEmpty(t, activity.CheckinCode)
	user := testutil.CreateUser(t, f.db, "Noor")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	f.clock.T = activity.StartTime
	res, err := f.svc.Checkin(ctx, activity.ID, user.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationAttended, res.Participation.Status)
	assert.Equal(t, int64(5), testutil.Balance(t, f.db, user.ID))
}

func TestCancelFreeRegistrationNotifiesUser(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, nil)
	user := testutil.CreateUser(t, f.db, "Ivo")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelRegistration(ctx, activity.ID, user.ID))
	assert.Contains(t, f.notifier.types(user.ID), NotificationActivityRegistrationCancelled)
	assert.Equal(t, int64(0), testutil.Balance(t, f.db, user.ID), "nothing to refund")
}

func TestCancelActivityRefundsParticipants(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, func(in *CreateActivityInput) { in.EntryFeePoints = 25 })
	a := testutil.CreateUser(t, f.db, "Ana", testutil.WithPoints(25))
	b := testutil.CreateUser(t, f.db, "Ben", testutil.WithPoints(30))
	for _, u := range []*models.User{a, b} {
		_, err := f.svc.Register(ctx, activity.ID, u.ID)
		require.NoError(t, err)
	}

	cancelled, err := f.svc.Cancel(ctx, activity.ID, f.organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityCancelled, cancelled.Status)
	assert.Equal(t, int64(25), testutil.Balance(t, f.db, a.ID))
	assert.Equal(t, int64(30), testutil.Balance(t, f.db, b.ID))
	assert.Contains(t, f.notifier.types(a.ID), NotificationActivityCancelled)
	assert.Contains(t, f.notifier.types(b.ID), NotificationActivityCancelled)

	var remaining int64
	f.db.Model(&models.ActivityParticipation{}).
		Where("activity_id = ? AND status <> ?", activity.ID, models.ParticipationCancelled).
		Count(&remaining)
	assert.Zero(t, remaining)

	_, err = f.svc.Cancel(ctx, activity.ID, f.organizer.ID)
	assert.Equal(t, 409, appErr(t, err).Status)
}

func TestUpdateActivityTransitions(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, nil)
	user := testutil.CreateUser(t, f.db, "Uma")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	location := "Duffield Atrium"
	updated, err := f.svc.Update(ctx, activity.ID, f.organizer.ID, UpdateActivityInput{Location: &location})
	require.NoError(t, err)
	assert.Equal(t, location, updated.Location)
	assert.Contains(t, f.notifier.types(user.ID), NotificationActivityUpdated)
	assert.Equal(t, 1, f.pusher.count(ActivityRoom(activity.ID), "activity_updated"))

	completed := models.ActivityCompleted
	_, err = f.svc.Update(ctx, activity.ID, f.organizer.ID, UpdateActivityInput{Status: &completed})
	assert.Equal(t, 409, appErr(t, err).Status)

	badEnd := activity.StartTime.Add(-time.Hour)
	_, err = f.svc.Update(ctx, activity.ID, f.organizer.ID, UpdateActivityInput{EndTime: &badEnd})
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)
}

func TestAdvanceStatusesAndReminders(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, nil)
	user := testutil.CreateUser(t, f.db, "Remy")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	f.clock.T = activity.StartTime.Add(-45 * time.Minute)
	sent, err := f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	sent, err = f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "reminders go out once")

	f.clock.T = activity.StartTime.Add(time.Minute)
	started, completed, err := f.svc.AdvanceStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), started)
	assert.Zero(t, completed)
	assert.Equal(t, models.ActivityOngoing, f.reload(t, activity.ID).Status)

	f.clock.T = activity.EndTime.Add(time.Minute)
	_, completed, err = f.svc.AdvanceStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)
	assert.Equal(t, models.ActivityCompleted, f.reload(t, activity.ID).Status)
}

func TestParticipantsAndMyActivities(t *testing.T) {
	f := newActivityFixture(t)
	ctx := context.Background()
	activity := f.published(t, nil)
	user := testutil.CreateUser(t, f.db, "Mia")
	_, err := f.svc.Register(ctx, activity.ID, user.ID)
	require.NoError(t, err)

	parts, err := f.svc.Participants(ctx, activity.ID, f.organizer.ID, "")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.NotNil(t, parts[0].User)
	assert.Equal(t, "Mia", parts[0].User.FirstName)

	_, err = f.svc.Participants(ctx, activity.ID, user.ID, "")
	assert.Equal(t, 403, appErr(t, err).Status)

	mine, err := f.svc.MyActivities(ctx, user.ID, MyActivitiesQuery{Type: "registered"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Total)

	organized, err := f.svc.MyActivities(ctx, f.organizer.ID, MyActivitiesQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), organized.Total)

	found, err := f.svc.Search(ctx, user.ID, ActivitySearchQuery{Q: "robot"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Total)
	_, err = f.svc.Search(ctx, user.ID, ActivitySearchQuery{Q: "r"})
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	listed, err := f.svc.List(ctx, user.ID, ActivityQuery{Category: string(models.CategoryTechnology)})
	require.NoError(t, err)
	require.Len(t, listed.Activities, 1)
	assert.Empty(t, listed.Activities[0].CheckinCode)
}
