package services

import (
	"context"
	"errors"
	"testing"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/testutil"
	"github.com/campusride/api-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("{{sender}} sent you {{points}} points{{missing}}", map[string]interface{}{
		"sender": "Ana",
		"points": 15,
	})
	assert.Equal(t, "Ana sent you 15 points{{missing}}", out)
}

func TestSendUsesChannels(t *testing.T) {
	db := testutil.NewDB(t)
	pusher := &recordingPusher{}
	mailer := &recordingMailer{}
	events := &recordingPublisher{}
	svc := NewNotificationService(db, pusher, mailer, events, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "Nina")

	n, err := svc.Send(ctx, user.ID, NotificationInput{
		Type: NotificationPointsReceived,
		Data: map[string]interface{}{"sender": "Ana", "points": 15},
	})
	require.NoError(t, err)
	assert.Equal(t, "You received 15 points", n.Title)
	assert.Equal(t, "Ana sent you 15 points.", n.Message)
	assert.Equal(t, PriorityNormal, n.Priority)
	assert.Equal(t, 1, pusher.count(UserRoom(user.ID), "notification"))
	assert.Empty(t, mailer.sent)
	assert.Equal(t, []string{"campusride.notifications.points_received"}, events.subjects)

	_, err = svc.Send(ctx, user.ID, NotificationInput{
		Type:     NotificationSystemAnnouncement,
		Data:     map[string]interface{}{"title": "Closed", "message": "Snow day"},
		Channels: []string{models.ChannelEmail},
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, user.Email, mailer.sent[0].To)
	assert.Equal(t, "Closed", mailer.sent[0].Subject)

	var stored int64
	db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&stored)
	assert.Equal(t, int64(1), stored, "email-only notifications are not persisted")

	_, err = svc.Send(ctx, user.ID, NotificationInput{})
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)
}

func TestSendSurvivesMailFailure(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewNotificationService(db, nil, &recordingMailer{err: errors.New("smtp down")}, nil, nil)
	user := testutil.CreateUser(t, db, "Milo")

	_, err := svc.Send(context.Background(), user.ID, NotificationInput{
		Type:     NotificationRankChanged,
		Data:     map[string]interface{}{"rank": 3},
		Channels: []string{models.ChannelDatabase, models.ChannelEmail},
	})
	assert.NoError(t, err)
}

func TestListMarkAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewNotificationService(db, nil, nil, nil, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "Lena")
	other := testutil.CreateUser(t, db, "Otto")

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := svc.Send(ctx, user.ID, NotificationInput{Type: NotificationRankChanged, Data: map[string]interface{}{"rank": i + 1}})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	_, err := svc.Send(ctx, user.ID, NotificationInput{Type: NotificationActivityNew, Data: map[string]interface{}{"title": "Hack"}})
	require.NoError(t, err)

	list, err := svc.List(ctx, user.ID, NotificationQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), list.Total)
	assert.Equal(t, int64(4), list.UnreadCount)
	assert.Len(t, list.Notifications, 2)

	require.NoError(t, svc.MarkRead(ctx, user.ID, ids[0]))
	err = svc.MarkRead(ctx, other.ID, ids[1])
	assert.Equal(t, 404, appErr(t, err).Status, "other users cannot touch the row")

	unread := false
	list, err = svc.List(ctx, user.ID, NotificationQuery{Type: NotificationRankChanged, IsRead: &unread})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)

	marked, err := svc.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, svc.Delete(ctx, user.ID, ids[2]))
	assert.Equal(t, 404, appErr(t, svc.Delete(ctx, user.ID, ids[2])).Status)
}

func TestBroadcastReachesActiveUsers(t *testing.T) {
	db := testutil.NewDB(t)
	pusher := &recordingPusher{}
	svc := NewNotificationService(db, pusher, nil, nil, nil)
	testutil.CreateUser(t, db, "Ada")
	testutil.CreateUser(t, db, "Bea")
	testutil.CreateUser(t, db, "Cal", testutil.Inactive())

	stored, err := svc.Broadcast(context.Background(), NotificationInput{
		Type: NotificationSystemAnnouncement,
		Data: map[string]interface{}{"title": "Maintenance", "message": "Tonight at 2am"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	assert.Equal(t, 1, pusher.count("*", "broadcast_notification"))

	var n int64
	db.Model(&models.Notification{}).Where("title = ?", "Maintenance").Count(&n)
	assert.Equal(t, int64(2), n)
}

func TestSendBatchCountsFailures(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewNotificationService(db, nil, nil, nil, nil)
	a := testutil.CreateUser(t, db, "Abe")
	b := testutil.CreateUser(t, db, "Bo")

	sent, failed := svc.SendBatch(context.Background(), []string{a.ID, b.ID}, NotificationInput{
		Type: NotificationRankChanged, Data: map[string]interface{}{"rank": 1},
	})
	assert.Equal(t, 2, sent)
	assert.Zero(t, failed)

	sent, failed = svc.SendBatch(context.Background(), []string{a.ID}, NotificationInput{})
	assert.Zero(t, sent)
	assert.Equal(t, 1, failed)
}
