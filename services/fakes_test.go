package services

import (
	"context"
	"sync"

	"github.com/campusride/api-go/models"
)

type pushed struct {
	Target  string
	Event   string
	Payload interface{}
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushed
}

func (p *recordingPusher) SendToUser(userID, event string, payload interface{}) {
	p.record(UserRoom(userID), event, payload)
}

func (p *recordingPusher) SendToRoom(room, event string, payload interface{}) {
	p.record(room, event, payload)
}

func (p *recordingPusher) Broadcast(event string, payload interface{}) {
	p.record("*", event, payload)
}

func (p *recordingPusher) record(target, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{Target: target, Event: event, Payload: payload})
}

func (p *recordingPusher) count(target, event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Target == target && e.Event == event {
			n++
		}
	}
	return n
}

type sentNotification struct {
	UserID string
	Input  NotificationInput
}

type recordingNotifier struct {
	mu         sync.Mutex
	sent       []sentNotification
	broadcasts []NotificationInput
	err        error
}

func (n *recordingNotifier) Send(_ context.Context, userID string, in NotificationInput) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Input: in})
	return &models.Notification{UserID: userID, Type: in.Type}, nil
}

func (n *recordingNotifier) Broadcast(_ context.Context, in NotificationInput) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, in)
	return 0, nil
}

func (n *recordingNotifier) types(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s.Input.Type)
		}
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []MailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}
