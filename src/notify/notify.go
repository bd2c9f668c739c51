// Package notify fans events out to involved parties. Delivery is best
// effort: failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"log"
	"spruce/src/db"
	"spruce/src/lib"
	"spruce/src/models"
	"spruce/src/types"
	"sync"

	"firebase.google.com/go/v4/messaging"
)

type Notifier interface {
	Send(ctx context.Context, userID uint, eventType string, payload types.JSONB)
}

// Dispatcher persists a Notification row and pushes through FCM and
// Pusher. Every channel is independent; one failing does not stop the
// others.
type Dispatcher struct{}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Send(ctx context.Context, userID uint, eventType string, payload types.JSONB) {
	go d.persist(userID, eventType, payload)
	go d.pushFCM(ctx, userID, eventType, payload)
	go d.pushChannel(userID, eventType, payload)
}

func (d *Dispatcher) persist(userID uint, eventType string, payload types.JSONB) {
	db := db.GetDb()
	n := models.Notification{
		UserID:    userID,
		EventType: eventType,
		Title:     eventType,
		Body:      &payload,
	}
	if err := db.Create(&n).Error; err != nil {
		log.Printf("[notify] Error persisting notification for user %d: %s\n", userID, err.Error())
	}
}

func (d *Dispatcher) pushFCM(ctx context.Context, userID uint, eventType string, payload types.JSONB) {
	var user models.User
	if err := db.GetDb().
		Model(&models.User{}).
		Where(&models.User{ID: userID}).
		First(&user).
		Error; err != nil {
		log.Printf("[notify] Could not resolve user %d: %s\n", userID, err.Error())
		return
	}
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	token := rd.JSONGet(context.Background(), fmt.Sprintf("%s:fcm", user.UID), "$.token").Val()
	if token == "" {
		return
	}
	fcm, err := lib.GetFirebaseMessaging()
	if err != nil {
		log.Printf("[notify] FCM unavailable: %s\n", err.Error())
		return
	}
	data := map[string]string{"event": eventType}
	for k, v := range payload {
		data[k] = fmt.Sprint(v)
	}
	_, err = fcm.Send(context.Background(), &messaging.Message{
		Token: token,
		Data:  data,
	})
	if err != nil {
		log.Printf("[notify] Error sending FCM message to user %d: %s\n", userID, err.Error())
	}
}

func (d *Dispatcher) pushChannel(userID uint, eventType string, payload types.JSONB) {
	client := lib.GetPusherClient()
	channel := fmt.Sprintf("user_%d", userID)
	if err := client.Trigger(channel, eventType, payload); err != nil {
		log.Printf("[notify] Error pushing to channel %s: %s\n", channel, err.Error())
	}
}

// Recorder collects events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	UserID    uint
	EventType string
	Payload   types.JSONB
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, userID uint, eventType string, payload types.JSONB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, RecordedEvent{UserID: userID, EventType: eventType, Payload: payload})
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events)
}
