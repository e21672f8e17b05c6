package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces/mocks"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

func TestDispatcherDeliversToHubWithoutPublisher(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("u1", models.RoleUser)
	defer sub.Close()

	d := NewDispatcher(Config{Hub: hub})
	d.NotifyAccount(context.Background(), "u1", testEvent(events.KindTransactionUpdate))

	assert.Equal(t, events.KindTransactionUpdate, (<-sub.C).Kind)
	assert.Zero(t, d.Dropped())
}

func TestDispatcherPublishesToTopics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mocks.NewMockEventPublisher(ctrl)
	d := NewDispatcher(Config{Publisher: publisher, TopicPrefix: "banking"})

	done := make(chan struct{}, 2)
	publisher.EXPECT().
		Publish(gomock.Any(), "banking.user-events", "u1", testEvent(events.KindTransactionUpdate)).
		Do(func(context.Context, string, string, any) { done <- struct{}{} }).
		Return(nil)
	publisher.EXPECT().
		Publish(gomock.Any(), "banking.admin-events", "admins", testEvent(events.KindTransactionProcessed)).
		Do(func(context.Context, string, string, any) { done <- struct{}{} }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	d.NotifyAccount(ctx, "u1", testEvent(events.KindTransactionUpdate))
	d.NotifyAdmins(ctx, testEvent(events.KindTransactionProcessed))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("event was not published")
		}
	}
	cancel()
	<-stopped
}

func TestDispatcherCountsPublishFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mocks.NewMockEventPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("broker down")).Times(3)

	d := NewDispatcher(Config{Publisher: publisher})
	for i := 0; i < 3; i++ {
		d.NotifyAdmins(context.Background(), testEvent(events.KindNewTransaction))
	}

	// a cancelled Run drains what is queued
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.EqualValues(t, 3, d.PublishFailures())
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mocks.NewMockEventPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	d := NewDispatcher(Config{Publisher: publisher, QueueSize: 2})
	for i := 0; i < 5; i++ {
		d.NotifyAccount(context.Background(), "u1", testEvent(events.KindTransactionUpdate))
	}
	assert.EqualValues(t, 3, d.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
}
