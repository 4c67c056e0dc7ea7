package eventbus

import "testing"

func TestSubscribe_ReceivesOnlyOwnTaskEvents(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("task-1")
	defer unsubscribe()

	b.Publish("task-2", "started", nil)
	b.Publish("task-1", "started", "hello")

	select {
	case evt := <-ch:
		if evt.TaskID != "task-1" || evt.Type != "started" || evt.Payload != "hello" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	default:
		t.Fatal("expected an event on the channel")
	}

	select {
	case evt := <-ch:
		t.Fatalf("unexpected second event: %+v", evt)
	default:
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("task-1")
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestUnsubscribeAll_ClosesEverySubscriber(t *testing.T) {
	b := New()
	ch1, _ := b.Subscribe("task-1")
	ch2, _ := b.Subscribe("task-1")

	b.UnsubscribeAll("task-1")

	if _, ok := <-ch1; ok {
		t.Fatal("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatal("expected ch2 closed")
	}
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	b := New()
	b.Publish("task-none", "started", nil) // must not panic
}

func TestPublish_DoesNotBlockOnFullBuffer(t *testing.T) {
	b := New()
	_, unsubscribe := b.Subscribe("task-1")
	defer unsubscribe()

	for i := 0; i < 100; i++ {
		b.Publish("task-1", "tick", i) // must never block even once buffer fills
	}
}
