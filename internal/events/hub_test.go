package events

import (
	"testing"
	"time"
)

func TestHub(t *testing.T) {
	t.Run("Delivers to every subscriber", func(t *testing.T) {
		hub := NewHub(4)
		a, unsubA := hub.Subscribe()
		b, unsubB := hub.Subscribe()
		defer unsubA()
		defer unsubB()

		hub.Publish(NewEvent(TypeSiteDown, 1, "down", "Shop is DOWN"))

		for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
			select {
			case e := <-ch:
				if e.Message != "Shop is DOWN" || e.SiteID != 1 {
					t.Errorf("Subscriber %s got unexpected event %+v", name, e)
				}
				if e.ID == "" {
					t.Errorf("Subscriber %s got event without ID", name)
				}
			case <-time.After(time.Second):
				t.Errorf("Subscriber %s received nothing", name)
			}
		}
	})

	t.Run("Slow subscriber does not block publish", func(t *testing.T) {
		hub := NewHub(1)
		ch, unsub := hub.Subscribe()
		defer unsub()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 10; i++ {
				hub.Publish(NewEvent(TypeSiteChecked, int64(i), "up", "checked"))
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Publish blocked on a full subscriber")
		}

		if e := <-ch; e.SiteID != 0 {
			t.Errorf("Expected first event to be kept, got site %d", e.SiteID)
		}
	})

	t.Run("Unsubscribe closes channel", func(t *testing.T) {
		hub := NewHub(1)
		ch, unsub := hub.Subscribe()
		if hub.Subscribers() != 1 {
			t.Fatalf("Expected 1 subscriber, got %d", hub.Subscribers())
		}

		unsub()
		unsub()

		if _, ok := <-ch; ok {
			t.Error("Expected channel to be closed")
		}
		if hub.Subscribers() != 0 {
			t.Errorf("Expected 0 subscribers, got %d", hub.Subscribers())
		}

		hub.Publish(NewEvent(TypeNotification, 0, "", "after close"))
	})
}
