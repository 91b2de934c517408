package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/infra/notify"
)

var _ interfaces.EventSink = (*notify.Broker)(nil)

func receive(t *testing.T, ch <-chan *model.DownloadEvent) *model.DownloadEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
		return nil
	}
}

func TestBroker(t *testing.T) {
	ctx := context.Background()

	t.Run("fans out to every subscriber", func(t *testing.T) {
		b := notify.NewBroker()
		ch1, _, cancel1 := b.Subscribe()
		defer cancel1()
		ch2, _, cancel2 := b.Subscribe()
		defer cancel2()
		gt.Equal(t, b.Subscribers(), 2)

		b.Emit(ctx, &model.DownloadEvent{Kind: model.EventCompleted, DownloadID: "a"})

		gt.Equal(t, receive(t, ch1).DownloadID, "a")
		gt.Equal(t, receive(t, ch2).DownloadID, "a")
	})

	t.Run("cancelled subscriber is removed", func(t *testing.T) {
		b := notify.NewBroker()
		_, _, cancel := b.Subscribe()
		cancel()
		cancel()
		gt.Equal(t, b.Subscribers(), 0)

		b.Emit(ctx, &model.DownloadEvent{Kind: model.EventFailed, DownloadID: "a"})
	})

	t.Run("slow subscriber drops progress but keeps terminal events", func(t *testing.T) {
		b := notify.NewBroker(notify.WithBuffer(1))
		ch, _, cancel := b.Subscribe()
		defer cancel()

		b.Emit(ctx, &model.DownloadEvent{Kind: model.EventProgress, DownloadID: "p1"})
		b.Emit(ctx, &model.DownloadEvent{Kind: model.EventProgress, DownloadID: "p2"})

		done := make(chan struct{})
		go func() {
			b.Emit(ctx, &model.DownloadEvent{Kind: model.EventCompleted, DownloadID: "c"})
			close(done)
		}()

		gt.Equal(t, receive(t, ch).DownloadID, "p1")
		gt.Equal(t, receive(t, ch).DownloadID, "c")
		<-done
	})

	t.Run("terminal emit does not block on closed subscriber", func(t *testing.T) {
		b := notify.NewBroker(notify.WithBuffer(1))
		_, _, cancel := b.Subscribe()

		b.Emit(ctx, &model.DownloadEvent{Kind: model.EventCompleted, DownloadID: "a"})

		done := make(chan struct{})
		go func() {
			b.Emit(ctx, &model.DownloadEvent{Kind: model.EventCompleted, DownloadID: "b"})
			close(done)
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("emit blocked after cancel")
		}
	})

	t.Run("stalled subscriber is evicted and does not block others", func(t *testing.T) {
		b := notify.NewBroker(notify.WithBuffer(1), notify.WithSendTimeout(50*time.Millisecond))
		_, evicted, cancelStalled := b.Subscribe()
		defer cancelStalled()
		live, liveEvicted, cancelLive := b.Subscribe()
		defer cancelLive()

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			for {
				select {
				case <-live:
				case <-stop:
					return
				}
			}
		}()

		b.Emit(ctx, &model.DownloadEvent{Kind: model.EventCompleted, DownloadID: "a"})

		done := make(chan struct{})
		go func() {
			b.Emit(ctx, &model.DownloadEvent{Kind: model.EventCompleted, DownloadID: "b"})
			b.Emit(ctx, &model.DownloadEvent{Kind: model.EventFailed, DownloadID: "c"})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("emit blocked on stalled subscriber")
		}

		select {
		case <-evicted:
		default:
			t.Fatal("stalled subscriber should be evicted")
		}
		select {
		case <-liveEvicted:
			t.Fatal("reading subscriber must stay subscribed")
		default:
		}
		gt.Equal(t, b.Subscribers(), 1)
	})
}
