package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/buscaparca/internal/domain/model"
)

func request(reason string) Request {
	return model.RefreshRequest{Reason: reason, RequestedAt: time.Now()}
}

func TestInMemoryQueue(t *testing.T) {
	convey.Convey("Given a default queue", t, func() {
		q := NewInMemoryQueue()
		ctx := context.Background()

		convey.Convey("It starts empty with room for one request", func() {
			convey.So(q.Len(), convey.ShouldEqual, 0)
			ok, err := q.Enqueue(ctx, request(model.RefreshEventThreshold))
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(q.Len(), convey.ShouldEqual, 1)
		})

		convey.Convey("Extra requests coalesce into the pending one", func() {
			for i := 0; i < 5; i++ {
				ok, err := q.Enqueue(ctx, request(model.RefreshManual))
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
			}
			convey.So(q.Len(), convey.ShouldEqual, 1)
		})

		convey.Convey("Requests yields the pending request and frees the slot", func() {
			_, _ = q.Enqueue(ctx, request(model.RefreshPeriodic))

			select {
			case r := <-q.Requests():
				convey.So(r.Reason, convey.ShouldEqual, model.RefreshPeriodic)
			case <-time.After(time.Second):
				t.Fatal("no request delivered")
			}
			convey.So(q.Len(), convey.ShouldEqual, 0)

			ok, err := q.Enqueue(ctx, request(model.RefreshManual))
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(q.Len(), convey.ShouldEqual, 1)
		})

		convey.Convey("Nothing leaves the queue until it is received", func() {
			_, _ = q.Enqueue(ctx, request(model.RefreshPeriodic))
			_ = q.Requests()
			time.Sleep(10 * time.Millisecond)
			convey.So(q.Len(), convey.ShouldEqual, 1)
		})

		convey.Convey("A closed queue refuses requests and ends the consumer", func() {
			_, _ = q.Enqueue(ctx, request(model.RefreshManual))
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)

			_, err := q.Enqueue(ctx, request(model.RefreshManual))
			convey.So(errors.Is(err, ErrClosed), convey.ShouldBeTrue)

			var got []Request
			for r := range q.Requests() {
				got = append(got, r)
			}
			convey.So(len(got), convey.ShouldEqual, 1)
		})

		convey.Convey("A cancelled context is reported", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := q.Enqueue(cctx, request(model.RefreshManual))
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a queue without coalescing", t, func() {
		q := NewInMemoryQueue(WithCapacity(2), WithCoalescing(false))
		ctx := context.Background()

		convey.Convey("Overflow is rejected", func() {
			for i := 0; i < 2; i++ {
				ok, _ := q.Enqueue(ctx, request(model.RefreshManual))
				convey.So(ok, convey.ShouldBeTrue)
			}
			ok, err := q.Enqueue(ctx, request(model.RefreshManual))
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(q.Len(), convey.ShouldEqual, 2)
		})
	})
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if ok, err := q.Enqueue(ctx, request(model.RefreshEventThreshold)); !ok || err != nil {
					t.Errorf("enqueue failed: ok=%v err=%v", ok, err)
				}
			}
		}()
	}
	wg.Wait()

	if l := q.Len(); l != 1 {
		t.Errorf("expected one pending request, got %d", l)
	}
	_ = q.Close()
}
