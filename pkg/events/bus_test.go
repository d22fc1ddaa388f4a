package events

import (
	"testing"
	"time"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(NewFlowStart("demo"))

	select {
	case e := <-a:
		if e.Type != FlowStart || e.FlowName != "demo" {
			t.Errorf("subscriber a got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber a")
	}
	select {
	case e := <-b:
		if e.Type != FlowStart {
			t.Errorf("subscriber b got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber b")
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	bus.Publish(NewStepStart("a", "request"))
	bus.Publish(NewStepComplete("a", flowtypes.Null))
	bus.Publish(NewStepStart("b", "request"))

	want := []Type{StepStart, StepComplete, StepStart}
	for i, w := range want {
		select {
		case e := <-sub:
			if e.Type != w {
				t.Fatalf("event %d: got %s, want %s", i, e.Type, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestCloseClosesSubscriberChannels(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Close()

	if _, ok := <-sub; ok {
		t.Error("expected subscriber channel to be closed")
	}
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	bus := NewBus()
	bus.Close()
	sub := bus.Subscribe()
	if _, ok := <-sub; ok {
		t.Error("expected closed channel for late subscriber")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Publish(NewFlowStart("demo")) // must not panic
}

func TestNewStepProgressComputesPercent(t *testing.T) {
	e := NewStepProgress("loop1", 2, 3)
	if e.Iteration != 2 || e.Total != 3 {
		t.Fatalf("got %+v", e)
	}
	want := 200.0 / 3.0
	if diff := e.Percent - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("got percent %v, want %v", e.Percent, want)
	}
}
