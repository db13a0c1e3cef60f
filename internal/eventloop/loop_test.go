package eventloop

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDrainRunsTasksInOrder(t *testing.T) {
	loop := New(quietLogger())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		loop.Post(func() { order = append(order, i) })
	}
	// A task posted from inside a task runs in the same drain.
	loop.Post(func() {
		loop.Post(func() { order = append(order, 3) })
	})

	if ran := loop.Drain(); ran != 5 {
		t.Errorf("Expected 5 tasks to run, got %d", ran)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("Expected ordered execution, got %v", order)
		}
	}
	if len(order) != 4 {
		t.Errorf("Expected 4 recorded tasks, got %d", len(order))
	}
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	loop := New(quietLogger())

	reached := false
	loop.Post(func() { panic("boom") })
	loop.Post(func() { reached = true })
	loop.Drain()

	if !reached {
		t.Error("Expected task after panic to run")
	}
}

func TestCallWaitsForRunningLoop(t *testing.T) {
	loop := New(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	value := 0
	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()
	if err := loop.Call(callCtx, func() { value = 42 }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if value != 42 {
		t.Errorf("Expected 42, got %d", value)
	}
}

func TestCallHonoursContext(t *testing.T) {
	loop := New(quietLogger())

	// Nobody drives the loop, so the call can only end through its context.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Call(ctx, func() {}); err == nil {
		t.Error("Expected context error when loop is not running")
	}
}
