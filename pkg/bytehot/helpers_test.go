package bytehot

import (
	"fmt"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func makeEvents(n int, types ...string) []Event {
	events := make([]Event, n)
	for i := range events {
		t := "ClassFileChanged"
		if i < len(types) {
			t = types[i]
		}
		events[i] = Event{
			EventID:          fmt.Sprintf("evt-%d", i),
			EventType:        t,
			AggregateType:    "hotswap",
			AggregateID:      "com.example.Service",
			AggregateVersion: int64(i + 1),
			Timestamp:        testNow.Add(-time.Duration(n-i) * time.Second),
		}
	}
	return events
}

func testErrorContext() *ErrorContext {
	ec := fallbackErrorContext(testNow)
	ec.ThreadName = "main"
	ec.ThreadState = "running"
	ec.Memory = MemoryInfo{TotalHeap: 1000, UsedHeap: 500, MaxHeap: 2000, FreeHeap: 500, GCCount: 3, GCTimeMs: 12}
	ec.StackTrace = []StackFrame{
		{Function: "github.com/example/app.(*Service).Reload", File: "/src/app/service.go", Line: 42},
		{Function: "github.com/example/app.main", File: "/src/app/main.go", Line: 10},
	}
	return ec
}

func testSnapshot(events []Event, props map[string]string) *EventSnapshot {
	return &EventSnapshot{
		SnapshotID:         "0123456789abcdef-snapshot",
		CapturedAt:         testNow,
		Events:             events,
		EnvironmentContext: map[string]string{"timestamp": formatInstant(testNow)},
		ThreadName:         "main",
		SystemProperties:   props,
		PerformanceMetrics: map[string]any{},
	}
}

func testSnapshotError(cause error, events []Event, props map[string]string) *SnapshotError {
	return WrapSnapshotError(cause, testSnapshot(events, props), testErrorContext())
}
