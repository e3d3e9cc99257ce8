package hooks_test

import (
	"testing"
	"time"

	"github.com/pixelforge/imgcore/hooks"
)

func TestInMemoryMetricsAccumulates(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	m.RecordProcessingTime("decode", 10*time.Millisecond)
	m.RecordProcessingTime("decode", 30*time.Millisecond)
	m.RecordProcessingTime("encode", 5*time.Millisecond)
	m.RecordError("encode", "boom")
	m.RecordThroughput(1024)
	m.RecordMemory(2048)

	snap := m.Snapshot()
	if snap.OpCalls["decode"] != 2 {
		t.Fatalf("OpCalls[decode] = %d, want 2", snap.OpCalls["decode"])
	}
	if snap.OpDurationsMs["decode"] != 40 {
		t.Fatalf("OpDurationsMs[decode] = %d, want 40", snap.OpDurationsMs["decode"])
	}
	if snap.OpErrors["encode"] != 1 {
		t.Fatalf("OpErrors[encode] = %d, want 1", snap.OpErrors["encode"])
	}
	if snap.TotalThroughputB != 1024 {
		t.Fatalf("TotalThroughputB = %d, want 1024", snap.TotalThroughputB)
	}
	if snap.TotalMemoryB != 2048 {
		t.Fatalf("TotalMemoryB = %d, want 2048", snap.TotalMemoryB)
	}
}

func TestSnapshotIsIndependentOfLaterRecords(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	m.RecordProcessingTime("resize", 1*time.Millisecond)
	snap := m.Snapshot()

	m.RecordProcessingTime("resize", 100*time.Millisecond)

	if snap.OpCalls["resize"] != 1 {
		t.Fatalf("earlier snapshot mutated: OpCalls[resize] = %d, want 1", snap.OpCalls["resize"])
	}
}
