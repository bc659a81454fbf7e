package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/luckyjet/go-prediction-backend/internal/platform"
)

func TestPartition(t *testing.T) {
	ids := make([]int64, 65)
	for i := range ids {
		ids[i] = int64(i)
	}

	chunks := partition(ids, 30)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 30 || len(chunks[1]) != 30 || len(chunks[2]) != 5 {
		t.Fatalf("chunk sizes = %d/%d/%d, want 30/30/5", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunks[2][4] != 64 {
		t.Fatalf("order not preserved: last element = %d", chunks[2][4])
	}

	if partition(nil, 30) != nil {
		t.Fatal("empty input should yield no chunks")
	}
	if got := partition(ids[:3], 30); len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("short input should yield one short chunk, got %v", got)
	}
}

func newTestBroadcast(t *testing.T, members ...int64) *BroadcastService {
	t.Helper()
	status := make(map[int64]string, len(members))
	for _, id := range members {
		status[id] = platform.StatusMember
	}
	return &BroadcastService{
		Eligibility: newTestEligibility(newTestGateway(t), &stubChecker{status: status}, 0),
		BatchSize:   2,
		Interval:    0, // no pacing in tests
		Log:         zerolog.Nop(),
	}
}

func TestBroadcast_FiltersIneligibleCandidates(t *testing.T) {
	svc := newTestBroadcast(t, 1, 3)
	sender := &stubSender{}

	success, failure, err := svc.Broadcast(context.Background(), []int64{1, 2, 3, 4},
		platform.Payload{Kind: platform.KindText, Text: "hi"}.SendVia(sender))
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if success != 2 || failure != 0 {
		t.Fatalf("success/failure = %d/%d, want 2/0", success, failure)
	}
	if len(sender.sent) != 2 || sender.sent[0] != 1 || sender.sent[1] != 3 {
		t.Fatalf("delivered to %v, want [1 3]", sender.sent)
	}
}

func TestBroadcast_FailedSendDoesNotAbortRun(t *testing.T) {
	svc := newTestBroadcast(t, 1, 2, 3, 4, 5)
	sender := &stubSender{failOn: map[int64]bool{2: true, 4: true}}

	success, failure, err := svc.Broadcast(context.Background(), []int64{1, 2, 3, 4, 5},
		platform.Payload{Kind: platform.KindText, Text: "hi"}.SendVia(sender))
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if success != 3 || failure != 2 {
		t.Fatalf("success/failure = %d/%d, want 3/2", success, failure)
	}
}

func TestBroadcast_CanceledContextAbortsEarly(t *testing.T) {
	svc := newTestBroadcast(t, 1, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Broadcast(ctx, []int64{1, 2, 3}, func(context.Context, int64) error {
		t.Fatal("send must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
