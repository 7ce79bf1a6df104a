package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fixedClock はテスト用に時刻を固定・前進させる
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func newTestLimiter(rps float64, burst int) (*Limiter, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(rps, burst)
	l.now = clock.now
	return l, clock
}

func TestAllowBurst(t *testing.T) {
	l, clock := newTestLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("%d 回目のリクエストが拒否されました", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("burst を超えたリクエストが許可されました")
	}

	// 別のクライアントは影響を受けない
	if !l.Allow("10.0.0.2") {
		t.Error("別クライアントのリクエストが拒否されました")
	}

	// 1秒経過するとトークンが1つ回復する
	clock.t = clock.t.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("トークン回復後のリクエストが拒否されました")
	}
	if l.Allow("10.0.0.1") {
		t.Error("回復したトークン以上のリクエストが許可されました")
	}
}

func TestSweep(t *testing.T) {
	l, clock := newTestLimiter(10, 10)

	l.Allow("old")
	clock.t = clock.t.Add(10 * time.Minute)
	l.Allow("new")

	if removed := l.Sweep(5 * time.Minute); removed != 1 {
		t.Errorf("破棄数が一致しません: got %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("残りのキー数が一致しません: got %d, want 1", l.Len())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond, time.Minute)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run がキャンセル後に終了しませんでした")
	}
}
