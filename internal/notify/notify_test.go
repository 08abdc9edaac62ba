package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatest_LastPublishWins(t *testing.T) {
	var l Latest[int]
	_, ok := l.Get()
	assert.False(t, ok)

	ch, cancel := l.Subscribe()
	defer cancel()

	l.Publish(1)
	l.Publish(2)
	l.Publish(3)

	assert.Equal(t, 3, <-ch, "slow subscriber only sees the newest value")
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}

	v, ok := l.Get()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLatest_SubscribeReceivesCurrentAndCancelCloses(t *testing.T) {
	var l Latest[string]
	l.Publish("hello")

	ch, cancel := l.Subscribe()
	assert.Equal(t, "hello", <-ch)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	l.Publish("after cancel")
}

func TestLoading_CountsAndNeverGoesNegative(t *testing.T) {
	var l Loading
	ch, cancel := l.Subscribe()
	defer cancel()

	l.End()
	assert.Equal(t, 0, l.InFlight())

	l.Begin()
	assert.True(t, <-ch)
	l.Begin()
	assert.Equal(t, 2, l.InFlight())

	l.End()
	assert.True(t, l.Active())
	select {
	case v := <-ch:
		t.Fatalf("unexpected transition %v while still busy", v)
	default:
	}

	l.End()
	assert.False(t, <-ch)
	assert.False(t, l.Active())

	l.End()
	assert.Equal(t, 0, l.InFlight())
}

func TestLoading_Concurrent(t *testing.T) {
	var l Loading
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Begin()
			l.End()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, l.InFlight())
}

func TestNotices_AutoClearBySeverity(t *testing.T) {
	n := NewNotices(300*time.Millisecond, 20*time.Millisecond)

	n.Info("saved draft")
	assert.Equal(t, "saved draft", n.Current().Message)
	assert.Equal(t, SeverityInfo, n.Current().Severity)
	require.Eventually(t, func() bool { return n.Current().Empty() }, time.Second, 5*time.Millisecond)

	n.Error("save failed")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "save failed", n.Current().Message, "errors stay up longer")
	require.Eventually(t, func() bool { return n.Current().Empty() }, time.Second, 5*time.Millisecond)
}

func TestNotices_NewNoticeCancelsPreviousTimer(t *testing.T) {
	n := NewNotices(150*time.Millisecond, 150*time.Millisecond)

	n.Warning("first")
	time.Sleep(100 * time.Millisecond)
	n.Success("second")
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, "second", n.Current().Message, "the first timer must not clear the second notice")
	assert.Equal(t, SeveritySuccess, n.Current().Severity)

	n.Clear()
	assert.True(t, n.Current().Empty())
}

func TestNotices_Defaults(t *testing.T) {
	n := NewNotices(0, -1)
	assert.Equal(t, DefaultErrorTTL, n.errorTTL)
	assert.Equal(t, DefaultNoticeTTL, n.otherTTL)

	n.Show("plain", "")
	assert.Equal(t, SeverityInfo, n.Current().Severity)
	n.Clear()
}

func TestConfirmer_ResolveAnswersWaiter(t *testing.T) {
	var c Confirmer
	prompts, cancel := c.Subscribe()
	defer cancel()

	result := make(chan bool, 1)
	go func() {
		ok, err := c.Ask(context.Background(), "Delete license?")
		assert.NoError(t, err)
		result <- ok
	}()

	p := <-prompts
	require.True(t, p.Open)
	assert.Equal(t, "Delete license?", p.Text)

	_, err := c.Ask(context.Background(), "second")
	assert.ErrorIs(t, err, ErrConfirmPending)

	assert.True(t, c.Resolve(true))
	assert.True(t, <-result)
	assert.False(t, (<-prompts).Open)

	assert.False(t, c.Resolve(false), "nothing pending")
}

func TestConfirmer_ContextCancelReleasesSlot(t *testing.T) {
	var c Confirmer
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Ask(ctx, "Discard changes?")
		done <- err
	}()

	require.Eventually(t, func() bool { _, ok := c.Pending(); return ok }, time.Second, time.Millisecond)
	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	_, ok := c.Pending()
	assert.False(t, ok)
	assert.False(t, c.Resolve(true))
}
