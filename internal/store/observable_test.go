// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObservable(t *testing.T) {
	o := NewObservable(1)

	var seen []int
	unsubscribe := o.Subscribe(func(v int) { seen = append(seen, v) })
	assert.Equal(t, []int{1}, seen, "subscribe delivers the current value")

	o.Set(2)
	assert.Equal(t, 3, o.Update(func(v int) int { return v + 1 }))

	v, changed := o.UpdateIf(func(v int) (int, bool) { return 100, false })
	assert.False(t, changed)
	assert.Equal(t, 3, v)

	unsubscribe()
	unsubscribe()
	o.Set(4)

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 4, o.Get())
}

func TestObservable_SubscriberMayReenter(t *testing.T) {
	o := NewObservable(0)
	var got int
	o.Subscribe(func(v int) {
		// Runs outside the lock, so reading back is safe.
		got = o.Get()
	})
	o.Set(7)
	assert.Equal(t, 7, got)
}

func TestObservable_ConcurrentUpdates(t *testing.T) {
	o := NewObservable(0)
	var mu sync.Mutex
	calls, last := 0, 0
	o.Subscribe(func(v int) {
		mu.Lock()
		calls++
		last = v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, o.Get())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, last, "subscriber ends on the latest value")
	assert.LessOrEqual(t, calls, 51)
}

func TestObservable_SlowSubscriberEndsOnLatest(t *testing.T) {
	o := NewObservable(0)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []int
	o.Subscribe(func(v int) {
		if v == 1 {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	first := make(chan struct{})
	go func() {
		defer close(first)
		o.Set(1)
	}()
	<-entered

	// Returns at once; the goroutine blocked in the subscriber delivers it.
	o.Set(2)
	close(release)
	<-first

	assert.Equal(t, 2, o.Get())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestObservable_SubscriberMaySet(t *testing.T) {
	o := NewObservable(0)
	var seen []int
	o.Subscribe(func(v int) {
		seen = append(seen, v)
		if v == 1 {
			o.Set(2)
		}
	})

	o.Set(1)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 2, o.Get())
}

func TestObservable_PanickingSubscriberReleasesDelivery(t *testing.T) {
	o := NewObservable(0)
	unsubscribe := o.Subscribe(func(v int) {
		if v == 1 {
			panic("boom")
		}
	})
	assert.Panics(t, func() { o.Set(1) })
	unsubscribe()

	var got int
	o.Subscribe(func(v int) { got = v })
	o.Set(3)
	assert.Equal(t, 3, got)
}
