// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "sync"

// Observable holds a value and notifies subscribers when it changes.
//
// Values are treated as immutable snapshots: an update function must build a
// new slice instead of modifying the one it was handed, since subscribers may
// still be reading it.
//
// One goroutine delivers at a time. An update made while another goroutine is
// delivering is handed to that goroutine, which re-reads the current value
// before it returns. Subscribers therefore always end on the latest value,
// though intermediate values may be skipped under contention.
type Observable[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[uint64]func(T)
	nextID uint64

	delivering bool // a goroutine is running subscribers
	dirty      bool // value or subscribers changed during delivery
}

// NewObservable returns an observable holding initial.
func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial, subs: make(map[uint64]func(T))}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set replaces the value and notifies subscribers.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	o.value = v
	o.publishLocked()
}

// Update applies fn to the current value under the lock and notifies
// subscribers with the result.
func (o *Observable[T]) Update(fn func(T) T) T {
	v, _ := o.UpdateIf(func(cur T) (T, bool) { return fn(cur), true })
	return v
}

// UpdateIf is Update for conditional changes. When fn reports false the value
// is left alone and nobody is notified.
func (o *Observable[T]) UpdateIf(fn func(T) (T, bool)) (T, bool) {
	o.mu.Lock()
	next, changed := fn(o.value)
	if !changed {
		cur := o.value
		o.mu.Unlock()
		return cur, false
	}
	o.value = next
	o.publishLocked()
	return next, true
}

// Subscribe calls fn with the current value and again after every change.
// The first call happens before Subscribe returns unless another goroutine is
// delivering, in which case that goroutine makes it. The returned function
// removes the subscription.
func (o *Observable[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn

	if o.delivering {
		o.dirty = true
		o.mu.Unlock()
	} else {
		o.delivering = true
		cur := o.value
		o.mu.Unlock()
		o.run(func() { fn(cur) })
		o.mu.Lock()
		o.drainLocked()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// publishLocked delivers the current value, or hands it to the goroutine
// already delivering. Called with mu held; returns with it released.
func (o *Observable[T]) publishLocked() {
	if o.delivering {
		o.dirty = true
		o.mu.Unlock()
		return
	}
	o.delivering = true
	o.dirty = true
	o.drainLocked()
}

// drainLocked delivers until no change arrived during the last round.
// Called with mu held and delivering set; returns with mu released.
func (o *Observable[T]) drainLocked() {
	for o.dirty {
		o.dirty = false
		v := o.value
		subs := o.snapshotSubsLocked()
		o.mu.Unlock()
		o.run(func() { notify(subs, v) })
		o.mu.Lock()
	}
	o.delivering = false
	o.mu.Unlock()
}

// run calls deliver and releases the delivering role if a subscriber panics.
func (o *Observable[T]) run(deliver func()) {
	ok := false
	defer func() {
		if !ok {
			o.mu.Lock()
			o.delivering = false
			o.dirty = false
			o.mu.Unlock()
		}
	}()
	deliver()
	ok = true
}

func (o *Observable[T]) snapshotSubsLocked() []func(T) {
	if len(o.subs) == 0 {
		return nil
	}
	subs := make([]func(T), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify[T any](subs []func(T), v T) {
	for _, fn := range subs {
		fn(v)
	}
}
