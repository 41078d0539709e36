// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"context"
	"sync"
)

// Dispatcher is a minimal, synchronous fan-out Handler.
//
// Subscribers are called in registration order. The first subscriber error
// stops the fan-out for that event and is returned to the caller.
type Dispatcher struct {
	subscribers []Handler
	mu          sync.RWMutex
}

// NewDispatcher creates a dispatcher with the given subscribers.
func NewDispatcher(subs ...Handler) *Dispatcher {
	d := &Dispatcher{subscribers: make([]Handler, 0, 4)}
	for _, s := range subs {
		d.Subscribe(s)
	}
	return d
}

// Subscribe registers a subscriber. Nil subscribers are ignored.
func (d *Dispatcher) Subscribe(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, h)
}

// SubscriberCount returns the number of registered subscribers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *Dispatcher) emit(fn func(Handler) error) error {
	d.mu.RLock()
	subs := d.subscribers
	d.mu.RUnlock()

	for _, sub := range subs {
		if err := fn(sub); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) OnNew(ctx context.Context, s StreamInfo) error {
	return d.emit(func(h Handler) error { return h.OnNew(ctx, s) })
}

func (d *Dispatcher) OnIdentified(ctx context.Context, s StreamInfo, protocol string) error {
	return d.emit(func(h Handler) error { return h.OnIdentified(ctx, s, protocol) })
}

func (d *Dispatcher) OnEnded(ctx context.Context, s StreamInfo, reason Reason) error {
	return d.emit(func(h Handler) error { return h.OnEnded(ctx, s, reason) })
}
