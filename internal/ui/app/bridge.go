// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender receives forwarded messages. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// DefaultBridgeBuffer is the number of messages a Bridge queues before Send
// blocks.
const DefaultBridgeBuffer = 64

// Bridge queues messages from background goroutines and forwards them to a
// Sender in order. Send never waits on the program's event loop, so it may be
// called from code that Update itself invoked.
type Bridge struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewBridge creates a bridge with the given queue size.
func NewBridge(buffer int) *Bridge {
	if buffer <= 0 {
		buffer = DefaultBridgeBuffer
	}
	return &Bridge{
		ch:   make(chan tea.Msg, buffer),
		done: make(chan struct{}),
	}
}

// Send queues msg. It drops msg once the bridge is closed.
func (b *Bridge) Send(msg tea.Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

// Run forwards queued messages to s until Close is called.
func (b *Bridge) Run(s Sender) {
	for {
		select {
		case msg := <-b.ch:
			s.Send(msg)
		case <-b.done:
			return
		}
	}
}

// Close stops Run and discards queued messages.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}
