// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import "sync"

// eventLoop is a single-goroutine serial executor. Every connection owns
// exactly one; all of the connection's session-handler state is touched
// only from tasks running on its loop, which is what makes the handshake
// state machine lock-free. Hook continuations resolved on foreign
// goroutines are re-posted here before they read or write any state.
type eventLoop struct {
	tasks chan func()

	quitOnce sync.Once
	quit     chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		tasks: make(chan func(), 128),
		quit:  make(chan struct{}),
	}
}

// run executes posted tasks until stop is called. It is started once per
// connection and owns all handler state for that connection.
func (l *eventLoop) run() {
	for {
		// Drain-free shutdown: once stopped, never run another task even
		// if the tasks channel is ready.
		select {
		case <-l.quit:
			return
		default:
		}
		select {
		case <-l.quit:
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Post schedules fn on the loop and reports whether it was accepted.
// Tasks posted after stop are dropped: the connection is gone and only
// close-path continuations still care, which the caller handles.
func (l *eventLoop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	case l.tasks <- fn:
		return true
	}
}

// stop terminates the loop after the currently running task, dropping
// any queued tasks. Safe to call from a task on the loop itself and safe
// to call more than once.
func (l *eventLoop) stop() {
	l.quitOnce.Do(func() { close(l.quit) })
}
