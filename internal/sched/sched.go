// Package sched provides a cooperative timer queue for the control loop.
// This package has NO external dependencies and never blocks or spawns
// goroutines. Time is always injectable via time.Time parameters.
package sched

import "time"

// Callback is invoked from Tick with the tick's time.
// Callbacks must not block: the scheduler has no preemption, so a slow
// callback stalls every other timer and all I/O handled by the loop.
type Callback func(now time.Time)

type task struct {
	due      time.Time
	interval time.Duration // 0 = one-shot
	fn       Callback
	seq      uint64
}

// Scheduler is a single-threaded timer queue. It is driven by calling
// Tick from the main loop; it owns no goroutines and is not safe for
// concurrent use.
type Scheduler struct {
	tasks []*task
	seq   uint64
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// ScheduleOnce registers fn to run once, delay after now.
func (s *Scheduler) ScheduleOnce(now time.Time, delay time.Duration, fn Callback) {
	s.seq++
	s.tasks = append(s.tasks, &task{due: now.Add(delay), fn: fn, seq: s.seq})
}

// ScheduleRepeating registers fn to run every interval, first firing
// interval after now. Repeating tasks re-arm from the time they fire,
// not from the original deadline, so a delayed loop drifts instead of
// building a backlog of catch-up firings.
func (s *Scheduler) ScheduleRepeating(now time.Time, interval time.Duration, fn Callback) {
	s.seq++
	s.tasks = append(s.tasks, &task{due: now.Add(interval), interval: interval, fn: fn, seq: s.seq})
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Tick runs every task whose due time has elapsed, in the order the
// tasks became due. One-shot tasks are removed before their callback
// runs, so a callback may schedule new work without re-triggering
// itself within the same tick. Tasks scheduled during Tick run on a
// later tick even if already due.
func (s *Scheduler) Tick(now time.Time) {
	var due []*task
	remaining := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	s.tasks = remaining

	// Order by due time; seq breaks ties so equal deadlines fire in
	// registration order.
	for i := 1; i < len(due); i++ {
		for j := i; j > 0; j-- {
			a, b := due[j-1], due[j]
			if b.due.Before(a.due) || (b.due.Equal(a.due) && b.seq < a.seq) {
				due[j-1], due[j] = b, a
			} else {
				break
			}
		}
	}

	for _, t := range due {
		if t.interval > 0 {
			t.due = now.Add(t.interval)
			s.tasks = append(s.tasks, t)
		}
		t.fn(now)
	}
}
