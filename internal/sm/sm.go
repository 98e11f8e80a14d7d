// Copyright 2024 The HSS Monitor authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sm implements a table-driven state machine engine and the
// cooperative scheduler that advances a fixed set of machines in
// lockstep on the monitor hart.
//
// Handlers must not block: all waiting is expressed by remaining in a
// state and being re-entered on the next scheduler tick.
package sm

import (
	"k8s.io/klog/v2"
)

// StateID indexes a machine's state descriptor table.
type StateID int

// InvalidState marks a machine that has not yet entered any state.
const InvalidState StateID = -1

// StateDesc describes a single state. Any of the three callbacks may be
// nil. OnEntry runs once when the state is entered, OnExit once when it
// is left by transition, Handler on every scheduler tick spent in the
// state.
type StateDesc struct {
	Name    string
	OnEntry func()
	OnExit  func()
	Handler func()
}

// Machine is a single cooperative state machine. A machine changes
// state only by calling SetState; the transition callbacks run when the
// scheduler next steps the machine.
type Machine struct {
	Name string

	// StartTime is a state-scoped timestamp, managed by the state
	// callbacks themselves.
	StartTime uint64

	// ExecutionCount counts handler invocations since reset.
	ExecutionCount uint64

	Descs []StateDesc
	Debug bool

	state StateID
	prev  StateID
}

// New returns a machine seated in the given initial state. The initial
// state's OnEntry does not run; the machine starts as if it had always
// been there.
func New(name string, descs []StateDesc, initial StateID) *Machine {
	return &Machine{
		Name:  name,
		Descs: descs,
		state: initial,
		prev:  initial,
	}
}

// State returns the machine's current state.
func (m *Machine) State() StateID {
	return m.state
}

// SetState assigns the machine's next state. The previous state's
// OnExit and the new state's OnEntry run when the scheduler next steps
// the machine, not here.
func (m *Machine) SetState(s StateID) {
	m.state = s
}

// StateName returns the name of the machine's current state.
func (m *Machine) StateName() string {
	if m.state < 0 || int(m.state) >= len(m.Descs) {
		return "invalid"
	}

	return m.Descs[m.state].Name
}

// Step advances the machine by one tick: if a transition is pending the
// previous state's OnExit and the current state's OnEntry run first,
// then the current state's handler.
func (m *Machine) Step() {
	if m.state != m.prev {
		if m.Debug {
			klog.V(2).Infof("%s: [%s] -> [%s]", m.Name, m.Descs[m.prev].Name, m.Descs[m.state].Name)
		}

		if exit := m.Descs[m.prev].OnExit; exit != nil {
			exit()
		}

		if entry := m.Descs[m.state].OnEntry; entry != nil {
			entry()
		}

		m.prev = m.state
	}

	if handler := m.Descs[m.state].Handler; handler != nil {
		handler()
	}

	m.ExecutionCount++
}

// Scheduler advances a fixed table of machines round-robin. Starvation
// is avoided because the machine table never changes and every handler
// performs a bounded unit of work.
type Scheduler struct {
	machines []*Machine
	ticks    uint64
}

// NewScheduler returns a scheduler over the given machine table.
func NewScheduler(machines []*Machine) *Scheduler {
	return &Scheduler{machines: machines}
}

// Tick steps every machine once, in table order.
func (s *Scheduler) Tick() {
	for _, m := range s.machines {
		m.Step()
	}

	s.ticks++
}

// Ticks returns the number of completed scheduler rounds.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// RunUntil ticks the scheduler until done reports true or maxTicks
// rounds have elapsed, returning whether done was reached.
func (s *Scheduler) RunUntil(done func() bool, maxTicks uint64) bool {
	for i := uint64(0); i < maxTicks; i++ {
		if done() {
			return true
		}

		s.Tick()
	}

	return done()
}
