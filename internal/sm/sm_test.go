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

package sm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	stateA StateID = iota
	stateB
)

func TestCallbackOrder(t *testing.T) {
	var trace []string

	rec := func(s string) func() {
		return func() {
			trace = append(trace, s)
		}
	}

	m := New("test", []StateDesc{
		stateA: {Name: "A", OnEntry: rec("A.entry"), OnExit: rec("A.exit"), Handler: rec("A.handler")},
		stateB: {Name: "B", OnEntry: rec("B.entry"), OnExit: rec("B.exit"), Handler: rec("B.handler")},
	}, stateA)

	// The initial state's OnEntry does not run.
	m.Step()

	m.SetState(stateB)

	// The transition callbacks run on the next step, not at SetState.
	if diff := cmp.Diff([]string{"A.handler"}, trace); diff != "" {
		t.Fatalf("trace after first step (-want +got):\n%s", diff)
	}

	m.Step()

	want := []string{"A.handler", "A.exit", "B.entry", "B.handler"}

	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace after transition (-want +got):\n%s", diff)
	}

	m.Step()

	want = append(want, "B.handler")

	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace while settled (-want +got):\n%s", diff)
	}

	if m.ExecutionCount != 3 {
		t.Errorf("ExecutionCount %d, want 3", m.ExecutionCount)
	}
}

func TestTransitionFromHandler(t *testing.T) {
	var entries int

	m := New("test", []StateDesc{
		stateA: {Name: "A", Handler: func() {}},
		stateB: {Name: "B", OnEntry: func() { entries++ }, Handler: func() {}},
	}, stateA)

	m.Descs[stateA].Handler = func() { m.SetState(stateB) }

	m.Step()

	if m.State() != stateB {
		t.Fatalf("state %s, want B", m.StateName())
	}

	if entries != 0 {
		t.Fatal("OnEntry ran before the next step")
	}

	m.Step()

	if entries != 1 {
		t.Fatalf("OnEntry ran %d times, want 1", entries)
	}
}

func TestSchedulerRoundRobin(t *testing.T) {
	var trace []string

	mk := func(name string) *Machine {
		m := New(name, []StateDesc{
			stateA: {Name: "A"},
		}, stateA)
		m.Descs[stateA].Handler = func() { trace = append(trace, name) }

		return m
	}

	s := NewScheduler([]*Machine{mk("m1"), mk("m2"), mk("m3")})

	s.Tick()
	s.Tick()

	want := []string{"m1", "m2", "m3", "m1", "m2", "m3"}

	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("tick order (-want +got):\n%s", diff)
	}

	if s.Ticks() != 2 {
		t.Errorf("Ticks %d, want 2", s.Ticks())
	}
}

func TestRunUntil(t *testing.T) {
	count := 0

	m := New("test", []StateDesc{
		stateA: {Name: "A", Handler: func() { count++ }},
	}, stateA)

	s := NewScheduler([]*Machine{m})

	if !s.RunUntil(func() bool { return count >= 5 }, 100) {
		t.Fatal("RunUntil did not reach the condition")
	}

	if count != 5 {
		t.Errorf("handler ran %d times, want 5", count)
	}

	if s.RunUntil(func() bool { return false }, 3) {
		t.Fatal("RunUntil reported an unreachable condition")
	}
}

func TestIsElapsed(t *testing.T) {
	c := &fakeClock{now: 100}

	if IsElapsed(c, 100, 50) {
		t.Error("elapsed at start")
	}

	c.now = 149

	if IsElapsed(c, 100, 50) {
		t.Error("elapsed one tick early")
	}

	c.now = 150

	if !IsElapsed(c, 100, 50) {
		t.Error("not elapsed at the deadline")
	}
}

type fakeClock struct {
	now uint64
}

func (c *fakeClock) Now() uint64 {
	return c.now
}
