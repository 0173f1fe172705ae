package schedule

import (
	"testing"
	"time"
)

func TestRunDueOrdersByDeadline(t *testing.T) {
	s := New()
	base := time.Unix(1000, 0)

	var order []string
	s.At(base.Add(3*time.Second), func(time.Time) { order = append(order, "third") })
	s.At(base.Add(1*time.Second), func(time.Time) { order = append(order, "first") })
	s.At(base.Add(2*time.Second), func(time.Time) { order = append(order, "second") })

	n := s.RunDue(base.Add(5 * time.Second))
	if n != 3 {
		t.Fatalf("got %d due, want 3", n)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order[%d] = %q, want %q (full: %v)", i, order[i], w, order)
		}
	}
}

func TestRunDueLeavesFutureTasksPending(t *testing.T) {
	s := New()
	base := time.Unix(1000, 0)

	ran := false
	s.After(base, 10*time.Second, func(time.Time) { ran = true })

	if n := s.RunDue(base.Add(5 * time.Second)); n != 0 {
		t.Fatalf("expected 0 due, got %d", n)
	}
	if ran {
		t.Fatal("task ran before its deadline")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", s.Len())
	}

	if n := s.RunDue(base.Add(10 * time.Second)); n != 1 {
		t.Fatalf("expected 1 due, got %d", n)
	}
	if !ran {
		t.Fatal("task did not run at its deadline")
	}
}

func TestNextDeadline(t *testing.T) {
	s := New()
	if _, ok := s.NextDeadline(); ok {
		t.Fatal("expected no deadline on empty heap")
	}

	base := time.Unix(2000, 0)
	s.At(base.Add(5*time.Second), func(time.Time) {})
	s.At(base.Add(1*time.Second), func(time.Time) {})

	d, ok := s.NextDeadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if !d.Equal(base.Add(1 * time.Second)) {
		t.Fatalf("got %v, want %v", d, base.Add(1*time.Second))
	}
}
