package completion

import (
	"reflect"
	"testing"
)

func TestDrainTakesAllAndResets(t *testing.T) {
	b := NewBuffer()
	b.Append(1, "e1")
	b.Append(1, "e2")

	if got := b.Drain(1); !reflect.DeepEqual(got, []string{"e1", "e2"}) {
		t.Fatalf("first drain = %q", got)
	}
	if got := b.Drain(1); len(got) != 0 {
		t.Fatalf("immediate second drain should be empty, got %q", got)
	}
}

func TestDrainBatching(t *testing.T) {
	b := NewBuffer()
	b.Append(7, "e1")

	if got := b.Drain(7); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Fatalf("drain = %q", got)
	}

	b.Append(7, "e2")
	b.Append(7, "e3")

	if got := b.Drain(7); !reflect.DeepEqual(got, []string{"e2", "e3"}) {
		t.Fatalf("second batch = %q, want [e2 e3]", got)
	}
}

func TestDrainUnknownIDIsEmpty(t *testing.T) {
	b := NewBuffer()
	if got := b.Drain(99); len(got) != 0 {
		t.Fatalf("unknown id should drain empty, got %q", got)
	}
}

func TestQueuesAreIndependent(t *testing.T) {
	b := NewBuffer()
	b.Append(1, "a")
	b.Append(2, "b")

	if got := b.Drain(1); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("drain(1) = %q", got)
	}
	if got := b.Drain(2); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("drain(2) = %q", got)
	}
}

func TestCancelAllMarksOutstandingIDs(t *testing.T) {
	b := NewBuffer()
	b.Track(1)
	b.Append(2, "x")

	b.CancelAll()

	if !b.Canceled(1) || !b.Canceled(2) {
		t.Fatal("every outstanding id should be marked canceled")
	}
	if b.Canceled(3) {
		t.Fatal("an id never seen must not be canceled")
	}
}

func TestCanceledEventsStayDrainable(t *testing.T) {
	b := NewBuffer()
	b.Append(5, "partial")
	b.Cancel(5)
	b.Finish(5)

	if got := b.Drain(5); !reflect.DeepEqual(got, []string{"partial"}) {
		t.Fatalf("buffered events must survive cancellation, got %q", got)
	}
}

func TestTerminalStreamEvictedAfterFinalDrain(t *testing.T) {
	b := NewBuffer()
	b.Append(9, "last")
	b.Finish(9)

	if got := b.Drain(9); !reflect.DeepEqual(got, []string{"last"}) {
		t.Fatalf("final drain = %q", got)
	}

	b.mu.Lock()
	_, pending := b.pending[9]
	_, terminal := b.terminal[9]
	b.mu.Unlock()
	if pending || terminal {
		t.Fatal("terminal stream state should be evicted after its final drain")
	}
}
