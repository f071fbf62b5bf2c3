package future

import (
	"errors"
	"testing"
	"time"
)

func TestAwaitValue(t *testing.T) {
	f := New(func() (int, error) { return 42, nil })
	v, err := f.Await()
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("Await = %d, want 42", v)
	}
	// a second Await sees the same result
	v, _ = f.Await()
	if v != 42 {
		t.Fatalf("second Await = %d", v)
	}
}

func TestAwaitError(t *testing.T) {
	boom := errors.New("boom")
	f := New(func() (string, error) { return "", boom })
	if _, err := f.Await(); !errors.Is(err, boom) {
		t.Fatalf("Await err = %v", err)
	}
}

func TestAwaitTimeout(t *testing.T) {
	block := make(chan struct{})
	f := New(func() (int, error) { <-block; return 1, nil })
	if _, _, ok := f.AwaitTimeout(10 * time.Millisecond); ok {
		t.Fatal("AwaitTimeout reported completion on a blocked future")
	}
	close(block)
	v, err, ok := f.AwaitTimeout(2 * time.Second)
	if !ok || err != nil || v != 1 {
		t.Fatalf("AwaitTimeout = %d, %v, %v", v, err, ok)
	}
}

func TestDoneChannel(t *testing.T) {
	f := New(func() (int, error) { return 7, nil })
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed")
	}
}
