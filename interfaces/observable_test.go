package interfaces

import "testing"

type recorder struct{ got []uint32 }

func (r *recorder) NotifyValue(v uint32) { r.got = append(r.got, v) }

func TestObserverList(t *testing.T) {
	var l ObserverList
	a, b := &recorder{}, &recorder{}
	l.Subscribe(a)
	l.Subscribe(b)
	l.NotifyValue(1)

	l.Unsubscribe(a)
	if l.Len() != 1 {
		t.Fatalf("Len=%d", l.Len())
	}
	l.NotifyValue(2)

	if len(a.got) != 1 || a.got[0] != 1 {
		t.Fatalf("a=%v", a.got)
	}
	if len(b.got) != 2 || b.got[1] != 2 {
		t.Fatalf("b=%v", b.got)
	}

	// unknown observers are ignored:
	l.Unsubscribe(a)
	if l.Len() != 1 {
		t.Fatalf("Len=%d", l.Len())
	}
}
