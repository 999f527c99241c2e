package task

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	id, ev := r.Add(KindSend)
	if got := r.GetTaskEvent(id); got != ev {
		t.Fatal("GetTaskEvent returned a different event")
	}
	if got := r.GetTaskEvent("missing"); got != nil {
		t.Fatalf("unknown task id returned %v, want nil", got)
	}

	r.Remove(id)
	if got := r.GetTaskEvent(id); got != nil {
		t.Fatal("removed task still resolvable")
	}
}

func TestNotifySendReady(t *testing.T) {
	r := NewRegistry()

	_, sendEv := r.Add(KindSend)
	_, recvEv := r.Add(KindReceive)

	r.NotifySendReady()

	if !sendEv.Signaled() {
		t.Fatal("send task not signaled")
	}
	if recvEv.Signaled() {
		t.Fatal("receive task signaled by NotifySendReady")
	}
}
