package notify

import (
	"context"
	"errors"
	"testing"
)

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Post(ctx context.Context, ev Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func TestMulti_FansOut(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	m := &Multi{Notifiers: []Notifier{a, b}}

	ev := Event{Title: "t", Body: "b", Severity: SeverityInfo}
	if err := m.Post(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("delivered = %d/%d, want 1/1", len(a.events), len(b.events))
	}
}

func TestMulti_FailureDoesNotBlockOthers(t *testing.T) {
	bad := &recordingNotifier{err: errors.New("down")}
	good := &recordingNotifier{}
	m := &Multi{Notifiers: []Notifier{bad, good}}

	if err := m.Post(context.Background(), Event{Title: "t"}); err != nil {
		t.Fatalf("Post returned %v, want nil (best effort)", err)
	}
	if len(good.events) != 1 {
		t.Errorf("good notifier got %d events, want 1", len(good.events))
	}
}

func TestColor(t *testing.T) {
	if Color(SeverityWarning) != ColorWarning {
		t.Errorf("warning color = %q", Color(SeverityWarning))
	}
	if Color(SeverityInfo) != ColorInfo {
		t.Errorf("info color = %q", Color(SeverityInfo))
	}
	if Color("unknown") != ColorInfo {
		t.Errorf("unknown severity should fall back to info color")
	}
}
