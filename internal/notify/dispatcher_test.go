package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/errs"
	"github.com/ryanhess/service-reminder/internal/schedule"
	"github.com/ryanhess/service-reminder/internal/user"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

type fakeSender struct {
	sent []string
	to   []string
	fail map[string]bool // 按短信正文前缀匹配制造失败
}

func (s *fakeSender) Send(_ context.Context, to, body string) error {
	for prefix := range s.fail {
		if len(body) >= len(prefix) && body[:len(prefix)] == prefix {
			return errors.New("carrier rejected")
		}
	}
	s.to = append(s.to, to)
	s.sent = append(s.sent, body)
	return nil
}

type fakeUsers struct {
	byID map[string]*user.User
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

type fakeVehicles struct {
	byID    map[string]*vehicle.Vehicle
	needing *vehicle.Vehicle
}

func (f *fakeVehicles) FindByID(_ context.Context, id string) (*vehicle.Vehicle, error) {
	v, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return v, nil
}

func (f *fakeVehicles) FindNeedingReading(_ context.Context, _ string, _ time.Time, _ int) (*vehicle.Vehicle, error) {
	if f.needing == nil {
		return nil, errs.ErrNoEligibleVehicle
	}
	return f.needing, nil
}

type fakeDue struct {
	items []schedule.Item
}

func (f *fakeDue) FindByID(_ context.Context, id string) (*schedule.Item, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			cp := f.items[i]
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeDue) ListDue(_ context.Context) ([]schedule.Item, error) {
	return f.items, nil
}

type memDedup struct {
	keys map[string]bool
}

func (m *memDedup) Seen(_ context.Context, key string) (bool, error) { return m.keys[key], nil }
func (m *memDedup) Mark(_ context.Context, key string, _ time.Duration) error {
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	m.keys[key] = true
	return nil
}

func TestPromptForReadingWording(t *testing.T) {
	nick := "Old Blue"
	sender := &fakeSender{}
	d := NewDispatcher(
		&fakeUsers{byID: map[string]*user.User{"u1": {ID: "u1", Username: "ryan", Phone: "+15551234567"}}},
		&fakeVehicles{needing: &vehicle.Vehicle{ID: "v1", Nickname: &nick}},
		&fakeDue{}, sender, nil, Config{}, nil)

	if err := d.PromptForReading(context.Background(), clockz.NewFakeClock(), "u1"); err != nil {
		t.Fatalf("PromptForReading: %v", err)
	}
	want := "Hey ryan, Service Reminders here. Please reply with an odometer reading for Old Blue."
	if len(sender.sent) != 1 || sender.sent[0] != want {
		t.Fatalf("expected %q, got %v", want, sender.sent)
	}
	if sender.to[0] != "+15551234567" {
		t.Fatalf("expected user phone, got %s", sender.to[0])
	}
}

func TestPromptForReadingNoEligibleVehicle(t *testing.T) {
	d := NewDispatcher(
		&fakeUsers{byID: map[string]*user.User{"u1": {ID: "u1", Username: "ryan"}}},
		&fakeVehicles{}, &fakeDue{}, &fakeSender{}, nil, Config{}, nil)

	err := d.PromptForReading(context.Background(), clockz.NewFakeClock(), "u1")
	if !errors.Is(err, errs.ErrNoEligibleVehicle) {
		t.Fatalf("expected ErrNoEligibleVehicle, got %v", err)
	}
}

func TestNotifyServiceDueWording(t *testing.T) {
	sender := &fakeSender{}
	due := &fakeDue{items: []schedule.Item{
		{ID: "i1", VehicleID: "v1", UserID: "u1", Description: "oil change", DueAtMiles: 11030},
	}}
	d := NewDispatcher(
		&fakeUsers{byID: map[string]*user.User{"u1": {ID: "u1", Username: "ryan", Phone: "+15551234567"}}},
		&fakeVehicles{byID: map[string]*vehicle.Vehicle{"v1": {ID: "v1", Year: 2009, Make: "Honda", Model: "Fit"}}},
		due, sender, nil, Config{}, nil)

	if err := d.NotifyServiceDue(context.Background(), "i1"); err != nil {
		t.Fatalf("NotifyServiceDue: %v", err)
	}
	want := `ryan, your 2009 Honda Fit is due for item: "oil change" at 11030 miles.`
	if len(sender.sent) != 1 || sender.sent[0] != want {
		t.Fatalf("expected %q, got %v", want, sender.sent)
	}
}

func TestNotifyServiceDueUnknownItem(t *testing.T) {
	d := NewDispatcher(&fakeUsers{}, &fakeVehicles{}, &fakeDue{}, &fakeSender{}, nil, Config{}, nil)

	err := d.NotifyServiceDue(context.Background(), "missing")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifyAllDueServicesDedupAndPartialFailure(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"bob": true}}
	users := &fakeUsers{byID: map[string]*user.User{
		"u1": {ID: "u1", Username: "ryan", Phone: "+15551234567"},
		"u2": {ID: "u2", Username: "bob", Phone: "+15559876543"},
	}}
	vehicles := &fakeVehicles{byID: map[string]*vehicle.Vehicle{
		"v1": {ID: "v1", Year: 2009, Make: "Honda", Model: "Fit"},
		"v2": {ID: "v2", Year: 2015, Make: "Ford", Model: "Focus"},
	}}
	due := &fakeDue{items: []schedule.Item{
		{ID: "i1", VehicleID: "v1", UserID: "u1", Description: "oil change", DueAtMiles: 11030, DueFlag: true},
		{ID: "i2", VehicleID: "v2", UserID: "u2", Description: "tire rotation", DueAtMiles: 42000, DueFlag: true},
	}}
	dedup := &memDedup{}
	clock := clockz.NewFakeClock()
	d := NewDispatcher(users, vehicles, due, sender, dedup, Config{}, nil)

	sent, err := d.NotifyAllDueServices(context.Background(), clock)
	if err != nil {
		t.Fatalf("NotifyAllDueServices: %v", err)
	}
	// u2 的运营商拒收，只有 i1 送达。
	if len(sent) != 1 || sent[0] != "i1" {
		t.Fatalf("expected [i1], got %v", sent)
	}

	// 同一天重跑：i1 命中去重被跳过，i2 继续重试（上一轮失败未标记）。
	sender.fail = nil
	sent, err = d.NotifyAllDueServices(context.Background(), clock)
	if err != nil {
		t.Fatalf("second NotifyAllDueServices: %v", err)
	}
	if len(sent) != 1 || sent[0] != "i2" {
		t.Fatalf("expected [i2] on rerun, got %v", sent)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 deliveries total, got %d", len(sender.sent))
	}
}
