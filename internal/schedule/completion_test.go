package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/errs"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

type fakeItemStore struct {
	items map[string]*Item
}

func (f *fakeItemStore) FindByID(_ context.Context, id string) (*Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: service item %s", errs.ErrNotFound, id)
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItemStore) MarkDone(_ context.Context, id string, doneMiles, dueAtMiles float64) error {
	it, ok := f.items[id]
	if !ok {
		return fmt.Errorf("%w: service item %s", errs.ErrNotFound, id)
	}
	it.LastDoneMiles = doneMiles
	it.DueAtMiles = dueAtMiles
	it.DueFlag = false
	return nil
}

type fakeVehicleReader struct {
	vehicles map[string]*vehicle.Vehicle
}

func (f *fakeVehicleReader) FindByID(_ context.Context, id string) (*vehicle.Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %s", errs.ErrNotFound, id)
	}
	return v, nil
}

type fakeOdoUpdater struct {
	calls []float64
	err   error
}

func (f *fakeOdoUpdater) Update(_ context.Context, _ clockz.Clock, _ string, newODO float64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, newODO)
	return nil
}

func milesPtr(f float64) *float64 { return &f }

func newCompletionFixture(itemMiles, vehMiles *float64) (*Completion, *fakeItemStore, *fakeOdoUpdater) {
	lastDone := 0.0
	if itemMiles != nil {
		lastDone = *itemMiles
	}
	items := &fakeItemStore{items: map[string]*Item{
		"i1": {ID: "i1", VehicleID: "v1", UserID: "u1", Description: "Change Eng. Oil and Filter",
			IntervalMiles: 5000, LastDoneMiles: lastDone, DueAtMiles: lastDone + 5000, DueFlag: true},
	}}
	vehicles := &fakeVehicleReader{vehicles: map[string]*vehicle.Vehicle{
		"v1": {ID: "v1", UserID: "u1", Miles: vehMiles},
	}}
	odo := &fakeOdoUpdater{}
	return NewCompletion(items, vehicles, odo, nil), items, odo
}

func TestCompleteUpdatesDueAndClearsFlag(t *testing.T) {
	clock := clockz.NewFakeClock()
	c, items, odo := newCompletionFixture(milesPtr(6030), milesPtr(120000))

	if err := c.Complete(context.Background(), clock, "i1", 110000); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	it := items.items["i1"]
	if it.DueAtMiles != 115000 {
		t.Fatalf("expected dueAt 115000, got %v", it.DueAtMiles)
	}
	if it.LastDoneMiles != 110000 {
		t.Fatalf("expected lastDone 110000, got %v", it.LastDoneMiles)
	}
	if it.DueFlag {
		t.Fatalf("expected due flag cleared")
	}
	// 车辆在库里程 120000 ≥ 110000，不应补报。
	if len(odo.calls) != 0 {
		t.Fatalf("expected no odometer delegation, got %v", odo.calls)
	}
}

func TestCompleteDelegatesToOdometerWhenVehicleStale(t *testing.T) {
	clock := clockz.NewFakeClock()
	c, _, odo := newCompletionFixture(milesPtr(6030), milesPtr(100000))

	if err := c.Complete(context.Background(), clock, "i1", 110000); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(odo.calls) != 1 || odo.calls[0] != 110000 {
		t.Fatalf("expected delegation with 110000, got %v", odo.calls)
	}
}

func TestCompleteDelegatesWhenVehicleHasNoMiles(t *testing.T) {
	clock := clockz.NewFakeClock()
	c, _, odo := newCompletionFixture(nil, nil)

	if err := c.Complete(context.Background(), clock, "i1", 500); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(odo.calls) != 1 || odo.calls[0] != 500 {
		t.Fatalf("expected delegation with 500, got %v", odo.calls)
	}
}

func TestCompleteRejectsRegression(t *testing.T) {
	clock := clockz.NewFakeClock()
	c, items, _ := newCompletionFixture(milesPtr(6030), milesPtr(120000))

	err := c.Complete(context.Background(), clock, "i1", 6000)
	if !errors.Is(err, errs.ErrDecreasingValue) {
		t.Fatalf("expected ErrDecreasingValue, got %v", err)
	}
	if items.items["i1"].LastDoneMiles != 6030 {
		t.Fatalf("item must be untouched, got %v", items.items["i1"].LastDoneMiles)
	}
}

func TestCompleteBounds(t *testing.T) {
	clock := clockz.NewFakeClock()
	c, _, _ := newCompletionFixture(milesPtr(0), milesPtr(0))

	if err := c.Complete(context.Background(), clock, "i1", -1); !errors.Is(err, errs.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for negative, got %v", err)
	}
	// 周期 5000：完成里程不能超过 MaxMiles-5000，否则到期里程不可表示。
	if err := c.Complete(context.Background(), clock, "i1", vehicle.MaxMiles-4000); !errors.Is(err, errs.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange near max, got %v", err)
	}
	if err := c.Complete(context.Background(), clock, "missing", 100); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
