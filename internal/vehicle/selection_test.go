package vehicle

import (
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/dates"
)

func TestPickNeedingReadingPrefersAbsentBaseline(t *testing.T) {
	clock := clockz.NewFakeClock()
	today := clock.Now()
	tenDaysAgo := dates.DateOf(today).AddDate(0, 0, -10)

	vs := []Vehicle{
		{ID: "stale", Miles: ptrF(50000), LastOdoDate: ptrT(tenDaysAgo), MilesPerDay: ptrF(10)},
		{ID: "never", Miles: ptrF(100)}, // 有读数但缺日期，视同没有基线
	}
	got := PickNeedingReading(vs, today, 7)
	if got == nil || got.ID != "never" {
		t.Fatalf("expected absent-date vehicle, got %+v", got)
	}
}

func TestPickNeedingReadingOldestStaleFirst(t *testing.T) {
	clock := clockz.NewFakeClock()
	today := clock.Now()
	day := func(n int) *time.Time { return ptrT(dates.DateOf(today).AddDate(0, 0, -n)) }

	vs := []Vehicle{
		{ID: "eight", Miles: ptrF(1000), LastOdoDate: day(8), MilesPerDay: ptrF(5)},
		{ID: "twenty", Miles: ptrF(2000), LastOdoDate: day(20), MilesPerDay: ptrF(5)},
		{ID: "fresh", Miles: ptrF(3000), LastOdoDate: day(1), MilesPerDay: ptrF(5)},
	}
	got := PickNeedingReading(vs, today, 7)
	if got == nil || got.ID != "twenty" {
		t.Fatalf("expected oldest stale vehicle, got %+v", got)
	}
}

func TestPickNeedingReadingNoneEligible(t *testing.T) {
	clock := clockz.NewFakeClock()
	today := clock.Now()
	threeDaysAgo := dates.DateOf(today).AddDate(0, 0, -3)

	vs := []Vehicle{
		{ID: "fresh", Miles: ptrF(1000), LastOdoDate: ptrT(threeDaysAgo), MilesPerDay: ptrF(5)},
	}
	if got := PickNeedingReading(vs, today, 7); got != nil {
		t.Fatalf("expected nil for fresh vehicle, got %+v", got)
	}
	if got := PickNeedingReading(nil, today, 7); got != nil {
		t.Fatalf("expected nil for no vehicles, got %+v", got)
	}
}
