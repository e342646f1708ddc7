package order

import (
	"time"
)

// EditWindow decides when non-administrators may change their orders.
type EditWindow struct {
	OpeningDay int
	ClosingDay int
	// Location is used to find the local day of month; nil means UTC.
	Location *time.Location
}

// ResolveLocation returns the first zone in candidates that loads, or nil
// when none does.
func ResolveLocation(candidates []string) *time.Location {
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return nil
}

// CanEdit reports whether an edit at now is allowed. Administrators are
// never restricted.
func (w EditWindow) CanEdit(now time.Time, admin bool) bool {
	if admin {
		return true
	}
	day := now.UTC().Day()
	if w.Location != nil {
		day = now.In(w.Location).Day()
	}
	return day >= w.OpeningDay && day <= w.ClosingDay
}
