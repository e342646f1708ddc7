package order

// BuildHistory returns the audit entry for an edit, or nil when neither the
// delivery unit nor any item quantity changed. The caller stamps id, order,
// timestamp and actor.
func BuildHistory(previousUnit, newUnit *string, deltas []ItemDelta) *HistoryEntry {
	if len(deltas) == 0 && sameUnit(previousUnit, newUnit) {
		return nil
	}
	return &HistoryEntry{
		Kind: HistoryKindUpdate,
		Diff: HistoryDiff{
			PreviousUnit: cloneString(previousUnit),
			NewUnit:      cloneString(newUnit),
			Items:        append([]ItemDelta(nil), deltas...),
		},
	}
}

func sameUnit(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
