package schedule

import "scadenze/internal/core"

// OverrideKey identifies one occurrence of one rule by its raw scheduled
// date, so that changing a rule's weekend policy never orphans an override.
type OverrideKey struct {
	RuleID string
	Date   core.Date
}

// OverrideIndex is an override snapshot indexed for lookup.
type OverrideIndex map[OverrideKey]core.Override

// IndexOverrides builds an index. A later override for the same key wins.
func IndexOverrides(overrides []core.Override) OverrideIndex {
	idx := make(OverrideIndex, len(overrides))
	for _, o := range overrides {
		idx[OverrideKey{RuleID: o.RuleID, Date: o.OriginalDate}] = o
	}
	return idx
}

// Lookup returns the override for an occurrence. A miss is not an error.
func (idx OverrideIndex) Lookup(ruleID string, scheduled core.Date) (core.Override, bool) {
	o, ok := idx[OverrideKey{RuleID: ruleID, Date: scheduled}]
	return o, ok
}

// Resolve applies the occurrence's override, if any. It returns false when
// the occurrence is skipped. Fields present on the override replace the
// computed ones; an override date is taken as given, without weekend policy.
func Resolve(occ core.ScheduledOccurrence, idx OverrideIndex) (core.ScheduledOccurrence, bool) {
	if !occ.IsRecurring {
		return occ, true
	}
	o, ok := idx.Lookup(occ.SourceID, occ.ScheduledDate)
	if !ok {
		return occ, true
	}
	if o.IsSkipped {
		return core.ScheduledOccurrence{}, false
	}

	if !o.Date.IsZero() {
		occ.Date = o.Date
	}
	if o.Amount.Valid {
		occ.SignedAmount = occ.Kind.Signed(o.Amount.Decimal)
	}
	if o.Description != nil {
		occ.Description = *o.Description
	}
	occ.IsOverridden = o.IsAmend()
	return occ, true
}
