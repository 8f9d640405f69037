package domain

// DatasetProvider is the read-only dataset abstraction the engine consumes.
// Implementations load date-bounded slices of the touchpoint, conversion,
// and spend history; the engine treats whatever it receives as an immutable
// snapshot. The SQLite-backed implementation lives in the datasets module;
// tests substitute in-memory fixtures.
type DatasetProvider interface {
	GetTouchpoints(r DateRange) ([]Touchpoint, error)
	GetConversions(r DateRange) ([]ConversionEvent, error)
	GetSpend(r DateRange, channels ...string) ([]DailySpend, error)
}

// LoadSnapshot assembles a full snapshot for a range from a provider.
// Lookback padding for path building is the caller's responsibility: the
// attribution service widens the touchpoint range by lookback_days before
// calling this.
func LoadSnapshot(p DatasetProvider, r DateRange) (*Snapshot, error) {
	touchpoints, err := p.GetTouchpoints(r)
	if err != nil {
		return nil, err
	}
	conversions, err := p.GetConversions(r)
	if err != nil {
		return nil, err
	}
	spend, err := p.GetSpend(r)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Range:       r,
		Touchpoints: touchpoints,
		Conversions: conversions,
		Spend:       spend,
	}, nil
}
