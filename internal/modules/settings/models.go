package settings

// Setting keys. Stored values override the config-file defaults at
// runtime.
const (
	KeyDefaultModel  = "default_model"
	KeyLookbackDays  = "lookback_days"
	KeyHalfLifeDays  = "half_life_days"
	KeySensitivity   = "sensitivity"
	KeyBaselineDays  = "baseline_days"
	KeyRetentionDays = "retention_days"
)

// Settings is the typed view of every known key
type Settings struct {
	DefaultModel  string  `json:"default_model"`
	LookbackDays  int     `json:"lookback_days"`
	HalfLifeDays  float64 `json:"half_life_days"`
	Sensitivity   string  `json:"sensitivity"`
	BaselineDays  int     `json:"baseline_days"`
	RetentionDays int     `json:"retention_days"`
}

// Defaults returns the out-of-the-box settings
func Defaults() Settings {
	return Settings{
		DefaultModel:  "linear",
		LookbackDays:  30,
		HalfLifeDays:  7.0,
		Sensitivity:   "medium",
		BaselineDays:  28,
		RetentionDays: 365,
	}
}

// Update is a partial settings change; nil fields are left untouched
type Update struct {
	DefaultModel  *string  `json:"default_model,omitempty"`
	LookbackDays  *int     `json:"lookback_days,omitempty"`
	HalfLifeDays  *float64 `json:"half_life_days,omitempty"`
	Sensitivity   *string  `json:"sensitivity,omitempty"`
	BaselineDays  *int     `json:"baseline_days,omitempty"`
	RetentionDays *int     `json:"retention_days,omitempty"`
}
