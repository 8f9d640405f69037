package settings

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/events"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/attribution"
)

// Service provides typed, validated access to runtime settings and
// publishes a settings-changed event for every key that changes.
type Service struct {
	repo     *Repository
	fallback Settings
	bus      *events.Bus
	log      zerolog.Logger
}

// NewService creates a settings service. fallback supplies the effective
// value for every key with no stored override, typically built from the
// process configuration.
func NewService(repo *Repository, fallback Settings, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		fallback: fallback,
		bus:      bus,
		log:      log.With().Str("service", "settings").Logger(),
	}
}

// Current returns the effective settings: stored values over the fallback
func (s *Service) Current() (Settings, error) {
	defaults := s.fallback
	current := defaults

	if v, err := s.repo.Get(KeyDefaultModel); err != nil {
		return current, err
	} else if v != nil {
		current.DefaultModel = *v
	}

	var err error
	if current.LookbackDays, err = s.repo.GetInt(KeyLookbackDays, defaults.LookbackDays); err != nil {
		return current, err
	}
	if current.HalfLifeDays, err = s.repo.GetFloat(KeyHalfLifeDays, defaults.HalfLifeDays); err != nil {
		return current, err
	}
	if v, err := s.repo.Get(KeySensitivity); err != nil {
		return current, err
	} else if v != nil {
		current.Sensitivity = *v
	}
	if current.BaselineDays, err = s.repo.GetInt(KeyBaselineDays, defaults.BaselineDays); err != nil {
		return current, err
	}
	if current.RetentionDays, err = s.repo.GetInt(KeyRetentionDays, defaults.RetentionDays); err != nil {
		return current, err
	}

	return current, nil
}

// AttributionDefaults returns the effective attribution run defaults,
// satisfying the attribution module's defaults source.
func (s *Service) AttributionDefaults() (attribution.RunDefaults, error) {
	current, err := s.Current()
	if err != nil {
		return attribution.RunDefaults{}, err
	}
	model, err := attribution.ParseModel(current.DefaultModel)
	if err != nil {
		return attribution.RunDefaults{}, err
	}
	return attribution.RunDefaults{
		Model:        model,
		LookbackDays: current.LookbackDays,
		HalfLifeDays: current.HalfLifeDays,
	}, nil
}

// Apply validates and persists a partial update, returning the resulting
// effective settings. Invalid values reject the whole update.
func (s *Service) Apply(update Update) (Settings, error) {
	type change struct {
		key   string
		value string
	}
	var changes []change

	if update.DefaultModel != nil {
		if _, err := attribution.ParseModel(*update.DefaultModel); err != nil {
			return Settings{}, err
		}
		changes = append(changes, change{KeyDefaultModel, *update.DefaultModel})
	}
	if update.LookbackDays != nil {
		if err := attribution.ValidateLookbackDays(*update.LookbackDays); err != nil {
			return Settings{}, err
		}
		changes = append(changes, change{KeyLookbackDays, strconv.Itoa(*update.LookbackDays)})
	}
	if update.HalfLifeDays != nil {
		if *update.HalfLifeDays <= 0 {
			return Settings{}, fmt.Errorf("half_life_days must be positive, got %.2f", *update.HalfLifeDays)
		}
		changes = append(changes, change{KeyHalfLifeDays, strconv.FormatFloat(*update.HalfLifeDays, 'f', -1, 64)})
	}
	if update.Sensitivity != nil {
		if _, err := anomaly.ParseSensitivity(*update.Sensitivity); err != nil {
			return Settings{}, err
		}
		changes = append(changes, change{KeySensitivity, *update.Sensitivity})
	}
	if update.BaselineDays != nil {
		if *update.BaselineDays < anomaly.MinBaselineDays {
			return Settings{}, fmt.Errorf("baseline_days must be at least %d, got %d",
				anomaly.MinBaselineDays, *update.BaselineDays)
		}
		changes = append(changes, change{KeyBaselineDays, strconv.Itoa(*update.BaselineDays)})
	}
	if update.RetentionDays != nil {
		if *update.RetentionDays < 1 {
			return Settings{}, fmt.Errorf("retention_days must be at least 1, got %d", *update.RetentionDays)
		}
		changes = append(changes, change{KeyRetentionDays, strconv.Itoa(*update.RetentionDays)})
	}

	for _, c := range changes {
		if err := s.repo.Set(c.key, c.value); err != nil {
			return Settings{}, err
		}
		if s.bus != nil {
			s.bus.Publish(&events.SettingsChangedData{Key: c.key})
		}
		s.log.Info().Str("key", c.key).Msg("Setting updated")
	}

	return s.Current()
}
