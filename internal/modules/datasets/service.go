package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/events"
)

// Service validates, normalizes, and ingests dataset rows. Rows that fail
// validation are rejected individually; one bad row never sinks a batch.
type Service struct {
	repo *Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewService creates a dataset service
func NewService(repo *Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("service", "datasets").Logger(),
	}
}

// ImportResult reports what happened to one ingestion batch
type ImportResult struct {
	Kind     string   `json:"kind"`
	Imported int      `json:"imported"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"` // first few rejection reasons
}

const maxReportedErrors = 10

func (r *ImportResult) reject(reason string) {
	r.Rejected++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, reason)
	}
}

// ImportTouchpoints normalizes and upserts a batch of touchpoints
func (s *Service) ImportTouchpoints(batch []domain.Touchpoint, source string) (*ImportResult, error) {
	result := &ImportResult{Kind: "touchpoints"}

	valid := make([]domain.Touchpoint, 0, len(batch))
	for i, tp := range batch {
		tp.Channel = strings.TrimSpace(tp.Channel)
		if tp.Channel == "" {
			result.reject(fmt.Sprintf("row %d: channel is required", i))
			continue
		}
		if tp.Timestamp.IsZero() {
			result.reject(fmt.Sprintf("row %d: timestamp is required", i))
			continue
		}
		eventType, err := domain.ParseEventType(string(tp.EventType))
		if err != nil {
			result.reject(fmt.Sprintf("row %d: %v", i, err))
			continue
		}
		tp.EventType = eventType
		tp.CampaignID = strings.TrimSpace(tp.CampaignID)
		tp.Timestamp = tp.Timestamp.UTC()
		valid = append(valid, tp)
	}

	imported, err := s.repo.UpsertTouchpoints(valid)
	if err != nil {
		return nil, err
	}
	result.Imported = imported

	s.publishImported(result, source)
	return result, nil
}

// ImportConversions normalizes and upserts a batch of conversions
func (s *Service) ImportConversions(batch []domain.ConversionEvent, source string) (*ImportResult, error) {
	result := &ImportResult{Kind: "conversions"}

	valid := make([]domain.ConversionEvent, 0, len(batch))
	for i, c := range batch {
		c.ConversionID = strings.TrimSpace(c.ConversionID)
		if c.ConversionID == "" {
			result.reject(fmt.Sprintf("row %d: conversion_id is required", i))
			continue
		}
		if c.Timestamp.IsZero() {
			result.reject(fmt.Sprintf("row %d: timestamp is required", i))
			continue
		}
		if c.Revenue < 0 {
			result.reject(fmt.Sprintf("row %d: revenue must not be negative", i))
			continue
		}
		c.Timestamp = c.Timestamp.UTC()
		c.OrderID = strings.TrimSpace(c.OrderID)
		valid = append(valid, c)
	}

	imported, err := s.repo.UpsertConversions(valid)
	if err != nil {
		return nil, err
	}
	result.Imported = imported

	s.publishImported(result, source)
	return result, nil
}

// ImportSpend normalizes and upserts a batch of daily spend rows
func (s *Service) ImportSpend(batch []domain.DailySpend, source string) (*ImportResult, error) {
	result := &ImportResult{Kind: "spend"}

	valid := make([]domain.DailySpend, 0, len(batch))
	for i, row := range batch {
		row.Channel = strings.TrimSpace(row.Channel)
		if row.Channel == "" {
			result.reject(fmt.Sprintf("row %d: channel is required", i))
			continue
		}
		if row.Date.IsZero() {
			result.reject(fmt.Sprintf("row %d: date is required", i))
			continue
		}
		if row.Spend < 0 || row.Revenue < 0 || row.Conversions < 0 {
			result.reject(fmt.Sprintf("row %d: negative metric values", i))
			continue
		}
		row.Date = domain.Day(row.Date.UTC())
		valid = append(valid, row)
	}

	imported, err := s.repo.UpsertDailySpend(valid)
	if err != nil {
		return nil, err
	}
	result.Imported = imported

	s.publishImported(result, source)
	return result, nil
}

// ImportCSV parses and ingests a CSV stream. The header row names the
// columns; kind selects the expected layout:
//
//	touchpoints: channel,campaign_id,timestamp,event_type,cost
//	conversions: conversion_id,timestamp,revenue,order_id
//	spend:       date,channel,spend,impressions,clicks,conversions,revenue
func (s *Service) ImportCSV(kind string, reader io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	switch kind {
	case "touchpoints":
		batch := make([]domain.Touchpoint, 0, len(records))
		for _, record := range records {
			ts, _ := parseTimestamp(field(record, "timestamp"))
			cost, _ := strconv.ParseFloat(field(record, "cost"), 64)
			batch = append(batch, domain.Touchpoint{
				Channel:    field(record, "channel"),
				CampaignID: field(record, "campaign_id"),
				Timestamp:  ts,
				EventType:  domain.EventType(field(record, "event_type")),
				Cost:       cost,
			})
		}
		return s.ImportTouchpoints(batch, "csv")

	case "conversions":
		batch := make([]domain.ConversionEvent, 0, len(records))
		for _, record := range records {
			ts, _ := parseTimestamp(field(record, "timestamp"))
			revenue, _ := strconv.ParseFloat(field(record, "revenue"), 64)
			batch = append(batch, domain.ConversionEvent{
				ConversionID: field(record, "conversion_id"),
				Timestamp:    ts,
				Revenue:      revenue,
				OrderID:      field(record, "order_id"),
			})
		}
		return s.ImportConversions(batch, "csv")

	case "spend":
		batch := make([]domain.DailySpend, 0, len(records))
		for _, record := range records {
			date, _ := time.Parse(dateLayout, field(record, "date"))
			spend, _ := strconv.ParseFloat(field(record, "spend"), 64)
			impressions, _ := strconv.ParseInt(field(record, "impressions"), 10, 64)
			clicks, _ := strconv.ParseInt(field(record, "clicks"), 10, 64)
			conversions, _ := strconv.ParseFloat(field(record, "conversions"), 64)
			revenue, _ := strconv.ParseFloat(field(record, "revenue"), 64)
			batch = append(batch, domain.DailySpend{
				Date:        date,
				Channel:     field(record, "channel"),
				Spend:       spend,
				Impressions: impressions,
				Clicks:      clicks,
				Conversions: conversions,
				Revenue:     revenue,
			})
		}
		return s.ImportSpend(batch, "csv")

	default:
		return nil, fmt.Errorf("unknown import kind %q", kind)
	}
}

// parseTimestamp accepts RFC3339 or unix seconds
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// Summary reports what has been ingested
func (s *Service) Summary() (*DatasetSummary, error) {
	return s.repo.Summary()
}

// Channels lists distinct channels across the dataset
func (s *Service) Channels() ([]string, error) {
	return s.repo.Channels()
}

// publishImported emits a dataset-imported event for non-empty batches
func (s *Service) publishImported(result *ImportResult, source string) {
	if s.bus == nil || result.Imported == 0 {
		return
	}
	s.bus.Publish(&events.DatasetImportedData{
		Kind:     result.Kind,
		Rows:     result.Imported,
		Source:   source,
		Rejected: result.Rejected,
	})
}
