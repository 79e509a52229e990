package scheduler

import (
	"context"
	"log"
	"strings"

	"github.com/amirphl/jobboard-alerts/config"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
)

// SettingsSource yields the admin settings in force right now
type SettingsSource interface {
	Current(ctx context.Context) models.AlertSettings
}

// DefaultSettings converts the configured seed values into a settings row
func DefaultSettings(cfg config.AlertsConfig) models.AlertSettings {
	s := models.AlertSettings{
		IsPhoneServiceActive:  cfg.DefaultPhoneServiceActive,
		CheckFrequencyMinutes: cfg.DefaultCheckFrequencyMinutes,
		SendMode:              models.SendMode(cfg.DefaultSendMode),
		MaxCallsPerDay:        cfg.DefaultMaxCallsPerDay,
	}
	if !s.SendMode.Valid() {
		s.SendMode = models.SendModeImmediate
	}
	if s.CheckFrequencyMinutes <= 0 {
		s.CheckFrequencyMinutes = 5
	}
	if v := strings.TrimSpace(cfg.DefaultQuietHoursStart); v != "" {
		s.QuietHoursStart = &v
	}
	if v := strings.TrimSpace(cfg.DefaultQuietHoursEnd); v != "" {
		s.QuietHoursEnd = &v
	}
	return s
}

// SettingsLoader reads the settings row on every call and falls back to defaults
type SettingsLoader struct {
	repo     repository.AlertSettingsRepository
	defaults models.AlertSettings
	logger   *log.Logger
}

func NewSettingsLoader(repo repository.AlertSettingsRepository, defaults models.AlertSettings, logger *log.Logger) *SettingsLoader {
	if logger == nil {
		logger = log.Default()
	}
	return &SettingsLoader{repo: repo, defaults: defaults, logger: logger}
}

func (l *SettingsLoader) Current(ctx context.Context) models.AlertSettings {
	row, err := l.repo.Current(ctx)
	if err != nil {
		l.logger.Printf("scheduler: load settings failed, using defaults: %v", err)
		return l.defaults
	}
	if row == nil {
		return l.defaults
	}
	return *row
}

// StaticSettings always returns the same settings
type StaticSettings models.AlertSettings

func (s StaticSettings) Current(context.Context) models.AlertSettings {
	return models.AlertSettings(s)
}
