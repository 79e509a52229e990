package utils

import (
	"time"
)

// Request context keys shared by handlers and flows
type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	UserIDKey     contextKey = "user_id"
	UserRoleKey   contextKey = "user_role"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Alert engine defaults
const (
	// DefaultAlertTimezone is the zone used for quiet hours, day keys and digest windows
	DefaultAlertTimezone = "Asia/Jerusalem"

	// DefaultMatchTTL bounds how long a delivered (alert, job) pair is remembered
	DefaultMatchTTL = 30 * 24 * time.Hour

	// VolumeCounterTTL keeps a day's volume counter around past local midnight
	VolumeCounterTTL = 48 * time.Hour

	// DayKeyLayout formats the per-day counter key
	DayKeyLayout = "2006-01-02"

	// ClockLayout is the HH:MM layout used by quiet hours and delivery windows
	ClockLayout = "15:04"
)
