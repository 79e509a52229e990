// Package models contains the persisted entities of the alert engine
package models

// All lists every table in creation order
func All() []any {
	return []any{
		&Job{},
		&AlertPreference{},
		&ChannelSendRecord{},
		&SiteNotification{},
		&AlertSettings{},
		&CallSession{},
	}
}
