package dto

// SiteNotificationItem represents an in-app notification
type SiteNotificationItem struct {
	ID        uint    `json:"id"`
	UUID      string  `json:"uuid"`
	AlertID   uint    `json:"alert_id"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	JobIDs    []int64 `json:"job_ids"`
	ReadAt    *string `json:"read_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// ListNotificationsRequest pages through the caller's notifications
type ListNotificationsRequest struct {
	UserID     uint `json:"-"`
	UnreadOnly bool `json:"unread_only,omitempty"`
	Page       uint `json:"page,omitempty"`
	PageSize   uint `json:"page_size,omitempty" validate:"omitempty,max=100"`
}

// ListNotificationsResponse returns a page of notifications
type ListNotificationsResponse struct {
	Message  string                 `json:"message"`
	Items    []SiteNotificationItem `json:"items"`
	Unread   int64                  `json:"unread"`
	Page     uint                   `json:"page"`
	PageSize uint                   `json:"page_size"`
}
