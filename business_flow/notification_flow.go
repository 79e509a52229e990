package businessflow

import (
	"context"

	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
)

// SiteNotificationFlow lists and acknowledges in-app notifications
type SiteNotificationFlow interface {
	ListNotifications(ctx context.Context, req *dto.ListNotificationsRequest) (*dto.ListNotificationsResponse, error)
	MarkRead(ctx context.Context, userID, id uint) error
}

type SiteNotificationFlowImpl struct {
	repo repository.SiteNotificationRepository
}

func NewSiteNotificationFlow(repo repository.SiteNotificationRepository) SiteNotificationFlow {
	return &SiteNotificationFlowImpl{repo: repo}
}

func (f *SiteNotificationFlowImpl) ListNotifications(ctx context.Context, req *dto.ListNotificationsRequest) (*dto.ListNotificationsResponse, error) {
	limit, offset, page, pageSize := pageBounds(req.Page, req.PageSize)
	rows, err := f.repo.ListByUser(ctx, req.UserID, req.UnreadOnly, limit, offset)
	if err != nil {
		return nil, NewBusinessError("NOTIFICATION_LIST_FAILED", "Failed to list notifications", err)
	}
	unread, err := f.repo.Count(ctx, models.SiteNotificationFilter{UserID: &req.UserID, UnreadOnly: true})
	if err != nil {
		return nil, NewBusinessError("NOTIFICATION_LIST_FAILED", "Failed to count unread notifications", err)
	}

	items := make([]dto.SiteNotificationItem, 0, len(rows))
	for _, n := range rows {
		items = append(items, ToSiteNotificationItem(*n))
	}
	return &dto.ListNotificationsResponse{
		Message:  "Notifications retrieved successfully",
		Items:    items,
		Unread:   unread,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// MarkRead is idempotent for notifications already read
func (f *SiteNotificationFlowImpl) MarkRead(ctx context.Context, userID, id uint) error {
	updated, err := f.repo.MarkRead(ctx, userID, id, utils.UTCNow())
	if err != nil {
		return NewBusinessError("NOTIFICATION_UPDATE_FAILED", "Failed to mark notification read", err)
	}
	if updated {
		return nil
	}
	exists, err := f.repo.Exists(ctx, models.SiteNotificationFilter{ID: &id, UserID: &userID})
	if err != nil {
		return NewBusinessError("NOTIFICATION_UPDATE_FAILED", "Failed to mark notification read", err)
	}
	if !exists {
		return NewBusinessError("NOTIFICATION_NOT_FOUND", "Notification not found", ErrNotificationNotFound)
	}
	return nil
}
