package models

type Notification struct {
	ID         ID     `json:"id"`
	UserID     ID     `json:"userId,omitempty"`
	UserType   Role   `json:"userType,omitempty"`
	MessageKey string `json:"messageKey"`
	Message    string `json:"message,omitempty"`
	IsRead     Flag   `json:"isRead"`
	CreatedAt  string `json:"createdAt,omitempty"`
	Action     string `json:"action,omitempty"`
}

// Toast is the transient popup raised the first time an unread notification is seen.
type Toast struct {
	NotificationID ID     `json:"notificationId"`
	MessageKey     string `json:"messageKey"`
	Message        string `json:"message,omitempty"`
	Action         string `json:"action,omitempty"`
}

func (n Notification) Toast() Toast {
	return Toast{
		NotificationID: n.ID,
		MessageKey:     n.MessageKey,
		Message:        n.Message,
		Action:         n.Action,
	}
}

type NotificationIDs struct {
	IDs []ID `json:"ids" validate:"required,min=1"`
}

func CountUnread(notifications []Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.IsRead {
			count++
		}
	}
	return count
}
