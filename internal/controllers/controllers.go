package controllers

import (
	"ineed/config"
	"ineed/internal/services"

	notificationController "ineed/internal/controllers/notifications"
	requestController "ineed/internal/controllers/requests"
)

type Controllers struct {
	Request      requestController.RequestControllerInterface
	Notification notificationController.NotificationControllerInterface
}

func New(services services.Service, config config.Config) Controllers {
	return Controllers{
		Request:      requestController.New(services.Backend, config),
		Notification: notificationController.New(),
	}
}
