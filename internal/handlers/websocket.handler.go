package handlers

import (
	"ineed/internal/app"
	"ineed/internal/handlers/middleware"
	"ineed/internal/websockets"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func WebSocketHandler(router fiber.Router, app *app.App) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws/:role", app.Middleware.RequireSession(), attachView, websocket.New(func(c *websocket.Conn) {
		app.Websocket.HandleWebSocket(c)
	}))
}

// attachView hands the session's identity and current badges to the upgraded
// connection.
func attachView(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	snapshot := map[string]any{
		"identity": session.Identity,
	}
	if session.Feed != nil {
		snapshot["notificationUnread"] = session.Feed.UnreadCount()
	}
	if session.Unread != nil {
		counts := session.Unread.Counts()
		snapshot["chatUnread"] = counts.Total()
		snapshot["chatEntries"] = counts.Entries()
	}

	c.Locals(websockets.IDENTITY_LOCAL_KEY, session.Identity.Key())
	c.Locals(websockets.SNAPSHOT_LOCAL_KEY, snapshot)
	return c.Next()
}
