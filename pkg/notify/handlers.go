package notify

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// longPollTimeout bounds how long a poll request holds its connection before
// answering with no change. Clients immediately reconnect.
const longPollTimeout = 30 * time.Second

type handler struct {
	hub *Hub
}

type pollResponse struct {
	Topic   Topic `json:"topic"`
	Changed bool  `json:"changed"`
}

// poll blocks until the topic is published, the client goes away, or the
// timeout lapses. It is how the UI finds out it should re-run its queries
// without the daemon pushing anything.
func (h *handler) poll(c echo.Context) error {
	params := PollQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	topic := Topic(params.Topic)
	ch, unsubscribe := h.hub.Subscribe(topic)
	defer unsubscribe()

	timer := time.NewTimer(longPollTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return errors.WithStack(c.JSON(http.StatusOK, pollResponse{Topic: topic, Changed: true}))
	case <-timer.C:
		return errors.WithStack(c.JSON(http.StatusOK, pollResponse{Topic: topic, Changed: false}))
	case <-c.Request().Context().Done():
		return errors.WithStack(c.Request().Context().Err())
	}
}
