package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"emprendo-intake/internal/app"
	"emprendo-intake/internal/domain"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload,omitempty"`
}

type startRunRequest struct {
	FormSlug    string `json:"formSlug" binding:"required"`
	Mode        string `json:"mode" binding:"omitempty,oneof=rank review"`
	PendingOnly bool   `json:"pendingOnly"`
}

// RunHandler starts batch grading runs and streams their progress over
// websockets.
type RunHandler struct {
	monitor  *app.RunMonitor
	upgrader websocket.Upgrader
}

func NewRunHandler(monitor *app.RunMonitor) *RunHandler {
	return &RunHandler{
		monitor: monitor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *RunHandler) Start(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "formSlug is required and mode must be rank or review"})
		return
	}
	progress, err := h.monitor.Start(c.Request.Context(), app.RunRequest{
		FormSlug:    req.FormSlug,
		Mode:        app.RunMode(req.Mode),
		PendingOnly: req.PendingOnly,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/grading/runs/"+progress.RunID)
	c.JSON(http.StatusAccepted, progress)
}

func (h *RunHandler) Progress(c *gin.Context) {
	progress, err := h.monitor.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Stream upgrades the connection and pushes a progress message on every
// update until the run finishes or the client goes away.
func (h *RunHandler) Stream(c *gin.Context) {
	updates, unsubscribe, err := h.monitor.Subscribe(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan any, 16)
	done := make(chan struct{})
	closeSignals := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("write error: %v", err)
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
	}()

	// the client sends nothing; reading only detects the close frame
	go func() {
		defer close(closeSignals)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		close(send)
		<-done
	}()

	for {
		select {
		case progress, ok := <-updates:
			if !ok {
				return
			}
			select {
			case send <- outboundMessage[domain.RunProgress]{Type: "progress", Payload: progress}:
			case <-done:
				return
			}
			if progress.Finished {
				return
			}
		case <-closeSignals:
			return
		case <-done:
			return
		}
	}
}
