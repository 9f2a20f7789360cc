package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/athena-api/athena/internal/ai"
	"github.com/athena-api/athena/internal/httpapi/middleware"
	"github.com/athena-api/athena/internal/store/rabbitmq"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// Chat handles POST /api/chat: it hands the conversation to the chat
// service and relays the assistant's answer as a chunked text stream,
// flushing every fragment as it arrives.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		c.String(http.StatusBadRequest, "Invalid request body")
		return
	}

	messages := make([]ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		log.Printf("[chat] response writer does not support streaming")
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	start := time.Now()
	requestID := c.GetString(middleware.RequestIDKey)

	ctx := c.Request.Context()
	chunks, errs := h.ChatSvc.Stream(ctx, messages)

	wrote := false
	for chunk := range chunks {
		if !wrote {
			c.Status(http.StatusOK)
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			log.Printf("[chat] write failed request_id=%s err=%v", requestID, err)
			return
		}
		wrote = true
		flusher.Flush()
	}

	if err := <-errs; err != nil {
		log.Printf("[chat] stream failed request_id=%s err=%v", requestID, err)
		h.publishChatEvent(requestID, "failed", err.Error(), start)
		if !wrote {
			// Nothing sent yet; the failure can still be a status code.
			if ai.IsBackendError(err) {
				c.Status(http.StatusBadGateway)
			} else {
				c.Status(http.StatusInternalServerError)
			}
			return
		}
		// Partial output stands; terminate with an explicit marker
		// rather than presenting truncation as success.
		_, _ = c.Writer.WriteString("\n[stream error]\n")
		flusher.Flush()
		return
	}

	h.publishChatEvent(requestID, "completed", "", start)
}

func (h *Handler) publishChatEvent(requestID, status, errMsg string, start time.Time) {
	if h.Events == nil {
		return
	}
	ev := rabbitmq.ChatEvent{
		RequestID:  requestID,
		Status:     status,
		Error:      errMsg,
		DurationMS: time.Since(start).Milliseconds(),
		At:         time.Now().UTC(),
	}
	// Detached from the request context: auditing outlives the client.
	go func() {
		if err := h.Events.PublishChatEvent(context.Background(), ev); err != nil {
			log.Printf("[chat] audit publish failed request_id=%s err=%v", requestID, err)
		}
	}()
}
