package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/athena-api/athena/internal/chat"
	"github.com/athena-api/athena/internal/common"
	"github.com/athena-api/athena/internal/config"
	"github.com/athena-api/athena/internal/sales"
	"github.com/athena-api/athena/internal/store/rabbitmq"
	"github.com/athena-api/athena/internal/store/redisstore"
)

type Handler struct {
	Cfg     config.Config
	Sales   *sales.Repo
	ChatSvc *chat.Service
	Cache   *redisstore.Store   // nil disables caching
	Events  *rabbitmq.Publisher // nil disables audit events
}

func NewHandler(cfg config.Config, repo *sales.Repo, chatSvc *chat.Service, cache *redisstore.Store, events *rabbitmq.Publisher) *Handler {
	return &Handler{
		Cfg:     cfg,
		Sales:   repo,
		ChatSvc: chatSvc,
		Cache:   cache,
		Events:  events,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

func (h *Handler) Welcome(c *gin.Context) {
	c.String(200, "Welcome to the Athena API! Use the following endpoints: GET /api/customers, GET /api/sales-orders, or POST /api/chat for AI-powered analysis.")
}
