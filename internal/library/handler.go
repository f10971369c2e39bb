package library

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/internal/events"
	"gamevault/internal/sync"
	"gamevault/pkg/models"
)

// Notifier fans library changes out to connected clients and the event bus.
type Notifier struct {
	Hub    *sync.Hub
	Events events.Publisher
	Log    *zap.Logger
}

func NewNotifier(hub *sync.Hub, pub events.Publisher, log *zap.Logger) *Notifier {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{Hub: hub, Events: pub, Log: log.With(zap.String("component", "library-events"))}
}

// Notify never fails the caller: the write already succeeded, so publish
// errors are only logged. Events reach hub clients in call order.
func (n *Notifier) Notify(ctx context.Context, ev sync.LibraryEvent) {
	if n == nil {
		return
	}
	if n.Hub != nil {
		n.Hub.Broadcast(ev)
	}
	if err := events.PublishLibrary(context.WithoutCancel(ctx), n.Events, ev); err != nil {
		n.Log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// Handler serves the signed-in user's cloud collection.
type Handler struct {
	Repo   *Repo
	Events *Notifier
	Log    *zap.Logger
}

func NewHandler(repo *Repo, notify *Notifier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repo: repo, Events: notify, Log: log.With(zap.String("component", "library"))}
}

// RegisterRoutes mounts the collection under rg, which must run
// auth.AuthMiddleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/library", h.list)
	rg.GET("/library/stats", h.stats)
	rg.GET("/library/:game_id", h.getOne)
	rg.PUT("/library/:game_id", h.put)
	rg.DELETE("/library/:game_id", h.remove)
}

type putReq struct {
	Name     string  `json:"name"`
	CoverURL *string `json:"coverUrl"`
	Status   string  `json:"status"`
}

func (h *Handler) put(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	var req putReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	g := models.OwnedGame{GameID: gameID, Name: strings.TrimSpace(req.Name), CoverURL: req.CoverURL}
	if req.Status != "" {
		st, ok := models.ParsePlayState(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "status must be one of: UNSPECIFIED, WANT_TO_PLAY, PLAYING, COMPLETED",
			})
			return
		}
		g.Status = st
	}

	ctx := c.Request.Context()
	if err := h.Repo.Upsert(ctx, p.UserID, g); err != nil {
		h.Log.Error("save failed", zap.String("user_id", p.UserID), zap.Int64("game_id", gameID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	saved, err := h.Repo.Get(ctx, p.UserID, gameID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.Events.Notify(ctx, sync.UpdatedEvent(p.UserID, *saved))
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) list(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var status models.PlayState
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, ok := models.ParsePlayState(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		status = st
	}

	items, err := h.Repo.List(c.Request.Context(), p.UserID, status)
	if err != nil {
		h.Log.Error("list failed", zap.String("user_id", p.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}

func (h *Handler) getOne(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	g, err := h.Repo.Get(c.Request.Context(), p.UserID, gameID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) remove(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	deleted, err := h.Repo.Delete(ctx, p.UserID, gameID)
	if err != nil {
		h.Log.Error("delete failed", zap.String("user_id", p.UserID), zap.Int64("game_id", gameID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.Events.Notify(ctx, sync.DeletedEvent(p.UserID, gameID))
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) stats(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	st, err := h.Repo.Stats(c.Request.Context(), p.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func gameIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("game_id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game_id must be a positive integer"})
		return 0, false
	}
	return id, true
}
