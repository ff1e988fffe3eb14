package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Limmita2/FaseWatch/internal/api/handlers"
	"github.com/Limmita2/FaseWatch/internal/api/ws"
	"github.com/Limmita2/FaseWatch/internal/auth"
	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/vision"
)

// Store is the non-transactional read/write surface the handlers need.
type Store interface {
	handlers.MessageStore
	handlers.InputStore
	handlers.GroupLister
}

type RouterConfig struct {
	Keys        auth.Keys
	Store       Store
	Blobs       identity.BlobStore
	Tasks       handlers.TaskPublisher
	ReviewQueue *identity.ReviewQueue
	Curator     *identity.Curator
	Matcher     *identity.Matcher
	// Analyzer serves face search uploads.
	Analyzer   vision.Analyzer
	Hub        *ws.Hub
	Checks     map[string]handlers.Check
	ContextTTL time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig()))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.Keys))
	admin := auth.RequireAdmin()

	var notify handlers.Notifier
	if cfg.Hub != nil {
		notify = cfg.Hub
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	queueH := handlers.NewQueueHandler(cfg.ReviewQueue, notify)
	v1.GET("/queue", queueH.List)
	v1.POST("/queue/:id/confirm", queueH.Confirm)
	v1.POST("/queue/:id/reject", queueH.Reject)

	personH := handlers.NewPersonHandler(cfg.Curator, notify)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.PATCH("/persons/:id", personH.Update)
	v1.POST("/persons/merge", admin, personH.Merge)
	v1.DELETE("/persons/:id", admin, personH.Delete)

	searchH := handlers.NewSearchHandler(cfg.Analyzer, cfg.Matcher, cfg.Store, cfg.ContextTTL)
	v1.POST("/search/face", searchH.Face)
	v1.GET("/search/text", searchH.Text)

	messageH := handlers.NewMessageHandler(cfg.Store, cfg.Curator)
	v1.GET("/messages", messageH.List)
	v1.GET("/messages/:id/context", messageH.Context)
	v1.DELETE("/messages/:id", admin, messageH.Delete)

	faceH := handlers.NewFaceHandler(cfg.Store, cfg.Blobs)
	v1.GET("/faces/:id/crop", faceH.Crop)

	inputH := handlers.NewInputHandler(cfg.Store, cfg.Blobs, cfg.Tasks)
	v1.POST("/input", inputH.Upload)

	groupH := handlers.NewGroupHandler(cfg.Store, cfg.Curator)
	v1.GET("/groups", groupH.List)
	v1.DELETE("/groups/:id", admin, groupH.Delete)

	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AddAllowHeaders("X-API-Key", "X-Reviewer")
	return c
}
