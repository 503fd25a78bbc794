package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"anchor/backend/internal/config"
	"anchor/backend/internal/docstore"
	"anchor/backend/internal/enrichment"
	"anchor/backend/internal/journal"
)

const (
	collectionSafetyPlans      = "safety_plans"
	collectionCrisisLogs       = "crisis_logs"
	collectionCommunityStories = "community_stories"
	collectionNotifications    = "notifications"
)

// Enricher is satisfied by *enrichment.Pipeline.
type Enricher interface {
	Enrich(ctx context.Context, text string) enrichment.Record
}

// Deps are the collaborators built once in cmd/api.
type Deps struct {
	Store     docstore.Store
	Enricher  Enricher
	Safety    enrichment.SafetyClassifier
	Reflector enrichment.Reflector
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     docstore.Store
	journals  *journal.Repository
	enricher  Enricher
	safety    enrichment.SafetyClassifier
	reflector enrichment.Reflector
	gatherer  prometheus.Gatherer
	digests   *digestCache
	now       func() time.Time
}

type AuthUser struct {
	ID string
}

func New(cfg config.Config, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	enricher := deps.Enricher
	if enricher == nil {
		enricher = enrichment.NewPipeline(nil, nil, nil, nil)
	}
	return &App{
		cfg:       cfg,
		logger:    logger.Named("server"),
		store:     deps.Store,
		journals:  journal.NewRepository(deps.Store),
		enricher:  enricher,
		safety:    deps.Safety,
		reflector: deps.Reflector,
		gatherer:  deps.Gatherer,
		digests:   newDigestCache(time.Duration(cfg.WrappedCacheTTLSeconds) * time.Second),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(a.corsConfig()))

	router.GET("/health", a.health)
	if a.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}

	public := router.Group(a.cfg.APIPrefix)
	public.GET("/wrapped/demo", a.getWrappedDemo)
	public.GET("/community/stories", a.listCommunityStories)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.POST("/journals", a.createJournal)
	api.GET("/journals", a.listJournals)
	api.GET("/journals/sessions", a.listSessions)
	api.GET("/journals/session/:session_id", a.getSessionMessages)
	api.GET("/dashboard/overview", a.getDashboardOverview)
	api.GET("/wrapped", a.getWrapped)
	api.GET("/safety-plans", a.getSafetyPlan)
	api.POST("/safety-plans", a.upsertSafetyPlan)
	api.POST("/crisis/start", a.startCrisis)
	api.GET("/crisis/support", a.getCrisisSupport)
	api.POST("/community/stories", a.submitCommunityStory)
	api.POST("/community/stories/:story_id/like", a.likeCommunityStory)
	api.POST("/community/stories/:story_id/save", a.saveCommunityStory)
	api.GET("/notifications", a.listNotifications)
	api.POST("/notifications/:notification_id/acknowledge", a.acknowledgeNotification)

	return router
}

func (a *App) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range a.cfg.CORSAllowOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = a.cfg.CORSAllowOrigins
	return cfg
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "anchor-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.DevMode {
			c.Set("authUser", AuthUser{ID: a.cfg.DevUserID})
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		c.Set("authUser", AuthUser{ID: sub})
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// requireUser is the common prologue of authenticated handlers.
func requireUser(c *gin.Context) (AuthUser, bool) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return AuthUser{}, false
	}
	return user, true
}

// documentJSON flattens a stored document into a response object with its id.
func documentJSON(doc docstore.Document) gin.H {
	out := gin.H{"id": doc.ID}
	for key, value := range doc.Fields {
		out[key] = value
	}
	return out
}
