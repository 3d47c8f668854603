package api

import (
	"net/http"

	"arcade/observability"
	"arcade/service"

	"github.com/gin-gonic/gin"
)

// Services are the collaborators the HTTP layer dispatches to
type Services struct {
	Users        service.UserService
	Sessions     service.SessionService
	Ledger       service.LedgerService
	Transfers    service.TransferService
	Leaderboards service.LeaderboardService
}

// NewRouter builds the gin engine with every route registered.
// mode is a gin mode ("debug", "release" or "test"); empty keeps the current mode.
// metrics may be nil.
func NewRouter(services Services, metrics *observability.MetricsProvider, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()
	r.Use(RequestLogger(metrics), gin.Recovery())
	r.HandleMethodNotAllowed = true

	h := &handlers{services: services}

	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/register", h.register)
	api.POST("/login", h.login)
	api.GET("/leaderboard", h.leaderboard)

	authed := api.Group("", RequireSession(services.Sessions))
	authed.POST("/tx", h.applyTx)
	authed.POST("/transfer", h.transfer)
	authed.GET("/transfer", h.transferQuery)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "not found")
	})

	return r
}
