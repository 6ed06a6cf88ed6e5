package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"esimsync/internal/api"
	"esimsync/internal/app"
	"esimsync/internal/apperr"
	"esimsync/internal/config"
	"esimsync/internal/database"
	"esimsync/internal/logger"

	"github.com/gin-gonic/gin"
)

var (
	initMu sync.Mutex
	router *gin.Engine
)

// initRouter builds the router on the first successful invocation. A failed
// initialization is retried by the next invocation.
func initRouter() (*gin.Engine, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if router != nil {
		return router, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel)

	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, "handler.initRouter", err)
	}

	a, err := app.New(cfg, log, db)
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, "handler.initRouter", err)
	}

	router = api.New(cfg, log, a.APIDeps()).Router()
	return router, nil
}

// Handler is the serverless entrypoint.
func Handler(w http.ResponseWriter, r *http.Request) {
	engine, err := initRouter()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(gin.H{
			"error": err.Error(),
			"kind":  apperr.KindOf(err),
		})
		return
	}
	engine.ServeHTTP(w, r)
}
