package main

import (
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avosseler/costmanager/internal/ai"
	"github.com/avosseler/costmanager/internal/config"
	"github.com/avosseler/costmanager/internal/handlers"
	"github.com/avosseler/costmanager/internal/services"
	"github.com/avosseler/costmanager/internal/store"
)

// App is the application handler with all routes configured.
type App struct {
	mux *http.ServeMux
	svc *services.PurchaseService
}

// NewApp wires the store, the engine and the AI clients into the route table.
func NewApp(dbConn *gorm.DB, cfg config.Config, log zerolog.Logger) *App {
	st := store.New(dbConn)
	vision := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, log)
	svc := services.NewPurchaseService(st, vision, log)
	speech := ai.NewSpeechClient(cfg.SpeechAPIKey, log)

	app := &App{mux: http.NewServeMux(), svc: svc}

	ph := handlers.NewPurchaseHandler(st, svc)
	app.mux.HandleFunc("GET /purchases", ph.List)
	app.mux.HandleFunc("POST /purchases", ph.Create)
	app.mux.HandleFunc("GET /purchases/{id}", ph.Get)
	app.mux.HandleFunc("PUT /purchases/{id}", ph.Update)
	app.mux.HandleFunc("DELETE /purchases/{id}", ph.Delete)
	app.mux.HandleFunc("POST /purchases/{id}/photo", ph.AttachPhoto)
	app.mux.HandleFunc("POST /undo", ph.Undo)

	poh := handlers.NewPositionHandler(svc)
	app.mux.HandleFunc("POST /purchases/{id}/positions", poh.Create)
	app.mux.HandleFunc("PUT /positions/{id}", poh.Update)
	app.mux.HandleFunc("DELETE /positions/{id}", poh.Delete)

	sh := handlers.NewScanHandler(svc, speech, cfg.SpeechLocale)
	app.mux.HandleFunc("POST /scan", sh.Scan)
	app.mux.HandleFunc("POST /speech/parse", sh.SpeechParse)
	app.mux.HandleFunc("POST /speech/record/start", sh.RecordStart)
	app.mux.HandleFunc("POST /speech/record/chunk", sh.RecordChunk)
	app.mux.HandleFunc("POST /speech/record/stop", sh.RecordStop)

	th := handlers.NewTransferHandler(svc)
	app.mux.HandleFunc("GET /export", th.Export)
	app.mux.HandleFunc("POST /import", th.Import)

	ch := handlers.NewCorrectionHandler(svc)
	app.mux.HandleFunc("GET /corrections", ch.List)
	app.mux.HandleFunc("POST /corrections/{id}", ch.Resolve)
	app.mux.HandleFunc("DELETE /corrections/{id}", ch.Dismiss)

	app.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return app
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}
