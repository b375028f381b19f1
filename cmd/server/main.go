package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/inkwell-md/inkwell/internal/api"
	"github.com/inkwell-md/inkwell/internal/config"
	"github.com/inkwell-md/inkwell/internal/doc"
	"github.com/inkwell-md/inkwell/internal/hub"
	"github.com/inkwell-md/inkwell/internal/store"
	"github.com/inkwell-md/inkwell/internal/ws"
)

func main() {
	cfg := config.Load()

	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	pipeline := doc.NewPipeline(doc.Options{
		PandocBin: cfg.PandocBin,
		PythonBin: cfg.PythonBin,
		DotBin:    cfg.DotBin,
	})

	h, err := hub.New(hub.Options{
		Pipeline: pipeline,
		WorkRoot: filepath.Join(cfg.DataDir, "work"),
		LockTTL:  cfg.LockTTL,
		Store:    db,
	})
	if err != nil {
		log.Fatalf("Failed to initialize hub: %v", err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(h, w, r)
	})

	apiHandler := api.New(h, cfg.DataDir)
	apiHandler.Register(router)

	handler := corsMiddleware(router)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		db.Close()
		os.Exit(0)
	}()

	log.Printf("Inkwell server starting on :%s", cfg.Port)
	log.Printf("Store: %s", cfg.DBPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket:   /ws")
	log.Println("  - Health:      GET  /health")
	log.Println("  - Stats:       GET  /api/stats")
	log.Println("  - Editor id:   POST /api/get-editor-id")
	log.Println("  - Projects:    GET  /api/projects")
	log.Println("  - New project: POST /api/new-project")
	log.Println("  - Per project: POST /api/projects/{id}/{new-file,index,index-delta,file-src,file-compiled,edit-src,reorder-file,pdf}")

	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
