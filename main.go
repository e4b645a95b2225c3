package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"mex/internal/config"
	"mex/internal/websocket"
)

var (
	cfg   *config.Config
	wsHub = websocket.NewHub()
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	var err error
	cfg, err = config.Load(*configPath)
	if err != nil {
		log.Fatal("Config load failed: ", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed: ", err)
	}
	seedDB(cfg.SeedDemoData)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("mex server starting on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, logging(requireAuth(newMux()))))
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Auth routes
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", handleMe)

	// Live entity change events
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Handle(wsHub, w, r)
	})

	// API routes - using a simple router
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Work Orders
		case parts[0] == "workorders" && len(parts) == 1 && r.Method == "GET":
			handleListWorkOrders(w, r)
		case parts[0] == "workorders" && len(parts) == 1 && r.Method == "POST":
			handleCreateWorkOrder(w, r)
		case parts[0] == "workorders" && len(parts) == 2 && r.Method == "GET":
			handleGetWorkOrder(w, r, parts[1])
		case parts[0] == "workorders" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateWorkOrder(w, r, parts[1])
		case parts[0] == "workorders" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteWorkOrder(w, r, parts[1])

		// NCRs
		case parts[0] == "ncrs" && len(parts) == 1 && r.Method == "GET":
			handleListNCRs(w, r)
		case parts[0] == "ncrs" && len(parts) == 1 && r.Method == "POST":
			handleCreateNCR(w, r)
		case parts[0] == "ncrs" && len(parts) == 2 && r.Method == "GET":
			handleGetNCR(w, r, parts[1])
		case parts[0] == "ncrs" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateNCR(w, r, parts[1])

		// Vendors
		case parts[0] == "vendors" && len(parts) == 1 && r.Method == "GET":
			handleListVendors(w, r)
		case parts[0] == "vendors" && len(parts) == 1 && r.Method == "POST":
			handleCreateVendor(w, r)
		case parts[0] == "vendors" && len(parts) == 2 && r.Method == "GET":
			handleGetVendor(w, r, parts[1])
		case parts[0] == "vendors" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateVendor(w, r, parts[1])
		case parts[0] == "vendors" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteVendor(w, r, parts[1])

		// Audit
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			handleAuditLog(w, r)
		case parts[0] == "audit" && len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
			handleExportAuditLog(w, r)

		default:
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	return mux
}
