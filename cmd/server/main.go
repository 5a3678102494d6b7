package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "gridloot/internal/persistence/log"
	"gridloot/internal/persistence/snapshot"
	"gridloot/internal/store"
	"gridloot/internal/transport/ws"
	"gridloot/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		snapPath   = flag.String("snapshot", "", "path to a campaign snapshot to restore before serving (optional)")
		noAudit    = flag.Bool("disable_audit", false, "disable the JSONL mutation log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tpath := *tuningPath
	if tpath == "" {
		tpath = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tpath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("tuning: %v", err)
		}
		tune = tuning.Defaults()
		logger.Printf("tuning file %s not found, using defaults", tpath)
	}

	var audit store.AuditSink
	if !*noAudit {
		mlog := persistlog.NewMutationLogger(*dataDir)
		defer mlog.Close()
		audit = mlog
	}

	st, err := store.OpenSQLite(filepath.Join(*dataDir, "documents.db"), audit)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := snapshot.Restore(ctx, st, snap); err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		logger.Printf("restored campaign=%s docs=%d from %s", snap.Header.CampaignID, len(snap.Documents), filepath.Base(*snapPath))
	}

	wsSrv := ws.NewServer(st, tune, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := wsSrv.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP gridloot_connections Current number of connected viewers.\n")
		fmt.Fprintf(rw, "# TYPE gridloot_connections gauge\n")
		fmt.Fprintf(rw, "gridloot_connections %d\n", m.ConnsActive)

		fmt.Fprintf(rw, "# HELP gridloot_connections_total Total accepted connections.\n")
		fmt.Fprintf(rw, "# TYPE gridloot_connections_total counter\n")
		fmt.Fprintf(rw, "gridloot_connections_total %d\n", m.ConnsTotal)

		fmt.Fprintf(rw, "# HELP gridloot_intents_total Total intents dispatched.\n")
		fmt.Fprintf(rw, "# TYPE gridloot_intents_total counter\n")
		fmt.Fprintf(rw, "gridloot_intents_total %d\n", m.Intents)

		fmt.Fprintf(rw, "# HELP gridloot_acks_failed_total Total failed acks, rollbacks included.\n")
		fmt.Fprintf(rw, "# TYPE gridloot_acks_failed_total counter\n")
		fmt.Fprintf(rw, "gridloot_acks_failed_total %d\n", m.AcksFailed)
	})

	enableAdminHTTP := envBool("GL_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("GL_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			campaign := strings.TrimSpace(r.URL.Query().Get("campaign"))
			if campaign == "" {
				http.Error(rw, "missing campaign", http.StatusBadRequest)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 10*time.Second)
			defer cancel2()
			snap, err := snapshot.Capture(ctx2, st, campaign)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			path := filepath.Join(*dataDir, "snapshots", campaign+"-"+snap.Header.TakenAt.UTC().Format("20060102T150405Z")+".snap.zst")
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path, "docs": len(snap.Documents), "rev": snap.Header.Rev})
		})
	} else {
		logger.Printf("admin endpoints disabled (GL_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
