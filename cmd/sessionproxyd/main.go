/******************************************************************************
 *
 *  Description :
 *
 *    sessionproxyd: a standalone session proxy server. Bootstraps config,
 *    logging, metrics, a websocket listener, and the Directory, in the
 *    style of tinode-db/main.go's flag+config bootstrap combined with
 *    volvlabs-towncryer-chat-server/server/http.go's http.Server wiring.
 *
 *****************************************************************************/

package main

import (
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/collabhub/sessionproxy/internal/authz"
	"github.com/collabhub/sessionproxy/internal/config"
	"github.com/collabhub/sessionproxy/internal/demo"
	"github.com/collabhub/sessionproxy/internal/directory"
	"github.com/collabhub/sessionproxy/internal/logs"
	"github.com/collabhub/sessionproxy/internal/metrics"
	"github.com/collabhub/sessionproxy/internal/proxy"
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/transport/ws"
)

func main() {
	conffile := flag.String("config", "./sessionproxy.conf", "path to the server config file")
	flag.Parse()

	cfg, err := config.Load(*conffile)
	if err != nil {
		log.Fatal(err)
	}
	cfg, err = config.ParseFlags(cfg, flag.Args())
	if err != nil {
		log.Fatal(err)
	}

	if err := logs.Init(cfg.LogLevel); err != nil {
		log.Fatal(err)
	}
	defer logs.Sync()

	registry := prometheus.NewRegistry()
	metricsCollector := metrics.New(registry)

	var rejectJoin proxy.RejectJoinListener
	if len(cfg.Authz) > 0 {
		switch cfg.AuthzScheme {
		case "legacy_token":
			authorizer, err := authz.InitLegacyToken(string(cfg.Authz))
			if err != nil {
				log.Fatal(err)
			}
			rejectJoin = authorizer.RejectJoin
		case "jwt", "":
			authorizer, err := authz.Init(string(cfg.Authz))
			if err != nil {
				log.Fatal(err)
			}
			rejectJoin = authorizer.RejectJoin
		default:
			log.Fatalf("sessionproxyd: unknown authz_scheme %q", cfg.AuthzScheme)
		}
		logs.Info.Printf("sessionproxyd: join authorization enabled (%s)", cfg.AuthzScheme)
	}

	seq, err := directory.NewIDGenerator(1)
	if err != nil {
		log.Fatal(err)
	}
	dir := directory.New(
		func(name string) (session.Session, io.Closer, error) {
			sess, err := demo.NewSession(name)
			return sess, nil, err
		},
		func() session.Group { return ws.NewGroup() },
		metricsCollector,
		time.Duration(cfg.IdleUnloadAfterSec)*time.Second,
		seq,
		func(p *proxy.SessionProxy) {
			if rejectJoin != nil {
				p.OnRejectJoin(rejectJoin)
			}
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("session")
		if name == "" {
			http.Error(w, "missing \"session\" query parameter", http.StatusBadRequest)
			return
		}
		if err := dir.Ensure(name); err != nil {
			logs.Warn.Printf("sessionproxyd: failed to load session %q: %v", name, err)
			http.Error(w, "failed to load session", http.StatusInternalServerError)
			return
		}

		// Every call below is routed through dir, never straight at a
		// SessionProxy: two connections to the same name run these
		// callbacks from two different goroutines, and the proxy itself
		// requires callers to marshal that concurrency on its behalf.
		conn, err := ws.Accept(w, r,
			func(c *ws.Conn, data []byte) {
				if _, err := dir.Dispatch(name, c, data); err != nil {
					logs.Warn.Printf("sessionproxyd: dispatch error on %s: %v", c.ID(), err)
				}
			},
			func(c *ws.Conn) {
				if err := dir.MemberRemoved(name, c); err != nil {
					logs.Warn.Printf("sessionproxyd: member-removed notification failed for %s: %v", c.ID(), err)
				}
			},
		)
		if err != nil {
			logs.Warn.Printf("sessionproxyd: websocket upgrade failed: %v", err)
			return
		}
		if err := dir.SubscribeTo(name, conn, dir.NextSeqID(), false); err != nil {
			logs.Warn.Printf("sessionproxyd: subscribe failed for %s: %v", conn.ID(), err)
			conn.Close()
		}
	})

	if cfg.MetricsListen != "" {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			logs.Info.Printf("sessionproxyd: serving metrics on %s", cfg.MetricsListen)
			if err := http.ListenAndServe(cfg.MetricsListen, metricsMux); err != nil {
				logs.Err.Printf("sessionproxyd: metrics server stopped: %v", err)
			}
		}()
	}

	logged := handlers.LoggingHandler(os.Stdout, mux)
	srv := &http.Server{
		Handler:           logged,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		MaxHeaderBytes:    1 << 14,
	}

	stop := signalHandler()
	logs.Info.Printf("sessionproxyd: listening for websocket connections on %s", cfg.Listen)
	if err := listenAndServe(cfg.Listen, srv, stop); err != nil {
		logs.Err.Printf("sessionproxyd: %v", err)
		os.Exit(1)
	}
}
