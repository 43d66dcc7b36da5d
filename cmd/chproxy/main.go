// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Command chproxy is the reverse-proxy process: it loads its JSON
// configuration, pings the upstream database, wires the HTTP router
// (query handling, metrics), starts the background cache evictor if
// configured, and serves.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clickproxy/clickproxy/internal/cache"
	"github.com/clickproxy/clickproxy/internal/chclient"
	"github.com/clickproxy/clickproxy/internal/config"
	"github.com/clickproxy/clickproxy/internal/declarative"
	"github.com/clickproxy/clickproxy/internal/evict"
	"github.com/clickproxy/clickproxy/internal/metrics"
	"github.com/clickproxy/clickproxy/internal/proxyhttp"
)

func main() {
	configFile := flag.String("config", "config.json", "Configuration file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("can't load %q: %v", *configFile, err)
	}

	client := chclient.New(cfg.UpstreamURL)

	logger.Printf("testing connection with upstream %s", cfg.UpstreamURL)
	if err := client.Ping(); err != nil {
		logger.Fatalf("upstream connectivity check failed: %v", err)
	}
	logger.Printf("connected with upstream")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var prelude string
	if cfg.PreludePath != "" {
		data, err := os.ReadFile(cfg.PreludePath)
		if err != nil {
			logger.Fatalf("can't read prelude %q: %v", cfg.PreludePath, err)
		}
		prelude = string(data)
	}

	var store *cache.Store
	if cfg.CacheRoot != "" {
		if err := os.MkdirAll(cfg.CacheRoot, 0o750); err != nil {
			logger.Fatalf("can't create cache root %q: %v", cfg.CacheRoot, err)
		}
		store = cache.NewStore(cfg.CacheRoot, time.Duration(cfg.CacheExpiry), m)

		sweeper := &evict.Sweeper{
			Root:     cfg.CacheRoot,
			Expiry:   time.Duration(cfg.CacheExpiry),
			Interval: time.Duration(cfg.CacheFSCleanupInterval),
			Logger:   logger,
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sweeper.Run(ctx)
	}

	h := &proxyhttp.Handler{
		Client:       client,
		Store:        store,
		Evaluator:    declarative.JsonnetEvaluator{},
		LibraryPaths: cfg.LibraryPaths,
		Prelude:      prelude,
		Metrics:      m,
		Logger:       logger,
	}

	router := proxyhttp.NewRouter(h, reg)

	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	logger.Printf("listening on %s", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	if *verbose {
		srv.Handler = loggingMiddleware(logger, router)
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal(err)
	}
}

// loggingMiddleware logs method/path/status/duration for every request
// when -v is passed, mirroring the teacher's verbose-mode request log.
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)
		logger.Printf("%s %s (remote: %s, status: %d, took: %s)",
			r.Method, r.URL.Path, r.RemoteAddr, lw.statusCode, time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
