// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// storaged is the daemon entry point for the storage-side query core:
// it binds a dispatch.Dispatcher to an HTTP listener exposing the
// three RPCs of spec §6 (Neighbor, Scan, IndexLookup).
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/quiverdb/storaged/config"
	"github.com/quiverdb/storaged/dispatch"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/killreg"
	"github.com/quiverdb/storaged/kv"
)

var version = "development"

func main() {
	endpoint := flag.String("e", "127.0.0.1:8000", "endpoint to listen on")
	spaceFile := flag.String("space", "", "path to a YAML space catalog description (required)")
	readerHandlers := flag.Int("reader-handlers", 0, "reader pool size (0 = number of detected CPUs)")
	readerHandlersType := flag.String("reader-handlers-type", "cpu", "reader pool scheduling policy: io or cpu")
	queryConcurrently := flag.Bool("query-concurrently", false, "fan out each request's partitions across the reader pool instead of running them inline")
	maxEdgePerVertex := flag.Int64("max-edges-per-vertex", 0, "hard cap on edges returned per source vertex (0 = unbounded)")
	checkKilledEvery := flag.Int("check-killed-frequency", 0, "rows between cancellation polls (0 = every row)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.Lshortfile)

	if *spaceFile == "" {
		logger.Fatal("missing required -space flag (path to a YAML space catalog description)")
	}

	logger.Printf("storaged %s starting, %d logical CPUs detected, AVX2=%v", version, runtime.NumCPU(), cpu.X86.HasAVX2)

	cfg := config.Default()
	if *readerHandlers > 0 {
		cfg.ReaderHandlers = *readerHandlers
	}
	cfg.ReaderHandlersType = config.ParseReaderPoolKind(*readerHandlersType, logger)
	cfg.QueryConcurrently = *queryConcurrently
	cfg.MaxEdgeReturnedPerVertex = *maxEdgePerVertex
	cfg.CheckPlanKilledFrequency = *checkKilledEvery

	spaceCfg, err := loadSpaceConfig(*spaceFile)
	if err != nil {
		logger.Fatalf("loading space config: %s", err)
	}
	cat, err := newMemCatalog(spaceCfg)
	if err != nil {
		logger.Fatalf("building catalog: %s", err)
	}
	store := newMemStore()

	d := &dispatch.Dispatcher{
		Catalog: cat,
		Readers: func(part uint32) (kv.Reader, error) { return store.partition(part), nil },
		Config:  cfg,
		Kill:    killreg.NewMap(),
		Layout:  key.Layout{VIDLen: spaceCfg.VIDLen},
		Logger:  logger,
	}

	l, err := net.Listen("tcp", *endpoint)
	if err != nil {
		logger.Fatal(err)
	}

	srv := &server{logger: logger, dispatcher: d}
	go func() {
		if err := srv.Serve(l); err != nil {
			logger.Println(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
