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

package main

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/quiverdb/storaged/dispatch"
)

// server binds one dispatch.Dispatcher to an HTTP entry point: the
// three RPCs of spec §6 as JSON-over-HTTP handlers, plus a version/ping
// pair mirroring the teacher's own /, /ping endpoints.
type server struct {
	logger     *log.Logger
	dispatcher *dispatch.Dispatcher

	srv   http.Server
	bound net.Addr
}

func (s *server) handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle(s.versionHandler, http.MethodGet))
	mux.HandleFunc("/ping", s.handle(s.pingHandler, http.MethodGet))
	mux.HandleFunc("/v1/neighbor", s.handle(s.neighborHandler, http.MethodPost))
	mux.HandleFunc("/v1/scan", s.handle(s.scanHandler, http.MethodPost))
	mux.HandleFunc("/v1/indexlookup", s.handle(s.indexLookupHandler, http.MethodPost))
	return mux
}

// Serve blocks, accepting connections on l until Shutdown/Close.
func (s *server) Serve(l net.Listener) error {
	s.bound = l.Addr()
	s.srv.Handler = s.handler()
	s.logger.Printf("storaged listening on %v", l.Addr())
	return s.srv.Serve(l)
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.srv.Close()
}
