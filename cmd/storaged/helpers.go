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
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/quiverdb/storaged/dispatch"
)

// handle wraps an RPC handler the way the teacher's helpers.go does:
// request logging, CORS headers, and a method allow-list, factored
// out of every individual handler.
func (s *server) handle(handler func(http.ResponseWriter, *http.Request), methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		remoteAddress := r.RemoteAddr
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			parts := strings.Split(forwardedFor, ",")
			remoteAddress = strings.TrimSpace(parts[len(parts)-1])
		}
		s.logger.Printf("request %s %s from %s", r.Method, r.URL.Path, remoteAddress)
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		for _, m := range methods {
			if r.Method == m {
				handler(w, r)
				return
			}
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body := marshalOrPanic(v)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

// decodeJSON reads and decodes r's body into dst, rejecting bodies
// above a sane size the way the teacher's queryHandler bounds its
// own POST body with http.MaxBytesReader.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, 16*1024*1024)
	return json.NewDecoder(body).Decode(dst)
}

// writeDispatchError maps an error coming back from the dispatch
// package to an HTTP response: a *dispatch.RequestError is the
// request-fatal case (§7) and carries its own Code, reported as 422;
// anything else is this server's own fault.
func writeDispatchError(w http.ResponseWriter, err error) {
	if re, ok := err.(*dispatch.RequestError); ok {
		writeJSON(w, http.StatusUnprocessableEntity, requestFatal{Code: re.Code, Message: re.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, requestFatal{Code: dispatch.StorageError, Message: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, requestFatal{Message: err.Error()})
}
