// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/audioslice/config"
	"github.com/sage-x-project/audioslice/health"
	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/internal/logger"
	"github.com/sage-x-project/audioslice/internal/metrics"
	"github.com/sage-x-project/audioslice/keyexchange"
	"github.com/sage-x-project/audioslice/producer"
)

var (
	configPath string
	addr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the producer HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

// sliceWire is the HTTP wire shape of transport.EncryptedSlice: the binary
// fields travel as base64 since this demo transport carries everything as
// JSON rather than a split binary payload.
type sliceWire struct {
	ID                  string `json:"id"`
	Sequence            int    `json:"sequence"`
	SessionID           string `json:"sessionId"`
	TrackID             string `json:"trackId,omitempty"`
	EncryptedData       string `json:"encryptedData"`
	EncryptedDataLength int    `json:"encryptedDataLength"`
	IV                  string `json:"iv"`
	IVLength            int    `json:"ivLength"`
}

type keyExchangeWire struct {
	Response keyexchange.Response `json:"response"`
	Session  interface{}          `json:"sessionInfo"`
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	log := logger.GetDefaultLogger()
	registry := producer.NewRegistry(cfg.Producer)
	defer registry.Close()

	checker := health.NewHealthChecker(5 * time.Second)
	checker.RegisterCheck("sessions", health.SessionRegistryHealthCheck(registry.ActiveSessionCount, 10000))
	checker.RegisterCheck("sweeper", health.SweeperHeartbeatHealthCheck(registry.LastSweep, producer.IdleTTL+2*producer.SweepInterval))

	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		audioData, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, aerrors.New(aerrors.Malformed, "serve.createSession", err))
			return
		}
		sessionID, err := registry.CreateSession(audioData)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sessionID})
	})

	mux.HandleFunc("POST /sessions/{id}/key-exchange", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		trackID := r.URL.Query().Get("trackId")
		var req keyexchange.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, aerrors.New(aerrors.Malformed, "serve.keyExchange", err))
			return
		}
		resp, info, err := registry.HandleKeyExchange(r.Context(), sessionID, req, trackID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, keyExchangeWire{Response: resp, Session: info})
	})

	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		info, err := registry.GetSessionInfo(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("GET /sessions/{id}/slices/{sliceId}", func(w http.ResponseWriter, r *http.Request) {
		trackID := r.URL.Query().Get("trackId")
		slice, err := registry.GetSlice(r.Context(), r.PathValue("id"), r.PathValue("sliceId"), trackID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sliceWire{
			ID:                  slice.ID,
			Sequence:            slice.Sequence,
			SessionID:           slice.SessionID,
			TrackID:             slice.TrackID,
			EncryptedData:       base64.StdEncoding.EncodeToString(slice.EncryptedData),
			EncryptedDataLength: slice.EncryptedDataLength,
			IV:                  base64.StdEncoding.EncodeToString(slice.IV),
			IVLength:            slice.IVLength,
		})
	})

	mux.HandleFunc("POST /sessions/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		audioData, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, aerrors.New(aerrors.Malformed, "serve.addTrack", err))
			return
		}
		info, err := registry.AddTrack(r.PathValue("id"), audioData)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	})

	mux.HandleFunc("DELETE /sessions/{id}/tracks/{trackId}", func(w http.ResponseWriter, r *http.Request) {
		info, err := registry.RemoveTrack(r.PathValue("id"), r.PathValue("trackId"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := registry.DestroySession(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, checker.GetSystemHealth(r.Context()))
	})

	mux.Handle("GET /metrics", metrics.Handler())

	log.Info("producer server listening", logger.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind, ok := aerrors.KindOf(err); ok {
		switch kind {
		case aerrors.NotFound:
			status = http.StatusNotFound
		case aerrors.InvalidArgument, aerrors.Malformed:
			status = http.StatusBadRequest
		case aerrors.Precondition:
			status = http.StatusConflict
		case aerrors.Integrity:
			status = http.StatusUnauthorized
		case aerrors.Cancelled:
			status = 499
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
