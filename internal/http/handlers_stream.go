package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smartledger/internal/core"
	"smartledger/internal/live"
	"smartledger/internal/log"
)

type snapshotEvent struct {
	Version      uint64             `json:"version"`
	Transactions []core.Transaction `json:"transactions"`
	TakenAt      time.Time          `json:"takenAt"`
}

// handleStream sends the user's full ledger as a server-sent "snapshot" event
// on connect and again after every change, until the client goes away or the
// server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session(r)
	logger := log.FromContext(ctx)

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.WarnContext(ctx, "Failed to clear write deadline", "error", err)
	}

	snapshots, err := s.live.Subscribe(ctx, sess.UserID())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.ErrorContext(ctx, "Streaming not supported", "error", err)
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := writeSnapshot(w, snap); err != nil {
				logger.DebugContext(ctx, "Snapshot stream closed", "error", err)
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snap live.Snapshot) error {
	txs := snap.Transactions
	if txs == nil {
		txs = []core.Transaction{}
	}
	data, err := json.Marshal(snapshotEvent{Version: snap.Version, Transactions: txs, TakenAt: snap.TakenAt})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\nid: %d\ndata: %s\n\n", snap.Version, data)
	return err
}
