package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/interfaces"
	"github.com/ternarybob/harvest/internal/models"
	"github.com/ternarybob/harvest/internal/services/manager"
)

// ProgressHandler streams download run progress over Server-Sent Events.
// Clients get the full run snapshot on connect, log lines as they happen,
// and periodic snapshots until the run reaches a terminal state.
type ProgressHandler struct {
	downloadService interfaces.DownloadService
	eventService    interfaces.EventService
	logger          arbor.ILogger

	subsMu sync.RWMutex
	subs   map[*progressSubscriber]struct{}
}

type ssePing struct {
	Timestamp time.Time `json:"timestamp"`
}

func NewProgressHandler(downloadService interfaces.DownloadService, eventService interfaces.EventService, logger arbor.ILogger) *ProgressHandler {
	h := &ProgressHandler{
		downloadService: downloadService,
		eventService:    eventService,
		logger:          logger,
		subs:            make(map[*progressSubscriber]struct{}),
	}

	eventService.Subscribe(interfaces.EventDownloadLog, h.handleLogEvent)
	eventService.Subscribe(interfaces.EventDownloadStatus, h.handleStatusEvent)

	return h
}

// progressSubscriber is one connected SSE client; handleLogEvent fans events
// out through these channels.
type progressSubscriber struct {
	downloadID string
	logs       chan models.DownloadLogEntry
	status     chan models.DownloadStatus
}

// StreamHandler handles GET /api/downloads/{id}/progress
func (h *ProgressHandler) StreamHandler(w http.ResponseWriter, r *http.Request, downloadID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job := h.downloadService.Get(downloadID)
	if job == nil {
		WriteError(w, http.StatusNotFound, "Download not found: "+downloadID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	sub := &progressSubscriber{
		downloadID: downloadID,
		logs:       make(chan models.DownloadLogEntry, 256),
		status:     make(chan models.DownloadStatus, 8),
	}
	h.register(sub)
	defer h.unregister(sub)

	// Initial snapshot so late joiners see the run's history
	h.sendEvent(w, flusher, "snapshot", job)

	snapshotTicker := time.NewTicker(time.Second)
	pingTicker := time.NewTicker(15 * time.Second)
	defer snapshotTicker.Stop()
	defer pingTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case entry := <-sub.logs:
			h.sendEvent(w, flusher, "log", entry)

		case <-sub.status:
			snapshot := h.downloadService.Get(downloadID)
			if snapshot == nil {
				return
			}
			h.sendEvent(w, flusher, "snapshot", snapshot)
			if snapshot.Status.IsTerminal() {
				return
			}

		case <-snapshotTicker.C:
			snapshot := h.downloadService.Get(downloadID)
			if snapshot == nil {
				return
			}
			h.sendEvent(w, flusher, "snapshot", snapshot)
			if snapshot.Status.IsTerminal() {
				return
			}

		case <-pingTicker.C:
			h.sendEvent(w, flusher, "ping", ssePing{Timestamp: time.Now()})
		}
	}
}

func (h *ProgressHandler) handleLogEvent(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(manager.LogEvent)
	if !ok {
		return nil
	}

	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	for sub := range h.subs {
		if sub.downloadID != payload.DownloadID {
			continue
		}
		select {
		case sub.logs <- payload.Entry:
		default:
			// slow client, drop the entry; snapshots carry the tail
		}
	}
	return nil
}

func (h *ProgressHandler) handleStatusEvent(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(manager.ProgressEvent)
	if !ok {
		return nil
	}

	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	for sub := range h.subs {
		if sub.downloadID != payload.DownloadID {
			continue
		}
		select {
		case sub.status <- payload.Status:
		default:
		}
	}
	return nil
}

func (h *ProgressHandler) register(sub *progressSubscriber) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *ProgressHandler) unregister(sub *progressSubscriber) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	delete(h.subs, sub)
}

func (h *ProgressHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal SSE event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
