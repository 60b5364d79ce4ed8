package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/star/terrafusion/internal/cache"
	"github.com/star/terrafusion/internal/highlight"
	"github.com/star/terrafusion/internal/httputil"
	"github.com/star/terrafusion/internal/passes"
	"github.com/star/terrafusion/internal/registry"
	"github.com/star/terrafusion/internal/render"
	"github.com/star/terrafusion/internal/telemetry"
)

const (
	maxBodyBytes    = 4 << 10
	defaultHorizon  = 5000
	maxHorizonTicks = 100000
	minViewport     = 16
	maxViewport     = 8192
)

// decodeBody decodes a small JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func registryHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, reg)
	}
}

// telemetryHandler returns the latest published snapshot.
func telemetryHandler(hub *telemetry.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := hub.Latest()
		if snap == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no telemetry published yet")
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

type statusResponse struct {
	Frames          uint64      `json:"frames"`
	Rotation        float64     `json:"rotation"`
	ViewportWidth   int         `json:"viewport_width"`
	ViewportHeight  int         `json:"viewport_height"`
	Subscribers     int         `json:"subscribers"`
	Streams         int         `json:"streams"`
	LastSnapshotSeq uint64      `json:"last_snapshot_seq"`
	FrameCache      cache.Stats `json:"frame_cache"`
	LandmassSource  string      `json:"landmass_source,omitempty"`
	LandmassAge     float64     `json:"landmass_age_seconds,omitempty"`
	LandmassPolys   int         `json:"landmass_polygons"`
}

func statusHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, height := deps.Loop.Viewport()
		resp := statusResponse{
			Frames:         deps.Loop.Frames(),
			Rotation:       deps.Loop.Rotation(),
			ViewportWidth:  width,
			ViewportHeight: height,
			Subscribers:    deps.Hub.Subscribers(),
			Streams:        deps.Stream.Active(),
			FrameCache:     deps.Frames.Stats(),
		}
		if snap := deps.Hub.Latest(); snap != nil {
			resp.LastSnapshotSeq = snap.Seq
		}
		if deps.Landmass != nil {
			if ds := deps.Landmass.Get(); ds != nil {
				resp.LandmassSource = ds.Source
				resp.LandmassAge = deps.Landmass.AgeSeconds()
				resp.LandmassPolys = len(ds.Polygons)
			}
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// frameHandler serves the latest painted canvas. The frame sequence doubles
// as the ETag so polling clients only download new frames.
func frameHandler(frames *cache.FrameCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := frames.Get(cache.PNG)
		if errors.Is(err, cache.ErrNoFrame) {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no frame painted yet")
			return
		}
		if err != nil {
			logger.Error("frame encode failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "frame unavailable")
			return
		}

		etag := `"` + strconv.FormatUint(e.Seq, 10) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Frame-Seq", strconv.FormatUint(e.Seq, 10))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", e.Format.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(e.Data)))
		w.WriteHeader(http.StatusOK)
		w.Write(e.Data)
	}
}

func getHighlightHandler(loop *render.Loop) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, loop.Highlight())
	}
}

// putHighlightHandler replaces the search term and selection. A selected id
// must name a registered body; an empty one clears the selection.
func putHighlightHandler(loop *render.Loop, reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	known := make(map[string]bool, len(reg.Bodies))
	for _, b := range reg.Bodies {
		known[b.ID] = true
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in highlight.Inputs
		if err := decodeBody(w, r, &in); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if in.SelectedID != "" && !known[in.SelectedID] {
			httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown body id %q", in.SelectedID))
			return
		}
		loop.SetHighlight(in.Term, in.SelectedID)
		logger.Debug("highlight updated", "term", in.Term, "selected_id", in.SelectedID)
		httputil.WriteJSON(w, http.StatusOK, in)
	}
}

type viewportBody struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func getViewportHandler(loop *render.Loop) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, height := loop.Viewport()
		httputil.WriteJSON(w, http.StatusOK, viewportBody{width, height})
	}
}

func putViewportHandler(loop *render.Loop, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in viewportBody
		if err := decodeBody(w, r, &in); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if in.Width < minViewport || in.Width > maxViewport || in.Height < minViewport || in.Height > maxViewport {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("viewport must be between %d and %d pixels per side", minViewport, maxViewport))
			return
		}
		if err := loop.Resize(in.Width, in.Height); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Info("viewport resized", "width", in.Width, "height", in.Height)
		httputil.WriteJSON(w, http.StatusOK, in)
	}
}

type coverageResponse struct {
	POI          registry.POI          `json:"poi"`
	FromTick     uint64                `json:"from_tick"`
	HorizonTicks int                   `json:"horizon_ticks"`
	Bodies       []passes.BodyCoverage `json:"bodies"`
}

// coverageHandler predicts when each body's swath covers a point of interest.
// GET /api/v1/coverage/{poi_id}?horizon=5000
func coverageHandler(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("poi_id")
		poi, ok := deps.Registry.POI(id)
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown point of interest %q", id))
			return
		}

		horizon := defaultHorizon
		if v := r.URL.Query().Get("horizon"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxHorizonTicks {
				httputil.WriteError(w, http.StatusBadRequest,
					fmt.Sprintf("invalid horizon parameter, must be 1-%d", maxHorizonTicks))
				return
			}
			horizon = n
		}

		sim := deps.Loop.State()
		bodies, err := passes.Predict(r.Context(), passes.Request{
			Sim:          sim,
			Lng:          poi.Lng,
			Lat:          poi.Lat,
			HorizonTicks: horizon,
			TickInterval: deps.TickInterval,
		})
		if err != nil {
			if r.Context().Err() == nil {
				logger.Warn("coverage prediction failed", "poi_id", id, "error", err)
			}
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		httputil.WriteJSON(w, http.StatusOK, coverageResponse{
			POI:          poi,
			FromTick:     sim.Tick,
			HorizonTicks: horizon,
			Bodies:       bodies,
		})
	}
}
