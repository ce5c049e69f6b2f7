package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/chrisvdg/chartloader/loader"
	"github.com/chrisvdg/chartloader/memo"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func newHandlers(s *Server) *handlers {
	return &handlers{s: s}
}

type handlers struct {
	s *Server
}

// statusView is a loader status as reported over http
type statusView struct {
	loader.Status
	HumanSize string `json:"human_size,omitempty"`
}

func newStatusView(st loader.Status) statusView {
	v := statusView{Status: st}
	if st.Size > 0 {
		v.HumanSize = humanize.Bytes(uint64(st.Size))
	}
	return v
}

func assetName(req *http.Request) string {
	return strings.TrimSuffix(mux.Vars(req)["name"], ".js")
}

// AssetHandler serves the content of a resource, loading it first if needed
func (h *handlers) AssetHandler(res http.ResponseWriter, req *http.Request) {
	name := assetName(req)
	if _, err := h.s.loader.State(name); err != nil {
		writeError(res, http.StatusNotFound, err)
		return
	}
	if !h.s.ensure(req.Context(), name) {
		writeError(res, http.StatusServiceUnavailable, errors.Errorf("%s is unavailable", name))
		return
	}

	data, err := h.s.loader.Asset(name)
	if err != nil {
		writeError(res, http.StatusServiceUnavailable, err)
		return
	}

	res.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	res.Header().Set("Content-Length", strconv.Itoa(len(data)))
	res.Header().Set("Cache-Control", "public, max-age=3600")
	if req.Method == http.MethodHead {
		return
	}
	_, err = res.Write(data)
	if err != nil {
		log.Debugf("Failed to write %s: %s", name, err)
	}
}

// StatusHandler lists the state of every resource
func (h *handlers) StatusHandler(res http.ResponseWriter, req *http.Request) {
	body := memo.Get(h.s.memo, "status", func() []byte {
		views := []statusView{}
		for _, st := range h.s.loader.States() {
			views = append(views, newStatusView(st))
		}
		data, err := json.Marshal(views)
		if err != nil {
			log.Errorf("Failed to marshal status: %s", err)
			return nil
		}
		return data
	}, h.s.c.StatusTTL)

	if body == nil {
		writeError(res, http.StatusInternalServerError, errors.New("failed to build status"))
		return
	}
	res.Header().Set("Content-Type", "application/json")
	res.Write(body)
}

// ResourceStatusHandler reports the state of a single resource
func (h *handlers) ResourceStatusHandler(res http.ResponseWriter, req *http.Request) {
	st, err := h.s.loader.State(assetName(req))
	if err != nil {
		writeError(res, http.StatusNotFound, err)
		return
	}
	writeJSON(res, http.StatusOK, newStatusView(st))
}

// ResetHandler resets one resource or all of them
func (h *handlers) ResetHandler(res http.ResponseWriter, req *http.Request) {
	name := assetName(req)
	err := h.s.reset(name)
	if errors.Cause(err) == loader.ErrUnknownResource {
		writeError(res, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(res, http.StatusInternalServerError, err)
		return
	}
	res.WriteHeader(http.StatusNoContent)
}

func writeJSON(res http.ResponseWriter, code int, v interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(code)
	err := json.NewEncoder(res).Encode(v)
	if err != nil {
		log.Debugf("Failed to write response: %s", err)
	}
}

func writeError(res http.ResponseWriter, code int, err error) {
	writeJSON(res, code, map[string]string{"error": err.Error()})
}
