package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/coordinator"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
)

const maxBodyBytes = 1 << 20

// statusFor maps a coordinator or converter error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrNoProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, convert.ErrTypeMismatch),
		errors.Is(err, convert.ErrInvalidValue),
		errors.Is(err, convert.ErrUnsupportedKey),
		errors.Is(err, convert.ErrNotSettable):
		return http.StatusBadRequest
	case errors.Is(err, convert.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "err", err)
		s.writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// deviceView is a device as returned by the API.
type deviceView struct {
	*store.Device
	Model     string `json:"model,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
	Supported bool   `json:"supported"`
}

func (s *Server) view(dev *store.Device) deviceView {
	v := deviceView{Device: dev}
	if p, err := s.coord.Profile(dev); err == nil {
		v.Model, v.Vendor, v.Supported = p.Model, p.Vendor, true
	}
	return v
}

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.coord.Devices().ListDevices()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]deviceView, 0, len(devices))
	for _, dev := range devices {
		out = append(out, s.view(dev))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var dev store.Device
	if !decodeBody(w, r, &dev) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if _, err := coordinator.ParseIEEE(dev.IEEEAddress); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.coord.Devices().RegisterDevice(&dev); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.view(&dev))
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.coord.Devices().Resolve(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(dev))
}

type renameDeviceRequest struct {
	FriendlyName string `json:"friendly_name"`
}

func (s *Server) handleAPIRenameDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.coord.Devices().Resolve(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req renameDeviceRequest
	if !decodeBody(w, r, &req) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	err = s.coord.Store().UpdateDevice(dev.IEEEAddress, func(d *store.Device) error {
		d.FriendlyName = req.FriendlyName
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "friendly_name": req.FriendlyName})
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Devices().RemoveDevice(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIDeviceState(w http.ResponseWriter, r *http.Request) {
	dev, err := s.coord.Devices().Resolve(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.coord.State(dev.IEEEAddress))
}

// setResponse carries the applied patch; Error is set when a later key
// failed after earlier ones were written.
type setResponse struct {
	State convert.State `json:"state"`
	Error string        `json:"error,omitempty"`
}

func (s *Server) handleAPISet(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !decodeBody(w, r, &values) || len(values) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a non-empty object"})
		return
	}

	patch, err := s.coord.SetProperties(r.Context(), r.PathValue("id"), values)
	if err != nil {
		if len(patch) == 0 {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, statusFor(err), setResponse{State: patch, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, setResponse{State: patch})
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	patch, err := s.coord.GetProperty(r.Context(), r.PathValue("id"), r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, setResponse{State: patch})
}

func (s *Server) handleAPIConfigure(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.ConfigureDevice(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, coordinator.ErrNoProfile) {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIListCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.writeJSON(w, http.StatusOK, []*convert.Profile{})
		return
	}
	profiles := s.catalog.Profiles()
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Model < profiles[j].Model })
	s.writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleAPIGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.catalog != nil {
		if p, ok := s.catalog.ByModel(r.PathValue("model")); ok {
			s.writeJSON(w, http.StatusOK, p)
			return
		}
	}
	s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "model not found"})
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Registry().All())
}
