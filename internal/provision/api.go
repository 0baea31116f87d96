package provision

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/henryk/ipsec-me/internal/devices"
	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
	"github.com/henryk/ipsec-me/internal/repo"
	"github.com/henryk/ipsec-me/internal/token"
	"github.com/henryk/ipsec-me/internal/vpn"
)

// GET /api/v1/device-types
func (h *Handler) ListDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	models.WriteJSON(w, http.StatusOK, devices.All())
}

type createVPNRequest struct {
	Name          string `json:"name"`
	Hostname      string `json:"hostname"`
	BaseDNSName   string `json:"base_dns_name"`
	IPsecTemplate string `json:"ipsec_template"`
	PSK           string `json:"psk"`
	CABaseDN      string `json:"ca_base_dn"`
	CAIDs         []uint `json:"ca_ids"`
}

type vpnResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Hostname    string `json:"hostname"`
	BaseDNSName string `json:"base_dns_name"`
	PrimaryCAID *uint  `json:"primary_ca_id"`
	Fingerprint string `json:"certificate_fingerprint,omitempty"`
}

func vpnToResponse(srv *models.VPNServer) vpnResponse {
	out := vpnResponse{
		ID:          srv.ID,
		Name:        srv.Name,
		Hostname:    srv.ExternalHostname,
		BaseDNSName: srv.BaseDNSName,
		PrimaryCAID: srv.PrimaryCAID,
	}
	if srv.Certificate != nil {
		out.Fingerprint = pki.Fingerprint(srv.Certificate)
	}
	return out
}

// POST /api/v1/vpns
func (h *Handler) CreateVPN(w http.ResponseWriter, r *http.Request) {
	var req createVPNRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	if req.Name == "" || req.Hostname == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "name and hostname required", nil)
		return
	}
	srv, err := h.Service.CreateServer(r.Context(), vpn.CreateServerInput{
		Name:             req.Name,
		ExternalHostname: req.Hostname,
		BaseDNSName:      req.BaseDNSName,
		IPsecTemplate:    req.IPsecTemplate,
		PSK:              req.PSK,
		CABaseDN:         req.CABaseDN,
		ExistingCAIDs:    req.CAIDs,
	})
	switch {
	case errors.Is(err, vpn.ErrInvalidHostname):
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), nil)
	case err != nil:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	default:
		models.WriteJSON(w, http.StatusCreated, vpnToResponse(srv))
	}
}

// GET /api/v1/vpns/{id}
func (h *Handler) GetVPN(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "bad id", nil)
		return
	}
	srv, err := h.VPNs.GetServer(r.Context(), uint(id))
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, vpnToResponse(srv))
}

type addUserRequest struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

// POST /api/v1/vpns/{id}/users — идемпотентен, возвращает членство и при
// повторном добавлении.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "bad id", nil)
		return
	}
	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "email required", nil)
		return
	}
	vu, err := h.Service.AddUser(r.Context(), uint(id), req.Email, req.Role)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "", nil)
	case err != nil:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	default:
		models.WriteJSON(w, http.StatusOK, map[string]any{
			"id": vu.ID, "email": req.Email, "role": vu.Role,
		})
	}
}

type addDeviceRequest struct {
	Email      string            `json:"email"`
	DeviceType string            `json:"device_type"`
	Name       string            `json:"name"`
	Overrides  map[string]string `json:"overrides"`
}

type deviceResponse struct {
	ID         uint              `json:"id"`
	Name       string            `json:"name"`
	DeviceType string            `json:"device_type"`
	Identity   string            `json:"identity,omitempty"`
	Secret     string            `json:"secret,omitempty"` // только в ответе на создание
	Links      map[string]string `json:"links,omitempty"`
}

// POST /api/v1/vpns/{id}/devices
func (h *Handler) AddDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "bad id", nil)
		return
	}
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Name == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "email and name required", nil)
		return
	}

	acc, err := h.VPNs.GetOrCreateAccount(r.Context(), req.Email)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	vu, err := h.VPNs.FindMembership(r.Context(), uint(id), acc.ID)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "no such membership", nil)
		return
	}

	dev, err := h.Service.AddDevice(r.Context(), vu.ID, req.DeviceType, req.Name, req.Overrides)
	switch {
	case errors.Is(err, devices.ErrUnknownKind):
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "", nil)
	case err != nil:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	default:
		models.WriteJSON(w, http.StatusCreated, h.deviceToResponse(dev))
	}
}

// deviceToResponse выдаёт provisioning-ссылки, подписанные под текущий
// отпечаток устройства. Секрет PSK отдаётся один раз, здесь.
func (h *Handler) deviceToResponse(d *models.Device) deviceResponse {
	out := deviceResponse{
		ID:         d.ID,
		Name:       d.Name,
		DeviceType: d.DeviceType,
		Identity:   d.Identity,
		Secret:     d.Secret,
	}
	if d.Certificate == nil {
		return out
	}
	tok := h.Signer.Mint(token.Reference{
		DeviceID:    d.ID,
		Fingerprint: devices.CurrentFingerprint(d),
	})
	out.Links = map[string]string{
		"pkcs12":   "/provision/generic/" + tok + ".p12",
		"cert_pem": "/provision/generic/" + tok + "_cert.pem",
		"key_pem":  "/provision/generic/" + tok + "_key.pem",
		"ca_pem":   "/provision/generic/" + tok + "_ca.pem",
	}
	switch d.DeviceType {
	case "android_strongswan":
		out.Links["profile"] = "/provision/android_strongswan/" + tok + ".sswan"
	case "ios_10":
		out.Links["profile"] = "/provision/ios10/" + tok + ".mobileconfig"
	}
	return out
}
