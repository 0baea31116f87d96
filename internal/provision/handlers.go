// Package provision — скачивание учётных данных устройства по подписанной
// ссылке (без сессии) и JSON API для административных операций.
package provision

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/henryk/ipsec-me/internal/devices"
	"github.com/henryk/ipsec-me/internal/logs"
	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
	"github.com/henryk/ipsec-me/internal/repo"
	"github.com/henryk/ipsec-me/internal/token"
	"github.com/henryk/ipsec-me/internal/vpn"
)

type Handler struct {
	Devices *repo.DeviceStore
	VPNs    *repo.VPNStore
	Signer  *token.Signer
	Service *vpn.Service
}

func NewHandler(ds *repo.DeviceStore, vs *repo.VPNStore, signer *token.Signer, svc *vpn.Service) *Handler {
	return &Handler{Devices: ds, VPNs: vs, Signer: signer, Service: svc}
}

// Единый ответ на любой дефект токена: не различаем плохую подпись,
// неизвестный id и ротацию, чтобы не подсказывать, что именно не так.
func notFound(w http.ResponseWriter) {
	models.WriteProblem(w, http.StatusNotFound, "Not Found", "", nil)
}

// resolveDevice проверяет токен из URL и возвращает устройство, только
// если вшитый отпечаток совпадает с актуальным.
func (h *Handler) resolveDevice(r *http.Request) (*models.Device, error) {
	ref, err := h.Signer.Resolve(mux.Vars(r)["token"])
	if err != nil {
		return nil, err
	}
	d, err := h.Devices.Get(r.Context(), ref.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := h.Signer.CheckFingerprint(ref, devices.CurrentFingerprint(d)); err != nil {
		logs.Logger.Debugf("stale provisioning token for device %d", d.ID)
		return nil, err
	}
	return d, nil
}

func (h *Handler) deviceCert(r *http.Request) (*models.Device, *models.Certificate, error) {
	d, err := h.resolveDevice(r)
	if err != nil {
		return nil, nil, err
	}
	if d.Certificate == nil {
		return nil, nil, repo.ErrNotFound
	}
	return d, d.Certificate, nil
}

// GET /provision/generic/{token}.p12
func (h *Handler) PKCS12(w http.ResponseWriter, r *http.Request) {
	_, cert, err := h.deviceCert(r)
	if err != nil {
		notFound(w)
		return
	}
	blob, err := pki.PKCS12(cert, r.URL.Query().Get("password"), false)
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/x-pkcs12")
	_, _ = w.Write(blob)
}

// GET /provision/generic/{token}_ca.pem — построение цепочки CA не
// реализовано; явный отказ вместо пустого файла.
func (h *Handler) CAPEM(w http.ResponseWriter, r *http.Request) {
	_, cert, err := h.deviceCert(r)
	if err != nil {
		notFound(w)
		return
	}
	if _, err := pki.CAPEM(cert); errors.Is(err, pki.ErrChainUnavailable) {
		models.WriteProblem(w, http.StatusNotImplemented, "Not Implemented",
			"CA chain export is not supported", nil)
		return
	}
	notFound(w)
}

// GET /provision/generic/{token}_cert.pem
func (h *Handler) CertPEM(w http.ResponseWriter, r *http.Request) {
	_, cert, err := h.deviceCert(r)
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write(pki.CertPEM(cert))
}

// GET /provision/generic/{token}_key.pem
func (h *Handler) KeyPEM(w http.ResponseWriter, r *http.Request) {
	_, cert, err := h.deviceCert(r)
	if err != nil {
		notFound(w)
		return
	}
	out, err := pki.KeyPEM(cert, r.URL.Query().Get("passphrase"))
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write(out)
}

// GET /provision/android_strongswan/{token}.sswan
func (h *Handler) StrongSwanProfile(w http.ResponseWriter, r *http.Request) {
	d, cert, err := h.deviceCert(r)
	if err != nil {
		notFound(w)
		return
	}
	srv, err := h.serverOf(r, d)
	if err != nil {
		notFound(w)
		return
	}
	body, err := renderStrongSwanProfile(d, cert, srv)
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.strongswan.profile")
	_, _ = w.Write(body)
}

// GET /provision/ios10/{token}.mobileconfig
func (h *Handler) MobileConfig(w http.ResponseWriter, r *http.Request) {
	d, cert, err := h.deviceCert(r)
	if err != nil {
		notFound(w)
		return
	}
	srv, err := h.serverOf(r, d)
	if err != nil {
		notFound(w)
		return
	}
	body, err := renderMobileConfig(d, cert, srv)
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}

func (h *Handler) serverOf(r *http.Request, d *models.Device) (*models.VPNServer, error) {
	if d.VPNUser == nil {
		return nil, repo.ErrNotFound
	}
	return h.VPNs.GetServer(r.Context(), d.VPNUser.VPNServerID)
}
