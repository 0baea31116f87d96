package provision

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes вешает публичные download-маршруты (капабилити — в самом
// токене) и JSON API под общим секретом.
func RegisterRoutes(r *mux.Router, h *Handler, sharedSecret string) {
	dl := r.PathPrefix("/provision").Subrouter()
	dl.HandleFunc("/generic/{token}.p12", h.PKCS12).Methods(http.MethodGet)
	dl.HandleFunc("/generic/{token}_ca.pem", h.CAPEM).Methods(http.MethodGet)
	dl.HandleFunc("/generic/{token}_cert.pem", h.CertPEM).Methods(http.MethodGet)
	dl.HandleFunc("/generic/{token}_key.pem", h.KeyPEM).Methods(http.MethodGet)
	dl.HandleFunc("/android_strongswan/{token}.sswan", h.StrongSwanProfile).Methods(http.MethodGet)
	dl.HandleFunc("/ios10/{token}.mobileconfig", h.MobileConfig).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(SharedSecretAuth(sharedSecret))
	api.HandleFunc("/device-types", h.ListDeviceTypes).Methods(http.MethodGet)
	api.HandleFunc("/vpns", h.CreateVPN).Methods(http.MethodPost)
	api.HandleFunc("/vpns/{id}", h.GetVPN).Methods(http.MethodGet)
	api.HandleFunc("/vpns/{id}/users", h.AddUser).Methods(http.MethodPost)
	api.HandleFunc("/vpns/{id}/devices", h.AddDevice).Methods(http.MethodPost)
}
