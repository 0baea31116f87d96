package provision

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henryk/ipsec-me/internal/token"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSharedSecretAuth(t *testing.T) {
	h := SharedSecretAuth("hunter2")(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/device-types", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	r = httptest.NewRequest(http.MethodGet, "/api/v1/device-types", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/device-types", nil)
	r.Header.Set("Authorization", "Bearer hunter2")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

// Любой дефект токена в download-маршруте — единообразный 404.
func TestDownloadRoutesUniformNotFound(t *testing.T) {
	signer, err := token.NewSigner([]byte("process-secret"), token.ProvisionSalt)
	require.NoError(t, err)
	h := NewHandler(nil, nil, signer, nil)

	for _, path := range []string{
		"/provision/generic/garbage.p12",
		"/provision/generic/garbage_ca.pem",
		"/provision/generic/garbage_cert.pem",
		"/provision/generic/garbage_key.pem",
		"/provision/android_strongswan/garbage.sswan",
		"/provision/ios10/garbage.mobileconfig",
	} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router := newTestRouter(h)
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code, "path %s", path)
	}
}
