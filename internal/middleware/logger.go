package middleware

import (
	"net/http"
	"time"

	"github.com/henryk/ipsec-me/internal/logs"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// AccessLog пишет одну строку на запрос. URI содержит provisioning-токены —
// тела и учётные данные сюда не попадают никогда.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		logs.Logger.Infof("reqid=%s method=%s path=%s status=%d bytes=%d dur=%s ip=%s",
			GetRequestID(r), r.Method, r.URL.Path, sw.status, sw.bytes, time.Since(start), r.RemoteAddr)
	})
}
