package httpapi

import (
	"bytes"
	"log"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
)

// ingressFilters are applied, in order, to a static asset's bytes when the
// request carries the Home Assistant ingress header: absolute references to
// "/" must be rewritten to the ingress-assigned path prefix.
func ingressFilters(ingressPath string) [][2]string {
	return [][2]string{
		{`href="/`, `href="` + ingressPath + `/`},
		{`src="/`, `src="` + ingressPath + `/`},
		{`fetch("/api`, `fetch("` + ingressPath + `/api`},
	}
}

const ingressPathHeader = "X-Ingress-Path"

// filterIngressPrefix wraps next so that any static-file response (served
// from staticDir, identified by the request not matching a registered API
// route) has ingress filters applied when the request carries the ingress
// header. Non-static responses, and requests without the header, pass
// through untouched.
func filterIngressPrefix(next http.Handler, staticDir string, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ingressPath := r.Header.Get(ingressPathHeader)
		if staticDir == "" || ingressPath == "" || isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		rec := httptest.NewRecorder()
		next.ServeHTTP(rec, r)

		ext := filepath.Ext(r.URL.Path)
		if !isFilterableExt(ext) {
			copyRecorded(w, rec)
			return
		}

		body := rec.Body.Bytes()
		for _, f := range ingressFilters(ingressPath) {
			body = bytes.ReplaceAll(body, []byte(f[0]), []byte(f[1]))
		}

		for k, vs := range rec.Header() {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if ct := mime.TypeByExtension(ext); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(rec.Code)
		if _, err := w.Write(body); err != nil {
			logger.Printf("httpapi: writing filtered asset: %v", err)
		}
	})
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/config")
}

func isFilterableExt(ext string) bool {
	switch ext {
	case ".html", ".htm", ".js", ".css":
		return true
	default:
		return false
	}
}

func copyRecorded(w http.ResponseWriter, rec *httptest.ResponseRecorder) {
	for k, vs := range rec.Header() {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(rec.Code)
	w.Write(rec.Body.Bytes())
}
