package gate

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"fittrack/internal/contextutil"
	"fittrack/internal/httputils"
	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"
)

// Middleware runs the gate in front of next. Excluded paths skip it.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		logger := logging.FromContextOr(r.Context(), g.logger)

		action, err := g.Evaluate(r)
		if err != nil {
			logger.Error("Request gate failed", "path", r.URL.Path, logging.Err(err))
			g.metrics.RecordGateDecision("error")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		g.metrics.RecordGateDecision(string(action.Decision))

		logger.Debug("Request gate decision",
			"path", r.URL.Path,
			"decision", action.Decision,
			"cookie_mutations", len(action.Cookies),
		)

		switch action.Kind {
		case Rewrite:
			ctx := context.WithValue(r.Context(), rewriteTargetKey{}, action.Target)
			g.proxy.ServeHTTP(w, r.WithContext(ctx))

		case Redirect:
			action.Cookies.Apply(w)
			http.Redirect(w, r, action.Location(), http.StatusTemporaryRedirect)

		default:
			action.Cookies.ApplyToRequest(r)
			action.Cookies.Apply(w)
			if action.Resolved {
				r = r.WithContext(contextutil.WithUser(r.Context(), action.User))
			}
			next.ServeHTTP(w, r)
		}
	})
}

type rewriteTargetKey struct{}

// newRewriteProxy serves a request from the absolute URL the gate computed
// for it. The browser never sees the target.
func newRewriteProxy(timeout time.Duration, logger *logging.Logger, collector *metrics.Collector) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := pr.In.Context().Value(rewriteTargetKey{}).(*url.URL)
			u := *target
			pr.Out.URL = &u
			pr.Out.Host = u.Host
			pr.SetXForwarded()
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			target, _ := r.Context().Value(rewriteTargetKey{}).(*url.URL)
			logging.FromContextOr(r.Context(), logger).Error("Proxy target request failed",
				"path", r.URL.Path,
				"target", logging.RedactURL(target),
				logging.Err(err),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrapper := httputils.NewResponseWriter(w)
		proxy.ServeHTTP(wrapper, r)
		collector.RecordProxyRequest(r.Method, wrapper.StatusCode, time.Since(startTime))
	})
}
