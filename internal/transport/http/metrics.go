package httptransport

import "expvar"

var (
	metricClaimRequests = expvar.NewInt("http_claim_requests_total")
	metricForgeRequests = expvar.NewInt("http_forge_requests_total")
	metricScoreEvents   = expvar.NewInt("http_score_events_total")

	metricHTTPInternalErrors = expvar.NewInt("http_internal_errors_total")
)
