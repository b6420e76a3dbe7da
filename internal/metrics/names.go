package metrics

// Well-known metric names shared by the scheduler, workers, health monitor
// and report.
const (
	ReqIssued    = "http_reqs"
	ReqSucceeded = "http_reqs_succeeded"
	ReqFailed    = "http_reqs_failed"
	ReqRequested = "http_reqs_requested" // arrival-rate demand, issued or not
	ReqDropped   = "http_reqs_dropped"   // demand shed when the pool was full

	FailureRate = "http_req_failure_rate"
	ReqDuration = "http_req_duration"

	HealthChecks       = "health_checks"
	HealthChecksFailed = "health_checks_failed"
)
