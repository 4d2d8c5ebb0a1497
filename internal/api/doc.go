// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - POST /v1/scrapes to submit a request; the response carries the job ID
//     and the admission position.
//   - GET /v1/jobs/{job_id} and /v1/jobs/{job_id}/report for status and the
//     rendered report.
//   - GET /v1/queue, /v1/people and /v1/requesters/{handle}/notices for front
//     ends.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus.
package api
