package types

// NoError is the error code recorded for calls that did not fail.
const NoError = -1

// Metric is the outcome of one timed call against the target.
type Metric struct {
	RequestPath  string `json:"requestPath"`
	ResponseTime int64  `json:"responseTime"` // milliseconds
	ErrorCode    int    `json:"errorCode"`
}

// Failed reports whether the metric counts as a failed request.
func (m Metric) Failed() bool {
	return m.ErrorCode > 0
}

// StatsPart is the running aggregate for one partition of requests.
type StatsPart struct {
	AverageResponseTime *int64 `json:"averageResponseTime"`
	RequestsSent        int64  `json:"requestsSent"`
	RequestsFailed      int64  `json:"requestsFailed"`
}

// Clone returns a deep copy of the bucket.
func (s StatsPart) Clone() StatsPart {
	c := s
	if s.AverageResponseTime != nil {
		avg := *s.AverageResponseTime
		c.AverageResponseTime = &avg
	}
	return c
}

// Progress is a point-in-time snapshot of both partitions.
type Progress struct {
	Public     StatsPart `json:"public"`
	Backoffice StatsPart `json:"backoffice"`
}

// LatencySummary holds histogram percentiles for one partition, in milliseconds.
type LatencySummary struct {
	Count int64   `json:"count"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Mean  float64 `json:"mean"`
	P50   int64   `json:"p50"`
	P90   int64   `json:"p90"`
	P95   int64   `json:"p95"`
	P99   int64   `json:"p99"`
}

// LatencyReport pairs the latency summaries of both partitions.
type LatencyReport struct {
	Public     LatencySummary `json:"public"`
	Backoffice LatencySummary `json:"backoffice"`
}
