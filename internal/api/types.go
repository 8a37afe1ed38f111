package api

// SubmitRequest is the JSON body for POST /txn. It describes an exec
// transaction: a command run as a subprocess under the dispatcher's
// serialization guarantee.
type SubmitRequest struct {
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Dir       string   `json:"dir,omitempty"`
	TimeoutMS int      `json:"timeout_ms,omitempty"`
}

// SubmitResponse is returned for fire-and-forget submissions.
type SubmitResponse struct {
	TxnID  string `json:"txn_id"`
	Status string `json:"status"`
}

// TransactResponse is returned for waited submissions (?wait=true).
type TransactResponse struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// AbortResponse reports the outcome of DELETE /txn/{id}. A false Aborted is
// benign: the transaction already completed or was already removed.
type AbortResponse struct {
	TxnID   string `json:"txn_id"`
	Aborted bool   `json:"aborted"`
}

// AbortAllResponse reports the outcome of DELETE /txn.
type AbortAllResponse struct {
	Aborted int `json:"aborted"`
}

// ToggleRequest is the JSON body for PUT /dispatcher. Omitted fields are
// left unchanged.
type ToggleRequest struct {
	Open    *bool `json:"open,omitempty"`
	Stopped *bool `json:"stopped,omitempty"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	Busy          bool   `json:"busy"`
	Open          bool   `json:"open"`
	ConfigHash    string `json:"config_hash,omitempty"`
}
