package dto

// HLSURLResponse is returned by GET /api/hls-url.
type HLSURLResponse struct {
	Success bool   `json:"success"`
	HLSURL  string `json:"hls_url"`
	CCTVID  int    `json:"cctv_id"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}
