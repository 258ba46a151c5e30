package http

// APIResponse represents standard API response. Status mirrors the HTTP
// status code of the response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"asset_slug"`
	Message string                 `json:"message,omitempty" example:"asset_slug is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
