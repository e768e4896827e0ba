package models

// ErrorMessageResponse is the body written by config.ErrorStatus
type ErrorMessageResponse struct {
	Response string `json:"response"`
}

// HealthCheckResponse is the body served by the health endpoint
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
