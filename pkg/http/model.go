package http

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	OK      bool        `json:"ok"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ValidationErrors is returned by ReadAndValidateRequest.
type ValidationErrors []ValidationError

// Has reports whether field failed the given validator tag.
func (v ValidationErrors) Has(field, tag string) bool {
	code := validationCode(tag)
	for _, e := range v {
		if e.Field == field && e.Code == code {
			return true
		}
	}
	return false
}
