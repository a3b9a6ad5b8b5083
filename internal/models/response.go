package models

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Helper for successful responses
func SuccessResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// Helper for error responses
func ErrorResponse(err string) Response {
	return Response{
		Success: false,
		Error:   err,
	}
}

// CodedErrorResponse carries a machine readable failure kind next to the message.
func CodedErrorResponse(code, err string) Response {
	return Response{
		Success: false,
		Code:    code,
		Error:   err,
	}
}

type ResizeRequest struct {
	RequestedFilename string `query:"requested_filename" validate:"required,object_key"`
}
