package httpresponse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	errors2 "live_analysis/internal/errors"
)

type Response[T any] struct {
	Status int `json:"Status"`
	Body   T   `json:"Body,omitempty"`
}

type ErrorResponse struct {
	ErrorDescription string `json:"ErrorDescription"`
}

const INTERNALERRORJSON = "{\"Status\": 500,\"Body\":{\"ErrorDescription\": \"Internal server error\"}}"

const MALFORMEDJSON_errorDesc = "json unmarshalling error"

func WriteResponseWithStatus(w http.ResponseWriter, status int, body any) {
	jsonByte, err := marshalStatusJson(status, body)
	if err != nil {
		WriteInternalErrorResponse(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonByte)
}

func WriteError(w http.ResponseWriter, status int, desc string) {
	WriteResponseWithStatus(w, status, ErrorResponse{ErrorDescription: desc})
}

// StatusFor maps domain errors to HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errors2.ErrConfigValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors2.ErrEngineAlreadyRunning), errors.Is(err, errors2.ErrEngineNotRunning):
		return http.StatusConflict
	case errors.Is(err, errors2.ErrStartFailure):
		return http.StatusBadGateway
	case errors.Is(err, errors2.ErrAnalysisNotFound), errors.Is(err, errors2.ErrHistoryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err with the status StatusFor picks. Internal errors are not described.
func WriteDomainError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteInternalErrorResponse(w)
		return
	}
	WriteError(w, status, err.Error())
}

func marshalStatusJson(status int, body any) ([]byte, error) {
	response := Response[any]{
		Status: status,
		Body:   body,
	}
	marshal, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	return marshal, nil
}

func WriteInternalErrorResponse(w http.ResponseWriter) {
	// implementation similar to http.Error, only difference is the Content-type
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintln(w, INTERNALERRORJSON)
}
