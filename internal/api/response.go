package api

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

type IdentifyResponse struct {
	APIResponse
	*setup.IdentifyResult
}

type EntryResponse struct {
	APIResponse
	Entry *models.ConfigEntry `json:"entry"`
}

type EntriesResponse struct {
	APIResponse
	Entries []*models.ConfigEntry `json:"entries"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func NewIdentifyResponse(result *setup.IdentifyResult) *IdentifyResponse {
	return &IdentifyResponse{
		APIResponse:    APIResponse{ResponseType: "identify"},
		IdentifyResult: result,
	}
}

func NewEntryResponse(entry *models.ConfigEntry) *EntryResponse {
	return &EntryResponse{
		APIResponse: APIResponse{ResponseType: "entry"},
		Entry:       entry,
	}
}

func NewEntriesResponse(entries []*models.ConfigEntry) *EntriesResponse {
	if entries == nil {
		entries = []*models.ConfigEntry{}
	}
	return &EntriesResponse{
		APIResponse: APIResponse{ResponseType: "entries"},
		Entries:     entries,
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	return respond(http.StatusOK, body)
}

func Created(body interface{}) (events.APIGatewayProxyResponse, error) {
	return respond(http.StatusCreated, body)
}

func NoContent() (events.APIGatewayProxyResponse, error) {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusNoContent,
		Headers:    headers(),
	}, nil
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	return respond(statusCode, NewErrorResponse(message))
}

// InputError renders a user-correctable setup error with its field and code.
func InputError(err *setup.InputError) (events.APIGatewayProxyResponse, error) {
	resp := NewErrorResponse(err.Error())
	resp.Code = err.Code
	resp.Field = err.Field

	status := http.StatusBadRequest
	if err.Code == setup.CodeUpstreamUnavailable {
		status = http.StatusBadGateway
	}
	return respond(status, resp)
}

func respond(statusCode int, body interface{}) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers(),
		Body:       string(jsonBody),
	}, nil
}

func headers() map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": "*",
	}
}
