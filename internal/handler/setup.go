package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/api"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

// SetupFlow is the part of setup.Flow the Lambda handler drives.
type SetupFlow interface {
	Identify(ctx context.Context, identifier string) (*setup.IdentifyResult, error)
	Configure(ctx context.Context, identifier string, input setup.ConfigureInput) (*models.ConfigEntry, error)
	Reconfigure(ctx context.Context, entryID string, input setup.ConfigureInput) (*models.ConfigEntry, error)
	Remove(ctx context.Context, entryID string) error
	Entries(ctx context.Context) ([]*models.ConfigEntry, error)
}

type SetupHandler struct {
	flow SetupFlow
}

func NewSetupHandler(flow SetupFlow) *SetupHandler {
	return &SetupHandler{
		flow: flow,
	}
}

type configureBody struct {
	Identifier string `json:"identifier"`
	setup.ConfigureInput
}

func (h *SetupHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := strings.TrimSuffix(request.Path, "/")
	entryID := request.PathParameters["id"]

	log.Debug().
		Str("method", request.HTTPMethod).
		Str("path", path).
		Msg("Handling setup request")

	switch {
	case request.HTTPMethod == http.MethodPost && path == "/setup/identify":
		return h.identify(ctx, request)
	case request.HTTPMethod == http.MethodPost && path == "/setup/configure":
		return h.configure(ctx, request)
	case request.HTTPMethod == http.MethodGet && path == "/setup/entries":
		return h.entries(ctx)
	case entryID != "" && request.HTTPMethod == http.MethodPut:
		return h.reconfigure(ctx, entryID, request)
	case entryID != "" && request.HTTPMethod == http.MethodDelete:
		return h.remove(ctx, entryID)
	default:
		return api.Error("Route not found", http.StatusNotFound)
	}
}

func (h *SetupHandler) identify(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	identifier := request.QueryStringParameters["identifier"]
	if identifier == "" && request.Body != "" {
		var body struct {
			Identifier string `json:"identifier"`
		}
		if err := json.Unmarshal([]byte(request.Body), &body); err != nil {
			return api.Error("Invalid request body", http.StatusBadRequest)
		}
		identifier = body.Identifier
	}

	result, err := h.flow.Identify(ctx, identifier)
	if err != nil {
		return h.failure(err)
	}
	return api.Success(api.NewIdentifyResponse(result))
}

func (h *SetupHandler) configure(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body configureBody
	if err := json.Unmarshal([]byte(request.Body), &body); err != nil {
		return api.Error("Invalid request body", http.StatusBadRequest)
	}

	entry, err := h.flow.Configure(ctx, body.Identifier, body.ConfigureInput)
	if err != nil {
		return h.failure(err)
	}
	return api.Created(api.NewEntryResponse(entry))
}

func (h *SetupHandler) reconfigure(ctx context.Context, entryID string, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var input setup.ConfigureInput
	if err := json.Unmarshal([]byte(request.Body), &input); err != nil {
		return api.Error("Invalid request body", http.StatusBadRequest)
	}

	entry, err := h.flow.Reconfigure(ctx, entryID, input)
	if err != nil {
		return h.failure(err)
	}
	return api.Success(api.NewEntryResponse(entry))
}

func (h *SetupHandler) entries(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	entries, err := h.flow.Entries(ctx)
	if err != nil {
		return h.failure(err)
	}
	return api.Success(api.NewEntriesResponse(entries))
}

func (h *SetupHandler) remove(ctx context.Context, entryID string) (events.APIGatewayProxyResponse, error) {
	if err := h.flow.Remove(ctx, entryID); err != nil {
		return h.failure(err)
	}
	return api.NoContent()
}

func (h *SetupHandler) failure(err error) (events.APIGatewayProxyResponse, error) {
	var inputErr *setup.InputError
	switch {
	case errors.As(err, &inputErr):
		return api.InputError(inputErr)
	case errors.Is(err, setup.ErrEntryNotFound):
		return api.Error("Entry not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return api.Error("Upstream request timed out", http.StatusGatewayTimeout)
	default:
		log.Error().Err(err).Msg("Setup request failed")
		return api.Error("Internal Server Error", http.StatusInternalServerError)
	}
}
