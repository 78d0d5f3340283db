package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"exointel/features"
	"exointel/history"
	"exointel/ml"
)

const (
	serviceName  = "Exoplanet Intelligence System API"
	modelVersion = "1.0.0"
)

// PredictionPublisher receives each successfully stored prediction. The live
// websocket feed implements it.
type PredictionPublisher interface {
	PublishPrediction(record history.PredictionRecord)
}

// API bundles the dependencies the handlers need. Everything is injected at
// startup; the handlers hold no package state.
type API struct {
	Registry  *ml.Registry
	Store     history.Store
	Publisher PredictionPublisher
	Feed      http.Handler
	Logger    *zap.Logger
}

// RegisterHandlers mounts every route on the mux.
func RegisterHandlers(mux *http.ServeMux, api *API) {
	mux.HandleFunc("GET /{$}", api.handleRoot)
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("POST /api/predict/classification", api.handlePredictClassification)
	mux.HandleFunc("POST /api/predict/regression", api.handlePredictRegression)
	mux.HandleFunc("GET /api/predictions/history", api.handleHistory)
	mux.HandleFunc("GET /api/predictions/task/{task}", api.handleListByTask)
	mux.HandleFunc("GET /api/predictions/{id}", api.handleGetPrediction)
	mux.HandleFunc("DELETE /api/predictions/{id}", api.handleDeletePrediction)
	mux.HandleFunc("GET /api/models/info", api.handleModelInfo)
	mux.HandleFunc("GET /api/features", api.handleFeatures)
	if api.Feed != nil {
		mux.Handle("GET /api/ws/predictions", api.Feed)
	}
}

type predictRequest struct {
	Features map[string]any `json:"features"`
}

type classificationResponse struct {
	Prediction    string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
	Confidence    float64            `json:"confidence"`
	ModelVersion  string             `json:"model_version"`
	Timestamp     time.Time          `json:"timestamp"`
}

type regressionResponse struct {
	Prediction         float64               `json:"prediction"`
	ConfidenceInterval ml.ConfidenceInterval `json:"confidence_interval"`
	Unit               string                `json:"unit"`
	ModelVersion       string                `json:"model_version"`
	Timestamp          time.Time             `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (api *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"version": modelVersion,
		"status":  "running",
		"endpoints": map[string]string{
			"classification": "/api/predict/classification",
			"regression":     "/api/predict/regression",
			"history":        "/api/predictions/history",
			"models":         "/api/models/info",
			"features":       "/api/features",
			"health":         "/api/health",
		},
	})
}

func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (api *API) handlePredictClassification(w http.ResponseWriter, r *http.Request) {
	vector, ok := api.decodeAndValidate(w, r)
	if !ok {
		return
	}

	result, err := api.Registry.PredictClassification(vector)
	if err != nil {
		api.respondError(w, err)
		return
	}

	// The record is appended only after inference succeeds; a prediction
	// call is atomic from the caller's point of view.
	if !api.record(w, history.TaskClassification, vector, result, "classification_pipeline") {
		return
	}

	respondJSON(w, http.StatusOK, classificationResponse{
		Prediction:    result.Prediction,
		Probabilities: result.Probabilities,
		Confidence:    result.Confidence,
		ModelVersion:  modelVersion,
		Timestamp:     time.Now().UTC(),
	})
}

func (api *API) handlePredictRegression(w http.ResponseWriter, r *http.Request) {
	vector, ok := api.decodeAndValidate(w, r)
	if !ok {
		return
	}

	result, err := api.Registry.PredictRegression(vector)
	if err != nil {
		api.respondError(w, err)
		return
	}

	if !api.record(w, history.TaskRegression, vector, result, "regression_pipeline") {
		return
	}

	respondJSON(w, http.StatusOK, regressionResponse{
		Prediction:         result.Prediction,
		ConfidenceInterval: result.ConfidenceInterval,
		Unit:               result.Unit,
		ModelVersion:       modelVersion,
		Timestamp:          time.Now().UTC(),
	})
}

func (api *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	records, err := api.Store.List(limit, offset)
	if err != nil {
		api.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (api *API) handleListByTask(w http.ResponseWriter, r *http.Request) {
	task := r.PathValue("task")
	if task != history.TaskClassification && task != history.TaskRegression {
		writeError(w, http.StatusBadRequest, "Bad Request", "unknown task type: "+task, "ValidationError")
		return
	}

	records, err := api.Store.ListByTask(task, queryInt(r, "limit", 50))
	if err != nil {
		api.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (api *API) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "prediction id must be an integer", "ValidationError")
		return
	}

	record, err := api.Store.Get(id)
	if err != nil {
		api.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (api *API) handleDeletePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "prediction id must be an integer", "ValidationError")
		return
	}

	// Delete is specified but intentionally unsupported; the store reports
	// the failure and no record is ever removed.
	api.respondError(w, api.Store.Delete(id))
}

func (api *API) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.Registry.Info())
}

func (api *API) handleFeatures(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, features.Definitions())
}

func (api *API) decodeAndValidate(w http.ResponseWriter, r *http.Request) (features.Vector, bool) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid request body", "ValidationError")
		return nil, false
	}

	vector, err := features.Validate(req.Features)
	if err != nil {
		api.respondError(w, err)
		return nil, false
	}
	return vector, true
}

func (api *API) record(w http.ResponseWriter, taskType string, vector features.Vector, result any, modelName string) bool {
	record := history.PredictionRecord{
		TaskType:      taskType,
		InputFeatures: vector,
		OutputResult:  result,
		ModelName:     modelName,
		CreatedAt:     time.Now().UTC(),
	}

	id, err := api.Store.Append(record)
	if err != nil {
		api.respondError(w, err)
		return false
	}
	record.ID = id

	if api.Publisher != nil {
		api.Publisher.PublishPrediction(record)
	}
	return true
}

func (api *API) respondError(w http.ResponseWriter, err error) {
	var verr *features.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "Bad Request", verr.Error(), "ValidationError")
	case errors.Is(err, ml.ErrModelNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error(), "ModelNotLoadedError")
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not Found", err.Error(), "NotFoundError")
	case errors.Is(err, history.ErrDeleteUnsupported):
		writeError(w, http.StatusNotImplemented, "Not Implemented", err.Error(), "DeleteUnsupportedError")
	default:
		if api.Logger != nil {
			api.Logger.Error("request failed", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), "InternalError")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, errName, message, errType string) {
	respondJSON(w, status, errorResponse{Error: errName, Message: message, Type: errType})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
