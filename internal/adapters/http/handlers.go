package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/sweeper/internal/application"
	"github.com/jobrunner/sweeper/internal/domain"
)

// maxBodySize limits request bodies.
const maxBodySize = 8 << 20

// convertResponse is the body of a single conversion.
type convertResponse struct {
	Input            domain.GeoPoint `json:"input"`
	Output           domain.GeoPoint `json:"output"`
	From             domain.Datum    `json:"from"`
	To               domain.Datum    `json:"to"`
	OutOfChina       bool            `json:"out_of_china"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
}

// batchRequest is the body of a batch conversion.
type batchRequest struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Points [][]float64 `json:"points"`
}

type batchItemResponse struct {
	Index  int         `json:"index"`
	Input  [2]float64  `json:"input"`
	Output *[2]float64 `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type batchResponse struct {
	From             domain.Datum        `json:"from"`
	To               domain.Datum        `json:"to"`
	Count            int                 `json:"count"`
	Failed           int                 `json:"failed"`
	Items            []batchItemResponse `json:"items"`
	ProcessingTimeMs float64             `json:"processing_time_ms"`
}

// centroidRequest is the body of a centroid computation. Coordinates holds a
// coordinate set either as a JSON array of pairs or as a string in any
// supported encoding.
type centroidRequest struct {
	Datum       string          `json:"datum"`
	OutputDatum string          `json:"output_datum"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type centroidResponse struct {
	Center           domain.GeoPoint `json:"center"`
	Datum            domain.Datum    `json:"datum"`
	Extent           domain.Extent   `json:"extent"`
	VertexCount      int             `json:"vertex_count"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
}

// workAreaRequest is the body of a work area create or update.
type workAreaRequest struct {
	Name        string          `json:"name"`
	Coordinates json.RawMessage `json:"coordinates"`
	Datum       string          `json:"datum"`
	MapGrade    int             `json:"map_grade"`
}

type workAreaResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Datum       domain.Datum    `json:"datum"`
	Center      domain.GeoPoint `json:"center"`
	Coordinates [][2]float64    `json:"coordinates"`
	Extent      domain.Extent   `json:"extent"`
	MapGrade    int             `json:"map_grade"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// handleConvert converts a single point given as query parameters.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	point, err := parsePointParams(q.Get("lng"), q.Get("lat"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if q.Get("to") == "" {
		s.writeError(w, http.StatusBadRequest, "parameter to is required")
		return
	}
	from, err := domain.ParseDatum(q.Get("from"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	to, err := domain.ParseDatum(q.Get("to"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.conversion.Convert(r.Context(), domain.ConvertRequest{Point: point, From: from, To: to})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, convertResponse{
		Input:            result.Input,
		Output:           result.Output,
		From:             result.From,
		To:               result.To,
		OutOfChina:       result.OutOfChina,
		ProcessingTimeMs: durationMs(result.ProcessingTime),
	})
}

// handleConvertBatch converts a list of points.
func (s *Server) handleConvertBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	from, err := domain.ParseDatum(body.From)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	to, err := domain.ParseDatum(body.To)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	points := make([]domain.GeoPoint, len(body.Points))
	for i, p := range body.Points {
		if len(p) != 2 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("point %d must be a [lng, lat] pair", i))
			return
		}
		points[i] = domain.NewGeoPoint(p[0], p[1])
	}

	result, err := s.conversion.ConvertBatch(r.Context(), domain.BatchConvertRequest{Points: points, From: from, To: to})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	items := make([]batchItemResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = batchItemResponse{
			Index: item.Index,
			Input: [2]float64{item.Input.Lng, item.Input.Lat},
			Error: item.Error,
		}
		if item.Error == "" {
			items[i].Output = &[2]float64{item.Output.Lng, item.Output.Lat}
		}
	}

	s.writeJSON(w, http.StatusOK, batchResponse{
		From:             result.From,
		To:               result.To,
		Count:            len(items),
		Failed:           result.Failed,
		Items:            items,
		ProcessingTimeMs: durationMs(result.ProcessingTime),
	})
}

// handleCentroid computes the centroid of a posted coordinate set.
func (s *Server) handleCentroid(w http.ResponseWriter, r *http.Request) {
	var body centroidRequest
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	datum, err := domain.ParseDatum(body.Datum)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	outDatum := datum
	if body.OutputDatum != "" {
		if outDatum, err = domain.ParseDatum(body.OutputDatum); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}

	text, err := coordinateSetText(body.Coordinates)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	vertices, err := domain.ParseCoordinateSet(text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.conversion.Centroid(r.Context(), domain.CentroidRequest{
		Vertices:    vertices,
		Datum:       datum,
		OutputDatum: outDatum,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, centroidResponse{
		Center:           result.Center,
		Datum:            result.Datum,
		Extent:           result.Extent,
		VertexCount:      result.VertexCount,
		ProcessingTimeMs: durationMs(result.ProcessingTime),
	})
}

// handleListWorkAreas returns all work areas.
func (s *Server) handleListWorkAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.workAreas.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	response := make([]workAreaResponse, len(areas))
	for i := range areas {
		response[i] = formatWorkArea(&areas[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"work_areas": response,
		"count":      len(response),
	})
}

// handleCreateWorkArea creates a work area.
func (s *Server) handleCreateWorkArea(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseWorkAreaInput(w, r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	wa, err := s.workAreas.Create(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/workareas/"+strconv.FormatInt(wa.ID, 10))
	s.writeJSON(w, http.StatusCreated, formatWorkArea(wa))
}

// handleGetWorkArea returns a single work area.
func (s *Server) handleGetWorkArea(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	wa, err := s.workAreas.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatWorkArea(wa))
}

// handleUpdateWorkArea replaces a work area.
func (s *Server) handleUpdateWorkArea(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	in, err := s.parseWorkAreaInput(w, r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	wa, err := s.workAreas.Update(r.Context(), id, in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatWorkArea(wa))
}

// handleDeleteWorkArea removes a work area.
func (s *Server) handleDeleteWorkArea(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.workAreas.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleWorkAreaCenter returns the center of a work area in the requested datum.
func (s *Server) handleWorkAreaCenter(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	datum, err := domain.ParseDatum(r.URL.Query().Get("datum"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	center, err := s.workAreas.Center(r.Context(), id, datum)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"datum":  datum,
		"center": center,
	})
}

// handleWorkAreaGeoJSON returns a work area as a GeoJSON feature.
func (s *Server) handleWorkAreaGeoJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	feature, err := s.workAreas.Feature(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	data, err := feature.MarshalJSON()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	maps := s.health.GetMapHealth(r.Context())
	mapStatus := make([]map[string]interface{}, len(maps))
	for i, m := range maps {
		mapStatus[i] = map[string]interface{}{
			"id":     m.ID,
			"status": m.Status,
			"ready":  m.Ready,
		}
		if m.Error != "" {
			mapStatus[i]["error"] = m.Error
		}
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":      boolToStatus(details.Healthy),
		"ready":       details.Ready,
		"maps_loaded": details.MapsLoaded,
		"maps_ready":  details.MapsReady,
		"maps":        mapStatus,
		"components":  details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListMaps returns all registered map files.
func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.registry.ListMaps(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list maps")
		return
	}

	response := make([]map[string]interface{}, len(maps))
	for i := range maps {
		response[i] = formatMap(&maps[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"maps":  response,
		"count": len(maps),
	})
}

// handleGetMap returns a specific map file.
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["mapId"]

	m, err := s.registry.GetMap(r.Context(), mapID)
	if err != nil {
		if errors.Is(err, domain.ErrMapNotFound) {
			s.writeError(w, http.StatusNotFound, "Map not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to get map")
		return
	}

	s.writeJSON(w, http.StatusOK, formatMap(m))
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := s.openAPIDocument()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(spec)
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncService == nil {
		s.writeError(w, http.StatusNotFound, "Sync service not available")
		return
	}

	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		var rl *application.RateLimitError
		if errors.As(err, &rl) {
			secs := rl.RetryAfterSeconds()
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			s.writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Sync rate limit exceeded. Try again in %d seconds.", secs))
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// parsePointParams parses lng and lat query values.
func parsePointParams(lngStr, latStr string) (domain.GeoPoint, error) {
	if lngStr == "" || latStr == "" {
		return domain.GeoPoint{}, &domain.ValidationError{
			Field:      "lng,lat",
			Value:      lngStr + "," + latStr,
			Constraint: "required",
			Message:    "parameters lng and lat are required",
		}
	}

	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return domain.GeoPoint{}, &domain.ValidationError{
			Field: "lng", Value: lngStr, Constraint: "number", Message: "invalid lng value",
		}
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.GeoPoint{}, &domain.ValidationError{
			Field: "lat", Value: latStr, Constraint: "number", Message: "invalid lat value",
		}
	}

	return domain.NewGeoPoint(lng, lat), nil
}

// parseWorkAreaInput decodes a work area request body.
func (s *Server) parseWorkAreaInput(w http.ResponseWriter, r *http.Request) (domain.WorkAreaInput, error) {
	var body workAreaRequest
	if err := s.decodeBody(w, r, &body); err != nil {
		return domain.WorkAreaInput{}, &domain.ValidationError{
			Field: "body", Constraint: "json", Message: err.Error(),
		}
	}

	datum, err := domain.ParseDatum(body.Datum)
	if err != nil {
		return domain.WorkAreaInput{}, err
	}
	coords, err := coordinateSetText(body.Coordinates)
	if err != nil {
		return domain.WorkAreaInput{}, err
	}

	return domain.WorkAreaInput{
		Name:        body.Name,
		Coordinates: coords,
		Datum:       datum,
		MapGrade:    body.MapGrade,
	}, nil
}

// coordinateSetText returns the coordinate set carried by raw, which is
// either a JSON string or a JSON array of pairs.
func coordinateSetText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", &domain.ValidationError{
			Field:      "coordinates",
			Constraint: "required",
			Message:    "coordinates are required",
		}
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", &domain.ValidationError{
				Field: "coordinates", Constraint: "string", Message: err.Error(),
			}
		}
		return text, nil
	}
	return string(raw), nil
}

// decodeBody decodes a JSON request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if !isJSONRequest(r) {
		return errors.New("content type must be application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses the {id} path variable, writing a 400 when it is malformed.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid work area id %q", raw))
		return 0, false
	}
	return id, true
}

func formatWorkArea(wa *domain.WorkArea) workAreaResponse {
	coords := make([][2]float64, len(wa.Vertices))
	for i, v := range wa.Vertices {
		coords[i] = [2]float64{v.Lng, v.Lat}
	}

	return workAreaResponse{
		ID:          wa.ID,
		Name:        wa.Name,
		Datum:       wa.Datum,
		Center:      wa.Center,
		Coordinates: coords,
		Extent:      wa.Extent(),
		MapGrade:    wa.MapGrade,
		CreatedAt:   wa.CreatedAt,
		UpdatedAt:   wa.UpdatedAt,
	}
}

func formatMap(m *domain.MapFile) map[string]interface{} {
	result := map[string]interface{}{
		"id":        m.ID,
		"name":      m.Name,
		"path":      m.Path,
		"size":      m.Size,
		"datum":     m.Datum,
		"status":    m.Status,
		"ready":     m.IsReady(),
		"vertices":  m.VertexCount(),
		"loaded_at": m.LoadedAt,
	}
	if m.IsReady() {
		result["center"] = m.Center
		result["extent"] = m.Extent
	}
	if m.Error != "" {
		result["error"] = m.Error
	}
	return result
}

// writeDomainError maps an error to its HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Field+": "+validationErr.Message)
	case errors.Is(err, domain.ErrDegenerateInput):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownDatum):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON writes a JSON response. The body is encoded before the status is
// sent, so an encoding failure still produces a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// isJSONRequest reports whether the request declares a JSON body.
func isJSONRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}
