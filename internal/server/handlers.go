package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyperjump/mitate/internal/classifier"
	"github.com/hyperjump/mitate/internal/config"
	"github.com/hyperjump/mitate/internal/keyword"
	"github.com/hyperjump/mitate/internal/models"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a few thousand 128-dim descriptors fit comfortably.
const maxBodyBytes = 64 << 20

type classifyRequest struct {
	Descriptors []models.Descriptor `json:"descriptors"`
}

type classifyResponse struct {
	QueryID string `json:"query_id"`
	*classifier.Result
	Accepted      bool  `json:"accepted"`
	LowConfidence bool  `json:"low_confidence"`
	QueryTimeMS   int64 `json:"query_time_ms"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	queryID := uuid.New().String()
	s.logger.Debug("classify request", zap.String("query_id", queryID), zap.Int("descriptors", len(req.Descriptors)))

	start := time.Now()
	res, err := s.classifier.Classify(r.Context(), req.Descriptors)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("classification failed", zap.String("query_id", queryID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.classified.Add(1)
	s.respondJSON(w, http.StatusOK, classifyResponse{
		QueryID:       queryID,
		Result:        res,
		Accepted:      res.Accepted(),
		LowConfidence: res.LowConfidence(),
		QueryTimeMS:   time.Since(start).Milliseconds(),
	})
}

type quantizeRequest struct {
	ID          string                 `json:"id,omitempty"`
	Descriptors []models.FeatureVector `json:"descriptors"`
}

func (s *Server) handleQuantize(w http.ResponseWriter, r *http.Request) {
	if s.quantizer == nil {
		s.respondError(w, http.StatusNotImplemented, "no vocabulary loaded")
		return
	}
	var req quantizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	h, err := s.quantizer.QuantizeImage(req.ID, req.Descriptors)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":          req.ID,
		"bins":        len(h),
		"descriptors": len(req.Descriptors),
		"histogram":   h,
	})
}

type objectInfo struct {
	ID          models.ObjectID `json:"id"`
	Name        string          `json:"name"`
	Descriptors int             `json:"descriptors"`
}

func (s *Server) objectInfo(id models.ObjectID) objectInfo {
	name, _ := s.classifier.Catalog().Name(id)
	return objectInfo{ID: id, Name: name, Descriptors: s.descriptorCounts[id]}
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	ids := s.classifier.Catalog().IDs()
	objects := make([]objectInfo, len(ids))
	for i, id := range ids {
		objects[i] = s.objectInfo(id)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"objects": objects, "count": len(objects)})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid object id")
		return
	}
	id := models.ObjectID(n)
	if !s.classifier.Catalog().Contains(id) {
		s.respondError(w, http.StatusNotFound, "object not found")
		return
	}
	s.respondJSON(w, http.StatusOK, s.objectInfo(id))
}

func (s *Server) handleSearchObjects(w http.ResponseWriter, r *http.Request) {
	if s.names == nil {
		s.respondError(w, http.StatusNotImplemented, "name search not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := s.config.Search.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}
	fuzzy := s.config.Search.Fuzzy
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		fuzzy, _ = strconv.ParseBool(v)
	}

	results, err := s.names.Search(r.Context(), q, limit, &keyword.SearchOptions{FuzzyEnabled: fuzzy})
	if err != nil {
		s.logger.Error("object search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{"query": q, "results": results}
	if len(results) == 0 {
		suggestions, err := s.names.Suggest(q, 2, 5)
		if err == nil && len(suggestions) > 0 {
			resp["suggestions"] = suggestions
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	db := s.classifier.Database()
	resp := map[string]interface{}{
		"objects":               s.classifier.Catalog().Len(),
		"reference_descriptors": db.Len(),
		"dimensions":            db.Dimensions(),
		"classified":            s.classified.Load(),
		"uptime_seconds":        int64(time.Since(s.startedAt).Seconds()),
	}
	configInfo := map[string]interface{}{
		"min_votes":        s.config.Reference.MinVotes,
		"objects_path":     s.config.Reference.ObjectsPath,
		"descriptors_path": s.config.Reference.DescriptorsPath,
	}
	if s.quantizer != nil {
		configInfo["vocabulary_size"] = s.quantizer.Size()
		configInfo["vocabulary_index_type"] = s.quantizer.IndexType()
		configInfo["vocabulary_path"] = s.config.Vocabulary.Path
	}
	resp["config"] = configInfo
	if s.inbox != nil {
		resp["watch_directories"] = s.inbox.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.inbox == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.inbox.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	// HandleExisting classifies files already in the directory. Default true.
	HandleExisting *bool `json:"handle_existing,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.inbox == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	handleExisting := true
	if req.HandleExisting != nil {
		handleExisting = *req.HandleExisting
	}
	if err := s.inbox.AddDirectory(abs, handleExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.inbox == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.inbox.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.inbox.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
