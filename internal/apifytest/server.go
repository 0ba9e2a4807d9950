// Package apifytest provides a scripted in-process stand-in for the actor
// platform API, for use in tests.
package apifytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server simulates the run, status and dataset endpoints
type Server struct {
	server *httptest.Server

	mu sync.Mutex

	// scripted behavior
	runID          string
	datasetID      string
	statuses       []string
	submitError    int
	statusErrorAt  map[int]int // poll number (1-based) -> HTTP status
	datasetError   int
	datasetPayload []byte

	// observed traffic
	submits         int
	polls           int
	datasetFetches  []string
	lastInput       map[string]interface{}
	tokens          []string
	unmatchedRoutes []string
}

// NewServer starts a mock platform whose runs succeed on the first poll
// with an empty dataset
func NewServer() *Server {
	s := &Server{
		runID:          "run-1",
		datasetID:      "dataset-1",
		statuses:       []string{"SUCCEEDED"},
		statusErrorAt:  make(map[int]int),
		datasetPayload: []byte("[]"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/", s.handleStartRun)
	mux.HandleFunc("/v2/actor-runs/", s.handleGetRun)
	mux.HandleFunc("/v2/datasets/", s.handleDatasetItems)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.unmatchedRoutes = append(s.unmatchedRoutes, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		http.NotFound(w, r)
	})

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the API base URL, including the /v2 prefix
func (s *Server) URL() string {
	return s.server.URL + "/v2"
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// SetRun sets the ids returned for submitted runs
func (s *Server) SetRun(runID, datasetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.datasetID = datasetID
}

// SetStatuses scripts the status returned by successive polls. The last
// status repeats once the list is exhausted.
func (s *Server) SetStatuses(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = statuses
}

// FailSubmit makes run submission answer with the given HTTP status
func (s *Server) FailSubmit(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitError = status
}

// FailPoll makes the n-th status poll (1-based) answer with the given HTTP status
func (s *Server) FailPoll(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusErrorAt[n] = status
}

// FailDataset makes dataset reads answer with the given HTTP status
func (s *Server) FailDataset(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasetError = status
}

// SetDatasetJSON sets the raw dataset items payload
func (s *Server) SetDatasetJSON(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasetPayload = []byte(payload)
}

// SetDataset sets the dataset items
func (s *Server) SetDataset(items []map[string]interface{}) {
	data, err := json.Marshal(items)
	if err != nil {
		panic(fmt.Sprintf("apifytest: encode dataset: %v", err))
	}
	s.SetDatasetJSON(string(data))
}

// Submits returns the number of run submissions received
func (s *Server) Submits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

// Polls returns the number of status requests received
func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// DatasetFetches returns the dataset ids read, in order
func (s *Server) DatasetFetches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.datasetFetches...)
}

// Requests returns the total number of requests received
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits + s.polls + len(s.datasetFetches) + len(s.unmatchedRoutes)
}

// LastInput returns the JSON body of the latest submission
func (s *Server) LastInput() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInput
}

// Tokens returns the token query parameter of every request, in order
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/runs") {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.submits++
	s.tokens = append(s.tokens, r.URL.Query().Get("token"))

	body, _ := io.ReadAll(r.Body)
	var input map[string]interface{}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-input", "request body is not valid JSON")
		return
	}
	s.lastInput = input

	if s.submitError > 0 {
		writeError(w, s.submitError, "run-failed", "cannot start run")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"id":               s.runID,
			"actId":            "hashtag-actor",
			"status":           "READY",
			"defaultDatasetId": s.datasetID,
		},
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/v2/actor-runs/")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	s.tokens = append(s.tokens, r.URL.Query().Get("token"))

	if status, ok := s.statusErrorAt[s.polls]; ok {
		writeError(w, status, "status-failed", "cannot read run")
		return
	}
	if runID != s.runID {
		writeError(w, http.StatusNotFound, "record-not-found", "Actor run was not found")
		return
	}

	idx := s.polls - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"id":               s.runID,
			"status":           s.statuses[idx],
			"defaultDatasetId": s.datasetID,
		},
	})
}

func (s *Server) handleDatasetItems(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v2/datasets/")
	datasetID := strings.TrimSuffix(rest, "/items")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.datasetFetches = append(s.datasetFetches, datasetID)
	s.tokens = append(s.tokens, r.URL.Query().Get("token"))

	if s.datasetError > 0 {
		writeError(w, s.datasetError, "dataset-failed", "cannot read dataset")
		return
	}
	if datasetID != s.datasetID {
		writeError(w, http.StatusNotFound, "record-not-found", "Dataset was not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(s.datasetPayload)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"type": kind, "message": message},
	})
}
