// Copyright Contributors to the KubeTask project

// Package fakeserver is an in-memory stand-in for the orchestration
// server's REST API, routed with chi the same way
// internal/server/server.go routes the real one. It backs agent and
// coordinator tests without requiring a live server.
package fakeserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/model"
)

// Server is a programmable fake of the orchestration server.
type Server struct {
	mu sync.Mutex

	queues      map[string]model.WorkQueue
	queuesByID  map[uuid.UUID]model.WorkQueue
	runs        map[uuid.UUID][]model.FlowRun
	deployments map[uuid.UUID]model.Deployment
	blocks      map[uuid.UUID]model.BlockDocument
	states      map[uuid.UUID]model.State

	// ProposeStateFunc, when set, overrides the default propose-state
	// behavior so tests can script Abort/claim-lost/error scenarios.
	ProposeStateFunc func(flowRunID uuid.UUID, proposed model.State) (model.State, int)

	httpServer *httptest.Server
}

// New creates an empty fake server and starts listening.
func New() *Server {
	s := &Server{
		queues:      map[string]model.WorkQueue{},
		queuesByID:  map[uuid.UUID]model.WorkQueue{},
		runs:        map[uuid.UUID][]model.FlowRun{},
		deployments: map[uuid.UUID]model.Deployment{},
		blocks:      map[uuid.UUID]model.BlockDocument{},
		states:      map[uuid.UUID]model.State{},
	}
	s.httpServer = httptest.NewServer(s.router())
	return s
}

// URL is the base URL the fake server listens on.
func (s *Server) URL() string { return s.httpServer.URL }

// Close stops the fake server.
func (s *Server) Close() { s.httpServer.Close() }

// SeedWorkQueue registers a queue the server will resolve by name.
func (s *Server) SeedWorkQueue(q model.WorkQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[q.Name] = q
	s.queuesByID[q.ID] = q
}

// SeedRuns makes runs returned for the given work queue ID.
func (s *Server) SeedRuns(queueID uuid.UUID, runs []model.FlowRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[queueID] = runs
}

// SeedDeployment registers a deployment record.
func (s *Server) SeedDeployment(d model.Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[d.ID] = d
}

// SeedBlockDocument registers a block document.
func (s *Server) SeedBlockDocument(b model.BlockDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
}

// StateFor returns the last state recorded for a flow run, for test
// assertions: the proposed state, or ProposeStateFunc's result when
// that is set. A proposal answered with a conflict records nothing.
func (s *Server) StateFor(flowRunID uuid.UUID) (model.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[flowRunID]
	return st, ok
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/work_queues/name/{name}", s.handleReadWorkQueueByName)
	r.Post("/work_queues/", s.handleCreateWorkQueue)
	r.Get("/work_queues/{id}/runs", s.handleGetRuns)
	r.Get("/deployments/{id}", s.handleReadDeployment)
	r.Get("/block_documents/{id}", s.handleReadBlockDocument)
	r.Post("/block_documents/", s.handleCreateBlockDocument)
	r.Post("/flow_runs/{id}/set_state", s.handleSetState)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
		"code":    status,
	})
}

type workQueueDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsPaused bool      `json:"is_paused"`
}

func (s *Server) handleReadWorkQueueByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	q, ok := s.queues[name]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "work queue not found")
		return
	}
	writeJSON(w, http.StatusOK, workQueueDTO{ID: q.ID, Name: q.Name, IsPaused: q.IsPaused})
}

func (s *Server) handleCreateWorkQueue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.queues[body.Name]; ok {
		writeJSON(w, http.StatusOK, workQueueDTO{ID: existing.ID, Name: existing.Name, IsPaused: existing.IsPaused})
		return
	}
	q := model.WorkQueue{ID: uuid.New(), Name: body.Name}
	s.queues[body.Name] = q
	s.queuesByID[q.ID] = q
	writeJSON(w, http.StatusCreated, workQueueDTO{ID: q.ID, Name: q.Name, IsPaused: q.IsPaused})
}

type flowRunDTO struct {
	ID             uuid.UUID `json:"id"`
	State          stateDTO  `json:"state"`
	DeploymentID   uuid.UUID `json:"deployment_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
}

type stateDTO struct {
	Type    model.StateType `json:"type"`
	Message string          `json:"message"`
	Data    []byte          `json:"data,omitempty"`
}

func (s *Server) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid queue id")
		return
	}

	s.mu.Lock()
	_, ok := s.queuesByID[id]
	runs := s.runs[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "work queue not found")
		return
	}

	dtos := make([]flowRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, flowRunDTO{
			ID:             run.ID,
			State:          stateDTO{Type: run.State.Type, Message: run.State.Message, Data: run.State.Data},
			DeploymentID:   run.DeploymentID,
			ScheduledStart: run.ScheduledStart,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

type deploymentDTO struct {
	ID                       uuid.UUID              `json:"id"`
	InfrastructureDocumentID *uuid.UUID             `json:"infrastructure_document_id,omitempty"`
	InfraOverrides           map[string]interface{} `json:"infra_overrides"`
}

func (s *Server) handleReadDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deployment id")
		return
	}
	s.mu.Lock()
	d, ok := s.deployments[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	writeJSON(w, http.StatusOK, deploymentDTO{
		ID:                       d.ID,
		InfrastructureDocumentID: d.InfrastructureDocumentID,
		InfraOverrides:           d.InfraOverrides,
	})
}

type blockDocumentDTO struct {
	ID        uuid.UUID              `json:"id"`
	BlockType string                 `json:"block_type"`
	Data      map[string]interface{} `json:"data"`
}

func (s *Server) handleReadBlockDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block document id")
		return
	}
	s.mu.Lock()
	b, ok := s.blocks[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "block document not found")
		return
	}
	writeJSON(w, http.StatusOK, blockDocumentDTO{ID: b.ID, BlockType: b.BlockType, Data: b.Data})
}

func (s *Server) handleCreateBlockDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BlockType   string                 `json:"block_type"`
		Data        map[string]interface{} `json:"data"`
		IsAnonymous bool                   `json:"is_anonymous"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b := model.BlockDocument{ID: uuid.New(), BlockType: body.BlockType, Data: body.Data}
	s.mu.Lock()
	s.blocks[b.ID] = b
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, blockDocumentDTO{ID: b.ID, BlockType: b.BlockType, Data: b.Data})
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid flow run id")
		return
	}

	var body stateDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	proposed := model.State{Type: body.Type, Message: body.Message, Data: body.Data}

	s.mu.Lock()
	fn := s.ProposeStateFunc
	s.mu.Unlock()

	if fn != nil {
		result, status := fn(id, proposed)
		if status == http.StatusConflict {
			writeError(w, http.StatusConflict, "aborted")
			return
		}
		s.mu.Lock()
		s.states[id] = result
		s.mu.Unlock()
		writeJSON(w, status, stateDTO{Type: result.Type, Message: result.Message, Data: result.Data})
		return
	}

	s.mu.Lock()
	s.states[id] = proposed
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stateDTO{Type: proposed.Type, Message: proposed.Message, Data: proposed.Data})
}
