// Copyright Contributors to the KubeTask project

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/model"
)

// HTTPClient is the net/http-backed implementation of Client, talking
// to the orchestration server's REST API the same way
// internal/server/handlers writes it on the other end: JSON bodies,
// chi-style path parameters, a flat error envelope.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a Client bound to the orchestration server at
// baseURL (e.g. "http://localhost:4200/api").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// errorResponse mirrors internal/server/handlers/common.go's
// writeError envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode == http.StatusConflict {
		return ErrAbort
	}
	if resp.StatusCode >= 300 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("client: %s %s: %s: %s", method, path, errResp.Error, errResp.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

type workQueueDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsPaused bool      `json:"is_paused"`
}

func (d workQueueDTO) toModel() model.WorkQueue {
	return model.WorkQueue{ID: d.ID, Name: d.Name, IsPaused: d.IsPaused}
}

func (c *HTTPClient) ReadWorkQueueByName(ctx context.Context, name string) (model.WorkQueue, error) {
	var dto workQueueDTO
	path := "/work_queues/name/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return model.WorkQueue{}, err
	}
	return dto.toModel(), nil
}

func (c *HTTPClient) CreateWorkQueue(ctx context.Context, name string) (model.WorkQueue, error) {
	var dto workQueueDTO
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/work_queues/", body, &dto); err != nil {
		return model.WorkQueue{}, err
	}
	return dto.toModel(), nil
}

type flowRunDTO struct {
	ID             uuid.UUID `json:"id"`
	State          stateDTO  `json:"state"`
	DeploymentID   uuid.UUID `json:"deployment_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
}

func (d flowRunDTO) toModel() model.FlowRun {
	return model.FlowRun{
		ID:             d.ID,
		State:          d.State.toModel(),
		DeploymentID:   d.DeploymentID,
		ScheduledStart: d.ScheduledStart,
	}
}

type stateDTO struct {
	Type    model.StateType `json:"type"`
	Message string          `json:"message"`
	Data    []byte          `json:"data,omitempty"`
}

func (d stateDTO) toModel() model.State {
	return model.State{Type: d.Type, Message: d.Message, Data: d.Data}
}

func (c *HTTPClient) GetRunsInWorkQueue(ctx context.Context, id uuid.UUID, limit int, scheduledBefore time.Time) ([]model.FlowRun, error) {
	var dtos []flowRunDTO
	path := fmt.Sprintf("/work_queues/%s/runs?limit=%s&scheduled_before=%s",
		id, strconv.Itoa(limit), url.QueryEscape(scheduledBefore.UTC().Format(time.RFC3339)))
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, err
	}
	runs := make([]model.FlowRun, 0, len(dtos))
	for _, dto := range dtos {
		runs = append(runs, dto.toModel())
	}
	return runs, nil
}

type deploymentDTO struct {
	ID                       uuid.UUID              `json:"id"`
	InfrastructureDocumentID *uuid.UUID             `json:"infrastructure_document_id,omitempty"`
	InfraOverrides           map[string]interface{} `json:"infra_overrides"`
}

func (c *HTTPClient) ReadDeployment(ctx context.Context, id uuid.UUID) (model.Deployment, error) {
	var dto deploymentDTO
	if err := c.do(ctx, http.MethodGet, "/deployments/"+id.String(), nil, &dto); err != nil {
		return model.Deployment{}, err
	}
	return model.Deployment{
		ID:                       dto.ID,
		InfrastructureDocumentID: dto.InfrastructureDocumentID,
		InfraOverrides:           dto.InfraOverrides,
	}, nil
}

type blockDocumentDTO struct {
	ID        uuid.UUID              `json:"id"`
	BlockType string                 `json:"block_type"`
	Data      map[string]interface{} `json:"data"`
}

func (c *HTTPClient) ReadBlockDocument(ctx context.Context, id uuid.UUID) (model.BlockDocument, error) {
	var dto blockDocumentDTO
	if err := c.do(ctx, http.MethodGet, "/block_documents/"+id.String(), nil, &dto); err != nil {
		return model.BlockDocument{}, err
	}
	return model.BlockDocument{ID: dto.ID, BlockType: dto.BlockType, Data: dto.Data}, nil
}

func (c *HTTPClient) CreateBlockDocument(ctx context.Context, blockType string, data map[string]interface{}) (model.BlockDocument, error) {
	var dto blockDocumentDTO
	body := map[string]interface{}{
		"block_type":   blockType,
		"data":         data,
		"is_anonymous": true,
	}
	if err := c.do(ctx, http.MethodPost, "/block_documents/", body, &dto); err != nil {
		return model.BlockDocument{}, err
	}
	return model.BlockDocument{ID: dto.ID, BlockType: dto.BlockType, Data: dto.Data}, nil
}

func (c *HTTPClient) ProposeState(ctx context.Context, state model.State, flowRunID uuid.UUID) (model.State, error) {
	var dto stateDTO
	body := stateDTO{Type: state.Type, Message: state.Message, Data: state.Data}
	path := "/flow_runs/" + flowRunID.String() + "/set_state"
	if err := c.do(ctx, http.MethodPost, path, body, &dto); err != nil {
		return model.State{}, err
	}
	return dto.toModel(), nil
}

// Close implements Client; HTTPClient holds no long-lived resources
// beyond the pooled transport, which net/http manages itself.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
