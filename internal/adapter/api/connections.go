package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/semmidev/phylaxctl/internal/domain"
)

func (c *Client) ListConnections(ctx context.Context) ([]domain.Connection, error) {
	var resp envelope[[]wireConnection]
	if err := c.do(ctx, http.MethodGet, "/connections/summary", nil, &resp); err != nil {
		return nil, err
	}

	connections := make([]domain.Connection, 0, len(resp.Data))
	for _, w := range resp.Data {
		conn, err := w.toDomain()
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", w.ID, err)
		}
		connections = append(connections, conn)
	}
	return connections, nil
}

func (c *Client) CreateConnection(ctx context.Context, n domain.NewConnection) (domain.Connection, error) {
	req := wireCreateRequest{
		Engine:      string(n.Engine),
		Host:        n.Host,
		Port:        n.Port,
		Name:        n.Name,
		Environment: n.Environment,
		Username:    n.Username,
		Secret:      n.Secret,
		SSLMode:     sslModeString(n.SSLMode),
	}
	var resp struct {
		Connection wireConnection `json:"connection"`
	}
	if err := c.do(ctx, http.MethodPost, "/connections", req, &resp); err != nil {
		return domain.Connection{}, err
	}
	return resp.Connection.toDomain()
}

func (c *Client) GetConnection(ctx context.Context, id string) (domain.ConnectionDetails, error) {
	var resp envelope[wireConnectionDetails]
	if err := c.do(ctx, http.MethodGet, "/connections/"+escape(id), nil, &resp); err != nil {
		return domain.ConnectionDetails{}, err
	}
	return resp.Data.toDomain(id)
}

func (c *Client) UpdateConnection(ctx context.Context, id string, p domain.Patch) error {
	body, err := translatePatch(p, connectionKeys)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/connections/"+escape(id), body, nil)
}

func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/connections/"+escape(id), nil, nil)
}

// DryRunVerify reports a client error response as a failed check carrying
// the server message. Transport and server errors are returned as errors.
func (c *Client) DryRunVerify(ctx context.Context, cand domain.DryRunCandidate) (domain.DryRunResult, error) {
	req := wireDryRunRequest{
		ConnectionID: cand.ConnectionID,
		Engine:       string(cand.Engine),
		Host:         cand.Host,
		Port:         cand.Port,
		Name:         cand.Name,
		Username:     cand.Username,
		Secret:       cand.Secret,
		SSLMode:      sslModeString(cand.SSLMode),
	}
	err := c.do(ctx, http.MethodPost, "/connections/verify-dry-run", req, nil)
	if err == nil {
		return domain.DryRunResult{OK: true}, nil
	}

	var remote *domain.RemoteError
	if errors.As(err, &remote) && remote.Status >= 400 && remote.Status < 500 {
		return domain.DryRunResult{OK: false, Message: remote.Message}, nil
	}
	return domain.DryRunResult{}, err
}

func (c *Client) StartBackendVerification(ctx context.Context, id string) (domain.VerifyState, error) {
	var resp wireVerifyState
	if err := c.do(ctx, http.MethodPost, "/connections/"+escape(id)+"/verify", nil, &resp); err != nil {
		return "", err
	}
	return normalizeVerifyState(resp.Status)
}

func (c *Client) GetVerificationStatus(ctx context.Context, id string) (domain.VerificationStatus, error) {
	var resp wireVerifyState
	if err := c.do(ctx, http.MethodGet, "/connections/"+escape(id)+"/status", nil, &resp); err != nil {
		return domain.VerificationStatus{}, err
	}
	state, err := normalizeVerifyState(resp.Status)
	if err != nil {
		return domain.VerificationStatus{}, err
	}
	status := domain.VerificationStatus{State: state}
	if resp.ErrorMessage != nil {
		status.ErrorMessage = *resp.ErrorMessage
	}
	return status, nil
}
