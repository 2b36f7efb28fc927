package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

const restBodyMaxSize = 4 * 1024 * 1024 // 4 MiB

// TaskAPI is the slice of the REST collaborator the sync subsystem needs:
// the initial board hydration and the org-wide fetch behind the assignee
// filter. The CRUD surface itself is out of scope.
type TaskAPI interface {
	FetchTasks(ctx context.Context, projectID string) ([]board.Task, error)
	FetchOrgTasks(ctx context.Context) ([]board.Task, error)
	FetchColumns(ctx context.Context, projectID string) ([]board.Column, error)
}

// RESTClient talks to the task CRUD service with a bearer token.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient creates a client for the CRUD service at baseURL.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchTasks loads the task list, scoped server-side to projectID when it
// is non-empty.
func (c *RESTClient) FetchTasks(ctx context.Context, projectID string) ([]board.Task, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("projectId", projectID)
	}
	var tasks []board.Task
	if err := c.getJSON(ctx, "/api/tasks", q, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FetchOrgTasks loads every task visible to the user across the whole
// organization, bypassing project scoping. Used by the assignee-subset
// filter, which must span projects the active view does not load.
func (c *RESTClient) FetchOrgTasks(ctx context.Context) ([]board.Task, error) {
	q := url.Values{}
	q.Set("scope", "organization")
	var tasks []board.Task
	if err := c.getJSON(ctx, "/api/tasks", q, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FetchColumns loads the column set for projectID, or the default set
// when projectID is empty. Columns live on the project document, so this
// fetches the project and extracts them.
func (c *RESTClient) FetchColumns(ctx context.Context, projectID string) ([]board.Column, error) {
	if projectID == "" {
		return board.DefaultColumns(), nil
	}
	var proj board.Project
	if err := c.getJSON(ctx, "/api/projects/"+url.PathEscape(projectID), nil, &proj); err != nil {
		return nil, err
	}
	return proj.Columns, nil
}

func (c *RESTClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	lr := io.LimitReader(resp.Body, restBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
