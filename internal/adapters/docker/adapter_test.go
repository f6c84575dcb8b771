package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"
	"github.com/melih/fleetctl/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	containers []types.Container
	images     []image.Summary
	listErr    error
	imageErr   error
	actErr     error

	listOpts []container.ListOptions
	calls    []string
	removed  []container.RemoveOptions
}

func (f *fakeEngine) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{}, f.listErr
}

func (f *fakeEngine) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	f.listOpts = append(f.listOpts, options)
	return f.containers, f.listErr
}

func (f *fakeEngine) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	for _, c := range f.containers {
		if c.ID == containerID || shortID(c.ID) == containerID || (len(c.Names) > 0 && c.Names[0] == "/"+containerID) {
			return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{ID: c.ID}}, nil
		}
	}
	return types.ContainerJSON{}, errdefs.NotFound(errors.New("No such container: " + containerID))
}

func (f *fakeEngine) ContainerStart(ctx context.Context, id string, _ container.StartOptions) error {
	f.calls = append(f.calls, "start "+id)
	return f.actErr
}

func (f *fakeEngine) ContainerStop(ctx context.Context, id string, _ container.StopOptions) error {
	f.calls = append(f.calls, "stop "+id)
	return f.actErr
}

func (f *fakeEngine) ContainerRestart(ctx context.Context, id string, _ container.StopOptions) error {
	f.calls = append(f.calls, "restart "+id)
	return f.actErr
}

func (f *fakeEngine) ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error {
	f.calls = append(f.calls, "remove "+id)
	f.removed = append(f.removed, options)
	return f.actErr
}

func (f *fakeEngine) ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error) {
	return f.images, f.imageErr
}

func (f *fakeEngine) Close() error { return nil }

const (
	webID = "0123456789abcdef0123456789abcdef"
	dbID  = "fedcba9876543210fedcba9876543210"
)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		containers: []types.Container{
			{ID: webID, Names: []string{"/web"}, ImageID: "sha256:aaa", State: "running"},
			{ID: dbID, Names: []string{"/db"}, ImageID: "sha256:bbb", State: "exited"},
		},
		images: []image.Summary{
			{ID: "sha256:aaa", RepoTags: []string{"nginx:latest", "nginx:1.27"}},
			{ID: "sha256:bbb", RepoTags: []string{"<none>:<none>"}},
		},
	}
}

func TestListContainers(t *testing.T) {
	fake := newFakeEngine()
	a := newAdapter(fake, nil)

	got, err := a.ListContainers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.ContainerRecord{
		{ID: "0123456789ab", Name: "web", Status: "running", Image: "nginx:latest"},
		{ID: "fedcba987654", Name: "db", Status: "exited", Image: "none"},
	}, got)
	require.Len(t, fake.listOpts, 1)
	assert.True(t, fake.listOpts[0].All, "stopped containers must be listed")
}

func TestListContainersImageLookupFailure(t *testing.T) {
	fake := newFakeEngine()
	fake.imageErr = errors.New("boom")
	a := newAdapter(fake, nil)

	got, err := a.ListContainers(context.Background())
	require.NoError(t, err)
	for _, c := range got {
		assert.Equal(t, domain.NoImage, c.Image)
	}
}

func TestListContainersEngineError(t *testing.T) {
	fake := newFakeEngine()
	fake.listErr = errors.New("unexpected")
	a := newAdapter(fake, nil)

	_, err := a.ListContainers(context.Background())
	assert.Error(t, err)
}

func TestActions(t *testing.T) {
	tests := []struct {
		name string
		run  func(a *Adapter) error
		want string
	}{
		{name: "start", run: func(a *Adapter) error { return a.StartContainer(context.Background(), "web") }, want: "start " + webID},
		{name: "stop", run: func(a *Adapter) error { return a.StopContainer(context.Background(), "0123456789ab") }, want: "stop " + webID},
		{name: "restart", run: func(a *Adapter) error { return a.RestartContainer(context.Background(), dbID) }, want: "restart " + dbID},
		{name: "remove", run: func(a *Adapter) error { return a.RemoveContainer(context.Background(), "db") }, want: "remove " + dbID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeEngine()
			a := newAdapter(fake, nil)
			require.NoError(t, tt.run(a))
			assert.Equal(t, []string{tt.want}, fake.calls)
		})
	}
}

func TestRemoveIsForced(t *testing.T) {
	fake := newFakeEngine()
	a := newAdapter(fake, nil)

	require.NoError(t, a.RemoveContainer(context.Background(), "web"))
	require.Len(t, fake.removed, 1)
	assert.True(t, fake.removed[0].Force)
}

func TestActionOnMissingContainer(t *testing.T) {
	fake := newFakeEngine()
	a := newAdapter(fake, nil)

	err := a.StartContainer(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, fake.calls, "nothing may run after a failed lookup")
}

func TestActionFailureWrapped(t *testing.T) {
	fake := newFakeEngine()
	fake.actErr = errors.New("permission denied")
	a := newAdapter(fake, nil)

	err := a.StopContainer(context.Background(), "web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestFirstTag(t *testing.T) {
	assert.Equal(t, "none", firstTag(nil))
	assert.Equal(t, "none", firstTag([]string{"<none>:<none>"}))
	assert.Equal(t, "redis:7", firstTag([]string{"redis:7", "redis:latest"}))
}
