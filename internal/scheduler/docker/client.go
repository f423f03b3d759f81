package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

// containerSpec is everything needed to create one job container.
type containerSpec struct {
	Name       string
	Image      string
	Cmd        []string
	WorkingDir string
	Labels     map[string]string
	Mounts     []mount.Mount
	Resources  container.Resources
	ExtraHosts []string
}

// engine is the subset of the Docker API the scheduler needs.
type engine interface {
	EnsureImage(ctx context.Context, ref string) error
	Create(ctx context.Context, spec containerSpec) (string, error)
	Start(ctx context.Context, id string) error
	Remove(ctx context.Context, nameOrID string) error
	Ping(ctx context.Context) error
	Close() error
}

// apiEngine talks to the Docker daemon.
type apiEngine struct {
	client *client.Client
}

func newAPIEngine() (*apiEngine, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &apiEngine{client: c}, nil
}

func (e *apiEngine) EnsureImage(ctx context.Context, ref string) error {
	if _, err := e.client.ImageInspect(ctx, ref); err == nil {
		return nil
	}

	reader, err := e.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (e *apiEngine) Create(ctx context.Context, spec containerSpec) (string, error) {
	containerConfig := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		WorkingDir: spec.WorkingDir,
		Labels:     spec.Labels,
	}
	hostConfig := &container.HostConfig{
		Mounts:     spec.Mounts,
		Resources:  spec.Resources,
		ExtraHosts: spec.ExtraHosts,
	}

	resp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (e *apiEngine) Start(ctx context.Context, id string) error {
	return e.client.ContainerStart(ctx, id, container.StartOptions{})
}

func (e *apiEngine) Remove(ctx context.Context, nameOrID string) error {
	return e.client.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: true})
}

func (e *apiEngine) Ping(ctx context.Context) error {
	_, err := e.client.Ping(ctx)
	return err
}

func (e *apiEngine) Close() error {
	return e.client.Close()
}
