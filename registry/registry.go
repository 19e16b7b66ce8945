// Package registry builds the four search service clients on first use and
// shares them between callers.
package registry

import (
	"sync"

	"github.com/percona/search-clone/config"
	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/log"
	"github.com/percona/search-clone/search"
)

// Role identifies one of the clients.
type Role int

const (
	// RoleSourceSchema reads the index definition from the source service.
	RoleSourceSchema Role = iota
	// RoleSourceData queries documents of the source index.
	RoleSourceData
	// RoleTargetSchema writes the index definition to the target service.
	RoleTargetSchema
	// RoleTargetData uploads documents to the target index.
	RoleTargetData

	numRoles
)

func (r Role) String() string {
	switch r {
	case RoleSourceSchema:
		return "source-schema"
	case RoleSourceData:
		return "source-data"
	case RoleTargetSchema:
		return "target-schema"
	case RoleTargetData:
		return "target-data"
	}

	return "unknown"
}

// Roles lists every role.
func Roles() []Role {
	return []Role{RoleSourceSchema, RoleSourceData, RoleTargetSchema, RoleTargetData}
}

// required lists the options a role needs, in the order they are checked.
func (r Role) required() []string {
	switch r {
	case RoleSourceSchema:
		return []string{config.FieldSourceEndpoint, config.FieldSourceKey}
	case RoleSourceData:
		return []string{config.FieldSourceEndpoint, config.FieldSourceIndex, config.FieldSourceKey}
	case RoleTargetSchema:
		return []string{config.FieldTargetEndpoint, config.FieldTargetKey}
	case RoleTargetData:
		return []string{config.FieldTargetEndpoint, config.FieldSourceIndex, config.FieldTargetKey}
	}

	return nil
}

// Builder constructs clients. Construction does not contact the service.
type Builder interface {
	NewIndexClient(endpoint, key string) (*search.IndexClient, error)
	NewDocumentClient(endpoint, key, index string) (*search.DocumentClient, error)
}

// ClientBuilder is the Builder backed by package search.
type ClientBuilder struct {
	Options *search.ClientOptions
}

func (b ClientBuilder) NewIndexClient(endpoint, key string) (*search.IndexClient, error) {
	return search.NewIndexClient(endpoint, key, b.Options)
}

func (b ClientBuilder) NewDocumentClient(endpoint, key, index string) (*search.DocumentClient, error) {
	return search.NewDocumentClient(endpoint, key, index, b.Options)
}

type slot struct {
	mu     sync.Mutex
	handle any
}

// Registry holds one lazily built client per role. Each role is guarded by
// its own lock, so building one client never waits on another role.
type Registry struct {
	cfg     *config.Config
	builder Builder

	slots [numRoles]slot
}

// New returns a Registry for cfg. A nil builder means [ClientBuilder] with
// default options.
func New(cfg *config.Config, builder Builder) *Registry {
	if builder == nil {
		builder = ClientBuilder{}
	}

	return &Registry{cfg: cfg, builder: builder}
}

// Get returns the client of role, building it on the first call. The options
// the role needs are checked before the builder is called: a missing one is
// a *config.ConfigurationError. A failed build is not cached.
func (r *Registry) Get(role Role) (any, error) {
	if role < 0 || role >= numRoles {
		return nil, errors.Errorf("unknown role %d", role)
	}

	s := &r.slots[role]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return s.handle, nil
	}

	err := r.cfg.Require(role.required()...)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	handle, err := r.build(role)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s client", role)
	}

	s.handle = handle

	return handle, nil
}

func (r *Registry) build(role Role) (any, error) {
	lg := log.New("registry").With(log.Endpoint(r.endpoint(role)))

	switch role {
	case RoleSourceSchema:
		lg.Debug("Creating source index client")

		return r.builder.NewIndexClient(r.cfg.SourceEndpoint, r.cfg.SourceKey)

	case RoleSourceData:
		lg.With(log.Index(r.cfg.SourceIndex)).Debug("Creating source document client")

		return r.builder.NewDocumentClient(r.cfg.SourceEndpoint, r.cfg.SourceKey, r.cfg.SourceIndex)

	case RoleTargetSchema:
		lg.Debug("Creating target index client")

		return r.builder.NewIndexClient(r.cfg.TargetEndpoint, r.cfg.TargetKey)

	case RoleTargetData:
		lg.With(log.Index(r.cfg.TargetIndex())).Debug("Creating target document client")

		return r.builder.NewDocumentClient(r.cfg.TargetEndpoint, r.cfg.TargetKey, r.cfg.TargetIndex())
	}

	return nil, errors.Errorf("unknown role %d", role)
}

func (r *Registry) endpoint(role Role) string {
	if role == RoleSourceSchema || role == RoleSourceData {
		return r.cfg.SourceEndpoint
	}

	return r.cfg.TargetEndpoint
}

// SourceIndexes returns the RoleSourceSchema client.
func (r *Registry) SourceIndexes() (*search.IndexClient, error) {
	return get[*search.IndexClient](r, RoleSourceSchema)
}

// SourceDocuments returns the RoleSourceData client.
func (r *Registry) SourceDocuments() (*search.DocumentClient, error) {
	return get[*search.DocumentClient](r, RoleSourceData)
}

// TargetIndexes returns the RoleTargetSchema client.
func (r *Registry) TargetIndexes() (*search.IndexClient, error) {
	return get[*search.IndexClient](r, RoleTargetSchema)
}

// TargetDocuments returns the RoleTargetData client.
func (r *Registry) TargetDocuments() (*search.DocumentClient, error) {
	return get[*search.DocumentClient](r, RoleTargetData)
}

func get[T any](r *Registry, role Role) (T, error) {
	var zero T

	h, err := r.Get(role)
	if err != nil {
		return zero, err
	}

	c, ok := h.(T)
	if !ok {
		return zero, errors.Errorf("%s client has type %T", role, h)
	}

	return c, nil
}
