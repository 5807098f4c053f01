package rest

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/permissions"
	"github.com/scopegate/scopegate/internal/storage"
)

// Registry holds the resources served under the API group.
type Registry struct {
	store     *storage.Store
	resources map[string]*Resource
	order     []string
}

type RegistryParams struct {
	fx.In

	Store *storage.Store
	Table permissions.Table
}

// NewRegistry builds a registry pre-populated with the default models.
func NewRegistry(params RegistryParams) (*Registry, error) {
	registry := &Registry{
		store:     params.Store,
		resources: make(map[string]*Resource),
	}

	for _, model := range DefaultModels(params.Table) {
		if err := registry.Add(model); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Add registers a model. Model names must be unique.
func (r *Registry) Add(model Model) error {
	if _, ok := r.resources[model.Name]; ok {
		return fmt.Errorf("model %q already registered", model.Name)
	}

	r.resources[model.Name] = NewResource(r.store, model)
	r.order = append(r.order, model.Name)

	return nil
}

// Resource returns the resource registered under name, or nil.
func (r *Registry) Resource(name string) *Resource {
	return r.resources[name]
}

// Resources returns the registered resources in registration order.
func (r *Registry) Resources() []*Resource {
	resources := make([]*Resource, 0, len(r.order))
	for _, name := range r.order {
		resources = append(resources, r.resources[name])
	}

	return resources
}

// Mount registers the CRUD routes of every resource on the group.
func (r *Registry) Mount(group *gin.RouterGroup) {
	for _, resource := range r.Resources() {
		g := group.Group("/" + resource.model.Name)
		g.GET("", resource.List)
		g.GET("/:id", resource.Get)
		g.POST("", resource.Create)
		g.PUT("/:id", resource.Update)
		g.DELETE("/:id", resource.Delete)
	}
}

// Module provides the model registry to the application graph.
var Module = fx.Module("rest",
	fx.Provide(NewRegistry),
)
