// Package rest exposes database-backed models as scoped REST resources.
// Every handler funnels its queries through the model's permission checker,
// so object visibility and field access always reflect the caller's scopes.
package rest

import (
	"net/http"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"

	"github.com/scopegate/scopegate/internal/fields"
	"github.com/scopegate/scopegate/internal/permissions"
	"github.com/scopegate/scopegate/internal/scopes"
	"github.com/scopegate/scopegate/internal/server/middleware"
	"github.com/scopegate/scopegate/internal/storage"
)

// Model describes one table exposed over REST.
type Model struct {
	// Name is the URL segment, e.g. "notes".
	Name string
	// Table is the backing database table. Must have an integer "id" column.
	Table string
	// Columns are the selectable columns, including "id".
	Columns []string
	// Checker guards object access for this model.
	Checker *permissions.Checker
	// Fields guards per-field access for this model.
	Fields *fields.Permissions
}

// Resource serves list/get/create/update/delete for a single model.
type Resource struct {
	store *storage.Store
	model Model
}

func NewResource(store *storage.Store, model Model) *Resource {
	return &Resource{store: store, model: model}
}

func (r *Resource) Model() Model {
	return r.model
}

// List returns all rows visible under the caller's view scopes, with each
// row filtered down to the caller's readable fields.
func (r *Resource) List(c *gin.Context) {
	ctx := c.Request.Context()

	pred, err := r.model.Checker.ScopeView(ctx)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	granted, err := r.model.Checker.Scopes(ctx, scopes.ActionView)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	rows, err := r.store.ListRows(ctx, r.model.Table, r.model.Columns, pred)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		data = append(data, r.model.Fields.FilterRead(granted, row))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": gin.H{"total_records": len(data)},
	})
}

// Get returns a single row by id. Rows outside the caller's view scopes
// are indistinguishable from rows that do not exist.
func (r *Resource) Get(c *gin.Context) {
	id, ok := r.paramID(c)
	if !ok {
		return
	}

	row, granted, err := r.visibleRow(c, id)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": r.model.Fields.FilterRead(granted, row)})
}

// Create inserts a new row after the add scopes accept the incoming values.
func (r *Resource) Create(c *gin.Context) {
	ctx := c.Request.Context()

	values, ok := r.bindValues(c)
	if !ok {
		return
	}

	granted, err := r.model.Checker.Scopes(ctx, scopes.ActionAdd)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if err := r.model.Fields.CheckWrite(granted, values); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if err := r.model.Checker.ScopeAdd(ctx, values); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	id, err := r.store.InsertRow(ctx, r.model.Table, values)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": id}})
}

// Update applies a partial update to a row the caller can both see and change.
func (r *Resource) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := r.paramID(c)
	if !ok {
		return
	}

	values, ok := r.bindValues(c)
	if !ok {
		return
	}

	row, viewGranted, err := r.visibleRow(c, id)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	granted, err := r.model.Checker.Scopes(ctx, scopes.ActionChange)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if err := r.model.Fields.CheckWrite(granted, values); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if err := r.model.Checker.ScopeChange(ctx, row, values); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	// A body without any declared column is a no-op update.
	if len(values) > 0 {
		if _, err := r.store.UpdateRows(ctx, r.model.Table, values, sq.Eq{"id": id}); err != nil {
			middleware.AbortWithDomainError(c, err)
			return
		}

		row, err = r.store.GetRow(ctx, r.model.Table, r.model.Columns, sq.Eq{"id": id})
		if err != nil {
			middleware.AbortWithDomainError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": r.model.Fields.FilterRead(viewGranted, row)})
}

// Delete removes a row the caller can both see and delete.
func (r *Resource) Delete(c *gin.Context) {
	id, ok := r.paramID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	row, _, err := r.visibleRow(c, id)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if err := r.model.Checker.ScopeDelete(ctx, row); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	if _, err := r.store.DeleteRows(ctx, r.model.Table, sq.Eq{"id": id}); err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// visibleRow loads the row by id through the caller's view predicate and
// returns it along with the granted view scopes.
func (r *Resource) visibleRow(c *gin.Context, id int64) (map[string]any, []scopes.ScopeSlug, error) {
	ctx := c.Request.Context()

	pred, err := r.model.Checker.ScopeView(ctx)
	if err != nil {
		return nil, nil, err
	}

	granted, err := r.model.Checker.Scopes(ctx, scopes.ActionView)
	if err != nil {
		return nil, nil, err
	}

	row, err := r.store.GetRow(ctx, r.model.Table, r.model.Columns, sq.And{sq.Eq{"id": id}, pred})
	if err != nil {
		return nil, nil, err
	}

	return row, granted, nil
}

func (r *Resource) paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errInvalidID)
		return 0, false
	}

	return id, true
}

// bindValues decodes the request body into a column→value map, keeping only
// declared columns. The "id" column is never writable through the body.
func (r *Resource) bindValues(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errInvalidBody)
		return nil, false
	}

	values := make(map[string]any, len(body))

	for _, col := range r.model.Columns {
		if col == "id" {
			continue
		}

		if v, ok := body[col]; ok {
			values[col] = v
		}
	}

	return values, true
}
