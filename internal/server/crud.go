package server

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"akinmueble/internal/cache"
	"akinmueble/internal/middleware"
	"akinmueble/internal/models"
	"akinmueble/internal/repository"
	"akinmueble/internal/security"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// crudRoute describes the generic endpoints of one entity. create, update
// and remove replace the default POST, PATCH/PUT and DELETE handlers when
// set. createAction gates POST and defaults to save.
type crudRoute[T any] struct {
	path         string
	resource     security.Resource
	createAction security.Action
	repo         repository.CRUDRepository[T]
	readOnly     []string
	create       fiber.Handler
	update       fiber.Handler
	remove       fiber.Handler
}

// fieldMap maps JSON field names to columns for T. locked holds the columns
// of read-only fields, which a full replace must leave alone.
type fieldMap struct {
	columns  map[string]string
	writable map[string]string
	locked   []string
}

var fieldMaps sync.Map

func fieldsOf[T any](db *gorm.DB, readOnly []string) (*fieldMap, error) {
	sch, err := schema.Parse(new(T), &fieldMaps, db.NamingStrategy)
	if err != nil {
		return nil, err
	}
	fm := &fieldMap{columns: map[string]string{}, writable: map[string]string{}}
	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		fm.columns[name] = f.DBName
		fm.writable[name] = f.DBName
	}
	for _, name := range append([]string{"id", "createdAt", "updatedAt"}, readOnly...) {
		delete(fm.writable, name)
	}
	for _, name := range readOnly {
		if column, ok := fm.columns[name]; ok {
			fm.locked = append(fm.locked, column)
		}
	}
	return fm, nil
}

// toColumns checks every key of body against the writable fields and returns
// the body keyed by column.
func (fm *fieldMap) toColumns(body map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(body))
	for key, value := range body {
		column, ok := fm.writable[key]
		if !ok {
			return nil, models.NewValidationError("field " + key + " cannot be written")
		}
		fields[column] = value
	}
	return fields, nil
}

// filters turns query parameters naming a field into equality filters.
func (fm *fieldMap) filters(c *fiber.Ctx) map[string]any {
	where := map[string]any{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		if column, ok := fm.columns[string(key)]; ok {
			where[column] = queryValue(string(value))
		}
	})
	return where
}

func queryValue(raw string) any {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// decodeEntity decodes the body into a map for field checks and into T.
func decodeEntity[T any](c *fiber.Ctx, fm *fieldMap) (*T, map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil || raw == nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("request body must be a JSON object"))
		return nil, nil, errResponseWritten
	}
	fields, err := fm.toColumns(raw)
	if err != nil {
		_ = respondError(c, err)
		return nil, nil, errResponseWritten
	}
	entity := new(T)
	if err := json.Unmarshal(c.Body(), entity); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("request body has fields of the wrong type"))
		return nil, nil, errResponseWritten
	}
	return entity, fields, nil
}

func registerCRUD[T any](s *Server, router fiber.Router, r crudRoute[T]) {
	fm, err := fieldsOf[T](s.db, r.readOnly)
	if err != nil {
		middleware.Logger.Error("crud routes not registered",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return
	}

	create := r.create
	if create == nil {
		create = func(c *fiber.Ctx) error {
			entity, _, err := decodeEntity[T](c, fm)
			if err != nil {
				return nil
			}
			if err := r.repo.Create(c.UserContext(), entity); err != nil {
				return respondError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(entity)
		}
	}
	patch, put := r.update, r.update
	if patch == nil {
		patch = func(c *fiber.Ctx) error {
			id, err := parseID(c, "id")
			if err != nil {
				return nil
			}
			_, fields, err := decodeEntity[T](c, fm)
			if err != nil {
				return nil
			}
			entity, err := r.repo.Update(c.UserContext(), id, fields)
			if err != nil {
				return respondError(c, err)
			}
			return c.JSON(entity)
		}
		put = func(c *fiber.Ctx) error {
			id, err := parseID(c, "id")
			if err != nil {
				return nil
			}
			entity, _, err := decodeEntity[T](c, fm)
			if err != nil {
				return nil
			}
			if err := r.repo.Replace(c.UserContext(), id, entity, fm.locked...); err != nil {
				return respondError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		}
	}

	remove := r.remove
	if remove == nil {
		remove = func(c *fiber.Ctx) error {
			id, err := parseID(c, "id")
			if err != nil {
				return nil
			}
			if err := r.repo.Delete(c.UserContext(), id); err != nil {
				return respondError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		}
	}
	createAction := r.createAction
	if createAction == "" {
		createAction = security.ActionSave
	}

	g := router.Group("/" + r.path)
	g.Post("/", s.gate(r.resource, createAction), create)
	g.Get("/", s.gate(r.resource, security.ActionList), func(c *fiber.Ctx) error {
		p := parsePagination(c, defaultPaginationLimit)
		records, total, err := r.repo.List(c.UserContext(), repository.ListOptions{
			Limit:  p.Limit,
			Offset: p.Offset,
			Where:  fm.filters(c),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"records": records, "total": total})
	})
	// Must precede /:id
	g.Get("/count", s.gate(r.resource, security.ActionList), func(c *fiber.Ctx) error {
		total, err := r.repo.Count(c.UserContext(), fm.filters(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"count": total})
	})
	g.Get("/:id", s.gate(r.resource, security.ActionList), func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		entity, err := r.repo.GetByID(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entity)
	})
	g.Patch("/:id", s.gate(r.resource, security.ActionEdit), patch)
	g.Put("/:id", s.gate(r.resource, security.ActionEdit), put)
	g.Delete("/:id", s.gate(r.resource, security.ActionDelete), remove)
}

// setupCRUDRoutes registers the generic endpoints of every entity. Reference
// tables are read through the Redis cache.
func (s *Server) setupCRUDRoutes(app *fiber.App) {
	st := s.store

	registerCRUD(s, app, crudRoute[models.Property]{path: "property", resource: security.ResourceProperty, createAction: security.ActionCreate, repo: s.properties})
	registerCRUD(s, app, crudRoute[models.Request]{
		path:         "request",
		resource:     security.ResourceRequest,
		createAction: security.ActionCreate,
		repo:         st.Requests,
		create:       s.CreateRequest,
		update:       s.EditRequest,
		remove:       s.DeleteRequest,
	})
	registerCRUD(s, app, crudRoute[models.Adviser]{path: "adviser", resource: security.ResourceAdviser, repo: st.Advisers, readOnly: []string{"accepted"}})
	registerCRUD(s, app, crudRoute[models.Client]{path: "client", resource: security.ResourceClient, createAction: security.ActionCreate, repo: st.Clients, create: s.RegisterClient})
	registerCRUD(s, app, crudRoute[models.Guarantor]{path: "guarantor", resource: security.ResourceGuarantor, repo: st.Guarantors})
	registerCRUD(s, app, crudRoute[models.Contract]{path: "contract", resource: security.ResourceContract, createAction: security.ActionCreate, repo: st.Contracts})
	registerCRUD(s, app, crudRoute[models.Photo]{path: "photo", resource: security.ResourcePhoto, repo: st.Photos})
	registerCRUD(s, app, crudRoute[models.GeneralSystemVariables]{path: "general-system-variables", resource: security.ResourceSystemVariables, repo: st.SystemVariables})

	registerCRUD(s, app, crudRoute[models.Department]{
		path: "department", resource: security.ResourceDepartment, createAction: security.ActionCreate,
		repo: cache.NewReferenceRepository(st.Departments, s.redis, "departments"),
	})
	registerCRUD(s, app, crudRoute[models.City]{
		path: "city", resource: security.ResourceCity, createAction: security.ActionCreate,
		repo: cache.NewReferenceRepository(st.Cities, s.redis, "cities"),
	})
	registerCRUD(s, app, crudRoute[models.PropertyType]{
		path: "property-type", resource: security.ResourcePropertyType, createAction: security.ActionCreate,
		repo: cache.NewReferenceRepository(st.PropertyTypes, s.redis, "property_types"),
	})
	registerCRUD(s, app, crudRoute[models.RequestTypeRecord]{
		path: "request-type", resource: security.ResourceRequestType, createAction: security.ActionCreate,
		repo: cache.NewReferenceRepository(st.RequestTypes, s.redis, "request_types"),
	})
	registerCRUD(s, app, crudRoute[models.RequestStatusRecord]{
		path: "request-status", resource: security.ResourceRequestStatus, createAction: security.ActionCreate,
		repo: cache.NewReferenceRepository(st.RequestStatuses, s.redis, "request_statuses"),
	})
}

// listChildren serves GET /<parent>/:id/<children>, 404 when the parent is missing.
func listChildren[P, C any](parent repository.CRUDRepository[P], children repository.CRUDRepository[C], column string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		if _, err := parent.GetByID(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		p := parsePagination(c, maxPaginationLimit)
		records, _, err := children.List(c.UserContext(), repository.ListOptions{
			Limit:  p.Limit,
			Offset: p.Offset,
			Where:  map[string]any{column: id},
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(records)
	}
}

func (s *Server) setupRelationRoutes(app *fiber.App) {
	st := s.store
	app.Get("/property/:id/requests", s.gate(security.ResourceProperty, security.ActionList), s.PropertyRequests)
	app.Get("/property/:id/photos", s.gate(security.ResourceProperty, security.ActionList),
		listChildren[models.Property, models.Photo](st.Properties, st.Photos, "property_id"))
	app.Get("/adviser/:id/requests", s.gate(security.ResourceAdviser, security.ActionList),
		listChildren[models.Adviser, models.Request](st.Advisers, st.Requests, "adviser_id"))
	app.Get("/adviser/:id/properties", s.gate(security.ResourceAdviser, security.ActionList),
		listChildren[models.Adviser, models.Property](st.Advisers, st.Properties, "adviser_id"))
	app.Get("/client/:id/requests", s.gate(security.ResourceClient, security.ActionList),
		listChildren[models.Client, models.Request](st.Clients, st.Requests, "client_id"))
	app.Get("/department/:id/cities", s.gate(security.ResourceDepartment, security.ActionList),
		listChildren[models.Department, models.City](st.Departments, st.Cities, "department_id"))
}
