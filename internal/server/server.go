// Package server exposes the REST API. Every domain endpoint answers 200
// with the ApiResponse envelope; a business rejection is success=false with
// the motive as message, never an HTTP error status.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"gestionobras/internal/domain"
	"gestionobras/internal/engine"
	"gestionobras/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

// New returns an HTTP handler exposing the Gestión de Obras API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	hcfg := huma.DefaultConfig("Gestión de Obras API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerSalud(group)
	registerDepartamentos(group, cfg.Engine)
	registerLocalidades(group, cfg.Engine)
	registerEstadosObra(group, cfg.Engine)
	registerRubros(group, cfg.Engine)
	registerPlanes(group, cfg.Engine)
	registerRiesgos(group, cfg.Engine)
	registerObras(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerEventos(group, cfg.Engine)

	return router, nil
}

// requestID tags every request, echoing an inbound X-Request-Id when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type envelope[T any] struct {
	Body ApiResponse[T]
}

func exito[T any](data T, message string) *envelope[T] {
	return &envelope[T]{Body: ApiResponse[T]{Data: &data, Message: message, Success: true}}
}

// fallo converts a business rejection or a missing record into the 200
// success=false envelope. Anything else surfaces as a 500.
func fallo[T any](err error) (*envelope[T], error) {
	var rech engine.Rechazo
	if errors.As(err, &rech) {
		return &envelope[T]{Body: ApiResponse[T]{Message: rech.Motivo, Success: false}}, nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return &envelope[T]{Body: ApiResponse[T]{Message: "Not found", Success: false}}, nil
	}
	return nil, huma.Error500InternalServerError("internal error", err)
}

type pageEnvelope[T any] struct {
	Body PaginatedResponse[T]
}

func paginaResponse[T any](p repo.Pagina[T], page, size int) *pageEnvelope[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((p.Total + int64(size) - 1) / int64(size))
	}
	return &pageEnvelope[T]{Body: PaginatedResponse[T]{
		Content:       items,
		Page:          page,
		Size:          size,
		TotalElements: p.Total,
		TotalPages:    totalPages,
	}}
}

type IDPath struct {
	ID int64 `path:"id"`
}

type listQuery struct {
	Todas bool `query:"todas"`
}

type pageQuery struct {
	Page int `query:"page" minimum:"0"`
	Size int `query:"size" minimum:"0"`
}

func registerSalud(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "salud",
		Method:      http.MethodGet,
		Path:        "/salud",
		Summary:     "Estado del servicio",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string
	}, error) {
		return &struct {
			Body map[string]string
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDepartamentos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-departamentos",
		Method:      http.MethodGet,
		Path:        "/departamentos",
		Summary:     "Listar departamentos",
	}, func(ctx context.Context, input *listQuery) (*envelope[[]domain.Departamento], error) {
		items, err := e.ListDepartamentos(ctx, input.Todas)
		if err != nil {
			return fallo[[]domain.Departamento](err)
		}
		if items == nil {
			items = []domain.Departamento{}
		}
		return exito(items, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-departamento",
		Method:      http.MethodGet,
		Path:        "/departamentos/{id}",
		Summary:     "Obtener departamento",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.Departamento], error) {
		d, err := e.GetDepartamento(ctx, input.ID)
		if err != nil {
			return fallo[domain.Departamento](err)
		}
		return exito(d, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listar-localidades-de-departamento",
		Method:      http.MethodGet,
		Path:        "/departamentos/{id}/localidades",
		Summary:     "Localidades activas de un departamento",
	}, func(ctx context.Context, input *IDPath) (*envelope[[]domain.Localidad], error) {
		items, err := e.ListLocalidadesPorDepartamento(ctx, input.ID)
		if err != nil {
			return fallo[[]domain.Localidad](err)
		}
		if items == nil {
			items = []domain.Localidad{}
		}
		return exito(items, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-departamento",
		Method:      http.MethodPost,
		Path:        "/departamentos",
		Summary:     "Crear departamento",
	}, func(ctx context.Context, input *struct {
		Body CrearDepartamentoRequest
	}) (*envelope[domain.Departamento], error) {
		d, err := e.CrearDepartamento(ctx, input.Body.Nombre)
		if err != nil {
			return fallo[domain.Departamento](err)
		}
		return exito(d, "Departamento creado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-departamento",
		Method:      http.MethodPut,
		Path:        "/departamentos/{id}",
		Summary:     "Actualizar departamento",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CrearDepartamentoRequest
	}) (*envelope[domain.Departamento], error) {
		d, err := e.ActualizarDepartamento(ctx, input.ID, input.Body.Nombre)
		if err != nil {
			return fallo[domain.Departamento](err)
		}
		return exito(d, "Departamento actualizado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-departamento",
		Method:      http.MethodDelete,
		Path:        "/departamentos/{id}",
		Summary:     "Dar de baja un departamento",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaDepartamento(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Departamento eliminado correctamente", Success: true}}, nil
	})
}

func registerLocalidades(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-localidades",
		Method:      http.MethodGet,
		Path:        "/localidades",
		Summary:     "Listar localidades",
	}, func(ctx context.Context, input *listQuery) (*envelope[[]domain.Localidad], error) {
		items, err := e.ListLocalidades(ctx, input.Todas)
		if err != nil {
			return fallo[[]domain.Localidad](err)
		}
		if items == nil {
			items = []domain.Localidad{}
		}
		return exito(items, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-localidad",
		Method:      http.MethodGet,
		Path:        "/localidades/{id}",
		Summary:     "Obtener localidad",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.Localidad], error) {
		l, err := e.GetLocalidad(ctx, input.ID)
		if err != nil {
			return fallo[domain.Localidad](err)
		}
		return exito(l, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-localidad",
		Method:      http.MethodPost,
		Path:        "/localidades",
		Summary:     "Crear localidad",
	}, func(ctx context.Context, input *struct {
		Body CrearLocalidadRequest
	}) (*envelope[domain.Localidad], error) {
		l, err := e.CrearLocalidad(ctx, input.Body.Nombre, input.Body.DepartamentoID)
		if err != nil {
			return fallo[domain.Localidad](err)
		}
		return exito(l, "Localidad creada correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-localidad",
		Method:      http.MethodPut,
		Path:        "/localidades/{id}",
		Summary:     "Actualizar localidad",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CrearLocalidadRequest
	}) (*envelope[domain.Localidad], error) {
		l, err := e.ActualizarLocalidad(ctx, input.ID, input.Body.Nombre, input.Body.DepartamentoID)
		if err != nil {
			return fallo[domain.Localidad](err)
		}
		return exito(l, "Localidad actualizada correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-localidad",
		Method:      http.MethodDelete,
		Path:        "/localidades/{id}",
		Summary:     "Dar de baja una localidad",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaLocalidad(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Localidad eliminada correctamente", Success: true}}, nil
	})
}

func registerEstadosObra(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-estados-obra",
		Method:      http.MethodGet,
		Path:        "/estados-obra",
		Summary:     "Listar estados de obra",
	}, func(ctx context.Context, input *listQuery) (*envelope[[]domain.EstadoObra], error) {
		items, err := e.ListEstadosObra(ctx, input.Todas)
		if err != nil {
			return fallo[[]domain.EstadoObra](err)
		}
		if items == nil {
			items = []domain.EstadoObra{}
		}
		return exito(items, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-estado-obra",
		Method:      http.MethodGet,
		Path:        "/estados-obra/{id}",
		Summary:     "Obtener estado de obra",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.EstadoObra], error) {
		est, err := e.GetEstadoObra(ctx, input.ID)
		if err != nil {
			return fallo[domain.EstadoObra](err)
		}
		return exito(est, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-estado-obra",
		Method:      http.MethodPost,
		Path:        "/estados-obra",
		Summary:     "Crear estado de obra",
	}, func(ctx context.Context, input *struct {
		Body CrearEstadoObraRequest
	}) (*envelope[domain.EstadoObra], error) {
		est, err := e.CrearEstadoObra(ctx, input.Body.Nombre)
		if err != nil {
			return fallo[domain.EstadoObra](err)
		}
		return exito(est, "Estado creado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-estado-obra",
		Method:      http.MethodPut,
		Path:        "/estados-obra/{id}",
		Summary:     "Actualizar estado de obra",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CrearEstadoObraRequest
	}) (*envelope[domain.EstadoObra], error) {
		est, err := e.ActualizarEstadoObra(ctx, input.ID, input.Body.Nombre)
		if err != nil {
			return fallo[domain.EstadoObra](err)
		}
		return exito(est, "Estado actualizado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-estado-obra",
		Method:      http.MethodDelete,
		Path:        "/estados-obra/{id}",
		Summary:     "Dar de baja un estado de obra",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaEstadoObra(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Estado eliminado correctamente", Success: true}}, nil
	})
}

func registerRubros(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-rubros",
		Method:      http.MethodGet,
		Path:        "/rubros",
		Summary:     "Listar rubros",
	}, func(ctx context.Context, input *listQuery) (*envelope[[]domain.Rubro], error) {
		items, err := e.ListRubros(ctx, input.Todas)
		if err != nil {
			return fallo[[]domain.Rubro](err)
		}
		if items == nil {
			items = []domain.Rubro{}
		}
		return exito(items, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-rubro",
		Method:      http.MethodGet,
		Path:        "/rubros/{id}",
		Summary:     "Obtener rubro",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.Rubro], error) {
		rb, err := e.GetRubro(ctx, input.ID)
		if err != nil {
			return fallo[domain.Rubro](err)
		}
		return exito(rb, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-rubro",
		Method:      http.MethodPost,
		Path:        "/rubros",
		Summary:     "Crear rubro",
	}, func(ctx context.Context, input *struct {
		Body CrearRubroRequest
	}) (*envelope[domain.Rubro], error) {
		rb, err := e.CrearRubro(ctx, input.Body.Nombre)
		if err != nil {
			return fallo[domain.Rubro](err)
		}
		return exito(rb, "Rubro creado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-rubro",
		Method:      http.MethodPut,
		Path:        "/rubros/{id}",
		Summary:     "Actualizar rubro",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CrearRubroRequest
	}) (*envelope[domain.Rubro], error) {
		rb, err := e.ActualizarRubro(ctx, input.ID, input.Body.Nombre)
		if err != nil {
			return fallo[domain.Rubro](err)
		}
		return exito(rb, "Rubro actualizado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-rubro",
		Method:      http.MethodDelete,
		Path:        "/rubros/{id}",
		Summary:     "Dar de baja un rubro",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaRubro(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Rubro eliminado correctamente", Success: true}}, nil
	})
}

func registerPlanes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-planes",
		Method:      http.MethodGet,
		Path:        "/planes",
		Summary:     "Listar planes de proyecto",
	}, func(ctx context.Context, input *pageQuery) (*pageEnvelope[domain.PlanProyecto], error) {
		p, err := e.ListPlanes(ctx, input.Page, input.Size)
		if err != nil {
			return nil, huma.Error500InternalServerError("internal error", err)
		}
		_, size := normalizarPagina(e, input.Page, input.Size)
		return paginaResponse(p, input.Page, size), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-plan",
		Method:      http.MethodGet,
		Path:        "/planes/{id}",
		Summary:     "Obtener plan de proyecto",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.PlanProyecto], error) {
		p, err := e.GetPlan(ctx, input.ID)
		if err != nil {
			return fallo[domain.PlanProyecto](err)
		}
		return exito(p, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-plan",
		Method:      http.MethodPost,
		Path:        "/planes",
		Summary:     "Crear plan de proyecto",
	}, func(ctx context.Context, input *struct {
		Body PlanRequest
	}) (*envelope[domain.PlanProyecto], error) {
		p, err := e.CrearPlan(ctx, planOptions(input.Body))
		if err != nil {
			return fallo[domain.PlanProyecto](err)
		}
		return exito(p, "Plan creado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-plan",
		Method:      http.MethodPut,
		Path:        "/planes/{id}",
		Summary:     "Actualizar plan de proyecto",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body PlanRequest
	}) (*envelope[domain.PlanProyecto], error) {
		p, err := e.ActualizarPlan(ctx, input.ID, planOptions(input.Body))
		if err != nil {
			return fallo[domain.PlanProyecto](err)
		}
		return exito(p, "Plan actualizado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-plan",
		Method:      http.MethodDelete,
		Path:        "/planes/{id}",
		Summary:     "Dar de baja un plan de proyecto",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaPlan(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Plan eliminado correctamente", Success: true}}, nil
	})
}

func planOptions(b PlanRequest) engine.PlanOptions {
	return engine.PlanOptions{
		Nombre:            b.Nombre,
		Descripcion:       b.Descripcion,
		MesesEstudio:      b.MesesEstudio,
		InversionEstimada: b.InversionEstimada,
		TiempoEstimado:    b.TiempoEstimado,
		Prioridad:         b.Prioridad,
		RubroID:           b.RubroID,
	}
}

func registerRiesgos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-riesgos",
		Method:      http.MethodGet,
		Path:        "/riesgos",
		Summary:     "Listar riesgos técnicos",
	}, func(ctx context.Context, input *pageQuery) (*pageEnvelope[domain.RiesgoTecnico], error) {
		p, err := e.ListRiesgos(ctx, input.Page, input.Size)
		if err != nil {
			return nil, huma.Error500InternalServerError("internal error", err)
		}
		_, size := normalizarPagina(e, input.Page, input.Size)
		return paginaResponse(p, input.Page, size), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "existe-nro-riesgo",
		Method:      http.MethodGet,
		Path:        "/riesgos/existe",
		Summary:     "Verificar si un número de riesgo ya está en uso",
	}, func(ctx context.Context, input *struct {
		Nro int64 `query:"nro" minimum:"1"`
	}) (*envelope[ExisteResponse], error) {
		existe, err := e.ExisteNroRiesgo(ctx, input.Nro)
		if err != nil {
			return fallo[ExisteResponse](err)
		}
		return exito(ExisteResponse{Existe: existe}, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-riesgo",
		Method:      http.MethodGet,
		Path:        "/riesgos/{id}",
		Summary:     "Obtener riesgo técnico",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.RiesgoTecnico], error) {
		rt, err := e.GetRiesgo(ctx, input.ID)
		if err != nil {
			return fallo[domain.RiesgoTecnico](err)
		}
		return exito(rt, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-riesgo",
		Method:      http.MethodPost,
		Path:        "/riesgos",
		Summary:     "Crear riesgo técnico",
	}, func(ctx context.Context, input *struct {
		Body RiesgoRequest
	}) (*envelope[domain.RiesgoTecnico], error) {
		rt, err := e.CrearRiesgo(ctx, riesgoOptions(input.Body))
		if err != nil {
			return fallo[domain.RiesgoTecnico](err)
		}
		return exito(rt, "Riesgo creado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-riesgo",
		Method:      http.MethodPut,
		Path:        "/riesgos/{id}",
		Summary:     "Actualizar riesgo técnico",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body RiesgoRequest
	}) (*envelope[domain.RiesgoTecnico], error) {
		rt, err := e.ActualizarRiesgo(ctx, input.ID, riesgoOptions(input.Body))
		if err != nil {
			return fallo[domain.RiesgoTecnico](err)
		}
		return exito(rt, "Riesgo actualizado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-riesgo",
		Method:      http.MethodDelete,
		Path:        "/riesgos/{id}",
		Summary:     "Dar de baja un riesgo técnico",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaRiesgo(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Riesgo eliminado correctamente", Success: true}}, nil
	})
}

func riesgoOptions(b RiesgoRequest) engine.RiesgoOptions {
	return engine.RiesgoOptions{
		NroRiesgo:          b.NroRiesgo,
		Naturaleza:         b.Naturaleza,
		PropuestaSolucion:  b.PropuestaSolucion,
		MedidasMitigacion:  b.MedidasMitigacion,
		AccionesEjecutadas: b.AccionesEjecutadas,
	}
}

func registerObras(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-obras",
		Method:      http.MethodGet,
		Path:        "/obras",
		Summary:     "Listar obras",
	}, func(ctx context.Context, input *struct {
		pageQuery
		Todas bool `query:"todas"`
	}) (*pageEnvelope[domain.Obra], error) {
		p, err := e.ListObras(ctx, input.Page, input.Size, input.Todas)
		if err != nil {
			return nil, huma.Error500InternalServerError("internal error", err)
		}
		_, size := normalizarPagina(e, input.Page, input.Size)
		return paginaResponse(p, input.Page, size), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "existe-nro-obra",
		Method:      http.MethodGet,
		Path:        "/obras/existe",
		Summary:     "Verificar si un número de obra ya está en uso",
	}, func(ctx context.Context, input *struct {
		Nro int64 `query:"nro" minimum:"1"`
	}) (*envelope[ExisteResponse], error) {
		existe, err := e.ExisteNroObra(ctx, input.Nro)
		if err != nil {
			return fallo[ExisteResponse](err)
		}
		return exito(ExisteResponse{Existe: existe}, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obtener-obra",
		Method:      http.MethodGet,
		Path:        "/obras/{id}",
		Summary:     "Obtener obra",
	}, func(ctx context.Context, input *IDPath) (*envelope[domain.Obra], error) {
		o, err := e.GetObra(ctx, input.ID)
		if err != nil {
			return fallo[domain.Obra](err)
		}
		return exito(o, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "crear-obra",
		Method:      http.MethodPost,
		Path:        "/obras",
		Summary:     "Crear obra",
	}, func(ctx context.Context, input *struct {
		Body CrearObraRequest
	}) (*envelope[domain.Obra], error) {
		o, err := e.CrearObra(ctx, engine.ObraCreateOptions{
			NroObra:         input.Body.NroObra,
			Nombre:          input.Body.Nombre,
			TiempoEjecucion: input.Body.TiempoEjecucion,
			AnioEjecucion:   input.Body.AnioEjecucion,
			FechaInicio:     input.Body.FechaInicio,
			FechaFin:        input.Body.FechaFin,
			InversionFinal:  input.Body.InversionFinal,
			LocalidadID:     input.Body.LocalidadID,
			PlanProyectoID:  input.Body.PlanProyectoID,
			RiesgoIDs:       input.Body.RiesgoIDs,
		})
		if err != nil {
			return fallo[domain.Obra](err)
		}
		return exito(o, "Obra creada correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "actualizar-obra",
		Method:      http.MethodPut,
		Path:        "/obras/{id}",
		Summary:     "Actualizar obra (parcial)",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body ActualizarObraRequest
	}) (*envelope[domain.Obra], error) {
		o, err := e.ActualizarObra(ctx, input.ID, engine.ObraUpdateOptions{
			NroObra:         input.Body.NroObra,
			Nombre:          input.Body.Nombre,
			TiempoEjecucion: input.Body.TiempoEjecucion,
			AnioEjecucion:   input.Body.AnioEjecucion,
			FechaInicio:     input.Body.FechaInicio,
			FechaFin:        input.Body.FechaFin,
			InversionFinal:  input.Body.InversionFinal,
			LocalidadID:     input.Body.LocalidadID,
			PlanProyectoID:  input.Body.PlanProyectoID,
			RiesgoIDs:       input.Body.RiesgoIDs,
		})
		if err != nil {
			return fallo[domain.Obra](err)
		}
		return exito(o, "Obra actualizada correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cambiar-estado-obra",
		Method:      http.MethodPut,
		Path:        "/obras/{id}/estado",
		Summary:     "Cambiar el estado de una obra",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CambiarEstadoRequest
	}) (*envelope[domain.Obra], error) {
		o, err := e.CambiarEstado(ctx, input.ID, input.Body.EstadoID)
		if err != nil {
			return fallo[domain.Obra](err)
		}
		return exito(o, "Estado actualizado correctamente"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "baja-obra",
		Method:      http.MethodDelete,
		Path:        "/obras/{id}",
		Summary:     "Dar de baja una obra",
	}, func(ctx context.Context, input *IDPath) (*envelope[struct{}], error) {
		if err := e.BajaObra(ctx, input.ID); err != nil {
			return fallo[struct{}](err)
		}
		return &envelope[struct{}]{Body: ApiResponse[struct{}]{Message: "Obra eliminada correctamente", Success: true}}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-stats",
		Method:      http.MethodGet,
		Path:        "/dashboard/stats",
		Summary:     "Indicadores generales",
	}, func(ctx context.Context, _ *struct{}) (*envelope[domain.DashboardStats], error) {
		s, err := e.DashboardStats(ctx)
		if err != nil {
			return fallo[domain.DashboardStats](err)
		}
		return exito(s, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-obras-por-estado",
		Method:      http.MethodGet,
		Path:        "/dashboard/obras-por-estado",
		Summary:     "Obras activas agrupadas por estado actual",
	}, func(ctx context.Context, _ *struct{}) (*envelope[[]domain.ObrasPorEstado], error) {
		g, err := e.ObrasPorEstado(ctx)
		if err != nil {
			return fallo[[]domain.ObrasPorEstado](err)
		}
		return exito(g, ""), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-inversion-por-rubro",
		Method:      http.MethodGet,
		Path:        "/dashboard/inversion-por-rubro",
		Summary:     "Inversión de obras activas agrupada por rubro",
	}, func(ctx context.Context, _ *struct{}) (*envelope[[]domain.InversionPorRubro], error) {
		g, err := e.InversionPorRubro(ctx)
		if err != nil {
			return fallo[[]domain.InversionPorRubro](err)
		}
		return exito(g, ""), nil
	})
}

func registerEventos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listar-eventos",
		Method:      http.MethodGet,
		Path:        "/eventos",
		Summary:     "Listar eventos de auditoría",
	}, func(ctx context.Context, input *struct {
		Limit     int    `query:"limit" minimum:"0"`
		Entidad   string `query:"entidad"`
		EntidadID int64  `query:"entidadId" minimum:"0"`
	}) (*envelope[[]repo.Evento], error) {
		items, err := e.ListEventos(ctx, input.Limit, input.Entidad, input.EntidadID)
		if err != nil {
			return fallo[[]repo.Evento](err)
		}
		if items == nil {
			items = []repo.Evento{}
		}
		return exito(items, ""), nil
	})
}

// normalizarPagina mirrors the engine's clamping so the envelope echoes the
// size that was actually applied.
func normalizarPagina(e engine.Engine, page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	def, max := 10, 100
	if e.Config != nil {
		def, max = e.Config.Paginacion.Size, e.Config.Paginacion.MaxSize
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}
