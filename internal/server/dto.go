package server

import (
	"gestionobras/internal/domain"
)

// ApiResponse is the envelope of every non-paginated endpoint. Business
// rejections travel inside it with success=false and an HTTP 200, so clients
// distinguish "the rule said no" from transport failures.
type ApiResponse[T any] struct {
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Success bool   `json:"success"`
}

// PaginatedResponse mirrors the page envelope of the listing endpoints.
type PaginatedResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

type CrearDepartamentoRequest struct {
	Nombre string `json:"nombreDepartamento" minLength:"1"`
}

type CrearLocalidadRequest struct {
	Nombre         string `json:"nombreLocalidad" minLength:"1"`
	DepartamentoID int64  `json:"departamentoId"`
}

type CrearEstadoObraRequest struct {
	Nombre string `json:"nombreEstadoObra" minLength:"1"`
}

type CrearRubroRequest struct {
	Nombre string `json:"nombreRubro" minLength:"1"`
}

type PlanRequest struct {
	Nombre            string           `json:"nombrePlanProyecto" minLength:"1"`
	Descripcion       string           `json:"descripcionPlanProyecto,omitempty"`
	MesesEstudio      int              `json:"mesesEstudio" minimum:"1"`
	InversionEstimada float64          `json:"inversionEstimada" exclusiveMinimum:"0"`
	TiempoEstimado    int              `json:"tiempoEstimado" minimum:"1"`
	Prioridad         domain.Prioridad `json:"prioridad" enum:"UNO,DOS,TRES,CUATRO"`
	RubroID           int64            `json:"rubroId"`
}

type RiesgoRequest struct {
	NroRiesgo          int64  `json:"nroRiesgo" minimum:"1"`
	Naturaleza         string `json:"naturalezaRiesgo" minLength:"1"`
	PropuestaSolucion  string `json:"propuestaSolucion,omitempty"`
	MedidasMitigacion  string `json:"medidasMitigacion,omitempty"`
	AccionesEjecutadas string `json:"accionesEjecutadas,omitempty"`
}

type CrearObraRequest struct {
	NroObra         int64   `json:"nroObra" minimum:"1"`
	Nombre          string  `json:"nombreObra" minLength:"1"`
	TiempoEjecucion int     `json:"tiempoEjecucion" minimum:"1"`
	AnioEjecucion   int     `json:"anioEjecucion" minimum:"2000"`
	FechaInicio     string  `json:"fechaInicioObra" minLength:"1"`
	FechaFin        string  `json:"fechaFinObra,omitempty"`
	InversionFinal  float64 `json:"inversionFinal" exclusiveMinimum:"0"`
	LocalidadID     int64   `json:"localidadId"`
	PlanProyectoID  int64   `json:"planProyectoId,omitempty"`
	RiesgoIDs       []int64 `json:"riesgoIds,omitempty"`
}

// ActualizarObraRequest is the partial-update payload. Fields absent from the
// body leave the obra unchanged; fechaFinObra and planProyectoId accept an
// explicit null to clear.
type ActualizarObraRequest struct {
	NroObra         domain.Optional[int64]   `json:"nroObra,omitempty"`
	Nombre          domain.Optional[string]  `json:"nombreObra,omitempty"`
	TiempoEjecucion domain.Optional[int]     `json:"tiempoEjecucion,omitempty"`
	AnioEjecucion   domain.Optional[int]     `json:"anioEjecucion,omitempty"`
	FechaInicio     domain.Optional[string]  `json:"fechaInicioObra,omitempty"`
	FechaFin        domain.Optional[string]  `json:"fechaFinObra,omitempty"`
	InversionFinal  domain.Optional[float64] `json:"inversionFinal,omitempty"`
	LocalidadID     domain.Optional[int64]   `json:"localidadId,omitempty"`
	PlanProyectoID  domain.Optional[int64]   `json:"planProyectoId,omitempty"`
	RiesgoIDs       domain.Optional[[]int64] `json:"riesgoIds,omitempty"`
}

type CambiarEstadoRequest struct {
	EstadoID int64 `json:"estadoId"`
}

type ExisteResponse struct {
	Existe bool `json:"existe"`
}
