// Package obrassdk is a standalone Go client for the Gestión de Obras API.
// It depends only on the standard library so it can be vendored into other
// services without dragging the server's dependencies along.
package obrassdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Gestión de Obras server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API prefix,
// e.g. "http://localhost:8080/api".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Timeout:    10 * time.Second,
	}
}

type Departamento struct {
	ID        int64   `json:"id"`
	Nombre    string  `json:"nombreDepartamento"`
	FechaAlta string  `json:"fechaAlta,omitempty"`
	FechaBaja *string `json:"fechaBaja,omitempty"`
}

type Localidad struct {
	ID           int64         `json:"id"`
	Nombre       string        `json:"nombreLocalidad"`
	Departamento *Departamento `json:"departamento,omitempty"`
	FechaAlta    string        `json:"fechaAlta,omitempty"`
	FechaBaja    *string       `json:"fechaBaja,omitempty"`
}

type EstadoObra struct {
	ID        int64   `json:"id"`
	Nombre    string  `json:"nombreEstadoObra"`
	FechaAlta string  `json:"fechaAlta,omitempty"`
	FechaBaja *string `json:"fechaBaja,omitempty"`
}

type Rubro struct {
	ID        int64   `json:"id"`
	Nombre    string  `json:"nombreRubro"`
	FechaAlta string  `json:"fechaAlta,omitempty"`
	FechaBaja *string `json:"fechaBaja,omitempty"`
}

type PlanProyecto struct {
	ID                int64   `json:"id"`
	Nombre            string  `json:"nombrePlanProyecto"`
	Descripcion       string  `json:"descripcionPlanProyecto,omitempty"`
	MesesEstudio      int     `json:"mesesEstudio"`
	InversionEstimada float64 `json:"inversionEstimada"`
	TiempoEstimado    int     `json:"tiempoEstimado"`
	SeEjecuta         bool    `json:"seEjecuta"`
	Prioridad         string  `json:"prioridad"`
	Rubro             *Rubro  `json:"rubro,omitempty"`
	FechaAlta         string  `json:"fechaAlta,omitempty"`
	FechaBaja         *string `json:"fechaBaja,omitempty"`
}

type RiesgoTecnico struct {
	ID                 int64   `json:"id"`
	NroRiesgo          int64   `json:"nroRiesgo"`
	Naturaleza         string  `json:"naturalezaRiesgo"`
	PropuestaSolucion  string  `json:"propuestaSolucion,omitempty"`
	MedidasMitigacion  string  `json:"medidasMitigacion,omitempty"`
	AccionesEjecutadas string  `json:"accionesEjecutadas,omitempty"`
	FechaAlta          string  `json:"fechaAlta,omitempty"`
	FechaBaja          *string `json:"fechaBaja,omitempty"`
}

type ObraRiesgo struct {
	ID            int64          `json:"id"`
	RiesgoTecnico *RiesgoTecnico `json:"riesgoTecnico"`
}

type ObraEstadoObra struct {
	ID              int64       `json:"id"`
	EstadoObra      *EstadoObra `json:"estadoObra"`
	FechaHoraInicio string      `json:"fechaHoraInicio"`
	FechaHoraFin    *string     `json:"fechaHoraFin,omitempty"`
}

type Obra struct {
	ID              int64            `json:"id"`
	NroObra         int64            `json:"nroObra"`
	Nombre          string           `json:"nombreObra"`
	TiempoEjecucion int              `json:"tiempoEjecucion"`
	AnioEjecucion   int              `json:"anioEjecucion"`
	FechaInicio     string           `json:"fechaInicioObra"`
	FechaFin        *string          `json:"fechaFinObra,omitempty"`
	InversionFinal  float64          `json:"inversionFinal"`
	Localidad       *Localidad       `json:"localidad,omitempty"`
	PlanProyecto    *PlanProyecto    `json:"planProyecto,omitempty"`
	ObraRiesgos     []ObraRiesgo     `json:"obraRiesgos"`
	EstadoObras     []ObraEstadoObra `json:"obraEstadoObras"`
	FechaAlta       string           `json:"fechaAlta,omitempty"`
	FechaBaja       *string          `json:"fechaBaja,omitempty"`
}

// EstadoActual returns the open interval of the state history, or nil.
func (o *Obra) EstadoActual() *ObraEstadoObra {
	for i := range o.EstadoObras {
		if o.EstadoObras[i].FechaHoraFin == nil {
			return &o.EstadoObras[i]
		}
	}
	return nil
}

// Editable reports whether the server would accept edits: the obra is active
// and its current state is not the terminal "finalizada".
func (o *Obra) Editable() bool {
	if o.FechaBaja != nil {
		return false
	}
	actual := o.EstadoActual()
	if actual == nil || actual.EstadoObra == nil {
		return true
	}
	return !strings.EqualFold(actual.EstadoObra.Nombre, "finalizada")
}

type DashboardStats struct {
	TotalObras        int64   `json:"totalObras"`
	PlanesActivos     int64   `json:"planesActivos"`
	InversionTotal    float64 `json:"inversionTotal"`
	RiesgosPendientes int64   `json:"riesgosPendientes"`
}

type ObrasPorEstado struct {
	Estado   string `json:"estado"`
	Cantidad int64  `json:"cantidad"`
}

type InversionPorRubro struct {
	Rubro     string  `json:"rubro"`
	Inversion float64 `json:"inversion"`
	Cantidad  int64   `json:"cantidad"`
}

// Page is the listing envelope of the paginated endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RechazoError is a business rejection: the server answered 200 with
// success=false and a motive.
type RechazoError struct {
	Motivo string
}

func (e *RechazoError) Error() string { return e.Motivo }

type respuesta[T any] struct {
	Data    *T     `json:"data"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func doEnvelope[T any](ctx context.Context, c *Client, method, endpoint string, body any) (T, error) {
	var zero T
	var resp respuesta[T]
	if err := c.do(ctx, method, endpoint, body, &resp); err != nil {
		return zero, err
	}
	if !resp.Success {
		return zero, &RechazoError{Motivo: resp.Message}
	}
	if resp.Data == nil {
		return zero, nil
	}
	return *resp.Data, nil
}

func doPage[T any](ctx context.Context, c *Client, endpoint string) (Page[T], error) {
	var p Page[T]
	err := c.do(ctx, http.MethodGet, endpoint, nil, &p)
	return p, err
}

// Departamentos

func (c *Client) Departamentos(ctx context.Context, todas bool) ([]Departamento, error) {
	return doEnvelope[[]Departamento](ctx, c, http.MethodGet, listado("departamentos", todas), nil)
}

func (c *Client) Departamento(ctx context.Context, id int64) (Departamento, error) {
	return doEnvelope[Departamento](ctx, c, http.MethodGet, fmt.Sprintf("departamentos/%d", id), nil)
}

func (c *Client) CrearDepartamento(ctx context.Context, nombre string) (Departamento, error) {
	return doEnvelope[Departamento](ctx, c, http.MethodPost, "departamentos", map[string]any{"nombreDepartamento": nombre})
}

func (c *Client) ActualizarDepartamento(ctx context.Context, id int64, nombre string) (Departamento, error) {
	return doEnvelope[Departamento](ctx, c, http.MethodPut, fmt.Sprintf("departamentos/%d", id), map[string]any{"nombreDepartamento": nombre})
}

func (c *Client) BajaDepartamento(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("departamentos/%d", id), nil)
	return err
}

// LocalidadesDeDepartamento lists the active localidades of one departamento.
func (c *Client) LocalidadesDeDepartamento(ctx context.Context, departamentoID int64) ([]Localidad, error) {
	return doEnvelope[[]Localidad](ctx, c, http.MethodGet, fmt.Sprintf("departamentos/%d/localidades", departamentoID), nil)
}

// SelectorLocalidad filters an already-fetched localidad list down to the
// active ones of the chosen departamento, preserving order. It backs cascade
// selectors that avoid a round trip per departamento change.
func SelectorLocalidad(localidades []Localidad, departamentoID int64) []Localidad {
	res := []Localidad{}
	for _, l := range localidades {
		if l.FechaBaja != nil {
			continue
		}
		if l.Departamento == nil || l.Departamento.ID != departamentoID {
			continue
		}
		res = append(res, l)
	}
	return res
}

// Localidades

func (c *Client) Localidades(ctx context.Context, todas bool) ([]Localidad, error) {
	return doEnvelope[[]Localidad](ctx, c, http.MethodGet, listado("localidades", todas), nil)
}

func (c *Client) Localidad(ctx context.Context, id int64) (Localidad, error) {
	return doEnvelope[Localidad](ctx, c, http.MethodGet, fmt.Sprintf("localidades/%d", id), nil)
}

func (c *Client) CrearLocalidad(ctx context.Context, nombre string, departamentoID int64) (Localidad, error) {
	return doEnvelope[Localidad](ctx, c, http.MethodPost, "localidades",
		map[string]any{"nombreLocalidad": nombre, "departamentoId": departamentoID})
}

func (c *Client) ActualizarLocalidad(ctx context.Context, id int64, nombre string, departamentoID int64) (Localidad, error) {
	return doEnvelope[Localidad](ctx, c, http.MethodPut, fmt.Sprintf("localidades/%d", id),
		map[string]any{"nombreLocalidad": nombre, "departamentoId": departamentoID})
}

func (c *Client) BajaLocalidad(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("localidades/%d", id), nil)
	return err
}

// Estados de obra

func (c *Client) EstadosObra(ctx context.Context, todas bool) ([]EstadoObra, error) {
	return doEnvelope[[]EstadoObra](ctx, c, http.MethodGet, listado("estados-obra", todas), nil)
}

func (c *Client) CrearEstadoObra(ctx context.Context, nombre string) (EstadoObra, error) {
	return doEnvelope[EstadoObra](ctx, c, http.MethodPost, "estados-obra", map[string]any{"nombreEstadoObra": nombre})
}

func (c *Client) ActualizarEstadoObra(ctx context.Context, id int64, nombre string) (EstadoObra, error) {
	return doEnvelope[EstadoObra](ctx, c, http.MethodPut, fmt.Sprintf("estados-obra/%d", id), map[string]any{"nombreEstadoObra": nombre})
}

func (c *Client) BajaEstadoObra(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("estados-obra/%d", id), nil)
	return err
}

// Rubros

func (c *Client) Rubros(ctx context.Context, todas bool) ([]Rubro, error) {
	return doEnvelope[[]Rubro](ctx, c, http.MethodGet, listado("rubros", todas), nil)
}

func (c *Client) CrearRubro(ctx context.Context, nombre string) (Rubro, error) {
	return doEnvelope[Rubro](ctx, c, http.MethodPost, "rubros", map[string]any{"nombreRubro": nombre})
}

func (c *Client) ActualizarRubro(ctx context.Context, id int64, nombre string) (Rubro, error) {
	return doEnvelope[Rubro](ctx, c, http.MethodPut, fmt.Sprintf("rubros/%d", id), map[string]any{"nombreRubro": nombre})
}

func (c *Client) BajaRubro(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("rubros/%d", id), nil)
	return err
}

// Planes

// PlanInput is the creation/update payload of a plan.
type PlanInput struct {
	Nombre            string  `json:"nombrePlanProyecto"`
	Descripcion       string  `json:"descripcionPlanProyecto,omitempty"`
	MesesEstudio      int     `json:"mesesEstudio"`
	InversionEstimada float64 `json:"inversionEstimada"`
	TiempoEstimado    int     `json:"tiempoEstimado"`
	Prioridad         string  `json:"prioridad"`
	RubroID           int64   `json:"rubroId"`
}

func (c *Client) Planes(ctx context.Context, page, size int) (Page[PlanProyecto], error) {
	return doPage[PlanProyecto](ctx, c, fmt.Sprintf("planes?page=%d&size=%d", page, size))
}

func (c *Client) Plan(ctx context.Context, id int64) (PlanProyecto, error) {
	return doEnvelope[PlanProyecto](ctx, c, http.MethodGet, fmt.Sprintf("planes/%d", id), nil)
}

func (c *Client) CrearPlan(ctx context.Context, in PlanInput) (PlanProyecto, error) {
	return doEnvelope[PlanProyecto](ctx, c, http.MethodPost, "planes", in)
}

func (c *Client) ActualizarPlan(ctx context.Context, id int64, in PlanInput) (PlanProyecto, error) {
	return doEnvelope[PlanProyecto](ctx, c, http.MethodPut, fmt.Sprintf("planes/%d", id), in)
}

func (c *Client) BajaPlan(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("planes/%d", id), nil)
	return err
}

// Riesgos

// RiesgoInput is the creation/update payload of a riesgo técnico.
type RiesgoInput struct {
	NroRiesgo          int64  `json:"nroRiesgo"`
	Naturaleza         string `json:"naturalezaRiesgo"`
	PropuestaSolucion  string `json:"propuestaSolucion,omitempty"`
	MedidasMitigacion  string `json:"medidasMitigacion,omitempty"`
	AccionesEjecutadas string `json:"accionesEjecutadas,omitempty"`
}

func (c *Client) Riesgos(ctx context.Context, page, size int) (Page[RiesgoTecnico], error) {
	return doPage[RiesgoTecnico](ctx, c, fmt.Sprintf("riesgos?page=%d&size=%d", page, size))
}

func (c *Client) Riesgo(ctx context.Context, id int64) (RiesgoTecnico, error) {
	return doEnvelope[RiesgoTecnico](ctx, c, http.MethodGet, fmt.Sprintf("riesgos/%d", id), nil)
}

func (c *Client) ExisteNroRiesgo(ctx context.Context, nro int64) (bool, error) {
	out, err := doEnvelope[struct {
		Existe bool `json:"existe"`
	}](ctx, c, http.MethodGet, fmt.Sprintf("riesgos/existe?nro=%d", nro), nil)
	return out.Existe, err
}

func (c *Client) CrearRiesgo(ctx context.Context, in RiesgoInput) (RiesgoTecnico, error) {
	return doEnvelope[RiesgoTecnico](ctx, c, http.MethodPost, "riesgos", in)
}

func (c *Client) ActualizarRiesgo(ctx context.Context, id int64, in RiesgoInput) (RiesgoTecnico, error) {
	return doEnvelope[RiesgoTecnico](ctx, c, http.MethodPut, fmt.Sprintf("riesgos/%d", id), in)
}

func (c *Client) BajaRiesgo(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("riesgos/%d", id), nil)
	return err
}

// Obras

// ObraInput is the creation payload of an obra.
type ObraInput struct {
	NroObra         int64   `json:"nroObra"`
	Nombre          string  `json:"nombreObra"`
	TiempoEjecucion int     `json:"tiempoEjecucion"`
	AnioEjecucion   int     `json:"anioEjecucion"`
	FechaInicio     string  `json:"fechaInicioObra"`
	FechaFin        string  `json:"fechaFinObra,omitempty"`
	InversionFinal  float64 `json:"inversionFinal"`
	LocalidadID     int64   `json:"localidadId"`
	PlanProyectoID  int64   `json:"planProyectoId,omitempty"`
	RiesgoIDs       []int64 `json:"riesgoIds,omitempty"`
}

// ObraUpdate accumulates a partial update payload: only the fields that were
// set travel on the wire, so untouched fields keep their server values.
type ObraUpdate map[string]any

func NuevaActualizacion() ObraUpdate { return ObraUpdate{} }

func (u ObraUpdate) NroObra(v int64) ObraUpdate          { u["nroObra"] = v; return u }
func (u ObraUpdate) Nombre(v string) ObraUpdate          { u["nombreObra"] = v; return u }
func (u ObraUpdate) TiempoEjecucion(v int) ObraUpdate    { u["tiempoEjecucion"] = v; return u }
func (u ObraUpdate) AnioEjecucion(v int) ObraUpdate      { u["anioEjecucion"] = v; return u }
func (u ObraUpdate) FechaInicio(v string) ObraUpdate     { u["fechaInicioObra"] = v; return u }
func (u ObraUpdate) FechaFin(v string) ObraUpdate        { u["fechaFinObra"] = v; return u }
func (u ObraUpdate) SinFechaFin() ObraUpdate             { u["fechaFinObra"] = nil; return u }
func (u ObraUpdate) InversionFinal(v float64) ObraUpdate { u["inversionFinal"] = v; return u }
func (u ObraUpdate) Localidad(id int64) ObraUpdate       { u["localidadId"] = id; return u }
func (u ObraUpdate) Plan(id int64) ObraUpdate            { u["planProyectoId"] = id; return u }
func (u ObraUpdate) SinPlan() ObraUpdate                 { u["planProyectoId"] = nil; return u }
func (u ObraUpdate) Riesgos(ids []int64) ObraUpdate      { u["riesgoIds"] = ids; return u }

func (c *Client) Obras(ctx context.Context, page, size int, todas bool) (Page[Obra], error) {
	endpoint := fmt.Sprintf("obras?page=%d&size=%d", page, size)
	if todas {
		endpoint += "&todas=true"
	}
	return doPage[Obra](ctx, c, endpoint)
}

func (c *Client) Obra(ctx context.Context, id int64) (Obra, error) {
	return doEnvelope[Obra](ctx, c, http.MethodGet, fmt.Sprintf("obras/%d", id), nil)
}

func (c *Client) ExisteNroObra(ctx context.Context, nro int64) (bool, error) {
	out, err := doEnvelope[struct {
		Existe bool `json:"existe"`
	}](ctx, c, http.MethodGet, fmt.Sprintf("obras/existe?nro=%d", nro), nil)
	return out.Existe, err
}

func (c *Client) CrearObra(ctx context.Context, in ObraInput) (Obra, error) {
	return doEnvelope[Obra](ctx, c, http.MethodPost, "obras", in)
}

func (c *Client) ActualizarObra(ctx context.Context, id int64, update ObraUpdate) (Obra, error) {
	return doEnvelope[Obra](ctx, c, http.MethodPut, fmt.Sprintf("obras/%d", id), update)
}

// CambiarEstado moves the obra to the given estado. When the obra already
// occupies it the call is skipped client-side and the current obra returns
// unchanged.
func (c *Client) CambiarEstado(ctx context.Context, obraID, estadoID int64) (Obra, error) {
	o, err := c.Obra(ctx, obraID)
	if err != nil {
		return o, err
	}
	if actual := o.EstadoActual(); actual != nil && actual.EstadoObra != nil && actual.EstadoObra.ID == estadoID {
		return o, nil
	}
	return doEnvelope[Obra](ctx, c, http.MethodPut, fmt.Sprintf("obras/%d/estado", obraID),
		map[string]any{"estadoId": estadoID})
}

func (c *Client) BajaObra(ctx context.Context, id int64) error {
	_, err := doEnvelope[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("obras/%d", id), nil)
	return err
}

// Dashboard

func (c *Client) DashboardStats(ctx context.Context) (DashboardStats, error) {
	return doEnvelope[DashboardStats](ctx, c, http.MethodGet, "dashboard/stats", nil)
}

func (c *Client) ObrasPorEstado(ctx context.Context) ([]ObrasPorEstado, error) {
	return doEnvelope[[]ObrasPorEstado](ctx, c, http.MethodGet, "dashboard/obras-por-estado", nil)
}

func (c *Client) InversionPorRubro(ctx context.Context) ([]InversionPorRubro, error) {
	return doEnvelope[[]InversionPorRubro](ctx, c, http.MethodGet, "dashboard/inversion-por-rubro", nil)
}

func listado(recurso string, todas bool) string {
	if todas {
		return recurso + "?todas=true"
	}
	return recurso
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	// zero-value Client: fall back locally, never mutate the shared struct
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	if _, err := url.Parse(u); err != nil {
		return err
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
