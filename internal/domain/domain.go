// Package domain holds the entities of the public-works registry. Wire names
// are the Spanish field names of the REST contract; timestamps are RFC3339
// strings and a non-nil FechaBaja marks a record as retired (baja) without
// removing it.
package domain

import "strings"

// EstadoFinalizada is the terminal state name. An obra whose open state
// interval carries this name (case-insensitive) rejects edits and further
// transitions.
const EstadoFinalizada = "finalizada"

type Departamento struct {
	ID        int64   `json:"id,omitempty"`
	Nombre    string  `json:"nombreDepartamento"`
	FechaAlta string  `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja *string `json:"fechaBaja,omitempty" format:"date-time"`
}

type Localidad struct {
	ID           int64         `json:"id,omitempty"`
	Nombre       string        `json:"nombreLocalidad"`
	Departamento *Departamento `json:"departamento,omitempty"`
	FechaAlta    string        `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja    *string       `json:"fechaBaja,omitempty" format:"date-time"`
}

type EstadoObra struct {
	ID        int64   `json:"id,omitempty"`
	Nombre    string  `json:"nombreEstadoObra"`
	FechaAlta string  `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja *string `json:"fechaBaja,omitempty" format:"date-time"`
}

type Rubro struct {
	ID        int64   `json:"id,omitempty"`
	Nombre    string  `json:"nombreRubro"`
	FechaAlta string  `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja *string `json:"fechaBaja,omitempty" format:"date-time"`
}

// Prioridad is the ordinal priority of a plan, UNO being the highest.
type Prioridad string

const (
	PrioridadUno    Prioridad = "UNO"
	PrioridadDos    Prioridad = "DOS"
	PrioridadTres   Prioridad = "TRES"
	PrioridadCuatro Prioridad = "CUATRO"
)

func (p Prioridad) Valida() bool {
	switch p {
	case PrioridadUno, PrioridadDos, PrioridadTres, PrioridadCuatro:
		return true
	}
	return false
}

type PlanProyecto struct {
	ID                int64     `json:"id,omitempty"`
	Nombre            string    `json:"nombrePlanProyecto"`
	Descripcion       string    `json:"descripcionPlanProyecto,omitempty"`
	MesesEstudio      int       `json:"mesesEstudio"`
	InversionEstimada float64   `json:"inversionEstimada"`
	TiempoEstimado    int       `json:"tiempoEstimado"`
	SeEjecuta         bool      `json:"seEjecuta"`
	Prioridad         Prioridad `json:"prioridad" enum:"UNO,DOS,TRES,CUATRO"`
	Rubro             *Rubro    `json:"rubro,omitempty"`
	FechaAlta         string    `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja         *string   `json:"fechaBaja,omitempty" format:"date-time"`
}

type RiesgoTecnico struct {
	ID                 int64   `json:"id,omitempty"`
	NroRiesgo          int64   `json:"nroRiesgo"`
	Naturaleza         string  `json:"naturalezaRiesgo"`
	PropuestaSolucion  string  `json:"propuestaSolucion,omitempty"`
	MedidasMitigacion  string  `json:"medidasMitigacion,omitempty"`
	AccionesEjecutadas string  `json:"accionesEjecutadas,omitempty"`
	FechaAlta          string  `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja          *string `json:"fechaBaja,omitempty" format:"date-time"`
}

// ObraRiesgo joins an obra with a riesgo técnico. The obra side is implicit,
// the row is always serialized inside its owning obra.
type ObraRiesgo struct {
	ID            int64          `json:"id,omitempty"`
	RiesgoTecnico *RiesgoTecnico `json:"riesgoTecnico"`
}

// ObraEstadoObra is one interval of an obra's state history. FechaHoraFin nil
// means the interval is open, i.e. the obra currently occupies that state.
type ObraEstadoObra struct {
	ID              int64       `json:"id,omitempty"`
	EstadoObra      *EstadoObra `json:"estadoObra"`
	FechaHoraInicio string      `json:"fechaHoraInicio" format:"date-time"`
	FechaHoraFin    *string     `json:"fechaHoraFin,omitempty" format:"date-time"`
}

// Obra is the aggregate root: it references a localidad, optionally a plan,
// zero or more riesgos and owns its chronological state history.
type Obra struct {
	ID              int64            `json:"id,omitempty"`
	NroObra         int64            `json:"nroObra"`
	Nombre          string           `json:"nombreObra"`
	TiempoEjecucion int              `json:"tiempoEjecucion"`
	AnioEjecucion   int              `json:"anioEjecucion"`
	FechaInicio     string           `json:"fechaInicioObra" format:"date"`
	FechaFin        *string          `json:"fechaFinObra,omitempty" format:"date"`
	InversionFinal  float64          `json:"inversionFinal"`
	Localidad       *Localidad       `json:"localidad,omitempty"`
	PlanProyecto    *PlanProyecto    `json:"planProyecto,omitempty"`
	ObraRiesgos     []ObraRiesgo     `json:"obraRiesgos"`
	EstadoObras     []ObraEstadoObra `json:"obraEstadoObras"`
	FechaAlta       string           `json:"fechaAlta,omitempty" format:"date-time"`
	FechaBaja       *string          `json:"fechaBaja,omitempty" format:"date-time"`
}

// EstadoActual returns the open interval of the state history, or nil when
// the history is empty or every interval is closed. Derived on every call,
// never cached.
func (o *Obra) EstadoActual() *ObraEstadoObra {
	for i := range o.EstadoObras {
		if o.EstadoObras[i].FechaHoraFin == nil {
			return &o.EstadoObras[i]
		}
	}
	return nil
}

// Editable reports whether the obra accepts field edits and state
// transitions: it must not be retired and its current state, if any, must not
// be the terminal "finalizada" state. An obra without an open interval is
// treated as non-terminal.
func (o *Obra) Editable() bool {
	if o.FechaBaja != nil {
		return false
	}
	actual := o.EstadoActual()
	if actual == nil || actual.EstadoObra == nil {
		return true
	}
	return !strings.EqualFold(actual.EstadoObra.Nombre, EstadoFinalizada)
}
