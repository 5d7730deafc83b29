package engine

import (
	"context"
	"database/sql"
	"strings"

	"gestionobras/internal/domain"
	"gestionobras/internal/events"
	"gestionobras/internal/repo"
)

// ObraCreateOptions carries the payload of a new obra. PlanProyectoID zero
// means no plan.
type ObraCreateOptions struct {
	NroObra         int64
	Nombre          string
	TiempoEjecucion int
	AnioEjecucion   int
	FechaInicio     string
	FechaFin        string
	InversionFinal  float64
	LocalidadID     int64
	PlanProyectoID  int64
	RiesgoIDs       []int64
}

func (e Engine) GetObra(ctx context.Context, id int64) (domain.Obra, error) {
	return e.Repo.GetObra(ctx, id)
}

func (e Engine) ListObras(ctx context.Context, page, size int, incluirBajas bool) (repo.Pagina[domain.Obra], error) {
	page, size = e.paginar(page, size)
	return e.Repo.ListObras(ctx, page, size, incluirBajas)
}

// ExisteNroObra backs the pre-flight duplicate check of the creation form.
func (e Engine) ExisteNroObra(ctx context.Context, nro int64) (bool, error) {
	return e.Repo.ExisteNroObra(ctx, nro, 0)
}

func (e Engine) CrearObra(ctx context.Context, opts ObraCreateOptions) (domain.Obra, error) {
	if opts.NroObra <= 0 {
		return domain.Obra{}, rechazar("El número de obra debe ser positivo")
	}
	if strings.TrimSpace(opts.Nombre) == "" {
		return domain.Obra{}, rechazar("El nombre de la obra es obligatorio")
	}
	if opts.TiempoEjecucion <= 0 {
		return domain.Obra{}, rechazar("El tiempo de ejecución debe ser mayor a 0")
	}
	if opts.AnioEjecucion < 2000 {
		return domain.Obra{}, rechazar("El año de ejecución debe ser válido")
	}
	if opts.InversionFinal <= 0 {
		return domain.Obra{}, rechazar("La inversión final debe ser mayor a 0")
	}
	if opts.FechaInicio == "" {
		return domain.Obra{}, rechazar("La fecha de inicio es obligatoria")
	}
	existe, err := e.Repo.ExisteNroObra(ctx, opts.NroObra, 0)
	if err != nil {
		return domain.Obra{}, err
	}
	if existe {
		return domain.Obra{}, rechazar("Ya existe una obra con el número %d", opts.NroObra)
	}
	loc, err := e.Repo.GetLocalidad(ctx, opts.LocalidadID)
	if err == repo.ErrNotFound {
		return domain.Obra{}, rechazar("La localidad seleccionada no existe")
	}
	if err != nil {
		return domain.Obra{}, err
	}
	var plan *domain.PlanProyecto
	if opts.PlanProyectoID != 0 {
		p, err := e.Repo.GetPlan(ctx, opts.PlanProyectoID)
		if err == repo.ErrNotFound {
			return domain.Obra{}, rechazar("El plan de proyecto seleccionado no existe")
		}
		if err != nil {
			return domain.Obra{}, err
		}
		plan = &p
	}
	for _, rid := range opts.RiesgoIDs {
		if _, err := e.Repo.GetRiesgo(ctx, rid); err != nil {
			if err == repo.ErrNotFound {
				return domain.Obra{}, rechazar("El riesgo técnico %d no existe", rid)
			}
			return domain.Obra{}, err
		}
	}

	o := domain.Obra{
		NroObra:         opts.NroObra,
		Nombre:          strings.TrimSpace(opts.Nombre),
		TiempoEjecucion: opts.TiempoEjecucion,
		AnioEjecucion:   opts.AnioEjecucion,
		FechaInicio:     opts.FechaInicio,
		InversionFinal:  opts.InversionFinal,
		Localidad:       &loc,
		PlanProyecto:    plan,
		FechaAlta:       e.marca(),
	}
	if opts.FechaFin != "" {
		o.FechaFin = &opts.FechaFin
	}

	// Resolve the configured initial state before the write transaction opens;
	// reads through the pool would block on the uncommitted tx. A missing
	// estado leaves the obra with an empty history rather than failing the
	// creation.
	var estadoInicial *domain.EstadoObra
	if e.Config != nil && e.Config.Obras.EstadoInicial != "" {
		est, err := e.Repo.GetEstadoObraPorNombre(ctx, e.Config.Obras.EstadoInicial)
		if err != nil && err != repo.ErrNotFound {
			return o, err
		}
		if err == nil {
			estadoInicial = &est
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if o.ID, err = e.Repo.InsertObra(ctx, tx, o); err != nil {
		return o, err
	}
	for _, rid := range opts.RiesgoIDs {
		if err := e.Repo.AddObraRiesgo(ctx, tx, o.ID, rid); err != nil {
			return o, err
		}
	}
	if plan != nil {
		if err := e.Repo.SetPlanSeEjecuta(ctx, tx, plan.ID, true); err != nil {
			return o, err
		}
	}
	if estadoInicial != nil {
		if _, err := e.Repo.AbrirIntervalo(ctx, tx, o.ID, estadoInicial.ID, e.marca()); err != nil {
			return o, err
		}
	}
	if err := e.Events.Append(ctx, tx, "obra.creada", "obra", o.ID, events.Payload{"nro_obra": o.NroObra, "nombre": o.Nombre}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	return e.Repo.GetObra(ctx, o.ID)
}

// ObraUpdateOptions is the partial-update payload. A field left unset keeps
// its current value; PlanProyectoID and FechaFin accept explicit null to
// clear.
type ObraUpdateOptions struct {
	NroObra         domain.Optional[int64]
	Nombre          domain.Optional[string]
	TiempoEjecucion domain.Optional[int]
	AnioEjecucion   domain.Optional[int]
	FechaInicio     domain.Optional[string]
	FechaFin        domain.Optional[string]
	InversionFinal  domain.Optional[float64]
	LocalidadID     domain.Optional[int64]
	PlanProyectoID  domain.Optional[int64]
	RiesgoIDs       domain.Optional[[]int64]
}

func (e Engine) ActualizarObra(ctx context.Context, id int64, opts ObraUpdateOptions) (domain.Obra, error) {
	o, err := e.Repo.GetObra(ctx, id)
	if err != nil {
		return o, err
	}
	if !o.Editable() {
		return o, rechazar("No se puede modificar una obra finalizada")
	}

	planAnterior := int64(0)
	if o.PlanProyecto != nil {
		planAnterior = o.PlanProyecto.ID
	}

	if opts.NroObra.Set {
		if !opts.NroObra.Valid || opts.NroObra.Value <= 0 {
			return o, rechazar("El número de obra debe ser positivo")
		}
		existe, err := e.Repo.ExisteNroObra(ctx, opts.NroObra.Value, id)
		if err != nil {
			return o, err
		}
		if existe {
			return o, rechazar("Ya existe una obra con el número %d", opts.NroObra.Value)
		}
		o.NroObra = opts.NroObra.Value
	}
	if opts.Nombre.Set {
		if !opts.Nombre.Valid || strings.TrimSpace(opts.Nombre.Value) == "" {
			return o, rechazar("El nombre de la obra es obligatorio")
		}
		o.Nombre = strings.TrimSpace(opts.Nombre.Value)
	}
	if opts.TiempoEjecucion.Set {
		if !opts.TiempoEjecucion.Valid || opts.TiempoEjecucion.Value <= 0 {
			return o, rechazar("El tiempo de ejecución debe ser mayor a 0")
		}
		o.TiempoEjecucion = opts.TiempoEjecucion.Value
	}
	if opts.AnioEjecucion.Set {
		if !opts.AnioEjecucion.Valid || opts.AnioEjecucion.Value < 2000 {
			return o, rechazar("El año de ejecución debe ser válido")
		}
		o.AnioEjecucion = opts.AnioEjecucion.Value
	}
	if opts.FechaInicio.Set {
		if !opts.FechaInicio.Valid || opts.FechaInicio.Value == "" {
			return o, rechazar("La fecha de inicio es obligatoria")
		}
		o.FechaInicio = opts.FechaInicio.Value
	}
	if opts.FechaFin.Set {
		if opts.FechaFin.Valid && opts.FechaFin.Value != "" {
			v := opts.FechaFin.Value
			o.FechaFin = &v
		} else {
			o.FechaFin = nil
		}
	}
	if opts.InversionFinal.Set {
		if !opts.InversionFinal.Valid || opts.InversionFinal.Value <= 0 {
			return o, rechazar("La inversión final debe ser mayor a 0")
		}
		o.InversionFinal = opts.InversionFinal.Value
	}
	if opts.LocalidadID.Set {
		if !opts.LocalidadID.Valid {
			return o, rechazar("La localidad es obligatoria")
		}
		loc, err := e.Repo.GetLocalidad(ctx, opts.LocalidadID.Value)
		if err == repo.ErrNotFound {
			return o, rechazar("La localidad seleccionada no existe")
		}
		if err != nil {
			return o, err
		}
		o.Localidad = &loc
	}
	if opts.PlanProyectoID.Set {
		if !opts.PlanProyectoID.Valid || opts.PlanProyectoID.Value == 0 {
			o.PlanProyecto = nil
		} else {
			p, err := e.Repo.GetPlan(ctx, opts.PlanProyectoID.Value)
			if err == repo.ErrNotFound {
				return o, rechazar("El plan de proyecto seleccionado no existe")
			}
			if err != nil {
				return o, err
			}
			o.PlanProyecto = &p
		}
	}
	var agregar, quitar []int64
	if opts.RiesgoIDs.Set {
		nuevos := opts.RiesgoIDs.Value
		if !opts.RiesgoIDs.Valid {
			nuevos = nil
		}
		for _, rid := range nuevos {
			if _, err := e.Repo.GetRiesgo(ctx, rid); err != nil {
				if err == repo.ErrNotFound {
					return o, rechazar("El riesgo técnico %d no existe", rid)
				}
				return o, err
			}
		}
		actuales, err := e.Repo.ListRiesgoIDsPorObra(ctx, id)
		if err != nil {
			return o, err
		}
		agregar, quitar = diffIDs(actuales, nuevos)
	}

	planNuevo := int64(0)
	if o.PlanProyecto != nil {
		planNuevo = o.PlanProyecto.ID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateObra(ctx, tx, o); err != nil {
		return o, err
	}
	for _, rid := range agregar {
		if err := e.Repo.AddObraRiesgo(ctx, tx, id, rid); err != nil {
			return o, err
		}
	}
	for _, rid := range quitar {
		if err := e.Repo.RemoveObraRiesgo(ctx, tx, id, rid); err != nil {
			return o, err
		}
	}
	if err := e.ajustarSeEjecuta(ctx, tx, planAnterior, planNuevo); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "obra.actualizada", "obra", id, events.Payload{"nro_obra": o.NroObra}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	return e.Repo.GetObra(ctx, id)
}

// ajustarSeEjecuta keeps the plans' in-execution flags consistent after an
// obra switched plans. The new plan turns on; the old one turns off only when
// no other active obra still references it.
func (e Engine) ajustarSeEjecuta(ctx context.Context, tx *sql.Tx, anterior, nuevo int64) error {
	if anterior == nuevo {
		return nil
	}
	if nuevo != 0 {
		if err := e.Repo.SetPlanSeEjecuta(ctx, tx, nuevo, true); err != nil {
			return err
		}
	}
	if anterior != 0 {
		n, err := e.Repo.CountObrasActivasPorPlanTx(ctx, tx, anterior)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := e.Repo.SetPlanSeEjecuta(ctx, tx, anterior, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func diffIDs(actuales, nuevos []int64) (agregar, quitar []int64) {
	en := func(ids []int64, id int64) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	for _, id := range nuevos {
		if !en(actuales, id) && !en(agregar, id) {
			agregar = append(agregar, id)
		}
	}
	for _, id := range actuales {
		if !en(nuevos, id) {
			quitar = append(quitar, id)
		}
	}
	return agregar, quitar
}

func (e Engine) BajaObra(ctx context.Context, id int64) error {
	o, err := e.Repo.GetObraIncluirBaja(ctx, id)
	if err != nil {
		return err
	}
	if o.FechaBaja != nil {
		return rechazar("La obra ya fue dada de baja")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaObra(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if o.PlanProyecto != nil {
		n, err := e.Repo.CountObrasActivasPorPlanTx(ctx, tx, o.PlanProyecto.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := e.Repo.SetPlanSeEjecuta(ctx, tx, o.PlanProyecto.ID, false); err != nil {
				return err
			}
		}
	}
	if err := e.Events.Append(ctx, tx, "obra.baja", "obra", id, events.Payload{"nro_obra": o.NroObra}); err != nil {
		return err
	}
	return tx.Commit()
}

// CambiarEstado moves the obra to the given estado: the open interval closes
// and a new one opens at the same instant. Requesting the current estado is a
// no-op that succeeds without touching the history.
func (e Engine) CambiarEstado(ctx context.Context, obraID, estadoID int64) (domain.Obra, error) {
	o, err := e.Repo.GetObra(ctx, obraID)
	if err != nil {
		return o, err
	}
	if !o.Editable() {
		return o, rechazar("No se puede cambiar el estado de una obra finalizada")
	}
	est, err := e.Repo.GetEstadoObra(ctx, estadoID)
	if err == repo.ErrNotFound {
		return o, rechazar("El estado seleccionado no existe")
	}
	if err != nil {
		return o, err
	}
	if actual := o.EstadoActual(); actual != nil && actual.EstadoObra != nil && actual.EstadoObra.ID == estadoID {
		return o, nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	marca := e.marca()
	if err := e.Repo.CerrarIntervalosAbiertos(ctx, tx, obraID, marca); err != nil {
		return o, err
	}
	if _, err := e.Repo.AbrirIntervalo(ctx, tx, obraID, est.ID, marca); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "obra.estado_cambiado", "obra", obraID, events.Payload{"estado": est.Nombre, "estado_id": est.ID}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	return e.Repo.GetObra(ctx, obraID)
}
