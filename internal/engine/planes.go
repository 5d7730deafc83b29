package engine

import (
	"context"
	"strings"

	"gestionobras/internal/domain"
	"gestionobras/internal/events"
	"gestionobras/internal/repo"
)

// paginar clamps page and size against the configured bounds.
func (e Engine) paginar(page, size int) (int, int) {
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

// Planes de proyecto

// PlanOptions carries the writable fields of a plan. SeEjecuta is not among
// them: the flag is owned by the obra lifecycle.
type PlanOptions struct {
	Nombre            string
	Descripcion       string
	MesesEstudio      int
	InversionEstimada float64
	TiempoEstimado    int
	Prioridad         domain.Prioridad
	RubroID           int64
}

func (e Engine) validarPlan(ctx context.Context, opts PlanOptions) (domain.Rubro, error) {
	if strings.TrimSpace(opts.Nombre) == "" {
		return domain.Rubro{}, rechazar("El nombre del plan es obligatorio")
	}
	if !opts.Prioridad.Valida() {
		return domain.Rubro{}, rechazar("La prioridad %s no es válida", opts.Prioridad)
	}
	if opts.MesesEstudio <= 0 {
		return domain.Rubro{}, rechazar("Los meses de estudio deben ser mayores a 0")
	}
	if opts.InversionEstimada <= 0 {
		return domain.Rubro{}, rechazar("La inversión estimada debe ser mayor a 0")
	}
	if opts.TiempoEstimado <= 0 {
		return domain.Rubro{}, rechazar("El tiempo estimado debe ser mayor a 0")
	}
	rb, err := e.Repo.GetRubro(ctx, opts.RubroID)
	if err == repo.ErrNotFound {
		return rb, rechazar("El rubro seleccionado no existe")
	}
	return rb, err
}

func (e Engine) GetPlan(ctx context.Context, id int64) (domain.PlanProyecto, error) {
	return e.Repo.GetPlan(ctx, id)
}

func (e Engine) ListPlanes(ctx context.Context, page, size int) (repo.Pagina[domain.PlanProyecto], error) {
	page, size = e.paginar(page, size)
	return e.Repo.ListPlanes(ctx, page, size)
}

func (e Engine) CrearPlan(ctx context.Context, opts PlanOptions) (domain.PlanProyecto, error) {
	rb, err := e.validarPlan(ctx, opts)
	if err != nil {
		return domain.PlanProyecto{}, err
	}
	p := domain.PlanProyecto{
		Nombre:            strings.TrimSpace(opts.Nombre),
		Descripcion:       opts.Descripcion,
		MesesEstudio:      opts.MesesEstudio,
		InversionEstimada: opts.InversionEstimada,
		TiempoEstimado:    opts.TiempoEstimado,
		Prioridad:         opts.Prioridad,
		Rubro:             &rb,
		FechaAlta:         e.marca(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if p.ID, err = e.Repo.InsertPlan(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "plan.creado", "plan_proyecto", p.ID, events.Payload{"nombre": p.Nombre, "rubro_id": rb.ID}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

func (e Engine) ActualizarPlan(ctx context.Context, id int64, opts PlanOptions) (domain.PlanProyecto, error) {
	p, err := e.Repo.GetPlan(ctx, id)
	if err != nil {
		return p, err
	}
	if p.SeEjecuta {
		return p, rechazar("El plan está en ejecución y no puede modificarse")
	}
	rb, err := e.validarPlan(ctx, opts)
	if err != nil {
		return p, err
	}
	p.Nombre = strings.TrimSpace(opts.Nombre)
	p.Descripcion = opts.Descripcion
	p.MesesEstudio = opts.MesesEstudio
	p.InversionEstimada = opts.InversionEstimada
	p.TiempoEstimado = opts.TiempoEstimado
	p.Prioridad = opts.Prioridad
	p.Rubro = &rb
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdatePlan(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "plan.actualizado", "plan_proyecto", id, events.Payload{"nombre": p.Nombre, "rubro_id": rb.ID}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

func (e Engine) BajaPlan(ctx context.Context, id int64) error {
	if _, err := e.Repo.GetPlan(ctx, id); err != nil {
		return err
	}
	n, err := e.Repo.CountObrasActivasPorPlan(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return rechazar("No se puede eliminar el plan porque está asociado a obras activas")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaPlan(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "plan.baja", "plan_proyecto", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Riesgos técnicos

type RiesgoOptions struct {
	NroRiesgo          int64
	Naturaleza         string
	PropuestaSolucion  string
	MedidasMitigacion  string
	AccionesEjecutadas string
}

func (e Engine) validarRiesgo(ctx context.Context, opts RiesgoOptions, excluirID int64) error {
	if opts.NroRiesgo <= 0 {
		return rechazar("El número de riesgo debe ser positivo")
	}
	if strings.TrimSpace(opts.Naturaleza) == "" {
		return rechazar("La naturaleza del riesgo es obligatoria")
	}
	existe, err := e.Repo.ExisteNroRiesgo(ctx, opts.NroRiesgo, excluirID)
	if err != nil {
		return err
	}
	if existe {
		return rechazar("Ya existe un riesgo técnico con el número %d", opts.NroRiesgo)
	}
	return nil
}

func (e Engine) GetRiesgo(ctx context.Context, id int64) (domain.RiesgoTecnico, error) {
	return e.Repo.GetRiesgo(ctx, id)
}

func (e Engine) ListRiesgos(ctx context.Context, page, size int) (repo.Pagina[domain.RiesgoTecnico], error) {
	page, size = e.paginar(page, size)
	return e.Repo.ListRiesgos(ctx, page, size)
}

// ExisteNroRiesgo backs the pre-flight duplicate check of the creation form.
func (e Engine) ExisteNroRiesgo(ctx context.Context, nro int64) (bool, error) {
	return e.Repo.ExisteNroRiesgo(ctx, nro, 0)
}

func (e Engine) CrearRiesgo(ctx context.Context, opts RiesgoOptions) (domain.RiesgoTecnico, error) {
	if err := e.validarRiesgo(ctx, opts, 0); err != nil {
		return domain.RiesgoTecnico{}, err
	}
	rt := domain.RiesgoTecnico{
		NroRiesgo:          opts.NroRiesgo,
		Naturaleza:         strings.TrimSpace(opts.Naturaleza),
		PropuestaSolucion:  opts.PropuestaSolucion,
		MedidasMitigacion:  opts.MedidasMitigacion,
		AccionesEjecutadas: opts.AccionesEjecutadas,
		FechaAlta:          e.marca(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rt, err
	}
	defer tx.Rollback()
	if rt.ID, err = e.Repo.InsertRiesgo(ctx, tx, rt); err != nil {
		return rt, err
	}
	if err := e.Events.Append(ctx, tx, "riesgo.creado", "riesgo_tecnico", rt.ID, events.Payload{"nro_riesgo": rt.NroRiesgo}); err != nil {
		return rt, err
	}
	return rt, tx.Commit()
}

func (e Engine) ActualizarRiesgo(ctx context.Context, id int64, opts RiesgoOptions) (domain.RiesgoTecnico, error) {
	rt, err := e.Repo.GetRiesgo(ctx, id)
	if err != nil {
		return rt, err
	}
	if err := e.validarRiesgo(ctx, opts, id); err != nil {
		return rt, err
	}
	rt.NroRiesgo = opts.NroRiesgo
	rt.Naturaleza = strings.TrimSpace(opts.Naturaleza)
	rt.PropuestaSolucion = opts.PropuestaSolucion
	rt.MedidasMitigacion = opts.MedidasMitigacion
	rt.AccionesEjecutadas = opts.AccionesEjecutadas
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rt, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRiesgo(ctx, tx, rt); err != nil {
		return rt, err
	}
	if err := e.Events.Append(ctx, tx, "riesgo.actualizado", "riesgo_tecnico", id, events.Payload{"nro_riesgo": rt.NroRiesgo}); err != nil {
		return rt, err
	}
	return rt, tx.Commit()
}

func (e Engine) BajaRiesgo(ctx context.Context, id int64) error {
	if _, err := e.Repo.GetRiesgo(ctx, id); err != nil {
		return err
	}
	n, err := e.Repo.CountObrasActivasPorRiesgo(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return rechazar("No se puede eliminar el riesgo porque está asociado a obras activas")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaRiesgo(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "riesgo.baja", "riesgo_tecnico", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}
