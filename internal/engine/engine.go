// Package engine implements the business rules over the persistence layer.
// Reads go straight to the repo; every mutation runs in one transaction that
// also appends its audit event, so trail and data commit together.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gestionobras/internal/config"
	"gestionobras/internal/domain"
	"gestionobras/internal/events"
	"gestionobras/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) marca() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Rechazo is a business-rule rejection, as opposed to an infrastructure
// failure. The HTTP layer renders it as success=false with the motive as the
// message, not as an error status.
type Rechazo struct {
	Motivo string
}

func (r Rechazo) Error() string { return r.Motivo }

func rechazar(format string, args ...any) error {
	return Rechazo{Motivo: fmt.Sprintf(format, args...)}
}

// Departamentos

func (e Engine) GetDepartamento(ctx context.Context, id int64) (domain.Departamento, error) {
	return e.Repo.GetDepartamento(ctx, id)
}

func (e Engine) ListDepartamentos(ctx context.Context, incluirBajas bool) ([]domain.Departamento, error) {
	return e.Repo.ListDepartamentos(ctx, incluirBajas)
}

func (e Engine) CrearDepartamento(ctx context.Context, nombre string) (domain.Departamento, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.Departamento{}, rechazar("El nombre del departamento es obligatorio")
	}
	existe, err := e.Repo.ExisteDepartamentoNombre(ctx, nombre, 0)
	if err != nil {
		return domain.Departamento{}, err
	}
	if existe {
		return domain.Departamento{}, rechazar("Ya existe un departamento con el nombre %s", nombre)
	}
	d := domain.Departamento{Nombre: nombre, FechaAlta: e.marca()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if d.ID, err = e.Repo.InsertDepartamento(ctx, tx, d); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "departamento.creado", "departamento", d.ID, events.Payload{"nombre": d.Nombre}); err != nil {
		return d, err
	}
	return d, tx.Commit()
}

func (e Engine) ActualizarDepartamento(ctx context.Context, id int64, nombre string) (domain.Departamento, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.Departamento{}, rechazar("El nombre del departamento es obligatorio")
	}
	d, err := e.Repo.GetDepartamento(ctx, id)
	if err != nil {
		return d, err
	}
	existe, err := e.Repo.ExisteDepartamentoNombre(ctx, nombre, id)
	if err != nil {
		return d, err
	}
	if existe {
		return d, rechazar("Ya existe un departamento con el nombre %s", nombre)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDepartamento(ctx, tx, id, nombre); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "departamento.actualizado", "departamento", id, events.Payload{"nombre": nombre}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	d.Nombre = nombre
	return d, nil
}

func (e Engine) BajaDepartamento(ctx context.Context, id int64) error {
	if _, err := e.Repo.GetDepartamento(ctx, id); err != nil {
		return err
	}
	tiene, err := e.Repo.TieneLocalidadesActivas(ctx, id)
	if err != nil {
		return err
	}
	if tiene {
		return rechazar("No se puede eliminar el departamento porque tiene localidades asociadas")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaDepartamento(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "departamento.baja", "departamento", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Localidades

func (e Engine) GetLocalidad(ctx context.Context, id int64) (domain.Localidad, error) {
	return e.Repo.GetLocalidad(ctx, id)
}

func (e Engine) ListLocalidades(ctx context.Context, incluirBajas bool) ([]domain.Localidad, error) {
	return e.Repo.ListLocalidades(ctx, incluirBajas)
}

func (e Engine) ListLocalidadesPorDepartamento(ctx context.Context, departamentoID int64) ([]domain.Localidad, error) {
	if _, err := e.Repo.GetDepartamento(ctx, departamentoID); err != nil {
		return nil, err
	}
	return e.Repo.ListLocalidadesPorDepartamento(ctx, departamentoID)
}

func (e Engine) CrearLocalidad(ctx context.Context, nombre string, departamentoID int64) (domain.Localidad, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.Localidad{}, rechazar("El nombre de la localidad es obligatorio")
	}
	dep, err := e.Repo.GetDepartamento(ctx, departamentoID)
	if err == repo.ErrNotFound {
		return domain.Localidad{}, rechazar("El departamento seleccionado no existe")
	}
	if err != nil {
		return domain.Localidad{}, err
	}
	l := domain.Localidad{Nombre: nombre, Departamento: &dep, FechaAlta: e.marca()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if l.ID, err = e.Repo.InsertLocalidad(ctx, tx, l); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "localidad.creada", "localidad", l.ID, events.Payload{"nombre": l.Nombre, "departamento_id": departamentoID}); err != nil {
		return l, err
	}
	return l, tx.Commit()
}

func (e Engine) ActualizarLocalidad(ctx context.Context, id int64, nombre string, departamentoID int64) (domain.Localidad, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.Localidad{}, rechazar("El nombre de la localidad es obligatorio")
	}
	if _, err := e.Repo.GetLocalidad(ctx, id); err != nil {
		return domain.Localidad{}, err
	}
	if _, err := e.Repo.GetDepartamento(ctx, departamentoID); err != nil {
		if err == repo.ErrNotFound {
			return domain.Localidad{}, rechazar("El departamento seleccionado no existe")
		}
		return domain.Localidad{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Localidad{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLocalidad(ctx, tx, id, nombre, departamentoID); err != nil {
		return domain.Localidad{}, err
	}
	if err := e.Events.Append(ctx, tx, "localidad.actualizada", "localidad", id, events.Payload{"nombre": nombre, "departamento_id": departamentoID}); err != nil {
		return domain.Localidad{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Localidad{}, err
	}
	return e.Repo.GetLocalidad(ctx, id)
}

func (e Engine) BajaLocalidad(ctx context.Context, id int64) error {
	if _, err := e.Repo.GetLocalidad(ctx, id); err != nil {
		return err
	}
	n, err := e.Repo.CountObrasActivasPorLocalidad(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return rechazar("No se puede eliminar la localidad porque tiene obras asociadas")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaLocalidad(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "localidad.baja", "localidad", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Estados de obra

func (e Engine) GetEstadoObra(ctx context.Context, id int64) (domain.EstadoObra, error) {
	return e.Repo.GetEstadoObra(ctx, id)
}

func (e Engine) ListEstadosObra(ctx context.Context, incluirBajas bool) ([]domain.EstadoObra, error) {
	return e.Repo.ListEstadosObra(ctx, incluirBajas)
}

func (e Engine) CrearEstadoObra(ctx context.Context, nombre string) (domain.EstadoObra, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.EstadoObra{}, rechazar("El nombre del estado es obligatorio")
	}
	existe, err := e.Repo.ExisteEstadoObraNombre(ctx, nombre, 0)
	if err != nil {
		return domain.EstadoObra{}, err
	}
	if existe {
		return domain.EstadoObra{}, rechazar("Ya existe un estado con el nombre %s", nombre)
	}
	est := domain.EstadoObra{Nombre: nombre, FechaAlta: e.marca()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return est, err
	}
	defer tx.Rollback()
	if est.ID, err = e.Repo.InsertEstadoObra(ctx, tx, est); err != nil {
		return est, err
	}
	if err := e.Events.Append(ctx, tx, "estado_obra.creado", "estado_obra", est.ID, events.Payload{"nombre": est.Nombre}); err != nil {
		return est, err
	}
	return est, tx.Commit()
}

func (e Engine) ActualizarEstadoObra(ctx context.Context, id int64, nombre string) (domain.EstadoObra, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.EstadoObra{}, rechazar("El nombre del estado es obligatorio")
	}
	est, err := e.Repo.GetEstadoObra(ctx, id)
	if err != nil {
		return est, err
	}
	existe, err := e.Repo.ExisteEstadoObraNombre(ctx, nombre, id)
	if err != nil {
		return est, err
	}
	if existe {
		return est, rechazar("Ya existe un estado con el nombre %s", nombre)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return est, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEstadoObra(ctx, tx, id, nombre); err != nil {
		return est, err
	}
	if err := e.Events.Append(ctx, tx, "estado_obra.actualizado", "estado_obra", id, events.Payload{"nombre": nombre}); err != nil {
		return est, err
	}
	if err := tx.Commit(); err != nil {
		return est, err
	}
	est.Nombre = nombre
	return est, nil
}

func (e Engine) BajaEstadoObra(ctx context.Context, id int64) error {
	if _, err := e.Repo.GetEstadoObra(ctx, id); err != nil {
		return err
	}
	n, err := e.Repo.CountIntervalosPorEstado(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return rechazar("No se puede eliminar el estado porque figura en el historial de obras activas")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaEstadoObra(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "estado_obra.baja", "estado_obra", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Rubros

func (e Engine) GetRubro(ctx context.Context, id int64) (domain.Rubro, error) {
	return e.Repo.GetRubro(ctx, id)
}

func (e Engine) ListRubros(ctx context.Context, incluirBajas bool) ([]domain.Rubro, error) {
	return e.Repo.ListRubros(ctx, incluirBajas)
}

func (e Engine) CrearRubro(ctx context.Context, nombre string) (domain.Rubro, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.Rubro{}, rechazar("El nombre del rubro es obligatorio")
	}
	existe, err := e.Repo.ExisteRubroNombre(ctx, nombre, 0)
	if err != nil {
		return domain.Rubro{}, err
	}
	if existe {
		return domain.Rubro{}, rechazar("Ya existe un rubro con el nombre %s", nombre)
	}
	rb := domain.Rubro{Nombre: nombre, FechaAlta: e.marca()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rb, err
	}
	defer tx.Rollback()
	if rb.ID, err = e.Repo.InsertRubro(ctx, tx, rb); err != nil {
		return rb, err
	}
	if err := e.Events.Append(ctx, tx, "rubro.creado", "rubro", rb.ID, events.Payload{"nombre": rb.Nombre}); err != nil {
		return rb, err
	}
	return rb, tx.Commit()
}

func (e Engine) ActualizarRubro(ctx context.Context, id int64, nombre string) (domain.Rubro, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return domain.Rubro{}, rechazar("El nombre del rubro es obligatorio")
	}
	rb, err := e.Repo.GetRubro(ctx, id)
	if err != nil {
		return rb, err
	}
	existe, err := e.Repo.ExisteRubroNombre(ctx, nombre, id)
	if err != nil {
		return rb, err
	}
	if existe {
		return rb, rechazar("Ya existe un rubro con el nombre %s", nombre)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rb, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRubro(ctx, tx, id, nombre); err != nil {
		return rb, err
	}
	if err := e.Events.Append(ctx, tx, "rubro.actualizado", "rubro", id, events.Payload{"nombre": nombre}); err != nil {
		return rb, err
	}
	if err := tx.Commit(); err != nil {
		return rb, err
	}
	rb.Nombre = nombre
	return rb, nil
}

func (e Engine) BajaRubro(ctx context.Context, id int64) error {
	if _, err := e.Repo.GetRubro(ctx, id); err != nil {
		return err
	}
	n, err := e.Repo.CountPlanesActivosPorRubro(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return rechazar("No se puede eliminar el rubro porque tiene planes asociados")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.BajaRubro(ctx, tx, id, e.marca()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rubro.baja", "rubro", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// SeedCatalogos inserts the configured estados and rubros that do not exist
// yet, matching by name case-insensitively. Safe to run on every startup.
func (e Engine) SeedCatalogos(ctx context.Context) error {
	if e.Config == nil {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	marca := e.marca()
	for _, nombre := range e.Config.Seed.Estados {
		existe, err := e.Repo.ExisteEstadoObraNombreTx(ctx, tx, nombre, 0)
		if err != nil {
			return err
		}
		if existe {
			continue
		}
		if _, err := e.Repo.InsertEstadoObra(ctx, tx, domain.EstadoObra{Nombre: nombre, FechaAlta: marca}); err != nil {
			return err
		}
	}
	for _, nombre := range e.Config.Seed.Rubros {
		existe, err := e.Repo.ExisteRubroNombreTx(ctx, tx, nombre, 0)
		if err != nil {
			return err
		}
		if existe {
			continue
		}
		if _, err := e.Repo.InsertRubro(ctx, tx, domain.Rubro{Nombre: nombre, FechaAlta: marca}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Eventos

func (e Engine) ListEventos(ctx context.Context, limit int, entidad string, entidadID int64) ([]repo.Evento, error) {
	return e.Repo.ListEventos(ctx, limit, entidad, entidadID)
}

// Dashboard

func (e Engine) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	return e.Repo.DashboardStats(ctx)
}

func (e Engine) ObrasPorEstado(ctx context.Context) ([]domain.ObrasPorEstado, error) {
	return e.Repo.ObrasPorEstado(ctx)
}

func (e Engine) InversionPorRubro(ctx context.Context) ([]domain.InversionPorRubro, error) {
	return e.Repo.InversionPorRubro(ctx)
}
