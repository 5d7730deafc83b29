package repo

import (
	"context"
	"database/sql"

	"gestionobras/internal/domain"
)

// Estados de obra

func (r Repo) InsertEstadoObra(ctx context.Context, tx *sql.Tx, e domain.EstadoObra) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO estado_obra(nombre_estado_obra,fecha_alta) VALUES (?,?)`,
		e.Nombre, e.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetEstadoObra(ctx context.Context, id int64) (domain.EstadoObra, error) {
	var e domain.EstadoObra
	var baja sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,nombre_estado_obra,fecha_alta,fecha_baja FROM estado_obra WHERE id=? AND fecha_baja IS NULL`, id).
		Scan(&e.ID, &e.Nombre, &e.FechaAlta, &baja)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	e.FechaBaja = strPtr(baja)
	return e, err
}

// GetEstadoObraPorNombre resolves an active estado by name, case-insensitive.
// Used to open the configured initial interval on obra creation.
func (r Repo) GetEstadoObraPorNombre(ctx context.Context, nombre string) (domain.EstadoObra, error) {
	var e domain.EstadoObra
	var baja sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,nombre_estado_obra,fecha_alta,fecha_baja FROM estado_obra WHERE lower(nombre_estado_obra)=lower(?) AND fecha_baja IS NULL LIMIT 1`, nombre).
		Scan(&e.ID, &e.Nombre, &e.FechaAlta, &baja)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	e.FechaBaja = strPtr(baja)
	return e, err
}

func (r Repo) ListEstadosObra(ctx context.Context, incluirBajas bool) ([]domain.EstadoObra, error) {
	query := `SELECT id,nombre_estado_obra,fecha_alta,fecha_baja FROM estado_obra`
	if !incluirBajas {
		query += ` WHERE fecha_baja IS NULL`
	}
	query += ` ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EstadoObra
	for rows.Next() {
		var e domain.EstadoObra
		var baja sql.NullString
		if err := rows.Scan(&e.ID, &e.Nombre, &e.FechaAlta, &baja); err != nil {
			return nil, err
		}
		e.FechaBaja = strPtr(baja)
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) UpdateEstadoObra(ctx context.Context, tx *sql.Tx, id int64, nombre string) error {
	res, err := tx.ExecContext(ctx, `UPDATE estado_obra SET nombre_estado_obra=? WHERE id=? AND fecha_baja IS NULL`, nombre, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) BajaEstadoObra(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE estado_obra SET fecha_baja=? WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountIntervalosPorEstado counts state-history rows referencing the estado
// whose obra is still active. A positive count blocks the estado's baja.
func (r Repo) CountIntervalosPorEstado(ctx context.Context, estadoID int64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM obra_estado_obra oe JOIN obra o ON o.id=oe.obra_id WHERE oe.estado_obra_id=? AND o.fecha_baja IS NULL`,
		estadoID).Scan(&n)
	return n, err
}

// ExisteEstadoObraNombre reports whether an active estado already uses the
// name, case-insensitively, excluding the given id (0 to exclude nothing).
func (r Repo) ExisteEstadoObraNombre(ctx context.Context, nombre string, excluirID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM estado_obra WHERE lower(nombre_estado_obra)=lower(?) AND fecha_baja IS NULL AND id != ?`,
		nombre, excluirID).Scan(&n)
	return n > 0, err
}

// ExisteEstadoObraNombreTx is ExisteEstadoObraNombre on an open transaction.
// Reads made while a tx is open must go through it, not r.DB.
func (r Repo) ExisteEstadoObraNombreTx(ctx context.Context, tx *sql.Tx, nombre string, excluirID int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM estado_obra WHERE lower(nombre_estado_obra)=lower(?) AND fecha_baja IS NULL AND id != ?`,
		nombre, excluirID).Scan(&n)
	return n > 0, err
}

// Rubros

func (r Repo) InsertRubro(ctx context.Context, tx *sql.Tx, rb domain.Rubro) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO rubro(nombre_rubro,fecha_alta) VALUES (?,?)`,
		rb.Nombre, rb.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetRubro(ctx context.Context, id int64) (domain.Rubro, error) {
	var rb domain.Rubro
	var baja sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,nombre_rubro,fecha_alta,fecha_baja FROM rubro WHERE id=? AND fecha_baja IS NULL`, id).
		Scan(&rb.ID, &rb.Nombre, &rb.FechaAlta, &baja)
	if err == sql.ErrNoRows {
		return rb, ErrNotFound
	}
	rb.FechaBaja = strPtr(baja)
	return rb, err
}

func (r Repo) ListRubros(ctx context.Context, incluirBajas bool) ([]domain.Rubro, error) {
	query := `SELECT id,nombre_rubro,fecha_alta,fecha_baja FROM rubro`
	if !incluirBajas {
		query += ` WHERE fecha_baja IS NULL`
	}
	query += ` ORDER BY nombre_rubro ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rubro
	for rows.Next() {
		var rb domain.Rubro
		var baja sql.NullString
		if err := rows.Scan(&rb.ID, &rb.Nombre, &rb.FechaAlta, &baja); err != nil {
			return nil, err
		}
		rb.FechaBaja = strPtr(baja)
		res = append(res, rb)
	}
	return res, rows.Err()
}

// ExisteRubroNombre reports whether an active rubro already uses the name,
// case-insensitively, excluding the given id (0 to exclude nothing).
func (r Repo) ExisteRubroNombre(ctx context.Context, nombre string, excluirID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rubro WHERE lower(nombre_rubro)=lower(?) AND fecha_baja IS NULL AND id != ?`,
		nombre, excluirID).Scan(&n)
	return n > 0, err
}

// ExisteRubroNombreTx is ExisteRubroNombre on an open transaction.
func (r Repo) ExisteRubroNombreTx(ctx context.Context, tx *sql.Tx, nombre string, excluirID int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rubro WHERE lower(nombre_rubro)=lower(?) AND fecha_baja IS NULL AND id != ?`,
		nombre, excluirID).Scan(&n)
	return n > 0, err
}

func (r Repo) UpdateRubro(ctx context.Context, tx *sql.Tx, id int64, nombre string) error {
	res, err := tx.ExecContext(ctx, `UPDATE rubro SET nombre_rubro=? WHERE id=? AND fecha_baja IS NULL`, nombre, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) BajaRubro(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE rubro SET fecha_baja=? WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPlanesActivosPorRubro counts active planes still classified under the
// rubro. A positive count blocks the rubro's baja.
func (r Repo) CountPlanesActivosPorRubro(ctx context.Context, rubroID int64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_proyecto WHERE rubro_id=? AND fecha_baja IS NULL`, rubroID).Scan(&n)
	return n, err
}
