package repo

import (
	"context"
	"database/sql"

	"gestionobras/internal/domain"
)

// Departamentos

func (r Repo) InsertDepartamento(ctx context.Context, tx *sql.Tx, d domain.Departamento) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO departamento(nombre_departamento,fecha_alta) VALUES (?,?)`,
		d.Nombre, d.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetDepartamento(ctx context.Context, id int64) (domain.Departamento, error) {
	var d domain.Departamento
	var baja sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,nombre_departamento,fecha_alta,fecha_baja FROM departamento WHERE id=? AND fecha_baja IS NULL`, id).
		Scan(&d.ID, &d.Nombre, &d.FechaAlta, &baja)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.FechaBaja = strPtr(baja)
	return d, err
}

func (r Repo) ListDepartamentos(ctx context.Context, incluirBajas bool) ([]domain.Departamento, error) {
	query := `SELECT id,nombre_departamento,fecha_alta,fecha_baja FROM departamento`
	if !incluirBajas {
		query += ` WHERE fecha_baja IS NULL`
	}
	query += ` ORDER BY nombre_departamento ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Departamento
	for rows.Next() {
		var d domain.Departamento
		var baja sql.NullString
		if err := rows.Scan(&d.ID, &d.Nombre, &d.FechaAlta, &baja); err != nil {
			return nil, err
		}
		d.FechaBaja = strPtr(baja)
		res = append(res, d)
	}
	return res, rows.Err()
}

// ExisteDepartamentoNombre reports whether an active departamento already
// uses the name, case-insensitively, excluding the given id (0 to exclude
// nothing).
func (r Repo) ExisteDepartamentoNombre(ctx context.Context, nombre string, excluirID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM departamento WHERE lower(nombre_departamento)=lower(?) AND fecha_baja IS NULL AND id != ?`,
		nombre, excluirID).Scan(&n)
	return n > 0, err
}

func (r Repo) UpdateDepartamento(ctx context.Context, tx *sql.Tx, id int64, nombre string) error {
	res, err := tx.ExecContext(ctx, `UPDATE departamento SET nombre_departamento=? WHERE id=? AND fecha_baja IS NULL`, nombre, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) BajaDepartamento(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE departamento SET fecha_baja=? WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TieneLocalidadesActivas reports whether any active localidad still belongs
// to the departamento. Used as the baja guard.
func (r Repo) TieneLocalidadesActivas(ctx context.Context, departamentoID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM localidad WHERE departamento_id=? AND fecha_baja IS NULL`, departamentoID).Scan(&n)
	return n > 0, err
}

// Localidades

const localidadSelect = `SELECT l.id,l.nombre_localidad,l.fecha_alta,l.fecha_baja,
d.id,d.nombre_departamento,d.fecha_alta,d.fecha_baja
FROM localidad l JOIN departamento d ON d.id=l.departamento_id`

func scanLocalidad(scan func(dest ...any) error) (domain.Localidad, error) {
	var l domain.Localidad
	var d domain.Departamento
	var lBaja, dBaja sql.NullString
	if err := scan(&l.ID, &l.Nombre, &l.FechaAlta, &lBaja, &d.ID, &d.Nombre, &d.FechaAlta, &dBaja); err != nil {
		return l, err
	}
	l.FechaBaja = strPtr(lBaja)
	d.FechaBaja = strPtr(dBaja)
	l.Departamento = &d
	return l, nil
}

func (r Repo) InsertLocalidad(ctx context.Context, tx *sql.Tx, l domain.Localidad) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO localidad(nombre_localidad,departamento_id,fecha_alta) VALUES (?,?,?)`,
		l.Nombre, l.Departamento.ID, l.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetLocalidad(ctx context.Context, id int64) (domain.Localidad, error) {
	row := r.DB.QueryRowContext(ctx, localidadSelect+` WHERE l.id=? AND l.fecha_baja IS NULL`, id)
	l, err := scanLocalidad(row.Scan)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func (r Repo) ListLocalidades(ctx context.Context, incluirBajas bool) ([]domain.Localidad, error) {
	query := localidadSelect
	if !incluirBajas {
		query += ` WHERE l.fecha_baja IS NULL`
	}
	query += ` ORDER BY l.nombre_localidad ASC`
	return r.queryLocalidades(ctx, query)
}

// ListLocalidadesPorDepartamento is the scoped listing backing the location
// cascade filter: active localidades of one departamento.
func (r Repo) ListLocalidadesPorDepartamento(ctx context.Context, departamentoID int64) ([]domain.Localidad, error) {
	query := localidadSelect + ` WHERE l.departamento_id=? AND l.fecha_baja IS NULL ORDER BY l.nombre_localidad ASC`
	return r.queryLocalidades(ctx, query, departamentoID)
}

func (r Repo) queryLocalidades(ctx context.Context, query string, args ...any) ([]domain.Localidad, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Localidad
	for rows.Next() {
		l, err := scanLocalidad(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r Repo) UpdateLocalidad(ctx context.Context, tx *sql.Tx, id int64, nombre string, departamentoID int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE localidad SET nombre_localidad=?, departamento_id=? WHERE id=? AND fecha_baja IS NULL`,
		nombre, departamentoID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountObrasActivasPorLocalidad counts active obras placed in the localidad.
// A positive count blocks the localidad's baja.
func (r Repo) CountObrasActivasPorLocalidad(ctx context.Context, localidadID int64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM obra WHERE localidad_id=? AND fecha_baja IS NULL`, localidadID).Scan(&n)
	return n, err
}

func (r Repo) BajaLocalidad(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE localidad SET fecha_baja=? WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
