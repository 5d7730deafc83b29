package repo

import (
	"context"
	"database/sql"

	"gestionobras/internal/domain"
)

const riesgoSelect = `SELECT id,nro_riesgo,naturaleza_riesgo,COALESCE(propuesta_solucion,''),COALESCE(medidas_mitigacion,''),COALESCE(acciones_ejecutadas,''),fecha_alta,fecha_baja FROM riesgo_tecnico`

func scanRiesgo(scan func(dest ...any) error) (domain.RiesgoTecnico, error) {
	var rt domain.RiesgoTecnico
	var baja sql.NullString
	err := scan(&rt.ID, &rt.NroRiesgo, &rt.Naturaleza, &rt.PropuestaSolucion, &rt.MedidasMitigacion, &rt.AccionesEjecutadas, &rt.FechaAlta, &baja)
	if err != nil {
		return rt, err
	}
	rt.FechaBaja = strPtr(baja)
	return rt, nil
}

func (r Repo) InsertRiesgo(ctx context.Context, tx *sql.Tx, rt domain.RiesgoTecnico) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO riesgo_tecnico(nro_riesgo,naturaleza_riesgo,propuesta_solucion,medidas_mitigacion,acciones_ejecutadas,fecha_alta)
VALUES (?,?,?,?,?,?)`,
		rt.NroRiesgo, rt.Naturaleza, nullable(rt.PropuestaSolucion), nullable(rt.MedidasMitigacion), nullable(rt.AccionesEjecutadas), rt.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetRiesgo(ctx context.Context, id int64) (domain.RiesgoTecnico, error) {
	row := r.DB.QueryRowContext(ctx, riesgoSelect+` WHERE id=? AND fecha_baja IS NULL`, id)
	rt, err := scanRiesgo(row.Scan)
	if err == sql.ErrNoRows {
		return rt, ErrNotFound
	}
	return rt, err
}

// ListRiesgos returns one page of active riesgos plus the total active count.
func (r Repo) ListRiesgos(ctx context.Context, page, size int) (Pagina[domain.RiesgoTecnico], error) {
	var res Pagina[domain.RiesgoTecnico]
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM riesgo_tecnico WHERE fecha_baja IS NULL`).Scan(&res.Total); err != nil {
		return res, err
	}
	rows, err := r.DB.QueryContext(ctx, riesgoSelect+` WHERE fecha_baja IS NULL ORDER BY nro_riesgo ASC LIMIT ? OFFSET ?`,
		size, page*size)
	if err != nil {
		return res, err
	}
	defer rows.Close()
	for rows.Next() {
		rt, err := scanRiesgo(rows.Scan)
		if err != nil {
			return res, err
		}
		res.Items = append(res.Items, rt)
	}
	return res, rows.Err()
}

// ExisteNroRiesgo reports whether an active riesgo already carries the
// number, excluding the given id (0 to exclude nothing). Backs both the
// creation check and the /exists endpoint.
func (r Repo) ExisteNroRiesgo(ctx context.Context, nro int64, excluirID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM riesgo_tecnico WHERE nro_riesgo=? AND fecha_baja IS NULL AND id != ?`,
		nro, excluirID).Scan(&n)
	return n > 0, err
}

func (r Repo) UpdateRiesgo(ctx context.Context, tx *sql.Tx, rt domain.RiesgoTecnico) error {
	res, err := tx.ExecContext(ctx, `UPDATE riesgo_tecnico SET nro_riesgo=?, naturaleza_riesgo=?, propuesta_solucion=?, medidas_mitigacion=?, acciones_ejecutadas=? WHERE id=? AND fecha_baja IS NULL`,
		rt.NroRiesgo, rt.Naturaleza, nullable(rt.PropuestaSolucion), nullable(rt.MedidasMitigacion), nullable(rt.AccionesEjecutadas), rt.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) BajaRiesgo(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE riesgo_tecnico SET fecha_baja=? WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountObrasActivasPorRiesgo counts active obras still associated to the
// riesgo. A positive count blocks the riesgo's baja.
func (r Repo) CountObrasActivasPorRiesgo(ctx context.Context, riesgoID int64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM obra_riesgo orj JOIN obra o ON o.id=orj.obra_id WHERE orj.riesgo_tecnico_id=? AND o.fecha_baja IS NULL`,
		riesgoID).Scan(&n)
	return n, err
}
