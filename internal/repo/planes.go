package repo

import (
	"context"
	"database/sql"

	"gestionobras/internal/domain"
)

const planSelect = `SELECT p.id,p.nombre_plan_proyecto,COALESCE(p.descripcion_plan_proyecto,''),p.meses_estudio,
p.inversion_estimada,p.tiempo_estimado,p.se_ejecuta,p.prioridad,p.fecha_alta,p.fecha_baja,
r.id,r.nombre_rubro,r.fecha_alta,r.fecha_baja
FROM plan_proyecto p JOIN rubro r ON r.id=p.rubro_id`

func scanPlan(scan func(dest ...any) error) (domain.PlanProyecto, error) {
	var p domain.PlanProyecto
	var rb domain.Rubro
	var pBaja, rBaja sql.NullString
	err := scan(&p.ID, &p.Nombre, &p.Descripcion, &p.MesesEstudio, &p.InversionEstimada, &p.TiempoEstimado,
		&p.SeEjecuta, &p.Prioridad, &p.FechaAlta, &pBaja, &rb.ID, &rb.Nombre, &rb.FechaAlta, &rBaja)
	if err != nil {
		return p, err
	}
	p.FechaBaja = strPtr(pBaja)
	rb.FechaBaja = strPtr(rBaja)
	p.Rubro = &rb
	return p, nil
}

func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p domain.PlanProyecto) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO plan_proyecto(nombre_plan_proyecto,descripcion_plan_proyecto,meses_estudio,inversion_estimada,tiempo_estimado,se_ejecuta,prioridad,rubro_id,fecha_alta)
VALUES (?,?,?,?,?,?,?,?,?)`,
		p.Nombre, nullable(p.Descripcion), p.MesesEstudio, p.InversionEstimada, p.TiempoEstimado, p.SeEjecuta, string(p.Prioridad), p.Rubro.ID, p.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetPlan(ctx context.Context, id int64) (domain.PlanProyecto, error) {
	row := r.DB.QueryRowContext(ctx, planSelect+` WHERE p.id=? AND p.fecha_baja IS NULL`, id)
	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ListPlanes returns one page of active planes plus the total active count.
func (r Repo) ListPlanes(ctx context.Context, page, size int) (Pagina[domain.PlanProyecto], error) {
	var res Pagina[domain.PlanProyecto]
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_proyecto WHERE fecha_baja IS NULL`).Scan(&res.Total); err != nil {
		return res, err
	}
	rows, err := r.DB.QueryContext(ctx, planSelect+` WHERE p.fecha_baja IS NULL ORDER BY p.id DESC LIMIT ? OFFSET ?`,
		size, page*size)
	if err != nil {
		return res, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return res, err
		}
		res.Items = append(res.Items, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePlan(ctx context.Context, tx *sql.Tx, p domain.PlanProyecto) error {
	res, err := tx.ExecContext(ctx, `UPDATE plan_proyecto SET nombre_plan_proyecto=?, descripcion_plan_proyecto=?, meses_estudio=?, inversion_estimada=?, tiempo_estimado=?, prioridad=?, rubro_id=? WHERE id=? AND fecha_baja IS NULL`,
		p.Nombre, nullable(p.Descripcion), p.MesesEstudio, p.InversionEstimada, p.TiempoEstimado, string(p.Prioridad), p.Rubro.ID, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPlanSeEjecuta flips the in-execution flag. Called when an obra attaches
// to or detaches from the plan.
func (r Repo) SetPlanSeEjecuta(ctx context.Context, tx *sql.Tx, id int64, seEjecuta bool) error {
	_, err := tx.ExecContext(ctx, `UPDATE plan_proyecto SET se_ejecuta=? WHERE id=?`, seEjecuta, id)
	return err
}

func (r Repo) BajaPlan(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE plan_proyecto SET fecha_baja=?, se_ejecuta=0 WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountObrasActivasPorPlan counts active obras executing the plan. It drives
// both the baja guard and the seEjecuta release.
func (r Repo) CountObrasActivasPorPlan(ctx context.Context, planID int64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM obra WHERE plan_proyecto_id=? AND fecha_baja IS NULL`, planID).Scan(&n)
	return n, err
}

// CountObrasActivasPorPlanTx is the in-transaction variant, used while an
// obra mutation that touched the association is still uncommitted.
func (r Repo) CountObrasActivasPorPlanTx(ctx context.Context, tx *sql.Tx, planID int64) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM obra WHERE plan_proyecto_id=? AND fecha_baja IS NULL`, planID).Scan(&n)
	return n, err
}
