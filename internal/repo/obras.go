package repo

import (
	"context"
	"database/sql"

	"gestionobras/internal/domain"
)

const obraSelect = `SELECT id,nro_obra,nombre_obra,tiempo_ejecucion,anio_ejecucion,fecha_inicio_obra,fecha_fin_obra,
inversion_final,localidad_id,plan_proyecto_id,fecha_alta,fecha_baja FROM obra`

type obraRow struct {
	obra        domain.Obra
	localidadID int64
	planID      sql.NullInt64
}

func scanObraRow(scan func(dest ...any) error) (obraRow, error) {
	var row obraRow
	var fin, baja sql.NullString
	err := scan(&row.obra.ID, &row.obra.NroObra, &row.obra.Nombre, &row.obra.TiempoEjecucion, &row.obra.AnioEjecucion,
		&row.obra.FechaInicio, &fin, &row.obra.InversionFinal, &row.localidadID, &row.planID, &row.obra.FechaAlta, &baja)
	if err != nil {
		return row, err
	}
	row.obra.FechaFin = strPtr(fin)
	row.obra.FechaBaja = strPtr(baja)
	return row, nil
}

// GetObra loads an active obra with its localidad, plan, riesgos and full
// state history (intervals ordered by start, ascending).
func (r Repo) GetObra(ctx context.Context, id int64) (domain.Obra, error) {
	row, err := scanObraRow(r.DB.QueryRowContext(ctx, obraSelect+` WHERE id=? AND fecha_baja IS NULL`, id).Scan)
	if err == sql.ErrNoRows {
		return row.obra, ErrNotFound
	}
	if err != nil {
		return row.obra, err
	}
	return r.hydrateObra(ctx, row)
}

// GetObraIncluirBaja loads the obra regardless of its baja flag, so retired
// records remain readable from the including-bajas listing.
func (r Repo) GetObraIncluirBaja(ctx context.Context, id int64) (domain.Obra, error) {
	row, err := scanObraRow(r.DB.QueryRowContext(ctx, obraSelect+` WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return row.obra, ErrNotFound
	}
	if err != nil {
		return row.obra, err
	}
	return r.hydrateObra(ctx, row)
}

func (r Repo) hydrateObra(ctx context.Context, row obraRow) (domain.Obra, error) {
	o := row.obra
	loc, err := r.getLocalidadIncluirBaja(ctx, row.localidadID)
	if err != nil {
		return o, err
	}
	o.Localidad = &loc
	if row.planID.Valid {
		plan, err := r.getPlanIncluirBaja(ctx, row.planID.Int64)
		if err != nil {
			return o, err
		}
		o.PlanProyecto = &plan
	}
	if o.ObraRiesgos, err = r.listObraRiesgos(ctx, o.ID); err != nil {
		return o, err
	}
	if o.EstadoObras, err = r.ListHistorial(ctx, o.ID); err != nil {
		return o, err
	}
	return o, nil
}

// getLocalidadIncluirBaja resolves the referenced localidad even when it was
// retired after the obra was created.
func (r Repo) getLocalidadIncluirBaja(ctx context.Context, id int64) (domain.Localidad, error) {
	row := r.DB.QueryRowContext(ctx, localidadSelect+` WHERE l.id=?`, id)
	l, err := scanLocalidad(row.Scan)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func (r Repo) getPlanIncluirBaja(ctx context.Context, id int64) (domain.PlanProyecto, error) {
	row := r.DB.QueryRowContext(ctx, planSelect+` WHERE p.id=?`, id)
	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ListObras returns one page of obras, newest first, with associations
// loaded. incluirBajas selects between the active-only and the full listing.
func (r Repo) ListObras(ctx context.Context, page, size int, incluirBajas bool) (Pagina[domain.Obra], error) {
	var res Pagina[domain.Obra]
	countQuery := `SELECT COUNT(*) FROM obra`
	listQuery := obraSelect
	if !incluirBajas {
		countQuery += ` WHERE fecha_baja IS NULL`
		listQuery += ` WHERE fecha_baja IS NULL`
	}
	if err := r.DB.QueryRowContext(ctx, countQuery).Scan(&res.Total); err != nil {
		return res, err
	}
	rows, err := r.DB.QueryContext(ctx, listQuery+` ORDER BY id DESC LIMIT ? OFFSET ?`, size, page*size)
	if err != nil {
		return res, err
	}
	var raw []obraRow
	for rows.Next() {
		row, err := scanObraRow(rows.Scan)
		if err != nil {
			rows.Close()
			return res, err
		}
		raw = append(raw, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, err
	}
	for _, row := range raw {
		o, err := r.hydrateObra(ctx, row)
		if err != nil {
			return res, err
		}
		res.Items = append(res.Items, o)
	}
	return res, nil
}

func (r Repo) InsertObra(ctx context.Context, tx *sql.Tx, o domain.Obra) (int64, error) {
	var planID any
	if o.PlanProyecto != nil {
		planID = o.PlanProyecto.ID
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO obra(nro_obra,nombre_obra,tiempo_ejecucion,anio_ejecucion,fecha_inicio_obra,fecha_fin_obra,inversion_final,localidad_id,plan_proyecto_id,fecha_alta)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		o.NroObra, o.Nombre, o.TiempoEjecucion, o.AnioEjecucion, o.FechaInicio, nullableStringPtr(o.FechaFin),
		o.InversionFinal, o.Localidad.ID, planID, o.FechaAlta)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ExisteNroObra reports whether an active obra already carries the number,
// excluding the given id (0 to exclude nothing).
func (r Repo) ExisteNroObra(ctx context.Context, nro int64, excluirID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM obra WHERE nro_obra=? AND fecha_baja IS NULL AND id != ?`,
		nro, excluirID).Scan(&n)
	return n > 0, err
}

// UpdateObra persists the scalar fields plus the localidad and plan
// references of an already-validated obra.
func (r Repo) UpdateObra(ctx context.Context, tx *sql.Tx, o domain.Obra) error {
	var planID any
	if o.PlanProyecto != nil {
		planID = o.PlanProyecto.ID
	}
	res, err := tx.ExecContext(ctx, `UPDATE obra SET nro_obra=?, nombre_obra=?, tiempo_ejecucion=?, anio_ejecucion=?, fecha_inicio_obra=?, fecha_fin_obra=?, inversion_final=?, localidad_id=?, plan_proyecto_id=? WHERE id=? AND fecha_baja IS NULL`,
		o.NroObra, o.Nombre, o.TiempoEjecucion, o.AnioEjecucion, o.FechaInicio, nullableStringPtr(o.FechaFin),
		o.InversionFinal, o.Localidad.ID, planID, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) BajaObra(ctx context.Context, tx *sql.Tx, id int64, fecha string) error {
	res, err := tx.ExecContext(ctx, `UPDATE obra SET fecha_baja=? WHERE id=? AND fecha_baja IS NULL`, fecha, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Riesgo associations

func (r Repo) listObraRiesgos(ctx context.Context, obraID int64) ([]domain.ObraRiesgo, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT orj.id,
rt.id,rt.nro_riesgo,rt.naturaleza_riesgo,COALESCE(rt.propuesta_solucion,''),COALESCE(rt.medidas_mitigacion,''),COALESCE(rt.acciones_ejecutadas,''),rt.fecha_alta,rt.fecha_baja
FROM obra_riesgo orj JOIN riesgo_tecnico rt ON rt.id=orj.riesgo_tecnico_id
WHERE orj.obra_id=? ORDER BY rt.nro_riesgo ASC`, obraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ObraRiesgo{}
	for rows.Next() {
		var link domain.ObraRiesgo
		var rt domain.RiesgoTecnico
		var baja sql.NullString
		if err := rows.Scan(&link.ID, &rt.ID, &rt.NroRiesgo, &rt.Naturaleza, &rt.PropuestaSolucion,
			&rt.MedidasMitigacion, &rt.AccionesEjecutadas, &rt.FechaAlta, &baja); err != nil {
			return nil, err
		}
		rt.FechaBaja = strPtr(baja)
		link.RiesgoTecnico = &rt
		res = append(res, link)
	}
	return res, rows.Err()
}

// ListRiesgoIDsPorObra returns the ids of the riesgos currently associated.
func (r Repo) ListRiesgoIDsPorObra(ctx context.Context, obraID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT riesgo_tecnico_id FROM obra_riesgo WHERE obra_id=?`, obraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) AddObraRiesgo(ctx context.Context, tx *sql.Tx, obraID, riesgoID int64) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO obra_riesgo(obra_id,riesgo_tecnico_id) VALUES (?,?)`, obraID, riesgoID)
	return err
}

func (r Repo) RemoveObraRiesgo(ctx context.Context, tx *sql.Tx, obraID, riesgoID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM obra_riesgo WHERE obra_id=? AND riesgo_tecnico_id=?`, obraID, riesgoID)
	return err
}

// State history

// ListHistorial returns the obra's state intervals ordered by start
// timestamp ascending, ties broken by insertion order.
func (r Repo) ListHistorial(ctx context.Context, obraID int64) ([]domain.ObraEstadoObra, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT oe.id,oe.fecha_hora_inicio,oe.fecha_hora_fin,
e.id,e.nombre_estado_obra,e.fecha_alta,e.fecha_baja
FROM obra_estado_obra oe JOIN estado_obra e ON e.id=oe.estado_obra_id
WHERE oe.obra_id=? ORDER BY oe.fecha_hora_inicio ASC, oe.id ASC`, obraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ObraEstadoObra{}
	for rows.Next() {
		var in domain.ObraEstadoObra
		var e domain.EstadoObra
		var fin, eBaja sql.NullString
		if err := rows.Scan(&in.ID, &in.FechaHoraInicio, &fin, &e.ID, &e.Nombre, &e.FechaAlta, &eBaja); err != nil {
			return nil, err
		}
		in.FechaHoraFin = strPtr(fin)
		e.FechaBaja = strPtr(eBaja)
		in.EstadoObra = &e
		res = append(res, in)
	}
	return res, rows.Err()
}

// CerrarIntervalosAbiertos stamps the end timestamp on every open interval
// of the obra. The invariant allows at most one, the plural form keeps the
// operation idempotent against historic data.
func (r Repo) CerrarIntervalosAbiertos(ctx context.Context, tx *sql.Tx, obraID int64, fin string) error {
	_, err := tx.ExecContext(ctx, `UPDATE obra_estado_obra SET fecha_hora_fin=? WHERE obra_id=? AND fecha_hora_fin IS NULL`, fin, obraID)
	return err
}

// AbrirIntervalo opens a new state interval for the obra.
func (r Repo) AbrirIntervalo(ctx context.Context, tx *sql.Tx, obraID, estadoID int64, inicio string) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO obra_estado_obra(obra_id,estado_obra_id,fecha_hora_inicio) VALUES (?,?,?)`,
		obraID, estadoID, inicio)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
