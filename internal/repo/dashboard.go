package repo

import (
	"context"

	"gestionobras/internal/domain"
)

// DashboardStats aggregates the headline counters over active records only.
func (r Repo) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var s domain.DashboardStats
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM obra WHERE fecha_baja IS NULL`).Scan(&s.TotalObras); err != nil {
		return s, err
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_proyecto WHERE fecha_baja IS NULL AND se_ejecuta=1`).Scan(&s.PlanesActivos); err != nil {
		return s, err
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(inversion_final),0) FROM obra WHERE fecha_baja IS NULL`).Scan(&s.InversionTotal); err != nil {
		return s, err
	}
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM riesgo_tecnico WHERE fecha_baja IS NULL AND (acciones_ejecutadas IS NULL OR acciones_ejecutadas='')`).Scan(&s.RiesgosPendientes)
	return s, err
}

// ObrasPorEstado groups active obras by the estado of their open interval.
// Obras without an open interval do not count toward any group.
func (r Repo) ObrasPorEstado(ctx context.Context) ([]domain.ObrasPorEstado, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT e.nombre_estado_obra, COUNT(*)
FROM obra_estado_obra oe
JOIN obra o ON o.id=oe.obra_id
JOIN estado_obra e ON e.id=oe.estado_obra_id
WHERE oe.fecha_hora_fin IS NULL AND o.fecha_baja IS NULL
GROUP BY e.nombre_estado_obra ORDER BY COUNT(*) DESC, e.nombre_estado_obra ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ObrasPorEstado{}
	for rows.Next() {
		var g domain.ObrasPorEstado
		if err := rows.Scan(&g.Estado, &g.Cantidad); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// InversionPorRubro sums the final investment of active obras grouped by the
// rubro of their plan. Obras without a plan are left out.
func (r Repo) InversionPorRubro(ctx context.Context) ([]domain.InversionPorRubro, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT r.nombre_rubro, SUM(o.inversion_final), COUNT(*)
FROM obra o
JOIN plan_proyecto p ON p.id=o.plan_proyecto_id
JOIN rubro r ON r.id=p.rubro_id
WHERE o.fecha_baja IS NULL
GROUP BY r.nombre_rubro ORDER BY SUM(o.inversion_final) DESC, r.nombre_rubro ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.InversionPorRubro{}
	for rows.Next() {
		var g domain.InversionPorRubro
		if err := rows.Scan(&g.Rubro, &g.Inversion, &g.Cantidad); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
