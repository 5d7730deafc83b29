package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gestionobras/internal/config"
	"gestionobras/internal/db"
	"gestionobras/internal/domain"
	"gestionobras/internal/engine"
	"gestionobras/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.SeedCatalogos(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

// crearObraBase creates a departamento, localidad and obra for tests that
// need a baseline record.
func crearObraBase(t *testing.T, env testEnv, nro int64) domain.Obra {
	t.Helper()
	dep, err := env.Engine.CrearDepartamento(env.Ctx, "Capital")
	if err != nil {
		var r engine.Rechazo
		if !errors.As(err, &r) {
			t.Fatalf("crear departamento: %v", err)
		}
		deps, _ := env.Engine.ListDepartamentos(env.Ctx, false)
		dep = deps[0]
	}
	loc, err := env.Engine.CrearLocalidad(env.Ctx, "Centro", dep.ID)
	if err != nil {
		t.Fatalf("crear localidad: %v", err)
	}
	o, err := env.Engine.CrearObra(env.Ctx, engine.ObraCreateOptions{
		NroObra:         nro,
		Nombre:          "Pavimentación Av. Principal",
		TiempoEjecucion: 12,
		AnioEjecucion:   2024,
		FechaInicio:     "2024-06-01",
		InversionFinal:  250000,
		LocalidadID:     loc.ID,
	})
	if err != nil {
		t.Fatalf("crear obra: %v", err)
	}
	return o
}

func esRechazo(err error) bool {
	var r engine.Rechazo
	return errors.As(err, &r)
}

func estadoPorNombre(t *testing.T, env testEnv, nombre string) domain.EstadoObra {
	t.Helper()
	estados, err := env.Engine.ListEstadosObra(env.Ctx, false)
	if err != nil {
		t.Fatalf("listar estados: %v", err)
	}
	for _, e := range estados {
		if e.Nombre == nombre {
			return e
		}
	}
	t.Fatalf("estado %s not seeded", nombre)
	return domain.EstadoObra{}
}

func TestCrearObraAbreEstadoInicial(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 100)
	if len(o.EstadoObras) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(o.EstadoObras))
	}
	actual := o.EstadoActual()
	if actual == nil || actual.EstadoObra.Nombre != "Planificacion" {
		t.Fatalf("expected open Planificacion interval, got %+v", actual)
	}
	if !o.Editable() {
		t.Fatalf("fresh obra should be editable")
	}
}

func TestCambiarEstadoCierraYAbre(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 101)
	ejecucion := estadoPorNombre(t, env, "En Ejecucion")

	o2, err := env.Engine.CambiarEstado(env.Ctx, o.ID, ejecucion.ID)
	if err != nil {
		t.Fatalf("cambiar estado: %v", err)
	}
	if len(o2.EstadoObras) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(o2.EstadoObras))
	}
	abiertos := 0
	for _, in := range o2.EstadoObras {
		if in.FechaHoraFin == nil {
			abiertos++
			if in.EstadoObra.ID != ejecucion.ID {
				t.Fatalf("open interval should be the new estado")
			}
		}
	}
	if abiertos != 1 {
		t.Fatalf("expected exactly 1 open interval, got %d", abiertos)
	}

	// same-state request is a no-op
	o3, err := env.Engine.CambiarEstado(env.Ctx, o.ID, ejecucion.ID)
	if err != nil {
		t.Fatalf("no-op transition: %v", err)
	}
	if len(o3.EstadoObras) != 2 {
		t.Fatalf("no-op should not grow history, got %d intervals", len(o3.EstadoObras))
	}
}

func TestObraFinalizadaNoEditable(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 102)
	final := estadoPorNombre(t, env, "Finalizada")

	o2, err := env.Engine.CambiarEstado(env.Ctx, o.ID, final.ID)
	if err != nil {
		t.Fatalf("finalizar: %v", err)
	}
	if o2.Editable() {
		t.Fatalf("finalizada obra must not be editable")
	}

	_, err = env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		Nombre: domain.Some("Nuevo nombre"),
	})
	if !esRechazo(err) {
		t.Fatalf("expected rechazo on update, got %v", err)
	}
	planif := estadoPorNombre(t, env, "Planificacion")
	_, err = env.Engine.CambiarEstado(env.Ctx, o.ID, planif.ID)
	if !esRechazo(err) {
		t.Fatalf("expected rechazo on transition, got %v", err)
	}
}

func TestNroObraUnicoEntreActivas(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 103)

	locs, _ := env.Engine.ListLocalidades(env.Ctx, false)
	_, err := env.Engine.CrearObra(env.Ctx, engine.ObraCreateOptions{
		NroObra:         103,
		Nombre:          "Duplicada",
		TiempoEjecucion: 6,
		AnioEjecucion:   2024,
		FechaInicio:     "2024-06-01",
		InversionFinal:  100000,
		LocalidadID:     locs[0].ID,
	})
	if !esRechazo(err) {
		t.Fatalf("expected rechazo for duplicate nro, got %v", err)
	}

	// a retired obra releases its number
	if err := env.Engine.BajaObra(env.Ctx, o.ID); err != nil {
		t.Fatalf("baja: %v", err)
	}
	if _, err := env.Engine.CrearObra(env.Ctx, engine.ObraCreateOptions{
		NroObra:         103,
		Nombre:          "Reutiliza el número",
		TiempoEjecucion: 6,
		AnioEjecucion:   2024,
		FechaInicio:     "2024-06-01",
		InversionFinal:  100000,
		LocalidadID:     locs[0].ID,
	}); err != nil {
		t.Fatalf("expected reuse after baja: %v", err)
	}
}

func TestBajaObraEsRechazadaSiYaDadaDeBaja(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 104)
	if err := env.Engine.BajaObra(env.Ctx, o.ID); err != nil {
		t.Fatalf("baja: %v", err)
	}
	if err := env.Engine.BajaObra(env.Ctx, o.ID); !esRechazo(err) {
		t.Fatalf("expected rechazo on second baja, got %v", err)
	}
	// retired obra is hidden from the active getter
	if _, err := env.Engine.GetObra(env.Ctx, o.ID); err == nil {
		t.Fatalf("expected not found for retired obra")
	}
	// but still present in the full listing
	p, err := env.Engine.ListObras(env.Ctx, 0, 10, true)
	if err != nil || p.Total != 1 {
		t.Fatalf("expected 1 obra in full listing, got %d (%v)", p.Total, err)
	}
	pActivas, err := env.Engine.ListObras(env.Ctx, 0, 10, false)
	if err != nil || pActivas.Total != 0 {
		t.Fatalf("expected empty active listing, got %d (%v)", pActivas.Total, err)
	}
}

func TestActualizacionParcialNoTocaCamposOmitidos(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 105)

	o2, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		InversionFinal: domain.Some(1500000.0),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if o2.InversionFinal != 1500000.0 {
		t.Fatalf("inversion not applied")
	}
	if o2.Nombre != o.Nombre || o2.NroObra != o.NroObra || o2.FechaInicio != o.FechaInicio {
		t.Fatalf("omitted fields changed: %+v", o2)
	}
}

func TestPlanSeEjecutaSigueElCicloDeVida(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 106)

	rubro, err := env.Engine.CrearRubro(env.Ctx, "Vialidad")
	if err != nil {
		t.Fatalf("crear rubro: %v", err)
	}
	plan, err := env.Engine.CrearPlan(env.Ctx, engine.PlanOptions{
		Nombre:            "Plan vial 2024",
		MesesEstudio:      3,
		InversionEstimada: 900000,
		TiempoEstimado:    18,
		Prioridad:         domain.PrioridadUno,
		RubroID:           rubro.ID,
	})
	if err != nil {
		t.Fatalf("crear plan: %v", err)
	}
	if plan.SeEjecuta {
		t.Fatalf("new plan must not be in execution")
	}

	// attach: the flag turns on
	o2, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		PlanProyectoID: domain.Some(plan.ID),
	})
	if err != nil {
		t.Fatalf("attach plan: %v", err)
	}
	if o2.PlanProyecto == nil || !o2.PlanProyecto.SeEjecuta {
		t.Fatalf("expected seEjecuta true after attach")
	}

	// a plan in use cannot be retired
	if err := env.Engine.BajaPlan(env.Ctx, plan.ID); !esRechazo(err) {
		t.Fatalf("expected rechazo for plan in use, got %v", err)
	}

	// explicit null detaches and releases the flag
	o3, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		PlanProyectoID: domain.Null[int64](),
	})
	if err != nil {
		t.Fatalf("detach plan: %v", err)
	}
	if o3.PlanProyecto != nil {
		t.Fatalf("plan should be detached")
	}
	plan2, err := env.Engine.GetPlan(env.Ctx, plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if plan2.SeEjecuta {
		t.Fatalf("expected seEjecuta released after detach")
	}

	// re-attach, then the obra's baja releases it again
	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		PlanProyectoID: domain.Some(plan.ID),
	}); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if err := env.Engine.BajaObra(env.Ctx, o.ID); err != nil {
		t.Fatalf("baja obra: %v", err)
	}
	plan3, _ := env.Engine.GetPlan(env.Ctx, plan.ID)
	if plan3.SeEjecuta {
		t.Fatalf("expected seEjecuta released after obra baja")
	}
}

func TestRiesgosReemplazoDeConjunto(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 107)

	r1, err := env.Engine.CrearRiesgo(env.Ctx, engine.RiesgoOptions{NroRiesgo: 1, Naturaleza: "Geológico"})
	if err != nil {
		t.Fatalf("riesgo 1: %v", err)
	}
	r2, err := env.Engine.CrearRiesgo(env.Ctx, engine.RiesgoOptions{NroRiesgo: 2, Naturaleza: "Hidráulico"})
	if err != nil {
		t.Fatalf("riesgo 2: %v", err)
	}

	o2, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		RiesgoIDs: domain.Some([]int64{r1.ID, r2.ID}),
	})
	if err != nil || len(o2.ObraRiesgos) != 2 {
		t.Fatalf("expected 2 riesgos, got %d (%v)", len(o2.ObraRiesgos), err)
	}

	// an associated riesgo cannot be retired
	if err := env.Engine.BajaRiesgo(env.Ctx, r1.ID); !esRechazo(err) {
		t.Fatalf("expected rechazo for riesgo in use, got %v", err)
	}

	o3, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		RiesgoIDs: domain.Some([]int64{r2.ID}),
	})
	if err != nil || len(o3.ObraRiesgos) != 1 {
		t.Fatalf("expected 1 riesgo after replacement, got %d (%v)", len(o3.ObraRiesgos), err)
	}
	if o3.ObraRiesgos[0].RiesgoTecnico.ID != r2.ID {
		t.Fatalf("wrong riesgo kept")
	}
	// detached riesgo can now be retired
	if err := env.Engine.BajaRiesgo(env.Ctx, r1.ID); err != nil {
		t.Fatalf("baja riesgo: %v", err)
	}
}

func TestNroRiesgoUnico(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CrearRiesgo(env.Ctx, engine.RiesgoOptions{NroRiesgo: 7, Naturaleza: "Estructural"}); err != nil {
		t.Fatalf("crear: %v", err)
	}
	if _, err := env.Engine.CrearRiesgo(env.Ctx, engine.RiesgoOptions{NroRiesgo: 7, Naturaleza: "Otro"}); !esRechazo(err) {
		t.Fatalf("expected rechazo for duplicate nro riesgo, got %v", err)
	}
	existe, err := env.Engine.ExisteNroRiesgo(env.Ctx, 7)
	if err != nil || !existe {
		t.Fatalf("expected nro 7 to exist (%v)", err)
	}
}

func TestGuardasDeBajaEnCatalogos(t *testing.T) {
	env := newTestEnv(t)
	dep, err := env.Engine.CrearDepartamento(env.Ctx, "Norte")
	if err != nil {
		t.Fatalf("dep: %v", err)
	}
	loc, err := env.Engine.CrearLocalidad(env.Ctx, "Villa Norte", dep.ID)
	if err != nil {
		t.Fatalf("loc: %v", err)
	}
	if err := env.Engine.BajaDepartamento(env.Ctx, dep.ID); !esRechazo(err) {
		t.Fatalf("expected rechazo while localidad active, got %v", err)
	}
	if err := env.Engine.BajaLocalidad(env.Ctx, loc.ID); err != nil {
		t.Fatalf("baja localidad: %v", err)
	}
	if err := env.Engine.BajaDepartamento(env.Ctx, dep.ID); err != nil {
		t.Fatalf("baja departamento after localidad retired: %v", err)
	}

	// an estado referenced by an active obra cannot be retired
	_ = crearObraBase(t, env, 108)
	planif := estadoPorNombre(t, env, "Planificacion")
	if err := env.Engine.BajaEstadoObra(env.Ctx, planif.ID); !esRechazo(err) {
		t.Fatalf("expected rechazo for estado in use, got %v", err)
	}
}

func TestNombreDepartamentoUnicoEntreActivos(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CrearDepartamento(env.Ctx, "Sur"); err != nil {
		t.Fatalf("crear: %v", err)
	}
	if _, err := env.Engine.CrearDepartamento(env.Ctx, "sur"); !esRechazo(err) {
		t.Fatalf("expected case-insensitive duplicate rejection, got %v", err)
	}
}

func TestEventosSeRegistranConLasMutaciones(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 109)
	ejecucion := estadoPorNombre(t, env, "En Ejecucion")
	if _, err := env.Engine.CambiarEstado(env.Ctx, o.ID, ejecucion.ID); err != nil {
		t.Fatalf("cambiar: %v", err)
	}
	eventos, err := env.Engine.ListEventos(env.Ctx, 50, "obra", o.ID)
	if err != nil {
		t.Fatalf("list eventos: %v", err)
	}
	if len(eventos) < 2 {
		t.Fatalf("expected creation + transition events, got %d", len(eventos))
	}
	if eventos[0].Tipo != "obra.estado_cambiado" {
		t.Fatalf("expected newest event first, got %s", eventos[0].Tipo)
	}
}

func TestSeedCatalogosEsIdempotente(t *testing.T) {
	env := newTestEnv(t)
	// newTestEnv already seeded once; a second run must not duplicate
	if err := env.Engine.SeedCatalogos(env.Ctx); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	estados, err := env.Engine.ListEstadosObra(env.Ctx, true)
	if err != nil {
		t.Fatalf("listar: %v", err)
	}
	if len(estados) != 5 {
		t.Fatalf("expected the 5 default estados, got %d", len(estados))
	}
}

func TestActualizarPlanEnEjecucionRechazado(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 111)

	rubro, err := env.Engine.CrearRubro(env.Ctx, "Saneamiento")
	if err != nil {
		t.Fatalf("rubro: %v", err)
	}
	opts := engine.PlanOptions{
		Nombre:            "Plan cloacas",
		MesesEstudio:      2,
		InversionEstimada: 400000,
		TiempoEstimado:    10,
		Prioridad:         domain.PrioridadDos,
		RubroID:           rubro.ID,
	}
	plan, err := env.Engine.CrearPlan(env.Ctx, opts)
	if err != nil {
		t.Fatalf("crear plan: %v", err)
	}

	// not in execution yet: updates go through
	opts.Nombre = "Plan cloacas norte"
	if _, err := env.Engine.ActualizarPlan(env.Ctx, plan.ID, opts); err != nil {
		t.Fatalf("update before attach: %v", err)
	}

	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		PlanProyectoID: domain.Some(plan.ID),
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	opts.Nombre = "Plan cloacas sur"
	if _, err := env.Engine.ActualizarPlan(env.Ctx, plan.ID, opts); !esRechazo(err) {
		t.Fatalf("expected rechazo for plan in execution, got %v", err)
	}

	// detaching releases the flag and the plan becomes editable again
	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		PlanProyectoID: domain.Null[int64](),
	}); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if _, err := env.Engine.ActualizarPlan(env.Ctx, plan.ID, opts); err != nil {
		t.Fatalf("update after detach: %v", err)
	}
}

func TestRangosNumericosDeObra(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 112)
	locs, _ := env.Engine.ListLocalidades(env.Ctx, false)

	base := engine.ObraCreateOptions{
		NroObra:         200,
		Nombre:          "Fuera de rango",
		TiempoEjecucion: 12,
		AnioEjecucion:   2024,
		FechaInicio:     "2024-06-01",
		InversionFinal:  100000,
		LocalidadID:     locs[0].ID,
	}
	casos := []struct {
		name   string
		mutate func(*engine.ObraCreateOptions)
	}{
		{"tiempo cero", func(o *engine.ObraCreateOptions) { o.TiempoEjecucion = 0 }},
		{"anio anterior a 2000", func(o *engine.ObraCreateOptions) { o.AnioEjecucion = 1999 }},
		{"inversion negativa", func(o *engine.ObraCreateOptions) { o.InversionFinal = -5 }},
		{"inversion cero", func(o *engine.ObraCreateOptions) { o.InversionFinal = 0 }},
	}
	for _, tc := range casos {
		opts := base
		tc.mutate(&opts)
		if _, err := env.Engine.CrearObra(env.Ctx, opts); !esRechazo(err) {
			t.Errorf("%s: expected rechazo, got %v", tc.name, err)
		}
	}

	// the same bounds hold on update
	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		TiempoEjecucion: domain.Some(0),
	}); !esRechazo(err) {
		t.Errorf("update tiempo cero: expected rechazo, got %v", err)
	}
	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		AnioEjecucion: domain.Some(1999),
	}); !esRechazo(err) {
		t.Errorf("update anio 1999: expected rechazo, got %v", err)
	}
	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		InversionFinal: domain.Some(-1.0),
	}); !esRechazo(err) {
		t.Errorf("update inversion negativa: expected rechazo, got %v", err)
	}
}

func TestRangosNumericosDePlan(t *testing.T) {
	env := newTestEnv(t)
	rubro, err := env.Engine.CrearRubro(env.Ctx, "Energía")
	if err != nil {
		t.Fatalf("rubro: %v", err)
	}
	base := engine.PlanOptions{
		Nombre:            "Plan eléctrico",
		MesesEstudio:      4,
		InversionEstimada: 200000,
		TiempoEstimado:    8,
		Prioridad:         domain.PrioridadTres,
		RubroID:           rubro.ID,
	}
	casos := []struct {
		name   string
		mutate func(*engine.PlanOptions)
	}{
		{"meses cero", func(p *engine.PlanOptions) { p.MesesEstudio = 0 }},
		{"inversion cero", func(p *engine.PlanOptions) { p.InversionEstimada = 0 }},
		{"tiempo negativo", func(p *engine.PlanOptions) { p.TiempoEstimado = -1 }},
	}
	for _, tc := range casos {
		opts := base
		tc.mutate(&opts)
		if _, err := env.Engine.CrearPlan(env.Ctx, opts); !esRechazo(err) {
			t.Errorf("%s: expected rechazo, got %v", tc.name, err)
		}
	}
	if _, err := env.Engine.CrearPlan(env.Ctx, base); err != nil {
		t.Fatalf("in-range plan rejected: %v", err)
	}
}

func TestDashboardAgregados(t *testing.T) {
	env := newTestEnv(t)
	o := crearObraBase(t, env, 110)
	if _, err := env.Engine.ActualizarObra(env.Ctx, o.ID, engine.ObraUpdateOptions{
		InversionFinal: domain.Some(500000.0),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	stats, err := env.Engine.DashboardStats(env.Ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalObras != 1 || stats.InversionTotal != 500000.0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	porEstado, err := env.Engine.ObrasPorEstado(env.Ctx)
	if err != nil {
		t.Fatalf("por estado: %v", err)
	}
	if len(porEstado) != 1 || porEstado[0].Estado != "Planificacion" || porEstado[0].Cantidad != 1 {
		t.Fatalf("unexpected grouping: %+v", porEstado)
	}

	// retired obras leave the aggregates
	if err := env.Engine.BajaObra(env.Ctx, o.ID); err != nil {
		t.Fatalf("baja: %v", err)
	}
	stats2, _ := env.Engine.DashboardStats(env.Ctx)
	if stats2.TotalObras != 0 || stats2.InversionTotal != 0 {
		t.Fatalf("expected empty stats after baja: %+v", stats2)
	}
}
