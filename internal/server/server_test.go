package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"gestionobras/internal/config"
	"gestionobras/internal/db"
	"gestionobras/internal/engine"
	"gestionobras/internal/migrate"
)

func newTestServer(t *testing.T) string {
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
	eng := engine.New(conn, config.Default())
	if err := eng.SeedCatalogos(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{Engine: eng, BasePath: "/api"})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String() + "/api"
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func dataField(t *testing.T, out map[string]any) map[string]any {
	t.Helper()
	d, ok := out["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data field in %v", out)
	}
	return d
}

func idOf(t *testing.T, out map[string]any) int64 {
	t.Helper()
	id, ok := dataField(t, out)["id"].(float64)
	if !ok {
		t.Fatalf("missing id in %v", out)
	}
	return int64(id)
}

func TestCrearDepartamentoEnvuelveLaRespuesta(t *testing.T) {
	base := newTestServer(t)
	status, out := doJSON(t, http.MethodPost, base+"/departamentos", map[string]any{
		"nombreDepartamento": "Capital",
	})
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if out["success"] != true {
		t.Fatalf("expected success, got %v", out)
	}
	if dataField(t, out)["nombreDepartamento"] != "Capital" {
		t.Fatalf("unexpected data: %v", out)
	}
}

func TestRechazoDeNegocioRespondeDoscientos(t *testing.T) {
	base := newTestServer(t)
	doJSON(t, http.MethodPost, base+"/departamentos", map[string]any{"nombreDepartamento": "Capital"})
	status, out := doJSON(t, http.MethodPost, base+"/departamentos", map[string]any{"nombreDepartamento": "Capital"})
	if status != http.StatusOK {
		t.Fatalf("business rejection must stay 200, got %d", status)
	}
	if out["success"] != false || out["message"] == "" {
		t.Fatalf("expected success=false with message, got %v", out)
	}
}

func TestGetInexistenteDevuelveNotFound(t *testing.T) {
	base := newTestServer(t)
	status, out := doJSON(t, http.MethodGet, base+"/departamentos/999", nil)
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if out["success"] != false || out["message"] != "Not found" {
		t.Fatalf("expected not-found envelope, got %v", out)
	}
}

func TestFlujoCompletoDeObra(t *testing.T) {
	base := newTestServer(t)

	_, dep := doJSON(t, http.MethodPost, base+"/departamentos", map[string]any{"nombreDepartamento": "Capital"})
	depID := idOf(t, dep)
	_, loc := doJSON(t, http.MethodPost, base+"/localidades", map[string]any{
		"nombreLocalidad": "Centro",
		"departamentoId":  depID,
	})
	locID := idOf(t, loc)

	// out-of-range payloads never reach the engine
	status, _ := doJSON(t, http.MethodPost, base+"/obras", map[string]any{
		"nroObra":         42,
		"nombreObra":      "Red cloacal norte",
		"tiempoEjecucion": 0,
		"anioEjecucion":   1999,
		"fechaInicioObra": "2024-03-01",
		"inversionFinal":  -5,
		"localidadId":     locID,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for out-of-range obra, got %d", status)
	}

	status, obra := doJSON(t, http.MethodPost, base+"/obras", map[string]any{
		"nroObra":         42,
		"nombreObra":      "Red cloacal norte",
		"tiempoEjecucion": 18,
		"anioEjecucion":   2024,
		"fechaInicioObra": "2024-03-01",
		"inversionFinal":  600000,
		"localidadId":     locID,
	})
	if status != http.StatusOK || obra["success"] != true {
		t.Fatalf("crear obra: %d %v", status, obra)
	}
	obraID := idOf(t, obra)
	historial, ok := dataField(t, obra)["obraEstadoObras"].([]any)
	if !ok || len(historial) != 1 {
		t.Fatalf("expected initial state interval, got %v", obra)
	}

	// exists check on the taken number
	_, existe := doJSON(t, http.MethodGet, fmt.Sprintf("%s/obras/existe?nro=42", base), nil)
	if dataField(t, existe)["existe"] != true {
		t.Fatalf("expected nro 42 to exist: %v", existe)
	}

	// find the "En Ejecucion" estado id from the seeded catalog
	_, estados := doJSON(t, http.MethodGet, base+"/estados-obra", nil)
	var ejecucionID int64
	for _, raw := range estados["data"].([]any) {
		e := raw.(map[string]any)
		if e["nombreEstadoObra"] == "En Ejecucion" {
			ejecucionID = int64(e["id"].(float64))
		}
	}
	if ejecucionID == 0 {
		t.Fatalf("seeded estado missing: %v", estados)
	}

	_, cambiada := doJSON(t, http.MethodPut, fmt.Sprintf("%s/obras/%d/estado", base, obraID), map[string]any{
		"estadoId": ejecucionID,
	})
	if cambiada["success"] != true {
		t.Fatalf("cambiar estado: %v", cambiada)
	}
	historial = dataField(t, cambiada)["obraEstadoObras"].([]any)
	if len(historial) != 2 {
		t.Fatalf("expected 2 intervals after transition, got %d", len(historial))
	}

	// partial update touches only the sent field
	_, actualizada := doJSON(t, http.MethodPut, fmt.Sprintf("%s/obras/%d", base, obraID), map[string]any{
		"inversionFinal": 750000,
	})
	d := dataField(t, actualizada)
	if d["inversionFinal"] != 750000.0 || d["nombreObra"] != "Red cloacal norte" {
		t.Fatalf("partial update wrong: %v", actualizada)
	}

	// paginated listing shape
	_, pagina := doJSON(t, http.MethodGet, base+"/obras?page=0&size=5", nil)
	if pagina["totalElements"] != 1.0 || pagina["totalPages"] != 1.0 {
		t.Fatalf("unexpected page envelope: %v", pagina)
	}
	if _, ok := pagina["content"].([]any); !ok {
		t.Fatalf("content must be an array: %v", pagina)
	}

	// baja hides the obra from the active listing, second baja is rejected
	_, baja := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/obras/%d", base, obraID), nil)
	if baja["success"] != true {
		t.Fatalf("baja: %v", baja)
	}
	_, pagina = doJSON(t, http.MethodGet, base+"/obras", nil)
	if pagina["totalElements"] != 0.0 {
		t.Fatalf("expected empty active listing, got %v", pagina)
	}
	_, baja2 := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/obras/%d", base, obraID), nil)
	if baja2["success"] != false {
		t.Fatalf("second baja must be rejected: %v", baja2)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	base := newTestServer(t)
	status, stats := doJSON(t, http.MethodGet, base+"/dashboard/stats", nil)
	if status != http.StatusOK || stats["success"] != true {
		t.Fatalf("stats: %d %v", status, stats)
	}
	d := dataField(t, stats)
	if d["totalObras"] != 0.0 {
		t.Fatalf("fresh workspace should have zero obras: %v", d)
	}
	_, porEstado := doJSON(t, http.MethodGet, base+"/dashboard/obras-por-estado", nil)
	if porEstado["success"] != true {
		t.Fatalf("por estado: %v", porEstado)
	}
}

func TestSalud(t *testing.T) {
	base := newTestServer(t)
	status, out := doJSON(t, http.MethodGet, base+"/salud", nil)
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if out["status"] != "ok" {
		t.Fatalf("unexpected salud body: %v", out)
	}
}
