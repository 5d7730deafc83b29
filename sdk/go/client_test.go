package obrassdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func ptr(s string) *string { return &s }

func envelope(w http.ResponseWriter, data any, success bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data":    data,
		"message": message,
		"success": success,
	})
}

func TestSelectorLocalidadFiltraBajasYDepartamento(t *testing.T) {
	capital := &Departamento{ID: 1, Nombre: "Capital"}
	norte := &Departamento{ID: 2, Nombre: "Norte"}
	localidades := []Localidad{
		{ID: 10, Nombre: "Centro", Departamento: capital},
		{ID: 11, Nombre: "Oeste", Departamento: capital, FechaBaja: ptr("2024-01-01T00:00:00Z")},
		{ID: 12, Nombre: "Villa Norte", Departamento: norte},
		{ID: 13, Nombre: "Sin departamento"},
	}
	res := SelectorLocalidad(localidades, 1)
	if len(res) != 1 || res[0].ID != 10 {
		t.Fatalf("expected only active Centro, got %+v", res)
	}
	if got := SelectorLocalidad(localidades, 99); len(got) != 0 {
		t.Fatalf("unknown departamento must yield empty, got %+v", got)
	}
}

func TestNewInitializesHTTPClient(t *testing.T) {
	c := New("http://localhost:8080/api")
	if c.HTTPClient == nil {
		t.Fatal("New must hand out a ready HTTP client; do() never mutates a shared Client")
	}
}

func TestRechazoSurfacesAsRechazoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, nil, false, "Ya existe un departamento con el nombre Capital")
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	_, err := c.CrearDepartamento(context.Background(), "Capital")
	var rechazo *RechazoError
	if !errors.As(err, &rechazo) {
		t.Fatalf("expected RechazoError, got %v", err)
	}
	if rechazo.Motivo != "Ya existe un departamento con el nombre Capital" {
		t.Fatalf("wrong motive: %s", rechazo.Motivo)
	}
}

func TestAPIErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	_, err := c.Departamentos(context.Background(), false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected APIError 500, got %v", err)
	}
}

func TestCambiarEstadoOmiteElNoOp(t *testing.T) {
	var puts int64
	obra := Obra{
		ID:      5,
		NroObra: 42,
		Nombre:  "Red cloacal",
		EstadoObras: []ObraEstadoObra{
			{ID: 1, EstadoObra: &EstadoObra{ID: 3, Nombre: "En Ejecucion"}, FechaHoraInicio: "2024-03-01T00:00:00Z"},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			envelope(w, obra, true, "")
		case r.Method == http.MethodPut:
			atomic.AddInt64(&puts, 1)
			envelope(w, obra, true, "")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	// same estado: the PUT never happens
	got, err := c.CambiarEstado(context.Background(), 5, 3)
	if err != nil {
		t.Fatalf("cambiar estado: %v", err)
	}
	if got.ID != 5 {
		t.Fatalf("unexpected obra: %+v", got)
	}
	if atomic.LoadInt64(&puts) != 0 {
		t.Fatalf("no-op transition must not PUT")
	}
	// different estado: the PUT goes out
	if _, err := c.CambiarEstado(context.Background(), 5, 4); err != nil {
		t.Fatalf("cambiar estado: %v", err)
	}
	if atomic.LoadInt64(&puts) != 1 {
		t.Fatalf("expected exactly one PUT, got %d", puts)
	}
}

func TestObrasParseaLaPagina(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("todas") != "true" {
			t.Errorf("expected todas=true in %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content":       []Obra{{ID: 1, NroObra: 7, Nombre: "Puente"}},
			"page":          0,
			"size":          10,
			"totalElements": 1,
			"totalPages":    1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	p, err := c.Obras(context.Background(), 0, 10, true)
	if err != nil {
		t.Fatalf("obras: %v", err)
	}
	if p.TotalElements != 1 || len(p.Content) != 1 || p.Content[0].NroObra != 7 {
		t.Fatalf("unexpected page: %+v", p)
	}
}

func TestEditable(t *testing.T) {
	abierta := func(nombre string) []ObraEstadoObra {
		return []ObraEstadoObra{{EstadoObra: &EstadoObra{Nombre: nombre}, FechaHoraInicio: "2024-01-01T00:00:00Z"}}
	}
	cases := []struct {
		name string
		obra Obra
		want bool
	}{
		{"activa en ejecucion", Obra{EstadoObras: abierta("En Ejecucion")}, true},
		{"finalizada", Obra{EstadoObras: abierta("Finalizada")}, false},
		{"finalizada en minusculas", Obra{EstadoObras: abierta("finalizada")}, false},
		{"sin historial", Obra{}, true},
		{"dada de baja", Obra{FechaBaja: ptr("2024-01-01T00:00:00Z"), EstadoObras: abierta("En Ejecucion")}, false},
	}
	for _, tc := range cases {
		if got := tc.obra.Editable(); got != tc.want {
			t.Errorf("%s: Editable()=%v, want %v", tc.name, got, tc.want)
		}
	}
}
