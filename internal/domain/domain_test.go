package domain

import (
	"encoding/json"
	"testing"
)

func TestOptionalTriState(t *testing.T) {
	type payload struct {
		Nombre Optional[string] `json:"nombre,omitempty"`
		Plan   Optional[int64]  `json:"plan,omitempty"`
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"nombre":"Puente"}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.Nombre.Set || !p.Nombre.Valid || p.Nombre.Value != "Puente" {
		t.Fatalf("present value: %+v", p.Nombre)
	}
	if p.Plan.Set {
		t.Fatalf("absent field must stay unset: %+v", p.Plan)
	}

	p = payload{}
	if err := json.Unmarshal([]byte(`{"plan":null}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.Plan.Set || p.Plan.Valid {
		t.Fatalf("explicit null must be set and invalid: %+v", p.Plan)
	}
}

func TestEstadoActualDevuelveElIntervaloAbierto(t *testing.T) {
	fin := "2024-02-01T00:00:00Z"
	o := Obra{EstadoObras: []ObraEstadoObra{
		{ID: 1, EstadoObra: &EstadoObra{Nombre: "Planificacion"}, FechaHoraInicio: "2024-01-01T00:00:00Z", FechaHoraFin: &fin},
		{ID: 2, EstadoObra: &EstadoObra{Nombre: "En Ejecucion"}, FechaHoraInicio: fin},
	}}
	actual := o.EstadoActual()
	if actual == nil || actual.ID != 2 {
		t.Fatalf("expected the open interval, got %+v", actual)
	}

	vacia := Obra{}
	if vacia.EstadoActual() != nil {
		t.Fatalf("empty history has no current state")
	}
}

func TestEditable(t *testing.T) {
	baja := "2024-03-01T00:00:00Z"
	abierta := func(nombre string) []ObraEstadoObra {
		return []ObraEstadoObra{{EstadoObra: &EstadoObra{Nombre: nombre}, FechaHoraInicio: "2024-01-01T00:00:00Z"}}
	}
	cases := []struct {
		name string
		obra Obra
		want bool
	}{
		{"activa", Obra{EstadoObras: abierta("En Ejecucion")}, true},
		{"finalizada", Obra{EstadoObras: abierta("Finalizada")}, false},
		{"finalizada distinto case", Obra{EstadoObras: abierta("FINALIZADA")}, false},
		{"sin historial", Obra{}, true},
		{"dada de baja", Obra{FechaBaja: &baja, EstadoObras: abierta("En Ejecucion")}, false},
	}
	for _, tc := range cases {
		if got := tc.obra.Editable(); got != tc.want {
			t.Errorf("%s: Editable()=%v, want %v", tc.name, got, tc.want)
		}
	}
}
