package domain

import (
	"testing"
	"time"
)

func TestServiceRecordStateProgression(t *testing.T) {
	record := &ServiceRecord{ID: "svc", OriginChatID: 7, CreatedAt: time.Now()}
	if got := record.State(); got != StateCollecting {
		t.Fatalf("empty record should be collecting, got %s", got)
	}

	record.Messages = []string{"976076", "JEEP PATRIOT 2012 Negro"}
	if got := record.State(); got != StateCollecting {
		t.Fatalf("one half should still be collecting, got %s", got)
	}

	record.MapURL = "https://maps.app.goo.gl/abc"
	record.Coordinates = []string{"19.38601,-99.10661"}
	if !record.Complete() {
		t.Fatalf("both halves present, expected complete")
	}
	if got := record.State(); got != StateAwaitingTiming {
		t.Fatalf("complete record should await timing, got %s", got)
	}

	record.HasTimings = true
	if got := record.State(); got != StateReady {
		t.Fatalf("timed record should be ready, got %s", got)
	}

	record.Decision = Decision{State: DecisionTaken, By: "Ana", Minutes: 90}
	if got := record.State(); got != StateTaken {
		t.Fatalf("decision must dominate, got %s", got)
	}
	if !record.Decided() {
		t.Fatalf("expected decided")
	}
}

func TestServiceRecordClone(t *testing.T) {
	record := &ServiceRecord{
		ID:          "svc",
		Messages:    []string{"a", "b"},
		Coordinates: []string{"1.0,2.0"},
	}
	clone := record.Clone()
	clone.Messages[0] = "mutated"
	clone.Coordinates[0] = "3.0,4.0"

	if record.Messages[0] != "a" || record.Coordinates[0] != "1.0,2.0" {
		t.Fatalf("clone must not share slices with the original")
	}
}

func TestNewServiceID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	if got := NewServiceID(7, now); got != "service_1700000000000_7" {
		t.Fatalf("unexpected service id %q", got)
	}
}

func TestExtractedServiceMessages(t *testing.T) {
	full := ExtractedService{
		Expediente:  "976076",
		Vehiculo:    "JEEP PATRIOT 2012 Negro",
		Placas:      "ABC1234",
		Cliente:     "Juan Pérez",
		Cuenta:      "CHUBB",
		EntreCalles: "Av. Central y Norte 5",
		Referencia:  "Frente a la gasolinera",
	}
	messages := full.Messages()
	if len(messages) != 7 {
		t.Fatalf("expected 7 positional messages, got %d", len(messages))
	}
	if messages[0] != "976076" || messages[1] != "JEEP PATRIOT 2012 Negro" {
		t.Fatalf("unexpected field order: %v", messages)
	}

	empty := ExtractedService{}.Messages()
	want := []string{
		"No se encontró expediente",
		"No se encontraron datos del vehículo",
		"No se encontraron placas",
		"No se encontró usuario",
		"CHUBB",
		"No hay entre calles",
		"No hay referencia",
	}
	for i := range want {
		if empty[i] != want[i] {
			t.Fatalf("placeholder %d: got %q, want %q", i, empty[i], want[i])
		}
	}
}
