package service

import "testing"

func TestCleanLLMJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"sin fences", `{"a": 1}`, `{"a": 1}`},
		{"fence json", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence generico", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"espacios", "   {\"a\": 1}   ", `{"a": 1}`},
		{"con bom", "\uFEFF{\"a\": 1}", `{"a": 1}`},
		{"bom y fence", "\uFEFF```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"vacio", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanLLMJSONResponse(tt.raw); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"objeto limpio", `{"a": 1}`, `{"a": 1}`},
		{"con prologo", `Claro, aqui tienes: {"a": 1} espero que sirva`, `{"a": 1}`},
		{"anidado", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"llaves dentro de string", `{"a": "con } dentro"}`, `{"a": "con } dentro"}`},
		{"escape en string", `{"a": "cita: \" y barra \\"}`, `{"a": "cita: \" y barra \\"}`},
		{"sin objeto", "texto plano", ""},
		{"sin cierre", `{"a": 1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractFirstJSONObject(tt.input); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONCandidateFencedAndDirty(t *testing.T) {
	raw := "```json\nEl resultado es {\"valence\": 0.3, \"intensity\": 0.8} segun el texto\n```"
	want := `{"valence": 0.3, "intensity": 0.8}`
	if got := extractJSONCandidate(raw); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
