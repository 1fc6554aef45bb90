package flow

import "testing"

func TestValidateInput(t *testing.T) {
	schema := []Field{
		{Name: "host", Required: true},
		{Name: "port", Type: FieldInteger},
		{Name: "rate", Type: FieldFloat},
		{Name: "tls", Type: FieldBoolean},
		{Name: "mode", Type: FieldSelect, Options: []string{"auto", "manual"}},
		{Name: "note"},
	}

	tests := []struct {
		name    string
		input   map[string]any
		wantErr bool
	}{
		{
			name:  "minimal valid",
			input: map[string]any{"host": "1.2.3.4"},
		},
		{
			name: "all fields valid",
			input: map[string]any{
				"host": "1.2.3.4",
				"port": 3671,
				"rate": 0.5,
				"tls":  true,
				"mode": "auto",
				"note": "hello",
			},
		},
		{
			name:    "missing required",
			input:   map[string]any{},
			wantErr: true,
		},
		{
			name:    "empty required string",
			input:   map[string]any{"host": ""},
			wantErr: true,
		},
		{
			name:    "nil required",
			input:   map[string]any{"host": nil},
			wantErr: true,
		},
		{
			name:    "integer with fraction",
			input:   map[string]any{"host": "h", "port": 36.71},
			wantErr: true,
		},
		{
			name:  "integer as whole float (json decoding)",
			input: map[string]any{"host": "h", "port": float64(3671)},
		},
		{
			name:    "integer as string",
			input:   map[string]any{"host": "h", "port": "3671"},
			wantErr: true,
		},
		{
			name:    "boolean as string",
			input:   map[string]any{"host": "h", "tls": "yes"},
			wantErr: true,
		},
		{
			name:    "select outside options",
			input:   map[string]any{"host": "h", "mode": "turbo"},
			wantErr: true,
		},
		{
			name:    "select non-string",
			input:   map[string]any{"host": "h", "mode": 3},
			wantErr: true,
		},
		{
			name:  "optional fields omitted",
			input: map[string]any{"host": "h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(schema, tt.input)
			if tt.wantErr {
				if !IsValidationError(err) {
					t.Errorf("ValidateInput() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateInput() error = %v, want nil", err)
			}
		})
	}
}

func TestValidateInput_RequiredMessage(t *testing.T) {
	schema := []Field{{Name: "host", Required: true}}
	err := ValidateInput(schema, map[string]any{})
	if UserMessage(err) != RequiredFieldsMessage {
		t.Errorf("message = %q, want %q", UserMessage(err), RequiredFieldsMessage)
	}
}

func TestValidateInput_FalseAndZeroAreValues(t *testing.T) {
	// Required booleans and numbers accept false/zero; only nil and empty
	// strings count as absent.
	schema := []Field{
		{Name: "tls", Type: FieldBoolean, Required: true},
		{Name: "port", Type: FieldInteger, Required: true},
	}
	err := ValidateInput(schema, map[string]any{"tls": false, "port": 0})
	if err != nil {
		t.Errorf("ValidateInput() error = %v, want nil", err)
	}
}
