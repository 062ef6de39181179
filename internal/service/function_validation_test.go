package service

import "testing"

func TestValidateRegisterFunctionRequest_RuntimeRequired(t *testing.T) {
	req := &RegisterFunctionRequest{Code: "def main(e): return e"}
	if err := validateRegisterFunctionRequest(req); !IsValidationError(err) {
		t.Fatalf("expected validation error for missing runtime, got %v", err)
	}
}

func TestValidateRegisterFunctionRequest_UnsupportedRuntime(t *testing.T) {
	req := &RegisterFunctionRequest{Runtime: "ruby3.2", Code: "dummy"}
	if err := validateRegisterFunctionRequest(req); !IsValidationError(err) {
		t.Fatalf("expected validation error for unsupported runtime, got %v", err)
	}
}

func TestValidateRegisterFunctionRequest_CodeRequired(t *testing.T) {
	req := &RegisterFunctionRequest{Runtime: "python3.11"}
	if err := validateRegisterFunctionRequest(req); !IsValidationError(err) {
		t.Fatalf("expected validation error for missing code, got %v", err)
	}
}

func TestValidateRegisterFunctionRequest_EntrypointByRuntime(t *testing.T) {
	tests := []struct {
		runtime    string
		entrypoint string
		valid      bool
	}{
		{runtime: "python3.11", entrypoint: "handler.main", valid: true},
		{runtime: "python3.11", entrypoint: "main", valid: true},
		{runtime: "nodejs20.x", entrypoint: "index.handler", valid: true},
		{runtime: "go1.x", entrypoint: "main", valid: true},
		{runtime: "go1.x", entrypoint: "pkg.main", valid: false},
	}

	for _, tt := range tests {
		req := &RegisterFunctionRequest{Runtime: tt.runtime, Entrypoint: tt.entrypoint, Code: "dummy"}
		err := validateRegisterFunctionRequest(req)
		if tt.valid && err != nil {
			t.Fatalf("expected entrypoint %q for runtime %q to be valid, got %v", tt.entrypoint, tt.runtime, err)
		}
		if !tt.valid && err == nil {
			t.Fatalf("expected entrypoint %q for runtime %q to be invalid", tt.entrypoint, tt.runtime)
		}
	}
}

func TestValidateRegisterFunctionRequest_DefaultEntrypoint(t *testing.T) {
	tests := []struct {
		runtime string
		want    string
	}{
		{runtime: "python3.11", want: "handler.main"},
		{runtime: "nodejs20.x", want: "index.handler"},
		{runtime: "go1.x", want: "main"},
	}

	for _, tt := range tests {
		req := &RegisterFunctionRequest{Runtime: tt.runtime, Code: "dummy"}
		if err := validateRegisterFunctionRequest(req); err != nil {
			t.Fatalf("unexpected validation error for runtime %q: %v", tt.runtime, err)
		}
		if req.Entrypoint != tt.want {
			t.Fatalf("runtime %q default entrypoint = %q, want %q", tt.runtime, req.Entrypoint, tt.want)
		}
	}
}
