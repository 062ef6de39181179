// Package service validates and registers function records ahead of the
// registry write, the same responsibility the teacher's FunctionService
// carries for its much larger AWS-Lambda-shaped create-function request.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/barq/internal/codearchive"
	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/registry"
)

// FunctionService registers and updates function records in the registry,
// applying the validation rules in function_validation.go before any
// record reaches storage.
type FunctionService struct {
	registry registry.MetadataStore
	archiver *codearchive.Archiver
}

func NewFunctionService(reg registry.MetadataStore) *FunctionService {
	return &FunctionService{registry: reg}
}

// WithArchiver attaches an optional S3 code archiver; a nil archiver (S3
// not configured) leaves RegisterFunction unaffected.
func (s *FunctionService) WithArchiver(a *codearchive.Archiver) *FunctionService {
	s.archiver = a
	return s
}

// RegisterFunctionRequest is the HTTP-layer request to create a function.
type RegisterFunctionRequest struct {
	FuncID     string
	Runtime    string
	Entrypoint string
	Code       string
}

// RegisterFunction validates req and persists a new function record. A
// caller-supplied FuncID is honored (upsert); an empty one is generated.
func (s *FunctionService) RegisterFunction(ctx context.Context, req RegisterFunctionRequest) (*domain.Function, error) {
	if err := validateRegisterFunctionRequest(&req); err != nil {
		return nil, err
	}

	if req.FuncID == "" {
		req.FuncID = uuid.NewString()
	}

	fn := &domain.Function{
		ID:         req.FuncID,
		Runtime:    domain.Runtime(req.Runtime),
		Entrypoint: req.Entrypoint,
		Code:       req.Code,
		CreatedAt:  time.Now(),
	}

	if err := s.registry.SaveFunction(ctx, fn); err != nil {
		return nil, fmt.Errorf("service: save function: %w", err)
	}
	s.archiver.ArchiveAsync(fn.ID, fn.Code)
	return fn, nil
}

func (s *FunctionService) GetFunction(ctx context.Context, id string) (*domain.Function, error) {
	return s.registry.GetFunction(ctx, id)
}

func (s *FunctionService) DeleteFunction(ctx context.Context, id string) error {
	return s.registry.DeleteFunction(ctx, id)
}

func (s *FunctionService) ListFunctions(ctx context.Context) ([]*domain.Function, error) {
	return s.registry.ListFunctions(ctx)
}
