package service

import (
	"context"
	"fmt"
	"strings"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/barcode"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
)

type SupplierPatternInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Pattern     string  `json:"pattern" validate:"required,max=100"`
	SearchURL   string  `json:"search_url" validate:"required,max=500"`
	Description *string `json:"description"`
	Enabled     *bool   `json:"enabled"`
}

type UpdateSupplierPatternInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Pattern     *string          `json:"pattern" validate:"omitempty,min=1,max=100"`
	SearchURL   *string          `json:"search_url" validate:"omitempty,min=1,max=500"`
	Description Optional[string] `json:"description"`
	Enabled     *bool            `json:"enabled"`
}

type SupplierMatch struct {
	Barcode   string                 `json:"barcode"`
	Matched   bool                   `json:"matched"`
	Supplier  *model.SupplierPattern `json:"supplier,omitempty"`
	SearchURL *string                `json:"search_url,omitempty"`
}

type SupplierTestResult struct {
	Pattern string `json:"pattern"`
	Barcode string `json:"barcode"`
	Matches bool   `json:"matches"`
	Message string `json:"message"`
}

// SupplierService resolves scanned barcodes to a supplier's search page.
type SupplierService interface {
	Match(ctx context.Context, code string) (*SupplierMatch, error)
	Test(pattern, code string) *SupplierTestResult

	List(ctx context.Context, enabledOnly bool) ([]model.SupplierPattern, error)
	Get(ctx context.Context, id uuid.UUID) (*model.SupplierPattern, error)
	Create(ctx context.Context, input *SupplierPatternInput, actorID uuid.UUID) (*model.SupplierPattern, error)
	Update(ctx context.Context, id uuid.UUID, input *UpdateSupplierPatternInput, actorID uuid.UUID) (*model.SupplierPattern, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type supplierService struct {
	repo repository.SupplierPatternRepository
}

func NewSupplierService(repo repository.SupplierPatternRepository) SupplierService {
	return &supplierService{repo: repo}
}

// Match returns the first enabled pattern, in name order, whose template
// matches code ignoring case.
func (s *supplierService) Match(ctx context.Context, code string) (*SupplierMatch, error) {
	patterns, err := s.repo.FindAll(ctx, true)
	if err != nil {
		return nil, apperror.Unexpected(err, "list supplier patterns")
	}
	for i := range patterns {
		p := &patterns[i]
		if barcode.MatchesFold(code, p.Pattern) {
			url := p.SearchURLFor(code)
			return &SupplierMatch{Barcode: code, Matched: true, Supplier: p, SearchURL: &url}, nil
		}
	}
	return &SupplierMatch{Barcode: code}, nil
}

func (s *supplierService) Test(pattern, code string) *SupplierTestResult {
	matches := barcode.MatchesFold(code, pattern)
	verdict := "matches"
	if !matches {
		verdict = "does NOT match"
	}
	return &SupplierTestResult{
		Pattern: pattern,
		Barcode: code,
		Matches: matches,
		Message: fmt.Sprintf("Barcode '%s' %s pattern '%s'", code, verdict, pattern),
	}
}

func (s *supplierService) List(ctx context.Context, enabledOnly bool) ([]model.SupplierPattern, error) {
	patterns, err := s.repo.FindAll(ctx, enabledOnly)
	if err != nil {
		return nil, apperror.Unexpected(err, "list supplier patterns")
	}
	return patterns, nil
}

func (s *supplierService) Get(ctx context.Context, id uuid.UUID) (*model.SupplierPattern, error) {
	pattern, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodePatternNotFound, "supplier pattern", id)
	}
	return pattern, nil
}

func (s *supplierService) Create(ctx context.Context, input *SupplierPatternInput, actorID uuid.UUID) (*model.SupplierPattern, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if err := checkTemplate(input.SearchURL); err != nil {
		return nil, err
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	pattern := &model.SupplierPattern{
		Name:        input.Name,
		Pattern:     input.Pattern,
		SearchURL:   input.SearchURL,
		Description: input.Description,
		Enabled:     enabled,
	}
	pattern.CreatedBy = actorName(actorID)
	pattern.UpdatedBy = pattern.CreatedBy
	if err := s.repo.Create(ctx, pattern); err != nil {
		return nil, apperror.Unexpected(err, "create supplier pattern")
	}
	return pattern, nil
}

func (s *supplierService) Update(ctx context.Context, id uuid.UUID, input *UpdateSupplierPatternInput, actorID uuid.UUID) (*model.SupplierPattern, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.SearchURL != nil {
		if err := checkTemplate(*input.SearchURL); err != nil {
			return nil, err
		}
	}
	pattern, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		pattern.Name = *input.Name
	}
	if input.Pattern != nil {
		pattern.Pattern = *input.Pattern
	}
	if input.SearchURL != nil {
		pattern.SearchURL = *input.SearchURL
	}
	if input.Description.Set {
		pattern.Description = input.Description.Value
	}
	if input.Enabled != nil {
		pattern.Enabled = *input.Enabled
	}
	pattern.UpdatedBy = actorName(actorID)
	if err := s.repo.Save(ctx, pattern); err != nil {
		return nil, apperror.Unexpected(err, "update supplier pattern")
	}
	return pattern, nil
}

func (s *supplierService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperror.Unexpected(err, "delete supplier pattern")
	}
	return nil
}

func checkTemplate(searchURL string) error {
	if strings.Contains(searchURL, model.BarcodePlaceholder) {
		return nil
	}
	return apperror.Validation(apperror.CodeInvalidTemplate,
		fmt.Sprintf("search_url must contain %s placeholder", model.BarcodePlaceholder)).
		WithParams(map[string]interface{}{"field": "search_url", "value": searchURL})
}
