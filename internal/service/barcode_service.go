package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/barcode"

	"gorm.io/gorm"
)

type PatternTestResult struct {
	Pattern    string `json:"pattern"`
	Barcode    string `json:"barcode"`
	Matches    bool   `json:"matches"`
	IsInternal bool   `json:"is_internal"`
	Message    string `json:"message"`
}

type PatternInfo struct {
	Pattern     string   `json:"pattern"`
	Regex       string   `json:"regex"`
	Examples    []string `json:"examples"`
	Description string   `json:"description"`
}

type BarcodeClass struct {
	Barcode      string `json:"barcode"`
	Pattern      string `json:"pattern"`
	IsInternal   bool   `json:"is_internal"`
	ShouldLookup bool   `json:"should_lookup"`
}

// BarcodeService owns the runtime settings that decide whether a scanned
// code is internal or should be looked up in external catalogs.
type BarcodeService interface {
	Settings(ctx context.Context) ([]model.Setting, error)
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	UpdateSetting(ctx context.Context, key, value string) (*model.Setting, error)

	TestPattern(pattern, code string) *PatternTestResult
	PatternInfo(pattern string) *PatternInfo
	Classify(ctx context.Context, code string) (*BarcodeClass, error)
}

type barcodeService struct {
	repo repository.SettingRepository
}

func NewBarcodeService(repo repository.SettingRepository) BarcodeService {
	return &barcodeService{repo: repo}
}

// Settings lists every known key, falling back to its default when no row
// has been stored yet.
func (s *barcodeService) Settings(ctx context.Context) ([]model.Setting, error) {
	stored, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, apperror.Unexpected(err, "list settings")
	}
	byKey := make(map[string]model.Setting, len(stored))
	for _, setting := range stored {
		byKey[setting.Key] = setting
	}

	keys := make([]string, 0, len(model.KnownSettings))
	for key := range model.KnownSettings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]model.Setting, 0, len(keys))
	for _, key := range keys {
		if setting, ok := byKey[key]; ok {
			out = append(out, setting)
			continue
		}
		out = append(out, defaultSetting(key))
	}
	return out, nil
}

func (s *barcodeService) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	if _, ok := model.KnownSettings[key]; !ok {
		return nil, errUnknownSetting(key)
	}
	setting, err := s.repo.Get(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := defaultSetting(key)
		return &def, nil
	}
	if err != nil {
		return nil, apperror.Unexpected(err, "load setting")
	}
	return setting, nil
}

func (s *barcodeService) UpdateSetting(ctx context.Context, key, value string) (*model.Setting, error) {
	known, ok := model.KnownSettings[key]
	if !ok {
		return nil, errUnknownSetting(key)
	}
	setting := &model.Setting{Key: key, Value: value, Description: known.Description}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, apperror.Unexpected(err, "save setting")
	}
	return setting, nil
}

func (s *barcodeService) TestPattern(pattern, code string) *PatternTestResult {
	matches := barcode.Matches(code, pattern)
	var msg string
	switch {
	case pattern == "":
		msg = "No pattern set - all barcodes are accepted as internal"
	case matches:
		msg = fmt.Sprintf("Barcode '%s' matches pattern '%s'", code, pattern)
	default:
		msg = fmt.Sprintf("Barcode '%s' does NOT match pattern - will trigger external lookup", code)
	}
	return &PatternTestResult{
		Pattern:    pattern,
		Barcode:    code,
		Matches:    matches,
		IsInternal: matches,
		Message:    msg,
	}
}

func (s *barcodeService) PatternInfo(pattern string) *PatternInfo {
	return &PatternInfo{
		Pattern:     pattern,
		Regex:       barcode.ToRegex(pattern),
		Examples:    barcode.Examples(pattern, 5),
		Description: describePattern(pattern),
	}
}

// Classify applies the stored barcode pattern. A code that is not internal
// is looked up externally only when auto lookup is on.
func (s *barcodeService) Classify(ctx context.Context, code string) (*BarcodeClass, error) {
	pattern, err := s.GetSetting(ctx, model.SettingBarcodePattern)
	if err != nil {
		return nil, err
	}
	autoLookup, err := s.GetSetting(ctx, model.SettingAutoLookupExternal)
	if err != nil {
		return nil, err
	}
	internal := barcode.Matches(code, pattern.Value)
	return &BarcodeClass{
		Barcode:      code,
		Pattern:      pattern.Value,
		IsInternal:   internal,
		ShouldLookup: !internal && strings.EqualFold(autoLookup.Value, "true"),
	}, nil
}

func describePattern(pattern string) string {
	if pattern == "" {
		return "No pattern: every barcode is internal"
	}
	var digits, wild, optional int
	for _, r := range pattern {
		switch r {
		case '#':
			digits++
		case '*':
			wild++
		case '$':
			optional++
		}
	}
	return fmt.Sprintf("%d digit(s), %d any character(s), %d optional character(s)", digits, wild, optional)
}

func defaultSetting(key string) model.Setting {
	known := model.KnownSettings[key]
	return model.Setting{Key: key, Value: known.Default, Description: known.Description}
}

func errUnknownSetting(key string) error {
	return apperror.NotFound(apperror.CodeSettingNotFound, fmt.Sprintf("Setting '%s' not found", key)).
		WithParams(map[string]interface{}{"key": key})
}
