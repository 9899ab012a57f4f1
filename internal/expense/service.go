package expense

import (
	"context"
	"fmt"
	"time"

	"github.com/zombor/expense-snap/internal/extraction"
)

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp, so creation
// order is derivable from the id itself
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles the extraction pipeline and expense operations
type Service struct {
	store       Store
	extractor   extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(store Store, extractor extraction.Extractor) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, extractor extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ExtractExpense runs the upload pipeline: normalize the image, send it to
// the vision model, and validate the reply into a fully populated record.
// A single provider call is made per upload; every failure is terminal.
func (s *Service) ExtractExpense(ctx context.Context, imageData []byte) (*extraction.ExpenseData, error) {
	normalized := extraction.NormalizeImage(imageData)

	reply, err := s.extractor.Extract(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("extracting receipt fields: %w", err)
	}

	data, err := extraction.ParseExpense(reply, s.timeSource.Now())
	if err != nil {
		return nil, fmt.Errorf("validating extraction reply: %w", err)
	}

	return data, nil
}

// CreateExpense assigns identity to a set of extracted fields and persists
// the record at the head of the collection
func (s *Service) CreateExpense(data extraction.ExpenseData) (*Expense, error) {
	now := s.timeSource.Now()
	data.Normalize(now)

	expense := &Expense{
		ID:        s.idGenerator.Generate(),
		Merchant:  data.Merchant,
		Amount:    data.Amount,
		Date:      data.Date,
		CreatedAt: now,
	}

	if err := s.store.Append(*expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	return expense, nil
}

// ListExpenses returns all expenses, most recently added first
func (s *Service) ListExpenses() ([]Expense, error) {
	expenses, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

// DeleteExpense removes an expense by id
func (s *Service) DeleteExpense(id string) error {
	if err := s.store.RemoveByID(id); err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	return nil
}

// ClearExpenses removes all expenses
func (s *Service) ClearExpenses() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clearing expenses: %w", err)
	}
	return nil
}
