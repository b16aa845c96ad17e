// Package expression evaluates AND/OR condition trees against an indicator snapshot.
package expression

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantnest/executor/pkg/models"
)

var (
	// ErrInsufficientData is returned when a clause references an indicator missing from the snapshot.
	ErrInsufficientData = errors.New("insufficient indicator data")

	ErrEmptyExpression = errors.New("expression is empty")
)

const equalityTolerance = 1e-9

// MissingIndicatorError reports the reference that could not be resolved.
type MissingIndicatorError struct {
	Reference models.IndicatorReference
}

func (e *MissingIndicatorError) Error() string {
	return fmt.Sprintf("insufficient data for %s", e.Reference.Key())
}

func (e *MissingIndicatorError) Unwrap() error {
	return ErrInsufficientData
}

// Snapshot maps reference keys to values.
type Snapshot map[string]float64

// NewSnapshot indexes indicator values by reference key.
func NewSnapshot(values []models.IndicatorValue) Snapshot {
	snapshot := make(Snapshot, len(values))
	for _, value := range values {
		snapshot[value.Reference.Key()] = value.Value
	}

	return snapshot
}

func (s Snapshot) Lookup(ref models.IndicatorReference) (float64, bool) {
	value, ok := s[ref.Key()]

	return value, ok
}

// Evaluate folds the group against the snapshot. It has no side effects.
func Evaluate(group *models.Group, snapshot Snapshot) (bool, error) {
	if group == nil {
		return false, ErrEmptyExpression
	}

	return evaluateGroup(group, snapshot)
}

func evaluateGroup(group *models.Group, snapshot Snapshot) (bool, error) {
	switch group.Operator {
	case models.LogicalAnd:
		for _, condition := range group.Conditions {
			ok, err := evaluateCondition(condition, snapshot)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	case models.LogicalOr:
		for _, condition := range group.Conditions {
			ok, err := evaluateCondition(condition, snapshot)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", models.ErrInvalidExpression, group.Operator)
	}
}

func evaluateCondition(condition models.Condition, snapshot Snapshot) (bool, error) {
	switch {
	case condition.Group != nil:
		return evaluateGroup(condition.Group, snapshot)
	case condition.Clause != nil:
		return evaluateClause(condition.Clause, snapshot)
	default:
		return false, fmt.Errorf("%w: empty condition", models.ErrInvalidExpression)
	}
}

func evaluateClause(clause *models.Clause, snapshot Snapshot) (bool, error) {
	left, err := resolve(clause.Left, snapshot)
	if err != nil {
		return false, err
	}

	right, err := resolve(clause.Right, snapshot)
	if err != nil {
		return false, err
	}

	return compare(left, clause.Operator, right)
}

func resolve(operand models.Operand, snapshot Snapshot) (float64, error) {
	switch operand.Type {
	case models.OperandValue:
		if operand.Value == nil {
			return 0, fmt.Errorf("%w: value operand without value", models.ErrInvalidExpression)
		}

		return *operand.Value, nil
	case models.OperandIndicator:
		if operand.Indicator == nil {
			return 0, fmt.Errorf("%w: indicator operand without reference", models.ErrInvalidExpression)
		}

		value, ok := snapshot.Lookup(*operand.Indicator)
		if !ok {
			return 0, &MissingIndicatorError{Reference: *operand.Indicator}
		}

		return value, nil
	default:
		return 0, fmt.Errorf("%w: unknown operand type %q", models.ErrInvalidExpression, operand.Type)
	}
}

func compare(left float64, comparator models.Comparator, right float64) (bool, error) {
	switch comparator {
	case models.ComparatorGreater:
		return left > right, nil
	case models.ComparatorGreaterEqual:
		return left >= right, nil
	case models.ComparatorLess:
		return left < right, nil
	case models.ComparatorLessEqual:
		return left <= right, nil
	case models.ComparatorEqual:
		return math.Abs(left-right) <= equalityTolerance, nil
	case models.ComparatorNotEqual:
		return math.Abs(left-right) > equalityTolerance, nil
	default:
		return false, fmt.Errorf("%w: unknown comparator %q", models.ErrInvalidExpression, comparator)
	}
}
