package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quantnest/executor/pkg/models"
)

// References returns the distinct indicator references in the tree, in first-seen order.
func References(group *models.Group) []models.IndicatorReference {
	refs := make([]models.IndicatorReference, 0)
	if group == nil {
		return refs
	}

	seen := make(map[string]struct{})
	collect(group, seen, &refs)

	return refs
}

func collect(group *models.Group, seen map[string]struct{}, refs *[]models.IndicatorReference) {
	for _, condition := range group.Conditions {
		if condition.Group != nil {
			collect(condition.Group, seen, refs)

			continue
		}

		if condition.Clause == nil {
			continue
		}

		for _, operand := range []models.Operand{condition.Clause.Left, condition.Clause.Right} {
			if operand.Type != models.OperandIndicator || operand.Indicator == nil {
				continue
			}

			key := operand.Indicator.Key()
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			*refs = append(*refs, *operand.Indicator)
		}
	}
}

// Validate checks operators, comparators and every indicator reference of the tree.
func Validate(group *models.Group) error {
	if group == nil {
		return ErrEmptyExpression
	}

	if group.Operator != models.LogicalAnd && group.Operator != models.LogicalOr {
		return fmt.Errorf("%w: unknown operator %q", models.ErrInvalidExpression, group.Operator)
	}

	for _, condition := range group.Conditions {
		switch {
		case condition.Group != nil:
			err := Validate(condition.Group)
			if err != nil {
				return err
			}
		case condition.Clause != nil:
			_, err := compare(0, condition.Clause.Operator, 0)
			if err != nil {
				return err
			}

			for _, operand := range []models.Operand{condition.Clause.Left, condition.Clause.Right} {
				err = validateOperand(operand)
				if err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: empty condition", models.ErrInvalidExpression)
		}
	}

	return nil
}

func validateOperand(operand models.Operand) error {
	switch operand.Type {
	case models.OperandValue:
		if operand.Value == nil {
			return fmt.Errorf("%w: value operand without value", models.ErrInvalidExpression)
		}

		return nil
	case models.OperandIndicator:
		if operand.Indicator == nil {
			return fmt.Errorf("%w: indicator operand without reference", models.ErrInvalidExpression)
		}

		return operand.Indicator.Validate()
	default:
		return fmt.Errorf("%w: unknown operand type %q", models.ErrInvalidExpression, operand.Type)
	}
}

// Describe renders the tree for messages, e.g. "(RSI(14) HDFC@5m < 30 AND PRICE TCS@1m > 3500)".
func Describe(group *models.Group) string {
	if group == nil {
		return ""
	}

	parts := make([]string, 0, len(group.Conditions))

	for _, condition := range group.Conditions {
		switch {
		case condition.Group != nil:
			parts = append(parts, Describe(condition.Group))
		case condition.Clause != nil:
			parts = append(parts, fmt.Sprintf("%s %s %s",
				describeOperand(condition.Clause.Left),
				condition.Clause.Operator,
				describeOperand(condition.Clause.Right),
			))
		}
	}

	return "(" + strings.Join(parts, " "+string(group.Operator)+" ") + ")"
}

func describeOperand(operand models.Operand) string {
	if operand.Type == models.OperandValue && operand.Value != nil {
		return strconv.FormatFloat(*operand.Value, 'f', -1, 64)
	}

	if operand.Indicator == nil {
		return "?"
	}

	ref := operand.Indicator
	name := strings.ToUpper(ref.Indicator)

	if period := ref.Period(); period > 0 {
		name = fmt.Sprintf("%s(%d)", name, period)
	}

	return fmt.Sprintf("%s %s@%s", name, strings.ToUpper(ref.Symbol), ref.Timeframe)
}
