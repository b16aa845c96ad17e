// Package lint reports configuration problems in stored workflows before they reach the executor.
package lint

import (
	"fmt"
	"slices"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/registry"
	"github.com/quantnest/executor/pkg/trigger"
	"github.com/xeipuuv/gojsonschema"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Finding struct {
	WorkflowID string   `json:"workflow_id"`
	NodeID     string   `json:"node_id,omitempty"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

func (f Finding) String() string {
	if f.NodeID == "" {
		return fmt.Sprintf("%s [%s] %s", f.WorkflowID, f.Severity, f.Message)
	}

	return fmt.Sprintf("%s/%s [%s] %s", f.WorkflowID, f.NodeID, f.Severity, f.Message)
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	return slices.ContainsFunc(findings, func(f Finding) bool {
		return f.Severity == SeverityError
	})
}

// Linter validates action metadata against the JSON schema each registered handler publishes.
type Linter struct {
	schemas map[string]*gojsonschema.Schema
}

func New(reg *registry.Registry) (*Linter, error) {
	schemas := make(map[string]*gojsonschema.Schema)

	for nodeType, schema := range reg.Schemas() {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", nodeType, err)
		}

		schemas[nodeType] = compiled
	}

	return &Linter{schemas: schemas}, nil
}

func (l *Linter) Lint(wf *models.Workflow) []Finding {
	findings := make([]Finding, 0)
	add := func(node *models.Node, severity Severity, format string, args ...any) {
		finding := Finding{WorkflowID: wf.ID, Severity: severity, Message: fmt.Sprintf(format, args...)}
		if node != nil {
			finding.NodeID = node.StepID()
		}

		findings = append(findings, finding)
	}

	triggers := 0

	for _, node := range wf.Nodes {
		if node == nil {
			continue
		}

		switch {
		case node.IsTrigger():
			triggers++

			if triggers == 1 {
				if err := checkTrigger(node); err != nil {
					add(node, SeverityError, "%v", err)
				}
			}
		case node.IsAction():
			l.checkAction(node, add)
		}
	}

	switch {
	case triggers == 0:
		add(nil, SeverityError, "workflow has no trigger node")
	case triggers > 1:
		add(nil, SeverityWarning, "workflow has %d trigger nodes, only the first one is used", triggers)
	}

	for _, edge := range wf.Edges {
		if wf.NodeByID(edge.Source) == nil {
			add(nil, SeverityError, "edge %s starts at unknown node %s", edge.ID, edge.Source)
		}

		if wf.NodeByID(edge.Target) == nil {
			add(nil, SeverityError, "edge %s ends at unknown node %s", edge.ID, edge.Target)
		}
	}

	for _, node := range DeprecatedConditions(wf) {
		add(node, SeverityWarning, "node-level condition is deprecated, tag the incoming edge with sourceHandle %q or %q",
			models.SourceHandleTrue, models.SourceHandleFalse)
	}

	return findings
}

func (l *Linter) checkAction(node *models.Node, add func(*models.Node, Severity, string, ...any)) {
	schema, ok := l.schemas[node.Type]
	if !ok {
		add(node, SeverityWarning, "no handler registered for node type %q, the node will be skipped", node.Type)

		return
	}

	metadata := node.Data.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(metadata))
	if err != nil {
		add(node, SeverityError, "metadata could not be validated: %v", err)

		return
	}

	for _, resultErr := range result.Errors() {
		add(node, SeverityError, "metadata: %s", resultErr.String())
	}
}

func checkTrigger(node *models.Node) error {
	var err error

	switch node.Type {
	case models.NodeTypeTimer:
		_, err = trigger.TimerInterval(node)
	case models.NodeTypePriceTrigger:
		_, err = models.DecodeMetadata[models.PriceTriggerMetadata](node.Data.Metadata)
	case models.NodeTypeConditional:
		_, err = models.DecodeMetadata[models.ConditionalMetadata](node.Data.Metadata)
	default:
		return fmt.Errorf("unsupported trigger type %q", node.Type)
	}

	return err
}

// DeprecatedConditions returns the nodes whose branch is chosen by their own condition field
// because the conditional edge leading to them carries no sourceHandle.
func DeprecatedConditions(wf *models.Workflow) []*models.Node {
	nodes := make([]*models.Node, 0)
	seen := make(map[string]struct{})

	for _, edge := range wf.Edges {
		if edge.SourceHandle != "" {
			continue
		}

		source := wf.NodeByID(edge.Source)
		target := wf.NodeByID(edge.Target)

		if source == nil || target == nil || source.Type != models.NodeTypeConditional {
			continue
		}

		if _, ok := target.Condition(); !ok {
			continue
		}

		if _, ok := seen[target.ID]; ok {
			continue
		}

		seen[target.ID] = struct{}{}
		nodes = append(nodes, target)
	}

	return nodes
}
