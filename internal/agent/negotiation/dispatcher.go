// Package negotiation turns a resident's request into suggested actions and
// runs them against the building data.
package negotiation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.negotiation")

// Action names understood by the dispatcher.
const (
	ActionChangeGeometry        = "change_geometry"
	ActionGetNearbyActivities   = "get_nearby_activities"
	ActionProposeActivityChange = "propose_activity_change"
	ActionFindProfileSwap       = "find_profile_swap"
	ActionProcessBooking        = "process_booking"
	ActionSummarizePreferences  = "summarize_preferences"
	ActionAssignActivity        = "assign_activity"
)

// NoActionFound is the result of a request that names no action.
const NoActionFound = "No action found in LLM response."

// DataSource serves the current building data.
type DataSource interface {
	Load(ctx context.Context) (*dataset.Data, error)
}

// handlerFunc returns a result with either Result or Error set. data is nil
// for handlers that do not read the building data.
type handlerFunc func(ctx context.Context, data *dataset.Data, p model.Params) model.ActionResult

type handler struct {
	description string
	needsData   bool
	run         handlerFunc
}

// Dispatcher maps action names to handlers. The table is fixed at
// construction.
type Dispatcher struct {
	data     DataSource
	handlers map[string]handler
	order    []string
}

// NewDispatcher builds the dispatcher over data.
func NewDispatcher(data DataSource) *Dispatcher {
	d := &Dispatcher{data: data, handlers: make(map[string]handler)}
	d.register(ActionChangeGeometry, "propose a larger area for an outdoor space (parameters: outdoor_id or user_id)", true, changeGeometry)
	d.register(ActionGetNearbyActivities, "list the nearest spaces with their size and favourite activities (parameters: user_id, desired_activity list)", true, nearbyActivities)
	d.register(ActionProposeActivityChange, "explain how to swap an assigned activity for another (parameters: user_id, current_activity, desired_activity)", false, proposeActivityChange)
	d.register(ActionFindProfileSwap, "find residents with matching preferences to swap homes with (parameters: user_id, features list)", true, findProfileSwap)
	d.register(ActionProcessBooking, "book an activity for the resident (parameters: user_id, desired_activity)", false, processBooking)
	d.register(ActionSummarizePreferences, "summarize the resident's voting preferences (parameters: user_id)", true, summarizePreferences)
	d.register(ActionAssignActivity, "finalize an activity for a space (parameters: space_id, activity)", false, assignActivity)
	return d
}

func (d *Dispatcher) register(name, description string, needsData bool, run handlerFunc) {
	d.handlers[name] = handler{description: description, needsData: needsData, run: run}
	d.order = append(d.order, name)
}

// Actions lists the registered actions for the suggestion prompt.
func (d *Dispatcher) Actions() []prompts.ActionOption {
	out := make([]prompts.ActionOption, len(d.order))
	for i, name := range d.order {
		out[i] = prompts.ActionOption{Name: name, Description: d.handlers[name].description}
	}
	return out
}

// Dispatch runs every action of req in order with the same parameters.
// Failures are returned as results; Dispatch never panics on bad input.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.ActionRequest) model.Dispatch {
	ctx, span := tracer.Start(ctx, "Dispatcher.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("kind", req.Kind.String()), attribute.Int("actions", len(req.Actions)))

	var names []string
	switch req.Kind {
	case model.ActionSingle, model.ActionMulti:
		names = req.Actions
	}
	if len(names) == 0 {
		return model.Dispatch{Results: []model.ActionResult{{Params: req.Parameters, Error: NoActionFound}}}
	}

	var (
		data    *dataset.Data
		dataErr error
		loaded  bool
	)
	results := make([]model.ActionResult, 0, len(names))
	for _, name := range names {
		h, ok := d.handlers[name]
		if !ok {
			results = append(results, model.ActionResult{
				Action: name,
				Params: req.Parameters,
				Error:  fmt.Sprintf("Unknown action: %s", name),
			})
			continue
		}
		if h.needsData && !loaded {
			data, dataErr = d.data.Load(ctx)
			loaded = true
			if dataErr != nil {
				span.RecordError(dataErr)
				logx.Component("dispatcher").Error().Err(dataErr).Msg("dataset load failed")
			}
		}
		if h.needsData && dataErr != nil {
			results = append(results, model.ActionResult{Action: name, Params: req.Parameters, Error: errx.UserMessage(dataErr)})
			continue
		}

		res := h.run(ctx, data, req.Parameters)
		res.Action = name
		res.Params = req.Parameters
		logx.Component("dispatcher").Debug().
			Str("action", name).
			Bool("failed", res.Failed()).
			Msg("action handled")
		results = append(results, res)
	}
	return model.Dispatch{Results: results}
}
