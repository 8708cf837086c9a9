package worker

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/workflow"
)

// RedactedValue replaces captured call parameters in failure reports when
// parameter redaction is enabled.
const RedactedValue = "REDACTED"

// eventSink receives failure reports. The production implementation forwards
// to Sentry; tests substitute a deterministic fake. Implementations must not
// panic out and must never block workflow or activity completion.
type eventSink interface {
	captureException(err error, tags map[string]string, contexts map[string]map[string]any)
}

// TelemetryInterceptor reports errors escaping workflow and activity
// execution to an external error-tracking sink. Reporting is best-effort: the
// original error is always returned unchanged, and sink failures are
// swallowed.
type TelemetryInterceptor struct {
	interceptor.WorkerInterceptorBase

	sink         eventSink
	redactParams bool
}

// NewTelemetryInterceptor creates a worker interceptor reporting to Sentry as
// configured.
func NewTelemetryInterceptor(opts SentryOptions) (*TelemetryInterceptor, error) {
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Release:     opts.Release,
		Environment: opts.Environment,
		SampleRate:  sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	hub := sentry.NewHub(client, sentry.NewScope())
	return &TelemetryInterceptor{
		sink:         &sentrySink{hub: hub},
		redactParams: opts.RedactParams,
	}, nil
}

// InterceptActivity implements interceptor.WorkerInterceptor.
func (t *TelemetryInterceptor) InterceptActivity(ctx context.Context, next interceptor.ActivityInboundInterceptor) interceptor.ActivityInboundInterceptor {
	i := &telemetryActivityInbound{root: t}
	i.Next = next
	return i
}

// InterceptWorkflow implements interceptor.WorkerInterceptor.
func (t *TelemetryInterceptor) InterceptWorkflow(ctx workflow.Context, next interceptor.WorkflowInboundInterceptor) interceptor.WorkflowInboundInterceptor {
	i := &telemetryWorkflowInbound{root: t}
	i.Next = next
	return i
}

// report builds and forwards a failure report. It never fails the caller: any
// panic from tag collection or sink transmission is swallowed here.
func (t *TelemetryInterceptor) report(cause error, tags map[string]string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Any("panic", r).Msg("failed to report execution failure to telemetry sink")
		}
	}()

	var snapshot any
	if t.redactParams {
		snapshot = RedactedValue
	} else {
		params := make(map[string]any, len(args))
		for i, arg := range args {
			params[fmt.Sprintf("arg%d", i)] = arg
		}
		snapshot = params
	}
	t.sink.captureException(cause, tags, map[string]map[string]any{
		"temporal.input": {"args": snapshot},
	})
}

type telemetryActivityInbound struct {
	interceptor.ActivityInboundInterceptorBase
	root *TelemetryInterceptor
}

func (a *telemetryActivityInbound) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (any, error) {
	result, err := a.Next.ExecuteActivity(ctx, in)
	if err != nil {
		info := activity.GetInfo(ctx)
		tags := map[string]string{
			"temporal.execution_type":      "activity",
			"temporal.workflow.id":         info.WorkflowExecution.ID,
			"temporal.workflow.run_id":     info.WorkflowExecution.RunID,
			"temporal.workflow.namespace":  info.WorkflowNamespace,
			"temporal.workflow.task_queue": info.TaskQueue,
			"temporal.activity.id":         info.ActivityID,
			"temporal.activity.type":       info.ActivityType.Name,
		}
		if info.WorkflowType != nil {
			tags["temporal.workflow.type"] = info.WorkflowType.Name
		}
		a.root.report(err, tags, in.Args)
	}
	return result, err
}

type telemetryWorkflowInbound struct {
	interceptor.WorkflowInboundInterceptorBase
	root *TelemetryInterceptor
}

func (w *telemetryWorkflowInbound) ExecuteWorkflow(ctx workflow.Context, in *interceptor.ExecuteWorkflowInput) (any, error) {
	result, err := w.Next.ExecuteWorkflow(ctx, in)
	// Replayed failures were already reported by the original execution.
	if err != nil && !workflow.IsReplaying(ctx) {
		info := workflow.GetInfo(ctx)
		tags := map[string]string{
			"temporal.execution_type":      "workflow",
			"temporal.workflow.type":       info.WorkflowType.Name,
			"temporal.workflow.id":         info.WorkflowExecution.ID,
			"temporal.workflow.run_id":     info.WorkflowExecution.RunID,
			"temporal.workflow.namespace":  info.Namespace,
			"temporal.workflow.task_queue": info.TaskQueueName,
		}
		w.root.report(err, tags, in.Args)
	}
	return result, err
}

// sentrySink forwards failure reports to a dedicated Sentry hub.
type sentrySink struct {
	hub *sentry.Hub
}

func (s *sentrySink) captureException(err error, tags map[string]string, contexts map[string]map[string]any) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		for name, values := range contexts {
			scope.SetContext(name, sentry.Context(values))
		}
		if id := s.hub.CaptureException(err); id == nil {
			log.Debug().Msg("sentry dropped execution failure event")
		}
	})
}
