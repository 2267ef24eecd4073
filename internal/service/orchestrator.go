package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"thera-llm/internal/domain"
)

// Orchestrator ejecuta el pipeline de un mensaje:
// RISK_CHECK -> (CRITICAL? EMERGENCY : ANALYSIS) -> STATE_DECISION ->
// RESPONSE_GENERATION -> [PLAN_REVISION] -> PROGRESS_METRICS.
//
// No persiste nada: entrega un ProcessingResult unico al colaborador de
// sesion, que guarda todo como unidad atomica. Todas las dependencias entran
// por construccion; no hay singletons de proceso.
type Orchestrator struct {
	risk     *RiskService
	analysis *AnalysisService
	states   StateMachine
	plans    *PlanService
	response *ResponseService
	progress ProgressService
	notifier ProgressNotifier
	logger   *zap.Logger
}

func NewOrchestrator(
	risk *RiskService,
	analysis *AnalysisService,
	states StateMachine,
	plans *PlanService,
	response *ResponseService,
	progress ProgressService,
	notifier ProgressNotifier,
	logger *zap.Logger,
) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{
		risk:     risk,
		analysis: analysis,
		states:   states,
		plans:    plans,
		response: response,
		progress: progress,
		notifier: notifier,
		logger:   logger,
	}
}

// Process corre el pipeline completo sobre una foto inmutable del contexto.
// Devuelve error solo ante la falla dura de la etapa de riesgo o la
// cancelacion del contexto; el resto de etapas degradan a sus fallbacks.
func (o *Orchestrator) Process(ctx context.Context, snapshot domain.ConversationSnapshot, userMessage domain.Message) (domain.ProcessingResult, error) {
	conversationID := snapshot.Conversation.ID

	// RISK_CHECK y ANALYSIS solo dependen de la foto inmutable: corren en
	// paralelo. El analisis se cancela si el riesgo dispara la via de
	// emergencia, para que ningun trabajo parcial se observe despues.
	analysisCtx, cancelAnalysis := context.WithCancel(ctx)
	defer cancelAnalysis()

	type riskOut struct {
		assessment domain.RiskAssessment
		err        error
	}
	type analysisOut struct {
		analysis ContextualAnalysis
		err      error
	}

	riskCh := make(chan riskOut, 1)
	analysisCh := make(chan analysisOut, 1)

	go func() {
		a, err := o.risk.Assess(ctx, userMessage, snapshot.RiskHistory)
		riskCh <- riskOut{assessment: a, err: err}
	}()
	go func() {
		a, err := o.analysis.Analyze(analysisCtx, snapshot, userMessage.Content)
		analysisCh <- analysisOut{analysis: a, err: err}
	}()

	// El resultado del riesgo se observa antes de comprometer cualquier
	// etapa posterior.
	risk := <-riskCh
	if risk.err != nil {
		cancelAnalysis()
		<-analysisCh
		return domain.ProcessingResult{}, fmt.Errorf("risk check: %w", risk.err)
	}

	if risk.assessment.Level == domain.RiskCritical {
		cancelAnalysis()
		<-analysisCh
		return o.emergencyPath(ctx, snapshot, userMessage, risk.assessment), nil
	}

	an := <-analysisCh
	var analysis ContextualAnalysis
	if an.err != nil {
		// Analyze ya degrada internamente; aca solo puede llegar una
		// cancelacion de contexto.
		if ctx.Err() != nil {
			return domain.ProcessingResult{}, ctx.Err()
		}
		analysis = fallbackAnalysis(snapshot.Conversation.State)
	} else {
		analysis = an.analysis
	}

	transition := o.decideTransition(snapshot.Conversation.State, analysis)

	o.notifier.Notify(ctx, conversationID, EventComposingResponse)
	responseText := o.response.Generate(ctx, snapshot, analysis, userMessage.Content)

	var newVersion *domain.PlanVersion
	if analysis.ShouldRevisePlan {
		o.notifier.Notify(ctx, conversationID, EventRevisingPlan)
		version, err := o.plans.Revise(ctx, snapshot.Plan, snapshot.Versions, RevisionContext{
			Reason:      analysis.RevisionReason,
			Messages:    snapshot.Messages,
			RiskHistory: snapshot.RiskHistory,
		})
		if err != nil {
			// La revision degrada: la version vigente sigue siendo valida.
			o.logger.Warn("plan revision rejected",
				zap.Error(err),
				zap.String("plan_id", snapshot.Plan.ID),
				zap.Bool("consistency", errors.Is(err, ErrPlanConsistency)),
			)
		} else {
			newVersion = &version
		}
	}

	metrics := o.progress.Compute(snapshot, risk.assessment, analysis, newVersion)

	return domain.ProcessingResult{
		Assessment:          risk.assessment,
		Transition:          transition,
		Response:            responseText,
		NewPlanVersion:      newVersion,
		SuggestedTechniques: analysis.SuggestedTechniques,
		Progress:            metrics,
	}, nil
}

// emergencyPath cortocircuita el pipeline: sin analisis, sin revision de
// plan; siempre devuelve alguna respuesta.
func (o *Orchestrator) emergencyPath(ctx context.Context, snapshot domain.ConversationSnapshot, userMessage domain.Message, assessment domain.RiskAssessment) domain.ProcessingResult {
	conversationID := snapshot.Conversation.ID
	current := snapshot.Conversation.State

	o.notifier.Notify(ctx, conversationID, EventEmergencyEscalation)
	o.logger.Warn("emergency bypass triggered",
		zap.String("conversation_id", conversationID),
		zap.Float64("score", assessment.Score),
	)

	transition := domain.StateTransition{
		From:   current,
		To:     current,
		Reason: "emergency: transition unavailable from current phase",
	}
	if next, err := o.states.Next(current, domain.StateEmergencyIntervention); err == nil {
		transition = domain.StateTransition{
			From:   current,
			To:     next,
			Reason: "critical risk level detected",
		}
	}

	responseText := o.response.GenerateEmergency(ctx, snapshot, userMessage.Content)

	metrics := o.progress.Compute(snapshot, assessment, ContextualAnalysis{}, nil)

	return domain.ProcessingResult{
		Assessment:      assessment,
		Transition:      transition,
		Response:        responseText,
		Progress:        metrics,
		EmergencyBypass: true,
	}
}

// decideTransition valida la fase propuesta; una propuesta fuera del grafo se
// rechaza y la conversacion permanece en su fase actual.
func (o *Orchestrator) decideTransition(current domain.ConversationState, analysis ContextualAnalysis) domain.StateTransition {
	proposed := analysis.ProposedState
	if proposed == "" {
		proposed = current
	}

	next, err := o.states.Next(current, proposed)
	if err != nil {
		o.logger.Error("state transition rejected",
			zap.Error(err),
			zap.String("from", string(current)),
			zap.String("proposed", string(proposed)),
		)
		return domain.StateTransition{
			From:   current,
			To:     current,
			Reason: fmt.Sprintf("transition to %s rejected", proposed),
		}
	}

	reason := analysis.Reason
	if reason == "" {
		reason = "analysis decision"
	}
	return domain.StateTransition{From: current, To: next, Reason: reason}
}
