package service

import (
	"fmt"
	"strings"

	"thera-llm/internal/domain"
)

const sentimentPromptTemplate = `Eres un evaluador clinico observando un chat de apoyo emocional. Analiza el mensaje del usuario y devuelve SOLO un JSON con este formato:
{"valence": 0.35, "intensity": 0.8, "emotions": ["tristeza", "desesperanza"]}

Guia:
- valence en [0,1]: 0 = lo mas negativo posible, 1 = lo mas positivo.
- intensity en [0,1]: cuanta carga emocional transmite el mensaje.
- emotions: etiquetas cortas de las emociones dominantes (puede ser vacio).

Mensaje del usuario:
%q
`

const crisisScanPromptTemplate = `Eres un sistema de deteccion de crisis para un chat de salud mental. Examina el mensaje y devuelve SOLO un JSON con este formato:
{"patterns": ["suicidal_ideation"], "severity": 0.9, "requires_immediate_action": true}

Reglas:
- patterns: nombres de patrones de riesgo detectados, en snake_case (vacio si no hay).
- Usa nombres canonicos cuando apliquen: suicidal_ideation, self_harm, violence, severe_dissociation, acute_crisis, hopelessness, isolation, substance_abuse.
- severity en [0,1]: gravedad agregada de lo detectado.
- requires_immediate_action: true solo si el mensaje sugiere peligro inminente.
- Ante la duda entre dos severidades, elige la mayor.

Mensaje del usuario:
%q
`

const analysisPromptTemplate = `Eres el analista contextual de un chatbot de apoyo terapeutico. Con el contexto de abajo decide la fase de la conversacion y si el plan terapeutico necesita revision. Devuelve SOLO un JSON con este formato:
{
  "proposed_state": "ACTIVE_GUIDANCE",
  "reason": "el usuario ya comparte su situacion con detalle",
  "should_revise_plan": false,
  "revision_reason": "",
  "themes": ["duelo", "insomnio"],
  "insights": ["el usuario vincula el insomnio con la perdida reciente"],
  "suggested_techniques": ["respiracion diafragmatica"],
  "user_dissatisfied": false
}

Fases validas: INFO_GATHERING, ACTIVE_GUIDANCE, PLAN_REVISION, EMERGENCY_INTERVENTION, SESSION_CLOSING.
Reglas:
- Propone PLAN_REVISION (y should_revise_plan=true) solo ante meta cumplida, contradiccion con el plan o insatisfaccion explicita del usuario.
- Propone SESSION_CLOSING solo si el usuario se despide o cierra el tema.
- insights: observaciones clinicas breves y concretas de ESTE turno (maximo 3).
- No incluyas texto fuera del JSON.
`

const responsePromptTemplate = `Eres un asistente de apoyo emocional calido, cercano y no clinico. NO diagnosticas ni medicas. Responde al usuario en su idioma, en tono acorde a la fase actual.

Fase actual: %s
Enfoque del plan: %s
Tecnicas sugeridas para este turno: %s
Temas detectados: %s

%s

Mensaje del usuario:
%q

Responde en texto plano (sin JSON), maximo 4 frases, validando la emocion del usuario y ofreciendo un siguiente paso pequeño y concreto.
`

const emergencyPromptTemplate = `El usuario esta en una crisis que requiere intervencion inmediata. Responde en su idioma con un mensaje breve, calmado y directo que:
1. Valide lo que siente sin minimizar.
2. Le pida que contacte AHORA una linea de crisis local o emergencias.
3. Le recuerde que no esta solo y que esta conversacion sigue abierta.
No uses JSON, no des tecnicas, no cambies de tema.

Mensaje del usuario:
%q
`

const planRevisionPromptTemplate = `Eres el supervisor clinico de un plan terapeutico versionado. Revisa el plan vigente con el contexto reciente y produce la siguiente version. Devuelve SOLO un JSON con este formato:
{
  "goals": [{"codename": "build_rapport", "state": "active", "approach": "...", "conditions": ["..."]}],
  "techniques": ["..."],
  "approach": "...",
  "focus": "...",
  "risk_factors": ["..."],
  "metrics": {"completed_goals": ["..."]}
}

Reglas estrictas:
- goals y techniques no pueden quedar vacios; approach es obligatorio.
- Toda meta del plan anterior debe seguir presente o aparecer en metrics.completed_goals. Nunca elimines una meta en silencio.
- Los codename son estables: no renombres metas existentes.

Plan vigente:
%s

Motivo de revision: %s

Contexto reciente de la conversacion:
%s

Perfil de riesgo reciente: %s
`

func buildSentimentPrompt(text string) string {
	return fmt.Sprintf(sentimentPromptTemplate, text)
}

func buildCrisisScanPrompt(text string) string {
	return fmt.Sprintf(crisisScanPromptTemplate, text)
}

func buildAnalysisPrompt(snapshot domain.ConversationSnapshot, userMessage string) string {
	var sb strings.Builder
	sb.WriteString(analysisPromptTemplate)

	sb.WriteString("\nFase actual: ")
	sb.WriteString(string(snapshot.Conversation.State))
	sb.WriteString("\n")

	if current, ok := snapshot.CurrentPlanVersion(); ok {
		sb.WriteString("\nPlan vigente (v")
		sb.WriteString(fmt.Sprintf("%d", current.Version))
		sb.WriteString("):\n")
		sb.WriteString("- Enfoque: " + current.Content.Approach + "\n")
		for _, g := range current.Content.Goals {
			sb.WriteString(fmt.Sprintf("- Meta %s [%s]: %s\n", g.Codename, g.State, g.Approach))
		}
	}

	if len(snapshot.Insights) > 0 {
		sb.WriteString("\nObservaciones previas relevantes:\n")
		for _, in := range snapshot.Insights {
			sb.WriteString("- " + in + "\n")
		}
	}

	if excerpt := conversationExcerpt(snapshot.Messages, 10); excerpt != "" {
		sb.WriteString("\nUltimos mensajes:\n")
		sb.WriteString(excerpt)
		sb.WriteString("\n")
	}

	sb.WriteString("\nMensaje nuevo del usuario:\n")
	sb.WriteString(fmt.Sprintf("%q\n", userMessage))
	return sb.String()
}

func buildResponsePrompt(snapshot domain.ConversationSnapshot, analysis ContextualAnalysis, userMessage string) string {
	focus := ""
	if current, ok := snapshot.CurrentPlanVersion(); ok {
		focus = current.Content.Focus
		if focus == "" {
			focus = current.Content.Approach
		}
	}

	contextBlock := ""
	if excerpt := conversationExcerpt(snapshot.Messages, 8); excerpt != "" {
		contextBlock = "Ultimos mensajes:\n" + excerpt
	}

	return fmt.Sprintf(responsePromptTemplate,
		snapshot.Conversation.State,
		focus,
		strings.Join(analysis.SuggestedTechniques, ", "),
		strings.Join(analysis.Themes, ", "),
		contextBlock,
		userMessage,
	)
}

func buildEmergencyPrompt(userMessage string) string {
	return fmt.Sprintf(emergencyPromptTemplate, userMessage)
}

func buildPlanRevisionPrompt(current domain.PlanVersion, revCtx RevisionContext) string {
	var plan strings.Builder
	plan.WriteString("Enfoque: " + current.Content.Approach + "\n")
	if current.Content.Focus != "" {
		plan.WriteString("Foco: " + current.Content.Focus + "\n")
	}
	plan.WriteString("Metas:\n")
	for _, g := range current.Content.Goals {
		plan.WriteString(fmt.Sprintf("- %s [%s]: %s\n", g.Codename, g.State, g.Approach))
	}
	plan.WriteString("Tecnicas: " + strings.Join(current.Content.Techniques, ", ") + "\n")

	risk := "sin evaluaciones recientes"
	if len(revCtx.RiskHistory) > 0 {
		last := revCtx.RiskHistory[len(revCtx.RiskHistory)-1]
		risk = fmt.Sprintf("nivel %s (score %.2f), factores: %s",
			last.Level, last.Score, strings.Join(last.Factors, ", "))
	}

	return fmt.Sprintf(planRevisionPromptTemplate,
		plan.String(),
		revCtx.Reason,
		conversationExcerpt(revCtx.Messages, 10),
		risk,
	)
}

// conversationExcerpt formatea los ultimos n mensajes como texto plano.
func conversationExcerpt(messages []domain.Message, n int) string {
	if len(messages) == 0 {
		return ""
	}
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := "Usuario"
		if m.Role == domain.RoleAssistant {
			role = "Asistente"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, m.Content))
	}
	return strings.Join(lines, "\n")
}
