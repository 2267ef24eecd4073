package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"thera-llm/internal/llm"
	"thera-llm/internal/repository"
	"thera-llm/internal/service"
)

// Chat interactivo contra el pipeline completo, con repositorios en memoria.
// Si LLM_API_KEY esta definido usa el gateway real; si no, un cliente
// guionado que permite probar la maquina de estados sin red.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	logger := zap.NewExample()
	defer logger.Sync()

	llmClient := buildLLMClient(logger)
	store := repository.NewMemorySet()

	riskSvc := service.NewRiskService(llmClient, logger)
	analysisSvc := service.NewAnalysisService(llmClient, logger)
	planSvc := service.NewPlanService(store.Plans, llmClient, logger)
	responseSvc := service.NewResponseService(llmClient, logger)
	insightSvc := service.NewInsightService(store.Insights, llmClient, logger)
	orchestrator := service.NewOrchestrator(
		riskSvc,
		analysisSvc,
		service.NewStateMachine(),
		planSvc,
		responseSvc,
		service.NewProgressService(),
		service.NewLogNotifier(logger),
		logger,
	)
	sessionSvc := service.NewSessionService(
		store.Conversations, store.Messages, store.Risks, store.Plans, store.Results,
		planSvc, insightSvc, orchestrator, service.NewMemoryLocker(), nil, logger,
	)

	userID := uuid.NewString()
	fmt.Println("===== Chat de apoyo (usuario efimero:", userID[:8], ") =====")
	fmt.Println("Comandos: 'info' muestra la sesion, 'reset' reinicia, 'salir' termina.")

	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		switch {
		case strings.EqualFold(text, "salir") || strings.EqualFold(text, "exit"):
			fmt.Println("Hasta luego.")
			return
		case strings.EqualFold(text, "info"):
			printInfo(ctx, sessionSvc, userID)
			continue
		case strings.EqualFold(text, "reset"):
			if err := sessionSvc.Reset(ctx, userID); err != nil {
				fmt.Printf("error reiniciando sesion: %v\n", err)
			} else {
				fmt.Println("Sesion reiniciada.")
			}
			continue
		}

		resp, err := sessionSvc.Handle(ctx, userID, text)
		if err != nil {
			fmt.Printf("error procesando mensaje: %v\n", err)
			continue
		}
		fmt.Printf("[%s | riesgo %s | progreso %s]\n", resp.State, resp.RiskLevel, formatScore(resp.ProgressScore))
		fmt.Printf("Bot > %s\n", resp.Message)
		if len(resp.SuggestedTechniques) > 0 {
			fmt.Printf("Tecnicas sugeridas: %s\n", strings.Join(resp.SuggestedTechniques, ", "))
		}
	}
}

func buildLLMClient(logger *zap.Logger) llm.Client {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		fmt.Println("LLM_API_KEY no definido: usando cliente guionado sin red.")
		return scriptedClient()
	}

	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-5.1"
	}
	embeddingModel := os.Getenv("LLM_EMBEDDING_MODEL")
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	return llm.NewRetryClient(llm.NewHTTPClient(baseURL, apiKey, model, embeddingModel, logger), 2, 30*time.Second)
}

// scriptedClient responde cada etapa del pipeline con un JSON fijo y
// plausible, seleccionado por el encabezado del prompt.
func scriptedClient() llm.Client {
	return &llm.ScriptedClient{
		Responses: map[string]string{
			"evaluador clinico":      `{"valence": 0.45, "intensity": 0.5, "emotions": ["inquietud"]}`,
			"deteccion de crisis":    `{"patterns": [], "severity": 0.1, "requires_immediate_action": false}`,
			"analista contextual":    `{"proposed_state": "ACTIVE_GUIDANCE", "reason": "conversacion en curso", "should_revise_plan": false, "themes": ["bienestar"], "insights": [], "suggested_techniques": ["respiracion diafragmatica"], "user_dissatisfied": false}`,
			"asistente de apoyo":     "Gracias por contarme. Que fue lo mas dificil de tu dia?",
			"intervencion inmediata": "Estoy contigo. Tu seguridad es lo primero: si estas en peligro llama al 112 o a la linea 024 ahora mismo.",
			"supervisor clinico":     `{"goals": [{"codename": "build_rapport", "state": "active", "approach": "escucha activa", "conditions": []}], "techniques": ["respiracion diafragmatica"], "approach": "apoyo general", "focus": "estabilidad emocional", "risk_factors": []}`,
		},
		Fallback: "Entiendo. Cuentame un poco mas.",
	}
}

func printInfo(ctx context.Context, sessionSvc *service.SessionService, userID string) {
	info, err := sessionSvc.GetUserInfo(ctx, userID)
	if err != nil {
		fmt.Printf("sin sesion activa todavia: %v\n", err)
		return
	}
	fmt.Printf("Estado: %s\n", info.State)
	fmt.Printf("Mensajes: %d\n", info.MessageCount)
	fmt.Printf("Duracion: %s\n", info.SessionDuration.Round(time.Second))
	if info.PlanFocusArea != "" {
		fmt.Printf("Plan: v%d, foco %q\n", info.PlanVersion, info.PlanFocusArea)
	}
	for _, insight := range info.RecentInsights {
		fmt.Printf("  - %s\n", insight)
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}
