package model

// ================ Config ================
type ConversationConfig struct {
	TTL        string `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxHistory int    `envconfig:"CONVERSATION_MAX_HISTORY" default:"10"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.1"`
}

type AnswerModelConfig struct {
	Model       string  `envconfig:"ANSWER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ANSWER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ANSWER_TEMPERATURE" default:"0.4"`
}

type EmbeddingConfig struct {
	Model      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	Dimensions int32  `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	CacheDir   string `envconfig:"EMBEDDING_CACHE_DIR"`
	CacheTTL   string `envconfig:"EMBEDDING_CACHE_TTL" default:"168h"`
}

type QueryConfig struct {
	MaxAttempts       int    `envconfig:"QUERY_MAX_ATTEMPTS" default:"3"`
	TableDescriptions string `envconfig:"QUERY_TABLE_DESCRIPTIONS" default:"table_descriptions.json"`
	SampleRows        int    `envconfig:"QUERY_SAMPLE_ROWS" default:"3"`
}

type KnowledgeConfig struct {
	Dir       string `envconfig:"KNOWLEDGE_DIR" default:"knowledge"`
	RulesFile string `envconfig:"KNOWLEDGE_RULES_FILE"`
	TopK      int    `envconfig:"KNOWLEDGE_TOP_K" default:"3"`
}

type DatasetConfig struct {
	VotingCSV          string `envconfig:"DATA_VOTING_CSV" default:"resident_data/voting_weights.csv"`
	PersonaActivities  string `envconfig:"DATA_PERSONA_ACTIVITIES" default:"preset/persona_activity.json"`
	GreenCSV           string `envconfig:"DATA_GREEN_CSV" default:"ml_models/green_predictions.csv"`
	ThresholdCSV       string `envconfig:"DATA_THRESHOLD_CSV" default:"ml_models/threshold_predictions.csv"`
	UsabilityCSV       string `envconfig:"DATA_USABILITY_CSV" default:"ml_models/usability_predictions.csv"`
	AssignmentsCSV     string `envconfig:"DATA_ASSIGNMENTS_CSV" default:"llm_reasoning/llm_activity_assignments.csv"`
	Watch              bool   `envconfig:"DATA_WATCH" default:"false"`
	SpacesTable        string `envconfig:"DATA_SPACES_TABLE" default:"activity_space"`
	SpacesIDColumn     string `envconfig:"DATA_SPACES_ID_COLUMN" default:"key"`
	DistancesTable     string `envconfig:"DATA_DISTANCES_TABLE" default:"resident_distances"`
	DistancesIDColumn  string `envconfig:"DATA_DISTANCES_ID_COLUMN" default:"Outdoor Space"`
	PersonasTable      string `envconfig:"DATA_PERSONAS_TABLE" default:"personas_assigned"`
}
