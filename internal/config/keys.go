package config

// KeyStatus describes the availability of a single credential.
type KeyStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
}

// CheckAPIKeys reports which credentials are configured, with the
// values masked so the result is safe to return over the API.
func (c *Config) CheckAPIKeys() []KeyStatus {
	return []KeyStatus{
		{
			Name:       "insight_client_id",
			Configured: c.Insight.ClientID != "",
			Masked:     maskKey(c.Insight.ClientID),
		},
		{
			Name:       "insight_client_secret",
			Configured: c.Insight.ClientSecret != "",
			Masked:     maskKey(c.Insight.ClientSecret),
		},
		{
			Name:       "openai_api_key",
			Configured: c.LLM.OpenAIKey != "",
			Masked:     maskKey(c.LLM.OpenAIKey),
		},
	}
}

// maskKey shows the first and last three characters of a key. Short
// keys are masked entirely.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
