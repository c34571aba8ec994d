package config

type PushConfig struct {
	// Provider is fcm or none.
	Provider string     `yaml:"provider"`
	FCM      *FCMConfig `yaml:"fcm"`
}

type FCMConfig struct {
	ProjectID      string `yaml:"project_id"`
	Credentials    string `yaml:"credentials_file"`
	VolunteerTopic string `yaml:"volunteer_topic"`
}

func loadPushConfig() *PushConfig {
	return &PushConfig{
		Provider: getEnv("PUSH_PROVIDER", "none"),
		FCM: &FCMConfig{
			ProjectID:      getEnv("FCM_PROJECT_ID", ""),
			Credentials:    getEnv("FCM_CREDENTIALS_FILE", ""),
			VolunteerTopic: getEnv("FCM_VOLUNTEER_TOPIC", "volunteers"),
		},
	}
}
