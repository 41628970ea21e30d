package config

const (
	defaultStateDir                  = "~/.local/share/diarist"
	defaultDownloadsDir              = "~/.local/share/diarist/downloads"
	defaultProcessedDir              = "~/.local/share/diarist/processed_audio"
	defaultTranscriptsDir            = "~/.local/share/diarist/received_transcriptions"
	defaultDiaryDir                  = "~/diary"
	defaultRunsPerDay                = 1
	defaultStartupGraceSeconds       = 5
	defaultTerminationTimeoutSeconds = 5
	defaultPollIntervalMillis        = 200
	defaultStatusPollSeconds         = 5
	defaultLogRetentionEntries       = 1000
	defaultEntriesFileFormat         = "{date}_ongoing_entries.txt"
	defaultVariant                   = "local-model"
	defaultMaxChunkSeconds           = 1440
	defaultChunkConcurrency          = 1
	defaultTranscriptionBaseURL      = "https://api.openai.com/v1"
	defaultAPIKeyEnv                 = "OPENAI_API_KEY"
	defaultRequestTimeoutSeconds     = 600
	defaultRequestsPerMinute         = 20
	defaultMaxAttempts               = 3
	defaultLocalCommand              = "whisper"
	defaultLocalModel                = "base"
	defaultTranscriptionFile         = "transcription.txt"
	defaultFFprobeBinary             = "ffprobe"
	defaultFFmpegBinary              = "ffmpeg"
	defaultControlListen             = "127.0.0.1:7480"
	defaultControlActor              = "operator"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogMaxSizeMB              = 50
	defaultLogMaxBackups             = 5
	defaultLogMaxAgeDays             = 30
)

var defaultAudioExtensions = []string{".mp3", ".m4a", ".wav", ".ogg", ".flac"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:       defaultStateDir,
			DownloadsDir:   defaultDownloadsDir,
			ProcessedDir:   defaultProcessedDir,
			TranscriptsDir: defaultTranscriptsDir,
			DiaryDir:       defaultDiaryDir,
		},
		Scheduler: Scheduler{
			RunsPerDay:                defaultRunsPerDay,
			StartupGraceSeconds:       defaultStartupGraceSeconds,
			TerminationTimeoutSeconds: defaultTerminationTimeoutSeconds,
			PollIntervalMillis:        defaultPollIntervalMillis,
			StatusPollSeconds:         defaultStatusPollSeconds,
			LogRetentionEntries:       defaultLogRetentionEntries,
		},
		Diary: Diary{
			EntriesFileFormat: defaultEntriesFileFormat,
			AutoUpdateDate:    true,
		},
		Pipeline: Pipeline{
			AudioExtensions: append([]string(nil), defaultAudioExtensions...),
		},
		Transcription: Transcription{
			Variant:               defaultVariant,
			ChunkAudio:            true,
			MaxChunkSeconds:       defaultMaxChunkSeconds,
			ChunkConcurrency:      defaultChunkConcurrency,
			BaseURL:               defaultTranscriptionBaseURL,
			APIKeyEnv:             defaultAPIKeyEnv,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			RequestsPerMinute:     defaultRequestsPerMinute,
			MaxAttempts:           defaultMaxAttempts,
			LocalCommand:          defaultLocalCommand,
			LocalModel:            defaultLocalModel,
			TranscriptionFile:     defaultTranscriptionFile,
			FFprobeBinary:         defaultFFprobeBinary,
			FFmpegBinary:          defaultFFmpegBinary,
		},
		Control: Control{
			Listen:       defaultControlListen,
			DefaultActor: defaultControlActor,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
