// Package config loads and validates the INI configuration described in
// §6. Unknown keys are rejected at load time (fail fast), per §9's
// "Dynamic attribute dispatch... is replaced by explicit typed
// configuration structs" design note.
package config

import (
	"time"

	"github.com/halvorsen/cuengine/internal/policy"
)

type General struct {
	DryRun       bool
	CronSchedule string
}

type Update struct {
	DelayBetweenUpdates time.Duration
}

type UpdateVerification struct {
	MaxWait       time.Duration
	StableTime    time.Duration
	CheckInterval time.Duration
	GracePeriod   time.Duration
}

type Prune struct {
	RemoveUnusedImages  bool
	RemoveOldContainers bool
	MinBackupAge        time.Duration
	MinBackupsToKeep    int
}

type SelfUpdate struct {
	RemoveHelperContainer bool
}

type ScriptConfig struct {
	Enabled            bool
	ScriptsDirectory   string
	Timeout            time.Duration
	ContinueOnFailure  bool
	RollbackOnFailure  bool
}

type RegistryAPIConfig struct {
	APIURL        string
	PageCrawlLimit int
	PageSize      int
}

type RegistryAuth struct {
	Enabled         bool
	CredentialsFile string
}

type EnvFiltering struct {
	Enabled                bool
	ExcludePatterns        []string
	PreservePatterns       []string
	ContainerSpecificRules map[string][]string
}

type TelegramNotifier struct {
	Enabled  bool
	BotToken string
	ChatID   string
}

type EmailNotifier struct {
	Enabled bool
	SMTPURL string
	To      string
}

type Notifiers struct {
	Telegram TelegramNotifier
	Email    EmailNotifier
}

type Logging struct {
	Level string
}

type Storage struct {
	DBPath string
}

// Config is the fully-typed, validated configuration tree.
type Config struct {
	General            General
	Update             Update
	UpdateVerification UpdateVerification
	Prune              Prune
	SelfUpdate         SelfUpdate
	PreScripts         ScriptConfig
	PostScripts        ScriptConfig
	Docker             RegistryAPIConfig
	GHCR               RegistryAPIConfig
	RegistryAuth       RegistryAuth
	EnvFiltering       EnvFiltering
	Notifiers          Notifiers
	Assignments        policy.Tables
	Rules              map[string]policy.Rule
	Logging            Logging
	Storage            Storage
}
