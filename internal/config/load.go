package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

var knownKeys = map[string][]string{
	"general":            {"dryRun", "cronSchedule"},
	"update":             {"delayBetweenUpdates"},
	"updateVerification": {"maxWait", "stableTime", "checkInterval", "gracePeriod"},
	"prune":              {"removeUnusedImages", "removeOldContainers", "minBackupAge", "minBackupsToKeep"},
	"selfUpdate":         {"removeHelperContainer"},
	"preScripts":         {"enabled", "scriptsDirectory", "timeout", "continueOnFailure", "rollbackOnFailure"},
	"postScripts":        {"enabled", "scriptsDirectory", "timeout", "continueOnFailure", "rollbackOnFailure"},
	"docker":             {"apiUrl", "pageCrawlLimit", "pageSize"},
	"ghcr":               {"apiUrl", "pageCrawlLimit", "pageSize"},
	"registryAuth":       {"enabled", "credentialsFile"},
	"envFiltering":       {"enabled", "excludePatterns", "preservePatterns", "containerSpecificRules"},
	"notifiers.telegram": {"enabled", "botToken", "chatId"},
	"notifiers.email":    {"enabled", "smtpUrl", "to"},
	"logging":            {"level"},
	"storage":            {"dbPath"},
}

// Load reads and validates the INI file at path, merging it over the
// package defaults. Unknown keys within a recognized section, and
// malformed durations, fail the load (§9: "unknown keys are rejected at
// load time"). A missing file is not an error: cuengine runs with
// defaults, matching the behavior of a fresh install with no mounted
// config volume yet.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}

	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, name := range []string{"general", "update", "updateVerification", "prune", "selfUpdate",
		"preScripts", "postScripts", "docker", "ghcr", "registryAuth", "envFiltering",
		"notifiers.telegram", "notifiers.email", "logging", "storage"} {
		if f.HasSection(name) {
			if err := validateSection(f.Section(name), name); err != nil {
				return nil, err
			}
		}
	}

	if err := applyGeneral(f, &cfg); err != nil {
		return nil, err
	}
	if err := applyUpdate(f, &cfg); err != nil {
		return nil, err
	}
	if err := applyVerification(f, &cfg); err != nil {
		return nil, err
	}
	if err := applyPrune(f, &cfg); err != nil {
		return nil, err
	}
	applySelfUpdate(f, &cfg)
	if err := applyScripts(f, "preScripts", &cfg.PreScripts); err != nil {
		return nil, err
	}
	if err := applyScripts(f, "postScripts", &cfg.PostScripts); err != nil {
		return nil, err
	}
	applyRegistryAPI(f, "docker", &cfg.Docker)
	applyRegistryAPI(f, "ghcr", &cfg.GHCR)
	applyRegistryAuth(f, &cfg)
	applyEnvFiltering(f, &cfg)
	applyNotifiers(f, &cfg)
	applyAssignments(f, &cfg)
	if err := applyRules(f, &cfg); err != nil {
		return nil, err
	}
	applyLogging(f, &cfg)
	applyStorage(f, &cfg)

	return &cfg, nil
}

func validateSection(s *ini.Section, name string) error {
	allowed := make(map[string]bool)
	for _, k := range knownKeys[name] {
		allowed[k] = true
	}
	for _, k := range s.Keys() {
		if !allowed[k.Name()] {
			return fmt.Errorf("unknown key %q in section [%s]", k.Name(), name)
		}
	}
	return nil
}

func applyGeneral(f *ini.File, cfg *Config) error {
	if !f.HasSection("general") {
		return nil
	}
	s := f.Section("general")
	if k, err := s.GetKey("dryRun"); err == nil {
		cfg.General.DryRun = k.MustBool(cfg.General.DryRun)
	}
	if k, err := s.GetKey("cronSchedule"); err == nil {
		cfg.General.CronSchedule = k.String()
	}
	return nil
}

func applyUpdate(f *ini.File, cfg *Config) error {
	if !f.HasSection("update") {
		return nil
	}
	return applyDuration(f.Section("update"), "delayBetweenUpdates", &cfg.Update.DelayBetweenUpdates)
}

func applyVerification(f *ini.File, cfg *Config) error {
	if !f.HasSection("updateVerification") {
		return nil
	}
	s := f.Section("updateVerification")
	if err := applyDuration(s, "maxWait", &cfg.UpdateVerification.MaxWait); err != nil {
		return err
	}
	if err := applyDuration(s, "stableTime", &cfg.UpdateVerification.StableTime); err != nil {
		return err
	}
	if err := applyDuration(s, "checkInterval", &cfg.UpdateVerification.CheckInterval); err != nil {
		return err
	}
	if err := applyDuration(s, "gracePeriod", &cfg.UpdateVerification.GracePeriod); err != nil {
		return err
	}
	return nil
}
