package config

import "time"

// defaults mirrors original_source/app/utils/config.py's DEFAULTS dict,
// which is the authoritative source for exact section/key names and
// default values (see DESIGN.md).
func defaults() Config {
	return Config{
		General: General{
			DryRun:       true,
			CronSchedule: "0 */6 * * *",
		},
		Update: Update{
			DelayBetweenUpdates: 2 * time.Minute,
		},
		UpdateVerification: UpdateVerification{
			MaxWait:       480 * time.Second,
			StableTime:    15 * time.Second,
			CheckInterval: 5 * time.Second,
			GracePeriod:   15 * time.Second,
		},
		Prune: Prune{
			RemoveUnusedImages:  true,
			RemoveOldContainers: true,
			MinBackupAge:        48 * time.Hour,
			MinBackupsToKeep:    1,
		},
		SelfUpdate: SelfUpdate{
			RemoveHelperContainer: true,
		},
		PreScripts: ScriptConfig{
			Enabled:          false,
			ScriptsDirectory: "/scripts/pre",
			Timeout:          30 * time.Second,
		},
		PostScripts: ScriptConfig{
			Enabled:          false,
			ScriptsDirectory: "/scripts/post",
			Timeout:          30 * time.Second,
		},
		Docker: RegistryAPIConfig{
			APIURL:         "https://registry.hub.docker.com/v2",
			PageCrawlLimit: 1000,
			PageSize:       100,
		},
		GHCR: RegistryAPIConfig{
			APIURL:         "https://ghcr.io/v2",
			PageCrawlLimit: 1000,
			PageSize:       100,
		},
		RegistryAuth: RegistryAuth{
			Enabled:         false,
			CredentialsFile: "/app/conf/credentials.json",
		},
		EnvFiltering: EnvFiltering{
			Enabled: false,
		},
		Logging: Logging{Level: "INFO"},
		Storage: Storage{DBPath: "/config/cuengine.db"},
		Rules:   defaultRules(),
	}
}
