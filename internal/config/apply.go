package config

import (
	"strings"
	"time"

	"github.com/halvorsen/cuengine/internal/policy"
	"github.com/halvorsen/cuengine/internal/version"
	"gopkg.in/ini.v1"
)

func applyDuration(s *ini.Section, key string, dst *time.Duration) error {
	k, err := s.GetKey(key)
	if err != nil {
		return nil
	}
	d, err := ParseDuration(k.String())
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func applyPrune(f *ini.File, cfg *Config) error {
	if !f.HasSection("prune") {
		return nil
	}
	s := f.Section("prune")
	if k, err := s.GetKey("removeUnusedImages"); err == nil {
		cfg.Prune.RemoveUnusedImages = k.MustBool(cfg.Prune.RemoveUnusedImages)
	}
	if k, err := s.GetKey("removeOldContainers"); err == nil {
		cfg.Prune.RemoveOldContainers = k.MustBool(cfg.Prune.RemoveOldContainers)
	}
	if err := applyDuration(s, "minBackupAge", &cfg.Prune.MinBackupAge); err != nil {
		return err
	}
	if k, err := s.GetKey("minBackupsToKeep"); err == nil {
		cfg.Prune.MinBackupsToKeep = k.MustInt(cfg.Prune.MinBackupsToKeep)
	}
	return nil
}

func applySelfUpdate(f *ini.File, cfg *Config) {
	if !f.HasSection("selfUpdate") {
		return
	}
	s := f.Section("selfUpdate")
	if k, err := s.GetKey("removeHelperContainer"); err == nil {
		cfg.SelfUpdate.RemoveHelperContainer = k.MustBool(cfg.SelfUpdate.RemoveHelperContainer)
	}
}

func applyScripts(f *ini.File, section string, dst *ScriptConfig) error {
	if !f.HasSection(section) {
		return nil
	}
	s := f.Section(section)
	if k, err := s.GetKey("enabled"); err == nil {
		dst.Enabled = k.MustBool(dst.Enabled)
	}
	if k, err := s.GetKey("scriptsDirectory"); err == nil {
		dst.ScriptsDirectory = k.String()
	}
	if err := applyDuration(s, "timeout", &dst.Timeout); err != nil {
		return err
	}
	if k, err := s.GetKey("continueOnFailure"); err == nil {
		dst.ContinueOnFailure = k.MustBool(dst.ContinueOnFailure)
	}
	if k, err := s.GetKey("rollbackOnFailure"); err == nil {
		dst.RollbackOnFailure = k.MustBool(dst.RollbackOnFailure)
	}
	return nil
}

func applyRegistryAPI(f *ini.File, section string, dst *RegistryAPIConfig) {
	if !f.HasSection(section) {
		return
	}
	s := f.Section(section)
	if k, err := s.GetKey("apiUrl"); err == nil {
		dst.APIURL = k.String()
	}
	if k, err := s.GetKey("pageCrawlLimit"); err == nil {
		dst.PageCrawlLimit = k.MustInt(dst.PageCrawlLimit)
	}
	if k, err := s.GetKey("pageSize"); err == nil {
		dst.PageSize = k.MustInt(dst.PageSize)
	}
}

func applyRegistryAuth(f *ini.File, cfg *Config) {
	if !f.HasSection("registryAuth") {
		return
	}
	s := f.Section("registryAuth")
	if k, err := s.GetKey("enabled"); err == nil {
		cfg.RegistryAuth.Enabled = k.MustBool(cfg.RegistryAuth.Enabled)
	}
	if k, err := s.GetKey("credentialsFile"); err == nil {
		cfg.RegistryAuth.CredentialsFile = k.String()
	}
}

func applyEnvFiltering(f *ini.File, cfg *Config) {
	if !f.HasSection("envFiltering") {
		return
	}
	s := f.Section("envFiltering")
	if k, err := s.GetKey("enabled"); err == nil {
		cfg.EnvFiltering.Enabled = k.MustBool(cfg.EnvFiltering.Enabled)
	}
	if k, err := s.GetKey("excludePatterns"); err == nil {
		cfg.EnvFiltering.ExcludePatterns = splitCSV(k.String())
	}
	if k, err := s.GetKey("preservePatterns"); err == nil {
		cfg.EnvFiltering.PreservePatterns = splitCSV(k.String())
	}
	if k, err := s.GetKey("containerSpecificRules"); err == nil {
		rules := map[string][]string{}
		if err := jsonUnmarshal(k.String(), &rules); err == nil {
			cfg.EnvFiltering.ContainerSpecificRules = rules
		}
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyNotifiers(f *ini.File, cfg *Config) {
	if f.HasSection("notifiers.telegram") {
		s := f.Section("notifiers.telegram")
		if k, err := s.GetKey("enabled"); err == nil {
			cfg.Notifiers.Telegram.Enabled = k.MustBool(false)
		}
		if k, err := s.GetKey("botToken"); err == nil {
			cfg.Notifiers.Telegram.BotToken = k.String()
		}
		if k, err := s.GetKey("chatId"); err == nil {
			cfg.Notifiers.Telegram.ChatID = k.String()
		}
	}
	if f.HasSection("notifiers.email") {
		s := f.Section("notifiers.email")
		if k, err := s.GetKey("enabled"); err == nil {
			cfg.Notifiers.Email.Enabled = k.MustBool(false)
		}
		if k, err := s.GetKey("smtpUrl"); err == nil {
			cfg.Notifiers.Email.SMTPURL = k.String()
		}
		if k, err := s.GetKey("to"); err == nil {
			cfg.Notifiers.Email.To = k.String()
		}
	}
}

// applyAssignments reads assignmentsByName|ByImage|ById sections. Key
// order within ByImage/ById sections is preserved from the file, since
// glob precedence is file-order dependent.
func applyAssignments(f *ini.File, cfg *Config) {
	cfg.Assignments.ByName = map[string]string{}
	if f.HasSection("assignmentsByName") {
		for _, k := range f.Section("assignmentsByName").Keys() {
			cfg.Assignments.ByName[k.Name()] = k.String()
		}
	}
	if f.HasSection("assignmentsByImage") {
		for _, k := range f.Section("assignmentsByImage").Keys() {
			cfg.Assignments.ByImage = append(cfg.Assignments.ByImage, policy.GlobAssignment{Pattern: k.Name(), RuleName: k.String()})
		}
	}
	if f.HasSection("assignmentsById") {
		for _, k := range f.Section("assignmentsById").Keys() {
			cfg.Assignments.ByID = append(cfg.Assignments.ByID, policy.GlobAssignment{Pattern: k.Name(), RuleName: k.String()})
		}
	}
}

type jsonRule struct {
	MinImageAge        string                       `json:"minImageAge"`
	ProgressiveUpgrade bool                         `json:"progressiveUpgrade"`
	Allow              map[string]bool              `json:"allow"`
	Conditions         map[string]jsonCondition     `json:"conditions"`
	LagPolicy          map[string]int               `json:"lagPolicy"`
}

type jsonCondition struct {
	Require []string `json:"require"`
}

// applyRules parses each [rules] value as a JSON rule object, per §6 ("each
// value a JSON rule object"). Rules present in the file replace the
// same-named default rule entirely; rules absent from the file keep their
// compiled-in default (see defaults.go / rules.go).
func applyRules(f *ini.File, cfg *Config) error {
	if !f.HasSection("rules") {
		return nil
	}
	for _, k := range f.Section("rules").Keys() {
		var jr jsonRule
		if err := jsonUnmarshal(k.String(), &jr); err != nil {
			return err
		}
		rule, err := toRule(k.Name(), jr)
		if err != nil {
			return err
		}
		cfg.Rules[k.Name()] = rule
	}
	return nil
}

func toRule(name string, jr jsonRule) (policy.Rule, error) {
	r := policy.Rule{
		Name:               name,
		ProgressiveUpgrade: jr.ProgressiveUpgrade,
		Allow:              map[version.Category]bool{},
		Conditions:         map[version.Category]policy.Condition{},
		LagPolicy:          map[version.Category]int{},
	}
	if jr.MinImageAge != "" {
		d, err := ParseDuration(jr.MinImageAge)
		if err != nil {
			return r, err
		}
		r.MinImageAge = d
	}
	for k, v := range jr.Allow {
		r.Allow[version.Category(k)] = v
	}
	for k, v := range jr.Conditions {
		cats := make([]version.Category, 0, len(v.Require))
		for _, c := range v.Require {
			cats = append(cats, version.Category(c))
		}
		r.Conditions[version.Category(k)] = policy.Condition{Require: cats}
	}
	for k, v := range jr.LagPolicy {
		r.LagPolicy[version.Category(k)] = v
	}
	return r, nil
}

func applyLogging(f *ini.File, cfg *Config) {
	if !f.HasSection("logging") {
		return
	}
	if k, err := f.Section("logging").GetKey("level"); err == nil {
		cfg.Logging.Level = k.String()
	}
}

func applyStorage(f *ini.File, cfg *Config) {
	if !f.HasSection("storage") {
		return
	}
	if k, err := f.Section("storage").GetKey("dbPath"); err == nil {
		cfg.Storage.DBPath = k.String()
	}
}
