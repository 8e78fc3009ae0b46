package models

import (
	_ "embed"
	"strings"
)

// SettingsVersion is the current on-disk settings schema version. Older or
// unversioned documents are migrated (or reset) explicitly at load time.
const SettingsVersion = 2

// AIProvider selects the wire protocol a profile speaks.
type AIProvider string

const (
	ProviderOpenAICompatible AIProvider = "openai_compatible"
	ProviderAnthropic        AIProvider = "anthropic"
)

// NormalizeProvider maps legacy aliases onto the supported provider values.
// Unknown values fall back to the given default.
func NormalizeProvider(raw string, fallback AIProvider) AIProvider {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai", "openai_compatible":
		return ProviderOpenAICompatible
	case "anthropic", "claude":
		return ProviderAnthropic
	default:
		return fallback
	}
}

// AIProfile is one configured provider endpoint with credentials and model
// selection. Invariant: ModelOptions is deduplicated, order-preserving, and
// always contains Model.
type AIProfile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Provider       AIProvider `json:"provider"`
	APIBase        string     `json:"api_base"`
	APIKey         string     `json:"api_key"`
	Model          string     `json:"model"`
	ModelOptions   []string   `json:"model_options"`
	Temperature    float64    `json:"temperature"`
	TimeoutSeconds int        `json:"timeout_seconds"`
}

// AISettings holds the profile set. Exactly one profile is active at a time.
type AISettings struct {
	ActiveProfileID string      `json:"active_profile_id"`
	Profiles        []AIProfile `json:"profiles"`
}

// ActiveProfile returns the active profile, falling back to the first one if
// the active id is dangling. Returns a zero profile if the set is empty.
func (s *AISettings) ActiveProfile() AIProfile {
	for _, p := range s.Profiles {
		if p.ID == s.ActiveProfileID {
			return p
		}
	}
	if len(s.Profiles) > 0 {
		return s.Profiles[0]
	}
	return AIProfile{}
}

// WeeklyPromptStyle selects the style injection used by report prompts.
type WeeklyPromptStyle string

const (
	StyleCustom    WeeklyPromptStyle = "custom"
	StyleNone      WeeklyPromptStyle = "none"
	StyleRigorous  WeeklyPromptStyle = "rigorous"
	StyleIntuitive WeeklyPromptStyle = "intuitive"
	StyleConcise   WeeklyPromptStyle = "concise"
)

// Default prompt templates ship as embedded Markdown so users get a working
// setup before ever opening the settings form.
var (
	//go:embed templates/solution_prompt.md
	DefaultSolutionTemplate string

	//go:embed templates/insight_prompt.md
	DefaultInsightTemplate string
)

const (
	DefaultStyleCustomInjection    = "Follow the custom style guidance strictly."
	DefaultStyleRigorousInjection  = "以数学证明的标准呈现题解。文字部分需完整论证算法正确性：明确陈述引理或性质，给出必要且充分的证明，对贪心策略需说明交换论证或反证细节，对动态规划需证明最优子结构与无后效性，对图论算法需说明不变量的维护。代码部分要求逻辑结构清晰，每个函数职责单一，关键断言处可加 assert 辅助验证。样例部分需附带逐步解释：展示输入如何经过算法各阶段变换，中间变量取值如何演变，最终如何得出输出，使读者能够手动模拟验证。"
	DefaultStyleIntuitiveInjection = "以启发式思维路径呈现题解。从拿到题目的第一直觉出发，描述观察到了哪些特殊结构、对称性或反常规律，如何从样例中捕捉到模式，如何通过手玩小数据建立猜想。强调“为什么会想到这个方法”而非“这个方法为什么对”，侧重类比、联想与经验迁移。证明可以非形式化，用图示或极端情况验证来建立信心。代码部分保持正常可读性即可。"
	DefaultStyleConciseInjection   = "以极简主义方式呈现题解。文字部分直接切入问题本质，用一到两段连贯的文字说明核心思路与关键结论，必要时给出一句话证明，省略冗余的背景铺垫与分步小标题。代码部分追求竞赛选手的实战风格：极短变量名，仅在非显然的技巧处保留一行极简注释。不输出复杂度分析，除非复杂度本身是题目考点。"
)

// PromptSettings carries the editable prompt templates and style injections.
type PromptSettings struct {
	SolutionTemplate        string            `json:"solution_template"`
	InsightTemplate         string            `json:"insight_template"`
	WeeklyPromptStyle       WeeklyPromptStyle `json:"weekly_prompt_style"`
	StyleCustomInjection    string            `json:"weekly_style_custom_injection"`
	StyleRigorousInjection  string            `json:"weekly_style_rigorous_injection"`
	StyleIntuitiveInjection string            `json:"weekly_style_intuitive_injection"`
	StyleConciseInjection   string            `json:"weekly_style_concise_injection"`
}

// StyleInjection resolves the injection text for the configured style.
func (p *PromptSettings) StyleInjection() string {
	switch p.WeeklyPromptStyle {
	case StyleRigorous:
		return p.StyleRigorousInjection
	case StyleIntuitive:
		return p.StyleIntuitiveInjection
	case StyleConcise:
		return p.StyleConciseInjection
	case StyleCustom:
		return p.StyleCustomInjection
	default:
		return ""
	}
}

// DefaultPromptSettings returns the shipped template set.
func DefaultPromptSettings() PromptSettings {
	return PromptSettings{
		SolutionTemplate:        DefaultSolutionTemplate,
		InsightTemplate:         DefaultInsightTemplate,
		WeeklyPromptStyle:       StyleCustom,
		StyleCustomInjection:    DefaultStyleCustomInjection,
		StyleRigorousInjection:  DefaultStyleRigorousInjection,
		StyleIntuitiveInjection: DefaultStyleIntuitiveInjection,
		StyleConciseInjection:   DefaultStyleConciseInjection,
	}
}

// ACLanguage is the preferred language for generated reference code.
type ACLanguage string

const (
	LangC      ACLanguage = "c"
	LangCPP    ACLanguage = "cpp"
	LangPython ACLanguage = "python"
	LangJava   ACLanguage = "java"
)

// NormalizeACLanguage maps common submission-language spellings onto the
// supported set, falling back to the given default.
func NormalizeACLanguage(raw string, fallback ACLanguage) ACLanguage {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "c", "gnu c", "gcc":
		return LangC
	case "cpp", "c++", "cc", "cxx":
		return LangCPP
	case "python", "py", "python3":
		return LangPython
	case "java", "jdk":
		return LangJava
	default:
		return fallback
	}
}

// UISettings holds presentation and desktop-integration preferences.
type UISettings struct {
	DefaultACLanguage   ACLanguage `json:"default_ac_language"`
	StorageBaseDir      string     `json:"storage_base_dir"`
	AutostartEnabled    bool       `json:"autostart_enabled"`
	AutostartSilent     bool       `json:"autostart_silent"`
	ObsidianModeEnabled bool       `json:"obsidian_mode_enabled"`
}

// SettingsBundle is the singleton settings document.
type SettingsBundle struct {
	Version int            `json:"version"`
	AI      AISettings     `json:"ai"`
	Prompts PromptSettings `json:"prompts"`
	UI      UISettings     `json:"ui"`
}

// NormalizeModelSelection dedupes the option list order-preservingly and
// guarantees the selected model is a member. An empty selection falls back
// to the given model.
func NormalizeModelSelection(model string, options []string, fallback string) (string, []string) {
	selected := strings.TrimSpace(model)
	if selected == "" {
		selected = fallback
	}
	out := make([]string, 0, len(options)+1)
	seen := make(map[string]struct{}, len(options)+1)
	for _, raw := range options {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = []string{selected}
		seen[selected] = struct{}{}
	}
	if _, ok := seen[selected]; !ok {
		out = append(out, selected)
	}
	return selected, out
}
